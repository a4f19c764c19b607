package services

import "context"

// persistentContext keeps the request values but not its cancellation, so
// post-commit work such as notifications and orphan cleanup outlives a
// disconnected client.
func persistentContext(parent context.Context) context.Context {
	if parent == nil {
		return context.Background()
	}
	return context.WithoutCancel(parent)
}
