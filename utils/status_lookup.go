package utils

import (
	"fmt"
	"strings"

	"research-showcase-api/models"
)

var (
	statusSynonyms = map[models.ApprovalStatus][]string{
		models.StatusPending: {
			"pending",
			"pending review",
			"submitted",
		},
		models.StatusApproved: {
			"approved",
			"published",
		},
		models.StatusRejected: {
			"rejected",
		},
		models.StatusNeedsRevision: {
			"needs_revision",
			"needs revision",
			"revision",
			"revision_requested",
		},
	}
	statusAliasToCanonical = buildStatusAliasMap()
)

func buildStatusAliasMap() map[string]models.ApprovalStatus {
	aliasMap := make(map[string]models.ApprovalStatus)
	for canonical, synonyms := range statusSynonyms {
		aliasMap[normalizeStatusCode(string(canonical))] = canonical
		for _, alias := range synonyms {
			if normalized := normalizeStatusCode(alias); normalized != "" {
				aliasMap[normalized] = canonical
			}
		}
	}
	return aliasMap
}

func normalizeStatusCode(code string) string {
	code = strings.ToLower(strings.TrimSpace(code))
	return strings.ReplaceAll(code, "-", "_")
}

// ParseApprovalStatus resolves a status name or one of its aliases.
func ParseApprovalStatus(raw string) (models.ApprovalStatus, error) {
	if canonical, ok := statusAliasToCanonical[normalizeStatusCode(raw)]; ok {
		return canonical, nil
	}
	return "", fmt.Errorf("unknown approval status %q", raw)
}

// StatusIn reports whether status is one of allowed.
func StatusIn(status models.ApprovalStatus, allowed ...models.ApprovalStatus) bool {
	for _, s := range allowed {
		if status == s {
			return true
		}
	}
	return false
}
