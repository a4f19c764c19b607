package services

import "research-showcase-api/models"

// Actor is the authenticated user performing an operation.
type Actor struct {
	UserID uint
	Email  string
	Role   models.Role
}

// ActorFromUser builds an Actor from a loaded user row.
func ActorFromUser(u models.User) Actor {
	return Actor{UserID: u.UserID, Email: u.Email, Role: u.Role}
}

func (a Actor) IsAdmin() bool { return a.Role.IsAdmin() }

func (a Actor) IsFacultyOrAdmin() bool { return a.Role.IsFacultyOrAdmin() }

// Owns reports whether the actor authored p.
func (a Actor) Owns(p *models.ResearchProject) bool {
	return p != nil && a.UserID != 0 && p.AuthorID == a.UserID
}
