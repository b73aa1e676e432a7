// Package model contains the complaint entity and the types shared across
// packages.
package model

import (
	"time"
)

// Status describes where a complaint is in its lifecycle. Any status may move
// to any other; only admins perform the move.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusInProgress Status = "IN_PROGRESS"
	StatusResolved   Status = "RESOLVED"
)

// Statuses lists every valid status in display order.
var Statuses = []Status{StatusPending, StatusInProgress, StatusResolved}

// Valid reports whether s is one of the three known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusResolved:
		return true
	}
	return false
}

// Role is the coarse permission level carried by an Actor.
type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// ParseRole normalises a role string. Unknown values fall back to RoleUser so
// a malformed claim can never grant admin rights.
func ParseRole(v string) Role {
	if Role(v) == RoleAdmin {
		return RoleAdmin
	}
	return RoleUser
}

// Actor is the authenticated identity behind a request.
type Actor struct {
	ID   string `json:"id"`
	Role Role   `json:"role"`
}

// IsAdmin reports whether the actor may triage complaints.
func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// Complaint is a citizen-submitted grievance. ID, UserID, CreatedAt, ImageURL
// and Details are fixed at creation; only Status (and UpdatedAt with it) moves.
type Complaint struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Status      Status   `json:"status"`
	UserID      string   `json:"userId"`
	Details     *Details `json:"details,omitempty"`
	// ImageURL holds the object key of the attachment, not a fetchable link.
	ImageURL       string    `json:"imageUrl,omitempty"`
	AttachmentText string    `json:"attachmentText,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// Clone returns a deep copy so stores can hand out values without exposing
// their internal records.
func (c *Complaint) Clone() *Complaint {
	out := *c
	if c.Details != nil {
		d := *c.Details
		out.Details = &d
	}
	return &out
}
