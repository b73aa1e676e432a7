// Package notify renders complaint notifications and delivers them by email.
package notify

import (
	"fmt"
	"strings"
	"time"

	"github.com/dharsanguruparan/jansevak/internal/model"
)

// Message is a rendered plain-text email.
type Message struct {
	To      string
	Subject string
	Body    string
}

var statusLabels = map[model.Status]string{
	model.StatusPending:    "Pending",
	model.StatusInProgress: "In Progress",
	model.StatusResolved:   "Resolved",
}

func label(s model.Status) string {
	if l, ok := statusLabels[s]; ok {
		return l
	}
	return string(s)
}

// Recipient returns the address to notify about c, or "" when the submitter
// left no email or opted out.
func Recipient(c *model.Complaint) string {
	if c == nil || c.Details == nil || !c.Details.NotifyByEmail {
		return ""
	}
	return strings.TrimSpace(c.Details.ContactEmail)
}

// CreatedMessage acknowledges a newly filed complaint.
func CreatedMessage(c *model.Complaint) Message {
	var b strings.Builder
	fmt.Fprintf(&b, "Your complaint %q has been registered.\n\n", c.Title)
	fmt.Fprintf(&b, "Reference: %s\n", c.ID)
	fmt.Fprintf(&b, "Status: %s\n", label(c.Status))
	if d := c.Details; d != nil {
		if d.Sector != "" {
			fmt.Fprintf(&b, "Sector: %s\n", d.Sector)
		}
		if d.District != "" {
			fmt.Fprintf(&b, "District: %s\n", d.District)
		}
		if d.Priority != "" {
			fmt.Fprintf(&b, "Priority: %s\n", d.Priority)
		}
	}
	fmt.Fprintf(&b, "Filed: %s\n", c.CreatedAt.Format("02 Jan 2006 15:04 MST"))
	return Message{
		To:      Recipient(c),
		Subject: fmt.Sprintf("Complaint registered: %s", c.Title),
		Body:    b.String(),
	}
}

// Transition is one status move as it happened. Messages render from it
// rather than from the complaint's current status, which may have moved on.
type Transition struct {
	From model.Status
	To   model.Status
	At   time.Time
}

// StatusMessage tells the submitter their complaint moved. Empty fields of t
// fall back to the complaint's current status and update time.
func StatusMessage(c *model.Complaint, t Transition) Message {
	to := t.To
	if to == "" {
		to = c.Status
	}
	at := t.At
	if at.IsZero() {
		at = c.UpdatedAt
	}
	var b strings.Builder
	if t.From != "" && t.From != to {
		fmt.Fprintf(&b, "Your complaint %q moved from %s to %s.\n\n", c.Title, label(t.From), label(to))
	} else {
		fmt.Fprintf(&b, "Your complaint %q is now %s.\n\n", c.Title, label(to))
	}
	fmt.Fprintf(&b, "Reference: %s\n", c.ID)
	fmt.Fprintf(&b, "Updated: %s\n", at.Format("02 Jan 2006 15:04 MST"))
	if to == model.StatusResolved {
		b.WriteString("\nIf the problem persists you can file a new complaint.\n")
	}
	return Message{
		To:      Recipient(c),
		Subject: fmt.Sprintf("Complaint %s: %s", label(to), c.Title),
		Body:    b.String(),
	}
}
