package notify

import (
	"context"
	"errors"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dharsanguruparan/jansevak/internal/model"
)

func sampleComplaint() *model.Complaint {
	at := time.Date(2024, 5, 1, 8, 30, 0, 0, time.UTC)
	return &model.Complaint{
		ID:          "c-42",
		Title:       "Pothole on Main St",
		Description: "Large pothole near the bus stop",
		Status:      model.StatusPending,
		UserID:      "u1",
		Details: &model.Details{
			District:      "Pune",
			Sector:        "infrastructure",
			Priority:      model.PriorityHigh,
			ContactEmail:  "citizen@example.com",
			NotifyByEmail: true,
		},
		CreatedAt: at,
		UpdatedAt: at,
	}
}

func TestRecipient(t *testing.T) {
	c := sampleComplaint()
	assert.Equal(t, "citizen@example.com", Recipient(c))

	c.Details.NotifyByEmail = false
	assert.Empty(t, Recipient(c), "opted out")

	c.Details = nil
	assert.Empty(t, Recipient(c))
	assert.Empty(t, Recipient(nil))
}

func TestCreatedMessage(t *testing.T) {
	msg := CreatedMessage(sampleComplaint())
	assert.Equal(t, "citizen@example.com", msg.To)
	assert.Equal(t, "Complaint registered: Pothole on Main St", msg.Subject)
	assert.Contains(t, msg.Body, "Reference: c-42")
	assert.Contains(t, msg.Body, "Status: Pending")
	assert.Contains(t, msg.Body, "District: Pune")
	assert.Contains(t, msg.Body, "Priority: high")
}

func TestStatusMessage(t *testing.T) {
	c := sampleComplaint()
	c.Status = model.StatusResolved

	msg := StatusMessage(c, Transition{From: model.StatusPending})
	assert.Equal(t, "Complaint Resolved: Pothole on Main St", msg.Subject)
	assert.Contains(t, msg.Body, "moved from Pending to Resolved")
	assert.Contains(t, msg.Body, "file a new complaint")

	msg = StatusMessage(c, Transition{})
	assert.Contains(t, msg.Body, "is now Resolved")
}

func TestStatusMessageUsesTransitionOverCurrentStatus(t *testing.T) {
	c := sampleComplaint()
	c.Status = model.StatusResolved
	c.UpdatedAt = time.Date(2024, 3, 2, 10, 0, 0, 0, time.UTC)
	movedAt := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)

	msg := StatusMessage(c, Transition{From: model.StatusPending, To: model.StatusInProgress, At: movedAt})
	assert.Equal(t, "Complaint In Progress: Pothole on Main St", msg.Subject)
	assert.Contains(t, msg.Body, "moved from Pending to In Progress")
	assert.Contains(t, msg.Body, "Updated: 01 Mar 2024 09:30 UTC")
	assert.NotContains(t, msg.Body, "Resolved")
	assert.NotContains(t, msg.Body, "file a new complaint")
}

func TestSMTPMailerRetriesThenSucceeds(t *testing.T) {
	m := NewSMTPMailer("mail.local:25", "", "", "noreply@jansevak.local")
	m.delay = time.Millisecond
	calls := 0
	var sent []byte
	m.send = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		calls++
		if calls < 3 {
			return errors.New("421 try again later")
		}
		assert.Equal(t, "mail.local:25", addr)
		assert.Equal(t, []string{"citizen@example.com"}, to)
		sent = msg
		return nil
	}

	msg := CreatedMessage(sampleComplaint())
	msg.Subject = "line one\r\nBcc: evil@example.com"
	require.NoError(t, m.Send(context.Background(), msg))
	assert.Equal(t, 3, calls)

	headers := strings.SplitN(string(sent), "\r\n\r\n", 2)[0]
	assert.NotContains(t, headers, "\r\nBcc:")
	assert.Contains(t, headers, "Content-Type: text/plain; charset=utf-8")
}

func TestSMTPMailerGivesUp(t *testing.T) {
	m := NewSMTPMailer("mail.local:25", "user", "pw", "noreply@jansevak.local")
	m.delay = time.Millisecond
	calls := 0
	boom := errors.New("550 mailbox unavailable")
	m.send = func(string, smtp.Auth, string, []string, []byte) error {
		calls++
		return boom
	}
	err := m.Send(context.Background(), CreatedMessage(sampleComplaint()))
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, maxSendAttempts, calls)
}

func TestSMTPMailerRequiresRecipient(t *testing.T) {
	m := NewSMTPMailer("mail.local:25", "", "", "noreply@jansevak.local")
	m.send = func(string, smtp.Auth, string, []string, []byte) error {
		t.Fatal("should not send")
		return nil
	}
	assert.Error(t, m.Send(context.Background(), Message{Subject: "x"}))
}
