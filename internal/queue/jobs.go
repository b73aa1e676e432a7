// Package queue turns complaint lifecycle events into asynq tasks.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/dharsanguruparan/jansevak/internal/attachment"
	"github.com/dharsanguruparan/jansevak/internal/model"
)

const (
	// TaskComplaintCreated is scheduled after every successful submit.
	TaskComplaintCreated = "complaint:created"
	// TaskStatusChanged is scheduled after an admin moves a complaint.
	TaskStatusChanged = "complaint:status"
	// TaskExtractAttachment is scheduled when the attachment is a PDF.
	TaskExtractAttachment = "complaint:extract"

	maxRetry = 5
)

// NotifyPayload identifies the complaint a notification is about. For status
// changes it records the move itself, since the complaint may change again
// before the worker runs.
type NotifyPayload struct {
	ComplaintID string       `json:"complaint_id"`
	Status      model.Status `json:"status,omitempty"`
	Previous    model.Status `json:"previous,omitempty"`
	ChangedAt   time.Time    `json:"changed_at,omitempty"`
}

// ExtractPayload tells the worker which object to download.
type ExtractPayload struct {
	ComplaintID string `json:"complaint_id"`
	ObjectKey   string `json:"object_key"`
}

// Enqueuer is the part of *asynq.Client the queue uses.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Client implements complaint.Notifier on top of asynq.
type Client struct {
	enqueuer Enqueuer
}

// NewClient wraps an asynq client.
func NewClient(enqueuer Enqueuer) *Client {
	return &Client{enqueuer: enqueuer}
}

// ComplaintCreated schedules the acknowledgement and, for PDF attachments,
// text extraction.
func (c *Client) ComplaintCreated(ctx context.Context, complaint *model.Complaint) error {
	err := c.enqueue(ctx, TaskComplaintCreated, NotifyPayload{
		ComplaintID: complaint.ID,
		Status:      complaint.Status,
	})
	if err != nil {
		return err
	}
	if complaint.ImageURL != "" && attachment.IsPDFKey(complaint.ImageURL) {
		return c.EnqueueExtract(ctx, ExtractPayload{
			ComplaintID: complaint.ID,
			ObjectKey:   complaint.ImageURL,
		})
	}
	return nil
}

// StatusChanged schedules the status update email.
func (c *Client) StatusChanged(ctx context.Context, complaint *model.Complaint, previous model.Status) error {
	return c.enqueue(ctx, TaskStatusChanged, NotifyPayload{
		ComplaintID: complaint.ID,
		Status:      complaint.Status,
		Previous:    previous,
		ChangedAt:   complaint.UpdatedAt,
	})
}

// EnqueueExtract enqueues a PDF extraction job.
func (c *Client) EnqueueExtract(ctx context.Context, payload ExtractPayload) error {
	return c.enqueue(ctx, TaskExtractAttachment, payload)
}

func (c *Client) enqueue(ctx context.Context, taskType string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	task := asynq.NewTask(taskType, data)
	if _, err := c.enqueuer.EnqueueContext(ctx, task, asynq.MaxRetry(maxRetry)); err != nil {
		return fmt.Errorf("enqueue %s task: %w", taskType, err)
	}
	return nil
}
