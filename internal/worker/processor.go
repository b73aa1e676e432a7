// Package worker runs the background side of the complaint lifecycle:
// notification emails and PDF text extraction.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/hibiken/asynq"

	"github.com/dharsanguruparan/jansevak/internal/model"
	"github.com/dharsanguruparan/jansevak/internal/notify"
	pdfutil "github.com/dharsanguruparan/jansevak/internal/pdf"
	"github.com/dharsanguruparan/jansevak/internal/queue"
)

// Store is what the worker reads and writes.
type Store interface {
	Get(ctx context.Context, id string) (*model.Complaint, error)
	SetAttachmentText(ctx context.Context, id, text string) error
}

// Objects fetches attachment bytes. attachment.Store satisfies it.
type Objects interface {
	Get(ctx context.Context, key string) ([]byte, error)
}

// Processor holds the task handlers shared by the asynq worker and the
// in-process pool.
type Processor struct {
	store   Store
	objects Objects
	mailer  notify.Sender
	guard   Guard
}

// NewProcessor constructs a worker processor. guard may be nil.
func NewProcessor(store Store, objects Objects, mailer notify.Sender, guard Guard) *Processor {
	return &Processor{store: store, objects: objects, mailer: mailer, guard: guard}
}

// NotifyCreated emails the acknowledgement for complaint id.
func (p *Processor) NotifyCreated(ctx context.Context, id string) error {
	c, err := p.store.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("load complaint %s: %w", id, err)
	}
	return p.deliver(ctx, notify.CreatedMessage(c))
}

// NotifyStatus emails the status change for complaint id. The complaint is
// loaded for its title and contact details; the status shown comes from change.
func (p *Processor) NotifyStatus(ctx context.Context, id string, change notify.Transition) error {
	c, err := p.store.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("load complaint %s: %w", id, err)
	}
	return p.deliver(ctx, notify.StatusMessage(c, change))
}

// ExtractAttachment stores a text preview of the PDF at key on complaint id.
// Attachments that are not PDFs are skipped.
func (p *Processor) ExtractAttachment(ctx context.Context, id, key string) error {
	data, err := p.objects.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("download %s: %w", key, err)
	}
	if !strings.HasPrefix(http.DetectContentType(data), "application/pdf") {
		log.Printf("attachment %s is not a pdf, skipping", key)
		return nil
	}
	text, err := pdfutil.Preview(data, pdfutil.PreviewLimit)
	if err != nil {
		return fmt.Errorf("extract %s: %w", key, err)
	}
	if err := p.store.SetAttachmentText(ctx, id, text); err != nil {
		return fmt.Errorf("save attachment text: %w", err)
	}
	log.Printf("complaint %s attachment processed (%d bytes)", id, len(text))
	return nil
}

func (p *Processor) deliver(ctx context.Context, msg notify.Message) error {
	if msg.To == "" || p.mailer == nil {
		return nil
	}
	return p.mailer.Send(ctx, msg)
}

// Handler registers the task handlers.
func (p *Processor) Handler() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.TaskComplaintCreated, p.handleCreated)
	mux.HandleFunc(queue.TaskStatusChanged, p.handleStatus)
	mux.HandleFunc(queue.TaskExtractAttachment, p.handleExtract)
	return mux
}

func (p *Processor) handleCreated(ctx context.Context, task *asynq.Task) error {
	var payload queue.NotifyPayload
	if err := decode(task, &payload); err != nil {
		return err
	}
	return p.once(ctx, task, func() error {
		return p.NotifyCreated(ctx, payload.ComplaintID)
	})
}

func (p *Processor) handleStatus(ctx context.Context, task *asynq.Task) error {
	var payload queue.NotifyPayload
	if err := decode(task, &payload); err != nil {
		return err
	}
	return p.once(ctx, task, func() error {
		return p.NotifyStatus(ctx, payload.ComplaintID, notify.Transition{
			From: payload.Previous,
			To:   payload.Status,
			At:   payload.ChangedAt,
		})
	})
}

func (p *Processor) handleExtract(ctx context.Context, task *asynq.Task) error {
	var payload queue.ExtractPayload
	if err := decode(task, &payload); err != nil {
		return err
	}
	return p.once(ctx, task, func() error {
		return p.ExtractAttachment(ctx, payload.ComplaintID, payload.ObjectKey)
	})
}

func (p *Processor) once(ctx context.Context, task *asynq.Task, fn func() error) error {
	taskID, _ := asynq.GetTaskID(ctx)
	return finish(task.Type(), p.runOnce(ctx, task.Type(), taskID, fn))
}

// runOnce runs fn unless the guard says this task already completed. The
// guard is released when fn fails so asynq's retry runs it again.
func (p *Processor) runOnce(ctx context.Context, taskType, taskID string, fn func() error) error {
	if p.guard == nil || taskID == "" {
		return fn()
	}
	key := taskType + ":" + taskID
	acquired, err := p.guard.Acquire(ctx, key)
	if err != nil {
		log.Printf("%s: idempotency check failed: %v", taskType, err)
	} else if !acquired {
		log.Printf("%s: %s already processed", taskType, taskID)
		return nil
	}
	if err := fn(); err != nil {
		if acquired {
			if relErr := p.guard.Release(ctx, key); relErr != nil {
				log.Printf("%s: release guard: %v", taskType, relErr)
			}
		}
		return err
	}
	return nil
}

// finish drops tasks that can never succeed instead of retrying them.
func finish(taskType string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, model.ErrNotFound) {
		log.Printf("%s: %v, skipping retry", taskType, err)
		return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
	}
	log.Printf("%s failed: %v", taskType, err)
	return err
}

func decode(task *asynq.Task, v any) error {
	if err := json.Unmarshal(task.Payload(), v); err != nil {
		return fmt.Errorf("decode payload: %w", asynq.SkipRetry)
	}
	return nil
}
