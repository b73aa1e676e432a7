// Package processing runs notification and extraction work on an in-process
// goroutine pool. It stands in for the asynq worker in demo mode.
package processing

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/dharsanguruparan/jansevak/internal/attachment"
	"github.com/dharsanguruparan/jansevak/internal/model"
	"github.com/dharsanguruparan/jansevak/internal/notify"
)

// Kind names the work a Job carries.
type Kind string

const (
	KindCreated Kind = "created"
	KindStatus  Kind = "status"
	KindExtract Kind = "extract"
)

// Job represents background processing work. Status jobs carry the move
// they report.
type Job struct {
	Kind        Kind
	ComplaintID string
	Previous    model.Status
	Status      model.Status
	ChangedAt   time.Time
	ObjectKey   string
}

// Handler does the actual work. worker.Processor satisfies it.
type Handler interface {
	NotifyCreated(ctx context.Context, id string) error
	NotifyStatus(ctx context.Context, id string, change notify.Transition) error
	ExtractAttachment(ctx context.Context, id, key string) error
}

// Pool consumes Jobs on a fixed number of goroutines.
type Pool struct {
	handler Handler
	queue   chan Job
	workers int
	wg      sync.WaitGroup
	once    sync.Once
}

// New builds a Pool with queue capacity tied to worker count.
func New(handler Handler, workers int) *Pool {
	if workers <= 0 {
		workers = 1
	}
	return &Pool{
		handler: handler,
		queue:   make(chan Job, workers*16),
		workers: workers,
	}
}

// Start launches worker goroutines. They exit when ctx is cancelled.
func (p *Pool) Start(ctx context.Context) {
	p.once.Do(func() {
		for i := 0; i < p.workers; i++ {
			p.wg.Add(1)
			go p.worker(ctx)
		}
	})
}

// Wait blocks until every worker has exited.
func (p *Pool) Wait() {
	p.wg.Wait()
}

// Submit queues a job. When the queue is full the job is dropped and logged;
// submitters never block.
func (p *Pool) Submit(job Job) bool {
	select {
	case p.queue <- job:
		return true
	default:
		log.Printf("processing queue full, dropping %s job for %s", job.Kind, job.ComplaintID)
		return false
	}
}

// ComplaintCreated queues the acknowledgement and, for PDF attachments, text
// extraction.
func (p *Pool) ComplaintCreated(_ context.Context, c *model.Complaint) error {
	p.Submit(Job{Kind: KindCreated, ComplaintID: c.ID})
	if c.ImageURL != "" && attachment.IsPDFKey(c.ImageURL) {
		p.Submit(Job{Kind: KindExtract, ComplaintID: c.ID, ObjectKey: c.ImageURL})
	}
	return nil
}

// StatusChanged queues the status update email.
func (p *Pool) StatusChanged(_ context.Context, c *model.Complaint, previous model.Status) error {
	p.Submit(Job{
		Kind:        KindStatus,
		ComplaintID: c.ID,
		Previous:    previous,
		Status:      c.Status,
		ChangedAt:   c.UpdatedAt,
	})
	return nil
}

func (p *Pool) worker(ctx context.Context) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-p.queue:
			p.process(ctx, job)
		}
	}
}

func (p *Pool) process(ctx context.Context, job Job) {
	var err error
	switch job.Kind {
	case KindCreated:
		err = p.handler.NotifyCreated(ctx, job.ComplaintID)
	case KindStatus:
		err = p.handler.NotifyStatus(ctx, job.ComplaintID, notify.Transition{
			From: job.Previous,
			To:   job.Status,
			At:   job.ChangedAt,
		})
	case KindExtract:
		err = p.handler.ExtractAttachment(ctx, job.ComplaintID, job.ObjectKey)
	default:
		log.Printf("unknown job kind %q", job.Kind)
		return
	}
	if err != nil {
		log.Printf("%s job for %s failed: %v", job.Kind, job.ComplaintID, err)
	}
}
