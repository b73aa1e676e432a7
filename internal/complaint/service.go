// Package complaint applies the business rules around complaints: input
// validation, id and timestamp assignment, and who may see or change what.
package complaint

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/dharsanguruparan/jansevak/internal/model"
	"github.com/dharsanguruparan/jansevak/internal/stats"
)

const (
	MinTitleLength       = 5
	MinDescriptionLength = 10
)

// Store is the persistence contract. storage.MemoryStore and
// repository.ComplaintRepository both satisfy it.
type Store interface {
	Create(ctx context.Context, c *model.Complaint) (*model.Complaint, error)
	All(ctx context.Context) ([]model.Complaint, error)
	ByUser(ctx context.Context, userID string) ([]model.Complaint, error)
	Get(ctx context.Context, id string) (*model.Complaint, error)
	UpdateStatus(ctx context.Context, id string, status model.Status) (*model.Complaint, error)
}

// Notifier is told about lifecycle events after they are persisted. Errors
// are logged and never fail the request.
type Notifier interface {
	ComplaintCreated(ctx context.Context, c *model.Complaint) error
	StatusChanged(ctx context.Context, c *model.Complaint, previous model.Status) error
}

// SubmitInput is what a citizen provides when filing a complaint.
type SubmitInput struct {
	Title       string
	Description string
	// ImageKey is the object key of an already stored attachment.
	ImageKey string
	Details  *model.Details
}

// Validate checks the input without filing anything.
func (in SubmitInput) Validate() error {
	_, _, _, err := in.normalize()
	return err
}

func (in SubmitInput) normalize() (title, description string, details *model.Details, err error) {
	title = strings.TrimSpace(in.Title)
	description = strings.TrimSpace(in.Description)
	if utf8.RuneCountInString(title) < MinTitleLength {
		return "", "", nil, model.NewValidationError("title", fmt.Sprintf("must be at least %d characters", MinTitleLength))
	}
	if utf8.RuneCountInString(description) < MinDescriptionLength {
		return "", "", nil, model.NewValidationError("description", fmt.Sprintf("must be at least %d characters", MinDescriptionLength))
	}
	if !in.Details.IsZero() {
		d := *in.Details
		d.Normalize()
		if err := d.Validate(); err != nil {
			return "", "", nil, err
		}
		details = &d
	}
	return title, description, details, nil
}

// Service is the only component that applies business rules.
type Service struct {
	store    Store
	notifier Notifier
	now      func() time.Time
	newID    func() string
}

// Option customises a Service.
type Option func(*Service)

// WithNotifier sets the notifier used after creates and status changes.
func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithIDGenerator overrides how complaint ids are minted.
func WithIDGenerator(gen func() string) Option {
	return func(s *Service) { s.newID = gen }
}

// NewService wires a Service around store.
func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store: store,
		now:   func() time.Time { return time.Now().UTC() },
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit validates the input and files a new PENDING complaint owned by actor.
func (s *Service) Submit(ctx context.Context, actor model.Actor, in SubmitInput) (*model.Complaint, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	title, description, details, err := in.normalize()
	if err != nil {
		return nil, err
	}
	now := s.now()
	c := &model.Complaint{
		ID:          s.newID(),
		Title:       title,
		Description: description,
		Status:      model.StatusPending,
		UserID:      actor.ID,
		Details:     details,
		ImageURL:    in.ImageKey,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	created, err := s.store.Create(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("create complaint: %w", err)
	}
	if s.notifier != nil {
		if err := s.notifier.ComplaintCreated(ctx, created); err != nil {
			log.Printf("notify created %s: %v", created.ID, err)
		}
	}
	return created, nil
}

// ListMine returns the actor's own complaints.
func (s *Service) ListMine(ctx context.Context, actor model.Actor) ([]model.Complaint, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	return s.store.ByUser(ctx, actor.ID)
}

// ListAll returns every complaint. Admin only.
func (s *Service) ListAll(ctx context.Context, actor model.Actor) ([]model.Complaint, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	return s.store.All(ctx)
}

// Get returns one complaint to its owner or an admin.
func (s *Service) Get(ctx context.Context, actor model.Actor, id string) (*model.Complaint, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	c, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && c.UserID != actor.ID {
		return nil, model.ErrForbidden
	}
	return c, nil
}

// UpdateStatus moves a complaint to status. Admin only; any transition is
// allowed, including moving back to PENDING.
func (s *Service) UpdateStatus(ctx context.Context, actor model.Actor, id string, status model.Status) (*model.Complaint, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if !status.Valid() {
		return nil, model.NewValidationError("status", "must be one of PENDING, IN_PROGRESS, RESOLVED")
	}
	var previous model.Status
	if s.notifier != nil {
		if before, err := s.store.Get(ctx, id); err == nil {
			previous = before.Status
		}
	}
	updated, err := s.store.UpdateStatus(ctx, id, status)
	if err != nil {
		return nil, err
	}
	if s.notifier != nil {
		if err := s.notifier.StatusChanged(ctx, updated, previous); err != nil {
			log.Printf("notify status change %s: %v", updated.ID, err)
		}
	}
	return updated, nil
}

// Stats counts complaints per status. Admin only.
func (s *Service) Stats(ctx context.Context, actor model.Actor) (stats.Counts, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	all, err := s.store.All(ctx)
	if err != nil {
		return nil, err
	}
	return stats.Aggregate(all), nil
}

func requireActor(actor model.Actor) error {
	if actor.ID == "" {
		return fmt.Errorf("missing actor: %w", model.ErrForbidden)
	}
	return nil
}

func requireAdmin(actor model.Actor) error {
	if err := requireActor(actor); err != nil {
		return err
	}
	if !actor.IsAdmin() {
		return fmt.Errorf("admin role required: %w", model.ErrForbidden)
	}
	return nil
}
