// Package repository is the Postgres-backed complaint store.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dharsanguruparan/jansevak/internal/model"
)

const uniqueViolation = "23505"

const complaintColumns = `id, title, description, status, user_id, image_url, details, attachment_text, created_at, updated_at`

// DB is the subset of *pgxpool.Pool the repository needs.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// ComplaintRepository wraps all SQL used by the API, worker and CLI.
type ComplaintRepository struct {
	db  DB
	now func() time.Time
}

// NewComplaintRepository constructs a repository.
func NewComplaintRepository(db DB) *ComplaintRepository {
	return &ComplaintRepository{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
}

// Create inserts a complaint. The primary key makes duplicate ids fail
// atomically; the violation is reported as model.ErrDuplicateID.
func (r *ComplaintRepository) Create(ctx context.Context, c *model.Complaint) (*model.Complaint, error) {
	details, err := encodeDetails(c.Details)
	if err != nil {
		return nil, err
	}
	updatedAt := c.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = c.CreatedAt
	}
	row := r.db.QueryRow(ctx, `
		INSERT INTO complaints (id, title, description, status, user_id, image_url, details, attachment_text, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,NULL,$8,$9)
		RETURNING `+complaintColumns,
		c.ID, c.Title, c.Description, string(c.Status), c.UserID, nullable(c.ImageURL), details, c.CreatedAt, updatedAt)
	out, err := scanComplaint(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, model.ErrDuplicateID
		}
		return nil, fmt.Errorf("insert complaint: %w", err)
	}
	return out, nil
}

// All returns every complaint in creation order.
func (r *ComplaintRepository) All(ctx context.Context) ([]model.Complaint, error) {
	return r.list(ctx, `SELECT `+complaintColumns+` FROM complaints ORDER BY seq`)
}

// ByUser returns the complaints owned by userID in creation order.
func (r *ComplaintRepository) ByUser(ctx context.Context, userID string) ([]model.Complaint, error) {
	return r.list(ctx, `SELECT `+complaintColumns+` FROM complaints WHERE user_id=$1 ORDER BY seq`, userID)
}

func (r *ComplaintRepository) list(ctx context.Context, query string, args ...any) ([]model.Complaint, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select complaints: %w", err)
	}
	defer rows.Close()
	out := make([]model.Complaint, 0)
	for rows.Next() {
		c, err := scanComplaint(rows)
		if err != nil {
			return nil, fmt.Errorf("scan complaint: %w", err)
		}
		out = append(out, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate complaints: %w", err)
	}
	return out, nil
}

// Get returns a complaint by id.
func (r *ComplaintRepository) Get(ctx context.Context, id string) (*model.Complaint, error) {
	row := r.db.QueryRow(ctx, `SELECT `+complaintColumns+` FROM complaints WHERE id=$1`, id)
	c, err := scanComplaint(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrNotFound
		}
		return nil, fmt.Errorf("select complaint: %w", err)
	}
	return c, nil
}

// UpdateStatus sets the status in a single statement; concurrent updates are
// last-write-wins.
func (r *ComplaintRepository) UpdateStatus(ctx context.Context, id string, status model.Status) (*model.Complaint, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE complaints
		SET status=$1, updated_at=$2
		WHERE id=$3
		RETURNING `+complaintColumns,
		string(status), r.now(), id)
	c, err := scanComplaint(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrNotFound
		}
		return nil, fmt.Errorf("update complaint: %w", err)
	}
	return c, nil
}

// SetAttachmentText stores the extracted attachment preview.
func (r *ComplaintRepository) SetAttachmentText(ctx context.Context, id, text string) error {
	tag, err := r.db.Exec(ctx, `UPDATE complaints SET attachment_text=$1 WHERE id=$2`, text, id)
	if err != nil {
		return fmt.Errorf("update attachment text: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanComplaint(row scanner) (*model.Complaint, error) {
	var (
		c              model.Complaint
		imageURL       sql.NullString
		attachmentText sql.NullString
		details        []byte
		status         string
	)
	if err := row.Scan(&c.ID, &c.Title, &c.Description, &status, &c.UserID, &imageURL, &details, &attachmentText, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	c.Status = model.Status(status)
	c.ImageURL = imageURL.String
	c.AttachmentText = attachmentText.String
	if len(details) > 0 {
		var d model.Details
		if err := json.Unmarshal(details, &d); err != nil {
			return nil, fmt.Errorf("decode details: %w", err)
		}
		c.Details = &d
	}
	c.CreatedAt = c.CreatedAt.UTC()
	c.UpdatedAt = c.UpdatedAt.UTC()
	return &c, nil
}

func encodeDetails(d *model.Details) ([]byte, error) {
	if d.IsZero() {
		return nil, nil
	}
	data, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("encode details: %w", err)
	}
	return data, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
