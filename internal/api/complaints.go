package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dharsanguruparan/jansevak/internal/attachment"
	"github.com/dharsanguruparan/jansevak/internal/complaint"
	"github.com/dharsanguruparan/jansevak/internal/model"
)

const (
	imageField     = "image"
	maxFieldBytes  = 64 << 10
	discardTimeout = 10 * time.Second
)

type submitRequest struct {
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Details     *model.Details `json:"details"`
}

type statusRequest struct {
	Status model.Status `json:"status"`
}

// complaintResponse adds a fetchable link for the stored attachment key.
type complaintResponse struct {
	*model.Complaint
	ImageLink string `json:"imageLink,omitempty"`
}

func (s *Server) handleSubmit(c *gin.Context) {
	actor := actorFrom(c)
	mediaType, _, _ := mime.ParseMediaType(c.GetHeader("Content-Type"))
	if mediaType == "multipart/form-data" {
		s.submitMultipart(c, actor)
		return
	}
	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	created, err := s.opts.Service.Submit(c.Request.Context(), actor, complaint.SubmitInput{
		Title:       req.Title,
		Description: req.Description,
		Details:     req.Details,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, s.present(c, created))
}

func (s *Server) submitMultipart(c *gin.Context, actor model.Actor) {
	ctx := c.Request.Context()
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.opts.Limits.MaxBytes+maxFieldBytes*16)
	mr, err := c.Request.MultipartReader()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "expecting multipart form"})
		return
	}
	fields, upload, err := s.readForm(mr)
	if err != nil {
		respondError(c, err)
		return
	}
	defer upload.Close()

	in := complaint.SubmitInput{
		Title:       fields["title"],
		Description: fields["description"],
		Details:     detailsFromForm(fields),
	}
	if err := in.Validate(); err != nil {
		respondError(c, err)
		return
	}
	if upload != nil {
		if s.opts.Attachments == nil {
			respondError(c, model.NewValidationError(imageField, "attachments are disabled"))
			return
		}
		key := attachment.NewKey(upload.Filename, upload.ContentType)
		if err := s.opts.Attachments.Put(ctx, key, upload.File, upload.Size, upload.ContentType); err != nil {
			respondError(c, fmt.Errorf("store attachment: %w", err))
			return
		}
		in.ImageKey = key
	}
	created, err := s.opts.Service.Submit(ctx, actor, in)
	if err != nil {
		if in.ImageKey != "" {
			s.discardAttachment(ctx, in.ImageKey)
		}
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, s.present(c, created))
}

// discardAttachment removes an object whose complaint was never filed. It
// outlives the request so a client hanging up does not leave the object.
func (s *Server) discardAttachment(ctx context.Context, key string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), discardTimeout)
	defer cancel()
	if err := s.opts.Attachments.Delete(ctx, key); err != nil {
		log.Printf("discard attachment %s: %v", key, err)
	}
}

// readForm streams the multipart body. Text fields are collected into a map;
// the image part is spooled to a temp file through attachment.Receive.
func (s *Server) readForm(mr *multipart.Reader) (map[string]string, *attachment.Upload, error) {
	fields := make(map[string]string)
	var upload *attachment.Upload
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return fields, upload, nil
		}
		if err != nil {
			upload.Close()
			return nil, nil, fmt.Errorf("read multipart: %w", err)
		}
		name := part.FormName()
		switch {
		case name == imageField && part.FileName() != "":
			if upload != nil {
				part.Close()
				continue
			}
			upload, err = attachment.Receive(part, imageField, part.FileName(), s.opts.Limits)
			part.Close()
			if err != nil {
				return nil, nil, err
			}
		case name != "":
			value, err := io.ReadAll(io.LimitReader(part, maxFieldBytes+1))
			part.Close()
			if err != nil {
				upload.Close()
				return nil, nil, fmt.Errorf("read field %s: %w", name, err)
			}
			if len(value) > maxFieldBytes {
				upload.Close()
				return nil, nil, model.NewValidationError(name, "is too long")
			}
			fields[name] = string(value)
		default:
			part.Close()
		}
	}
}

func detailsFromForm(f map[string]string) *model.Details {
	notify, _ := strconv.ParseBool(strings.TrimSpace(f["notifyByEmail"]))
	d := &model.Details{
		State:         f["state"],
		District:      f["district"],
		Pincode:       f["pincode"],
		Sector:        f["sector"],
		Priority:      model.Priority(f["priority"]),
		Category:      f["category"],
		Location:      f["location"],
		ContactPhone:  f["contactPhone"],
		ContactEmail:  f["contactEmail"],
		NotifyByEmail: notify,
	}
	if d.IsZero() {
		return nil
	}
	return d
}

func (s *Server) handleListMine(c *gin.Context) {
	list, err := s.opts.Service.ListMine(c.Request.Context(), actorFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.presentAll(c, list))
}

func (s *Server) handleListAll(c *gin.Context) {
	list, err := s.opts.Service.ListAll(c.Request.Context(), actorFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.presentAll(c, list))
}

func (s *Server) handleStats(c *gin.Context) {
	counts, err := s.opts.Service.Stats(c.Request.Context(), actorFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, counts)
}

func (s *Server) handleGet(c *gin.Context) {
	found, err := s.opts.Service.Get(c.Request.Context(), actorFrom(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.present(c, found))
}

func (s *Server) handleUpdateStatus(c *gin.Context) {
	var req statusRequest
	// A malformed body leaves Status empty; the service still checks the
	// role before rejecting it.
	_ = c.ShouldBindJSON(&req)
	updated, err := s.opts.Service.UpdateStatus(c.Request.Context(), actorFrom(c), c.Param("id"), req.Status)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.present(c, updated))
}

func (s *Server) present(c *gin.Context, item *model.Complaint) complaintResponse {
	out := complaintResponse{Complaint: item}
	if item.ImageURL == "" || s.opts.Attachments == nil {
		return out
	}
	link, err := s.opts.Attachments.URL(c.Request.Context(), item.ImageURL)
	if err != nil {
		log.Printf("resolve attachment %s: %v", item.ImageURL, err)
		return out
	}
	out.ImageLink = link
	return out
}

func (s *Server) presentAll(c *gin.Context, list []model.Complaint) []complaintResponse {
	out := make([]complaintResponse, 0, len(list))
	for i := range list {
		out = append(out, s.present(c, &list[i]))
	}
	return out
}
