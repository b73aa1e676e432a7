// Package attachment receives complaint images and evidence files and keeps
// them in an object store.
package attachment

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"strings"

	"github.com/google/uuid"

	"github.com/dharsanguruparan/jansevak/internal/model"
)

const sniffLen = 512

// Limits bounds what Receive accepts.
type Limits struct {
	MaxBytes     int64
	AllowedTypes []string
}

// Allowed reports whether contentType is on the allow-list. Parameters such
// as "; charset=utf-8" are ignored.
func (l Limits) Allowed(contentType string) bool {
	base := strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0])
	for _, t := range l.AllowedTypes {
		if strings.EqualFold(t, base) {
			return true
		}
	}
	return false
}

// Upload is a received file spooled to a temp file and rewound.
type Upload struct {
	File        *os.File
	Size        int64
	ContentType string
	Filename    string
}

// Close closes and removes the temp file.
func (u *Upload) Close() error {
	if u == nil || u.File == nil {
		return nil
	}
	name := u.File.Name()
	err := u.File.Close()
	if rmErr := os.Remove(name); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) && err == nil {
		err = rmErr
	}
	return err
}

// IsPDF reports whether the upload sniffed as a PDF.
func (u *Upload) IsPDF() bool {
	return strings.HasPrefix(u.ContentType, "application/pdf")
}

// Receive streams r to a temp file, enforcing the size limit, then sniffs the
// content type from the first bytes and checks it against the allow-list.
// Failures that are the client's fault come back as *model.ValidationError on
// the given field.
func Receive(r io.Reader, field, filename string, limits Limits) (*Upload, error) {
	tmp, err := os.CreateTemp("", "jansevak-upload-*")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	fail := func(err error) (*Upload, error) {
		tmp.Close()
		os.Remove(tmp.Name())
		return nil, err
	}

	var sniff []byte
	buf := make([]byte, 32*1024)
	var written int64
	for {
		n, readErr := r.Read(buf)
		if n > 0 {
			written += int64(n)
			if limits.MaxBytes > 0 && written > limits.MaxBytes {
				return fail(model.NewValidationError(field, fmt.Sprintf("exceeds limit of %d bytes", limits.MaxBytes)))
			}
			if len(sniff) < sniffLen {
				chunk := n
				if remain := sniffLen - len(sniff); chunk > remain {
					chunk = remain
				}
				sniff = append(sniff, buf[:chunk]...)
			}
			if _, err := tmp.Write(buf[:n]); err != nil {
				return fail(fmt.Errorf("write temp file: %w", err))
			}
		}
		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				break
			}
			return fail(fmt.Errorf("read upload: %w", readErr))
		}
	}
	if written == 0 {
		return fail(model.NewValidationError(field, "is empty"))
	}
	contentType := http.DetectContentType(sniff)
	if !limits.Allowed(contentType) {
		return fail(model.NewValidationError(field, fmt.Sprintf("type %s is not allowed", contentType)))
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		return fail(fmt.Errorf("rewind temp file: %w", err))
	}
	return &Upload{
		File:        tmp,
		Size:        written,
		ContentType: contentType,
		Filename:    cleanFilename(filename),
	}, nil
}

// NewKey returns a fresh object key for filename under the complaints prefix.
// PDFs always get a .pdf suffix so IsPDFKey can tell them apart.
func NewKey(filename, contentType string) string {
	name := cleanFilename(filename)
	if strings.HasPrefix(contentType, "application/pdf") && !IsPDFKey(name) {
		name += ".pdf"
	}
	return path.Join("complaints", uuid.NewString(), name)
}

// IsPDFKey reports whether key names a PDF attachment.
func IsPDFKey(key string) bool {
	return strings.EqualFold(path.Ext(key), ".pdf")
}

func cleanFilename(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.Map(func(r rune) rune {
		switch {
		case r == '/' || r == '?' || r == '#' || r == '%' || r < 0x20:
			return '_'
		}
		return r
	}, name)
	if name == "" || name == "." || name == ".." {
		return "upload"
	}
	return name
}
