// Package pdfutil pulls plain text out of PDF evidence attached to complaints.
package pdfutil

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"

	pdf "github.com/ledongthuc/pdf"
)

// PreviewLimit caps the text kept on a complaint.
const PreviewLimit = 4 << 10

// ExtractText reads PDF bytes and returns plain text using ledongthuc/pdf.
func ExtractText(data []byte) (string, error) {
	reader := bytes.NewReader(data)
	doc, err := pdf.NewReader(reader, int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("new pdf reader: %w", err)
	}
	var builder strings.Builder
	total := doc.NumPage()
	for page := 1; page <= total; page++ {
		p := doc.Page(page)
		if p.V.IsNull() {
			continue
		}
		content, err := p.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("page %d: %w", page, err)
		}
		builder.WriteString(content)
		builder.WriteString("\n")
	}
	return builder.String(), nil
}

// Preview extracts the text of data and trims it to at most limit bytes
// without splitting a UTF-8 sequence.
func Preview(data []byte, limit int) (string, error) {
	text, err := ExtractText(data)
	if err != nil {
		return "", err
	}
	return Truncate(strings.Join(strings.Fields(text), " "), limit), nil
}

// Truncate cuts s to at most limit bytes on a rune boundary.
func Truncate(s string, limit int) string {
	if limit <= 0 || len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
