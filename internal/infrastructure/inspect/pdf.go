// Package inspect performs structural checks on uploaded document payloads
// before they reach storage.
package inspect

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

// Inspector validates uploads. PDF files must parse and contain at least one
// page; other file types pass through untouched, matching the upload
// contract that accepts any externally produced document.
type Inspector struct {
	maxSizeBytes int64
}

func New(maxSizeBytes int64) *Inspector {
	return &Inspector{maxSizeBytes: maxSizeBytes}
}

func (i *Inspector) Inspect(filename string, data []byte) error {
	if i.maxSizeBytes > 0 && int64(len(data)) > i.maxSizeBytes {
		return fmt.Errorf("file %s exceeds %d bytes", filename, i.maxSizeBytes)
	}
	if strings.ToLower(filepath.Ext(filename)) != ".pdf" {
		return nil
	}

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return fmt.Errorf("file %s is not a readable pdf: %w", filename, err)
	}
	if reader.NumPage() < 1 {
		return fmt.Errorf("file %s contains no pages", filename)
	}
	return nil
}
