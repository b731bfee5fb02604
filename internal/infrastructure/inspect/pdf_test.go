package inspect

import (
	"strings"
	"testing"
)

func TestInspectPassesNonPDFThrough(t *testing.T) {
	inspector := New(0)
	if err := inspector.Inspect("certificate.jpg", []byte{0xFF, 0xD8, 0xFF}); err != nil {
		t.Fatalf("non-pdf upload must pass: %v", err)
	}
}

func TestInspectRejectsCorruptPDF(t *testing.T) {
	inspector := New(0)
	if err := inspector.Inspect("broken.pdf", []byte("this is not a pdf")); err == nil {
		t.Fatalf("expected corrupt pdf to be rejected")
	}
}

func TestInspectEnforcesSizeLimit(t *testing.T) {
	inspector := New(8)
	err := inspector.Inspect("big.bin", []byte(strings.Repeat("x", 16)))
	if err == nil {
		t.Fatalf("expected size limit violation")
	}
}
