package domain

import (
	"testing"
	"time"
)

func TestNormalizeStatusLegacyAliases(t *testing.T) {
	cases := map[string]DocumentStatus{
		"generated": StatusReady,
		"approved":  StatusSigned,
		"required":  StatusRequired,
		"rejected":  StatusRejected,
	}
	for raw, want := range cases {
		if got := NormalizeStatus(raw); got != want {
			t.Errorf("NormalizeStatus(%q) = %q, want %q", raw, got, want)
		}
	}
}

func TestParseDocumentStatusRejectsUnknown(t *testing.T) {
	if _, ok := ParseDocumentStatus("archived"); ok {
		t.Fatalf("expected unknown status to be rejected")
	}
	if s, ok := ParseDocumentStatus("generated"); !ok || s != StatusReady {
		t.Fatalf("expected legacy status to normalize, got %q ok=%v", s, ok)
	}
}

func TestParseDocumentKey(t *testing.T) {
	if _, ok := ParseDocumentKey("visa"); ok {
		t.Fatalf("expected unknown key to be rejected")
	}
	if k, ok := ParseDocumentKey("bill_of_lading"); !ok || k != KeyBillOfLading {
		t.Fatalf("got %q ok=%v", k, ok)
	}
}

func TestSystemRenderableOnlyCommercialDocs(t *testing.T) {
	renderable := []DocumentKey{KeyInvoice, KeyPackingList}
	for _, k := range renderable {
		if !k.SystemRenderable() {
			t.Errorf("%s should be system-renderable", k)
		}
	}
	uploadOnly := []DocumentKey{
		KeyCertificateOrigin, KeyPhytosanitary, KeyInsurance, KeyBillOfLading, KeyCustomsExport,
	}
	for _, k := range uploadOnly {
		if k.SystemRenderable() {
			t.Errorf("%s should not be system-renderable", k)
		}
	}
}

func TestAppendVersionNumbersSequentially(t *testing.T) {
	rec := &DocumentRecord{ID: "rec-1", ShipmentID: "shp-1", Key: KeyInvoice, Status: StatusRequired}
	now := time.Now().UTC()

	for i := 1; i <= 3; i++ {
		v := rec.AppendVersion(DocumentVersion{CreatedAt: now, CreatedBy: "tester", FileRef: "ref", FileName: "f.pdf"})
		if v.Number != i {
			t.Fatalf("append %d assigned number %d", i, v.Number)
		}
		if rec.CurrentVersion != i {
			t.Fatalf("current version %d after append %d", rec.CurrentVersion, i)
		}
		if rec.Status != StatusReady {
			t.Fatalf("status %q after append, want %q", rec.Status, StatusReady)
		}
	}
	for i, v := range rec.Versions {
		if v.Number != i+1 {
			t.Fatalf("version at index %d has number %d", i, v.Number)
		}
	}
}

func TestRequirementSetSemantics(t *testing.T) {
	set := NewRequirementSet(KeyPhytosanitary, KeyCertificateOrigin, KeyPhytosanitary)
	if len(set) != 2 {
		t.Fatalf("expected deduplication, got %d members", len(set))
	}
	if !set.Equal(NewRequirementSet(KeyCertificateOrigin, KeyPhytosanitary)) {
		t.Fatalf("set equality should be order-independent")
	}
	keys := set.Keys()
	if len(keys) != 2 || keys[0] != KeyCertificateOrigin || keys[1] != KeyPhytosanitary {
		t.Fatalf("Keys() not stable-sorted: %v", keys)
	}
}
