package domain

import (
	"sort"
	"time"
)

type DocumentKey string

const (
	KeyInvoice           DocumentKey = "invoice"
	KeyPackingList       DocumentKey = "packing_list"
	KeyCertificateOrigin DocumentKey = "certificate_of_origin"
	KeyPhytosanitary     DocumentKey = "phytosanitary_certificate"
	KeyInsurance         DocumentKey = "insurance_certificate"
	KeyBillOfLading      DocumentKey = "bill_of_lading"
	KeyCustomsExport     DocumentKey = "customs_export_declaration"
)

func ParseDocumentKey(raw string) (DocumentKey, bool) {
	switch DocumentKey(raw) {
	case KeyInvoice, KeyPackingList, KeyCertificateOrigin, KeyPhytosanitary,
		KeyInsurance, KeyBillOfLading, KeyCustomsExport:
		return DocumentKey(raw), true
	default:
		return "", false
	}
}

// Label returns the human-readable document name. The switch is exhaustive
// over the closed key set so a new key cannot ship without a label.
func (k DocumentKey) Label() string {
	switch k {
	case KeyInvoice:
		return "Commercial Invoice"
	case KeyPackingList:
		return "Packing List"
	case KeyCertificateOrigin:
		return "Certificate of Origin"
	case KeyPhytosanitary:
		return "Phytosanitary Certificate"
	case KeyInsurance:
		return "Insurance Certificate"
	case KeyBillOfLading:
		return "Bill of Lading"
	case KeyCustomsExport:
		return "Customs Export Declaration"
	}
	return string(k)
}

// SystemRenderable reports whether the platform can generate the document
// itself. Only the two commercial documents are rendered in-house; everything
// else arrives as an upload from an external authority.
func (k DocumentKey) SystemRenderable() bool {
	switch k {
	case KeyInvoice, KeyPackingList:
		return true
	case KeyCertificateOrigin, KeyPhytosanitary, KeyInsurance, KeyBillOfLading, KeyCustomsExport:
		return false
	}
	return false
}

type DocumentStatus string

const (
	StatusRequired    DocumentStatus = "required"
	StatusDraft       DocumentStatus = "draft"
	StatusReady       DocumentStatus = "ready"
	StatusSubmitted   DocumentStatus = "submitted"
	StatusUnderReview DocumentStatus = "under_review"
	StatusSigned      DocumentStatus = "signed"
	StatusActive      DocumentStatus = "active"
	StatusExpired     DocumentStatus = "expired"
	StatusRejected    DocumentStatus = "rejected"
)

// NormalizeStatus translates legacy persisted statuses onto the canonical
// set. Records written before the status rename may still carry "generated"
// or "approved"; they are translated on every read, never migrated in place.
func NormalizeStatus(raw string) DocumentStatus {
	switch raw {
	case "generated":
		return StatusReady
	case "approved":
		return StatusSigned
	default:
		return DocumentStatus(raw)
	}
}

func ParseDocumentStatus(raw string) (DocumentStatus, bool) {
	switch s := NormalizeStatus(raw); s {
	case StatusRequired, StatusDraft, StatusReady, StatusSubmitted,
		StatusUnderReview, StatusSigned, StatusActive, StatusExpired, StatusRejected:
		return s, true
	default:
		return "", false
	}
}

// Approved reports whether the status closes the current review cycle.
func (s DocumentStatus) Approved() bool {
	return s == StatusSigned || s == StatusActive
}

type DocumentVersion struct {
	Number    int       `json:"number"`
	CreatedAt time.Time `json:"created_at"`
	CreatedBy string    `json:"created_by"`
	FileRef   string    `json:"file_ref"`
	FileName  string    `json:"file_name"`
	Note      string    `json:"note,omitempty"`
}

// DocumentRecord is the single slot for one (shipment, document key) pair.
// Versions are append-only; CurrentVersion is 0 until the first version
// exists. Revision backs the optimistic write check in storage.
type DocumentRecord struct {
	ID             string            `json:"id"`
	ShipmentID     string            `json:"shipment_id"`
	Key            DocumentKey       `json:"key"`
	Status         DocumentStatus    `json:"status"`
	CurrentVersion int               `json:"current_version,omitempty"`
	Versions       []DocumentVersion `json:"versions"`
	Revision       int               `json:"revision"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

// Version returns the version with the given number, or nil.
func (r *DocumentRecord) Version(number int) *DocumentVersion {
	for i := range r.Versions {
		if r.Versions[i].Number == number {
			return &r.Versions[i]
		}
	}
	return nil
}

// AppendVersion attaches a new version numbered len(Versions)+1, repoints
// CurrentVersion at it and moves the record into the pending-review state.
func (r *DocumentRecord) AppendVersion(v DocumentVersion) DocumentVersion {
	v.Number = len(r.Versions) + 1
	r.Versions = append(r.Versions, v)
	r.CurrentVersion = v.Number
	r.Status = StatusReady
	r.UpdatedAt = v.CreatedAt
	return v
}

// RequirementSet is a deduplicated set of document keys.
type RequirementSet map[DocumentKey]struct{}

func NewRequirementSet(keys ...DocumentKey) RequirementSet {
	set := make(RequirementSet, len(keys))
	for _, k := range keys {
		set[k] = struct{}{}
	}
	return set
}

func (s RequirementSet) Add(k DocumentKey) { s[k] = struct{}{} }

func (s RequirementSet) Contains(k DocumentKey) bool {
	_, ok := s[k]
	return ok
}

// Keys returns the members in stable lexical order.
func (s RequirementSet) Keys() []DocumentKey {
	keys := make([]DocumentKey, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

func (s RequirementSet) Equal(other RequirementSet) bool {
	if len(s) != len(other) {
		return false
	}
	for k := range s {
		if !other.Contains(k) {
			return false
		}
	}
	return true
}
