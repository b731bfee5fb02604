package httpadapter

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/oapi-codegen/runtime/types"

	"github.com/m-ovchinnikov/export-compliance/internal/core/domain"
	"github.com/m-ovchinnikov/export-compliance/internal/core/ports"
	"github.com/m-ovchinnikov/export-compliance/internal/observability/metrics"
)

const defaultActor = "system"

// TrafficPolicy bounds inbound request volume before handlers run.
type TrafficPolicy struct {
	RateLimitRPS     float64
	RateLimitBurst   int
	BackpressureMax  int
	BackpressureWait time.Duration
}

type Router struct {
	service        string
	evaluator      ports.RequirementEvaluator
	reconciler     ports.DocumentReconciler
	lifecycle      ports.DocumentLifecycle
	reader         ports.DocumentReader
	events         ports.EventBus
	metrics        *metrics.HTTPServerMetrics
	policy         TrafficPolicy
	uploadMaxBytes int64
}

func NewRouter(
	service string,
	evaluator ports.RequirementEvaluator,
	reconciler ports.DocumentReconciler,
	lifecycle ports.DocumentLifecycle,
	reader ports.DocumentReader,
	events ports.EventBus,
	m *metrics.HTTPServerMetrics,
	policy TrafficPolicy,
	uploadMaxBytes int64,
) *Router {
	return &Router{
		service:        service,
		evaluator:      evaluator,
		reconciler:     reconciler,
		lifecycle:      lifecycle,
		reader:         reader,
		events:         events,
		metrics:        m,
		policy:         policy,
		uploadMaxBytes: uploadMaxBytes,
	}
}

// Handler assembles the route table and wraps it in the middleware chain.
// Ordering matters: request ids must exist before logging, and traffic
// control runs before anything that does real work.
func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", rt.handleHealthz)
	mux.Handle("GET /metrics", rt.metrics.Handler())
	mux.HandleFunc("GET /openapi.yaml", rt.handleOpenAPI)

	mux.HandleFunc("GET /v1/shipments/{shipment_id}/requirements", rt.handleRequirements)
	mux.HandleFunc("GET /v1/shipments/{shipment_id}/documents", rt.handleListDocuments)
	mux.HandleFunc("POST /v1/shipments/{shipment_id}/documents/reconcile", rt.handleReconcile)
	mux.HandleFunc("POST /v1/shipments/{shipment_id}/documents/{doc_key}/generate", rt.handleGenerate)
	mux.HandleFunc("POST /v1/shipments/{shipment_id}/documents/{doc_key}/versions", rt.handleUploadVersion)
	mux.HandleFunc("POST /v1/shipments/{shipment_id}/documents/{doc_key}/status", rt.handleSetStatus)
	mux.HandleFunc("PUT /v1/shipments/{shipment_id}/documents/{doc_key}/current-version", rt.handleSetCurrentVersion)

	var handler http.Handler = mux
	handler = rt.metrics.Middleware(rt.service, handler)
	handler = backpressureMiddleware(handler, rt.policy.BackpressureMax, rt.policy.BackpressureWait)
	handler = rateLimitMiddleware(handler, rt.policy.RateLimitRPS, rt.policy.RateLimitBurst)
	handler = accessLogMiddleware(handler)
	handler = requestIDMiddleware(handler)
	return handler
}

func (rt *Router) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) handleOpenAPI(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(openAPISpec)
}

type requirementsResponse struct {
	ShipmentID        string               `json:"shipment_id"`
	RequiredDocuments []domain.DocumentKey `json:"required_documents"`
}

func (rt *Router) handleRequirements(w http.ResponseWriter, r *http.Request) {
	shipmentID := r.PathValue("shipment_id")

	set, err := rt.evaluator.EvaluateByID(r.Context(), shipmentID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, requirementsResponse{
		ShipmentID:        shipmentID,
		RequiredDocuments: set.Keys(),
	})
}

type documentsResponse struct {
	ShipmentID string                  `json:"shipment_id"`
	Documents  []domain.DocumentRecord `json:"documents"`
	Created    *bool                   `json:"created,omitempty"`
}

func (rt *Router) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	shipmentID := r.PathValue("shipment_id")

	records, err := rt.reader.ListByShipment(r.Context(), shipmentID)
	if err != nil {
		writeError(w, err)
		return
	}
	if records == nil {
		records = []domain.DocumentRecord{}
	}

	writeJSON(w, http.StatusOK, documentsResponse{ShipmentID: shipmentID, Documents: records})
}

func (rt *Router) handleReconcile(w http.ResponseWriter, r *http.Request) {
	shipmentID := r.PathValue("shipment_id")

	records, created, err := rt.reconciler.ReconcileByID(r.Context(), shipmentID)
	if err != nil {
		writeError(w, err)
		return
	}
	rt.metrics.RecordReconcile(rt.service, created)

	// Fan out to other consumers; the inline reconcile already committed.
	if rt.events != nil {
		if pubErr := rt.events.PublishShipmentChanged(r.Context(), shipmentID); pubErr != nil {
			slog.Warn("publish shipment changed", "shipment_id", shipmentID, "error", pubErr)
		}
	}

	writeJSON(w, http.StatusOK, documentsResponse{
		ShipmentID: shipmentID,
		Documents:  records,
		Created:    &created,
	})
}

type generateRequest struct {
	DocumentNumber string      `json:"document_number"`
	IssueDate      *types.Date `json:"issue_date,omitempty"`
	SignedBy       string      `json:"signed_by,omitempty"`
	Actor          string      `json:"actor,omitempty"`
}

func (rt *Router) handleGenerate(w http.ResponseWriter, r *http.Request) {
	shipmentID := r.PathValue("shipment_id")
	key, err := parseKey(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req generateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.DocumentNumber == "" {
		writeError(w, domain.WrapError(domain.ErrInvalidInput, "generate document", errors.New("document_number is required")))
		return
	}

	meta := ports.GenerateMetadata{
		DocumentNumber: req.DocumentNumber,
		SignedBy:       req.SignedBy,
		Actor:          req.Actor,
	}
	if req.IssueDate != nil {
		meta.IssueDate = req.IssueDate.Format("2006-01-02")
	}
	if meta.Actor == "" {
		meta.Actor = defaultActor
	}

	record, err := rt.lifecycle.Generate(r.Context(), shipmentID, key, meta)
	rt.metrics.RecordLifecycleOp(rt.service, "generate", err)
	if err != nil {
		if errors.Is(err, domain.ErrRenderFailed) {
			rt.metrics.RecordRenderFailure(rt.service)
		}
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, record)
}

func (rt *Router) handleUploadVersion(w http.ResponseWriter, r *http.Request) {
	shipmentID := r.PathValue("shipment_id")
	key, err := parseKey(r)
	if err != nil {
		writeError(w, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, rt.uploadMaxBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, domain.WrapError(domain.ErrInvalidInput, "upload version", err))
		return
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			slog.Warn("close uploaded file", "error", closeErr)
		}
	}()

	note := r.FormValue("note")
	actor := r.FormValue("actor")
	if actor == "" {
		actor = defaultActor
	}

	record, err := rt.lifecycle.UploadVersion(r.Context(), shipmentID, key, filenameOf(header), file, note, actor)
	rt.metrics.RecordLifecycleOp(rt.service, "upload_version", err)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, record)
}

type statusRequest struct {
	Status string `json:"status"`
	Note   string `json:"note,omitempty"`
}

func (rt *Router) handleSetStatus(w http.ResponseWriter, r *http.Request) {
	shipmentID := r.PathValue("shipment_id")
	key, err := parseKey(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req statusRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	status, ok := domain.ParseDocumentStatus(req.Status)
	if !ok {
		writeError(w, domain.WrapError(domain.ErrInvalidInput, "set status", fmt.Errorf("unknown status %q", req.Status)))
		return
	}

	record, err := rt.lifecycle.SetStatus(r.Context(), shipmentID, key, status, req.Note)
	rt.metrics.RecordLifecycleOp(rt.service, "set_status", err)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, record)
}

type currentVersionRequest struct {
	Version int `json:"version"`
}

func (rt *Router) handleSetCurrentVersion(w http.ResponseWriter, r *http.Request) {
	shipmentID := r.PathValue("shipment_id")
	key, err := parseKey(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req currentVersionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	record, err := rt.lifecycle.SetCurrentVersion(r.Context(), shipmentID, key, req.Version)
	rt.metrics.RecordLifecycleOp(rt.service, "set_current_version", err)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, record)
}

func parseKey(r *http.Request) (domain.DocumentKey, error) {
	raw := r.PathValue("doc_key")
	key, ok := domain.ParseDocumentKey(raw)
	if !ok {
		return "", domain.WrapError(domain.ErrInvalidInput, "parse document key", fmt.Errorf("unknown document key %q", raw))
	}
	return key, nil
}

func filenameOf(header *multipart.FileHeader) string {
	name := strings.TrimSpace(header.Filename)
	if name == "" {
		return "upload.bin"
	}
	return name
}

func decodeJSON(r *http.Request, dst any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return domain.WrapError(domain.ErrInvalidInput, "decode request", errors.New("request body is empty"))
		}
		return domain.WrapError(domain.ErrInvalidInput, "decode request", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("encode response", "error", err)
	}
}
