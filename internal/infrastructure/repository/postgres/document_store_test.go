package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/m-ovchinnikov/export-compliance/internal/core/domain"
)

func newStoreWithMock(t *testing.T) (*DocumentStore, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return &DocumentStore{db: db}, mock, func() { _ = db.Close() }
}

func TestGetReturnsDomainNotFound(t *testing.T) {
	store, mock, done := newStoreWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT id, shipment_id, doc_key, status").
		WithArgs("shp-1", "invoice").
		WillReturnError(sql.ErrNoRows)

	_, err := store.Get(context.Background(), "shp-1", domain.KeyInvoice)
	if !domain.IsKind(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetNormalizesLegacyStatus(t *testing.T) {
	store, mock, done := newStoreWithMock(t)
	defer done()

	now := time.Now().UTC()
	recordRows := sqlmock.NewRows([]string{
		"id", "shipment_id", "doc_key", "status", "current_version", "revision", "created_at", "updated_at",
	}).AddRow("rec-1", "shp-1", "invoice", "generated", 1, 2, now, now)
	mock.ExpectQuery("SELECT id, shipment_id, doc_key, status").
		WithArgs("shp-1", "invoice").
		WillReturnRows(recordRows)

	versionRows := sqlmock.NewRows([]string{
		"record_id", "version_number", "created_at", "created_by", "file_ref", "file_name", "note",
	}).AddRow("rec-1", 1, now, "user-1", "ref-1", "invoice.xlsx", nil)
	mock.ExpectQuery("SELECT record_id, version_number").
		WithArgs("rec-1").
		WillReturnRows(versionRows)

	record, err := store.Get(context.Background(), "shp-1", domain.KeyInvoice)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if record.Status != domain.StatusReady {
		t.Fatalf("legacy status not normalized: %q", record.Status)
	}
	if len(record.Versions) != 1 || record.Versions[0].Number != 1 {
		t.Fatalf("versions not loaded: %+v", record.Versions)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestUpdateStaleRevisionReturnsConcurrentModification(t *testing.T) {
	store, mock, done := newStoreWithMock(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE document_records").
		WithArgs("rec-1", 3, "ready", 2, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("rec-1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectRollback()

	record := &domain.DocumentRecord{
		ID: "rec-1", ShipmentID: "shp-1", Key: domain.KeyInvoice,
		Status: domain.StatusReady, CurrentVersion: 2, Revision: 3,
	}
	err := store.Update(context.Background(), record)
	if !domain.IsKind(err, domain.ErrConcurrentModification) {
		t.Fatalf("expected ErrConcurrentModification, got %v", err)
	}
	if record.Revision != 3 {
		t.Fatalf("revision must not change on a failed update")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestUpdateMissingRecordReturnsNotFound(t *testing.T) {
	store, mock, done := newStoreWithMock(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE document_records").
		WithArgs("rec-gone", 0, "ready", 1, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("rec-gone").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectRollback()

	record := &domain.DocumentRecord{
		ID: "rec-gone", ShipmentID: "shp-1", Key: domain.KeyInvoice,
		Status: domain.StatusReady, CurrentVersion: 1,
	}
	if err := store.Update(context.Background(), record); !domain.IsKind(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestUpdateAppendsVersionAndBumpsRevision(t *testing.T) {
	store, mock, done := newStoreWithMock(t)
	defer done()

	now := time.Now().UTC()
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE document_records").
		WithArgs("rec-1", 1, "ready", 1, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO document_versions").
		WithArgs("rec-1", 1, now, "user-1", "ref-1", "invoice.xlsx", "").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	record := &domain.DocumentRecord{
		ID: "rec-1", ShipmentID: "shp-1", Key: domain.KeyInvoice,
		Status: domain.StatusReady, CurrentVersion: 1, Revision: 1,
		Versions: []domain.DocumentVersion{
			{Number: 1, CreatedAt: now, CreatedBy: "user-1", FileRef: "ref-1", FileName: "invoice.xlsx"},
		},
	}
	if err := store.Update(context.Background(), record); err != nil {
		t.Fatalf("update: %v", err)
	}
	if record.Revision != 2 {
		t.Fatalf("revision %d after commit, want 2", record.Revision)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestCreateAllInsertsEveryRecord(t *testing.T) {
	store, mock, done := newStoreWithMock(t)
	defer done()

	now := time.Now().UTC()
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO document_records").
		WithArgs("rec-1", "shp-1", "invoice", "required", 0, 0, now, now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO document_records").
		WithArgs("rec-2", "shp-1", "packing_list", "required", 0, 0, now, now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	records := []domain.DocumentRecord{
		{ID: "rec-1", ShipmentID: "shp-1", Key: domain.KeyInvoice, Status: domain.StatusRequired, CreatedAt: now, UpdatedAt: now},
		{ID: "rec-2", ShipmentID: "shp-1", Key: domain.KeyPackingList, Status: domain.StatusRequired, CreatedAt: now, UpdatedAt: now},
	}
	if err := store.CreateAll(context.Background(), records); err != nil {
		t.Fatalf("create all: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
