package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/m-ovchinnikov/export-compliance/internal/core/domain"
)

// DocumentStore persists document records and their version history. The
// composite UNIQUE(shipment_id, doc_key) makes duplicate slots structurally
// impossible, and the revision column backs the optimistic write check.
type DocumentStore struct {
	db *sql.DB
}

func NewDocumentStore(db *sql.DB) *DocumentStore {
	return &DocumentStore{db: db}
}

func (s *DocumentStore) EnsureSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026082902)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS document_records (
	id TEXT PRIMARY KEY,
	shipment_id TEXT NOT NULL,
	doc_key TEXT NOT NULL,
	status TEXT NOT NULL,
	current_version INT NOT NULL DEFAULT 0,
	revision INT NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	UNIQUE (shipment_id, doc_key)
);

CREATE TABLE IF NOT EXISTS document_versions (
	record_id TEXT NOT NULL REFERENCES document_records(id),
	version_number INT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	created_by TEXT,
	file_ref TEXT NOT NULL,
	file_name TEXT NOT NULL,
	note TEXT,
	PRIMARY KEY (record_id, version_number)
);

CREATE INDEX IF NOT EXISTS idx_document_records_shipment ON document_records(shipment_id);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (s *DocumentStore) ListByShipment(ctx context.Context, shipmentID string) ([]domain.DocumentRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, shipment_id, doc_key, status, current_version, revision, created_at, updated_at
FROM document_records
WHERE shipment_id = $1
ORDER BY doc_key
`, shipmentID)
	if err != nil {
		return nil, fmt.Errorf("query document records: %w", err)
	}
	defer rows.Close()

	var records []domain.DocumentRecord
	index := make(map[string]int)
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		index[record.ID] = len(records)
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate document records: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	versionRows, err := s.db.QueryContext(ctx, `
SELECT dv.record_id, dv.version_number, dv.created_at, dv.created_by, dv.file_ref, dv.file_name, dv.note
FROM document_versions dv
JOIN document_records dr ON dr.id = dv.record_id
WHERE dr.shipment_id = $1
ORDER BY dv.record_id, dv.version_number
`, shipmentID)
	if err != nil {
		return nil, fmt.Errorf("query document versions: %w", err)
	}
	defer versionRows.Close()

	for versionRows.Next() {
		var recordID string
		version, err := scanVersion(versionRows, &recordID)
		if err != nil {
			return nil, err
		}
		if i, ok := index[recordID]; ok {
			records[i].Versions = append(records[i].Versions, version)
		}
	}
	if err := versionRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate document versions: %w", err)
	}
	return records, nil
}

func (s *DocumentStore) Get(ctx context.Context, shipmentID string, key domain.DocumentKey) (*domain.DocumentRecord, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id, shipment_id, doc_key, status, current_version, revision, created_at, updated_at
FROM document_records
WHERE shipment_id = $1 AND doc_key = $2
`, shipmentID, string(key))

	record, err := scanRecord(row)
	if err != nil {
		if domain.IsKind(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrDocumentNotFound, "get document record",
				fmt.Errorf("shipment %s key %s", shipmentID, key))
		}
		return nil, err
	}

	versionRows, err := s.db.QueryContext(ctx, `
SELECT record_id, version_number, created_at, created_by, file_ref, file_name, note
FROM document_versions
WHERE record_id = $1
ORDER BY version_number
`, record.ID)
	if err != nil {
		return nil, fmt.Errorf("query document versions: %w", err)
	}
	defer versionRows.Close()

	for versionRows.Next() {
		var recordID string
		version, err := scanVersion(versionRows, &recordID)
		if err != nil {
			return nil, err
		}
		record.Versions = append(record.Versions, version)
	}
	if err := versionRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate document versions: %w", err)
	}
	return &record, nil
}

func (s *DocumentStore) Create(ctx context.Context, record *domain.DocumentRecord) error {
	return s.CreateAll(ctx, []domain.DocumentRecord{*record})
}

func (s *DocumentStore) CreateAll(ctx context.Context, records []domain.DocumentRecord) error {
	if len(records) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, record := range records {
		_, err := tx.ExecContext(ctx, `
INSERT INTO document_records (id, shipment_id, doc_key, status, current_version, revision, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
`,
			record.ID, record.ShipmentID, string(record.Key), string(record.Status),
			record.CurrentVersion, record.Revision, record.CreatedAt, record.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert document record %s/%s: %w", record.ShipmentID, record.Key, err)
		}
		if err := upsertVersions(ctx, tx, record); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create tx: %w", err)
	}
	return nil
}

// Update commits the record only when the stored revision still matches
// record.Revision, then bumps both. New versions are appended and notes on
// existing versions refreshed; history rows are never deleted.
func (s *DocumentStore) Update(ctx context.Context, record *domain.DocumentRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	result, err := tx.ExecContext(ctx, `
UPDATE document_records
SET status = $3, current_version = $4, revision = revision + 1, updated_at = $5
WHERE id = $1 AND revision = $2
`, record.ID, record.Revision, string(record.Status), record.CurrentVersion, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update document record: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update rows affected: %w", err)
	}
	if affected == 0 {
		var exists bool
		if err := tx.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM document_records WHERE id = $1)`, record.ID,
		).Scan(&exists); err != nil {
			return fmt.Errorf("check record existence: %w", err)
		}
		if !exists {
			return domain.WrapError(domain.ErrDocumentNotFound, "update document record",
				fmt.Errorf("id %s", record.ID))
		}
		return domain.WrapError(domain.ErrConcurrentModification, "update document record",
			fmt.Errorf("revision %d is stale", record.Revision))
	}

	if err := upsertVersions(ctx, tx, *record); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit update tx: %w", err)
	}
	record.Revision++
	return nil
}

func upsertVersions(ctx context.Context, tx *sql.Tx, record domain.DocumentRecord) error {
	for _, version := range record.Versions {
		_, err := tx.ExecContext(ctx, `
INSERT INTO document_versions (record_id, version_number, created_at, created_by, file_ref, file_name, note)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (record_id, version_number) DO UPDATE SET note = EXCLUDED.note
`,
			record.ID, version.Number, version.CreatedAt, version.CreatedBy,
			version.FileRef, version.FileName, version.Note,
		)
		if err != nil {
			return fmt.Errorf("upsert document version %d: %w", version.Number, err)
		}
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (domain.DocumentRecord, error) {
	var record domain.DocumentRecord
	var key, status string
	err := row.Scan(
		&record.ID, &record.ShipmentID, &key, &status,
		&record.CurrentVersion, &record.Revision, &record.CreatedAt, &record.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return domain.DocumentRecord{}, err
		}
		return domain.DocumentRecord{}, fmt.Errorf("scan document record: %w", err)
	}
	record.Key = domain.DocumentKey(key)
	// Legacy statuses are translated at the read boundary, never migrated.
	record.Status = domain.NormalizeStatus(status)
	return record, nil
}

func scanVersion(row rowScanner, recordID *string) (domain.DocumentVersion, error) {
	var version domain.DocumentVersion
	var createdBy, note sql.NullString
	err := row.Scan(recordID, &version.Number, &version.CreatedAt, &createdBy,
		&version.FileRef, &version.FileName, &note)
	if err != nil {
		return domain.DocumentVersion{}, fmt.Errorf("scan document version: %w", err)
	}
	version.CreatedBy = createdBy.String
	version.Note = note.String
	return version, nil
}
