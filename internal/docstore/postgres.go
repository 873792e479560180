// internal/docstore/postgres.go
package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	apperrors "rpas-compliance/internal/common/errors"
	"rpas-compliance/internal/common/logger"
	"rpas-compliance/internal/common/metrics"

	"github.com/google/uuid"
)

// PostgresStore persists documents in a single JSONB table keyed by
// (collection, id).
type PostgresStore struct {
	db        *sql.DB
	publisher Publisher
	logger    logger.Logger
}

// NewPostgresStore creates a document store on top of db. publisher may be
// nil, in which case change events are not fanned out.
func NewPostgresStore(db *sql.DB, publisher Publisher, log logger.Logger) *PostgresStore {
	return &PostgresStore{
		db:        db,
		publisher: publisher,
		logger:    log,
	}
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS documents (
	collection  TEXT        NOT NULL,
	id          TEXT        NOT NULL,
	org_id      TEXT        NOT NULL,
	data        JSONB       NOT NULL,
	revision    BIGINT      NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL,
	updated_at  TIMESTAMPTZ NOT NULL,
	created_by  TEXT        NOT NULL DEFAULT '',
	updated_by  TEXT        NOT NULL DEFAULT '',
	PRIMARY KEY (collection, id)
);
CREATE INDEX IF NOT EXISTS documents_org_idx ON documents (collection, org_id);
`

// Migrate creates the documents table if it does not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaDDL); err != nil {
		return apperrors.NewStoreUnavailableError(err)
	}
	return nil
}

const selectColumns = "collection, id, org_id, data, revision, created_at, updated_at, created_by, updated_by"

func scanDocument(scanner interface {
	Scan(dest ...interface{}) error
}) (*Document, error) {
	var doc Document
	var raw []byte
	err := scanner.Scan(
		&doc.Collection, &doc.ID, &doc.OrgID, &raw, &doc.Revision,
		&doc.CreatedAt, &doc.UpdatedAt, &doc.CreatedBy, &doc.UpdatedBy,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(raw, &doc.Data); err != nil {
		return nil, err
	}
	return &doc, nil
}

func (s *PostgresStore) Get(ctx context.Context, collection, id string) (*Document, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+selectColumns+" FROM documents WHERE collection = $1 AND id = $2",
		collection, id,
	)
	doc, err := scanDocument(row)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(collection, id)
	}
	if err != nil {
		return nil, apperrors.Classify(err)
	}
	return doc, nil
}

func (s *PostgresStore) Create(ctx context.Context, doc *Document) (*Document, error) {
	if err := validateDoc(doc, true); err != nil {
		return nil, err
	}
	prepareCreate(doc)

	raw, err := json.Marshal(doc.Data)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO documents (`+selectColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		doc.Collection, doc.ID, doc.OrgID, raw, doc.Revision,
		doc.CreatedAt, doc.UpdatedAt, doc.CreatedBy, doc.UpdatedBy,
	)
	if err != nil {
		metrics.DocumentWriteFailures.WithLabelValues(doc.Collection, "insert").Inc()
		return nil, apperrors.Classify(err)
	}

	metrics.DocumentWrites.WithLabelValues(doc.Collection, "create").Inc()
	s.publish(ctx, ChangeEvent{
		Type: EventCreated, Collection: doc.Collection, ID: doc.ID,
		OrgID: doc.OrgID, Doc: doc, At: doc.CreatedAt,
	})
	return doc, nil
}

// Update writes doc conditionally on its current Revision and bumps it by one.
// A stale revision yields a conflict error; a missing document yields
// not-found.
func (s *PostgresStore) Update(ctx context.Context, doc *Document) (*Document, error) {
	if err := validateDoc(doc, false); err != nil {
		return nil, err
	}
	now := time.Now().UTC()

	raw, err := json.Marshal(doc.Data)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE documents
		   SET data = $1, revision = revision + 1, updated_at = $2, updated_by = $3
		 WHERE collection = $4 AND id = $5 AND org_id = $6 AND revision = $7`,
		raw, now, doc.UpdatedBy, doc.Collection, doc.ID, doc.OrgID, doc.Revision,
	)
	if err != nil {
		metrics.DocumentWriteFailures.WithLabelValues(doc.Collection, "update").Inc()
		return nil, apperrors.Classify(err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return nil, apperrors.Classify(err)
	}
	if affected == 0 {
		if _, getErr := s.Get(ctx, doc.Collection, doc.ID); apperrors.IsNotFound(getErr) {
			return nil, getErr
		}
		return nil, apperrors.NewRevisionConflictError(doc.Collection, doc.ID)
	}

	doc.Revision++
	doc.UpdatedAt = now
	metrics.DocumentWrites.WithLabelValues(doc.Collection, "update").Inc()
	s.publish(ctx, ChangeEvent{
		Type: EventUpdated, Collection: doc.Collection, ID: doc.ID,
		OrgID: doc.OrgID, Doc: doc, At: now,
	})
	return doc, nil
}

func (s *PostgresStore) Delete(ctx context.Context, collection, id string) error {
	doc, err := s.Get(ctx, collection, id)
	if err != nil {
		return err
	}

	if _, err := s.db.ExecContext(ctx,
		"DELETE FROM documents WHERE collection = $1 AND id = $2",
		collection, id,
	); err != nil {
		metrics.DocumentWriteFailures.WithLabelValues(collection, "delete").Inc()
		return apperrors.Classify(err)
	}

	metrics.DocumentWrites.WithLabelValues(collection, "delete").Inc()
	s.publish(ctx, ChangeEvent{
		Type: EventDeleted, Collection: collection, ID: id,
		OrgID: doc.OrgID, At: time.Now().UTC(),
	})
	return nil
}

var identifierRe = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_]*$`)

// buildQuerySQL renders a Query into parameterized SQL. Filter values are
// compared as text against the JSONB field extraction.
func buildQuerySQL(q Query) (string, []interface{}, error) {
	sqlStr := "SELECT " + selectColumns + " FROM documents WHERE collection = $1 AND org_id = $2"
	args := []interface{}{q.Collection, q.OrgID}

	for _, f := range q.Filters {
		args = append(args, f.Field, fmt.Sprint(f.Value))
		sqlStr += fmt.Sprintf(" AND data ->> $%d = $%d", len(args)-1, len(args))
	}

	if q.OrderBy != "" {
		if !identifierRe.MatchString(q.OrderBy) {
			return "", nil, apperrors.NewInternalError(fmt.Errorf("invalid order field %q", q.OrderBy))
		}
		direction := "ASC"
		if q.Descending {
			direction = "DESC"
		}
		sqlStr += fmt.Sprintf(" ORDER BY data ->> '%s' %s", q.OrderBy, direction)
	} else {
		sqlStr += " ORDER BY created_at ASC"
	}

	if q.Limit > 0 {
		args = append(args, q.Limit)
		sqlStr += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	return sqlStr, args, nil
}

type rowQuerier interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

func queryDocuments(ctx context.Context, db rowQuerier, q Query) ([]*Document, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	sqlStr, args, err := buildQuerySQL(q)
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, apperrors.Classify(err)
	}
	defer rows.Close()

	var docs []*Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, apperrors.Classify(err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Classify(err)
	}
	return docs, nil
}

func (s *PostgresStore) Query(ctx context.Context, q Query) ([]*Document, error) {
	return queryDocuments(ctx, s.db, q)
}

func (s *PostgresStore) ListOrgIDs(ctx context.Context, collection string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT org_id FROM documents WHERE collection = $1`, collection)
	if err != nil {
		return nil, apperrors.Classify(err)
	}
	defer rows.Close()

	var orgIDs []string
	for rows.Next() {
		var orgID string
		if err := rows.Scan(&orgID); err != nil {
			return nil, apperrors.Classify(err)
		}
		orgIDs = append(orgIDs, orgID)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Classify(err)
	}
	return orgIDs, nil
}

// RunTransaction executes fn against a transactional view of the store.
// Updates inside the transaction are revision-conditional; a revision conflict
// rolls back and retries the whole callback up to maxTxAttempts times.
func (s *PostgresStore) RunTransaction(ctx context.Context, fn func(tx Tx) error) error {
	var lastErr error
	for attempt := 0; attempt < maxTxAttempts; attempt++ {
		if attempt > 0 {
			metrics.TransactionRetries.WithLabelValues("documents").Inc()
		}

		events, err := s.runOnce(ctx, fn)
		if err == nil {
			for _, event := range events {
				s.publish(ctx, event)
			}
			return nil
		}
		if !apperrors.IsConflict(err) {
			return err
		}
		lastErr = err
		s.logger.Warn("transaction conflict, retrying", map[string]interface{}{
			"attempt": attempt + 1,
		})
	}
	return lastErr
}

func (s *PostgresStore) runOnce(ctx context.Context, fn func(tx Tx) error) ([]ChangeEvent, error) {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, apperrors.Classify(err)
	}

	tx := &postgresTx{ctx: ctx, tx: sqlTx}
	if err := fn(tx); err != nil {
		sqlTx.Rollback()
		return nil, err
	}
	if err := sqlTx.Commit(); err != nil {
		return nil, apperrors.Classify(err)
	}
	return tx.events, nil
}

func (s *PostgresStore) publish(ctx context.Context, event ChangeEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.WithError(err).Warn("failed to publish change event", map[string]interface{}{
			"collection": event.Collection,
			"documentId": event.ID,
		})
	}
}

// prepareCreate fills server-side fields on a new document.
func prepareCreate(doc *Document) {
	if doc.ID == "" {
		doc.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	doc.CreatedAt = now
	doc.UpdatedAt = now
	doc.Revision = 1
	if doc.UpdatedBy == "" {
		doc.UpdatedBy = doc.CreatedBy
	}
	if doc.Data == nil {
		doc.Data = map[string]interface{}{}
	}
}

// postgresTx implements Tx over one sql.Tx, recording change events to emit
// after commit.
type postgresTx struct {
	ctx    context.Context
	tx     *sql.Tx
	events []ChangeEvent
}

func (t *postgresTx) Get(collection, id string) (*Document, error) {
	row := t.tx.QueryRowContext(t.ctx,
		"SELECT "+selectColumns+" FROM documents WHERE collection = $1 AND id = $2 FOR UPDATE",
		collection, id,
	)
	doc, err := scanDocument(row)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(collection, id)
	}
	if err != nil {
		return nil, apperrors.Classify(err)
	}
	return doc, nil
}

func (t *postgresTx) Query(q Query) ([]*Document, error) {
	return queryDocuments(t.ctx, t.tx, q)
}

func (t *postgresTx) Create(doc *Document) error {
	if err := validateDoc(doc, true); err != nil {
		return err
	}
	prepareCreate(doc)

	raw, err := json.Marshal(doc.Data)
	if err != nil {
		return apperrors.NewInternalError(err)
	}

	_, err = t.tx.ExecContext(t.ctx,
		`INSERT INTO documents (`+selectColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		doc.Collection, doc.ID, doc.OrgID, raw, doc.Revision,
		doc.CreatedAt, doc.UpdatedAt, doc.CreatedBy, doc.UpdatedBy,
	)
	if err != nil {
		return apperrors.Classify(err)
	}

	t.events = append(t.events, ChangeEvent{
		Type: EventCreated, Collection: doc.Collection, ID: doc.ID,
		OrgID: doc.OrgID, Doc: doc, At: doc.CreatedAt,
	})
	return nil
}

func (t *postgresTx) Update(doc *Document) error {
	if err := validateDoc(doc, false); err != nil {
		return err
	}
	now := time.Now().UTC()

	raw, err := json.Marshal(doc.Data)
	if err != nil {
		return apperrors.NewInternalError(err)
	}

	res, err := t.tx.ExecContext(t.ctx,
		`UPDATE documents
		   SET data = $1, revision = revision + 1, updated_at = $2, updated_by = $3
		 WHERE collection = $4 AND id = $5 AND org_id = $6 AND revision = $7`,
		raw, now, doc.UpdatedBy, doc.Collection, doc.ID, doc.OrgID, doc.Revision,
	)
	if err != nil {
		return apperrors.Classify(err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return apperrors.Classify(err)
	}
	if affected == 0 {
		return apperrors.NewRevisionConflictError(doc.Collection, doc.ID)
	}

	doc.Revision++
	doc.UpdatedAt = now
	t.events = append(t.events, ChangeEvent{
		Type: EventUpdated, Collection: doc.Collection, ID: doc.ID,
		OrgID: doc.OrgID, Doc: doc, At: now,
	})
	return nil
}

func (t *postgresTx) Delete(collection, id string) error {
	doc, err := t.Get(collection, id)
	if err != nil {
		return err
	}

	if _, err := t.tx.ExecContext(t.ctx,
		"DELETE FROM documents WHERE collection = $1 AND id = $2",
		collection, id,
	); err != nil {
		return apperrors.Classify(err)
	}

	t.events = append(t.events, ChangeEvent{
		Type: EventDeleted, Collection: collection, ID: id,
		OrgID: doc.OrgID, At: time.Now().UTC(),
	})
	return nil
}

// Ensure interface compliance.
var (
	_ Store = (*PostgresStore)(nil)
	_ Tx    = (*postgresTx)(nil)
)
