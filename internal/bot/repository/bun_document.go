package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/charadev96/repguard/internal/bot/domain"
	"github.com/charadev96/repguard/internal/shared/infra"
)

const documentRowID = 1

// BunDocumentStore keeps the document as a single row of an SQL table.
// Replace is a compare-and-swap on the revision column.
type BunDocumentStore struct {
	db       *bun.DB
	defaults map[string]domain.StatusCategory
}

func NewBunDocumentStore(ctx context.Context, db *bun.DB, defaults map[string]domain.StatusCategory) (*BunDocumentStore, error) {
	s := &BunDocumentStore{
		db:       db,
		defaults: defaults,
	}
	tx := infra.ExtractTx(ctx, s.db)
	_, err := tx.NewCreateTable().
		Model((*documentRow)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return s, fmt.Errorf("failed to create document store: %w", err)
	}
	return s, nil
}

func (s *BunDocumentStore) joinsOuterTx() {}

func (s *BunDocumentStore) Load(ctx context.Context) (domain.Document, error) {
	tx := infra.ExtractTx(ctx, s.db)
	row := new(documentRow)
	err := tx.NewSelect().
		Model(row).
		Where("id = ?", documentRowID).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		doc := domain.NewDocument(s.defaults)
		if err := s.insert(ctx, tx, doc); err != nil {
			return domain.Document{}, err
		}
		return doc, nil
	}
	if err != nil {
		return domain.Document{}, fmt.Errorf("%w: failed to load document: %w", domain.ErrStoreUnavailable, err)
	}

	data, keys, err := decodeDocumentBody(row.Body)
	if err != nil {
		return domain.Document{}, fmt.Errorf("%w: failed to decode document: %w", domain.ErrStoreCorrupt, err)
	}
	data.Revision = row.Revision
	defined := func(key string) bool { return keys[key] }
	if data.repair(defined, s.defaults) {
		if err := s.update(ctx, tx, data, row.Revision); err != nil {
			return domain.Document{}, err
		}
	}
	doc, err := data.toDomain()
	if err != nil {
		return domain.Document{}, fmt.Errorf("%w: %w", domain.ErrStoreCorrupt, err)
	}
	return doc, nil
}

func (s *BunDocumentStore) Replace(ctx context.Context, doc domain.Document) error {
	if err := doc.Validate(); err != nil {
		return fmt.Errorf("failed to replace document: %w", err)
	}
	tx := infra.ExtractTx(ctx, s.db)
	data, err := newDocumentSchema(doc)
	if err != nil {
		return fmt.Errorf("failed to replace document: %w", err)
	}
	data.Revision = doc.Revision + 1
	return s.update(ctx, tx, data, doc.Revision)
}

func (s *BunDocumentStore) Reinitialize(ctx context.Context) (domain.Document, error) {
	doc := domain.NewDocument(s.defaults)
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.NewDelete().
			Model((*documentRow)(nil)).
			Where("id = ?", documentRowID).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("%w: failed to delete document: %w", domain.ErrStoreUnavailable, err)
		}
		return s.insert(ctx, tx, doc)
	})
	if err != nil {
		return domain.Document{}, err
	}
	return doc, nil
}

func (s *BunDocumentStore) insert(ctx context.Context, tx bun.IDB, doc domain.Document) error {
	data, err := newDocumentSchema(doc)
	if err != nil {
		return fmt.Errorf("failed to insert document: %w", err)
	}
	body, err := encodeDocumentBody(data)
	if err != nil {
		return fmt.Errorf("failed to encode document: %w", err)
	}
	row := &documentRow{
		ID:        documentRowID,
		Revision:  doc.Revision,
		Body:      body,
		UpdatedAt: time.Now().UTC(),
	}
	_, err = tx.NewInsert().
		Model(row).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("%w: failed to insert document: %w", domain.ErrStoreUnavailable, err)
	}
	return nil
}

func (s *BunDocumentStore) update(ctx context.Context, tx bun.IDB, data documentSchema, expected int64) error {
	body, err := encodeDocumentBody(data)
	if err != nil {
		return fmt.Errorf("failed to encode document: %w", err)
	}
	row := &documentRow{
		ID:        documentRowID,
		Revision:  data.Revision,
		Body:      body,
		UpdatedAt: time.Now().UTC(),
	}
	res, err := tx.NewUpdate().
		Model(row).
		Column("revision", "body", "updated_at").
		Where("id = ?", documentRowID).
		Where("revision = ?", expected).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("%w: failed to update document: %w", domain.ErrStoreUnavailable, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: failed to update document: %w", domain.ErrStoreUnavailable, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: revision %d is stale", domain.ErrStoreConflict, expected)
	}
	return nil
}

type documentRow struct {
	bun.BaseModel `bun:"table:documents"`

	ID        int64     `bun:",pk"`
	Revision  int64     `bun:",notnull"`
	Body      []byte    `bun:",notnull"`
	UpdatedAt time.Time `bun:",notnull"`
}
