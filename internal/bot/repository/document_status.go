package repository

import (
	"context"
	"fmt"
	"maps"

	"github.com/charadev96/repguard/internal/bot/domain"
	shared "github.com/charadev96/repguard/internal/shared/domain"
)

type DocumentStatusRepository struct {
	runner *DocumentTransactionRunner
}

func NewDocumentStatusRepository(runner *DocumentTransactionRunner) *DocumentStatusRepository {
	return &DocumentStatusRepository{runner: runner}
}

func (r *DocumentStatusRepository) List(ctx context.Context) (map[string]domain.StatusCategory, error) {
	var out map[string]domain.StatusCategory
	err := r.runner.read(ctx, func(doc *domain.Document) error {
		out = maps.Clone(doc.Statuses)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list statuses: %w", err)
	}
	return out, nil
}

func (r *DocumentStatusRepository) Get(ctx context.Context, code string) (domain.StatusCategory, error) {
	var c domain.StatusCategory
	err := r.runner.read(ctx, func(doc *domain.Document) error {
		var ok bool
		c, ok = doc.Statuses[code]
		if !ok {
			return shared.ErrNotExist
		}
		return nil
	})
	if err != nil {
		return c, fmt.Errorf("failed to get status %q: %w", code, err)
	}
	return c, nil
}

func (r *DocumentStatusRepository) Upsert(ctx context.Context, code string, patch domain.StatusPatch) (domain.StatusCategory, error) {
	var c domain.StatusCategory
	err := r.runner.write(ctx, func(ctx context.Context, doc *domain.Document) (bool, error) {
		current, ok := doc.Statuses[code]
		if !ok {
			current = domain.StatusCategory{Code: code, Title: code}
		}
		c = patch.Apply(current)
		doc.Statuses[code] = c
		return !ok || c != current, nil
	})
	if err != nil {
		return c, fmt.Errorf("failed to save status %q: %w", code, err)
	}
	return c, nil
}

func (r *DocumentStatusRepository) Update(ctx context.Context, code string, patch domain.StatusPatch) (domain.StatusCategory, error) {
	var c domain.StatusCategory
	err := r.runner.write(ctx, func(ctx context.Context, doc *domain.Document) (bool, error) {
		current, ok := doc.Statuses[code]
		if !ok {
			return false, shared.ErrNotExist
		}
		c = patch.Apply(current)
		doc.Statuses[code] = c
		return c != current, nil
	})
	if err != nil {
		return c, fmt.Errorf("failed to update status %q: %w", code, err)
	}
	return c, nil
}

// Delete removes a category nobody references. The unknown category can
// never be removed.
func (r *DocumentStatusRepository) Delete(ctx context.Context, code string) error {
	err := r.runner.write(ctx, func(ctx context.Context, doc *domain.Document) (bool, error) {
		if code == domain.StatusUnknown {
			return false, domain.ErrCategoryProtected
		}
		if _, ok := doc.Statuses[code]; !ok {
			return false, shared.ErrNotExist
		}
		for _, u := range doc.Users {
			if u.Status == code {
				return false, domain.ErrCategoryInUse
			}
		}
		delete(doc.Statuses, code)
		return true, nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete status %q: %w", code, err)
	}
	return nil
}

func (r *DocumentStatusRepository) ResolveTitle(ctx context.Context, code string) (string, error) {
	var title string
	err := r.runner.read(ctx, func(doc *domain.Document) error {
		if c, ok := doc.Statuses[code]; ok {
			title = c.Title
			return nil
		}
		if c, ok := doc.Statuses[domain.StatusUnknown]; ok {
			title = c.Title
			return nil
		}
		title = domain.UnknownCategory().Title
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to resolve status title: %w", err)
	}
	return title, nil
}
