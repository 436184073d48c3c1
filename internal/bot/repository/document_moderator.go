package repository

import (
	"context"
	"fmt"
	"slices"

	"github.com/charadev96/repguard/internal/bot/domain"
)

type DocumentModeratorRepository struct {
	runner *DocumentTransactionRunner
}

func NewDocumentModeratorRepository(runner *DocumentTransactionRunner) *DocumentModeratorRepository {
	return &DocumentModeratorRepository{runner: runner}
}

func (r *DocumentModeratorRepository) List(ctx context.Context) ([]int64, error) {
	var ids []int64
	err := r.runner.read(ctx, func(doc *domain.Document) error {
		ids = slices.Clone(doc.Moderators)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list moderators: %w", err)
	}
	return ids, nil
}

func (r *DocumentModeratorRepository) Contains(ctx context.Context, id int64) (bool, error) {
	var found bool
	err := r.runner.read(ctx, func(doc *domain.Document) error {
		found = slices.Contains(doc.Moderators, id)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to check moderator: %w", err)
	}
	return found, nil
}

func (r *DocumentModeratorRepository) Add(ctx context.Context, id int64) (bool, error) {
	var added bool
	err := r.runner.write(ctx, func(ctx context.Context, doc *domain.Document) (bool, error) {
		if slices.Contains(doc.Moderators, id) {
			return false, nil
		}
		doc.Moderators = append(doc.Moderators, id)
		added = true
		return true, nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to add moderator: %w", err)
	}
	return added, nil
}

func (r *DocumentModeratorRepository) Remove(ctx context.Context, id int64) (bool, error) {
	var removed bool
	err := r.runner.write(ctx, func(ctx context.Context, doc *domain.Document) (bool, error) {
		n := len(doc.Moderators)
		doc.Moderators = slices.DeleteFunc(doc.Moderators, func(m int64) bool { return m == id })
		removed = len(doc.Moderators) != n
		return removed, nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to remove moderator: %w", err)
	}
	return removed, nil
}
