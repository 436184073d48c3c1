package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/charadev96/repguard/internal/bot/domain"
	shared "github.com/charadev96/repguard/internal/shared/domain"
)

type DocumentUserRepository struct {
	runner *DocumentTransactionRunner
}

func NewDocumentUserRepository(runner *DocumentTransactionRunner) *DocumentUserRepository {
	return &DocumentUserRepository{runner: runner}
}

func (r *DocumentUserRepository) GetByID(ctx context.Context, id int64) (domain.UserRecord, error) {
	var usr domain.UserRecord
	err := r.runner.read(ctx, func(doc *domain.Document) error {
		u, ok := doc.Users[id]
		if !ok {
			return shared.ErrNotExist
		}
		usr = u
		return nil
	})
	if err != nil {
		return usr, fmt.Errorf("failed to get user: %w", err)
	}
	return usr, nil
}

func (r *DocumentUserRepository) GetByUsername(ctx context.Context, name string) (domain.UserRecord, error) {
	var usr domain.UserRecord
	name = strings.TrimPrefix(strings.TrimSpace(name), "@")
	err := r.runner.read(ctx, func(doc *domain.Document) error {
		if name == "" {
			return shared.ErrNotExist
		}
		for _, id := range doc.SortedUserIDs() {
			u := doc.Users[id]
			if u.Username != "" && strings.EqualFold(u.Username, name) {
				usr = u
				return nil
			}
		}
		return shared.ErrNotExist
	})
	if err != nil {
		return usr, fmt.Errorf("failed to get user: %w", err)
	}
	return usr, nil
}

func (r *DocumentUserRepository) Upsert(ctx context.Context, in domain.UserUpsert) (domain.UpsertResult, error) {
	var res domain.UpsertResult
	err := r.runner.write(ctx, func(ctx context.Context, doc *domain.Document) (bool, error) {
		if _, ok := doc.Statuses[in.Status]; !ok {
			return false, domain.ErrUnknownStatus
		}
		u, ok := doc.Users[in.ID]
		res.OldStatus = domain.StatusUnknown
		if ok {
			res.OldStatus = u.Status
		} else {
			u = domain.UserRecord{ID: in.ID}
			res.Created = true
		}
		if in.Username != "" {
			u.Username = in.Username
		}
		modifier := in.ModifierID
		at := in.At.UTC()
		u.Status = in.Status
		u.Proof = in.Proof
		u.Comment = in.Comment
		u.UpdatedBy = &modifier
		u.UpdatedAt = &at
		doc.Users[in.ID] = u
		res.User = u
		return true, nil
	})
	if err != nil {
		return res, fmt.Errorf("failed to upsert user: %w", err)
	}
	return res, nil
}

func (r *DocumentUserRepository) ListByStatus(ctx context.Context, code string) ([]domain.UserRecord, error) {
	var users []domain.UserRecord
	err := r.runner.read(ctx, func(doc *domain.Document) error {
		for _, id := range doc.SortedUserIDs() {
			if u := doc.Users[id]; u.Status == code {
				users = append(users, u)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

func (r *DocumentUserRepository) CountByStatus(ctx context.Context) (map[string]int, error) {
	counts := make(map[string]int)
	err := r.runner.read(ctx, func(doc *domain.Document) error {
		for _, u := range doc.Users {
			counts[u.Status]++
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to count users: %w", err)
	}
	return counts, nil
}
