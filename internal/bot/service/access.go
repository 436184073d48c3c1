package service

import (
	"context"
	"fmt"
	"slices"

	"github.com/charadev96/repguard/internal/bot/domain"
)

type Role int

const (
	RoleMember Role = iota
	RoleModerator
	RoleAdmin
)

// AccessPolicy gates every operation on channel subscription and role.
// Admins come from configuration and are moderators implicitly.
type AccessPolicy struct {
	Moderators    domain.ModeratorRepository
	Subscriptions domain.SubscriptionChecker

	admins map[int64]struct{}
}

func NewAccessPolicy(
	admins []int64,
	moderators domain.ModeratorRepository,
	subscriptions domain.SubscriptionChecker,
) *AccessPolicy {
	set := make(map[int64]struct{}, len(admins))
	for _, id := range admins {
		set[id] = struct{}{}
	}
	return &AccessPolicy{
		Moderators:    moderators,
		Subscriptions: subscriptions,
		admins:        set,
	}
}

func (p *AccessPolicy) Admins() []int64 {
	ids := make([]int64, 0, len(p.admins))
	for id := range p.admins {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func (p *AccessPolicy) IsAdmin(id int64) bool {
	_, ok := p.admins[id]
	return ok
}

func (p *AccessPolicy) IsModerator(ctx context.Context, id int64) (bool, error) {
	if p.IsAdmin(id) {
		return true, nil
	}
	return p.Moderators.Contains(ctx, id)
}

func (p *AccessPolicy) Authorize(ctx context.Context, actor int64, role Role) error {
	if p.Subscriptions != nil {
		ok, err := p.Subscriptions.IsSubscribed(ctx, actor)
		if err != nil {
			return fmt.Errorf("failed to check subscription: %w", err)
		}
		if !ok {
			return domain.ErrNotSubscribed
		}
	}
	switch role {
	case RoleAdmin:
		if !p.IsAdmin(actor) {
			return domain.ErrForbidden
		}
	case RoleModerator:
		ok, err := p.IsModerator(ctx, actor)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrForbidden
		}
	}
	return nil
}
