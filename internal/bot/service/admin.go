package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/charadev96/repguard/internal/bot/domain"
	shared "github.com/charadev96/repguard/internal/shared/domain"
	"github.com/charadev96/repguard/internal/shared/log"
)

type AdminService struct {
	Statuses   domain.StatusRepository
	Moderators domain.ModeratorRepository
	Users      domain.UserRepository
	Access     *AccessPolicy
	TXRunner   shared.TransactionRunner
	Logger     *zerolog.Logger
}

func (s *AdminService) ListStatuses(ctx context.Context, actor int64) (map[string]domain.StatusCategory, error) {
	if err := s.Access.Authorize(ctx, actor, RoleMember); err != nil {
		return nil, err
	}
	return s.Statuses.List(ctx)
}

// AddStatus creates a category or merges patch into an existing one.
func (s *AdminService) AddStatus(ctx context.Context, actor int64, code string, patch domain.StatusPatch) (domain.StatusCategory, error) {
	code, err := normalizeCode(code)
	if err != nil {
		return domain.StatusCategory{}, err
	}
	if err := s.Access.Authorize(ctx, actor, RoleAdmin); err != nil {
		return domain.StatusCategory{}, err
	}
	c, err := s.Statuses.Upsert(ctx, code, patch)
	if err != nil {
		return c, err
	}
	s.logger().Info().Int64("actor", actor).Str("code", code).Msg("status saved")
	return c, nil
}

func (s *AdminService) EditStatus(ctx context.Context, actor int64, code string, patch domain.StatusPatch) (domain.StatusCategory, error) {
	code, err := normalizeCode(code)
	if err != nil {
		return domain.StatusCategory{}, err
	}
	if err := s.Access.Authorize(ctx, actor, RoleAdmin); err != nil {
		return domain.StatusCategory{}, err
	}
	c, err := s.Statuses.Update(ctx, code, patch)
	if err != nil {
		return c, err
	}
	s.logger().Info().Int64("actor", actor).Str("code", code).Msg("status edited")
	return c, nil
}

func (s *AdminService) DeleteStatus(ctx context.Context, actor int64, code string) error {
	code, err := normalizeCode(code)
	if err != nil {
		return err
	}
	if err := s.Access.Authorize(ctx, actor, RoleAdmin); err != nil {
		return err
	}
	if err := s.Statuses.Delete(ctx, code); err != nil {
		return err
	}
	s.logger().Info().Int64("actor", actor).Str("code", code).Msg("status deleted")
	return nil
}

func (s *AdminService) AddModerator(ctx context.Context, actor, id int64) (bool, error) {
	if id <= 0 {
		return false, fmt.Errorf("%w: invalid user id %d", domain.ErrInvalidInput, id)
	}
	if err := s.Access.Authorize(ctx, actor, RoleAdmin); err != nil {
		return false, err
	}
	added, err := s.Moderators.Add(ctx, id)
	if err != nil {
		return false, err
	}
	if added {
		s.logger().Info().Int64("actor", actor).Int64("moderator", id).Msg("moderator added")
	}
	return added, nil
}

func (s *AdminService) RemoveModerator(ctx context.Context, actor, id int64) (bool, error) {
	if id <= 0 {
		return false, fmt.Errorf("%w: invalid user id %d", domain.ErrInvalidInput, id)
	}
	if err := s.Access.Authorize(ctx, actor, RoleAdmin); err != nil {
		return false, err
	}
	removed, err := s.Moderators.Remove(ctx, id)
	if err != nil {
		return false, err
	}
	if removed {
		s.logger().Info().Int64("actor", actor).Int64("moderator", id).Msg("moderator removed")
	}
	return removed, nil
}

func (s *AdminService) ListModerators(ctx context.Context, actor int64) ([]int64, error) {
	if err := s.Access.Authorize(ctx, actor, RoleAdmin); err != nil {
		return nil, err
	}
	return s.Moderators.List(ctx)
}

type Overview struct {
	Admins     []int64
	Moderators []int64
	Statuses   map[string]domain.StatusCategory
	Counts     map[string]int
}

// Overview collects the admin panel figures from a single snapshot.
func (s *AdminService) Overview(ctx context.Context, actor int64) (Overview, error) {
	ov := Overview{Admins: s.Access.Admins()}
	if err := s.Access.Authorize(ctx, actor, RoleAdmin); err != nil {
		return ov, err
	}
	err := s.TXRunner.View(ctx, func(ctx context.Context) error {
		var err error
		if ov.Moderators, err = s.Moderators.List(ctx); err != nil {
			return err
		}
		if ov.Statuses, err = s.Statuses.List(ctx); err != nil {
			return err
		}
		ov.Counts, err = s.Users.CountByStatus(ctx)
		return err
	})
	return ov, err
}

func (s *AdminService) logger() *zerolog.Logger {
	return log.OrNop(s.Logger)
}

// normalizeCode rejects codes that cannot be typed back as a single
// command argument.
func normalizeCode(code string) (string, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return "", fmt.Errorf("%w: status code is required", domain.ErrInvalidInput)
	}
	if strings.ContainsAny(code, " \t\n;") {
		return "", fmt.Errorf("%w: status code %q contains separators", domain.ErrInvalidInput, code)
	}
	return code, nil
}
