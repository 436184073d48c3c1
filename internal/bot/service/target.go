package service

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/charadev96/repguard/internal/bot/domain"
	shared "github.com/charadev96/repguard/internal/shared/domain"
)

// ReplyContext is the author of the message a command replied to.
type ReplyContext struct {
	UserID   int64
	Username string
}

type ResolvedTarget struct {
	ID       int64
	Username string
}

// ParseUserID accepts a bare positive number or the same number prefixed
// with "id" in any case.
func ParseUserID(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	if len(s) > 2 && strings.EqualFold(s[:2], "id") {
		s = s[2:]
	}
	if s == "" {
		return 0, false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, false
		}
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// ResolveTarget turns a target specifier into a user id. In order: a
// numeric id, an id-prefixed id, a known username with or without "@",
// and finally the reply context when no record matched.
func (s *ModerationService) ResolveTarget(ctx context.Context, query string, reply ReplyContext) (ResolvedTarget, error) {
	query = strings.TrimSpace(query)
	var t ResolvedTarget
	err := s.TXRunner.View(ctx, func(ctx context.Context) error {
		if id, ok := ParseUserID(query); ok {
			t.ID = id
			u, err := s.Users.GetByID(ctx, id)
			if err == nil {
				t.Username = u.Username
				return nil
			}
			if errors.Is(err, shared.ErrNotExist) {
				return nil
			}
			return err
		}
		if name := strings.TrimPrefix(query, "@"); name != "" {
			u, err := s.Users.GetByUsername(ctx, name)
			if err == nil {
				t.ID = u.ID
				t.Username = u.Username
				return nil
			}
			if !errors.Is(err, shared.ErrNotExist) {
				return err
			}
		}
		if reply.UserID > 0 {
			t.ID = reply.UserID
			t.Username = reply.Username
			return nil
		}
		return domain.ErrTargetNotFound
	})
	return t, err
}
