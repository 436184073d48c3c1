package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/charadev96/repguard/internal/bot/domain"
	shared "github.com/charadev96/repguard/internal/shared/domain"
	"github.com/charadev96/repguard/internal/shared/log"
)

const (
	DefaultRecentEntries = 10
	notifyTimeout        = 10 * time.Second
)

type ModerationService struct {
	Users     domain.UserRepository
	Statuses  domain.StatusRepository
	Ledger    domain.LedgerRepository
	Access    *AccessPolicy
	TXRunner  shared.TransactionRunner
	Observers []domain.StatusChangeObserver
	Logger    *zerolog.Logger
	Now       func() time.Time
}

type StatusChangeRequest struct {
	ActorID int64
	Target  string
	Reply   ReplyContext
	Status  string
	Proof   string
	Comment string
}

type StatusChangeResult struct {
	Entry       domain.LedgerEntry
	User        domain.UserRecord
	Created     bool
	StatusTitle string
}

// ApplyStatusChange sets the target's status and records the transition in
// the ledger. Both writes commit together or not at all.
func (s *ModerationService) ApplyStatusChange(ctx context.Context, req StatusChangeRequest) (StatusChangeResult, error) {
	res, err := s.applyStatusChange(ctx, req)
	statusChanges.WithLabelValues(resultLabel(err)).Inc()
	if err != nil {
		return res, err
	}

	s.logger().Info().
		Int64("actor", req.ActorID).
		Int64("target", res.Entry.TargetID).
		Str("old", res.Entry.OldStatus).
		Str("new", res.Entry.NewStatus).
		Msg("status changed")

	s.notify(domain.StatusChange{
		ActorID:        res.Entry.ModeratorID,
		TargetID:       res.Entry.TargetID,
		TargetUsername: res.User.Username,
		OldStatus:      res.Entry.OldStatus,
		NewStatus:      res.Entry.NewStatus,
		Proof:          res.Entry.Proof,
		Comment:        res.Entry.Comment,
		Time:           res.Entry.Time,
	})
	return res, nil
}

func (s *ModerationService) applyStatusChange(ctx context.Context, req StatusChangeRequest) (StatusChangeResult, error) {
	res := StatusChangeResult{}
	code := strings.TrimSpace(req.Status)
	if code == "" {
		return res, fmt.Errorf("%w: status is required", domain.ErrInvalidInput)
	}
	if err := s.Access.Authorize(ctx, req.ActorID, RoleModerator); err != nil {
		return res, err
	}

	now := s.now()
	err := s.TXRunner.Exec(ctx, func(ctx context.Context) error {
		target, err := s.ResolveTarget(ctx, req.Target, req.Reply)
		if err != nil {
			return err
		}

		category, err := s.Statuses.Get(ctx, code)
		if errors.Is(err, shared.ErrNotExist) {
			return fmt.Errorf("%w: %q", domain.ErrUnknownStatus, code)
		}
		if err != nil {
			return err
		}

		username := target.Username
		if req.Reply.UserID == target.ID && req.Reply.Username != "" {
			username = req.Reply.Username
		}

		up, err := s.Users.Upsert(ctx, domain.UserUpsert{
			ID:         target.ID,
			Username:   username,
			Status:     code,
			Proof:      req.Proof,
			Comment:    req.Comment,
			ModifierID: req.ActorID,
			At:         now,
		})
		if err != nil {
			return err
		}

		entry := domain.LedgerEntry{
			ID:          uuid.New(),
			Time:        now,
			ModeratorID: req.ActorID,
			TargetID:    target.ID,
			OldStatus:   up.OldStatus,
			NewStatus:   code,
			Proof:       req.Proof,
			Comment:     req.Comment,
		}
		if err := s.Ledger.Append(ctx, entry); err != nil {
			return err
		}

		res = StatusChangeResult{
			Entry:       entry,
			User:        up.User,
			Created:     up.Created,
			StatusTitle: category.Title,
		}
		return nil
	})
	if err != nil {
		return StatusChangeResult{}, err
	}
	return res, nil
}

func (s *ModerationService) notify(change domain.StatusChange) {
	for _, o := range s.Observers {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
			defer cancel()
			if err := o.StatusChanged(ctx, change); err != nil {
				s.logger().Warn().Err(err).Int64("target", change.TargetID).Msg("status observer failed")
			}
		}()
	}
}

type LookupResult struct {
	User      domain.UserRecord
	Category  domain.StatusCategory
	Persisted bool
}

// Lookup finds a user by id or username. Users without a record are
// reported with the unknown status and Persisted set to false.
func (s *ModerationService) Lookup(ctx context.Context, actor int64, query string) (LookupResult, error) {
	res := LookupResult{}
	query = strings.TrimSpace(query)
	name := strings.TrimPrefix(query, "@")
	if name == "" {
		return res, fmt.Errorf("%w: empty query", domain.ErrInvalidInput)
	}
	if err := s.Access.Authorize(ctx, actor, RoleMember); err != nil {
		return res, err
	}

	err := s.TXRunner.View(ctx, func(ctx context.Context) error {
		var (
			u   domain.UserRecord
			err error
		)
		id, byID := ParseUserID(query)
		if byID {
			u, err = s.Users.GetByID(ctx, id)
		} else {
			u, err = s.Users.GetByUsername(ctx, name)
		}
		switch {
		case err == nil:
			res.User = u
			res.Persisted = true
		case errors.Is(err, shared.ErrNotExist):
			if byID {
				res.User = domain.NewUnknownUser(id, "")
			} else {
				res.User = domain.NewUnknownUser(0, name)
			}
		default:
			return err
		}

		res.Category, err = s.Statuses.Get(ctx, res.User.Status)
		if errors.Is(err, shared.ErrNotExist) {
			res.Category, err = s.Statuses.Get(ctx, domain.StatusUnknown)
		}
		return err
	})
	if err != nil {
		return LookupResult{}, err
	}
	return res, nil
}

func (s *ModerationService) ListByStatus(ctx context.Context, actor int64, code string) (domain.StatusCategory, []domain.UserRecord, error) {
	var (
		category domain.StatusCategory
		users    []domain.UserRecord
	)
	if err := s.Access.Authorize(ctx, actor, RoleMember); err != nil {
		return category, nil, err
	}
	err := s.TXRunner.View(ctx, func(ctx context.Context) error {
		var err error
		category, err = s.Statuses.Get(ctx, code)
		if errors.Is(err, shared.ErrNotExist) {
			return fmt.Errorf("%w: %q", domain.ErrUnknownStatus, code)
		}
		if err != nil {
			return err
		}
		users, err = s.Users.ListByStatus(ctx, code)
		return err
	})
	return category, users, err
}

type Stats struct {
	Total     int
	ByStatus  map[string]int
	Statuses  map[string]domain.StatusCategory
	LogLength int
}

func (s *ModerationService) Stats(ctx context.Context, actor int64) (Stats, error) {
	st := Stats{}
	if err := s.Access.Authorize(ctx, actor, RoleMember); err != nil {
		return st, err
	}
	err := s.TXRunner.View(ctx, func(ctx context.Context) error {
		var err error
		if st.ByStatus, err = s.Users.CountByStatus(ctx); err != nil {
			return err
		}
		if st.Statuses, err = s.Statuses.List(ctx); err != nil {
			return err
		}
		if st.LogLength, err = s.Ledger.Count(ctx); err != nil {
			return err
		}
		for _, n := range st.ByStatus {
			st.Total += n
		}
		return nil
	})
	return st, err
}

// RecentLedger returns the last n ledger entries, oldest first. A
// non-positive n selects DefaultRecentEntries.
func (s *ModerationService) RecentLedger(ctx context.Context, actor int64, n int) ([]domain.LedgerEntry, error) {
	if err := s.Access.Authorize(ctx, actor, RoleModerator); err != nil {
		return nil, err
	}
	if n <= 0 {
		n = DefaultRecentEntries
	}
	var entries []domain.LedgerEntry
	err := s.TXRunner.View(ctx, func(ctx context.Context) error {
		var err error
		entries, err = s.Ledger.Recent(ctx, n)
		return err
	})
	return entries, err
}

func (s *ModerationService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *ModerationService) logger() *zerolog.Logger {
	return log.OrNop(s.Logger)
}
