package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/rs/zerolog"

	"github.com/charadev96/repguard/internal/bot/domain"
	shared "github.com/charadev96/repguard/internal/shared/domain"
	"github.com/charadev96/repguard/internal/shared/log"
)

// PendingService routes an actor's next free-text message to the action
// they started from a menu.
type PendingService struct {
	Actions    domain.PendingActionRepository
	Admin      *AdminService
	Moderation *ModerationService
	Access     *AccessPolicy
	Logger     *zerolog.Logger
}

type PendingResult struct {
	Tag         domain.PendingTag
	ModeratorID int64
	Changed     bool
	Category    domain.StatusCategory
	Code        string
	Change      StatusChangeResult
}

func (s *PendingService) Begin(ctx context.Context, actor int64, tag domain.PendingTag) error {
	if !tag.Valid() {
		return fmt.Errorf("%w: unknown pending action %q", domain.ErrInvalidInput, tag)
	}
	role := RoleAdmin
	if tag == domain.PendingSetStatus {
		role = RoleModerator
	}
	if err := s.Access.Authorize(ctx, actor, role); err != nil {
		return err
	}
	s.Actions.Set(actor, tag)
	return nil
}

func (s *PendingService) Pending(actor int64) (domain.PendingTag, bool) {
	return s.Actions.Get(actor)
}

func (s *PendingService) Cancel(actor int64) {
	s.Actions.Clear(actor)
}

// Handle consumes text for the actor's pending action. The slot survives
// errors the actor can fix by sending corrected input, and is cleared
// otherwise. Without a pending action it returns shared.ErrNotExist.
func (s *PendingService) Handle(ctx context.Context, actor int64, text string) (PendingResult, error) {
	tag, ok := s.Actions.Get(actor)
	if !ok {
		return PendingResult{}, shared.ErrNotExist
	}

	res, err := s.dispatch(ctx, actor, tag, strings.TrimSpace(text))
	res.Tag = tag

	outcome := "done"
	if keepPending(err) {
		outcome = "retry"
	} else {
		s.Actions.Clear(actor)
		if err != nil {
			outcome = "refused"
		}
	}
	pendingDispatches.WithLabelValues(string(tag), outcome).Inc()

	if err != nil {
		s.logger().Debug().Err(err).Int64("actor", actor).Str("tag", string(tag)).Str("outcome", outcome).Msg("pending action not applied")
	}
	return res, err
}

// Apply runs the action for tag with text at once, without touching the
// actor's pending slot.
func (s *PendingService) Apply(ctx context.Context, actor int64, tag domain.PendingTag, text string) (PendingResult, error) {
	res, err := s.dispatch(ctx, actor, tag, strings.TrimSpace(text))
	res.Tag = tag
	return res, err
}

func (s *PendingService) dispatch(ctx context.Context, actor int64, tag domain.PendingTag, text string) (PendingResult, error) {
	res := PendingResult{}
	switch tag {
	case domain.PendingAddModerator, domain.PendingRemoveModerator:
		id, err := parseNumericID(text)
		if err != nil {
			return res, err
		}
		res.ModeratorID = id
		if tag == domain.PendingAddModerator {
			res.Changed, err = s.Admin.AddModerator(ctx, actor, id)
		} else {
			res.Changed, err = s.Admin.RemoveModerator(ctx, actor, id)
		}
		return res, err

	case domain.PendingAddStatus:
		parts := strings.SplitN(text, ";", 4)
		if len(parts) < 4 {
			return res, fmt.Errorf("%w: expected code;title;photo;description", domain.ErrInvalidInput)
		}
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		res.Code = parts[0]
		c, err := s.Admin.AddStatus(ctx, actor, parts[0], domain.StatusPatch{
			Title:       &parts[1],
			Photo:       &parts[2],
			Description: &parts[3],
		})
		res.Category = c
		return res, err

	case domain.PendingEditStatus:
		code, rest := cutField(text)
		field, value := cutField(rest)
		if code == "" || field == "" || value == "" {
			return res, fmt.Errorf("%w: expected code field value", domain.ErrInvalidInput)
		}
		patch := domain.StatusPatch{}
		switch strings.ToLower(field) {
		case "title":
			patch.Title = &value
		case "photo":
			patch.Photo = &value
		case "description":
			patch.Description = &value
		default:
			return res, fmt.Errorf("%w: field must be title, photo or description", domain.ErrInvalidInput)
		}
		res.Code = code
		c, err := s.Admin.EditStatus(ctx, actor, code, patch)
		res.Category = c
		return res, err

	case domain.PendingDeleteStatus:
		res.Code = text
		return res, s.Admin.DeleteStatus(ctx, actor, text)

	case domain.PendingSetStatus:
		req, err := ParseSetStatusArgs(actor, text)
		if err != nil {
			return res, err
		}
		res.Change, err = s.Moderation.ApplyStatusChange(ctx, req)
		return res, err
	}
	return res, fmt.Errorf("%w: unknown pending action %q", domain.ErrInvalidInput, tag)
}

// ParseSetStatusArgs reads "target status [proof] [comment...]".
func ParseSetStatusArgs(actor int64, text string) (StatusChangeRequest, error) {
	fields := strings.Fields(text)
	if len(fields) < 2 {
		return StatusChangeRequest{}, fmt.Errorf("%w: expected target status [proof] [comment]", domain.ErrInvalidInput)
	}
	req := StatusChangeRequest{
		ActorID: actor,
		Target:  fields[0],
		Status:  fields[1],
	}
	if len(fields) > 2 {
		req.Proof = fields[2]
	}
	if len(fields) > 3 {
		req.Comment = strings.Join(fields[3:], " ")
	}
	return req, nil
}

// cutField splits off the first whitespace-delimited word.
func cutField(s string) (string, string) {
	s = strings.TrimLeftFunc(s, unicode.IsSpace)
	i := strings.IndexFunc(s, unicode.IsSpace)
	if i < 0 {
		return s, ""
	}
	return s[:i], strings.TrimSpace(s[i:])
}

func parseNumericID(text string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(text), 10, 64)
	if err != nil || id <= 0 || strings.HasPrefix(strings.TrimSpace(text), "+") {
		return 0, fmt.Errorf("%w: expected a numeric user id", domain.ErrInvalidInput)
	}
	return id, nil
}

func keepPending(err error) bool {
	if err == nil {
		return false
	}
	for _, target := range []error{
		domain.ErrInvalidInput,
		domain.ErrTargetNotFound,
		domain.ErrUnknownStatus,
		domain.ErrNotSubscribed,
		domain.ErrStoreUnavailable,
		domain.ErrStoreConflict,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func (s *PendingService) logger() *zerolog.Logger {
	return log.OrNop(s.Logger)
}
