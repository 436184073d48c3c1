package repository

import (
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jinzhu/copier"

	"github.com/charadev96/repguard/internal/bot/domain"
)

const (
	keyUsers      = "users"
	keyStatuses   = "statuses"
	keyModerators = "moderators"
	keyLogs       = "logs"
)

// documentSchema is the on-disk shape shared by every store backend.
type documentSchema struct {
	Revision   int64                 `toml:"revision" cbor:"revision"`
	Moderators []int64               `toml:"moderators" cbor:"moderators"`
	Users      map[string]*userRow   `toml:"users" cbor:"users"`
	Statuses   map[string]*statusRow `toml:"statuses" cbor:"statuses"`
	Logs       []ledgerRow           `toml:"logs" cbor:"logs"`
}

type userRow struct {
	ID        int64      `toml:"id" cbor:"id"`
	Username  string     `toml:"username,omitempty" cbor:"username,omitempty"`
	Status    string     `toml:"status" cbor:"status"`
	Proof     string     `toml:"proof,omitempty" cbor:"proof,omitempty"`
	Comment   string     `toml:"comment,omitempty" cbor:"comment,omitempty"`
	UpdatedBy *int64     `toml:"updatedBy,omitempty" cbor:"updatedBy,omitempty"`
	UpdatedAt *time.Time `toml:"updatedAt,omitempty" cbor:"updatedAt,omitempty"`
}

type statusRow struct {
	Title       string `toml:"title" cbor:"title"`
	Description string `toml:"description" cbor:"description"`
	Photo       string `toml:"photo" cbor:"photo"`
}

type ledgerRow struct {
	ID          string    `toml:"id" cbor:"id"`
	Time        time.Time `toml:"time" cbor:"time"`
	ModeratorID int64     `toml:"moderatorId" cbor:"moderatorId"`
	TargetID    int64     `toml:"targetId" cbor:"targetId"`
	OldStatus   string    `toml:"oldStatus" cbor:"oldStatus"`
	NewStatus   string    `toml:"newStatus" cbor:"newStatus"`
	Proof       string    `toml:"proof" cbor:"proof"`
	Comment     string    `toml:"comment" cbor:"comment"`
}

func (r *ledgerRow) toDomain() (domain.LedgerEntry, error) {
	id, err := uuid.Parse(r.ID)
	if err != nil {
		return domain.LedgerEntry{}, fmt.Errorf("invalid ledger entry id %q: %w", r.ID, err)
	}
	return domain.LedgerEntry{
		ID:          id,
		Time:        r.Time,
		ModeratorID: r.ModeratorID,
		TargetID:    r.TargetID,
		OldStatus:   r.OldStatus,
		NewStatus:   r.NewStatus,
		Proof:       r.Proof,
		Comment:     r.Comment,
	}, nil
}

func (r *ledgerRow) fromDomain(e domain.LedgerEntry) {
	r.ID = e.ID.String()
	r.Time = e.Time.UTC()
	r.ModeratorID = e.ModeratorID
	r.TargetID = e.TargetID
	r.OldStatus = e.OldStatus
	r.NewStatus = e.NewStatus
	r.Proof = e.Proof
	r.Comment = e.Comment
}

func newDocumentSchema(doc domain.Document) (documentSchema, error) {
	s := documentSchema{
		Revision:   doc.Revision,
		Moderators: append([]int64{}, doc.Moderators...),
		Users:      make(map[string]*userRow, len(doc.Users)),
		Statuses:   make(map[string]*statusRow, len(doc.Statuses)),
		Logs:       make([]ledgerRow, len(doc.Logs)),
	}
	for id, u := range doc.Users {
		row := new(userRow)
		if err := copier.CopyWithOption(row, &u, copier.Option{DeepCopy: true}); err != nil {
			return s, fmt.Errorf("failed to map user %d: %w", id, err)
		}
		s.Users[strconv.FormatInt(id, 10)] = row
	}
	for code, c := range doc.Statuses {
		row := new(statusRow)
		if err := copier.Copy(row, &c); err != nil {
			return s, fmt.Errorf("failed to map status %q: %w", code, err)
		}
		s.Statuses[code] = row
	}
	for i, e := range doc.Logs {
		s.Logs[i].fromDomain(e)
	}
	return s, nil
}

func (s *documentSchema) toDomain() (domain.Document, error) {
	doc := domain.Document{
		Revision:   s.Revision,
		Users:      make(map[int64]domain.UserRecord, len(s.Users)),
		Statuses:   make(map[string]domain.StatusCategory, len(s.Statuses)),
		Moderators: append([]int64{}, s.Moderators...),
		Logs:       make([]domain.LedgerEntry, 0, len(s.Logs)),
	}
	for key, row := range s.Users {
		id, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			return doc, fmt.Errorf("invalid user key %q: %w", key, err)
		}
		if row == nil {
			return doc, fmt.Errorf("empty user record %q", key)
		}
		u := domain.UserRecord{}
		if err := copier.CopyWithOption(&u, row, copier.Option{DeepCopy: true}); err != nil {
			return doc, fmt.Errorf("invalid user record %q: %w", key, err)
		}
		if u.ID == 0 {
			u.ID = id
		}
		if u.Status == "" {
			u.Status = domain.StatusUnknown
		}
		doc.Users[id] = u
	}
	for code, row := range s.Statuses {
		c := domain.StatusCategory{}
		if row != nil {
			if err := copier.Copy(&c, row); err != nil {
				return doc, fmt.Errorf("invalid status %q: %w", code, err)
			}
		}
		c.Code = code
		doc.Statuses[code] = c
	}
	for i := range s.Logs {
		e, err := s.Logs[i].toDomain()
		if err != nil {
			return doc, err
		}
		doc.Logs = append(doc.Logs, e)
	}
	return doc, nil
}

// repair adds collections that defined reports as absent and reports
// whether anything changed. Existing data is never discarded.
func (s *documentSchema) repair(defined func(key string) bool, defaults map[string]domain.StatusCategory) bool {
	changed := false
	if s.Users == nil {
		s.Users = make(map[string]*userRow)
	}
	if !defined(keyUsers) {
		changed = true
	}
	if s.Statuses == nil {
		s.Statuses = make(map[string]*statusRow)
	}
	if !defined(keyStatuses) {
		for code, c := range defaults {
			if _, ok := s.Statuses[code]; !ok {
				s.Statuses[code] = &statusRow{Title: c.Title, Description: c.Description, Photo: c.Photo}
			}
		}
		changed = true
	}
	if _, ok := s.Statuses[domain.StatusUnknown]; !ok {
		u := domain.UnknownCategory()
		s.Statuses[domain.StatusUnknown] = &statusRow{Title: u.Title, Description: u.Description, Photo: u.Photo}
		changed = true
	}
	if s.Moderators == nil {
		s.Moderators = []int64{}
	}
	if !defined(keyModerators) {
		changed = true
	}
	if s.Logs == nil {
		s.Logs = []ledgerRow{}
	}
	if !defined(keyLogs) {
		changed = true
	}
	return changed
}
