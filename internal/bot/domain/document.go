package domain

import (
	"context"
	"fmt"
	"slices"
	"time"
)

// Document is the whole persisted state. Every mutation replaces it.
type Document struct {
	Revision   int64
	Users      map[int64]UserRecord
	Statuses   map[string]StatusCategory
	Moderators []int64
	Logs       []LedgerEntry
}

// NewDocument builds an empty document seeded with statuses. The unknown
// category is always added.
func NewDocument(statuses map[string]StatusCategory) Document {
	doc := Document{
		Users:      make(map[int64]UserRecord),
		Statuses:   make(map[string]StatusCategory, len(statuses)+1),
		Moderators: []int64{},
		Logs:       []LedgerEntry{},
	}
	for code, c := range statuses {
		c.Code = code
		doc.Statuses[code] = c
	}
	doc.EnsureUnknown()
	return doc
}

// EnsureUnknown adds the unknown category if missing and reports whether
// the document changed.
func (d *Document) EnsureUnknown() bool {
	if d.Statuses == nil {
		d.Statuses = make(map[string]StatusCategory)
	}
	if _, ok := d.Statuses[StatusUnknown]; ok {
		return false
	}
	d.Statuses[StatusUnknown] = UnknownCategory()
	return true
}

// Validate checks that every reference in the document resolves.
func (d Document) Validate() error {
	if _, ok := d.Statuses[StatusUnknown]; !ok {
		return fmt.Errorf("status %q is missing: %w", StatusUnknown, ErrUnknownStatus)
	}
	for id, u := range d.Users {
		if u.ID != id {
			return fmt.Errorf("user key %d holds record %d: %w", id, u.ID, ErrInvalidInput)
		}
		if _, ok := d.Statuses[u.Status]; !ok {
			return fmt.Errorf("user %d references status %q: %w", id, u.Status, ErrUnknownStatus)
		}
	}
	return nil
}

// SortedUserIDs returns user ids in ascending order, which is the
// iteration order of every scan over the users collection.
func (d Document) SortedUserIDs() []int64 {
	ids := make([]int64, 0, len(d.Users))
	for id := range d.Users {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

type DocumentStore interface {
	// Load returns the current document, creating or repairing it on disk
	// first when needed.
	Load(ctx context.Context) (Document, error)
	// Replace atomically writes doc. doc.Revision must equal the stored
	// revision, which is then incremented.
	Replace(ctx context.Context, doc Document) error
	// Reinitialize discards the stored document and writes a fresh one.
	Reinitialize(ctx context.Context) (Document, error)
}

// StatusChange describes a committed status transition for observers.
type StatusChange struct {
	ActorID        int64
	TargetID       int64
	TargetUsername string
	OldStatus      string
	NewStatus      string
	Proof          string
	Comment        string
	Time           time.Time
}

type StatusChangeObserver interface {
	StatusChanged(ctx context.Context, change StatusChange) error
}

type SubscriptionChecker interface {
	IsSubscribed(ctx context.Context, userID int64) (bool, error)
}
