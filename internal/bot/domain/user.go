package domain

import (
	"context"
	"time"
)

type UserRecord struct {
	ID        int64
	Username  string
	Status    string
	Proof     string
	Comment   string
	UpdatedBy *int64
	UpdatedAt *time.Time
}

// NewUnknownUser returns the ephemeral record shown for users that were
// never moderated. It is not persisted.
func NewUnknownUser(id int64, username string) UserRecord {
	return UserRecord{
		ID:       id,
		Username: username,
		Status:   StatusUnknown,
	}
}

// UserUpsert always overwrites status, proof, comment, modifier and time.
// Username is only refreshed when non-empty.
type UserUpsert struct {
	ID         int64
	Username   string
	Status     string
	Proof      string
	Comment    string
	ModifierID int64
	At         time.Time
}

type UpsertResult struct {
	OldStatus string
	User      UserRecord
	Created   bool
}

type UserRepository interface {
	GetByID(ctx context.Context, id int64) (UserRecord, error)
	// GetByUsername matches case-insensitively. Usernames are not unique;
	// ties resolve to the lowest user id.
	GetByUsername(ctx context.Context, name string) (UserRecord, error)
	Upsert(ctx context.Context, u UserUpsert) (UpsertResult, error)
	ListByStatus(ctx context.Context, code string) ([]UserRecord, error)
	CountByStatus(ctx context.Context) (map[string]int, error)
}
