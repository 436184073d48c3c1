package repository

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/charadev96/repguard/internal/bot/domain"
)

const (
	permDocument = 0644
)

// TOMLDocumentStore keeps the document in a single TOML file. The decoded
// file is cached and re-read whenever its modification time or size
// changes. Writes go to a temporary file that is renamed over the old one.
type TOMLDocumentStore struct {
	FilePath string
	Defaults map[string]domain.StatusCategory

	mu         sync.Mutex
	data       documentSchema
	loaded     bool
	modifiedAt time.Time
	size       int64
	// known is set once a document was read or written. A file that goes
	// missing afterwards is never seeded again.
	known      bool
}

func NewTOMLDocumentStore(path string, defaults map[string]domain.StatusCategory) *TOMLDocumentStore {
	return &TOMLDocumentStore{
		FilePath: path,
		Defaults: defaults,
	}
}

func (s *TOMLDocumentStore) Load(ctx context.Context) (domain.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.refresh(); err != nil {
		return domain.Document{}, err
	}
	doc, err := s.data.toDomain()
	if err != nil {
		s.loaded = false
		return domain.Document{}, fmt.Errorf("%w: %w", domain.ErrStoreCorrupt, err)
	}
	return doc, nil
}

func (s *TOMLDocumentStore) Replace(ctx context.Context, doc domain.Document) error {
	if err := doc.Validate(); err != nil {
		return fmt.Errorf("failed to replace document: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.refresh(); err != nil {
		return err
	}
	if doc.Revision != s.data.Revision {
		return fmt.Errorf(
			"%w: revision %d, stored %d",
			domain.ErrStoreConflict, doc.Revision, s.data.Revision,
		)
	}
	data, err := newDocumentSchema(doc)
	if err != nil {
		return fmt.Errorf("failed to replace document: %w", err)
	}
	prev := s.data
	s.data = data
	s.data.Revision = doc.Revision + 1
	if err := s.save(); err != nil {
		s.data = prev
		return err
	}
	return nil
}

func (s *TOMLDocumentStore) Reinitialize(ctx context.Context) (domain.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := os.Stat(s.FilePath); err == nil {
		aside := fmt.Sprintf("%s.corrupt-%d", s.FilePath, time.Now().Unix())
		if err := os.Rename(s.FilePath, aside); err != nil {
			return domain.Document{}, fmt.Errorf("%w: failed to move document aside: %w", domain.ErrStoreUnavailable, err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return domain.Document{}, fmt.Errorf("%w: failed to stat document: %w", domain.ErrStoreUnavailable, err)
	}
	doc := domain.NewDocument(s.Defaults)
	data, err := newDocumentSchema(doc)
	if err != nil {
		return domain.Document{}, fmt.Errorf("failed to reinitialize document: %w", err)
	}
	s.data = data
	if err := s.save(); err != nil {
		return domain.Document{}, err
	}
	return doc, nil
}

func (s *TOMLDocumentStore) refresh() error {
	info, err := os.Stat(s.FilePath)
	if errors.Is(err, os.ErrNotExist) {
		if s.known {
			s.loaded = false
			return fmt.Errorf("%w: %s is gone, reinitialize to start over", domain.ErrStoreCorrupt, s.FilePath)
		}
		data, err := newDocumentSchema(domain.NewDocument(s.Defaults))
		if err != nil {
			return fmt.Errorf("failed to create document: %w", err)
		}
		s.data = data
		return s.save()
	}
	if err != nil {
		return fmt.Errorf("%w: failed to read document timestamp: %w", domain.ErrStoreUnavailable, err)
	}
	if s.loaded && s.modifiedAt.Equal(info.ModTime()) && s.size == info.Size() {
		return nil
	}

	raw, err := os.ReadFile(s.FilePath)
	if err != nil {
		return fmt.Errorf("%w: failed to read document: %w", domain.ErrStoreUnavailable, err)
	}
	var data documentSchema
	md, err := toml.Decode(string(raw), &data)
	if err != nil {
		s.loaded = false
		return fmt.Errorf("%w: failed to decode %s: %w", domain.ErrStoreCorrupt, s.FilePath, err)
	}
	s.data = data
	s.loaded = true
	s.known = true
	s.modifiedAt = info.ModTime()
	s.size = info.Size()

	defined := func(key string) bool { return md.IsDefined(key) }
	if s.data.repair(defined, s.Defaults) {
		return s.save()
	}
	return nil
}

func (s *TOMLDocumentStore) save() error {
	dir := filepath.Dir(s.FilePath)
	file, err := os.CreateTemp(dir, filepath.Base(s.FilePath)+".tmp-*")
	if err != nil {
		return fmt.Errorf("%w: failed to create temporary document: %w", domain.ErrStoreUnavailable, err)
	}
	tmp := file.Name()
	defer os.Remove(tmp)

	enc := toml.NewEncoder(file)
	enc.Indent = ""
	if err := enc.Encode(s.data); err != nil {
		file.Close()
		return fmt.Errorf("%w: failed to encode document: %w", domain.ErrStoreUnavailable, err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		return fmt.Errorf("%w: failed to sync document: %w", domain.ErrStoreUnavailable, err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("%w: failed to close document: %w", domain.ErrStoreUnavailable, err)
	}
	if err := os.Chmod(tmp, permDocument); err != nil {
		return fmt.Errorf("%w: failed to set document permissions: %w", domain.ErrStoreUnavailable, err)
	}
	if err := os.Rename(tmp, s.FilePath); err != nil {
		return fmt.Errorf("%w: failed to replace document: %w", domain.ErrStoreUnavailable, err)
	}

	s.known = true
	info, err := os.Stat(s.FilePath)
	if err != nil {
		s.loaded = false
		return nil
	}
	s.loaded = true
	s.modifiedAt = info.ModTime()
	s.size = info.Size()
	return nil
}
