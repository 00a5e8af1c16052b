// Package medstore provides the medication persistence backends: a local
// JSON file store for development and a Firestore store for cloud
// deployments.
package medstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/medbox-genie/reminder-scheduling/internal/domain"
)

type fileDocument struct {
	Users map[string]*userRecord `json:"users"`
}

type userRecord struct {
	PreferredReminderTime *domain.TimeOfDay   `json:"preferred_reminder_time,omitempty"`
	Medications           []domain.Medication `json:"medications"`
}

// FileStore keeps all users' medications in a single JSON file. Writes go
// through a temp file and rename so a crash never leaves a torn document.
type FileStore struct {
	path string

	mu  sync.Mutex
	doc *fileDocument
}

func NewFileStore(path string) (*FileStore, error) {
	s := &FileStore{
		path: path,
		doc:  &fileDocument{Users: make(map[string]*userRecord)},
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return s, nil
		}
		return nil, fmt.Errorf("failed to read store file: %w", err)
	}

	if err := json.Unmarshal(data, s.doc); err != nil {
		return nil, fmt.Errorf("failed to decode store file: %w", err)
	}
	if s.doc.Users == nil {
		s.doc.Users = make(map[string]*userRecord)
	}

	return s, nil
}

var _ domain.MedicationStore = (*FileStore)(nil)

func (s *FileStore) FetchAll(_ context.Context, userID string) ([]domain.Medication, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.doc.Users[userID]
	if !ok {
		return nil, nil
	}

	meds := make([]domain.Medication, len(user.Medications))
	copy(meds, user.Medications)
	return meds, nil
}

func (s *FileStore) Fetch(_ context.Context, userID, name string) (*domain.Medication, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.doc.Users[userID]
	if !ok {
		return nil, domain.ErrMedicationNotFound
	}
	for i := range user.Medications {
		if user.Medications[i].Name == name {
			med := user.Medications[i]
			return &med, nil
		}
	}
	return nil, domain.ErrMedicationNotFound
}

func (s *FileStore) FetchPreferredReminderTime(_ context.Context, userID string) (domain.TimeOfDay, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.doc.Users[userID]
	if !ok || user.PreferredReminderTime == nil {
		return domain.TimeOfDay{}, domain.ErrPreferredTimeNotSet
	}
	return *user.PreferredReminderTime, nil
}

// SetPreferredReminderTime stores the per-user reminder time used by the
// weekday reminder mode.
func (s *FileStore) SetPreferredReminderTime(_ context.Context, userID string, t domain.TimeOfDay) error {
	if err := t.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	user := s.userLocked(userID)
	user.PreferredReminderTime = &t
	return s.persistLocked()
}

func (s *FileStore) Save(_ context.Context, med *domain.Medication) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user := s.userLocked(med.UserID)
	for i := range user.Medications {
		if user.Medications[i].Name == med.Name {
			user.Medications[i] = *med
			return s.persistLocked()
		}
	}
	user.Medications = append(user.Medications, *med)
	return s.persistLocked()
}

func (s *FileStore) Delete(_ context.Context, userID, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.doc.Users[userID]
	if !ok {
		return domain.ErrMedicationNotFound
	}
	for i := range user.Medications {
		if user.Medications[i].Name == name {
			user.Medications = append(user.Medications[:i], user.Medications[i+1:]...)
			return s.persistLocked()
		}
	}
	return domain.ErrMedicationNotFound
}

func (s *FileStore) Changes(_ context.Context) (<-chan domain.Change, error) {
	return nil, domain.ErrChangeStreamUnsupported
}

func (s *FileStore) ListUsers(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	users := make([]string, 0, len(s.doc.Users))
	for userID := range s.doc.Users {
		users = append(users, userID)
	}
	sort.Strings(users)
	return users, nil
}

func (s *FileStore) userLocked(userID string) *userRecord {
	user, ok := s.doc.Users[userID]
	if !ok {
		user = &userRecord{}
		s.doc.Users[userID] = user
	}
	return user
}

func (s *FileStore) persistLocked() error {
	data, err := json.MarshalIndent(s.doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode store file: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".medstore-*")
	if err != nil {
		return fmt.Errorf("failed to create temp store file: %w", err)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write temp store file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to close temp store file: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to replace store file: %w", err)
	}
	return nil
}
