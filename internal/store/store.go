package store

import (
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/gladiators/warstats/internal/models"
)

const (
	historyFile   = "war-history.json"
	membersFile   = "members.json"
	snapshotsFile = "war-snapshots.json"
)

// Store persists the weekly war ledger, the member history ledger and
// the rollover snapshots as whole-document JSON files. A missing or
// corrupted file never fails startup: loads degrade to empty state with
// a logged warning.
type Store struct {
	dir string
}

func New(dir string) *Store {
	return &Store{dir: dir}
}

func (s *Store) path(name string) string {
	return filepath.Join(s.dir, name)
}

func (s *Store) write(name string, v any) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return err
	}
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	b = append(b, '\n')
	return os.WriteFile(s.path(name), b, 0o644)
}

func (s *Store) read(name string, v any) error {
	b, err := os.ReadFile(s.path(name))
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}

type historyDoc struct {
	Items []models.WeeklyWarRecord `json:"items"`
}

func (s *Store) LoadWarHistory() []models.WeeklyWarRecord {
	var doc historyDoc
	if err := s.read(historyFile, &doc); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			slog.Warn("Failed to load war history, starting fresh", "error", err)
		}
		return nil
	}
	return doc.Items
}

func (s *Store) SaveWarHistory(items []models.WeeklyWarRecord) error {
	return s.write(historyFile, historyDoc{Items: items})
}

func (s *Store) LoadMemberHistory() models.MemberLedger {
	var ledger models.MemberLedger
	if err := s.read(membersFile, &ledger); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			slog.Warn("Failed to load member history, starting fresh", "error", err)
		}
		return models.MemberLedger{}
	}
	return ledger
}

func (s *Store) SaveMemberHistory(ledger models.MemberLedger) error {
	return s.write(membersFile, ledger)
}

func (s *Store) LoadSnapshots() models.SnapshotFile {
	var file models.SnapshotFile
	if err := s.read(snapshotsFile, &file); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			slog.Warn("Failed to load snapshots, starting fresh", "error", err)
		}
	}
	if file.Weeks == nil {
		file.Weeks = make(map[string]*models.WeekSnapshots)
	}
	return file
}

func (s *Store) SaveSnapshots(file models.SnapshotFile) error {
	return s.write(snapshotsFile, file)
}
