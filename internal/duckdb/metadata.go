package duckdb

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"
)

// FileFingerprint holds stat-based identity for a file.
type FileFingerprint struct {
	Path    string
	Size    int64
	ModTime time.Time
}

// StatFile creates a FileFingerprint from an on-disk file.
func StatFile(path string) (FileFingerprint, error) {
	info, err := os.Stat(path)
	if err != nil {
		return FileFingerprint{}, err
	}
	return FileFingerprint{
		Path:    path,
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}, nil
}

// Run is the bookkeeping row for one processed source file.
type Run struct {
	Source   string
	Size     int64
	ModTime  time.Time
	Retained int64
}

// RecordRun stores, or replaces, the run row for fp.Path.
func (s *Store) RecordRun(fp FileFingerprint, retained int) error {
	if _, err := s.db.Exec("DELETE FROM runs WHERE source=?", fp.Path); err != nil {
		return fmt.Errorf("delete run: %w", err)
	}
	if _, err := s.db.Exec("INSERT INTO runs VALUES (?, ?, ?, ?)",
		fp.Path, fp.Size, fp.ModTime.UTC(), int64(retained)); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// LookupRun returns the run row for source, or nil if none was recorded.
func (s *Store) LookupRun(source string) (*Run, error) {
	var r Run
	err := s.db.QueryRow("SELECT source, size, mod_time, retained FROM runs WHERE source=?", source).
		Scan(&r.Source, &r.Size, &r.ModTime, &r.Retained)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query run: %w", err)
	}
	return &r, nil
}

// IsCurrent reports whether a run was recorded for fp.Path with the same
// size and modification time.
func (s *Store) IsCurrent(fp FileFingerprint) (bool, error) {
	r, err := s.LookupRun(fp.Path)
	if err != nil || r == nil {
		return false, err
	}
	return r.Size == fp.Size && r.ModTime.Equal(fp.ModTime.UTC().Truncate(time.Microsecond)), nil
}
