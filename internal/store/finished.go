package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/Nezreka/SoulSync-sub000/internal/queue"
)

// FinishedEntry is one row of the finished_downloads journal
type FinishedEntry struct {
	LogicalID      string
	State          string
	Username       string
	RemoteFilename string
	OrganizedPath  string
	Error          string
	SourceID       string
	Artist         string
	Title          string
	Album          string
	FinishedAt     time.Time
}

// AppendFinished journals a record that left the active queue. The log
// is append-only; a logical id is written at most once.
func (s *Store) AppendFinished(rec queue.FinishedRecord) error {
	entry := FinishedEntry{
		LogicalID:      rec.LogicalID,
		State:          string(rec.State),
		Username:       rec.Username,
		RemoteFilename: rec.RemoteFilename,
		OrganizedPath:  rec.OrganizedPath,
		Error:          rec.ErrorMessage,
		FinishedAt:     rec.FinishedAt,
	}
	if rec.Identity != nil {
		entry.SourceID = rec.Identity.SourceID
		entry.Artist = rec.Identity.PrimaryArtist()
		entry.Title = rec.Identity.Title
		entry.Album = rec.Identity.AlbumName
	}

	_, err := s.db.Exec(`
		INSERT INTO finished_downloads
		  (logical_id, state, username, remote_filename, organized_path, error,
		   identity_source_id, identity_artist, identity_title, identity_album, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(logical_id) DO NOTHING
	`, entry.LogicalID, entry.State, entry.Username, entry.RemoteFilename,
		entry.OrganizedPath, entry.Error, entry.SourceID, entry.Artist,
		entry.Title, entry.Album, entry.FinishedAt)
	if err != nil {
		return fmt.Errorf("failed to journal finished download: %w", err)
	}
	return nil
}

// GetFinished looks up one journal entry by logical id
func (s *Store) GetFinished(logicalID string) (*FinishedEntry, error) {
	row := s.db.QueryRow(`
		SELECT logical_id, state, username, remote_filename, organized_path, error,
		       identity_source_id, identity_artist, identity_title, identity_album, finished_at
		FROM finished_downloads WHERE logical_id = ?
	`, logicalID)

	entry, err := scanFinished(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read finished download: %w", err)
	}
	return entry, nil
}

// ListFinished returns the most recent journal entries, newest first
func (s *Store) ListFinished(limit int) ([]*FinishedEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.Query(`
		SELECT logical_id, state, username, remote_filename, organized_path, error,
		       identity_source_id, identity_artist, identity_title, identity_album, finished_at
		FROM finished_downloads
		ORDER BY finished_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list finished downloads: %w", err)
	}
	defer rows.Close()

	var entries []*FinishedEntry
	for rows.Next() {
		entry, err := scanFinished(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan finished download: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

type scannable interface {
	Scan(dest ...interface{}) error
}

func scanFinished(row scannable) (*FinishedEntry, error) {
	var entry FinishedEntry
	err := row.Scan(&entry.LogicalID, &entry.State, &entry.Username,
		&entry.RemoteFilename, &entry.OrganizedPath, &entry.Error,
		&entry.SourceID, &entry.Artist, &entry.Title, &entry.Album,
		&entry.FinishedAt)
	if err != nil {
		return nil, err
	}
	return &entry, nil
}
