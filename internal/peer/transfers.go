package peer

import (
	"encoding/json"
	"fmt"
)

// The transfer daemon has shipped two response shapes for the downloads
// listing: a nested one (users containing directories containing files)
// and a flat file list. Both normalize here, at the adapter boundary,
// before anything reaches business logic.

type rawFile struct {
	ID               string  `json:"id"`
	Username         string  `json:"username"`
	Filename         string  `json:"filename"`
	State            string  `json:"state"`
	PercentComplete  float64 `json:"percentComplete"`
	Size             int64   `json:"size"`
	BytesTransferred int64   `json:"bytesTransferred"`
}

type rawDirectory struct {
	Directory string    `json:"directory"`
	Files     []rawFile `json:"files"`
}

type rawUser struct {
	Username    string         `json:"username"`
	Directories []rawDirectory `json:"directories"`
}

func (f rawFile) entry(username string) TransferEntry {
	if f.Username != "" {
		username = f.Username
	}
	return TransferEntry{
		TransferID:       f.ID,
		Username:         username,
		RemoteFilename:   f.Filename,
		State:            f.State,
		PercentComplete:  f.PercentComplete,
		BytesTotal:       f.Size,
		BytesTransferred: f.BytesTransferred,
	}
}

// decodeTransferList normalizes either response shape into TransferEntry
// values. The nested shape is tried first; a flat array of files is the
// fallback.
func decodeTransferList(payload []byte) ([]TransferEntry, error) {
	var users []rawUser
	if err := json.Unmarshal(payload, &users); err == nil && looksNested(users) {
		var entries []TransferEntry
		for _, user := range users {
			for _, dir := range user.Directories {
				for _, file := range dir.Files {
					entries = append(entries, file.entry(user.Username))
				}
			}
		}
		return entries, nil
	}

	var files []rawFile
	if err := json.Unmarshal(payload, &files); err != nil {
		return nil, fmt.Errorf("unrecognized transfer list shape: %w", err)
	}
	entries := make([]TransferEntry, 0, len(files))
	for _, file := range files {
		entries = append(entries, file.entry(file.Username))
	}
	return entries, nil
}

// looksNested distinguishes the nested shape from a flat file array that
// also decoded into rawUser values with empty directories
func looksNested(users []rawUser) bool {
	for _, user := range users {
		if len(user.Directories) > 0 {
			return true
		}
	}
	return false
}
