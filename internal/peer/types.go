package peer

import (
	"path"
	"strings"
)

// SearchCandidate is an unverified file offered by a peer. Immutable.
type SearchCandidate struct {
	Username         string `json:"username"`
	RemoteFilename   string `json:"remote_filename"`
	SizeBytes        int64  `json:"size_bytes"`
	BitrateEstimate  int    `json:"bitrate_estimate"`
	ReportedDuration int    `json:"reported_duration"` // seconds, 0 when unknown
}

// BaseName returns the final path segment of the remote filename with
// both separator conventions honored (peers report Windows paths)
func (c SearchCandidate) BaseName() string {
	return BaseName(c.RemoteFilename)
}

// TransferEntry is the one canonical transfer shape business logic sees,
// regardless of whether the remote daemon reported transfers nested under
// users and directories or as a flat list.
type TransferEntry struct {
	TransferID       string
	Username         string
	RemoteFilename   string
	State            string
	PercentComplete  float64
	BytesTotal       int64
	BytesTransferred int64
}

// Remote daemons report compound states such as "Completed, Succeeded" or
// "Completed, Cancelled". Substring checks keep the mapping tolerant of
// new compound variants.

// IsTerminalSuccess reports a successfully finished remote transfer
func (t TransferEntry) IsTerminalSuccess() bool {
	state := strings.ToLower(t.State)
	return strings.Contains(state, "succeeded") ||
		(strings.Contains(state, "completed") &&
			!strings.Contains(state, "cancelled") &&
			!strings.Contains(state, "errored") &&
			!strings.Contains(state, "rejected") &&
			!strings.Contains(state, "timedout"))
}

// IsTerminalCancel reports a cancelled remote transfer
func (t TransferEntry) IsTerminalCancel() bool {
	return strings.Contains(strings.ToLower(t.State), "cancelled")
}

// IsTerminalError reports a failed remote transfer
func (t TransferEntry) IsTerminalError() bool {
	state := strings.ToLower(t.State)
	return strings.Contains(state, "errored") ||
		strings.Contains(state, "rejected") ||
		strings.Contains(state, "timedout")
}

// IsTerminal reports whether the remote considers this transfer done
func (t TransferEntry) IsTerminal() bool {
	return t.IsTerminalSuccess() || t.IsTerminalCancel() || t.IsTerminalError()
}

// BaseName extracts the final segment of a remote path, accepting both
// forward and backslash separators
func BaseName(remotePath string) string {
	normalized := strings.ReplaceAll(remotePath, "\\", "/")
	return path.Base(normalized)
}

// NormalizedBaseName lowercases the base name for filename-keyed lookups
func NormalizedBaseName(remotePath string) string {
	return strings.ToLower(BaseName(remotePath))
}
