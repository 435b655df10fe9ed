package store

// Schema v1 - download journal
const schemaV1 = `
-- Schema version tracking
CREATE TABLE IF NOT EXISTS schema_version (
  version INTEGER PRIMARY KEY,
  applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- Append-only log of downloads that left the active queue
CREATE TABLE IF NOT EXISTS finished_downloads (
  logical_id TEXT PRIMARY KEY,
  state TEXT NOT NULL,
  username TEXT,
  remote_filename TEXT,
  organized_path TEXT,
  error TEXT,
  identity_source_id TEXT,
  identity_artist TEXT,
  identity_title TEXT,
  identity_album TEXT,
  finished_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_finished_downloads_state ON finished_downloads(state);
CREATE INDEX IF NOT EXISTS idx_finished_downloads_finished_at ON finished_downloads(finished_at);
`
