package peer

import (
	"sort"
	"testing"
)

const nestedPayload = `[
  {
    "username": "peer1",
    "directories": [
      {
        "directory": "@@music\\electronic",
        "files": [
          {"id": "t1", "filename": "@@music\\electronic\\Artist - Song.flac", "state": "InProgress", "percentComplete": 42.5, "size": 30000000, "bytesTransferred": 12750000},
          {"id": "t2", "filename": "@@music\\electronic\\Artist - Other.mp3", "state": "Completed, Succeeded", "percentComplete": 100, "size": 9000000, "bytesTransferred": 9000000}
        ]
      }
    ]
  },
  {
    "username": "peer2",
    "directories": [
      {
        "directory": "share",
        "files": [
          {"id": "t3", "filename": "share/track.mp3", "state": "Queued, Remotely", "size": 5000000}
        ]
      }
    ]
  }
]`

const flatPayload = `[
  {"id": "t1", "username": "peer1", "filename": "@@music\\electronic\\Artist - Song.flac", "state": "InProgress", "percentComplete": 42.5, "size": 30000000, "bytesTransferred": 12750000},
  {"id": "t2", "username": "peer1", "filename": "@@music\\electronic\\Artist - Other.mp3", "state": "Completed, Succeeded", "percentComplete": 100, "size": 9000000, "bytesTransferred": 9000000},
  {"id": "t3", "username": "peer2", "filename": "share/track.mp3", "state": "Queued, Remotely", "size": 5000000}
]`

func TestDecodeTransferListShapesAgree(t *testing.T) {
	nested, err := decodeTransferList([]byte(nestedPayload))
	if err != nil {
		t.Fatalf("nested decode: %v", err)
	}
	flat, err := decodeTransferList([]byte(flatPayload))
	if err != nil {
		t.Fatalf("flat decode: %v", err)
	}

	if len(nested) != 3 || len(flat) != 3 {
		t.Fatalf("lengths: nested=%d flat=%d, expected 3 each", len(nested), len(flat))
	}

	byID := func(entries []TransferEntry) map[string]TransferEntry {
		m := make(map[string]TransferEntry)
		for _, e := range entries {
			m[e.TransferID] = e
		}
		return m
	}

	nm, fm := byID(nested), byID(flat)
	ids := make([]string, 0, len(nm))
	for id := range nm {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if nm[id] != fm[id] {
			t.Errorf("entry %s differs between shapes:\n nested: %+v\n flat:   %+v", id, nm[id], fm[id])
		}
	}

	if nm["t1"].Username != "peer1" || nm["t1"].PercentComplete != 42.5 {
		t.Errorf("t1 fields wrong: %+v", nm["t1"])
	}
}

func TestTransferStatePredicates(t *testing.T) {
	tests := []struct {
		state   string
		success bool
		cancel  bool
		failed  bool
	}{
		{"Completed, Succeeded", true, false, false},
		{"Completed", true, false, false},
		{"Completed, Cancelled", false, true, false},
		{"Completed, Errored", false, false, true},
		{"Completed, TimedOut", false, false, true},
		{"Rejected", false, false, true},
		{"InProgress", false, false, false},
		{"Queued, Remotely", false, false, false},
	}

	for _, tt := range tests {
		e := TransferEntry{State: tt.state}
		if got := e.IsTerminalSuccess(); got != tt.success {
			t.Errorf("IsTerminalSuccess(%q) = %v, expected %v", tt.state, got, tt.success)
		}
		if got := e.IsTerminalCancel(); got != tt.cancel {
			t.Errorf("IsTerminalCancel(%q) = %v, expected %v", tt.state, got, tt.cancel)
		}
		if got := e.IsTerminalError(); got != tt.failed {
			t.Errorf("IsTerminalError(%q) = %v, expected %v", tt.state, got, tt.failed)
		}
	}
}

func TestBaseNameHandlesBothSeparators(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{`@@music\electronic\Artist - Song.flac`, "Artist - Song.flac"},
		{"share/sub/track.mp3", "track.mp3"},
		{"plain.mp3", "plain.mp3"},
	}
	for _, tt := range tests {
		if got := BaseName(tt.in); got != tt.want {
			t.Errorf("BaseName(%q) = %q, expected %q", tt.in, got, tt.want)
		}
	}
}
