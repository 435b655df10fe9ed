package peer

import (
	"path/filepath"
	"sort"
	"strings"
)

// Candidate quality pre-ranking. Runs before any metadata resolution so
// the best file from a sea of peer offerings gets enqueued first.
// Higher score = better download candidate.

// QualityScore rates a candidate on format tier, bitrate, and size
func QualityScore(c SearchCandidate) float64 {
	score := formatScore(c.RemoteFilename)

	switch {
	case c.BitrateEstimate >= 900: // lossless range
		score += 10.0
	case c.BitrateEstimate >= 320:
		score += 6.0
	case c.BitrateEstimate >= 256:
		score += 4.0
	case c.BitrateEstimate >= 192:
		score += 2.0
	case c.BitrateEstimate > 0 && c.BitrateEstimate < 128:
		score -= 4.0
	}

	// Suspiciously small files are often previews or corrupt
	sizeMB := float64(c.SizeBytes) / (1024.0 * 1024.0)
	if sizeMB < 1.0 {
		score -= 10.0
	} else if sizeMB > 15.0 {
		score += 1.0
	}

	return score
}

func formatScore(filename string) float64 {
	switch strings.ToLower(filepath.Ext(BaseName(filename))) {
	case ".flac":
		return 40.0
	case ".alac", ".ape", ".wav", ".aiff":
		return 35.0
	case ".mp3":
		return 20.0
	case ".m4a", ".aac":
		return 22.0
	case ".ogg", ".opus":
		return 21.0
	case ".wma":
		return 10.0
	default:
		return 5.0
	}
}

// RankCandidates sorts candidates best-first. Tie-breakers: larger size,
// then lexical filename order for determinism.
func RankCandidates(candidates []SearchCandidate) []SearchCandidate {
	ranked := make([]SearchCandidate, len(candidates))
	copy(ranked, candidates)

	sort.SliceStable(ranked, func(i, j int) bool {
		si, sj := QualityScore(ranked[i]), QualityScore(ranked[j])
		if si != sj {
			return si > sj
		}
		if ranked[i].SizeBytes != ranked[j].SizeBytes {
			return ranked[i].SizeBytes > ranked[j].SizeBytes
		}
		return ranked[i].RemoteFilename < ranked[j].RemoteFilename
	})

	return ranked
}
