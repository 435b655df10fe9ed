package engine

import (
	"os"

	"github.com/dhowden/tag"

	"github.com/Nezreka/SoulSync-sub000/internal/match"
)

// embeddedTagHints reads the downloaded file's own tags. Peers often
// ship well-tagged files behind uselessly named paths, so embedded
// values outrank filename parsing when resolving the identity.
func embeddedTagHints(path string) *match.Desired {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	m, err := tag.ReadFrom(f)
	if err != nil {
		return nil
	}

	desired := &match.Desired{
		Artist: m.Artist(),
		Title:  m.Title(),
		Album:  m.Album(),
	}
	if desired.Artist == "" && desired.Title == "" {
		return nil
	}
	return desired
}
