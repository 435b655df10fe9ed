package organize

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Nezreka/SoulSync-sub000/internal/catalog"
	"github.com/Nezreka/SoulSync-sub000/internal/util"
)

// collisionLimit bounds the " (N)" suffix search
const collisionLimit = 100

// DestPath computes the library destination for a resolved track:
// root/album artist/"album artist - album"/filename. A true single drops
// the track number prefix and uses the bare title.
func DestPath(root string, id *catalog.Identity, ext string) string {
	artist := componentOr(id.PrimaryArtist(), "Unknown Artist")

	albumName := id.AlbumName
	if albumName == "" {
		albumName = id.Title
	}
	album := componentOr(albumName, "Unknown Album")

	title := componentOr(id.Title, "Unknown Title")

	ext = strings.ToLower(ext)

	var filename string
	if id.IsTrueSingle() {
		filename = title + ext
	} else {
		track := id.TrackNumber
		if track <= 0 {
			track = 1
		}
		filename = fmt.Sprintf("%02d - %s%s", track, title, ext)
	}

	albumDir := artist + " - " + album
	return filepath.Join(root, artist, albumDir, filename)
}

// ResolveCollision returns destPath if free, otherwise the first
// "name (N).ext" variant that is. Exhausting the limit means something
// is pathological about the destination directory and the record fails
// rather than looping forever.
func ResolveCollision(destPath string) (string, error) {
	if _, err := os.Stat(destPath); os.IsNotExist(err) {
		return destPath, nil
	}

	ext := filepath.Ext(destPath)
	stem := strings.TrimSuffix(destPath, ext)

	for n := 1; n <= collisionLimit; n++ {
		variant := fmt.Sprintf("%s (%d)%s", stem, n, ext)
		if _, err := os.Stat(variant); os.IsNotExist(err) {
			return variant, nil
		}
	}
	return "", fmt.Errorf("%w: %s", util.ErrConflictExhausted, destPath)
}
