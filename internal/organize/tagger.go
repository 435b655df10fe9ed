package organize

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/bogem/id3v2"

	"github.com/Nezreka/SoulSync-sub000/internal/catalog"
)

// WriteTags rewrites path's metadata from the resolved identity. MP3
// gets native id3v2 frames; every other container goes through an ffmpeg
// stream copy. Formats neither can handle are an error so the caller
// rolls the move back instead of shipping a mistagged file.
func WriteTags(path string, id *catalog.Identity, artwork []byte) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp3":
		return writeID3Tags(path, id, artwork)
	default:
		return writeFFmpegTags(path, id)
	}
}

func writeID3Tags(path string, id *catalog.Identity, artwork []byte) error {
	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		return fmt.Errorf("failed to open id3 tag: %w", err)
	}
	defer tag.Close()

	tag.SetDefaultEncoding(id3v2.EncodingUTF8)
	tag.SetTitle(id.Title)
	tag.SetArtist(strings.Join(id.Artists, "; "))
	tag.SetAlbum(albumOrTitle(id))
	tag.AddTextFrame("TPE2", id3v2.EncodingUTF8, id.PrimaryArtist())

	if id.TrackNumber > 0 {
		track := fmt.Sprintf("%d", id.TrackNumber)
		if id.TotalTracks > 0 {
			track = fmt.Sprintf("%d/%d", id.TrackNumber, id.TotalTracks)
		}
		tag.AddTextFrame("TRCK", id3v2.EncodingUTF8, track)
	}
	if id.ReleaseDate != "" {
		tag.AddTextFrame("TDRC", id3v2.EncodingUTF8, id.ReleaseDate)
	}
	if len(id.Genres) > 0 {
		tag.SetGenre(id.Genres[0])
	}

	if len(artwork) > 0 {
		tag.AddAttachedPicture(id3v2.PictureFrame{
			Encoding:    id3v2.EncodingUTF8,
			MimeType:    sniffImageMime(artwork),
			PictureType: id3v2.PTFrontCover,
			Description: "Front cover",
			Picture:     artwork,
		})
	}

	if err := tag.Save(); err != nil {
		return fmt.Errorf("failed to save id3 tag: %w", err)
	}
	return nil
}

// writeFFmpegTags rewrites container metadata without re-encoding: copy
// streams into a temp file alongside the original, then swap.
func writeFFmpegTags(path string, id *catalog.Identity) error {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		return fmt.Errorf("no tag writer for %s: %w", filepath.Ext(path), err)
	}

	tempPath := path + ".tagged" + filepath.Ext(path)

	args := []string{"-y", "-i", path, "-c", "copy"}
	meta := map[string]string{
		"title":        id.Title,
		"artist":       strings.Join(id.Artists, "; "),
		"album":        albumOrTitle(id),
		"album_artist": id.PrimaryArtist(),
	}
	if id.TrackNumber > 0 {
		meta["track"] = fmt.Sprintf("%d", id.TrackNumber)
	}
	if id.ReleaseDate != "" {
		meta["date"] = id.ReleaseDate
	}
	if len(id.Genres) > 0 {
		meta["genre"] = id.Genres[0]
	}
	for key, value := range meta {
		args = append(args, "-metadata", fmt.Sprintf("%s=%s", key, value))
	}
	args = append(args, tempPath)

	out, err := exec.Command("ffmpeg", args...).CombinedOutput()
	if err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("ffmpeg tag rewrite failed: %v: %s", err, truncateOutput(out))
	}

	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to swap tagged file: %w", err)
	}
	return nil
}

func albumOrTitle(id *catalog.Identity) string {
	if id.AlbumName != "" {
		return id.AlbumName
	}
	return id.Title
}

func sniffImageMime(data []byte) string {
	if len(data) >= 3 && data[0] == 0xFF && data[1] == 0xD8 {
		return "image/jpeg"
	}
	if len(data) >= 8 && string(data[1:4]) == "PNG" {
		return "image/png"
	}
	return "image/jpeg"
}

func truncateOutput(out []byte) string {
	s := strings.TrimSpace(string(out))
	if len(s) > 300 {
		s = s[len(s)-300:]
	}
	return s
}
