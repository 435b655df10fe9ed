package organize

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/Nezreka/SoulSync-sub000/internal/catalog"
	"github.com/Nezreka/SoulSync-sub000/internal/util"
)

// copyBufferSize balances local disks against network shares
const copyBufferSize = 128 * 1024

// Organizer moves completed downloads into the library layout and
// rewrites their tags. Every step is reversible until the last one:
// a failure anywhere restores the source file untouched.
type Organizer struct {
	root    string
	artwork *ArtworkFetcher
	tagger  func(path string, id *catalog.Identity, artwork []byte) error
}

// NewOrganizer creates an organizer rooted at the library directory
func NewOrganizer(root string) *Organizer {
	return &Organizer{
		root:    root,
		artwork: NewArtworkFetcher(),
		tagger:  WriteTags,
	}
}

// SetTagWriter replaces the tag-writing step. Hosts that organize
// without rewriting tags can install a no-op.
func (o *Organizer) SetTagWriter(fn func(path string, id *catalog.Identity, artwork []byte) error) {
	o.tagger = fn
}

// Organize relocates localPath under the library per the resolved
// identity and returns the final destination. The sequence is backup,
// move, verify, tag, then drop the backup; any failure rolls the whole
// thing back so the file is never organized but untagged.
func (o *Organizer) Organize(ctx context.Context, localPath string, id *catalog.Identity) (string, error) {
	srcInfo, err := os.Stat(localPath)
	if err != nil {
		return "", util.NewOrganizationError(localPath, "", fmt.Errorf("source missing: %w", err))
	}

	dest := DestPath(o.root, id, filepath.Ext(localPath))
	dest, err = ResolveCollision(dest)
	if err != nil {
		return "", util.NewOrganizationError(localPath, dest, err)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return "", util.NewOrganizationError(localPath, dest, fmt.Errorf("failed to create directory: %w", err))
	}

	backupPath := localPath + ".bak"
	if err := copyFile(ctx, localPath, backupPath); err != nil {
		return "", util.NewOrganizationError(localPath, dest, fmt.Errorf("backup failed: %w", err))
	}

	if err := moveFile(ctx, localPath, dest); err != nil {
		os.Remove(backupPath)
		return "", util.NewOrganizationError(localPath, dest, err)
	}

	rollback := func(cause error) error {
		os.Remove(dest)
		if err := os.Rename(backupPath, localPath); err != nil {
			// Fall back to copy so the source survives even across devices
			if copyErr := copyFile(context.Background(), backupPath, localPath); copyErr != nil {
				util.ErrorLog("rollback of %s failed, backup preserved at %s: %v", localPath, backupPath, copyErr)
				return util.NewOrganizationError(localPath, dest, cause)
			}
			os.Remove(backupPath)
		}
		return util.NewOrganizationError(localPath, dest, cause)
	}

	destInfo, err := os.Stat(dest)
	if err != nil {
		return "", rollback(fmt.Errorf("verify failed: %w", err))
	}
	if destInfo.Size() != srcInfo.Size() {
		return "", rollback(fmt.Errorf("verify failed: size %d != %d", destInfo.Size(), srcInfo.Size()))
	}

	art := o.artwork.Fetch(ctx, id.PrimaryArtist(), id.AlbumName, id.ArtworkRef)
	if err := o.tagger(dest, id, art); err != nil {
		return "", rollback(fmt.Errorf("tagging failed: %w", err))
	}

	os.Remove(backupPath)
	util.InfoLog("organized %s -> %s", localPath, dest)
	return dest, nil
}

// moveFile renames when the destination shares a filesystem with the
// source and falls back to copy plus delete across devices
func moveFile(ctx context.Context, srcPath, destPath string) error {
	if err := os.Rename(srcPath, destPath); err == nil {
		return nil
	}

	if err := copyFile(ctx, srcPath, destPath); err != nil {
		return err
	}
	return os.Remove(srcPath)
}

// copyFile copies atomically through a .part temporary file
func copyFile(ctx context.Context, srcPath, destPath string) error {
	src, err := os.Open(srcPath)
	if err != nil {
		return fmt.Errorf("failed to open source: %w", err)
	}
	defer src.Close()

	tempPath := destPath + ".part"
	dest, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}

	_, err = copyWithContext(ctx, dest, src)
	if closeErr := dest.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to copy: %w", err)
	}

	if err := os.Rename(tempPath, destPath); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename: %w", err)
	}
	return nil
}

// copyWithContext copies in chunks, checking for cancellation between reads
func copyWithContext(ctx context.Context, dst io.Writer, src io.Reader) (int64, error) {
	buf := make([]byte, copyBufferSize)
	var written int64

	for {
		select {
		case <-ctx.Done():
			return written, ctx.Err()
		default:
		}

		n, readErr := src.Read(buf)
		if n > 0 {
			w, writeErr := dst.Write(buf[:n])
			written += int64(w)
			if writeErr != nil {
				return written, writeErr
			}
			if w < n {
				return written, io.ErrShortWrite
			}
		}
		if readErr == io.EOF {
			return written, nil
		}
		if readErr != nil {
			return written, readErr
		}
	}
}
