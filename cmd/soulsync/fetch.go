package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/Nezreka/SoulSync-sub000/internal/peer"
	"github.com/Nezreka/SoulSync-sub000/internal/queue"
	"github.com/Nezreka/SoulSync-sub000/internal/util"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch ARTIST TITLE",
	Short: "Search peers for a track, download and organize it",
	Long: `Search the peer network for a track, pick the best-quality candidate,
download it and wait for the completion pipeline to organize it into the
library. The candidate ranking prefers lossless formats, then bitrate,
then file size.`,
	Args: cobra.MinimumNArgs(2),
	RunE: runFetch,
}

func init() {
	rootCmd.AddCommand(fetchCmd)
}

func runFetch(cmd *cobra.Command, args []string) error {
	artist := args[0]
	title := strings.Join(args[1:], " ")
	query := artist + " " + title

	rt, err := buildRuntime()
	if err != nil {
		return err
	}
	defer rt.close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	util.InfoLog("searching peers for %q", query)
	candidates, err := rt.peer.Search(ctx, query)
	if err != nil {
		return fmt.Errorf("peer search failed: %w", err)
	}
	if len(candidates) == 0 {
		return fmt.Errorf("no peers offered %q", query)
	}

	ranked := peer.RankCandidates(candidates)
	best := ranked[0]
	util.InfoLog("best of %d candidates: %s from %s (%s)",
		len(ranked), peer.BaseName(best.RemoteFilename), best.Username,
		humanize.Bytes(uint64(best.SizeBytes)))

	rt.engine.Start(ctx)
	defer rt.engine.Stop()

	logicalID, err := rt.engine.Enqueue(ctx, best, nil)
	if err != nil {
		return err
	}

	finished, err := waitForDownload(ctx, rt, logicalID, best.SizeBytes)
	if err != nil {
		return err
	}

	switch finished.State {
	case queue.StateCompleted:
		if finished.OrganizedPath != "" {
			util.SuccessLog("organized into %s", finished.OrganizedPath)
		} else {
			util.WarnLog("downloaded but not organized: %s", finished.ErrorMessage)
		}
	case queue.StateCancelled:
		util.WarnLog("download cancelled")
	default:
		return fmt.Errorf("download failed: %s", finished.ErrorMessage)
	}
	return nil
}

// waitForDownload polls the active snapshot until the record goes
// terminal and surfaces progress on a bar meanwhile
func waitForDownload(ctx context.Context, rt *runtime, logicalID string, totalBytes int64) (*queue.FinishedRecord, error) {
	isTTY := util.IsTerminal(os.Stdout.Fd())
	var bar *progressbar.ProgressBar
	if isTTY && !util.IsQuiet() {
		bar = progressbar.NewOptions64(totalBytes,
			progressbar.OptionSetDescription("Downloading"),
			progressbar.OptionSetWidth(40),
			progressbar.OptionShowBytes(true),
			progressbar.OptionThrottle(200*time.Millisecond),
			progressbar.OptionClearOnFinish(),
		)
	}

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			rt.engine.Cancel(context.Background(), logicalID)
			return nil, ctx.Err()
		case <-ticker.C:
		}

		active := false
		for _, rec := range rt.engine.ActiveSnapshot() {
			if rec.LogicalID != logicalID {
				continue
			}
			active = true
			if bar != nil {
				bar.Set64(rec.BytesTransferred)
			}
		}
		if active {
			continue
		}

		// Left the active queue; the finished projection has the outcome
		for _, finished := range rt.engine.DrainFinished() {
			if finished.LogicalID == logicalID {
				if bar != nil {
					bar.Finish()
				}
				return &finished, nil
			}
		}
	}
}
