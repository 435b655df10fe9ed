package main

import (
	"context"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Nezreka/SoulSync-sub000/internal/peer"
	"github.com/Nezreka/SoulSync-sub000/internal/store"
	"github.com/Nezreka/SoulSync-sub000/internal/util"
)

var statusLimit int

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show live transfers and recent download history",
	Long: `Show the slskd daemon's current transfer list alongside the most
recent entries of the local download journal.`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().IntVar(&statusLimit, "limit", 20, "journal entries to show")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	if slskdURL := viper.GetString(util.KeySlskdURL); slskdURL != "" {
		client := peer.NewClient(slskdURL, viper.GetString(util.KeySlskdAPIKey))
		transfers, err := client.ListTransfers(ctx)
		if err != nil {
			util.WarnLog("slskd unreachable: %v", err)
		} else {
			printTransfers(transfers)
		}
	}

	db, err := store.Open(viper.GetString(util.KeyDatabasePath))
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	entries, err := db.ListFinished(statusLimit)
	if err != nil {
		return err
	}
	printJournal(entries)
	return nil
}

func printTransfers(transfers []peer.TransferEntry) {
	if len(transfers) == 0 {
		fmt.Println("No live transfers.")
		return
	}

	rows := make([][]string, 0, len(transfers))
	for _, t := range transfers {
		rows = append(rows, []string{
			t.Username,
			peer.BaseName(t.RemoteFilename),
			t.State,
			fmt.Sprintf("%.1f%%", t.PercentComplete),
			humanize.Bytes(uint64(t.BytesTransferred)) + " / " + humanize.Bytes(uint64(t.BytesTotal)),
		})
	}

	fmt.Println(renderTable(
		[]string{"Peer", "File", "State", "Progress", "Transferred"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight},
	))
}

func printJournal(entries []*store.FinishedEntry) {
	if len(entries) == 0 {
		fmt.Println("Download journal is empty.")
		return
	}

	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		what := e.Title
		if e.Artist != "" {
			what = e.Artist + " - " + e.Title
		}
		if what == "" || what == " - " {
			what = peer.BaseName(e.RemoteFilename)
		}
		outcome := e.OrganizedPath
		if outcome == "" {
			outcome = e.Error
		}
		rows = append(rows, []string{
			what,
			e.State,
			outcome,
			humanize.Time(e.FinishedAt),
		})
	}

	fmt.Println(renderTable(
		[]string{"Track", "State", "Outcome", "When"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight},
	))
}
