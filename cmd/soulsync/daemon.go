package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Nezreka/SoulSync-sub000/internal/util"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the download engine until interrupted",
	Long: `Run the reconciliation loop and completion pipeline as a long-lived
process. The daemon polls slskd for transfer state, completes and organizes
finished downloads, and journals every outcome.

Only one daemon may run against a given state database at a time.`,
	RunE: runDaemon,
}

func init() {
	rootCmd.AddCommand(daemonCmd)
}

func runDaemon(cmd *cobra.Command, args []string) error {
	lockPath := viper.GetString(util.KeyDatabasePath) + ".lock"
	lock := flock.New(lockPath)
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("another soulsync daemon is already running (lock: %s)", lockPath)
	}
	defer lock.Unlock()

	rt, err := buildRuntime()
	if err != nil {
		return err
	}
	defer rt.close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt.engine.Start(ctx)
	util.InfoLog("daemon running, press Ctrl+C to stop")

	<-ctx.Done()
	util.InfoLog("shutting down")
	rt.engine.Stop()
	return nil
}
