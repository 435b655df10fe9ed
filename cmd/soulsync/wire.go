package main

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/Nezreka/SoulSync-sub000/internal/catalog"
	"github.com/Nezreka/SoulSync-sub000/internal/engine"
	"github.com/Nezreka/SoulSync-sub000/internal/match"
	"github.com/Nezreka/SoulSync-sub000/internal/organize"
	"github.com/Nezreka/SoulSync-sub000/internal/peer"
	"github.com/Nezreka/SoulSync-sub000/internal/reconcile"
	"github.com/Nezreka/SoulSync-sub000/internal/store"
	"github.com/Nezreka/SoulSync-sub000/internal/util"
)

// runtime bundles everything a command needs to drive downloads
type runtime struct {
	engine *engine.Engine
	peer   *peer.Client
	db     *store.Store
}

func (r *runtime) close() {
	r.db.Close()
}

// buildRuntime wires the full pipeline from the effective configuration
func buildRuntime() (*runtime, error) {
	slskdURL := viper.GetString(util.KeySlskdURL)
	if slskdURL == "" {
		return nil, fmt.Errorf("slskd URL is required (use --slskd-url or set %s)", util.KeySlskdURL)
	}
	providerURL := viper.GetString(util.KeyProviderURL)
	if providerURL == "" {
		return nil, fmt.Errorf("metadata provider URL is required (set %s)", util.KeyProviderURL)
	}
	libraryRoot := viper.GetString(util.KeyLibraryRoot)
	if libraryRoot == "" {
		return nil, fmt.Errorf("library root is required (set %s)", util.KeyLibraryRoot)
	}
	downloadDir := viper.GetString(util.KeyDownloadDir)
	if downloadDir == "" {
		return nil, fmt.Errorf("download directory is required (set %s)", util.KeyDownloadDir)
	}

	db, err := store.Open(viper.GetString(util.KeyDatabasePath))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	provider := catalog.NewClient(providerURL)
	cache := catalog.NewCache(db.DB(), provider)
	if err := cache.EnsureSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to prepare catalog cache: %w", err)
	}

	peerClient := peer.NewClient(slskdURL, viper.GetString(util.KeySlskdAPIKey))

	eng := engine.New(engine.Config{
		Peer:            peerClient,
		Matcher:         match.NewEngine(cache),
		Organizer:       organize.NewOrganizer(libraryRoot),
		Journal:         db,
		DownloadDir:     downloadDir,
		Workers:         util.GetWorkerCount(),
		AcceptanceFloor: util.GetAcceptanceFloor(),
		AllowUnmatched:  util.GetAllowUnmatched(),
		Reconcile: reconcile.Config{
			ActiveInterval: util.GetActivePollInterval(),
			IdleInterval:   util.GetIdlePollInterval(),
			GraceThreshold: util.GetGraceThreshold(),
		},
	})

	return &runtime{engine: eng, peer: peerClient, db: db}, nil
}
