package main

import (
	"fmt"
	"log"
	"os"

	"github.com/shynote/shynote/internal/config"
	"github.com/shynote/shynote/internal/vault/db"
	"github.com/shynote/shynote/internal/vault/leader"
	"github.com/shynote/shynote/internal/vault/remote"
	"github.com/shynote/shynote/internal/vault/sync"
)

// app bundles the wired-up vault stack for one CLI invocation.
type app struct {
	cfg    *config.Config
	store  *db.DB
	client *remote.Client
	coord  *sync.Coordinator
}

// openApp loads config and opens the vault. When withRemote is true the
// remote client and sync coordinator are wired too, and remote settings
// are validated.
func openApp(withRemote bool) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if ownerFlag != "" {
		cfg.OwnerID = ownerFlag
	}
	if err := cfg.Validate(withRemote); err != nil {
		return nil, err
	}

	store, err := db.Open(cfg.VaultPath())
	if err != nil {
		return nil, fmt.Errorf("failed to open vault: %w", err)
	}

	a := &app{cfg: cfg, store: store}
	if !withRemote {
		return a, nil
	}

	clientCfg := remote.DefaultConfig()
	clientCfg.BaseURL = cfg.RemoteURL
	clientCfg.Token = cfg.Token
	clientCfg.Timeout = cfg.RequestTimeout
	clientCfg.BaseDelay = cfg.RetryBaseDelay
	a.client = remote.New(clientCfg)

	var locker leader.Locker
	if cfg.DisableLock {
		locker = leader.NewNoopLocker(log.New(os.Stderr, "[sn] ", log.LstdFlags))
	} else {
		locker = leader.NewFileLocker(cfg.VaultDir)
	}

	coordCfg := sync.DefaultConfig(cfg.OwnerID)
	coordCfg.BatchSize = cfg.BatchSize
	coordCfg.DebounceDelay = cfg.DebounceDelay
	coordCfg.LockName = cfg.LockName

	coord, err := sync.New(store, a.client, locker, coordCfg)
	if err != nil {
		store.Close()
		return nil, err
	}
	a.coord = coord
	return a, nil
}

func (a *app) Close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close vault: %v\n", err)
		}
	}
}
