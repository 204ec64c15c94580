// Package daemon provides the background process that keeps a vault
// converged with the remote store.
//
// The daemon:
// 1. Runs periodic sync cycles against the remote store
// 2. Probes connectivity and triggers an immediate cycle on reconnect
// 3. Watches the vault file for sibling-process writes and refreshes
// 4. Handles graceful shutdown
package daemon

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Syncer is the coordinator surface the daemon drives.
type Syncer interface {
	Sync(ctx context.Context) error
	PullAll(ctx context.Context) error
}

// Pinger probes remote reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Config holds configuration for the daemon.
type Config struct {
	// SyncInterval is how often a full sync cycle runs regardless of
	// local activity.
	SyncInterval time.Duration

	// ProbeInterval is how often remote reachability is checked.
	ProbeInterval time.Duration

	// DebounceInterval is how long to wait before reacting to vault file
	// changes. This batches rapid sibling-process writes together.
	DebounceInterval time.Duration

	// Logger for daemon activity.
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		SyncInterval:     60 * time.Second,
		ProbeInterval:    15 * time.Second,
		DebounceInterval: 500 * time.Millisecond,
		Logger:           log.New(os.Stderr, "[daemon] ", log.LstdFlags),
	}
}

// Daemon orchestrates periodic sync, connectivity probing, and vault
// file watching.
type Daemon struct {
	syncer   Syncer
	pinger   Pinger
	vaultDir string
	config   *Config

	watcher       *fsnotify.Watcher
	changeQueue   map[string]time.Time // filepath -> timestamp
	changeQueueMu sync.Mutex

	onlineMu sync.Mutex
	online   bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a new Daemon instance.
//
// The daemon requires:
//   - syncer: the sync coordinator for this vault
//   - pinger: remote client used for reachability probes
//   - vaultDir: directory containing the vault database file
//
// Use Start() to begin.
func New(syncer Syncer, pinger Pinger, vaultDir string) (*Daemon, error) {
	return NewWithConfig(syncer, pinger, vaultDir, DefaultConfig())
}

// NewWithConfig creates a daemon with custom configuration.
func NewWithConfig(syncer Syncer, pinger Pinger, vaultDir string, config *Config) (*Daemon, error) {
	if syncer == nil {
		return nil, fmt.Errorf("syncer cannot be nil")
	}
	if pinger == nil {
		return nil, fmt.Errorf("pinger cannot be nil")
	}
	if vaultDir == "" {
		return nil, fmt.Errorf("vaultDir cannot be empty")
	}
	if config == nil {
		config = DefaultConfig()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Daemon{
		syncer:      syncer,
		pinger:      pinger,
		vaultDir:    vaultDir,
		config:      config,
		watcher:     watcher,
		changeQueue: make(map[string]time.Time),
		online:      true,
		ctx:         ctx,
		cancel:      cancel,
	}, nil
}

// Start begins the daemon's operation.
//
// The daemon will:
// 1. Pull the remote snapshot and run an initial sync cycle
// 2. Watch the vault directory for sibling-process writes
// 3. Run periodic sync cycles and connectivity probes
//
// This blocks until ctx is cancelled.
func (d *Daemon) Start(ctx context.Context) error {
	d.config.Logger.Println("Starting daemon")

	if err := d.syncer.PullAll(ctx); err != nil {
		d.config.Logger.Printf("Warning: initial pull failed (starting offline): %v", err)
		d.setOnline(false)
	}
	if err := d.syncer.Sync(ctx); err != nil {
		d.config.Logger.Printf("Warning: initial sync failed: %v", err)
	}

	if err := d.watcher.Add(d.vaultDir); err != nil {
		return fmt.Errorf("failed to watch vault directory: %w", err)
	}
	d.config.Logger.Printf("Watching: %s", d.vaultDir)

	d.wg.Add(4)
	go d.watchFileEvents()
	go d.processChangeQueue()
	go d.runPeriodicSync()
	go d.probeConnectivity()

	select {
	case <-ctx.Done():
		d.config.Logger.Println("Shutdown signal received")
		return d.Stop()
	case <-d.ctx.Done():
		return nil
	}
}

// Stop gracefully shuts down the daemon.
func (d *Daemon) Stop() error {
	d.config.Logger.Println("Stopping daemon")

	d.cancel()

	if err := d.watcher.Close(); err != nil {
		d.config.Logger.Printf("Error closing watcher: %v", err)
	}

	d.wg.Wait()

	d.config.Logger.Println("Daemon stopped")
	return nil
}

// Online reports the last observed remote reachability.
func (d *Daemon) Online() bool {
	d.onlineMu.Lock()
	defer d.onlineMu.Unlock()
	return d.online
}

func (d *Daemon) setOnline(v bool) {
	d.onlineMu.Lock()
	d.online = v
	d.onlineMu.Unlock()
}

// watchFileEvents monitors filesystem events and queues changes.
//
// Writes to the vault database by sibling processes (other windows, the
// CLI) land here; the daemon reacts by refreshing from the shared vault
// rather than holding stale in-memory state.
func (d *Daemon) watchFileEvents() {
	defer d.wg.Done()

	for {
		select {
		case <-d.ctx.Done():
			return

		case event, ok := <-d.watcher.Events:
			if !ok {
				return
			}

			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if !isVaultFile(event.Name) {
				continue
			}

			d.queueChange(event.Name)

		case err, ok := <-d.watcher.Errors:
			if !ok {
				return
			}
			d.config.Logger.Printf("Watcher error: %v", err)
		}
	}
}

// isVaultFile reports whether a path is the vault database or one of its
// SQLite sidecar files.
func isVaultFile(path string) bool {
	base := filepath.Base(path)
	return strings.HasSuffix(base, ".db") ||
		strings.HasSuffix(base, ".db-wal") ||
		strings.HasSuffix(base, ".db-shm")
}

// queueChange adds a file to the change queue with debouncing.
func (d *Daemon) queueChange(path string) {
	d.changeQueueMu.Lock()
	defer d.changeQueueMu.Unlock()

	d.changeQueue[path] = time.Now()
}

// processChangeQueue drains queued file changes with debouncing.
func (d *Daemon) processChangeQueue() {
	defer d.wg.Done()

	ticker := time.NewTicker(d.config.DebounceInterval)
	defer ticker.Stop()

	for {
		select {
		case <-d.ctx.Done():
			return

		case <-ticker.C:
			d.processPendingChanges()
		}
	}
}

// processPendingChanges triggers a sync cycle once vault writes have
// settled for at least the debounce interval.
func (d *Daemon) processPendingChanges() {
	d.changeQueueMu.Lock()
	now := time.Now()
	ready := false
	for path, queuedAt := range d.changeQueue {
		if now.Sub(queuedAt) < d.config.DebounceInterval {
			continue
		}
		delete(d.changeQueue, path)
		ready = true
	}
	d.changeQueueMu.Unlock()

	if !ready {
		return
	}

	d.config.Logger.Println("Vault changed on disk, running sync cycle")
	if err := d.syncer.Sync(d.ctx); err != nil {
		d.config.Logger.Printf("Error syncing after vault change: %v", err)
	}
}

// runPeriodicSync runs full cycles on a fixed interval.
func (d *Daemon) runPeriodicSync() {
	defer d.wg.Done()

	ticker := time.NewTicker(d.config.SyncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-d.ctx.Done():
			return

		case <-ticker.C:
			if !d.Online() {
				continue
			}
			if err := d.syncer.Sync(d.ctx); err != nil {
				d.config.Logger.Printf("Error in periodic sync: %v", err)
			}
			if err := d.syncer.PullAll(d.ctx); err != nil {
				d.config.Logger.Printf("Error in periodic pull: %v", err)
			}
		}
	}
}

// probeConnectivity pings the remote on an interval. An offline-to-online
// transition triggers an immediate cycle so queued offline edits drain
// without waiting for the periodic timer.
func (d *Daemon) probeConnectivity() {
	defer d.wg.Done()

	ticker := time.NewTicker(d.config.ProbeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-d.ctx.Done():
			return

		case <-ticker.C:
			probeCtx, cancel := context.WithTimeout(d.ctx, d.config.ProbeInterval)
			err := d.pinger.Ping(probeCtx)
			cancel()

			wasOnline := d.Online()
			nowOnline := err == nil
			d.setOnline(nowOnline)

			switch {
			case !wasOnline && nowOnline:
				d.config.Logger.Println("Remote reachable again, draining queued changes")
				if err := d.syncer.Sync(d.ctx); err != nil {
					d.config.Logger.Printf("Error syncing after reconnect: %v", err)
				}
			case wasOnline && !nowOnline:
				d.config.Logger.Printf("Remote unreachable, queuing changes locally: %v", err)
			}
		}
	}
}
