package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/shynote/shynote/internal/vault/daemon"
)

var daemonCmd = &cobra.Command{
	Use:     "daemon",
	GroupID: "sync",
	Short:   "Run the background sync daemon",
	Long: `Run the sync daemon in the foreground.

The daemon keeps the vault converged with the remote store:
  1. Pulls the remote snapshot on startup
  2. Runs periodic sync cycles
  3. Watches the vault file for writes by other processes
  4. Probes connectivity and drains queued edits on reconnect

Logs rotate via the configured log file; with no log file configured,
logs go to stderr.

Example:
  sn daemon
  sn daemon --interval 30s`,
	Run: func(cmd *cobra.Command, args []string) {
		a, err := openApp(true)
		if err != nil {
			fatal(err)
		}
		defer a.Close()

		logger := log.New(os.Stderr, "[daemon] ", log.LstdFlags)
		if a.cfg.LogFile != "" {
			logger.SetOutput(&lumberjack.Logger{
				Filename:   a.cfg.LogFile,
				MaxSize:    10, // megabytes
				MaxBackups: 3,
				MaxAge:     14, // days
				Compress:   true,
			})
		}

		dcfg := daemon.DefaultConfig()
		dcfg.SyncInterval = a.cfg.SyncInterval
		dcfg.Logger = logger

		d, err := daemon.NewWithConfig(a.coord, a.client, a.cfg.VaultDir, dcfg)
		if err != nil {
			fatal(fmt.Errorf("failed to create daemon: %w", err))
		}

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		fmt.Printf("Sync daemon running (vault: %s)\n", a.cfg.VaultPath())
		fmt.Println("Press Ctrl+C to stop...")

		if err := d.Start(ctx); err != nil {
			fatal(fmt.Errorf("daemon failed: %w", err))
		}
	},
}

func init() {
	rootCmd.AddCommand(daemonCmd)
}
