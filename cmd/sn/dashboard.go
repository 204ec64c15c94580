package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/shynote/shynote/internal/vault/daemon"
	"github.com/shynote/shynote/internal/vault/dashboard"
)

var dashboardCmd = &cobra.Command{
	Use:     "dashboard",
	GroupID: "advanced",
	Short:   "Start the real-time sync dashboard",
	Long: `Start a WebSocket dashboard server broadcasting sync activity.

The server relays coordinator state transitions, queue depth, and
conflict events to connected clients, and runs a sync daemon so there
is activity to observe.

WebSocket messages:
- status: coordinator state snapshot (state, queue length, conflicts)
- conflicts: the unresolved conflict list whenever it changes

Example usage:
  sn dashboard                 # default port 8471
  sn dashboard --port 9000

Connect with a WebSocket client:
  ws://localhost:8471/ws`,
	Run: func(cmd *cobra.Command, args []string) {
		a, err := openApp(true)
		if err != nil {
			fatal(err)
		}
		defer a.Close()

		port, _ := cmd.Flags().GetInt("port")
		if port == 0 {
			port = a.cfg.DashboardPort
		}

		server := dashboard.NewServer(a.coord, &dashboard.Config{
			Port:   port,
			Logger: log.New(os.Stderr, "[dashboard] ", log.LstdFlags),
		})
		if err := server.Start(); err != nil {
			fatal(fmt.Errorf("failed to start dashboard: %w", err))
		}

		fmt.Printf("Dashboard server started on http://localhost:%d\n", port)
		fmt.Printf("WebSocket endpoint: ws://localhost:%d/ws\n", port)
		fmt.Printf("Health check: http://localhost:%d/health\n", port)
		fmt.Println("\nPress Ctrl+C to stop...")

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		// Drive sync activity alongside the dashboard so clients see
		// live updates, not a frozen snapshot.
		dcfg := daemon.DefaultConfig()
		dcfg.SyncInterval = a.cfg.SyncInterval
		d, err := daemon.NewWithConfig(a.coord, a.client, a.cfg.VaultDir, dcfg)
		if err != nil {
			fatal(err)
		}
		if err := d.Start(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Daemon error: %v\n", err)
		}

		if err := server.Stop(); err != nil {
			fmt.Fprintf(os.Stderr, "Error stopping dashboard: %v\n", err)
		}
	},
}

func init() {
	dashboardCmd.Flags().Int("port", 0, "port to listen on (default: config dashboard_port)")
	rootCmd.AddCommand(dashboardCmd)
}
