package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Gertschi2011/kiana-ledger/pkg/peer"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve blocks and records to pulling peers",
	Long: `Expose the chain and record store over HTTP so other nodes can pull
from this one. Serves /blocks, /block/by-id/{id}, /records,
/record/by-id/{id}, /healthz, and /metrics.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		node, cfg := openNode()
		defer node.Service.Close()

		addr := serveAddr
		if addr == "" {
			addr = cfg.ListenAddr
		}

		server := peer.NewServer(peer.ServerConfig{
			Ledger:  node.Chain,
			Repo:    node.Repo,
			Logger:  slog.Default(),
			Metrics: peer.NewMetrics(),
		})

		httpServer := &http.Server{
			Addr:              addr,
			Handler:           server.Router(),
			ReadHeaderTimeout: 5 * time.Second,
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		errCh := make(chan error, 1)
		go func() {
			slog.Info("peer server listening", "addr", addr)
			errCh <- httpServer.ListenAndServe()
		}()

		select {
		case err := <-errCh:
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				fatal("Server failed", err)
			}
		case <-ctx.Done():
			slog.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				fatal("Shutdown failed", err)
			}
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default from ledger.yaml)")
}
