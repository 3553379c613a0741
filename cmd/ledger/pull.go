package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/Gertschi2011/kiana-ledger/pkg/peer"
)

var pullRecords bool

var pullCmd = &cobra.Command{
	Use:   "pull [peer-url...]",
	Short: "Pull and verify chain entries from peers",
	Long: `Fetch the block listing from each peer and import every chain entry
missing locally. Entries are re-hashed before they touch disk; entries that
fail verification are reported and never written. Without arguments the
peers from ledger.yaml are used.`,
	Run: func(cmd *cobra.Command, args []string) {
		node, cfg := openNode()
		defer node.Service.Close()

		peers := args
		if len(peers) == 0 {
			peers = cfg.Peers
		}
		if len(peers) == 0 {
			fmt.Println("Error: no peers given and none configured")
			os.Exit(1)
		}

		client := peer.NewClient(peer.ClientConfig{
			Ledger:  node.Chain,
			Repo:    node.Repo,
			Logger:  slog.Default(),
			Metrics: peer.NewMetrics(),
			Timeout: node.HTTPTimeout,
		})

		failed := false
		for _, p := range peers {
			result, err := client.Pull(context.Background(), p, peer.PullOptions{
				IncludeRecords: pullRecords,
			})
			if err != nil {
				fmt.Printf("Pull from %s failed: %v\n", p, err)
				failed = true
				continue
			}
			fmt.Printf("%s: %d listed, %d written, %d skipped, %d rejected.\n",
				p, result.Listed, result.Written, result.Skipped, len(result.Failures))
			for _, f := range result.Failures {
				fmt.Printf("  rejected %s: %s\n", f.ID, f.Reason)
			}
		}
		if failed {
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(pullCmd)
	pullCmd.Flags().BoolVar(&pullRecords, "records", false, "Also pull loose records")
}
