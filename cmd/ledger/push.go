package main

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Gertschi2011/kiana-ledger/pkg/peer"
)

var pushDelete bool

var pushCmd = &cobra.Command{
	Use:   "push <target-dir>",
	Short: "Mirror blocks and records into a target directory",
	Long: `Copy every block and record file into the target directory, skipping
files that are already identical. Writes are atomic. With --delete, target
files that no longer exist locally are removed.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		node, _ := openNode()
		defer node.Service.Close()

		target := args[0]
		ctx := context.Background()

		chainRes, err := peer.Mirror(ctx, node.Chain.Dir(), filepath.Join(target, "chain"), peer.MirrorOptions{
			Delete: pushDelete,
			Logger: slog.Default(),
		})
		if err != nil {
			fatal("Failed to mirror chain", err)
		}

		recordsRes, err := peer.Mirror(ctx, filepath.Join(node.BasePath, "records"), filepath.Join(target, "records"), peer.MirrorOptions{
			Delete: pushDelete,
			Logger: slog.Default(),
		})
		if err != nil {
			fatal("Failed to mirror records", err)
		}

		fmt.Printf("Mirrored to %s: %d copied, %d skipped, %d deleted.\n",
			target,
			chainRes.Copied+recordsRes.Copied,
			chainRes.Skipped+recordsRes.Skipped,
			chainRes.Deleted+recordsRes.Deleted)
	},
}

func init() {
	rootCmd.AddCommand(pushCmd)
	pushCmd.Flags().BoolVar(&pushDelete, "delete", false, "Remove target files missing from the source")
}
