package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Rebuild the search index from stored records",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		node, _ := openNode()
		defer node.Service.Close()

		if err := node.Service.RebuildIndex(context.Background()); err != nil {
			fatal("Failed to rebuild index", err)
		}
		fmt.Println("Index rebuilt.")
	},
}

func init() {
	rootCmd.AddCommand(indexCmd)
}
