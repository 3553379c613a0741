package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var getNoVerify bool

var getCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Load a record by id",
	Long:  `Load a stored record, verifying its hash and signature on the way out.`,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		node, _ := openNode()
		defer node.Service.Close()

		rec, err := node.Service.Load(context.Background(), args[0], !getNoVerify)
		if err != nil {
			fatal("Failed to load record", err)
		}

		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(rec); err != nil {
			fmt.Printf("Error encoding JSON: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(getCmd)
	getCmd.Flags().BoolVar(&getNoVerify, "no-verify", false, "Skip hash and signature verification")
}
