package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Gertschi2011/kiana-ledger/pkg/core"
)

var (
	editContent string
	editStatus  string
	editReason  string
)

var editCmd = &cobra.Command{
	Use:   "edit <id>",
	Short: "Supersede a record with a corrected version",
	Long: `Create a new record whose prev_id points back at the given one. The
original is never mutated or deleted; history stays intact.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		node, _ := openNode()
		defer node.Service.Close()

		newID, err := node.Service.Edit(context.Background(), args[0], core.EditOptions{
			Content: editContent,
			Status:  core.Status(editStatus),
			Reason:  editReason,
		})
		if err != nil {
			fatal("Failed to edit record", err)
		}
		fmt.Printf("Record '%s' superseded by '%s'.\n", args[0], newID)
	},
}

func init() {
	rootCmd.AddCommand(editCmd)
	editCmd.Flags().StringVar(&editContent, "content", "", "Replacement content (empty keeps the old)")
	editCmd.Flags().StringVar(&editStatus, "status", "", "New status (active, archived, updated, deprecated)")
	editCmd.Flags().StringVarP(&editReason, "message", "m", "", "Change reason (audit note)")
}
