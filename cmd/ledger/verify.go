package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Gertschi2011/kiana-ledger/pkg/core"
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify the chain from genesis",
	Long: `Walk the full chain and fail on the first broken hash, link, or
signature. Read-only.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		node, _ := openNode()
		defer node.Service.Close()

		if err := node.Service.VerifyChain(context.Background()); err != nil {
			var chainErr *core.ChainError
			if errors.As(err, &chainErr) {
				fmt.Printf("Chain BROKEN at block %d: %s\n", chainErr.Index, chainErr.Reason)
			} else {
				fmt.Printf("Chain verification failed: %v\n", err)
			}
			os.Exit(1)
		}

		head, err := node.Chain.Head(context.Background())
		if err != nil {
			fatal("Failed to read chain head", err)
		}
		if head == nil {
			fmt.Println("Chain OK (empty).")
			return
		}
		fmt.Printf("Chain OK: %d blocks, head %s.\n", head.BlockID+1, head.Hash)
	},
}

func init() {
	rootCmd.AddCommand(verifyCmd)
}
