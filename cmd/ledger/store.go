package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Gertschi2011/kiana-ledger/pkg/core"
)

var (
	storeTopic   string
	storeTitle   string
	storeContent string
	storeFile    string
	storeTags    []string
	storeSource  string
	storeAppend  bool
)

// storeCmd represents the store command
var storeCmd = &cobra.Command{
	Use:   "store",
	Short: "Sign and store a knowledge record",
	Long: `Build a record from the given fields, sign it with the node identity,
and persist it content-addressed. Storing identical knowledge twice is a
no-op.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		if storeFile != "" {
			data, err := os.ReadFile(storeFile)
			if err != nil {
				fatal("Failed to read content file", err)
			}
			storeContent = string(data)
		}
		if storeTopic == "" || storeContent == "" {
			fmt.Println("Error: --topic and --content (or --file) are required")
			cmd.Usage()
			os.Exit(1)
		}

		node, _ := openNode()
		defer node.Service.Close()

		rec := &core.Record{
			Topic:   storeTopic,
			Title:   storeTitle,
			Content: storeContent,
			Tags:    storeTags,
			Meta: core.Meta{
				Provenance: node.Identity.PublicKeyHex,
				Status:     core.StatusActive,
				Source:     storeSource,
			},
		}
		if err := node.Signer.Sign(rec); err != nil {
			fatal("Failed to sign record", err)
		}

		ctx := context.Background()
		res, err := node.Service.Store(ctx, rec)
		if err != nil {
			fatal("Failed to store record", err)
		}

		if res.Dedup {
			fmt.Printf("Record already stored as '%s' (dedup).\n", res.ID)
		} else {
			fmt.Printf("Record '%s' stored at %s.\n", res.ID, res.Path)
		}

		if storeAppend && !res.Dedup {
			entry, err := node.Service.AppendToLedger(ctx, rec)
			if err != nil {
				fatal("Failed to append to chain", err)
			}
			fmt.Printf("Chain entry %d appended (hash %s).\n", entry.BlockID, entry.Hash)
		}
	},
}

func init() {
	rootCmd.AddCommand(storeCmd)
	storeCmd.Flags().StringVar(&storeTopic, "topic", "", "Record topic")
	storeCmd.Flags().StringVar(&storeTitle, "title", "", "Record title")
	storeCmd.Flags().StringVar(&storeContent, "content", "", "Record content")
	storeCmd.Flags().StringVar(&storeFile, "file", "", "Read the record content from a file")
	storeCmd.Flags().StringSliceVar(&storeTags, "tag", nil, "Record tags (repeatable)")
	storeCmd.Flags().StringVar(&storeSource, "source", "", "Where the knowledge came from")
	storeCmd.Flags().BoolVar(&storeAppend, "append", false, "Also append the record to the chain")
	storeCmd.MarkFlagRequired("topic")
}
