package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Gertschi2011/kiana-ledger/pkg/core"
)

var (
	queryTopic string
	queryTags  []string
	queryGlob  string
	queryLimit int
	queryJSON  bool
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "List stored records matching a filter",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		node, _ := openNode()
		defer node.Service.Close()

		records, err := node.Service.Query(context.Background(), core.QueryFilter{
			Topic:  queryTopic,
			Tags:   queryTags,
			IDGlob: queryGlob,
			Limit:  queryLimit,
		})
		if err != nil {
			fatal("Failed to query records", err)
		}

		if queryJSON {
			encoder := json.NewEncoder(os.Stdout)
			encoder.SetIndent("", "  ")
			if err := encoder.Encode(records); err != nil {
				fmt.Printf("Error encoding JSON: %v\n", err)
				os.Exit(1)
			}
			return
		}

		for _, rec := range records {
			title := rec.Title
			if title == "" {
				title = rec.Topic
			}
			fmt.Printf("%s  %s\n", rec.ID, title)
		}
	},
}

func init() {
	rootCmd.AddCommand(queryCmd)
	queryCmd.Flags().StringVar(&queryTopic, "topic", "", "Filter by topic")
	queryCmd.Flags().StringSliceVar(&queryTags, "tag", nil, "Filter by tags (subset match)")
	queryCmd.Flags().StringVar(&queryGlob, "id", "", "Filter by id glob pattern")
	queryCmd.Flags().IntVar(&queryLimit, "limit", 0, "Maximum records to return")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "Output in JSON format")
}
