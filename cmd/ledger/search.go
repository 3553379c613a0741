package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Gertschi2011/kiana-ledger/pkg/core"
)

var (
	searchTopic string
	searchLimit int
)

var searchCmd = &cobra.Command{
	Use:   "search <terms...>",
	Short: "Search the index for matching records",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		node, _ := openNode()
		defer node.Service.Close()

		matches, err := node.Service.Search(context.Background(), core.SearchFilter{
			Text:  strings.Join(args, " "),
			Topic: searchTopic,
			Limit: searchLimit,
		})
		if err != nil {
			fatal("Failed to search", err)
		}

		for _, m := range matches {
			title := m.Title
			if title == "" {
				title = m.Topic
			}
			fmt.Printf("%s  %s\n", m.ID, title)
		}
	},
}

var contextCmd = &cobra.Command{
	Use:   "context <query...>",
	Short: "Assemble prompt context for a free-text query",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		node, _ := openNode()
		defer node.Service.Close()

		out, err := node.Service.GetContext(context.Background(), strings.Join(args, " "), contextMaxChars)
		if err != nil {
			fatal("Failed to build context", err)
		}
		fmt.Println(out)
	},
}

var contextMaxChars int

func init() {
	rootCmd.AddCommand(searchCmd)
	searchCmd.Flags().StringVar(&searchTopic, "topic", "", "Restrict to a topic")
	searchCmd.Flags().IntVar(&searchLimit, "limit", 10, "Maximum matches to return")

	rootCmd.AddCommand(contextCmd)
	contextCmd.Flags().IntVar(&contextMaxChars, "max-chars", 2000, "Context size cap in characters")
}
