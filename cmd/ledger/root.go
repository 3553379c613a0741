package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/Gertschi2011/kiana-ledger/internal/platform"
)

var (
	verbose  bool
	basePath string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "ledger",
	Short: "An append-only, signed record store with a tamper-evident chain",
	Long: `ledger stores knowledge records as canonicalized, content-addressed,
Ed25519-signed JSON files and links them into a hash chain that any peer
can verify.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}

		opts := &slog.HandlerOptions{
			Level: level,
		}
		logger := slog.New(slog.NewTextHandler(os.Stderr, opts))
		slog.SetDefault(logger)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&basePath, "path", "", "Node base directory (default: current directory)")
}

// resolvePath returns the node base directory from --path or the CWD.
func resolvePath() string {
	if basePath != "" {
		return basePath
	}
	cwd, err := os.Getwd()
	if err != nil {
		fatal("Failed to get CWD", err)
	}
	return cwd
}

// openNode wires a full node at the resolved base path, honoring the
// node's ledger.yaml.
func openNode() (*platform.Node, platform.NodeConfig) {
	path := resolvePath()

	cfg, err := platform.LoadConfig(path)
	if err != nil {
		fatal("Failed to load config", err)
	}

	opts := []platform.Option{
		platform.WithLogger(slog.Default()),
		platform.WithRole(cfg.Role),
		platform.WithEventBuffer(cfg.EventBuffer),
		platform.WithHTTPTimeout(cfg.HTTPTimeout()),
	}
	if cfg.StrictVerify != nil {
		opts = append(opts, platform.WithStrictVerify(*cfg.StrictVerify))
	}

	node, err := platform.NewNode(path, opts...)
	if err != nil {
		fatal("Failed to initialize ledger node", err)
	}
	return node, cfg
}
