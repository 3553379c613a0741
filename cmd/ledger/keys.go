package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage node identity and the agent registry",
}

var keysShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the node's public key",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		node, cfg := openNode()
		defer node.Service.Close()

		fmt.Printf("role:       %s\n", cfg.Role)
		fmt.Printf("public key: %s\n", node.Identity.PublicKeyHex)
	},
}

var (
	registerID         string
	registerKey        string
	registerAuthorized bool
)

var keysRegisterCmd = &cobra.Command{
	Use:   "register",
	Short: "Register an agent's public key",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		if registerID == "" || registerKey == "" {
			fmt.Println("Error: --id and --key are required")
			cmd.Usage()
			os.Exit(1)
		}

		node, _ := openNode()
		defer node.Service.Close()

		if err := node.Registry.Register(registerID, registerKey, registerAuthorized); err != nil {
			fatal("Failed to register agent", err)
		}
		fmt.Printf("Agent '%s' registered.\n", registerID)
	},
}

var keysRevokeCmd = &cobra.Command{
	Use:   "revoke <public-key-hex>",
	Short: "Revoke a public key",
	Long: `Add the key to the revocation list. Revocation is additive and
permanent; records signed with a revoked key stop verifying.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		node, _ := openNode()
		defer node.Service.Close()

		if err := node.Registry.Revoke(args[0]); err != nil {
			fatal("Failed to revoke key", err)
		}
		fmt.Println("Key revoked.")
	},
}

var keysRotateCmd = &cobra.Command{
	Use:   "rotate",
	Short: "Generate a fresh keypair for the node's role",
	Long: `Generate a new keypair and revoke the old public key so records
signed with it stop verifying. Existing records keep the key they were
signed with.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		node, cfg := openNode()
		defer node.Service.Close()

		pair, oldKey, err := node.Keys.Rekey(cfg.Role)
		if err != nil {
			fatal("Failed to rotate key", err)
		}
		if err := node.Registry.Revoke(oldKey); err != nil {
			fatal("Failed to revoke old key", err)
		}
		fmt.Printf("New public key: %s\n", pair.PublicKeyHex)
		fmt.Printf("Revoked:        %s\n", oldKey)
	},
}

var keysAgentsCmd = &cobra.Command{
	Use:   "agents",
	Short: "List registered agents",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		node, _ := openNode()
		defer node.Service.Close()

		for _, agent := range node.Registry.Agents() {
			status := ""
			if node.Registry.IsRevoked(agent.PublicKey) {
				status = "  (revoked)"
			}
			owner := ""
			if agent.AuthorizedByOwner {
				owner = "  [owner-authorized]"
			}
			fmt.Printf("%s  %s%s%s\n", agent.ID, agent.PublicKey, owner, status)
		}
	},
}

func init() {
	rootCmd.AddCommand(keysCmd)
	keysCmd.AddCommand(keysShowCmd)
	keysCmd.AddCommand(keysRegisterCmd)
	keysCmd.AddCommand(keysRevokeCmd)
	keysCmd.AddCommand(keysRotateCmd)
	keysCmd.AddCommand(keysAgentsCmd)

	keysRegisterCmd.Flags().StringVar(&registerID, "id", "", "Agent id")
	keysRegisterCmd.Flags().StringVar(&registerKey, "key", "", "Agent public key (hex)")
	keysRegisterCmd.Flags().BoolVar(&registerAuthorized, "authorized", false, "Mark the agent as owner-authorized")
}
