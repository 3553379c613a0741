package ledger_test

import (
	"context"
	"fmt"
	"log"
	"os"

	ledger "github.com/Gertschi2011/kiana-ledger"
	"github.com/Gertschi2011/kiana-ledger/pkg/core"
)

// Example_basic demonstrates how to open a node, store a signed record, and
// read it back verified.
func Example_basic() {
	// Create a temporary directory for the example
	tmpDir, err := os.MkdirTemp("", "ledger-example-*")
	if err != nil {
		log.Fatal(err)
	}
	defer os.RemoveAll(tmpDir)

	// Open the full node: identity, store, chain, and index are wired and
	// the owner keypair is generated on first use.
	node, err := ledger.Open(tmpDir)
	if err != nil {
		log.Fatal(err)
	}
	defer node.Service.Close()

	ctx := context.Background()

	// 1. Build and sign a record
	rec := &core.Record{
		Topic:   "example",
		Content: "All knowledge in this store is signed.",
		Meta:    core.Meta{Provenance: node.Identity.PublicKeyHex, Status: core.StatusActive},
	}
	if err := node.Signer.Sign(rec); err != nil {
		log.Fatal(err)
	}

	// 2. Store it; the id derives from the content
	res, err := node.Service.Store(ctx, rec)
	if err != nil {
		log.Fatal(err)
	}

	// 3. Read it back with hash and signature verification
	loaded, err := node.Service.Load(ctx, res.ID, true)
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("Found record: %s\n", loaded.Content)
	// Output:
	// Found record: All knowledge in this store is signed.
}
