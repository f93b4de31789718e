// Command arthachain-node is the process entrypoint wiring C1-C6 together.
// It carries no RPC surface and no subcommands, so it parses its two flags
// ("-config" and "-block-interval") with the standard library rather than the teacher's
// cmd/kcn urfave/cli app — that library earns its keep across dozens of
// subcommands and hundreds of flags, neither of which exists here. The
// signal-handling shape (SIGINT/SIGTERM triggers an orderly Stop, ten more
// signals force exit) is taken directly from cmd/utils/cmd.go's StartNode.
package main

import (
	"crypto/rand"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Diigoo-Tech-Ind/ArthaChain-sub003/internal/common"
	"github.com/Diigoo-Tech-Ind/ArthaChain-sub003/internal/config"
	"github.com/Diigoo-Tech-Ind/ArthaChain-sub003/internal/crossshard"
	"github.com/Diigoo-Tech-Ind/ArthaChain-sub003/internal/crypto"
	"github.com/Diigoo-Tech-Ind/ArthaChain-sub003/internal/log"
	"github.com/Diigoo-Tech-Ind/ArthaChain-sub003/internal/node"
	"github.com/Diigoo-Tech-Ind/ArthaChain-sub003/internal/txtypes"
)

var logger = log.NewModuleLogger(log.ModuleNode)

// acceptAllConsensus accepts every candidate block unconditionally.
// Consensus itself is out of scope for this core (see spec §1's
// non-goals); this is the seam a real BFT/longest-chain engine replaces.
type acceptAllConsensus struct{}

func (acceptAllConsensus) Accept(_ *txtypes.BlockHeader, _ []*txtypes.Transaction, _ []*txtypes.Receipt) (bool, error) {
	return true, nil
}

func main() {
	configPath := flag.String("config", "", "path to the node's TOML configuration file")
	blockInterval := flag.Duration("block-interval", 2*time.Second, "fixed interval between block production rounds")
	flag.Parse()

	cfg := config.DefaultNodeConfig
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fatalf("failed to load config %s: %v", *configPath, err)
		}
		cfg = *loaded
	}
	cfg.Sanitize()

	keys, err := crypto.GenerateCoordinatorKeyPair()
	if err != nil {
		fatalf("failed to generate coordinator keypair: %v", err)
	}

	var address common.Address
	if _, err := rand.Read(address[:]); err != nil {
		fatalf("failed to derive producer address: %v", err)
	}

	deps := node.Deps{
		Address:   address,
		Keys:      keys,
		PeerKeys:  map[crossshard.ShardID][]byte{},
		Consensus: acceptAllConsensus{},
	}

	ctx, err := node.New(&cfg, deps)
	if err != nil {
		fatalf("failed to construct node: %v", err)
	}

	ctx.Start()
	go ctx.RunBlockProduction(*blockInterval)
	logger.Info("node started", "shard", cfg.Coordinator.ShardID, "storage", cfg.Storage.Backend)

	waitForShutdown(ctx)
}

func waitForShutdown(ctx *node.NodeContext) {
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigc)
	<-sigc
	logger.Info("got interrupt, shutting down...")
	go ctx.Stop()
	for i := 10; i > 0; i-- {
		<-sigc
		if i > 1 {
			logger.Warn("already shutting down, interrupt more to force exit", "times", i-1)
		}
	}
	os.Exit(1)
}

func fatalf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "fatal: "+format+"\n", args...)
	os.Exit(1)
}
