// zbridge-syncd is a background process that periodically calls
// Provider.Sync for a configured set of watched accounts, keeping their
// UTXO/note caches warm between zbridge-cli invocations.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/amiabix/zcash-bridge/internal/bootstrap"
)

const (
	version = "0.1.0"
	banner  = `
 ______ ____       _     _            _____                 _
|___  / |  _ \     (_)   | |          / ____|               | |
   / /| |_| |_) _ __ _  __| | __ _  ___| (___  _   _ _ __   ___ | |
  / / |  _ <| '__| |/ _` + "`" + ` |/ _` + "`" + ` |/ _ \\___ \| | | | '_ \ / __|| |
 / /__| |_) | |  | | (_| | (_| |  __/____) | |_| | | | | (__ | |
/_____|____/|_|  |_|\__,_|\__, |\___|_____/ \__, |_| |_|\___||_|
                           __/ |             __/ |
                          |___/             |___/
  zbridge-syncd v%s
`
)

// watchedAccount is one host_id/account_index pair kept synced.
type watchedAccount struct {
	hostID string
	index  uint32
}

// Config holds zbridge-syncd's flags: the bootstrap wiring plus the
// sync-loop-specific watch list and interval.
type Config struct {
	bootstrap.Config
	Watch        string
	SyncInterval time.Duration
}

func main() {
	cfg := parseFlags()
	fmt.Printf(banner, version)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Println("\nShutting down...")
		cancel()
	}()

	if err := run(ctx, cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags() *Config {
	cfg := &Config{}

	flag.StringVar(&cfg.Network, "network", "testnet", "mainnet or testnet")
	flag.StringVar(&cfg.RPCEndpoints, "rpc", "http://127.0.0.1:8232", "comma-separated JSON-RPC endpoint URLs")
	flag.StringVar(&cfg.RPCUser, "rpc-user", "", "JSON-RPC basic auth user")
	flag.StringVar(&cfg.RPCPassword, "rpc-password", "", "JSON-RPC basic auth password")
	flag.StringVar(&cfg.WalletFile, "wallet-file", "./zbridge-wallet.json", "path to the host-wallet key file")
	flag.StringVar(&cfg.ProverMode, "prover", "native", "prover backend: native, alt, or http")
	flag.StringVar(&cfg.ProverURL, "prover-url", "", "delegated proving service URL (prover=http)")
	flag.BoolVar(&cfg.CongestionFees, "congestion-fees", false, "estimate fees from observed block congestion instead of the fixed model")
	flag.StringVar(&cfg.KeyStorePass, "keystore-pass", "", "password sealing the persisted key bundles (empty = no persistence)")
	flag.StringVar(&cfg.KeyStoreDB, "keystore-db", "", "key-bundle database as user:password@host:port/dbname (empty = in-memory)")
	flag.StringVar(&cfg.Watch, "watch", "", "comma-separated host_id[:account_index] pairs to keep synced")
	flag.DurationVar(&cfg.SyncInterval, "sync-interval", 60*time.Second, "how often to re-sync each watched account")

	flag.Parse()
	return cfg
}

func run(ctx context.Context, cfg *Config) error {
	fmt.Println("Initializing zbridge-syncd...")

	accounts, err := parseWatchList(cfg.Watch)
	if err != nil {
		return fmt.Errorf("invalid -watch list: %w", err)
	}
	if len(accounts) == 0 {
		fmt.Println("No accounts configured via -watch; idling until shutdown.")
	}

	p, err := bootstrap.NewProvider(ctx, cfg.Config)
	if err != nil {
		return fmt.Errorf("failed to initialize provider: %w", err)
	}

	ticker := time.NewTicker(cfg.SyncInterval)
	defer ticker.Stop()

	syncAll := func() {
		for _, acct := range accounts {
			result, err := p.Sync(ctx, acct.hostID, acct.index)
			if err != nil {
				fmt.Fprintf(os.Stderr, "sync %s/%d failed: %v\n", acct.hostID, acct.index, err)
				continue
			}
			fmt.Printf("synced %s/%d: tip=%d utxos=%d notes=%d blocks=%d\n",
				acct.hostID, acct.index, result.TipHeight, result.UTXOsRefreshed,
				result.NotesDiscovered, result.BlocksScanned)
		}
	}

	syncAll()
	fmt.Println("zbridge-syncd started. Press Ctrl+C to stop.")

	for {
		select {
		case <-ctx.Done():
			fmt.Println("Sync loop stopped.")
			return nil
		case <-ticker.C:
			syncAll()
		}
	}
}

// parseWatchList parses "hostA:2,hostB,hostC:0" into watchedAccounts,
// defaulting a missing account index to 0.
func parseWatchList(spec string) ([]watchedAccount, error) {
	var out []watchedAccount
	for _, entry := range strings.Split(spec, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, ":", 2)
		acct := watchedAccount{hostID: parts[0]}
		if len(parts) == 2 {
			idx, err := strconv.ParseUint(parts[1], 10, 32)
			if err != nil {
				return nil, fmt.Errorf("bad account index in %q: %w", entry, err)
			}
			acct.index = uint32(idx)
		}
		out = append(out, acct)
	}
	return out, nil
}
