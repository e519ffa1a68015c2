// zbridge-cli is a command-line interface for the Zcash bridge core:
// wallet derive/balance/send/sync operations behind a flat
// `switch os.Args[1]` dispatch.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/amiabix/zcash-bridge/internal/address"
	"github.com/amiabix/zcash-bridge/internal/bootstrap"
	"github.com/amiabix/zcash-bridge/internal/hostwallet"
	"github.com/amiabix/zcash-bridge/internal/provider"
	"github.com/amiabix/zcash-bridge/pkg/zcash"
)

const version = "0.1.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "version":
		fmt.Printf("zbridge-cli v%s\n", version)

	case "help":
		printUsage()

	case "address":
		cmdAddress(args)

	case "wallet":
		cmdWallet(args)

	case "derive":
		cmdDerive(args)

	case "balance":
		cmdBalance(args)

	case "send":
		cmdSend(args)

	case "sync":
		cmdSync(args)

	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("zbridge-cli - command-line interface for the Zcash bridge core")
	fmt.Println()
	fmt.Println("Usage: zbridge-cli <command> [arguments]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  version             Show version information")
	fmt.Println("  help                Show this help message")
	fmt.Println("  address validate    Validate and describe a t-/z-address")
	fmt.Println("  wallet import       Store a host private key under a host id")
	fmt.Println("  derive              Derive t-addr/z-addr for a host id")
	fmt.Println("  balance             Show transparent+shielded balance")
	fmt.Println("  send                Build, sign, and broadcast a transaction")
	fmt.Println("  sync                Refresh UTXO/note caches from the network")
	fmt.Println()
	fmt.Println("Use 'zbridge-cli <command> -h' for flags accepted by a command.")
}

// commonFlags adds the RPC/network/wallet-file flags every provider-backed
// subcommand needs and returns the populated Config.
func commonFlags(fs *flag.FlagSet) *bootstrap.Config {
	cfg := &bootstrap.Config{}
	fs.StringVar(&cfg.Network, "network", "testnet", "mainnet or testnet")
	fs.StringVar(&cfg.RPCEndpoints, "rpc", "http://127.0.0.1:8232", "comma-separated JSON-RPC endpoint URLs")
	fs.StringVar(&cfg.RPCUser, "rpc-user", "", "JSON-RPC basic auth user")
	fs.StringVar(&cfg.RPCPassword, "rpc-password", "", "JSON-RPC basic auth password")
	fs.StringVar(&cfg.WalletFile, "wallet-file", "./zbridge-wallet.json", "path to the host-wallet key file")
	fs.StringVar(&cfg.ProverMode, "prover", "native", "prover backend: native, alt, or http")
	fs.StringVar(&cfg.ProverURL, "prover-url", "", "delegated proving service URL (prover=http)")
	fs.BoolVar(&cfg.CongestionFees, "congestion-fees", false, "estimate fees from observed block congestion instead of the fixed model")
	fs.StringVar(&cfg.KeyStorePass, "keystore-pass", "", "password sealing the persisted key bundles (empty = no persistence)")
	fs.StringVar(&cfg.KeyStoreDB, "keystore-db", "", "key-bundle database as user:password@host:port/dbname (empty = in-memory)")
	return cfg
}

func cmdAddress(args []string) {
	fs := flag.NewFlagSet("address", flag.ExitOnError)
	network := fs.String("network", "testnet", "mainnet or testnet")
	fs.Parse(args)
	rest := fs.Args()
	if len(rest) < 2 || rest[0] != "validate" {
		fmt.Println("Usage: zbridge-cli address validate <address>")
		os.Exit(1)
	}

	net := zcash.Testnet
	if *network == "mainnet" {
		net = zcash.Mainnet
	}
	decoded, err := address.Validate(rest[1], net)
	if err != nil {
		fmt.Printf("invalid: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("valid: true\ntype: %s\nnetwork: %s\n", decoded.Kind, decoded.Network)
}

func cmdWallet(args []string) {
	fs := flag.NewFlagSet("wallet", flag.ExitOnError)
	walletFile := fs.String("wallet-file", "./zbridge-wallet.json", "path to the host-wallet key file")
	fs.Parse(args)
	rest := fs.Args()
	if len(rest) < 3 || rest[0] != "import" {
		fmt.Println("Usage: zbridge-cli wallet import <host-id> <hex-private-key>")
		os.Exit(1)
	}

	w, err := hostwallet.Load(*walletFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if err := w.Put(rest[1], rest[2]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("stored host key for %q in %s\n", rest[1], *walletFile)
}

func cmdDerive(args []string) {
	fs := flag.NewFlagSet("derive", flag.ExitOnError)
	cfg := commonFlags(fs)
	index := fs.Uint("index", 0, "account index")
	fs.Parse(args)
	rest := fs.Args()
	if len(rest) < 1 {
		fmt.Println("Usage: zbridge-cli derive [flags] <host-id>")
		os.Exit(1)
	}

	p := mustProvider(*cfg)
	addrs, err := p.GetAddresses(context.Background(), rest[0], uint32(*index))
	fail(err)
	fmt.Printf("transparent: %s\nshielded:    %s\n", addrs.Transparent, addrs.Sapling)
}

func cmdBalance(args []string) {
	fs := flag.NewFlagSet("balance", flag.ExitOnError)
	cfg := commonFlags(fs)
	index := fs.Uint("index", 0, "account index")
	fs.Parse(args)
	rest := fs.Args()
	if len(rest) < 1 {
		fmt.Println("Usage: zbridge-cli balance [flags] <host-id>")
		os.Exit(1)
	}

	p := mustProvider(*cfg)
	bal, err := p.GetBalance(context.Background(), rest[0], uint32(*index))
	fail(err)
	fmt.Printf("transparent: confirmed=%d unconfirmed=%d total=%d\n",
		bal.Transparent.Confirmed, bal.Transparent.Unconfirmed, bal.Transparent.Total)
	fmt.Printf("shielded:    confirmed=%d unconfirmed=%d total=%d\n",
		bal.Shielded.Confirmed, bal.Shielded.Unconfirmed, bal.Shielded.Total)
}

func cmdSync(args []string) {
	fs := flag.NewFlagSet("sync", flag.ExitOnError)
	cfg := commonFlags(fs)
	index := fs.Uint("index", 0, "account index")
	fs.Parse(args)
	rest := fs.Args()
	if len(rest) < 1 {
		fmt.Println("Usage: zbridge-cli sync [flags] <host-id>")
		os.Exit(1)
	}

	p := mustProvider(*cfg)
	result, err := p.Sync(context.Background(), rest[0], uint32(*index))
	fail(err)
	fmt.Printf("tip=%d utxos_refreshed=%d notes_discovered=%d blocks_scanned=%d\n",
		result.TipHeight, result.UTXOsRefreshed, result.NotesDiscovered, result.BlocksScanned)
}

func cmdSend(args []string) {
	fs := flag.NewFlagSet("send", flag.ExitOnError)
	cfg := commonFlags(fs)
	index := fs.Uint("index", 0, "account index")
	to := fs.String("to", "", "recipient address (required)")
	amount := fs.Uint64("amount", 0, "amount in zatoshi (required)")
	from := fs.String("from", "t", "source funds: t (transparent) or z (shielded)")
	memo := fs.String("memo", "", "shielded memo text (z-to-z/z-to-t only)")
	broadcast := fs.Bool("broadcast", false, "broadcast the signed transaction after building it")
	fs.Parse(args)
	rest := fs.Args()
	if len(rest) < 1 || *to == "" || *amount == 0 {
		fmt.Println("Usage: zbridge-cli send [flags] -to <address> -amount <zatoshi> <host-id>")
		os.Exit(1)
	}

	fromKind := zcash.KindTransparentP2PKH
	if *from == "z" {
		fromKind = zcash.KindSapling
	}

	p := mustProvider(*cfg)
	ctx := context.Background()
	if _, err := p.Sync(ctx, rest[0], uint32(*index)); err != nil {
		fmt.Fprintf(os.Stderr, "warning: pre-send sync failed: %v\n", err)
	}

	signed, report, err := p.BuildAndSign(ctx, provider.BuildRequest{
		HostID:       rest[0],
		AccountIndex: uint32(*index),
		FromKind:     fromKind,
		ToAddress:    *to,
		Amount:       zcash.Zatoshi(*amount),
		Memo:         []byte(*memo),
	})
	fail(err)

	fmt.Printf("direction: %s\n", report.Direction)
	fmt.Printf("fee: %d zatoshi\n", report.Fee)
	fmt.Printf("tx_hash: %s\n", signed.TxHash)
	fmt.Printf("raw_bytes: %d\n", len(signed.RawTx))

	if *broadcast {
		txid, err := p.Broadcast(ctx, signed.RawTx)
		fail(err)
		fmt.Printf("broadcast txid: %s\n", txid)
	}
}

func mustProvider(cfg bootstrap.Config) *provider.Provider {
	p, err := bootstrap.NewProvider(context.Background(), cfg)
	fail(err)
	return p
}

func fail(err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
