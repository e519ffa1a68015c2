// Package bootstrap assembles a Provider from flag-parsed configuration,
// shared by cmd/zbridge-cli and cmd/zbridge-syncd so neither binary
// duplicates the collaborator wiring (RPC failover client, KeyBridge,
// prover façade) the Provider needs. One plain Config struct assembled by
// flag.FlagSet, no hidden globals.
package bootstrap

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/amiabix/zcash-bridge/internal/economics"
	"github.com/amiabix/zcash-bridge/internal/hostwallet"
	"github.com/amiabix/zcash-bridge/internal/keybridge"
	"github.com/amiabix/zcash-bridge/internal/kvstore"
	"github.com/amiabix/zcash-bridge/internal/prover"
	"github.com/amiabix/zcash-bridge/internal/provider"
	"github.com/amiabix/zcash-bridge/internal/rpc"
	"github.com/amiabix/zcash-bridge/internal/txbuilder"
	"github.com/amiabix/zcash-bridge/pkg/zcash"
)

// Config is the flag-assembled configuration both binaries parse.
type Config struct {
	Network      string // "mainnet" or "testnet"
	RPCEndpoints string // comma-separated URLs
	RPCUser      string
	RPCPassword  string
	WalletFile   string // FileWallet JSON path (the HostWallet stand-in)
	ProverMode   string // "native", "alt", or "http"
	ProverURL    string // used when ProverMode == "http"
	ProofTimeout time.Duration

	// CongestionFees opts in to the congestion-aware estimator; the fixed
	// per-byte/per-component FeeModel stays the default.
	CongestionFees bool

	// KeyStorePass enables the encrypted key-bundle store; bundles go to
	// Postgres when KeyStoreDB names a database, to process memory otherwise.
	KeyStorePass string
	KeyStoreDB   string // "user:password@host:port/dbname", empty = in-memory
}

// ParseNetwork turns cfg.Network into a zcash.Network, defaulting to
// testnet on anything other than the literal "mainnet" so accidental
// mainnet sends require an explicit flag.
func (c Config) ParseNetwork() zcash.Network {
	if strings.EqualFold(c.Network, "mainnet") {
		return zcash.Mainnet
	}
	return zcash.Testnet
}

func (c Config) endpoints() []rpc.Endpoint {
	var eps []rpc.Endpoint
	for _, u := range strings.Split(c.RPCEndpoints, ",") {
		u = strings.TrimSpace(u)
		if u == "" {
			continue
		}
		eps = append(eps, rpc.Endpoint{URL: u, User: c.RPCUser, Password: c.RPCPassword})
	}
	return eps
}

func (c Config) proverBackends() ([]prover.Backend, error) {
	switch c.ProverMode {
	case "", "native":
		return []prover.Backend{prover.NewNativeBackend(), prover.NewAltBackend()}, nil
	case "alt":
		return []prover.Backend{prover.NewAltBackend()}, nil
	case "http":
		if c.ProverURL == "" {
			return nil, fmt.Errorf("prover-url is required when prover-mode=http")
		}
		return []prover.Backend{prover.NewHTTPBackend(c.ProverURL, nil)}, nil
	default:
		return nil, fmt.Errorf("unknown prover mode %q", c.ProverMode)
	}
}

// keyStore builds the encrypted key-bundle store cfg selects, or nil when
// persistence is not enabled.
func (c Config) keyStore(ctx context.Context) (kvstore.Store, error) {
	if c.KeyStorePass == "" {
		return nil, nil
	}
	if c.KeyStoreDB == "" {
		return kvstore.NewMemoryStore(), nil
	}
	pgCfg, err := parseKeyStoreDB(c.KeyStoreDB)
	if err != nil {
		return nil, err
	}
	return kvstore.NewPostgresStore(ctx, pgCfg)
}

// parseKeyStoreDB expands "user:password@host:port/dbname" into a
// kvstore.Config, leaving DefaultConfig values for anything omitted.
func parseKeyStoreDB(spec string) (*kvstore.Config, error) {
	cfg := kvstore.DefaultConfig()
	cred, rest := "", spec
	if at := strings.LastIndex(spec, "@"); at >= 0 {
		cred, rest = spec[:at], spec[at+1:]
	}
	if cred != "" {
		if colon := strings.Index(cred, ":"); colon >= 0 {
			cfg.User, cfg.Password = cred[:colon], cred[colon+1:]
		} else {
			cfg.User = cred
		}
	}
	if slash := strings.Index(rest, "/"); slash >= 0 {
		cfg.Database = rest[slash+1:]
		rest = rest[:slash]
	}
	if rest != "" {
		if colon := strings.Index(rest, ":"); colon >= 0 {
			port, err := strconv.Atoi(rest[colon+1:])
			if err != nil {
				return nil, fmt.Errorf("bad keystore-db port in %q: %w", spec, err)
			}
			cfg.Host, cfg.Port = rest[:colon], port
		} else {
			cfg.Host = rest
		}
	}
	return cfg, nil
}

// NewProvider wires the RPC failover client, file-backed HostWallet, and
// prover façade behind a Provider, ready for GetAddresses/GetBalance/
// BuildAndSign/Sync calls.
func NewProvider(ctx context.Context, cfg Config) (*provider.Provider, error) {
	if len(cfg.endpoints()) == 0 {
		return nil, fmt.Errorf("at least one -rpc endpoint is required")
	}
	network := cfg.ParseNetwork()

	wallet, err := hostwallet.Load(cfg.WalletFile)
	if err != nil {
		return nil, err
	}
	bridge := keybridge.New(network, wallet)
	store, err := cfg.keyStore(ctx)
	if err != nil {
		return nil, err
	}
	if store != nil {
		bridge.WithStore(store, []byte(cfg.KeyStorePass))
	}

	backends, err := cfg.proverBackends()
	if err != nil {
		return nil, err
	}
	timeout := cfg.ProofTimeout
	if timeout == 0 {
		timeout = 5 * time.Minute
	}
	facade := prover.NewFacade(timeout, backends...)

	client := rpc.NewFailoverClient(cfg.endpoints(), nil)

	var fee txbuilder.FeeEstimator
	if cfg.CongestionFees {
		// Seeded at 1 zat/byte against Zcash's 2 MB block ceiling; block
		// sizes observed during Sync move the rate from there.
		fee = economics.NewCongestionFeeEstimator(1, 2_000_000, 100, 10)
	}

	return provider.New(ctx, provider.Config{
		Network:   network,
		RPC:       client,
		KeyBridge: bridge,
		Prover:    facade,
		Fee:       fee,
	})
}
