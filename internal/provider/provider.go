// Package provider implements the Provider orchestrator: the single
// public entry point a caller uses to read balances, build and sign
// transactions, broadcast them, and keep the local caches synced with the
// network. One struct holds every collaborator (key bridge, caches,
// prover, network client) behind a small public method set.
package provider

import (
	"context"
	"encoding/hex"
	"fmt"
	"math/big"
	"sync"

	"github.com/amiabix/zcash-bridge/internal/address"
	"github.com/amiabix/zcash-bridge/internal/keybridge"
	"github.com/amiabix/zcash-bridge/internal/keys"
	"github.com/amiabix/zcash-bridge/internal/note"
	"github.com/amiabix/zcash-bridge/internal/prover"
	"github.com/amiabix/zcash-bridge/internal/rpc"
	"github.com/amiabix/zcash-bridge/internal/serializer"
	"github.com/amiabix/zcash-bridge/internal/txbuilder"
	"github.com/amiabix/zcash-bridge/internal/utxo"
	"github.com/amiabix/zcash-bridge/pkg/zcash"
)

// Config wires every collaborator a Provider needs. RPC, KeyBridge, and
// Prover are required; the caches and FeeEstimator fall back to sensible
// in-process defaults when left nil so a caller can stand up a Provider
// with minimal ceremony in tests.
type Config struct {
	Network   zcash.Network
	RPC       rpc.Client
	KeyBridge *keybridge.KeyBridge
	Prover    *prover.Facade

	UTXOCache  *utxo.Cache
	NoteCache  *note.Cache
	TreeStore  note.TreeStore
	Fee        txbuilder.FeeEstimator
	MinConf    uint32
	Policy     utxo.SelectionPolicy
}

// Provider is the orchestrator: every account-facing operation funnels
// through it, and it is the only component that holds every other
// collaborator at once.
type Provider struct {
	network   zcash.Network
	rpc       rpc.Client
	keyBridge *keybridge.KeyBridge
	prover    *prover.Facade

	utxoCache *utxo.Cache
	noteCache *note.Cache
	tree      *note.CommitmentTree
	fee       txbuilder.FeeEstimator
	minConf   uint32
	policy    utxo.SelectionPolicy

	scanners   map[string]*note.Scanner
	scannersMu sync.Mutex

	buildMu sync.Mutex // selection+locking must be atomic across concurrent builds

	syncing   map[string]bool // addresses with a Sync in flight
	syncingMu sync.Mutex
}

// New builds a Provider from cfg, substituting default caches/fee model for
// any left unset.
func New(ctx context.Context, cfg Config) (*Provider, error) {
	if cfg.RPC == nil || cfg.KeyBridge == nil || cfg.Prover == nil {
		return nil, fmt.Errorf("%w: RPC, KeyBridge, and Prover are required", zcash.ErrInvalidAccountID)
	}
	if cfg.UTXOCache == nil {
		cfg.UTXOCache = utxo.NewCache(0)
	}
	if cfg.NoteCache == nil {
		cfg.NoteCache = note.NewCache()
	}
	if cfg.TreeStore == nil {
		cfg.TreeStore = note.NewInMemoryTreeStore()
	}
	if cfg.Fee == nil {
		cfg.Fee = txbuilder.DefaultFeeModel
	}
	if cfg.MinConf == 0 {
		cfg.MinConf = 1
	}

	tree, err := note.NewCommitmentTree(ctx, cfg.TreeStore)
	if err != nil {
		return nil, err
	}

	return &Provider{
		network:   cfg.Network,
		rpc:       cfg.RPC,
		keyBridge: cfg.KeyBridge,
		prover:    cfg.Prover,
		utxoCache: cfg.UTXOCache,
		noteCache: cfg.NoteCache,
		tree:      tree,
		fee:       cfg.Fee,
		minConf:   cfg.MinConf,
		policy:    cfg.Policy,
		scanners:  make(map[string]*note.Scanner),
		syncing:   make(map[string]bool),
	}, nil
}

// Addresses holds the account's transparent and shielded receive
// addresses.
type Addresses struct {
	Transparent string
	Sapling     string
}

// GetAddresses derives (or fetches cached) the account and returns both
// receive addresses. It never exposes any secret field of the
// derivation.
func (p *Provider) GetAddresses(ctx context.Context, hostID string, accountIndex uint32) (*Addresses, error) {
	derived, _, err := p.keyBridge.DeriveZcashAccount(ctx, hostID, accountIndex)
	if err != nil {
		return nil, err
	}
	defer derived.Zero()
	return &Addresses{Transparent: derived.TAddr, Sapling: derived.ZAddr}, nil
}

// Balances is the get_balance result: the transparent and shielded split,
// each itself confirmed/unconfirmed/total.
type Balances struct {
	Transparent zcash.Balance
	Shielded    zcash.Balance
}

// GetBalance reads both caches for the account's addresses against the
// current chain tip.
func (p *Provider) GetBalance(ctx context.Context, hostID string, accountIndex uint32) (*Balances, error) {
	derived, _, err := p.keyBridge.DeriveZcashAccount(ctx, hostID, accountIndex)
	if err != nil {
		return nil, err
	}
	defer derived.Zero()

	tip, err := p.rpc.GetBlockCount(ctx)
	if err != nil {
		return nil, err
	}

	return &Balances{
		Transparent: p.utxoCache.Balance(derived.TAddr, tip, p.minConf),
		Shielded:    p.noteCache.Balance(derived.ZAddr),
	}, nil
}

// Broadcast relays a fully-signed transaction's raw bytes to the network.
func (p *Provider) Broadcast(ctx context.Context, rawTx []byte) (string, error) {
	return p.rpc.SendRawTransaction(ctx, hex.EncodeToString(rawTx))
}

// GetCommitmentTreeAnchor returns the Sapling commitment tree root new
// spends must prove membership against: the network's z_gettreestate reply
// when an endpoint answers, falling back to the locally accumulated tree.
// The local tree is built purely from what Sync has scanned, so the
// fallback is authoritative only insofar as Sync is caught up.
func (p *Provider) GetCommitmentTreeAnchor(ctx context.Context) (zcash.Hash32, error) {
	if ts, err := p.rpc.GetTreeState(ctx, 0); err == nil {
		if b, err := hex.DecodeString(ts.Sapling.Commitments.FinalState); err == nil && len(b) == 32 {
			return zcash.Hash32FromBytes(b).Reversed(), nil
		}
	}
	if p.tree.Size() == 0 {
		return zcash.Hash32{}, zcash.ErrAnchorUnavailable
	}
	return p.tree.Root(), nil
}

// SyncResult summarizes one Sync call.
type SyncResult struct {
	TipHeight        uint32
	UTXOsRefreshed   int
	NotesDiscovered  int
	BlocksScanned    int
}

// Sync refreshes the account's transparent UTXO set via the network's
// listunspent, then walks every block since the shielded cache's last
// synced height, trial-decrypting each output against the account's
// viewing key.
func (p *Provider) Sync(ctx context.Context, hostID string, accountIndex uint32) (*SyncResult, error) {
	syncKey := fmt.Sprintf("%s/%d", hostID, accountIndex)
	if !p.startSync(syncKey) {
		return nil, zcash.ErrSyncInProgress
	}
	defer p.endSync(syncKey)

	derived, _, err := p.keyBridge.DeriveZcashAccount(ctx, hostID, accountIndex)
	if err != nil {
		return nil, err
	}
	defer derived.Zero()

	tip, err := p.rpc.GetBlockCount(ctx)
	if err != nil {
		return nil, err
	}

	entries, err := p.rpc.ListUnspent(ctx, 0, 9999, []string{derived.TAddr})
	if err != nil {
		return nil, err
	}
	utxos := make([]*utxo.UTXO, 0, len(entries))
	for _, e := range entries {
		scriptPubKey, err := address.ScriptPubKeyForAddress(derived.TAddr, p.network)
		if err != nil {
			continue
		}
		txid, err := hexToHash(e.TxID)
		if err != nil {
			continue
		}
		utxos = append(utxos, &utxo.UTXO{
			Outpoint:      utxo.Outpoint{TxID: txid, Vout: e.Vout},
			Value:         zcash.Zatoshi(e.Amount * 1e8),
			ScriptPubKey:  scriptPubKey,
			Confirmations: e.Confirmations,
			BlockHeight:   tip - e.Confirmations + 1,
		})
	}
	p.utxoCache.Update(ctx, derived.TAddr, utxos, tip)

	scanner := p.scannerFor(derived)
	from := p.noteCache.SyncedHeight(derived.ZAddr) + 1
	blocksScanned := 0
	notesFound := 0
	for height := from; height <= tip && height > 0; height++ {
		block, err := p.compactBlockAt(ctx, height)
		if err != nil {
			return nil, err
		}
		n, err := scanner.ScanBlock(ctx, block)
		if err != nil {
			return nil, err
		}
		notesFound += n
		blocksScanned++
	}

	return &SyncResult{
		TipHeight:       tip,
		UTXOsRefreshed:  len(utxos),
		NotesDiscovered: notesFound,
		BlocksScanned:   blocksScanned,
	}, nil
}

// startSync marks addr as having a Sync in flight, rejecting a concurrent
// call for the same address rather than letting it race the first one's
// cache writes; Sync is not re-entrant for the same address.
func (p *Provider) startSync(addr string) bool {
	p.syncingMu.Lock()
	defer p.syncingMu.Unlock()
	if p.syncing[addr] {
		return false
	}
	p.syncing[addr] = true
	return true
}

// endSync clears addr's in-flight marker, run unconditionally via defer so
// a returned error still releases the slot.
func (p *Provider) endSync(addr string) {
	p.syncingMu.Lock()
	defer p.syncingMu.Unlock()
	delete(p.syncing, addr)
}

// scannerFor returns the cached Scanner for the account's shielded address,
// creating one seeded with its ivk/ovk on first use.
func (p *Provider) scannerFor(derived *keys.DerivedKeys) *note.Scanner {
	p.scannersMu.Lock()
	defer p.scannersMu.Unlock()
	if s, ok := p.scanners[derived.ZAddr]; ok {
		return s
	}
	ivk := new(big.Int).SetBytes(derived.Ivk[:])
	s := note.NewScanner(derived.ZAddr, ivk, derived.Ovk, p.noteCache, p.tree)
	p.scanners[derived.ZAddr] = s
	return s
}

// observeBlockSize feeds block sizes seen during sync to the configured
// fee estimator when it tracks congestion (economics.CongestionFeeEstimator
// does; the fixed txbuilder.FeeModel does not and is skipped).
func (p *Provider) observeBlockSize(size uint32) {
	if size == 0 {
		return
	}
	if obs, ok := p.fee.(interface{ Observe(uint64) }); ok {
		obs.Observe(uint64(size))
	}
}

func hexToHash(s string) (zcash.Hash32, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return zcash.Hash32{}, err
	}
	return zcash.Hash32FromBytes(b).Reversed(), nil
}

// compactBlockAt fetches block height, reads every transaction's shielded
// outputs, and assembles the minimal CompactBlock view the scanner needs.
// With no dedicated compact-block call on the RPC surface, this
// reconstructs one from getblock's txid list plus getrawtransaction, the
// same derive-the-minimal-view approach internal/rpc.TreeState takes for
// z_gettreestate.
func (p *Provider) compactBlockAt(ctx context.Context, height uint32) (*note.CompactBlock, error) {
	hash, err := p.rpc.GetBlockHash(ctx, height)
	if err != nil {
		return nil, err
	}
	block, err := p.rpc.GetBlock(ctx, hash, 1)
	if err != nil {
		return nil, err
	}
	p.observeBlockSize(block.Size)

	cb := &note.CompactBlock{Height: height}
	for _, txid := range block.Tx {
		info, err := p.rpc.GetRawTransaction(ctx, txid, false)
		if err != nil {
			continue
		}
		raw, err := hex.DecodeString(info.Hex)
		if err != nil {
			continue
		}
		stx, err := serializer.Deserialize(raw)
		if err != nil {
			continue
		}
		for _, o := range stx.Outputs {
			cb.Outputs = append(cb.Outputs, note.CompactOutput{
				Cmu:           o.Cmu,
				Epk:           o.Epk,
				EncCiphertext: o.EncCiphertext,
				OutCiphertext: o.OutCiphertext,
			})
		}
	}
	return cb, nil
}
