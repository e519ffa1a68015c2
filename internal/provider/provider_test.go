package provider

import (
	"context"
	"strings"
	"testing"

	"github.com/amiabix/zcash-bridge/internal/keybridge"
	"github.com/amiabix/zcash-bridge/internal/prover"
	"github.com/amiabix/zcash-bridge/internal/rpc"
	"github.com/amiabix/zcash-bridge/pkg/zcash"
)

type fakeWallet struct {
	keys map[string][]byte
}

func (w *fakeWallet) ExportPrivateKey(ctx context.Context, hostID string) ([]byte, error) {
	sk, ok := w.keys[hostID]
	if !ok {
		return nil, zcash.ErrHostDenied
	}
	cp := make([]byte, len(sk))
	copy(cp, sk)
	return cp, nil
}

// fakeRPC implements rpc.Client with a fixed tip and an empty chain, enough
// to exercise Provider.GetBalance and Provider.Sync without a real node.
type fakeRPC struct {
	tip       uint32
	utxos     []rpc.UTXOEntry
	sentRaw   string
	treeFinal string
}

func (f *fakeRPC) GetBlockCount(ctx context.Context) (uint32, error) { return f.tip, nil }
func (f *fakeRPC) GetBlockHash(ctx context.Context, height uint32) (zcash.Hash32, error) {
	return zcash.Hash32{byte(height)}, nil
}
func (f *fakeRPC) GetBlock(ctx context.Context, hash zcash.Hash32, verbosity int) (*rpc.Block, error) {
	return &rpc.Block{Hash: hash.String(), Tx: nil}, nil
}
func (f *fakeRPC) GetTreeState(ctx context.Context, height uint32) (*rpc.TreeState, error) {
	ts := &rpc.TreeState{Height: height}
	ts.Sapling.Commitments.FinalState = f.treeFinal
	return ts, nil
}
func (f *fakeRPC) GetBalance(ctx context.Context, addr string) (zcash.Zatoshi, error) { return 0, nil }
func (f *fakeRPC) ZGetBalance(ctx context.Context, addr string, minConf uint32) (zcash.Zatoshi, error) {
	return 0, nil
}
func (f *fakeRPC) ListUnspent(ctx context.Context, minConf, maxConf uint32, addrs []string) ([]rpc.UTXOEntry, error) {
	return f.utxos, nil
}
func (f *fakeRPC) SendRawTransaction(ctx context.Context, rawHex string) (string, error) {
	f.sentRaw = rawHex
	return "deadbeef", nil
}
func (f *fakeRPC) GetRawTransaction(ctx context.Context, txid string, verbose bool) (*rpc.TxInfo, error) {
	return &rpc.TxInfo{TxID: txid}, nil
}
func (f *fakeRPC) EstimateFee(ctx context.Context, blocks int) (float64, error) { return 0.0001, nil }
func (f *fakeRPC) GetBlockchainInfo(ctx context.Context) (*rpc.BlockchainInfo, error) {
	return &rpc.BlockchainInfo{Blocks: f.tip}, nil
}

func testHostSK() []byte {
	sk := make([]byte, 32)
	for i := range sk {
		sk[i] = 0x07
	}
	return sk
}

func newTestProvider(t *testing.T, rpcClient rpc.Client) *Provider {
	t.Helper()
	wallet := &fakeWallet{keys: map[string][]byte{"host-1": testHostSK()}}
	kb := keybridge.New(zcash.Testnet, wallet)
	facade := prover.NewFacade(0)

	p, err := New(context.Background(), Config{
		Network:   zcash.Testnet,
		RPC:       rpcClient,
		KeyBridge: kb,
		Prover:    facade,
	})
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}
	return p
}

func TestGetAddressesReturnsBothAddressKinds(t *testing.T) {
	p := newTestProvider(t, &fakeRPC{tip: 100})
	addrs, err := p.GetAddresses(context.Background(), "host-1", 0)
	if err != nil {
		t.Fatalf("get addresses: %v", err)
	}
	if addrs.Transparent == "" || addrs.Sapling == "" {
		t.Fatal("expected both transparent and sapling addresses to be populated")
	}
}

func TestGetBalanceReadsCachesAgainstTip(t *testing.T) {
	p := newTestProvider(t, &fakeRPC{tip: 100})
	bal, err := p.GetBalance(context.Background(), "host-1", 0)
	if err != nil {
		t.Fatalf("get balance: %v", err)
	}
	if bal.Transparent.Total != 0 || bal.Shielded.Total != 0 {
		t.Fatalf("expected zero balance for a fresh account, got %+v", bal)
	}
}

func TestSyncRefreshesUTXOCacheFromListUnspent(t *testing.T) {
	p := newTestProvider(t, &fakeRPC{tip: 10})

	addrs, err := p.GetAddresses(context.Background(), "host-1", 0)
	if err != nil {
		t.Fatalf("get addresses: %v", err)
	}

	r := &fakeRPC{tip: 10, utxos: []rpc.UTXOEntry{
		{TxID: "aa", Vout: 0, Address: addrs.Transparent, Amount: 0.001, Confirmations: 1},
	}}
	p2 := newTestProvider(t, r)

	result, err := p2.Sync(context.Background(), "host-1", 0)
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if result.UTXOsRefreshed != 1 {
		t.Fatalf("expected 1 refreshed utxo, got %d", result.UTXOsRefreshed)
	}
	if result.TipHeight != 10 {
		t.Fatalf("expected tip height 10, got %d", result.TipHeight)
	}
}

func TestBroadcastForwardsRawTxToRPC(t *testing.T) {
	r := &fakeRPC{tip: 10}
	p := newTestProvider(t, r)

	txid, err := p.Broadcast(context.Background(), []byte{0xDE, 0xAD})
	if err != nil {
		t.Fatalf("broadcast: %v", err)
	}
	if txid != "deadbeef" {
		t.Fatalf("expected txid deadbeef, got %s", txid)
	}
	if r.sentRaw != "dead" {
		t.Fatalf("expected hex-encoded raw tx forwarded, got %s", r.sentRaw)
	}
}

func TestGetCommitmentTreeAnchorPrefersTreeState(t *testing.T) {
	final := strings.Repeat("ab", 32)
	p := newTestProvider(t, &fakeRPC{tip: 10, treeFinal: final})

	root, err := p.GetCommitmentTreeAnchor(context.Background())
	if err != nil {
		t.Fatalf("get anchor: %v", err)
	}
	if root.IsZero() {
		t.Fatal("expected a non-zero anchor from the tree-state reply")
	}
}

func TestGetCommitmentTreeAnchorUnavailableWhenUnsynced(t *testing.T) {
	p := newTestProvider(t, &fakeRPC{tip: 10})

	if _, err := p.GetCommitmentTreeAnchor(context.Background()); err != zcash.ErrAnchorUnavailable {
		t.Fatalf("expected ErrAnchorUnavailable with no tree state and an empty local tree, got %v", err)
	}
}

// blockingRPC wraps fakeRPC, stalling GetBlockCount until released, so a
// test can hold a Sync call in flight while issuing a second, concurrent
// one for the same address.
type blockingRPC struct {
	fakeRPC
	started chan struct{}
	release chan struct{}
}

func (b *blockingRPC) GetBlockCount(ctx context.Context) (uint32, error) {
	close(b.started)
	<-b.release
	return b.fakeRPC.tip, nil
}

func TestSyncRejectsConcurrentCallForSameAddress(t *testing.T) {
	r := &blockingRPC{fakeRPC: fakeRPC{tip: 10}, started: make(chan struct{}), release: make(chan struct{})}
	p := newTestProvider(t, r)

	errCh := make(chan error, 1)
	go func() {
		_, err := p.Sync(context.Background(), "host-1", 0)
		errCh <- err
	}()

	<-r.started
	if _, err := p.Sync(context.Background(), "host-1", 0); err != zcash.ErrSyncInProgress {
		t.Fatalf("expected ErrSyncInProgress for a concurrent sync, got %v", err)
	}

	close(r.release)
	if err := <-errCh; err != nil {
		t.Fatalf("first sync: %v", err)
	}

	if ok := p.startSync("host-1/0"); !ok {
		t.Fatal("expected startSync to succeed once the first sync has completed")
	}
	p.endSync("host-1/0")
}
