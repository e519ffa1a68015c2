// Package keybridge provides cached derivation-on-demand of a Zcash
// account from a foreign host's wallet, exposing only
// DeriveZcashAccount(hostID). It owns exactly one cache, host_id to
// DerivedKeys, and never retains the host's private key past the single
// derive call that needs it.
package keybridge

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/amiabix/zcash-bridge/internal/keys"
	"github.com/amiabix/zcash-bridge/internal/kvstore"
	"github.com/amiabix/zcash-bridge/pkg/common"
	"github.com/amiabix/zcash-bridge/pkg/zcash"
)

// HostWallet is the foreign-wallet collaborator interface, the only way
// KeyBridge ever touches host private key material.
type HostWallet interface {
	ExportPrivateKey(ctx context.Context, hostID string) ([]byte, error)
}

// KeyBridge caches derived Zcash accounts by host id so repeated calls for
// the same host don't re-touch the host wallet or re-run HKDF/BIP32.
type KeyBridge struct {
	network zcash.Network
	wallet  HostWallet

	mu            sync.Mutex
	cache         map[string]*keys.DerivedKeys
	firstTimeSeen map[string]bool

	store     kvstore.Store
	storePass []byte
}

func New(network zcash.Network, wallet HostWallet) *KeyBridge {
	return &KeyBridge{
		network:       network,
		wallet:        wallet,
		cache:         make(map[string]*keys.DerivedKeys),
		firstTimeSeen: make(map[string]bool),
	}
}

// WithStore attaches the encrypted key-bundle store. A stored bundle
// doubles as the durable first-time-setup marker: its presence means the
// host already authorized a derivation, so later sessions skip the
// re-authorization prompt. Secrets inside the bundle are sealed under
// password before they ever reach the store.
func (b *KeyBridge) WithStore(store kvstore.Store, password []byte) *KeyBridge {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.store = store
	b.storePass = append([]byte(nil), password...)
	return b
}

// DeriveZcashAccount looks up a cached derivation; on miss, it exports
// the host's private key, derives the account, caches the result (without
// the host key), zeroizes the host key buffer, and returns. The first call
// for a given hostID also flips its first-time-setup marker so callers can
// skip re-authorization prompts on subsequent derivations.
func (b *KeyBridge) DeriveZcashAccount(ctx context.Context, hostID string, accountIndex uint32) (*keys.DerivedKeys, bool, error) {
	b.mu.Lock()
	if cached, ok := b.cache[hostID]; ok {
		b.mu.Unlock()
		cp := *cached
		return &cp, false, nil
	}
	b.mu.Unlock()

	hostSK, err := b.wallet.ExportPrivateKey(ctx, hostID)
	if err != nil {
		return nil, false, err
	}
	defer common.Zero(hostSK)

	derived, err := keys.Derive(b.network, hostID, hostSK, accountIndex)
	if err != nil {
		return nil, false, err
	}

	b.mu.Lock()
	firstTime := !b.firstTimeSeen[hostID]
	b.firstTimeSeen[hostID] = true
	cp := *derived
	b.cache[hostID] = &cp
	store, pass := b.store, b.storePass
	b.mu.Unlock()

	if store != nil && firstTime {
		switch _, err := store.Get(ctx, hostID); {
		case err == nil:
			// Bundle already on disk from an earlier session; the marker
			// stands, no re-authorization and no re-write needed.
			firstTime = false
		case errors.Is(err, kvstore.ErrNotFound):
			if err := b.persistBundle(ctx, store, pass, hostID, derived); err != nil {
				return nil, false, fmt.Errorf("persist key bundle: %w", err)
			}
		default:
			return nil, false, fmt.Errorf("read key bundle: %w", err)
		}
	}

	return derived, firstTime, nil
}

// persistBundle seals the derived spending, viewing, and transparent keys
// into a kvstore.KeyBundle, each under its own salt/IV, and writes it
// keyed by host id. Addresses are stored plaintext.
func (b *KeyBridge) persistBundle(ctx context.Context, store kvstore.Store, pass []byte, hostID string, d *keys.DerivedKeys) error {
	spending, err := kvstore.EncryptSecret(pass, d.Ask[:])
	if err != nil {
		return err
	}
	viewing, err := kvstore.EncryptSecret(pass, d.Ivk[:])
	if err != nil {
		return err
	}
	transparent, err := kvstore.EncryptSecret(pass, d.TransparentSK[:])
	if err != nil {
		return err
	}
	return store.Put(ctx, &kvstore.KeyBundle{
		AccountID:         hostID,
		SpendingKeyEnc:    spending,
		ViewingKeyEnc:     viewing,
		TransparentKeyEnc: transparent,
		TAddr:             d.TAddr,
		ZAddr:             d.ZAddr,
	})
}

// Forget drops a host's cached derivation, e.g. on account rotation.
func (b *KeyBridge) Forget(hostID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if d, ok := b.cache[hostID]; ok {
		d.Zero()
	}
	delete(b.cache, hostID)
	delete(b.firstTimeSeen, hostID)
}
