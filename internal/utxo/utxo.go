// Package utxo implements the transparent UTXO cache and selector: an
// in-memory set keyed by address, with TTL expiry, atomic lock/unlock for
// in-flight transactions, and pluggable coin-selection policies.
package utxo

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/amiabix/zcash-bridge/pkg/zcash"
)

// Outpoint identifies a UTXO by (txid, vout).
type Outpoint struct {
	TxID zcash.Hash32
	Vout uint32
}

// UTXO is a single unspent transparent output.
type UTXO struct {
	Outpoint
	Value         zcash.Zatoshi
	ScriptPubKey  []byte
	Confirmations uint32
	BlockHeight   uint32
	CachedAt      time.Time
	LockedBy      string // in-flight build id, empty if unlocked
}

// SelectionPolicy is a coin-selection strategy.
type SelectionPolicy uint8

const (
	LargestFirst SelectionPolicy = iota
	SmallestFirst
	OldestFirst
	NewestFirst
	RandomOrder
)

// DustThreshold is the change value below which an output is not worth
// creating; the builders fold such change into the fee.
const DustThreshold = zcash.Zatoshi(1000)

// DefaultTTL is how long a cached UTXO is trusted before a fresh sync is
// required to read it again.
const DefaultTTL = 10 * time.Minute

// Cache is the address-keyed UTXO set. All mutation is serialized by mu;
// callers coordinating multi-step read-then-lock sequences must serialize
// externally (the Provider holds its build lock around them).
type Cache struct {
	mu  sync.Mutex
	set map[string]map[Outpoint]*UTXO // address -> outpoint -> utxo
	ttl time.Duration
}

// NewCache creates an empty cache with the given TTL (DefaultTTL if zero).
func NewCache(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{set: make(map[string]map[Outpoint]*UTXO), ttl: ttl}
}

// Update replaces addr's entries with utxos. An entry present in utxos keeps
// the lock it already held; a locked entry missing from utxos is dropped.
func (c *Cache) Update(ctx context.Context, addr string, utxos []*UTXO, tipHeight uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()

	existing := c.set[addr]
	fresh := make(map[Outpoint]*UTXO, len(utxos))
	for _, u := range utxos {
		if existing != nil {
			if old, ok := existing[u.Outpoint]; ok && old.LockedBy != "" {
				u.LockedBy = old.LockedBy
			}
		}
		u.CachedAt = time.Now()
		fresh[u.Outpoint] = u
	}
	c.set[addr] = fresh
}

// Add inserts or replaces a single UTXO, preserving any existing lock.
func (c *Cache) Add(addr string, u *UTXO) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.set[addr] == nil {
		c.set[addr] = make(map[Outpoint]*UTXO)
	}
	if old, ok := c.set[addr][u.Outpoint]; ok && old.LockedBy != "" {
		u.LockedBy = old.LockedBy
	}
	u.CachedAt = time.Now()
	c.set[addr][u.Outpoint] = u
}

// Remove deletes a UTXO, used once it is observed spent.
func (c *Cache) Remove(addr string, op Outpoint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.set[addr], op)
}

// Lock atomically marks every outpoint as reserved for buildID, failing
// all-or-nothing if any is already locked or missing.
func (c *Cache) Lock(addr string, ops []Outpoint, buildID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	bucket := c.set[addr]
	for _, op := range ops {
		u, ok := bucket[op]
		if !ok || (u.LockedBy != "" && u.LockedBy != buildID) {
			return zcash.ErrUtxoSourceUnavailable
		}
	}
	for _, op := range ops {
		bucket[op].LockedBy = buildID
	}
	return nil
}

// Unlock releases every UTXO held by buildID across every address, used on
// build completion, error, or cancellation.
func (c *Cache) Unlock(buildID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, bucket := range c.set {
		for _, u := range bucket {
			if u.LockedBy == buildID {
				u.LockedBy = ""
			}
		}
	}
}

// Spendable returns every non-locked, non-expired UTXO for addr with at
// least minConf confirmations at tipHeight.
func (c *Cache) Spendable(addr string, tipHeight uint32, minConf uint32) []*UTXO {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	var out []*UTXO
	for _, u := range c.set[addr] {
		if u.LockedBy != "" {
			continue
		}
		if now.Sub(u.CachedAt) > c.ttl {
			continue
		}
		confAtTip := tipHeight - u.BlockHeight + 1
		if u.BlockHeight == 0 || tipHeight < u.BlockHeight {
			confAtTip = 0
		}
		if confAtTip < minConf {
			continue
		}
		out = append(out, u)
	}
	return out
}

// Balance returns the confirmed/unconfirmed/total split for addr.
func (c *Cache) Balance(addr string, tipHeight uint32, minConf uint32) zcash.Balance {
	c.mu.Lock()
	defer c.mu.Unlock()

	var bal zcash.Balance
	for _, u := range c.set[addr] {
		confAtTip := tipHeight - u.BlockHeight + 1
		if u.BlockHeight == 0 || tipHeight < u.BlockHeight {
			confAtTip = 0
		}
		bal.Total += u.Value
		if confAtTip >= minConf {
			bal.Confirmed += u.Value
		} else {
			bal.Unconfirmed += u.Value
		}
	}
	return bal
}

// Select applies policy to spendable and greedily accumulates UTXOs until
// their total covers target, returning ErrInsufficientFunds if the full
// spendable set is not enough.
func Select(spendable []*UTXO, target zcash.Zatoshi, policy SelectionPolicy) ([]*UTXO, zcash.Zatoshi, error) {
	ordered := make([]*UTXO, len(spendable))
	copy(ordered, spendable)

	switch policy {
	case LargestFirst:
		sort.Slice(ordered, func(i, j int) bool { return ordered[i].Value > ordered[j].Value })
	case SmallestFirst:
		sort.Slice(ordered, func(i, j int) bool { return ordered[i].Value < ordered[j].Value })
	case OldestFirst:
		sort.Slice(ordered, func(i, j int) bool { return ordered[i].CachedAt.Before(ordered[j].CachedAt) })
	case NewestFirst:
		sort.Slice(ordered, func(i, j int) bool { return ordered[i].CachedAt.After(ordered[j].CachedAt) })
	case RandomOrder:
		// Deterministic builds matter more than true randomness here; a
		// fixed shuffle seed would still need external entropy to matter,
		// so RandomOrder is implemented as input order.
	}

	var total zcash.Zatoshi
	var chosen []*UTXO
	for _, u := range ordered {
		chosen = append(chosen, u)
		total += u.Value
		if total >= target {
			return chosen, total, nil
		}
	}
	return nil, 0, zcash.ErrInsufficientFunds
}

// EstimateFee is the flat base + n_in·feePerIn + n_out·feePerOut model.
func EstimateFee(nIn, nOut int, base, feePerIn, feePerOut zcash.Zatoshi) zcash.Zatoshi {
	return base + zcash.Zatoshi(nIn)*feePerIn + zcash.Zatoshi(nOut)*feePerOut
}
