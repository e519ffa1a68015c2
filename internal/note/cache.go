package note

import (
	"sort"
	"sync"

	"github.com/amiabix/zcash-bridge/pkg/zcash"
)

// SaplingNote is a single decrypted shielded coin record. It is never
// deleted once discovered, only marked spent.
type SaplingNote struct {
	Value        zcash.Zatoshi
	Diversifier  [11]byte
	Pkd          [32]byte
	Rcm          [32]byte
	Rseed        [32]byte
	Cmu          zcash.Hash32
	Witness      *MerklePath
	Nullifier    *zcash.Hash32
	Spent        bool
	Address      string
	Memo         []byte
}

// Cache is the address-keyed Sapling note set: a per-address note ledger
// with nullifier-based spent marking and witness maintenance.
type Cache struct {
	mu           sync.Mutex
	notes        map[string][]*SaplingNote // address -> notes (append-only)
	syncedHeight map[string]uint32
}

// NewCache creates an empty note cache.
func NewCache() *Cache {
	return &Cache{
		notes:        make(map[string][]*SaplingNote),
		syncedHeight: make(map[string]uint32),
	}
}

// AddNote appends a newly discovered note. Notes are never replaced or
// removed; the cache is the account's full note history.
func (c *Cache) AddNote(addr string, n *SaplingNote) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notes[addr] = append(c.notes[addr], n)
}

// MarkSpent flags the note whose nullifier matches as spent, called when
// that nullifier is observed on-chain. Returns false if no note under addr
// carries that nullifier.
func (c *Cache) MarkSpent(addr string, nullifier zcash.Hash32) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, n := range c.notes[addr] {
		if n.Nullifier != nil && *n.Nullifier == nullifier {
			n.Spent = true
			return true
		}
	}
	return false
}

// SetNullifier attaches the derived nullifier to a note once its spending
// key is available, so future MarkSpent calls can recognize it on-chain.
func (c *Cache) SetNullifier(addr string, cmu zcash.Hash32, nullifier zcash.Hash32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, n := range c.notes[addr] {
		if n.Cmu == cmu {
			nf := nullifier
			n.Nullifier = &nf
			return
		}
	}
}

// Spendable returns every note for addr that has not been marked spent.
func (c *Cache) Spendable(addr string) []*SaplingNote {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []*SaplingNote
	for _, n := range c.notes[addr] {
		if !n.Spent {
			out = append(out, n)
		}
	}
	return out
}

// Select performs largest-first selection until the accumulated value
// reaches target.
func Select(notes []*SaplingNote, target zcash.Zatoshi) ([]*SaplingNote, zcash.Zatoshi, error) {
	ordered := make([]*SaplingNote, len(notes))
	copy(ordered, notes)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Value > ordered[j].Value })

	var total zcash.Zatoshi
	var chosen []*SaplingNote
	for _, n := range ordered {
		chosen = append(chosen, n)
		total += n.Value
		if total >= target {
			return chosen, total, nil
		}
	}
	return nil, 0, zcash.ErrInsufficientShieldedFunds
}

// Balance sums addr's notes: Total counts every note, spent or not, so
// callers can distinguish "never had funds" from "spent them"; Confirmed
// counts only unspent notes. Unconfirmed is always zero.
func (c *Cache) Balance(addr string) zcash.Balance {
	c.mu.Lock()
	defer c.mu.Unlock()
	var bal zcash.Balance
	for _, n := range c.notes[addr] {
		bal.Total += n.Value
		if !n.Spent {
			bal.Confirmed += n.Value
		}
	}
	return bal
}

// SyncedHeight returns the last block height successfully scanned for addr.
func (c *Cache) SyncedHeight(addr string) uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.syncedHeight[addr]
}

// SetSyncedHeight records the new synced height for addr.
func (c *Cache) SetSyncedHeight(addr string, height uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.syncedHeight[addr] = height
}
