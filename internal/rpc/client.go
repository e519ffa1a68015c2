// Package rpc implements the network collaborator: the set of idempotent,
// retriable operations the core needs from a Zcash full node or
// lightwalletd instance, plus a priority-ordered failover client with
// exponential backoff and per-endpoint health tracking.
//
// The client is built on net/http and encoding/json directly: the
// JSON-RPC surface consumed here is a handful of flat request/reply
// shapes, and zcashd's 1.0-dialect basic-auth POST needs nothing a
// dedicated RPC client package would add.
package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/amiabix/zcash-bridge/pkg/zcash"
)

// Block is the subset of a zcashd/lightwalletd block reply this module
// consumes.
type Block struct {
	Hash          string   `json:"hash"`
	Height        uint32   `json:"height"`
	Size          uint32   `json:"size"`
	Confirmations int      `json:"confirmations"`
	Tx            []string `json:"tx"`
	Time          int64    `json:"time"`
}

// TreeState is a lightwalletd z_gettreestate reply, the preferred anchor
// source.
type TreeState struct {
	Height  uint32 `json:"height"`
	Hash    string `json:"hash"`
	Sapling struct {
		Commitments struct {
			FinalState string `json:"finalState"`
		} `json:"commitments"`
	} `json:"sapling"`
}

// UTXOEntry is one listunspent reply element.
type UTXOEntry struct {
	TxID          string  `json:"txid"`
	Vout          uint32  `json:"vout"`
	Address       string  `json:"address"`
	ScriptPubKey  string  `json:"scriptPubKey"`
	Amount        float64 `json:"amount"`
	Confirmations uint32  `json:"confirmations"`
}

// TxInfo is a getrawtransaction verbose reply.
type TxInfo struct {
	TxID          string `json:"txid"`
	Hex           string `json:"hex"`
	Confirmations int    `json:"confirmations"`
	BlockHash     string `json:"blockhash"`
}

// BlockchainInfo is a getblockchaininfo reply.
type BlockchainInfo struct {
	Blocks               uint32  `json:"blocks"`
	Headers              uint32  `json:"headers"`
	InitialBlockDownload bool    `json:"initialblockdownload"`
	VerificationProgress float64 `json:"verificationprogress"`
}

// Client is the network-collaborator contract the Provider consumes.
type Client interface {
	GetBlockCount(ctx context.Context) (uint32, error)
	GetBlockHash(ctx context.Context, height uint32) (zcash.Hash32, error)
	GetBlock(ctx context.Context, hash zcash.Hash32, verbosity int) (*Block, error)
	GetTreeState(ctx context.Context, height uint32) (*TreeState, error)
	GetBalance(ctx context.Context, addr string) (zcash.Zatoshi, error)
	ZGetBalance(ctx context.Context, addr string, minConf uint32) (zcash.Zatoshi, error)
	ListUnspent(ctx context.Context, minConf, maxConf uint32, addrs []string) ([]UTXOEntry, error)
	SendRawTransaction(ctx context.Context, rawHex string) (string, error)
	GetRawTransaction(ctx context.Context, txid string, verbose bool) (*TxInfo, error)
	EstimateFee(ctx context.Context, blocks int) (float64, error)
	GetBlockchainInfo(ctx context.Context) (*BlockchainInfo, error)
}

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      int           `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Endpoint is one JSON-RPC node in a priority-ordered failover list.
type Endpoint struct {
	URL      string
	User     string
	Password string
}

// endpointHealth tracks one endpoint's liveness.
type endpointHealth struct {
	consecutiveFails int
	lastFailure      time.Time
}

// FailoverClient implements Client over a priority-ordered list of JSON-RPC
// endpoints: it tries each in order, applying exponential backoff to
// endpoints with recent consecutive failures, and surfaces
// ErrEndpointUnhealthy only once every endpoint has been tried.
type FailoverClient struct {
	endpoints []Endpoint
	http      *http.Client

	mu     sync.Mutex
	health map[string]*endpointHealth
}

// NewFailoverClient builds a client over endpoints, tried in the given
// priority order.
func NewFailoverClient(endpoints []Endpoint, httpClient *http.Client) *FailoverClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &FailoverClient{
		endpoints: endpoints,
		http:      httpClient,
		health:    make(map[string]*endpointHealth),
	}
}

// backoffFor returns how long to wait before retrying an endpoint with n
// consecutive failures: 0, 1s, 2s, 4s, ... capped at 30s.
func backoffFor(n int) time.Duration {
	if n <= 0 {
		return 0
	}
	d := time.Second
	for i := 1; i < n && d < 30*time.Second; i++ {
		d *= 2
	}
	if d > 30*time.Second {
		d = 30 * time.Second
	}
	return d
}

func (c *FailoverClient) call(ctx context.Context, method string, params []interface{}) (json.RawMessage, error) {
	var lastErr error
	for _, ep := range c.endpoints {
		c.mu.Lock()
		h, ok := c.health[ep.URL]
		c.mu.Unlock()
		if ok && h.consecutiveFails > 0 {
			wait := backoffFor(h.consecutiveFails) - time.Since(h.lastFailure)
			if wait > 0 {
				select {
				case <-ctx.Done():
					return nil, ctx.Err()
				case <-time.After(wait):
				}
			}
		}

		result, err := c.callOne(ctx, ep, method, params)
		if err != nil {
			// A node-level rejection is terminal: the endpoint is healthy
			// and answered, the request itself was refused. Retrying it on
			// another endpoint cannot change the answer.
			var rejected *zcash.RpcRejectedError
			if errors.As(err, &rejected) {
				c.recordSuccess(ep.URL)
				return nil, err
			}
			lastErr = err
			c.recordFailure(ep.URL)
			continue
		}
		c.recordSuccess(ep.URL)
		return result, nil
	}
	if lastErr != nil {
		return nil, fmt.Errorf("%w: %v", zcash.ErrEndpointUnhealthy, lastErr)
	}
	return nil, zcash.ErrEndpointUnhealthy
}

func (c *FailoverClient) callOne(ctx context.Context, ep Endpoint, method string, params []interface{}) (json.RawMessage, error) {
	if len(params) == 0 {
		params = []interface{}{}
	}
	reqBody, err := json.Marshal(rpcRequest{JSONRPC: "1.0", ID: 1, Method: method, Params: params})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ep.URL, bytes.NewReader(reqBody))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if ep.User != "" {
		req.SetBasicAuth(ep.User, ep.Password)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, zcash.ErrRateLimited
	}
	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("endpoint returned status %d", resp.StatusCode)
	}

	var out rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	if out.Error != nil {
		return nil, &zcash.RpcRejectedError{Code: out.Error.Code, Message: out.Error.Message}
	}
	return out.Result, nil
}

func (c *FailoverClient) recordFailure(url string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	h, ok := c.health[url]
	if !ok {
		h = &endpointHealth{}
		c.health[url] = h
	}
	h.consecutiveFails++
	h.lastFailure = time.Now()
}

func (c *FailoverClient) recordSuccess(url string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.health, url)
}
