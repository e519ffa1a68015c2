package rpc

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"strconv"

	"github.com/amiabix/zcash-bridge/pkg/zcash"
)

func (c *FailoverClient) GetBlockCount(ctx context.Context) (uint32, error) {
	raw, err := c.call(ctx, "getblockcount", nil)
	if err != nil {
		return 0, err
	}
	var n uint32
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, err
	}
	return n, nil
}

func (c *FailoverClient) GetBlockHash(ctx context.Context, height uint32) (zcash.Hash32, error) {
	raw, err := c.call(ctx, "getblockhash", []interface{}{height})
	if err != nil {
		return zcash.Hash32{}, err
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return zcash.Hash32{}, err
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return zcash.Hash32{}, zcash.ErrInvalidEncoding
	}
	return zcash.Hash32FromBytes(b), nil
}

func (c *FailoverClient) GetBlock(ctx context.Context, hash zcash.Hash32, verbosity int) (*Block, error) {
	raw, err := c.call(ctx, "getblock", []interface{}{hash.String(), verbosity})
	if err != nil {
		return nil, err
	}
	var b Block
	if err := json.Unmarshal(raw, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

func (c *FailoverClient) GetTreeState(ctx context.Context, height uint32) (*TreeState, error) {
	raw, err := c.call(ctx, "z_gettreestate", []interface{}{strconv.FormatUint(uint64(height), 10)})
	if err != nil {
		return nil, err
	}
	var ts TreeState
	if err := json.Unmarshal(raw, &ts); err != nil {
		return nil, err
	}
	return &ts, nil
}

func (c *FailoverClient) GetBalance(ctx context.Context, addr string) (zcash.Zatoshi, error) {
	raw, err := c.call(ctx, "getreceivedbyaddress", []interface{}{addr})
	if err != nil {
		return 0, err
	}
	return decodeZecAmount(raw)
}

func (c *FailoverClient) ZGetBalance(ctx context.Context, addr string, minConf uint32) (zcash.Zatoshi, error) {
	raw, err := c.call(ctx, "z_getbalance", []interface{}{addr, minConf})
	if err != nil {
		return 0, err
	}
	return decodeZecAmount(raw)
}

func (c *FailoverClient) ListUnspent(ctx context.Context, minConf, maxConf uint32, addrs []string) ([]UTXOEntry, error) {
	params := []interface{}{minConf, maxConf}
	if len(addrs) > 0 {
		params = append(params, addrs)
	}
	raw, err := c.call(ctx, "listunspent", params)
	if err != nil {
		return nil, zcash.ErrUtxoSourceUnavailable
	}
	var out []UTXOEntry
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *FailoverClient) SendRawTransaction(ctx context.Context, rawHex string) (string, error) {
	raw, err := c.call(ctx, "sendrawtransaction", []interface{}{rawHex})
	if err != nil {
		return "", err
	}
	var txid string
	if err := json.Unmarshal(raw, &txid); err != nil {
		return "", err
	}
	return txid, nil
}

func (c *FailoverClient) GetRawTransaction(ctx context.Context, txid string, verbose bool) (*TxInfo, error) {
	verbosity := 0
	if verbose {
		verbosity = 1
	}
	raw, err := c.call(ctx, "getrawtransaction", []interface{}{txid, verbosity})
	if err != nil {
		return nil, err
	}
	if !verbose {
		var hexStr string
		if err := json.Unmarshal(raw, &hexStr); err != nil {
			return nil, err
		}
		return &TxInfo{TxID: txid, Hex: hexStr}, nil
	}
	var info TxInfo
	if err := json.Unmarshal(raw, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

func (c *FailoverClient) EstimateFee(ctx context.Context, blocks int) (float64, error) {
	raw, err := c.call(ctx, "estimatefee", []interface{}{blocks})
	if err != nil {
		return 0, err
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return 0, err
	}
	return f, nil
}

func (c *FailoverClient) GetBlockchainInfo(ctx context.Context) (*BlockchainInfo, error) {
	raw, err := c.call(ctx, "getblockchaininfo", nil)
	if err != nil {
		return nil, err
	}
	var info BlockchainInfo
	if err := json.Unmarshal(raw, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// decodeZecAmount converts a zcashd JSON-RPC ZEC-denominated float reply
// into integer zatoshi.
func decodeZecAmount(raw []byte) (zcash.Zatoshi, error) {
	var zec float64
	if err := json.Unmarshal(raw, &zec); err != nil {
		return 0, err
	}
	return zcash.Zatoshi(zec * 1e8), nil
}

var _ Client = (*FailoverClient)(nil)
