package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/amiabix/zcash-bridge/pkg/zcash"
)

func jsonRPCServer(t *testing.T, result interface{}) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := json.Marshal(result)
		json.NewEncoder(w).Encode(rpcResponse{Result: raw})
	}))
}

func TestGetBlockCountSuccess(t *testing.T) {
	srv := jsonRPCServer(t, 1234)
	defer srv.Close()

	c := NewFailoverClient([]Endpoint{{URL: srv.URL}}, nil)
	n, err := c.GetBlockCount(context.Background())
	if err != nil {
		t.Fatalf("get block count: %v", err)
	}
	if n != 1234 {
		t.Fatalf("expected 1234, got %d", n)
	}
}

func TestFailoverFallsBackToSecondEndpoint(t *testing.T) {
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer bad.Close()

	good := jsonRPCServer(t, 42)
	defer good.Close()

	c := NewFailoverClient([]Endpoint{{URL: bad.URL}, {URL: good.URL}}, nil)
	n, err := c.GetBlockCount(context.Background())
	if err != nil {
		t.Fatalf("expected failover to the healthy endpoint, got %v", err)
	}
	if n != 42 {
		t.Fatalf("expected 42 from the good endpoint, got %d", n)
	}
}

func TestAllEndpointsDownReturnsEndpointUnhealthy(t *testing.T) {
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer bad.Close()

	c := NewFailoverClient([]Endpoint{{URL: bad.URL}}, nil)
	_, err := c.GetBlockCount(context.Background())
	if !errors.Is(err, zcash.ErrEndpointUnhealthy) {
		t.Fatalf("expected ErrEndpointUnhealthy, got %v", err)
	}
}

func TestRpcErrorSurfacesAsRejectedError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(rpcResponse{Error: &rpcError{Code: -5, Message: "no such address"}})
	}))
	defer srv.Close()

	c := NewFailoverClient([]Endpoint{{URL: srv.URL}}, nil)
	_, err := c.GetBlockCount(context.Background())
	var rejected *zcash.RpcRejectedError
	if !errors.As(err, &rejected) {
		t.Fatalf("expected a *zcash.RpcRejectedError, got %v (%T)", err, err)
	}
	if rejected.Code != -5 {
		t.Fatalf("expected code -5, got %d", rejected.Code)
	}
}

func TestRpcRejectionDoesNotFailOver(t *testing.T) {
	rejecting := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(rpcResponse{Error: &rpcError{Code: -27, Message: "transaction already in block chain"}})
	}))
	defer rejecting.Close()

	secondHit := false
	healthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		secondHit = true
		json.NewEncoder(w).Encode(rpcResponse{Result: json.RawMessage("100")})
	}))
	defer healthy.Close()

	c := NewFailoverClient([]Endpoint{{URL: rejecting.URL}, {URL: healthy.URL}}, nil)
	_, err := c.GetBlockCount(context.Background())
	var rejected *zcash.RpcRejectedError
	if !errors.As(err, &rejected) {
		t.Fatalf("expected the rejection to surface, got %v (%T)", err, err)
	}
	if secondHit {
		t.Fatal("a node-level rejection must not be retried on the next endpoint")
	}
}

func TestGetBalanceConvertsZecToZatoshi(t *testing.T) {
	srv := jsonRPCServer(t, 1.5)
	defer srv.Close()

	c := NewFailoverClient([]Endpoint{{URL: srv.URL}}, nil)
	bal, err := c.GetBalance(context.Background(), "t1Something")
	if err != nil {
		t.Fatalf("get balance: %v", err)
	}
	if bal != 150000000 {
		t.Fatalf("expected 150000000 zatoshi for 1.5 ZEC, got %d", bal)
	}
}

func TestBackoffForGrowsExponentiallyAndCaps(t *testing.T) {
	if backoffFor(0) != 0 {
		t.Fatal("expected zero backoff for zero failures")
	}
	if backoffFor(1) <= 0 {
		t.Fatal("expected positive backoff after one failure")
	}
	if backoffFor(100) > 30_000_000_000 {
		t.Fatal("expected backoff to be capped at 30s")
	}
}
