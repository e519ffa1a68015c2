package prover

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
)

// HTTPBackend delegates to a remote proving service: POST the inputs,
// await the proof. It is the last-preference backend, used only when
// every in-process backend is unavailable or has failed transiently.
type HTTPBackend struct {
	Endpoint string
	Client   *http.Client
}

// NewHTTPBackend builds a backend pointed at endpoint with a sane
// default client timeout; pass a *http.Client with its own timeout to
// override.
func NewHTTPBackend(endpoint string, client *http.Client) *HTTPBackend {
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}
	return &HTTPBackend{Endpoint: endpoint, Client: client}
}

func (b *HTTPBackend) Name() string { return "delegated-https" }

func (b *HTTPBackend) Available() bool { return b.Endpoint != "" }

type proveRequest struct {
	Kind   string        `json:"kind"` // "spend" | "output"
	Spend  *SpendInputs  `json:"spend,omitempty"`
	Output *OutputInputs `json:"output,omitempty"`
}

type proveResponse struct {
	Proof []byte `json:"proof"`
	Cv    []byte `json:"cv"`
	Rk    []byte `json:"rk,omitempty"`
	Cmu   []byte `json:"cmu,omitempty"`
}

func (b *HTTPBackend) ProveSpend(ctx context.Context, in SpendInputs) (SpendProof, error) {
	resp, err := b.post(ctx, proveRequest{Kind: "spend", Spend: &in})
	if err != nil {
		return SpendProof{}, err
	}
	var out SpendProof
	copy(out.Proof[:], resp.Proof)
	copy(out.Cv[:], resp.Cv)
	copy(out.Rk[:], resp.Rk)
	return out, nil
}

func (b *HTTPBackend) ProveOutput(ctx context.Context, in OutputInputs) (OutputProof, error) {
	resp, err := b.post(ctx, proveRequest{Kind: "output", Output: &in})
	if err != nil {
		return OutputProof{}, err
	}
	var out OutputProof
	copy(out.Proof[:], resp.Proof)
	copy(out.Cv[:], resp.Cv)
	copy(out.Cmu[:], resp.Cmu)
	return out, nil
}

func (b *HTTPBackend) post(ctx context.Context, reqBody proveRequest) (*proveResponse, error) {
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, ErrBackendUnavailable
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, ErrBackendUnavailable
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.Client.Do(req)
	if err != nil {
		return nil, ErrBackendUnavailable
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return nil, ErrBackendUnavailable
	}
	if resp.StatusCode != http.StatusOK {
		return nil, ErrBackendUnavailable
	}

	var out proveResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, ErrBackendUnavailable
	}
	return &out, nil
}
