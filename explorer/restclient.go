package explorer

import (
	"context"
	cryptorand "crypto/rand"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"

	lru "github.com/hashicorp/golang-lru"
	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-retryablehttp"

	"github.com/dan/utxo-wallet-core/corectx"
)

// DefaultServers mirrors the random-server-pool pattern the wallet
// collaborators use for picking among several public explorer
// deployments when the caller hasn't pinned one explicitly.
var DefaultServers = map[string][]string{
	"btc":  {"https://blockstream.info/api", "https://mempool.space/api"},
	"tbtc": {"https://blockstream.info/testnet/api", "https://mempool.space/testnet/api"},
}

// randomServer picks a server from the named coin's default pool using
// crypto/rand, same selection method as the wallet collaborator's
// Electrum server pool.
func randomServer(coin string) (string, error) {
	servers := DefaultServers[coin]
	if len(servers) == 0 {
		return "", fmt.Errorf("explorer: no default servers for coin %q", coin)
	}
	n, err := cryptorand.Int(cryptorand.Reader, big.NewInt(int64(len(servers))))
	if err != nil {
		return servers[0], nil
	}
	return servers[n.Int64()], nil
}

// RESTClient is a reference Explorer implementation over a generic
// block-explorer-style REST API (spec §6: GET /public/block/latest,
// GET /public/tx/{txid}, plus per-coin address endpoints).
type RESTClient struct {
	BaseURL string
	http    *retryablehttp.Client

	// cache holds this call's resolved tx-by-id responses, keyed by
	// txid. It is created per RESTClient instance and is never shared
	// or retained across verification calls (spec §5 "shared state"
	// rule) — callers construct a fresh RESTClient per call, or call
	// ResetCache between calls if they reuse one.
	cache *lru.Cache
}

// NewRESTClient builds a client against baseURL, or a randomly chosen
// default server for coin if baseURL is empty.
func NewRESTClient(coin, baseURL string, logger hclog.Logger) (*RESTClient, error) {
	if baseURL == "" {
		var err error
		baseURL, err = randomServer(coin)
		if err != nil {
			return nil, err
		}
	}

	cache, err := lru.New(256)
	if err != nil {
		return nil, fmt.Errorf("explorer: building tx cache: %w", err)
	}

	httpClient := retryablehttp.NewClient()
	httpClient.RetryMax = 3
	if logger != nil {
		httpClient.Logger = logger
	} else {
		httpClient.Logger = nil
	}

	return &RESTClient{BaseURL: baseURL, http: httpClient, cache: cache}, nil
}

// ResetCache clears the per-call tx cache. Callers that reuse one
// RESTClient across multiple verification calls must call this between
// calls to uphold the "cache lives for one call only" rule (spec §5).
func (c *RESTClient) ResetCache() {
	c.cache.Purge()
}

func (c *RESTClient) get(ctx context.Context, reqID corectx.ReqID, path string, out interface{}) error {
	if err := corectx.RequireNetworking(ctx); err != nil {
		return err
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return fmt.Errorf("explorer: building request: %w", err)
	}
	req.Header.Set("X-Request-Id", string(reqID))

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrExplorerUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return errNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrExplorerUnavailable, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("explorer: reading response: %w", err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("explorer: decoding response: %w", err)
	}
	return nil
}

// ErrExplorerUnavailable wraps any transport-level failure the retry
// policy gave up on (spec §7 ExplorerUnavailable).
var ErrExplorerUnavailable = fmt.Errorf("explorer unavailable")

var errNotFound = fmt.Errorf("explorer: resource not found")

func (c *RESTClient) LatestBlockHeight(ctx context.Context, reqID corectx.ReqID) (int64, error) {
	var out struct {
		Height int64 `json:"height"`
	}
	if err := c.get(ctx, reqID, "/public/block/latest", &out); err != nil {
		return 0, err
	}
	return out.Height, nil
}

func (c *RESTClient) TxByID(ctx context.Context, reqID corectx.ReqID, txid string) ([]TxOutput, error) {
	if cached, ok := c.cache.Get(txid); ok {
		return cached.([]TxOutput), nil
	}

	var out struct {
		Outputs []TxOutput `json:"outputs"`
	}
	if err := c.get(ctx, reqID, "/public/tx/"+txid, &out); err != nil {
		return nil, err
	}

	c.cache.Add(txid, out.Outputs)
	return out.Outputs, nil
}

func (c *RESTClient) AddressInfo(ctx context.Context, reqID corectx.ReqID, address string) (AddressInfo, error) {
	var out struct {
		TxCount      int   `json:"txCount"`
		TotalBalance int64 `json:"totalBalance"`
	}
	if err := c.get(ctx, reqID, "/public/address/"+address, &out); err != nil {
		if err == errNotFound {
			return AddressInfo{}, &ErrWalletAddressNotFound{Address: address}
		}
		return AddressInfo{}, err
	}
	return AddressInfo{TxCount: out.TxCount, TotalBalance: out.TotalBalance}, nil
}

func (c *RESTClient) AddressUnspents(ctx context.Context, reqID corectx.ReqID, address string) ([]ExplorerUnspent, error) {
	var out []struct {
		TxID  string `json:"txid"`
		Vout  uint32 `json:"vout"`
		Value int64  `json:"value"`
	}
	if err := c.get(ctx, reqID, "/public/address/"+address+"/unspents", &out); err != nil {
		return nil, err
	}

	unspents := make([]ExplorerUnspent, len(out))
	for i, u := range out {
		unspents[i] = ExplorerUnspent{TxID: u.TxID, OutputIndex: u.Vout, Value: u.Value}
	}
	return unspents, nil
}
