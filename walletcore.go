// Package walletcore wires the network profile and every collaborator
// package — prebuild, signer, recovery, krs, explorer — behind a single
// entry point, the way the teacher's btcBackend bundles its Electrum
// client and cache behind one lock (spec §1 scope: this is the library
// surface a platform's own request handling calls into).
package walletcore

import (
	"context"
	"fmt"
	"sync"

	"github.com/btcsuite/btcd/wire"
	"github.com/hashicorp/go-hclog"

	"github.com/dan/utxo-wallet-core/corectx"
	"github.com/dan/utxo-wallet-core/explorer"
	"github.com/dan/utxo-wallet-core/keychain"
	"github.com/dan/utxo-wallet-core/krs"
	"github.com/dan/utxo-wallet-core/network"
	"github.com/dan/utxo-wallet-core/prebuild"
	"github.com/dan/utxo-wallet-core/recovery"
	"github.com/dan/utxo-wallet-core/signer"
)

// Config is everything a Core needs to build its lazily-connected
// collaborators.
type Config struct {
	Profile network.Profile

	// ExplorerBaseURL pins the block-explorer/price-feed REST host. Left
	// empty, the explorer client falls back to a random default server
	// for Profile.Name, the same pool-selection behavior the teacher's
	// getClient uses for its Electrum server pool.
	ExplorerBaseURL string

	// PriceFeedBaseURL pins the market-price REST host. Defaults to
	// ExplorerBaseURL if empty, since the reference deployment serves
	// both from the same explorer host.
	PriceFeedBaseURL string

	// Directory resolves a KRS provider ID into its published terms for
	// Recover. Nil is valid as long as callers only ever request
	// full-sweep or unsigned-sweep recovery.
	Directory krs.Directory

	Logger hclog.Logger
}

// Core bundles one network's collaborators behind a lock, lazily
// connecting the explorer/price-feed clients on first use and
// invalidating them on Reset — the same lazy-connect-with-reset shape
// the teacher's btcBackend uses for its Electrum client (spec §1).
type Core struct {
	config Config

	lock        sync.RWMutex
	explorerSvc *explorer.RESTClient
	priceFeed   *explorer.HTTPPriceFeed
}

// New builds a Core. Collaborator clients are not connected until first
// used.
func New(cfg Config) *Core {
	return &Core{config: cfg}
}

// getExplorer returns the cached explorer client, building one on first
// use.
func (c *Core) getExplorer() (*explorer.RESTClient, error) {
	c.lock.RLock()
	if c.explorerSvc != nil {
		defer c.lock.RUnlock()
		return c.explorerSvc, nil
	}
	c.lock.RUnlock()

	c.lock.Lock()
	defer c.lock.Unlock()

	if c.explorerSvc != nil {
		return c.explorerSvc, nil
	}

	client, err := explorer.NewRESTClient(c.config.Profile.Name, c.config.ExplorerBaseURL, c.config.Logger)
	if err != nil {
		return nil, fmt.Errorf("walletcore: building explorer client: %w", err)
	}
	c.explorerSvc = client
	return c.explorerSvc, nil
}

// getPriceFeed returns the cached price-feed client, building one on
// first use.
func (c *Core) getPriceFeed() (*explorer.HTTPPriceFeed, error) {
	c.lock.RLock()
	if c.priceFeed != nil {
		defer c.lock.RUnlock()
		return c.priceFeed, nil
	}
	c.lock.RUnlock()

	c.lock.Lock()
	defer c.lock.Unlock()

	if c.priceFeed != nil {
		return c.priceFeed, nil
	}

	baseURL := c.config.PriceFeedBaseURL
	if baseURL == "" {
		baseURL = c.config.ExplorerBaseURL
	}
	if baseURL == "" {
		explorerSvc, err := c.getExplorerLocked()
		if err != nil {
			return nil, err
		}
		baseURL = explorerSvc.BaseURL
	}

	c.priceFeed = explorer.NewHTTPPriceFeed(baseURL)
	return c.priceFeed, nil
}

// getExplorerLocked builds the explorer client without re-acquiring the
// lock, for callers that already hold it (getPriceFeed's fallback path).
func (c *Core) getExplorerLocked() (*explorer.RESTClient, error) {
	if c.explorerSvc != nil {
		return c.explorerSvc, nil
	}
	client, err := explorer.NewRESTClient(c.config.Profile.Name, c.config.ExplorerBaseURL, c.config.Logger)
	if err != nil {
		return nil, fmt.Errorf("walletcore: building explorer client: %w", err)
	}
	c.explorerSvc = client
	return c.explorerSvc, nil
}

// Reset drops the cached explorer/price-feed clients, forcing the next
// call to reconnect — analogous to the teacher's invalidate-on-config-
// change path (backend.go's reset()).
func (c *Core) Reset() {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.explorerSvc = nil
	c.priceFeed = nil
}

// VerifyPrebuild runs spec §4.3 then §4.4 against a server-proposed
// transaction: parse its outputs against user intent, then verify
// keychain provenance, the paygo cap, and that it doesn't overspend its
// inputs. walletService may be nil if the caller supplies keychains and
// address details directly via verification/txInfo.
func (c *Core) VerifyPrebuild(
	ctx context.Context,
	params prebuild.TxParams,
	txPrebuild prebuild.TxPrebuild,
	wallet prebuild.Wallet,
	keychainIDs prebuild.KeychainIDs,
	verification prebuild.Verification,
	walletService explorer.WalletService,
) (prebuild.ParsedTransaction, error) {
	parsed, err := prebuild.Parse(ctx, c.config.Profile, params, txPrebuild, wallet, keychainIDs, verification, walletService)
	if err != nil {
		return prebuild.ParsedTransaction{}, err
	}

	explorerSvc, err := c.getExplorer()
	if err != nil {
		return prebuild.ParsedTransaction{}, err
	}
	// The explorer client outlives this call; purge its tx cache so no
	// lookup from an earlier verification is reused.
	explorerSvc.ResetCache()

	if err := prebuild.Verify(ctx, c.config.Logger, txPrebuild.TxInfo, parsed, explorerSvc); err != nil {
		return prebuild.ParsedTransaction{}, err
	}
	return parsed, nil
}

// Sign places every held key's signature on tx's inputs and verifies the
// result, per spec §4.7. It never contacts the network: both keys and
// unspent scripts must already be resolved by the caller.
func (c *Core) Sign(tx *wire.MsgTx, unspents []signer.Unspent, keys []keychain.Keychain) error {
	return signer.Sign(c.config.Profile, tx, unspents, keys)
}

// Recover runs spec §4.8: scan every address this wallet could have
// used, build a sweep transaction, and either cosign it (full sweep),
// half-sign it plus a KRS fee output (KRS mode), or hand back an
// unsigned offline-vault export (unsigned sweep) — determined entirely
// by which of params.Keys carries a private key.
func (c *Core) Recover(ctx context.Context, params recovery.Params) (recovery.Result, error) {
	explorerSvc, err := c.getExplorer()
	if err != nil {
		return recovery.Result{}, err
	}

	priceFeed, err := c.getPriceFeed()
	if err != nil {
		return recovery.Result{}, err
	}

	return recovery.Recover(ctx, c.config.Logger, c.config.Profile, explorerSvc, priceFeed, params)
}

// ErrNoDirectoryConfigured is returned by ResolveKRSProvider when Config
// never set a Directory.
var ErrNoDirectoryConfigured = fmt.Errorf("walletcore: no KRS directory configured")

// ResolveKRSProvider looks up a provider's published terms from the
// configured directory and adapts them into the shape Recover's Params
// expects.
func (c *Core) ResolveKRSProvider(ctx context.Context, providerID string) (*recovery.KRSProviderConfig, error) {
	if c.config.Directory == nil {
		return nil, ErrNoDirectoryConfigured
	}

	reqID := corectx.ReqIDFromContext(ctx)
	record, err := c.config.Directory.Lookup(ctx, reqID, providerID)
	if err != nil {
		return nil, err
	}

	return &recovery.KRSProviderConfig{
		ProviderID: record.ID,
		FeeAddress: record.FeeAddress,
		FeeSpec:    record.FeeSpec,
	}, nil
}
