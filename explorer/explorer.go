// Package explorer defines the narrow collaborator interfaces this core
// consumes for wallet/keychain lookups, block-explorer queries, and KRS
// market pricing (spec §6), plus reference REST implementations. The
// core depends only on these interfaces; the concrete transport, auth,
// and provider directory are external collaborator concerns (spec §1).
package explorer

import (
	"context"

	"github.com/dan/utxo-wallet-core/corectx"
	"github.com/dan/utxo-wallet-core/keychain"
)

// AddressRecord is what the wallet service and the explorer agree an
// address looks like: enough to rebuild its scripts without re-deriving
// it (spec §3 Address record / coinSpecific).
type AddressRecord struct {
	Address       string
	Chain         uint32
	Index         uint32
	RedeemScript  []byte
	WitnessScript []byte
	OutputScript  []byte
}

// ErrWalletAddressNotFound is the structured variant of the source's
// string-matched "wallet address not found" 404 (spec §9 design note).
type ErrWalletAddressNotFound struct {
	Address string
}

func (e *ErrWalletAddressNotFound) Error() string {
	return "wallet address not found: " + e.Address
}

// WalletService is the high-level wallet/keychain service client (spec
// §6 "Wallet service API consumed"). An external collaborator owns auth,
// routing, and persistence; this core only calls it.
type WalletService interface {
	// GetKeychain fetches a keychain by its opaque ID.
	GetKeychain(ctx context.Context, reqID corectx.ReqID, id string) (keychain.Keychain, error)
	// GetAddress fetches the wallet's own record for an address. Returns
	// *ErrWalletAddressNotFound if the wallet does not recognize it.
	GetAddress(ctx context.Context, reqID corectx.ReqID, address string) (AddressRecord, error)
}

// TxOutput is one output of a previously broadcast transaction, as
// returned by the explorer's tx-by-id endpoint (spec §6).
type TxOutput struct {
	Address string
	Value   int64
}

// AddressInfo is the summary the recovery scanner needs per address
// (spec §4.8 step 2): whether it has ever been used, and its current
// total balance.
type AddressInfo struct {
	TxCount      int
	TotalBalance int64
}

// ExplorerUnspent is one unspent output the recovery scanner can spend.
type ExplorerUnspent struct {
	TxID        string
	OutputIndex uint32
	Value       int64
}

// Explorer is the block-explorer API consumed for fee validation and
// cold-recovery scanning (spec §6).
type Explorer interface {
	LatestBlockHeight(ctx context.Context, reqID corectx.ReqID) (int64, error)
	TxByID(ctx context.Context, reqID corectx.ReqID, txid string) ([]TxOutput, error)
	AddressInfo(ctx context.Context, reqID corectx.ReqID, address string) (AddressInfo, error)
	AddressUnspents(ctx context.Context, reqID corectx.ReqID, address string) ([]ExplorerUnspent, error)
}

// PriceFeed is the market-price source KRS flat-USD fee calculation
// consumes (spec §4.9).
type PriceFeed interface {
	MarketPriceUSD(ctx context.Context, reqID corectx.ReqID, coin string) (float64, error)
}
