package recovery

import (
	"context"
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/hashicorp/go-hclog"

	"github.com/dan/utxo-wallet-core/corectx"
	"github.com/dan/utxo-wallet-core/explorer"
	"github.com/dan/utxo-wallet-core/keychain"
	"github.com/dan/utxo-wallet-core/multisig"
	"github.com/dan/utxo-wallet-core/network"
)

// scannedUnspent is one funded output found while scanning, paired with
// the address it was found on so the signer can rederive its scripts.
type scannedUnspent struct {
	address     multisig.Address
	txHash      chainhash.Hash
	outputIndex uint32
	value       int64
}

// scanForFunds walks every non-ignored address type's two chains from
// index 0, stopping each chain after a dry streak of scanDepth, and
// returns every funded output found plus the total value pooled (spec
// §4.8 steps 1-2).
func scanForFunds(
	ctx context.Context,
	reqID corectx.ReqID,
	logger hclog.Logger,
	profile network.Profile,
	explorerSvc explorer.Explorer,
	keys keychain.Triple,
	threshold int,
	forceAltScript bool,
	ignored []network.AddressType,
	scanDepth int,
) ([]scannedUnspent, int64, error) {
	ignoredSet := make(map[network.AddressType]bool, len(ignored))
	for _, t := range ignored {
		ignoredSet[t] = true
	}

	var pool []scannedUnspent
	var total int64

	for _, addrType := range network.AllAddressTypes() {
		if ignoredSet[addrType] {
			continue
		}

		mainChain, err := addrType.MainChain()
		if err != nil {
			return nil, 0, err
		}
		changeChain, err := addrType.ChangeChain()
		if err != nil {
			return nil, 0, err
		}

		for _, chain := range []uint32{mainChain, changeChain} {
			found, foundTotal, err := scanChain(ctx, reqID, logger, profile, explorerSvc, keys, chain, threshold, forceAltScript, scanDepth)
			if err != nil {
				return nil, 0, err
			}
			pool = append(pool, found...)
			total += foundTotal
		}
	}

	return pool, total, nil
}

// scanChain walks one chain's indices starting at 0 until scanDepth
// consecutive never-used addresses are seen.
func scanChain(
	ctx context.Context,
	reqID corectx.ReqID,
	logger hclog.Logger,
	profile network.Profile,
	explorerSvc explorer.Explorer,
	keys keychain.Triple,
	chain uint32,
	threshold int,
	forceAltScript bool,
	scanDepth int,
) ([]scannedUnspent, int64, error) {
	if err := corectx.RequireNetworking(ctx); err != nil {
		return nil, 0, err
	}

	var found []scannedUnspent
	var total int64
	streak := 0

	for index := uint32(0); streak < scanDepth; index++ {
		addr, err := multisig.Derive(profile, keys, chain, index, threshold, forceAltScript)
		if err != nil {
			return nil, 0, fmt.Errorf("recovery: deriving chain %d index %d: %w", chain, index, err)
		}

		info, err := explorerSvc.AddressInfo(ctx, reqID, addr.Address)
		if err != nil {
			if logger != nil {
				logger.Warn("recovery: address-info query failed, treating as unused", "address", addr.Address, "error", err)
			}
			streak++
			continue
		}

		if info.TxCount == 0 {
			streak++
			continue
		}
		streak = 0

		if info.TotalBalance <= 0 {
			continue
		}

		unspents, err := explorerSvc.AddressUnspents(ctx, reqID, addr.Address)
		if err != nil {
			return nil, 0, fmt.Errorf("recovery: listing unspents for %s: %w", addr.Address, err)
		}

		for _, u := range unspents {
			hash, err := chainhash.NewHashFromStr(u.TxID)
			if err != nil {
				return nil, 0, fmt.Errorf("recovery: parsing txid %s: %w", u.TxID, err)
			}
			found = append(found, scannedUnspent{address: addr, txHash: *hash, outputIndex: u.OutputIndex, value: u.Value})
			total += u.Value
		}
	}

	return found, total, nil
}
