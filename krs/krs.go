// Package krs computes the Key Recovery Service fee a recovery
// transaction must pay the provider that countersigns it (spec §4.9).
// The provider directory itself — which KRS providers exist, their
// public keys, contact endpoints — is an external collaborator concern
// (spec §1); this package only prices the one fee structure it knows
// how to compute.
package krs

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/dan/utxo-wallet-core/corectx"
	"github.com/dan/utxo-wallet-core/explorer"
)

// FeeType is the recovery fee structure a KRS provider bills under.
// Only FeeTypeFlatUSD is implemented; every other type is a provider
// capability this core has no pricing logic for (spec §4.9).
type FeeType string

const FeeTypeFlatUSD FeeType = "flatUsd"

// satoshisPerCoin converts a USD-denominated fee into satoshis given a
// USD-per-coin market price.
const satoshisPerCoin = 100_000_000

// ErrFeeStructureNotImplemented covers any KRS fee type besides flatUsd
// (spec §7 FeeStructureNotImplemented).
var ErrFeeStructureNotImplemented = errors.New("krs: fee structure not implemented")

// FeeSpec is what a KRS provider publishes about its own fee.
type FeeSpec struct {
	Type   FeeType
	AmtUSD float64
}

// CalcFee prices feeSpec in satoshis (spec §4.9). Only FeeTypeFlatUSD is
// supported; the market price is fetched with two retries, matching the
// provider-price-feed's own, separate retry policy from the explorer
// client's transport-level retries.
func CalcFee(ctx context.Context, reqID corectx.ReqID, priceFeed explorer.PriceFeed, coin string, feeSpec FeeSpec) (int64, error) {
	if feeSpec.Type != FeeTypeFlatUSD {
		return 0, fmt.Errorf("%w: %s", ErrFeeStructureNotImplemented, feeSpec.Type)
	}

	marketPrice, err := fetchMarketPriceWithRetry(ctx, reqID, priceFeed, coin)
	if err != nil {
		return 0, err
	}
	if marketPrice <= 0 {
		return 0, fmt.Errorf("krs: non-positive market price for %s", coin)
	}

	satoshis := math.Ceil(feeSpec.AmtUSD / marketPrice * satoshisPerCoin)
	return int64(satoshis), nil
}

func fetchMarketPriceWithRetry(ctx context.Context, reqID corectx.ReqID, priceFeed explorer.PriceFeed, coin string) (float64, error) {
	var price float64

	operation := func() error {
		p, err := priceFeed.MarketPriceUSD(ctx, reqID, coin)
		if err != nil {
			return err
		}
		price = p
		return nil
	}

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = retryDelayFloor
	policy := backoff.WithMaxRetries(exp, 2)
	if err := backoff.Retry(operation, backoff.WithContext(policy, ctx)); err != nil {
		return 0, fmt.Errorf("krs: fetching market price after retries: %w", err)
	}

	return price, nil
}

// retryDelayFloor keeps the price-feed retry policy quick: provider
// price feeds are expected to answer in well under a second, so the
// library default 500ms initial interval only slows real calls down.
const retryDelayFloor = 50 * time.Millisecond
