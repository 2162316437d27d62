package krs

import (
	"context"
	"errors"
	"testing"

	"github.com/dan/utxo-wallet-core/corectx"
	"github.com/dan/utxo-wallet-core/explorer"
)

var (
	_ explorer.PriceFeed = (*stubPriceFeed)(nil)
	_ explorer.PriceFeed = (*failThenSucceedFeed)(nil)
)

type stubPriceFeed struct {
	price float64
	err   error
	calls int
}

func (s *stubPriceFeed) MarketPriceUSD(ctx context.Context, reqID corectx.ReqID, coin string) (float64, error) {
	s.calls++
	if s.err != nil {
		return 0, s.err
	}
	return s.price, nil
}

func TestCalcFeeFlatUSD(t *testing.T) {
	feed := &stubPriceFeed{price: 50000}

	sats, err := CalcFee(context.Background(), corectx.NewReqID(), feed, "btc", FeeSpec{Type: FeeTypeFlatUSD, AmtUSD: 10})
	if err != nil {
		t.Fatalf("CalcFee: %v", err)
	}

	// ceil(10 / 50000 * 1e8) = ceil(20000) = 20000
	if sats != 20000 {
		t.Errorf("expected 20000 satoshis, got %d", sats)
	}
}

func TestCalcFeeUnsupportedType(t *testing.T) {
	feed := &stubPriceFeed{price: 50000}

	_, err := CalcFee(context.Background(), corectx.NewReqID(), feed, "btc", FeeSpec{Type: "perByte", AmtUSD: 1})
	if !errors.Is(err, ErrFeeStructureNotImplemented) {
		t.Fatalf("expected ErrFeeStructureNotImplemented, got %v", err)
	}
	if feed.calls != 0 {
		t.Error("price feed should never be called for an unsupported fee type")
	}
}

func TestCalcFeeRetriesOnFailure(t *testing.T) {
	feed := &failThenSucceedFeed{failuresLeft: 1, price: 40000}

	sats, err := CalcFee(context.Background(), corectx.NewReqID(), feed, "btc", FeeSpec{Type: FeeTypeFlatUSD, AmtUSD: 4})
	if err != nil {
		t.Fatalf("CalcFee: %v", err)
	}
	if sats != 10000 {
		t.Errorf("expected 10000 satoshis, got %d", sats)
	}
	if feed.calls != 2 {
		t.Errorf("expected 2 calls (1 failure + 1 success), got %d", feed.calls)
	}
}

type failThenSucceedFeed struct {
	failuresLeft int
	price        float64
	calls        int
}

func (f *failThenSucceedFeed) MarketPriceUSD(ctx context.Context, reqID corectx.ReqID, coin string) (float64, error) {
	f.calls++
	if f.failuresLeft > 0 {
		f.failuresLeft--
		return 0, errors.New("temporary price feed error")
	}
	return f.price, nil
}

func TestCalcFeeExhaustsRetries(t *testing.T) {
	feed := &stubPriceFeed{err: errors.New("permanently down")}

	_, err := CalcFee(context.Background(), corectx.NewReqID(), feed, "btc", FeeSpec{Type: FeeTypeFlatUSD, AmtUSD: 1})
	if err == nil {
		t.Fatal("expected an error once retries are exhausted")
	}
	if feed.calls != 3 {
		t.Errorf("expected 3 calls (1 initial + 2 retries), got %d", feed.calls)
	}
}
