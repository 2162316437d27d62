package krs

import (
	"context"
	"errors"
	"testing"

	"github.com/dan/utxo-wallet-core/corectx"
)

func TestInMemoryDirectoryLookup(t *testing.T) {
	dir := NewInMemoryDirectory(ProviderRecord{
		ID:         "krs-1",
		FeeAddress: "3FeeAddr",
		FeeSpec:    FeeSpec{Type: FeeTypeFlatUSD, AmtUSD: 5},
	})

	record, err := dir.Lookup(context.Background(), corectx.NewReqID(), "krs-1")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if record.FeeAddress != "3FeeAddr" || record.FeeSpec.AmtUSD != 5 {
		t.Errorf("unexpected record: %+v", record)
	}
}

func TestInMemoryDirectoryLookupNotFound(t *testing.T) {
	dir := NewInMemoryDirectory()

	_, err := dir.Lookup(context.Background(), corectx.NewReqID(), "missing")
	if !errors.Is(err, ErrProviderNotFound) {
		t.Fatalf("expected ErrProviderNotFound, got %v", err)
	}
}
