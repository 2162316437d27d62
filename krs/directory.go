package krs

import (
	"context"
	"errors"
	"fmt"

	"github.com/dan/utxo-wallet-core/corectx"
)

// ErrProviderNotFound is returned when a directory has no entry for the
// requested provider ID.
var ErrProviderNotFound = errors.New("krs: provider not found in directory")

// ProviderRecord is one KRS provider's published directory entry: where
// its cut gets paid and what it charges (spec §4.8 "provider in
// directory").
type ProviderRecord struct {
	ID         string
	FeeAddress string
	FeeSpec    FeeSpec
}

// Directory looks up a KRS provider's published terms by ID. The
// directory's transport, auth, and persistence are an external
// collaborator concern (spec §1); this core only ever consumes one
// resolved record at a time.
type Directory interface {
	Lookup(ctx context.Context, reqID corectx.ReqID, providerID string) (ProviderRecord, error)
}

// InMemoryDirectory is a reference Directory backed by a fixed map,
// useful for tests and for deployments that publish their KRS provider
// list out of band rather than through a live directory service.
type InMemoryDirectory struct {
	providers map[string]ProviderRecord
}

// NewInMemoryDirectory builds a directory from a fixed set of provider
// records.
func NewInMemoryDirectory(providers ...ProviderRecord) *InMemoryDirectory {
	m := make(map[string]ProviderRecord, len(providers))
	for _, p := range providers {
		m[p.ID] = p
	}
	return &InMemoryDirectory{providers: m}
}

var _ Directory = (*InMemoryDirectory)(nil)

func (d *InMemoryDirectory) Lookup(ctx context.Context, reqID corectx.ReqID, providerID string) (ProviderRecord, error) {
	p, ok := d.providers[providerID]
	if !ok {
		return ProviderRecord{}, fmt.Errorf("%w: %s", ErrProviderNotFound, providerID)
	}
	return p, nil
}
