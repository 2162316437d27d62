package keychain

import (
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
)

// DerivationPath returns the canonical path string for documentation and
// offline-vault export (spec §6: m/0/0/chain/index).
func DerivationPath(chain, index uint32) string {
	return fmt.Sprintf("m/0/0/%d/%d", chain, index)
}

// BasePath returns the path string used while scanning (spec §4.8 step 1:
// m/0/0, derived once per key before branching into chains).
func BasePath() string {
	return "m/0/0"
}

// deriveBase walks m/0/0 from the given extended key. All leaf
// derivations in this wallet core share this two-level base.
func deriveBase(key *hdkeychain.ExtendedKey) (*hdkeychain.ExtendedKey, error) {
	first, err := key.Derive(0)
	if err != nil {
		return nil, fmt.Errorf("failed to derive m/0: %w", err)
	}
	second, err := first.Derive(0)
	if err != nil {
		return nil, fmt.Errorf("failed to derive m/0/0: %w", err)
	}
	return second, nil
}

// DeriveLeaf walks m/0/0/chain/index from the given extended key,
// returning the leaf key (still extended, so callers can get either the
// public or private key from it depending on what `key` was).
func DeriveLeaf(key *hdkeychain.ExtendedKey, chain, index uint32) (*hdkeychain.ExtendedKey, error) {
	base, err := deriveBase(key)
	if err != nil {
		return nil, err
	}
	chainKey, err := base.Derive(chain)
	if err != nil {
		return nil, fmt.Errorf("failed to derive chain %d: %w", chain, err)
	}
	leaf, err := chainKey.Derive(index)
	if err != nil {
		return nil, fmt.Errorf("failed to derive index %d: %w", index, err)
	}
	return leaf, nil
}

// DeriveLeafPublicKey derives the leaf public key for one keychain at
// (chain, index) from its extended public key (spec §4.1 step 2). Works
// whether the keychain is watch-only or holds a private key, since a
// public key can always be derived from either.
func (k Keychain) DeriveLeafPublicKey(chain, index uint32) (*btcec.PublicKey, error) {
	xpub, err := k.ExtendedPublicKey()
	if err != nil {
		return nil, fmt.Errorf("failed to parse xpub: %w", err)
	}
	leaf, err := DeriveLeaf(xpub, chain, index)
	if err != nil {
		return nil, err
	}
	return leaf.ECPubKey()
}

// DeriveLeafPrivateKey derives the leaf private key for one keychain at
// (chain, index) from its extended private key (spec §4.7 step 2).
func (k Keychain) DeriveLeafPrivateKey(chain, index uint32) (*btcec.PrivateKey, error) {
	xprv, err := k.ExtendedPrivateKey()
	if err != nil {
		return nil, err
	}
	leaf, err := DeriveLeaf(xprv, chain, index)
	if err != nil {
		return nil, err
	}
	priv, err := leaf.ECPrivKey()
	if err != nil {
		return nil, fmt.Errorf("failed to get EC private key: %w", err)
	}
	return priv, nil
}

// NeuterMatches reports whether a private extended key's neutered
// (public-only) form matches a published public extended key string
// (spec §4.4 step 1: "fail if prv is neutered or its neuter != published
// pub").
func NeuterMatches(prv *hdkeychain.ExtendedKey, pub string) (bool, error) {
	if !prv.IsPrivate() {
		return false, fmt.Errorf("extended key is not private")
	}
	neutered, err := prv.Neuter()
	if err != nil {
		return false, fmt.Errorf("failed to neuter extended key: %w", err)
	}
	return neutered.String() == pub, nil
}
