package multisig

import (
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"

	"github.com/dan/utxo-wallet-core/keychain"
	"github.com/dan/utxo-wallet-core/network"
)

// Sentinel errors matching spec §7's address-verification taxonomy.
var (
	ErrInvalidAddress                           = errors.New("invalid address")
	ErrInvalidAddressDerivationProperty         = errors.New("invalid address derivation property")
	ErrInvalidAddressVerificationObjectProperty = errors.New("invalid address verification object property")
	ErrUnexpectedAddress                        = errors.New("unexpected address")
)

// Address is a fully derived wallet address: the encoded string plus the
// scripts that back it (spec §3 Address record).
type Address struct {
	Address     string
	Chain       uint32
	Index       uint32
	AddressType network.AddressType
	Scripts     Scripts
}

// Derive runs spec §4.1 end to end: derive each keychain's leaf public key
// at (chain, index), build the multisig program and its wrapping, and
// encode the resulting address.
func Derive(profile network.Profile, keys keychain.Triple, chain, index uint32, threshold int, forceAltScriptSupport bool) (Address, error) {
	addressType, _, err := network.AddressTypeForChain(chain)
	if err != nil {
		return Address{}, fmt.Errorf("%w: %v", ErrInvalidAddressDerivationProperty, err)
	}

	pubKeys, err := leafPublicKeys(keys, chain, index)
	if err != nil {
		return Address{}, fmt.Errorf("%w: %v", ErrInvalidAddressDerivationProperty, err)
	}

	scripts, err := BuildScripts(profile, pubKeys, threshold, addressType, forceAltScriptSupport)
	if err != nil {
		return Address{}, err
	}

	encoded, err := EncodeAddress(profile, scripts, addressType, forceAltScriptSupport)
	if err != nil {
		return Address{}, err
	}

	return Address{
		Address:     encoded,
		Chain:       chain,
		Index:       index,
		AddressType: addressType,
		Scripts:     scripts,
	}, nil
}

func leafPublicKeys(keys keychain.Triple, chain, index uint32) ([]*btcec.PublicKey, error) {
	pubKeys := make([]*btcec.PublicKey, len(keys))
	for i, kc := range keys {
		pub, err := kc.DeriveLeafPublicKey(chain, index)
		if err != nil {
			return nil, fmt.Errorf("role %d: %w", i, err)
		}
		pubKeys[i] = pub
	}
	return pubKeys, nil
}

// VerificationInput is the subset of an Address record under
// verification (spec §4.2 step 1): claimed address, the chain/index it
// claims to be at, and the threshold the wallet was created with.
type VerificationInput struct {
	ClaimedAddress string
	Chain          uint32
	Index          uint32
	Threshold      int
}

// Verify runs spec §4.2: rederive the scripts at the claimed (chain,
// index) and check the claimed address decodes to the same script hash,
// never trusting the claimed scripts.
func Verify(profile network.Profile, keys keychain.Triple, in VerificationInput, forceAltScriptSupport bool) (Address, error) {
	if in.ClaimedAddress == "" {
		return Address{}, fmt.Errorf("%w: claimed address is empty", ErrInvalidAddressVerificationObjectProperty)
	}
	if in.Threshold <= 0 {
		return Address{}, fmt.Errorf("%w: threshold must be positive", ErrInvalidAddressVerificationObjectProperty)
	}

	derived, err := Derive(profile, keys, in.Chain, in.Index, in.Threshold, forceAltScriptSupport)
	if err != nil {
		return Address{}, err
	}

	if err := isValidAddress(profile, derived.AddressType, derived.Scripts, in.ClaimedAddress, forceAltScriptSupport); err != nil {
		return Address{}, err
	}

	return derived, nil
}
