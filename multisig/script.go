// Package multisig builds and rederives the multisig scripts and
// addresses used by every wallet output (spec §4.1, §4.2): the bare
// m-of-n program, its P2SH / P2SH-P2WSH / P2WSH wrappings, and address
// verification against a supplied network.
package multisig

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/bech32"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"

	"github.com/dan/utxo-wallet-core/network"
)

// DefaultThreshold is "m" in the default 2-of-3 multisig program (spec §4.1).
const DefaultThreshold = 2

var (
	// ErrP2WSHUnsupported is returned when a network profile disables
	// native segwit addresses (spec §7 P2wshUnsupported).
	ErrP2WSHUnsupported = errors.New("p2wsh unsupported on this network")
	// ErrUnsupportedAddressType covers any address type outside the
	// closed variant set (spec §7 UnsupportedAddressType).
	ErrUnsupportedAddressType = errors.New("unsupported address type")
	// ErrInvalidThreshold covers a threshold outside (0, n] (spec §4.1).
	ErrInvalidThreshold = errors.New("invalid multisig threshold")
)

// Scripts holds the three script forms an address may carry, per the
// Unspent/Address invariants in spec §3: witness_script present iff
// P2SH_P2WSH/P2WSH; redeem_script present iff P2SH/P2SH_P2WSH.
type Scripts struct {
	RedeemScript  []byte // nil for P2WSH
	WitnessScript []byte // nil for P2SH
	OutputScript  []byte
}

// buildProgram constructs OP_<m> <pub_1>...<pub_n> OP_<n> OP_CHECKMULTISIG
// over the keys in the order given — callers must pass keys in the fixed
// [user, backup, bitgo] wallet order (spec §3), never re-sorted.
func buildProgram(pubKeys []*btcec.PublicKey, threshold int, params *chaincfg.Params) ([]byte, error) {
	if threshold <= 0 || threshold > len(pubKeys) {
		return nil, fmt.Errorf("%w: m=%d n=%d", ErrInvalidThreshold, threshold, len(pubKeys))
	}

	addrPubKeys := make([]*btcutil.AddressPubKey, len(pubKeys))
	for i, pk := range pubKeys {
		addrPubKey, err := btcutil.NewAddressPubKey(pk.SerializeCompressed(), params)
		if err != nil {
			return nil, fmt.Errorf("failed to wrap public key %d: %w", i, err)
		}
		addrPubKeys[i] = addrPubKey
	}

	script, err := txscript.MultiSigScript(addrPubKeys, threshold)
	if err != nil {
		return nil, fmt.Errorf("failed to build multisig script: %w", err)
	}
	return script, nil
}

// BuildScripts runs spec §4.1 steps 3-4: build the bare multisig program
// and its output/redeem/witness wrapping for the given address type.
func BuildScripts(profile network.Profile, pubKeys []*btcec.PublicKey, threshold int, addressType network.AddressType, forceAltScriptSupport bool) (Scripts, error) {
	if addressType == network.P2WSH && !profile.SupportsP2WSH {
		return Scripts{}, ErrP2WSHUnsupported
	}

	params := profile.ChainParams(forceAltScriptSupport)
	program, err := buildProgram(pubKeys, threshold, params)
	if err != nil {
		return Scripts{}, err
	}

	switch addressType {
	case network.P2SH:
		outputScript, err := p2shOutputScript(program, params)
		if err != nil {
			return Scripts{}, err
		}
		return Scripts{RedeemScript: program, OutputScript: outputScript}, nil

	case network.P2SHP2WSH:
		witnessProgram := witnessProgramScript(program)
		outputScript, err := p2shOutputScript(witnessProgram, params)
		if err != nil {
			return Scripts{}, err
		}
		return Scripts{
			WitnessScript: program,
			RedeemScript:  witnessProgram,
			OutputScript:  outputScript,
		}, nil

	case network.P2WSH:
		return Scripts{
			WitnessScript: program,
			OutputScript:  witnessProgramScript(program),
		}, nil

	default:
		return Scripts{}, fmt.Errorf("%w: %s", ErrUnsupportedAddressType, addressType)
	}
}

// witnessProgramScript builds OP_0 <SHA256(script)>, the P2WSH witness
// program, used both as a native P2WSH output script and, wrapped in
// P2SH, as the redeem script for P2SH-P2WSH (spec §4.1).
func witnessProgramScript(script []byte) []byte {
	hash := sha256.Sum256(script)
	b, err := txscript.NewScriptBuilder().AddOp(txscript.OP_0).AddData(hash[:]).Script()
	if err != nil {
		// AddData on a fixed 32-byte hash cannot exceed script limits.
		panic(fmt.Sprintf("multisig: building witness program: %v", err))
	}
	return b
}

// p2shOutputScript builds OP_HASH160 <HASH160(script)> OP_EQUAL.
func p2shOutputScript(script []byte, params *chaincfg.Params) ([]byte, error) {
	addr, err := btcutil.NewAddressScriptHash(script, params)
	if err != nil {
		return nil, fmt.Errorf("failed to hash script to address: %w", err)
	}
	out, err := txscript.PayToAddrScript(addr)
	if err != nil {
		return nil, fmt.Errorf("failed to build P2SH output script: %w", err)
	}
	return out, nil
}

// EncodeAddress base58check- or bech32-encodes OutputScript for the given
// address type and network (spec §4.1 step 5).
func EncodeAddress(profile network.Profile, scripts Scripts, addressType network.AddressType, forceAltScriptSupport bool) (string, error) {
	params := profile.ChainParams(forceAltScriptSupport)

	switch addressType {
	case network.P2SH, network.P2SHP2WSH:
		scriptHash := btcutil.Hash160(hashInput(scripts))
		addr, err := btcutil.NewAddressScriptHashFromHash(scriptHash, params)
		if err != nil {
			return "", fmt.Errorf("failed to encode P2SH address: %w", err)
		}
		return addr.EncodeAddress(), nil

	case network.P2WSH:
		if !profile.SupportsP2WSH {
			return "", ErrP2WSHUnsupported
		}
		hash := sha256.Sum256(scripts.WitnessScript)
		addr, err := btcutil.NewAddressWitnessScriptHash(hash[:], params)
		if err != nil {
			return "", fmt.Errorf("failed to encode P2WSH address: %w", err)
		}
		return addr.EncodeAddress(), nil

	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedAddressType, addressType)
	}
}

// hashInput returns the script that gets HASH160'd into the P2SH address:
// the redeem script for plain P2SH, or the P2SH-P2WSH redeem script
// (itself a witness program) for nested segwit.
func hashInput(scripts Scripts) []byte {
	return scripts.RedeemScript
}

// isValidAddress checks claimed against profile's accepted version bytes
// or bech32 HRP (spec §4.2): ErrInvalidAddress if claimed cannot be
// decoded under any accepted encoding at all — including the legacy alt
// P2SH version byte, which only counts when forceAltScriptSupport is set
// (spec §8 scenario 2) — ErrUnexpectedAddress if it decodes but hashes to
// a different script than the one derived locally.
func isValidAddress(profile network.Profile, addressType network.AddressType, scripts Scripts, claimed string, forceAltScriptSupport bool) error {
	switch addressType {
	case network.P2SH, network.P2SHP2WSH:
		want := btcutil.Hash160(hashInput(scripts))
		for _, version := range profile.ScriptHashVersions(forceAltScriptSupport) {
			addr, err := btcutil.DecodeAddress(claimed, &chaincfg.Params{ScriptHashAddrID: version})
			if err != nil {
				continue
			}
			if _, ok := addr.(*btcutil.AddressScriptHash); !ok {
				continue
			}
			if bytes.Equal(addr.ScriptAddress(), want) {
				return nil
			}
			return fmt.Errorf("%w: claimed %s", ErrUnexpectedAddress, claimed)
		}
		return fmt.Errorf("%w: %s does not decode against network %s version bytes", ErrInvalidAddress, claimed, profile.Name)

	case network.P2WSH:
		if !profile.SupportsP2WSH {
			return ErrP2WSHUnsupported
		}
		hrp, data, err := bech32.Decode(claimed)
		if err != nil || hrp != profile.Bech32HRP || len(data) == 0 {
			return fmt.Errorf("%w: %s does not decode against bech32 HRP %q", ErrInvalidAddress, claimed, profile.Bech32HRP)
		}
		program, err := bech32.ConvertBits(data[1:], 5, 8, false)
		if err != nil || data[0] != 0 || len(program) != sha256.Size {
			return fmt.Errorf("%w: %s is not a witness script hash address", ErrInvalidAddress, claimed)
		}
		want := sha256.Sum256(scripts.WitnessScript)
		if !bytes.Equal(program, want[:]) {
			return fmt.Errorf("%w: claimed %s", ErrUnexpectedAddress, claimed)
		}
		return nil

	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedAddressType, addressType)
	}
}
