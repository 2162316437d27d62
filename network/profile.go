// Package network carries the per-coin constants the rest of the wallet
// core needs: base58 version bytes, bech32 prefix, sighash defaults, and
// capability bits. It has no behavior beyond small lookup tables.
package network

import (
	"fmt"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
)

// Family identifies the coin's broad signature/address family. All
// families currently supported share Bitcoin's script and sighash rules;
// the tag exists so collaborators can branch on it without inspecting
// version bytes.
type Family string

const (
	FamilyBTC Family = "btc"
	FamilyLTC Family = "ltc"
)

// Profile is the bit-exact per-coin network record described in spec §3
// and §6. Two Profiles are never equal by coincidence: each coin gets its
// own package-level value constructed once in this file.
type Profile struct {
	// Name is the short coin identifier ("btc", "tbtc", "ltc", "tltc").
	Name string

	Family Family

	// PubKeyHashVersion is the base58check version byte for P2PKH.
	PubKeyHashVersion byte
	// ScriptHashVersion is the base58check version byte for P2SH.
	ScriptHashVersion byte
	// AltScriptHashVersion is a second, legacy P2SH version byte some
	// coins carried before a hard fork changed it (e.g. Litecoin). It is
	// only honored when SupportsAltScriptDestination is true AND the
	// caller opts in per-verification (forceAltScriptSupport).
	AltScriptHashVersion *byte

	// Bech32HRP is the human-readable part for native segwit addresses.
	// Empty if the coin has no bech32 support.
	Bech32HRP string

	SupportsP2WSH                 bool
	SupportsAltScriptDestination  bool
	// SupportsBlockTarget is an unused capability bit reserved for
	// collaborators (spec §9 open question); the core never reads it.
	SupportsBlockTarget bool

	DefaultSigHashType txscript.SigHashType
}

func altByte(b byte) *byte { return &b }

// BTC is Bitcoin mainnet.
var BTC = Profile{
	Name:                "btc",
	Family:              FamilyBTC,
	PubKeyHashVersion:   0x00,
	ScriptHashVersion:   0x05,
	Bech32HRP:           "bc",
	SupportsP2WSH:       true,
	SupportsBlockTarget: true,
	DefaultSigHashType:  txscript.SigHashAll,
}

// TBTC is Bitcoin testnet3/testnet4 (same address version bytes).
var TBTC = Profile{
	Name:                "tbtc",
	Family:              FamilyBTC,
	PubKeyHashVersion:   0x6f,
	ScriptHashVersion:   0xc4,
	Bech32HRP:           "tb",
	SupportsP2WSH:       true,
	SupportsBlockTarget: true,
	DefaultSigHashType:  txscript.SigHashAll,
}

// LTC is Litecoin mainnet. Litecoin moved its P2SH version byte from the
// Bitcoin-compatible 0x05 to 0x32 in 2017; AltScriptHashVersion preserves
// the ability to recognize (not generate) the old-style addresses when a
// caller opts in, per spec §4.1/§8 scenario 2.
var LTC = Profile{
	Name:                         "ltc",
	Family:                       FamilyLTC,
	PubKeyHashVersion:            0x30,
	ScriptHashVersion:            0x32,
	AltScriptHashVersion:         altByte(0x05),
	Bech32HRP:                    "ltc",
	SupportsP2WSH:                true,
	SupportsAltScriptDestination: true,
	DefaultSigHashType:           txscript.SigHashAll,
}

// TLTC is Litecoin testnet.
var TLTC = Profile{
	Name:                         "tltc",
	Family:                       FamilyLTC,
	PubKeyHashVersion:            0x6f,
	ScriptHashVersion:            0x3a,
	Bech32HRP:                    "tltc",
	SupportsP2WSH:                true,
	SupportsAltScriptDestination: false,
	DefaultSigHashType:           txscript.SigHashAll,
}

func (f Family) String() string { return string(f) }

// ByName returns the named profile. Unknown names are a caller bug, not a
// recoverable condition — the wallet-service collaborator is expected to
// validate the coin string before reaching the core.
func ByName(name string) (Profile, error) {
	switch name {
	case "btc":
		return BTC, nil
	case "tbtc":
		return TBTC, nil
	case "ltc":
		return LTC, nil
	case "tltc":
		return TLTC, nil
	default:
		return Profile{}, fmt.Errorf("unknown network %q", name)
	}
}

// ScriptHashVersions returns the set of base58check version bytes that
// should be accepted for a P2SH-class address on this network. The alt
// version is only included when both the profile supports it and the
// caller has opted in (forceAltScriptSupport).
func (p Profile) ScriptHashVersions(forceAltScriptSupport bool) []byte {
	versions := []byte{p.ScriptHashVersion}
	if forceAltScriptSupport && p.SupportsAltScriptDestination && p.AltScriptHashVersion != nil {
		versions = append(versions, *p.AltScriptHashVersion)
	}
	return versions
}

// ChainParams adapts a Profile into the chaincfg.Params fields txscript
// and btcutil's address helpers actually consult. Collaborators that need
// the full chaincfg.Params (e.g. to talk to chain RPC) should build their
// own from Name; this core only ever needs version bytes and the bech32
// HRP.
func (p Profile) ChainParams(forceAltScriptSupport bool) *chaincfg.Params {
	return &chaincfg.Params{
		PubKeyHashAddrID: p.PubKeyHashVersion,
		ScriptHashAddrID: p.ScriptHashVersion,
		Bech32HRPSegwit:  p.Bech32HRP,
	}
}
