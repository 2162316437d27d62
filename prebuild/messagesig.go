package prebuild

import (
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/wire"
)

// btcMessageMagic is the Bitcoin Signed Message magic prefix. Per spec
// §4.4 step 1 (BG-5703) it is used for EVERY coin's key-signature check,
// never the spending coin's own magic — LTC/TLTC key signatures are
// still produced and checked against this BTC prefix.
const btcMessageMagic = "Bitcoin Signed Message:\n"

// verifyMessageSignature checks a Bitcoin Signed Message-format signature
// (base64) recovers to signingAddress.
func verifyMessageSignature(message, signatureBase64 string, signingAddress *btcutil.AddressPubKeyHash) error {
	sigBytes, err := base64.StdEncoding.DecodeString(signatureBase64)
	if err != nil {
		return fmt.Errorf("%w: invalid base64 signature: %v", ErrKeychainIntegrityFailure, err)
	}

	hash := messageHash(message)

	pubKey, _, err := ecdsa.RecoverCompact(sigBytes, hash)
	if err != nil {
		return fmt.Errorf("%w: recovering public key: %v", ErrKeychainIntegrityFailure, err)
	}

	recoveredAddr, err := btcutil.NewAddressPubKeyHash(btcutil.Hash160(pubKey.SerializeCompressed()), &chaincfg.MainNetParams)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrKeychainIntegrityFailure, err)
	}

	if !bytes.Equal(recoveredAddr.Hash160()[:], signingAddress.Hash160()[:]) {
		return fmt.Errorf("%w: message signature does not recover to the signing address", ErrKeychainIntegrityFailure)
	}
	return nil
}

// messageHash reproduces the Bitcoin Signed Message double-SHA256 over
// the varint-length-prefixed magic and message.
func messageHash(message string) []byte {
	var buf bytes.Buffer
	wire.WriteVarString(&buf, 0, btcMessageMagic)
	wire.WriteVarString(&buf, 0, message)

	first := sha256.Sum256(buf.Bytes())
	second := sha256.Sum256(first[:])
	return second[:]
}

// signingAddress derives the legacy P2PKH address used to check
// key-signature provenance (spec §4.4 step 1: "derive signing address
// (legacy P2PKH) from user key"). It always uses BTC mainnet version
// bytes, matching the message-magic rule: this address identifies the
// user key itself, not a spend destination on the wallet's coin.
func signingAddress(userKey btcec.PublicKey) (*btcutil.AddressPubKeyHash, error) {
	hash := btcutil.Hash160(userKey.SerializeCompressed())
	return btcutil.NewAddressPubKeyHash(hash, &chaincfg.MainNetParams)
}
