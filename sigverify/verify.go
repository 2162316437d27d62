// Package sigverify checks one input's placed signature(s) against the
// public keys its spent script names, independent of whether the caller
// is validating a freshly built prebuild or a signature this core itself
// just placed (spec §4.6).
package sigverify

import (
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"

	"github.com/dan/utxo-wallet-core/sigscript"
)

// Settings narrows what Verify checks, per spec §4.6.
type Settings struct {
	// SignatureIndex, if non-nil, restricts the check to S[*SignatureIndex]
	// instead of every placed signature.
	SignatureIndex *int
	// PublicKey, if non-nil, switches semantics: Verify returns true as
	// soon as any signature verifies against this one key, rather than
	// requiring every signature to match a distinct key.
	PublicKey *btcec.PublicKey
}

// Verify runs spec §4.6's verify_signature. amount is required whenever
// the input is segwit (BIP143 folds the spent value into the sighash);
// amountKnown false on a segwit input always yields false, matching the
// "segwit input without amount -> false" rule.
func Verify(tx *wire.MsgTx, inputIndex int, amount int64, amountKnown bool, settings Settings) (bool, error) {
	parsed, err := sigscript.Parse(tx, inputIndex)
	if err != nil {
		return false, err
	}

	if parsed.Classification != sigscript.ClassP2SH && parsed.Classification != sigscript.ClassP2PKH {
		return false, nil
	}
	if parsed.IsSegwitInput && !amountKnown {
		return false, nil
	}

	signatures := parsed.Signatures
	if settings.SignatureIndex != nil {
		i := *settings.SignatureIndex
		if i < 0 || i >= len(signatures) {
			return false, nil
		}
		signatures = signatures[i : i+1]
	}
	if len(signatures) == 0 {
		return false, nil
	}

	sigHashes := txscript.NewTxSigHashes(tx, txscript.NewCannedPrevOutputFetcher(nil, 0))

	matched := make([]bool, len(parsed.PublicKeys))

	for _, raw := range signatures {
		ok, matchIndex, err := verifyOne(tx, inputIndex, amount, parsed, sigHashes, raw, matched, settings.PublicKey)
		if err != nil {
			return false, err
		}
		if settings.PublicKey != nil {
			if ok {
				return true, nil
			}
			continue
		}
		if !ok {
			return false, nil
		}
		matched[matchIndex] = true
	}

	if settings.PublicKey != nil {
		return false, nil
	}
	return true, nil
}

// verifyOne checks one signature against every unmatched public key (or,
// if targetKey is set, only against that key). Returns the index of the
// public key it matched.
func verifyOne(tx *wire.MsgTx, inputIndex int, amount int64, parsed sigscript.Parsed, sigHashes *txscript.TxSigHashes, raw []byte, matched []bool, targetKey *btcec.PublicKey) (bool, int, error) {
	if len(raw) < 2 {
		return false, -1, nil
	}
	hashType := txscript.SigHashType(raw[len(raw)-1])
	derSig := raw[:len(raw)-1]

	sig, err := ecdsa.ParseDERSignature(derSig)
	if err != nil {
		return false, -1, nil
	}

	var hash []byte
	if parsed.IsSegwitInput {
		hash, err = txscript.CalcWitnessSigHash(parsed.ScriptCode, sigHashes, hashType, tx, inputIndex, amount)
	} else {
		hash, err = txscript.CalcSignatureHash(parsed.ScriptCode, hashType, tx, inputIndex)
	}
	if err != nil {
		return false, -1, err
	}

	for i, rawPub := range parsed.PublicKeys {
		if matched[i] {
			continue
		}
		pubKey, err := btcec.ParsePubKey(rawPub)
		if err != nil {
			continue
		}
		if targetKey != nil && !pubKey.IsEqual(targetKey) {
			continue
		}
		if sig.Verify(hash, pubKey) {
			return true, i, nil
		}
		if targetKey != nil {
			// Only one candidate key when targeted; no point scanning more.
			break
		}
	}

	return false, -1, nil
}
