// Package sigscript decompiles one transaction input's signature script
// and witness into its signatures, public keys, and the script consumed
// by the signature hash, independent of which address type produced it
// (spec §4.5).
package sigscript

import (
	"crypto/sha256"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

// Classification is the standard input shape a script/witness decompiles
// to. Anything outside this set is Other — supported by the parser (it
// still returns a zero-value Parsed with Classification set) but rejected
// by callers that require a known shape (spec §4.6: "other -> false").
type Classification string

const (
	ClassP2SH  Classification = "p2sh"
	ClassP2PKH Classification = "p2pkh"
	ClassOther Classification = "other"
)

// ErrEmptyInput is returned when neither the script nor the witness carry
// any data to classify.
var ErrEmptyInput = errors.New("sigscript: input has neither script nor witness data")

// Parsed is the result of decompiling one input (spec §4.5 return value).
type Parsed struct {
	Signatures     [][]byte
	PublicKeys     [][]byte
	IsSegwitInput  bool
	IsBech32Input  bool
	Classification Classification

	// PubScript is the value spec §4.5 defines per classification: the
	// redeem script for P2SH, a reconstructed P2PKH script, or — for a
	// bech32 input — a synthesized OP_0 <SHA256(last_witness)> standing
	// in for the (absent) previous output script.
	PubScript []byte

	// ScriptCode is the script actually consumed by the signature hash:
	// the redeem/witness script itself. Equal to PubScript for P2SH and
	// P2PKH; for bech32 it is the witness script, not the synthesized
	// PubScript (BIP143's scriptCode is never the witness program).
	ScriptCode []byte
}

// Parse decompiles input `index` of tx (spec §4.5).
func Parse(tx *wire.MsgTx, index int) (Parsed, error) {
	if index < 0 || index >= len(tx.TxIn) {
		return Parsed{}, fmt.Errorf("sigscript: input index %d out of range", index)
	}
	in := tx.TxIn[index]

	if len(in.Witness) > 0 {
		return parseSegwit(in.Witness, in.SignatureScript)
	}
	return parseLegacy(in.SignatureScript)
}

func parseSegwit(witness wire.TxWitness, sigScript []byte) (Parsed, error) {
	isBech32 := len(sigScript) == 0

	pushes := make([][]byte, len(witness))
	copy(pushes, witness)
	if len(pushes) == 0 {
		return Parsed{}, ErrEmptyInput
	}

	class, scriptCode := classify(pushes)

	parsed := Parsed{
		IsSegwitInput:  true,
		IsBech32Input:  isBech32,
		Classification: class,
		ScriptCode:     scriptCode,
	}

	switch class {
	case ClassP2SH:
		sigs, pubKeys, err := extractMultisig(pushes, scriptCode)
		if err != nil {
			return Parsed{}, err
		}
		parsed.Signatures = sigs
		parsed.PublicKeys = pubKeys
	case ClassP2PKH:
		sig, pub, pubScript, err := extractP2PKH(pushes)
		if err != nil {
			return Parsed{}, err
		}
		parsed.Signatures = [][]byte{sig}
		parsed.PublicKeys = [][]byte{pub}
		parsed.ScriptCode = pubScript
	}

	if isBech32 {
		last := pushes[len(pushes)-1]
		hash := sha256.Sum256(last)
		b, err := txscript.NewScriptBuilder().AddOp(txscript.OP_0).AddData(hash[:]).Script()
		if err != nil {
			return Parsed{}, fmt.Errorf("sigscript: building bech32 pubScript: %w", err)
		}
		parsed.PubScript = b
	} else {
		parsed.PubScript = scriptCode
	}

	return parsed, nil
}

func parseLegacy(sigScript []byte) (Parsed, error) {
	if len(sigScript) == 0 {
		return Parsed{}, ErrEmptyInput
	}

	pushes, err := txscript.PushedData(sigScript)
	if err != nil {
		return Parsed{}, fmt.Errorf("sigscript: decompiling signature script: %w", err)
	}
	if len(pushes) == 0 {
		return Parsed{}, ErrEmptyInput
	}

	class, scriptCode := classify(pushes)

	parsed := Parsed{
		Classification: class,
		ScriptCode:     scriptCode,
		PubScript:      scriptCode,
	}

	switch class {
	case ClassP2SH:
		sigs, pubKeys, err := extractMultisig(pushes, scriptCode)
		if err != nil {
			return Parsed{}, err
		}
		parsed.Signatures = sigs
		parsed.PublicKeys = pubKeys
	case ClassP2PKH:
		sig, pub, pubScript, err := extractP2PKH(pushes)
		if err != nil {
			return Parsed{}, err
		}
		parsed.Signatures = [][]byte{sig}
		parsed.PublicKeys = [][]byte{pub}
		parsed.ScriptCode = pubScript
		parsed.PubScript = pubScript
	}

	return parsed, nil
}

// classify inspects the final push of a decompiled script/witness stack:
// if it is itself a multisig script, the whole stack is a P2SH(-P2WSH)
// multisig spend; if the stack has exactly two elements it is treated as
// P2PKH; anything else is Other.
func classify(pushes [][]byte) (Classification, []byte) {
	last := pushes[len(pushes)-1]
	if txscript.GetScriptClass(last) == txscript.MultiSigTy {
		return ClassP2SH, last
	}
	if len(pushes) == 2 {
		return ClassP2PKH, nil
	}
	return ClassOther, nil
}

// extractMultisig implements spec §4.5's P2SH branch: every push but the
// final redeem/witness script is a candidate signature; the classic
// OP_CHECKMULTISIG off-by-one bug inserts one empty dummy push ahead of
// the real signatures, which is filtered out here rather than surfaced
// as a zero-length "signature".
func extractMultisig(pushes [][]byte, redeemScript []byte) ([][]byte, [][]byte, error) {
	var signatures [][]byte
	for _, push := range pushes[:len(pushes)-1] {
		if len(push) == 0 {
			continue
		}
		signatures = append(signatures, push)
	}

	pubKeys, err := txscript.PushedData(redeemScript)
	if err != nil {
		return nil, nil, fmt.Errorf("sigscript: decompiling redeem script: %w", err)
	}

	return signatures, pubKeys, nil
}

// extractP2PKH implements spec §4.5's P2PKH branch.
func extractP2PKH(pushes [][]byte) (sig, pub, pubScript []byte, err error) {
	sig, pub = pushes[0], pushes[1]
	hash := btcutil.Hash160(pub)
	script, err := txscript.NewScriptBuilder().
		AddOp(txscript.OP_DUP).
		AddOp(txscript.OP_HASH160).
		AddData(hash).
		AddOp(txscript.OP_EQUALVERIFY).
		AddOp(txscript.OP_CHECKSIG).
		Script()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("sigscript: building P2PKH pubScript: %w", err)
	}
	return sig, pub, script, nil
}
