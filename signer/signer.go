// Package signer places this wallet's own signature(s) on every
// spendable input of a decoded transaction and validates each one before
// handing the tx back (spec §4.7). It signs with whichever keychains the
// caller holds private keys for — one (the user key, for a normal
// half-signed flow or a KRS-assisted recovery) or two (user and backup
// together, for a full-sweep recovery) — in the fixed [user, backup,
// bitgo] role order the redeem/witness script was built with.
package signer

import (
	"fmt"

	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	multierror "github.com/hashicorp/go-multierror"
	"github.com/hashicorp/go-secure-stdlib/mlock"

	"github.com/dan/utxo-wallet-core/keychain"
	"github.com/dan/utxo-wallet-core/network"
	"github.com/dan/utxo-wallet-core/sigverify"
)

// Unspent is the subset of an input's coordinates and scripts the signer
// needs (spec §3 Unspent, narrowed to what §4.7 reads).
type Unspent struct {
	Chain         uint32
	Index         uint32
	Value         int64
	RedeemScript  []byte
	WitnessScript []byte

	// IsBitGoTaintedUnspent marks a platform-signed replay-protection
	// input this wallet never signs (spec §4.7 step 1).
	IsBitGoTaintedUnspent bool
}

// InputIssue is one input's signing failure (spec §7 InputSignatureFailure).
type InputIssue struct {
	InputIndex int
	Unspent    Unspent
	Path       string
	Err        error
}

// InputSignatureFailure aggregates every input that failed to sign or
// failed post-sign verification (spec §4.7 "after the loop").
type InputSignatureFailure struct {
	Issues []InputIssue
	merr   *multierror.Error
}

func (e *InputSignatureFailure) Error() string {
	return fmt.Sprintf("signer: %d input(s) failed to sign: %v", len(e.Issues), e.merr)
}

func (e *InputSignatureFailure) Unwrap() error {
	return e.merr.ErrorOrNil()
}

// Sign places signatures from every keychain in keys (in role order) on
// every non-tainted input of tx, mutating it in place, then verifies each
// placed signature via §4.6. unspents must be parallel to tx.TxIn.
//
// keys holds one entry for a half-sign (user only) or two for a
// cosigning full sweep (user, backup); callers never hold the bitgo key.
func Sign(profile network.Profile, tx *wire.MsgTx, unspents []Unspent, keys []keychain.Keychain) error {
	if len(unspents) != len(tx.TxIn) {
		return fmt.Errorf("signer: %d unspents for %d inputs", len(unspents), len(tx.TxIn))
	}

	// Neither hashPrevouts/hashSequence/hashOutputs (the only things
	// TxSigHashes precomputes) nor CalcWitnessSigHash itself consult the
	// prevout fetcher for segwit v0 — it only matters for taproot, which
	// this wallet never spends. A canned empty fetcher is the same one
	// sigverify.Verify uses to recompute these hashes for validation.
	sigHashes := txscript.NewTxSigHashes(tx, txscript.NewCannedPrevOutputFetcher(nil, 0))

	var issues []InputIssue

	for i, u := range unspents {
		if u.IsBitGoTaintedUnspent {
			continue
		}

		path := keychain.DerivationPath(u.Chain, u.Index)

		if err := signInput(profile, tx, sigHashes, i, u, keys); err != nil {
			issues = append(issues, InputIssue{InputIndex: i, Unspent: u, Path: path, Err: err})
			continue
		}

		ok, err := sigverify.Verify(tx, i, u.Value, true, sigverify.Settings{})
		if err != nil {
			issues = append(issues, InputIssue{InputIndex: i, Unspent: u, Path: path, Err: err})
			continue
		}
		if !ok {
			issues = append(issues, InputIssue{InputIndex: i, Unspent: u, Path: path, Err: fmt.Errorf("placed signature(s) did not verify")})
		}
	}

	if len(issues) == 0 {
		return nil
	}

	var merr *multierror.Error
	for _, issue := range issues {
		merr = multierror.Append(merr, fmt.Errorf("input %d (%s): %w", issue.InputIndex, issue.Path, issue.Err))
	}
	return &InputSignatureFailure{Issues: issues, merr: merr}
}

func signInput(profile network.Profile, tx *wire.MsgTx, sigHashes *txscript.TxSigHashes, index int, u Unspent, keys []keychain.Keychain) error {
	isSegwit := u.RedeemScript == nil || u.WitnessScript != nil

	signatures := make([][]byte, 0, len(keys))
	for _, kc := range keys {
		sig, err := signOne(tx, sigHashes, index, u, kc, profile, isSegwit)
		if err != nil {
			return fmt.Errorf("role %d: %w", kc.Role, err)
		}
		signatures = append(signatures, sig)
	}

	scriptSig, witness := buildScripts(u, signatures)
	tx.TxIn[index].SignatureScript = scriptSig
	tx.TxIn[index].Witness = witness
	return nil
}

// signOne derives kc's leaf private key and signs input `index`, pinning
// the derived key material in physical memory for the duration and
// scrubbing it before returning (spec §5 resource discipline). Locking
// failure (e.g. no CAP_IPC_LOCK in a sandboxed runtime) is not fatal —
// the scrub still happens either way.
func signOne(tx *wire.MsgTx, sigHashes *txscript.TxSigHashes, index int, u Unspent, kc keychain.Keychain, profile network.Profile, isSegwit bool) ([]byte, error) {
	priv, err := kc.DeriveLeafPrivateKey(u.Chain, u.Index)
	if err != nil {
		return nil, err
	}
	keyBytes := priv.Serialize()
	_ = mlock.LockMemory(keyBytes)
	defer func() {
		for i := range keyBytes {
			keyBytes[i] = 0
		}
		_ = mlock.UnlockMemory(keyBytes)
		priv.Zero()
	}()

	hashType := profile.DefaultSigHashType

	if isSegwit {
		sig, err := txscript.RawTxInWitnessSignature(tx, sigHashes, index, u.Value, u.WitnessScript, hashType, priv)
		if err != nil {
			return nil, fmt.Errorf("signing segwit input: %w", err)
		}
		return sig, nil
	}

	sig, err := txscript.RawTxInSignature(tx, index, u.RedeemScript, hashType, priv)
	if err != nil {
		return nil, fmt.Errorf("signing legacy input: %w", err)
	}
	return sig, nil
}

// buildScripts assembles the scriptSig/witness for one input from the
// signatures collected so far, in role order, per the shape its unspent
// carries (spec §4.7 step 3, §4.6's P2SH/bech32 script shapes).
func buildScripts(u Unspent, signatures [][]byte) (scriptSig []byte, witness wire.TxWitness) {
	switch {
	case u.RedeemScript == nil:
		// bech32/native P2WSH: witness-only, empty scriptSig.
		return nil, multisigWitness(u.WitnessScript, signatures)

	case u.WitnessScript != nil:
		// P2SH-P2WSH: scriptSig pushes the witness-program redeem script,
		// the actual multisig check runs in the witness.
		push, _ := txscript.NewScriptBuilder().AddData(u.RedeemScript).Script()
		return push, multisigWitness(u.WitnessScript, signatures)

	default:
		// Plain P2SH: OP_0 <sig>... <redeemScript>, no witness.
		builder := txscript.NewScriptBuilder().AddOp(txscript.OP_0)
		for _, sig := range signatures {
			builder.AddData(sig)
		}
		builder.AddData(u.RedeemScript)
		script, _ := builder.Script()
		return script, nil
	}
}

// multisigWitness builds the witness stack OP_CHECKMULTISIG's off-by-one
// bug requires: a leading empty element the opcode pops and ignores, the
// signatures in pubkey order, then the witness script itself.
func multisigWitness(witnessScript []byte, signatures [][]byte) wire.TxWitness {
	stack := make(wire.TxWitness, 0, len(signatures)+2)
	stack = append(stack, []byte{})
	stack = append(stack, signatures...)
	stack = append(stack, witnessScript)
	return stack
}
