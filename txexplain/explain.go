// Package txexplain decodes a raw transaction's outputs into addresses
// and amounts and splits them into change vs. spend, the second step of
// prebuild parsing (spec §4.3 step 2).
package txexplain

import (
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"

	"github.com/dan/utxo-wallet-core/network"
)

// Output is one decoded transaction output.
type Output struct {
	Index   int
	Address string
	Amount  int64
	Script  []byte
}

// Explanation is the decoded-outputs view §4.3 step 2 builds before
// per-output classification runs.
type Explanation struct {
	// All holds every decoded output, spend and change alike, in output
	// order ("allOutputs = spend ∪ change" per spec §4.3).
	All []Output

	// ChangeOutputs is the subset whose address matched the caller's
	// change-address set. SpendOutputs is everything else.
	ChangeOutputs []Output
	SpendOutputs  []Output
}

// Explain decodes every output of tx and classifies it as change or
// spend using the supplied set of known change addresses. An output
// whose script does not resolve to exactly one address (OP_RETURN,
// non-standard scripts, bare multisig over several keys) is still
// returned in All with Address left empty, never dropped.
func Explain(profile network.Profile, tx *wire.MsgTx, changeAddresses map[string]bool, forceAltScriptSupport bool) Explanation {
	params := profile.ChainParams(forceAltScriptSupport)

	var explanation Explanation
	for i, out := range tx.TxOut {
		address := decodeOutputAddress(out.PkScript, params)

		decoded := Output{Index: i, Address: address, Amount: out.Value, Script: out.PkScript}
		explanation.All = append(explanation.All, decoded)

		if address != "" && changeAddresses[address] {
			explanation.ChangeOutputs = append(explanation.ChangeOutputs, decoded)
		} else {
			explanation.SpendOutputs = append(explanation.SpendOutputs, decoded)
		}
	}

	return explanation
}

// decodeOutputAddress extracts the single address a standard output
// script pays to. Non-standard or multi-address scripts (e.g. bare
// OP_RETURN or OP_CHECKMULTISIG without a hash wrapper) decode to "",
// not an error: they simply never match a change address.
func decodeOutputAddress(pkScript []byte, params *chaincfg.Params) string {
	_, addrs, _, err := txscript.ExtractPkScriptAddrs(pkScript, params)
	if err != nil || len(addrs) != 1 {
		// OP_RETURN and non-standard scripts come back with no address,
		// bare multisig with one per key; treat anything but a single
		// address as addressless, not fatal.
		return ""
	}
	return addrs[0].EncodeAddress()
}
