package recovery

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/wire"

	"github.com/dan/utxo-wallet-core/signer"
)

// OfflineVaultUnspent is one input's entry in an offline-vault export
// (spec §6 "Offline-vault export format").
type OfflineVaultUnspent struct {
	Chain         uint32
	Index         uint32
	RedeemScript  []byte
	WitnessScript []byte
	Value         int64
}

// OfflineVaultExport is the descriptor handed back for ModeUnsignedSweep:
// an unsigned tx plus everything an offline signer needs to place
// signatures on it later, without ever contacting this core or the
// network again (spec §6).
type OfflineVaultExport struct {
	TxHex    string
	Unspents []OfflineVaultUnspent
	Coin     string
}

func buildOfflineVaultExport(tx *wire.MsgTx, unspents []signer.Unspent, coin string) *OfflineVaultExport {
	var buf bytes.Buffer
	if err := tx.Serialize(&buf); err != nil {
		return nil
	}

	vaultUnspents := make([]OfflineVaultUnspent, len(unspents))
	for i, u := range unspents {
		vaultUnspents[i] = OfflineVaultUnspent{
			Chain:         u.Chain,
			Index:         u.Index,
			RedeemScript:  u.RedeemScript,
			WitnessScript: u.WitnessScript,
			Value:         u.Value,
		}
	}

	return &OfflineVaultExport{
		TxHex:    hex.EncodeToString(buf.Bytes()),
		Unspents: vaultUnspents,
		Coin:     coin,
	}
}

// ParseChainPath recovers (chain, index) from a derivation path string
// of the m/0/0/chain/index shape (spec §6: "Derivation indices parsed
// from chainPath positions 3 and 4"), the form an offline signer or a
// re-imported offline-vault record carries instead of separate fields.
func ParseChainPath(path string) (chain, index uint32, err error) {
	parts := strings.Split(path, "/")
	if len(parts) != 5 {
		return 0, 0, fmt.Errorf("recovery: malformed chain path %q", path)
	}

	chain64, err := strconv.ParseUint(parts[3], 10, 32)
	if err != nil {
		return 0, 0, fmt.Errorf("recovery: malformed chain segment in %q: %w", path, err)
	}
	index64, err := strconv.ParseUint(parts[4], 10, 32)
	if err != nil {
		return 0, 0, fmt.Errorf("recovery: malformed index segment in %q: %w", path, err)
	}
	return uint32(chain64), uint32(index64), nil
}
