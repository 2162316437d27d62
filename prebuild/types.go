// Package prebuild parses a server-proposed transaction against user
// intent (spec §4.3) and verifies it is safe to sign (spec §4.4): every
// output is either change the wallet controls or an intended recipient,
// within an allowed overage, and the transaction does not pay out more
// than it takes in.
package prebuild

import (
	"github.com/dan/utxo-wallet-core/keychain"
	"github.com/dan/utxo-wallet-core/txexplain"
)

// Recipient is one entry of user intent (spec §3).
type Recipient struct {
	Address string
	Amount  int64
}

// Unspent is one input the prebuild proposes to spend (spec §3).
type Unspent struct {
	TxID          string
	OutputIndex   uint32
	Value         int64
	Address       string
	Chain         uint32
	Index         uint32
	RedeemScript  []byte
	WitnessScript []byte
}

// AddressDetail is a merged local/verification view of one address's
// derivation coordinates and scripts (spec §4.3 step 4).
type AddressDetail struct {
	Chain         uint32
	Index         uint32
	RedeemScript  []byte
	WitnessScript []byte
	OutputScript  []byte
}

// TxInfo is the server-supplied context accompanying a prebuild's raw
// tx (spec §3 TxPrebuild.tx_info).
type TxInfo struct {
	Unspents             []Unspent
	TxHexes              map[string]string
	WalletAddressDetails map[string]AddressDetail
	ChangeAddresses      []string
}

// TxParams is user intent (spec §3).
type TxParams struct {
	Recipients       []Recipient
	ChangeAddress    *string
	WalletPassphrase *string
}

// TxPrebuild is the server's proposed transaction (spec §3).
type TxPrebuild struct {
	TxHex  string
	TxInfo TxInfo
}

// Wallet carries the bits of wallet identity the parser needs: the
// legacy-migration exception address (spec §4.3 step 4).
type Wallet struct {
	ID             string
	MigratedFrom   *string
	Threshold      int
	ForceAltScript bool
}

// Verification lets a caller short-circuit networked lookups by
// supplying keychains and/or address details directly (spec §4.3 step
// 1 and step 4).
type Verification struct {
	Keychains *keychain.Triple
	Addresses map[string]AddressDetail
}

// ParsedTransaction is the result of §4.3 (spec §3).
type ParsedTransaction struct {
	Keychains     keychain.Triple
	KeySignatures *keychain.KeySignatures

	Outputs        []txexplain.Output
	MissingOutputs []Recipient

	ChangeOutputs           []txexplain.Output
	ExplicitOutputs         []txexplain.Output
	ImplicitOutputs         []txexplain.Output
	ExplicitExternalOutputs []txexplain.Output
	ImplicitExternalOutputs []txexplain.Output

	ExplicitExternalSpendAmount int64
	ImplicitExternalSpendAmount int64
}
