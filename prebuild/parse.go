package prebuild

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/wire"
	"github.com/mitchellh/copystructure"

	"github.com/dan/utxo-wallet-core/corectx"
	"github.com/dan/utxo-wallet-core/explorer"
	"github.com/dan/utxo-wallet-core/keychain"
	"github.com/dan/utxo-wallet-core/multisig"
	"github.com/dan/utxo-wallet-core/network"
	"github.com/dan/utxo-wallet-core/txexplain"
)

// KeychainIDs names, per role, which keychain ID to fetch when the
// caller does not supply keychains directly (spec §4.3 step 1).
type KeychainIDs [3]string

// Parse runs spec §4.3: classify every output of txPrebuild's raw
// transaction as internal (rederivable by this wallet) or external, and
// compute the missing-recipient and implicit/explicit spend sets.
//
// walletService may be nil if verification.Keychains and
// verification.Addresses (or txInfo.WalletAddressDetails) already supply
// everything needed; a nil walletService with an unresolved lookup and
// networking enabled is treated as "address not found".
func Parse(ctx context.Context, profile network.Profile, params TxParams, txPrebuild TxPrebuild, wallet Wallet, keychainIDs KeychainIDs, verification Verification, walletService explorer.WalletService) (ParsedTransaction, error) {
	reqID := corectx.ReqIDFromContext(ctx)

	// Classify against a deep copy of TxInfo so that output lookups never
	// touch the caller's maps.
	txInfoCopy, err := copystructure.Copy(txPrebuild.TxInfo)
	if err != nil {
		return ParsedTransaction{}, fmt.Errorf("prebuild: copying tx_info: %w", err)
	}
	txInfo := txInfoCopy.(TxInfo)

	keychains, err := resolveKeychains(ctx, reqID, verification, keychainIDs, walletService)
	if err != nil {
		return ParsedTransaction{}, err
	}

	rawTx, err := decodeTx(txPrebuild.TxHex)
	if err != nil {
		return ParsedTransaction{}, fmt.Errorf("prebuild: decoding tx_hex: %w", err)
	}

	changeAddrSet := make(map[string]bool, len(txInfo.ChangeAddresses))
	for _, a := range txInfo.ChangeAddresses {
		changeAddrSet[a] = true
	}
	explanation := txexplain.Explain(profile, rawTx, changeAddrSet, wallet.ForceAltScript)

	missingOutputs := missingRecipients(params.Recipients, explanation.All)

	classified, err := classifyOutputs(ctx, reqID, profile, explanation.All, txInfo, verification, wallet, params, keychains, walletService)
	if err != nil {
		return ParsedTransaction{}, err
	}

	explicit, implicit := splitExplicitImplicit(explanation.All, params.Recipients)

	var changeOutputs, explicitExternal, implicitExternal []txexplain.Output
	var explicitExternalAmount, implicitExternalAmount int64

	for _, out := range explanation.All {
		external := classified[out.Index]
		if !external {
			changeOutputs = append(changeOutputs, out)
		}
	}
	for _, out := range explicit {
		if classified[out.Index] {
			explicitExternal = append(explicitExternal, out)
			explicitExternalAmount += out.Amount
		}
	}
	for _, out := range implicit {
		if classified[out.Index] {
			implicitExternal = append(implicitExternal, out)
			implicitExternalAmount += out.Amount
		}
	}

	return ParsedTransaction{
		Keychains:                   keychains,
		KeySignatures:               keychains.User().KeySignatures,
		Outputs:                     explanation.All,
		MissingOutputs:              missingOutputs,
		ChangeOutputs:               changeOutputs,
		ExplicitOutputs:             explicit,
		ImplicitOutputs:             implicit,
		ExplicitExternalOutputs:     explicitExternal,
		ImplicitExternalOutputs:     implicitExternal,
		ExplicitExternalSpendAmount: explicitExternalAmount,
		ImplicitExternalSpendAmount: implicitExternalAmount,
	}, nil
}

func decodeTx(txHex string) (*wire.MsgTx, error) {
	raw, err := hex.DecodeString(txHex)
	if err != nil {
		return nil, err
	}
	tx := wire.NewMsgTx(2)
	if err := tx.Deserialize(bytes.NewReader(raw)); err != nil {
		return nil, err
	}
	return tx, nil
}

func resolveKeychains(ctx context.Context, reqID corectx.ReqID, verification Verification, ids KeychainIDs, walletService explorer.WalletService) (keychain.Triple, error) {
	if verification.Keychains != nil {
		return *verification.Keychains, nil
	}

	if err := corectx.RequireNetworking(ctx); err != nil {
		return keychain.Triple{}, ErrNoKeychainsAvailable
	}
	if walletService == nil {
		return keychain.Triple{}, ErrNoKeychainsAvailable
	}

	var triple keychain.Triple
	for i, id := range ids {
		kc, err := walletService.GetKeychain(ctx, reqID, id)
		if err != nil {
			return keychain.Triple{}, fmt.Errorf("prebuild: fetching keychain %d: %w", i, err)
		}
		triple[i] = kc
	}
	return triple, nil
}

// missingRecipients computes the multiset difference expected \ allOutputs
// keyed by (address, amount) (spec §4.3 step 3).
func missingRecipients(recipients []Recipient, allOutputs []txexplain.Output) []Recipient {
	counts := make(map[Recipient]int, len(allOutputs))
	for _, out := range allOutputs {
		counts[Recipient{Address: out.Address, Amount: out.Amount}]++
	}

	var missing []Recipient
	for _, r := range recipients {
		if counts[r] > 0 {
			counts[r]--
			continue
		}
		missing = append(missing, r)
	}
	return missing
}

// splitExplicitImplicit partitions allOutputs into explicit (consumes a
// recipient by the (address, amount) multiset key) and implicit (does
// not — change, paygo, or any other output the caller didn't ask for),
// per spec §4.3 step 5: `implicit_outputs = allOutputs \ expected`,
// `explicit_outputs = allOutputs \ implicit_outputs`.
func splitExplicitImplicit(allOutputs []txexplain.Output, recipients []Recipient) ([]txexplain.Output, []txexplain.Output) {
	counts := make(map[Recipient]int, len(recipients))
	for _, r := range recipients {
		counts[r]++
	}

	var explicit, implicit []txexplain.Output
	for _, out := range allOutputs {
		key := Recipient{Address: out.Address, Amount: out.Amount}
		if counts[key] > 0 {
			counts[key]--
			explicit = append(explicit, out)
		} else {
			implicit = append(implicit, out)
		}
	}
	return explicit, implicit
}

var errWalletAddressNotFound = errors.New("prebuild: wallet address not found")

// mergedAddressDetail looks up an address's scripts/coordinates from the
// local maps first, falling back to the wallet service (spec §4.3 step
// 4's "merge local... if empty and networking allowed, fetch").
func mergedAddressDetail(ctx context.Context, reqID corectx.ReqID, address string, txInfo TxInfo, verification Verification, walletService explorer.WalletService) (AddressDetail, error) {
	if detail, ok := verification.Addresses[address]; ok {
		return detail, nil
	}
	if detail, ok := txInfo.WalletAddressDetails[address]; ok {
		return detail, nil
	}

	if err := corectx.RequireNetworking(ctx); err != nil {
		return AddressDetail{}, errWalletAddressNotFound
	}
	if walletService == nil {
		return AddressDetail{}, errWalletAddressNotFound
	}

	record, err := walletService.GetAddress(ctx, reqID, address)
	if err != nil {
		var notFound *explorer.ErrWalletAddressNotFound
		if errors.As(err, &notFound) {
			return AddressDetail{}, errWalletAddressNotFound
		}
		return AddressDetail{}, err
	}
	return AddressDetail{
		Chain:         record.Chain,
		Index:         record.Index,
		RedeemScript:  record.RedeemScript,
		WitnessScript: record.WitnessScript,
		OutputScript:  record.OutputScript,
	}, nil
}

func inferAddressType(detail AddressDetail) (network.AddressType, error) {
	switch {
	case detail.RedeemScript == nil && detail.WitnessScript != nil:
		return network.P2WSH, nil
	case detail.RedeemScript != nil && detail.WitnessScript != nil:
		return network.P2SHP2WSH, nil
	case detail.RedeemScript != nil && detail.WitnessScript == nil:
		return network.P2SH, nil
	default:
		return "", multisig.ErrInvalidAddressVerificationObjectProperty
	}
}

// classifyOutputs runs §4.3 step 4 for every decoded output. Returns a
// map of output index -> external, matching spec §4.3's classification
// outcomes and exceptions. Outputs are classified one at a time, in
// output order; their lookups do not run concurrently.
func classifyOutputs(ctx context.Context, reqID corectx.ReqID, profile network.Profile, outputs []txexplain.Output, txInfo TxInfo, verification Verification, wallet Wallet, params TxParams, keychains keychain.Triple, walletService explorer.WalletService) (map[int]bool, error) {
	threshold := wallet.Threshold
	if threshold == 0 {
		threshold = multisig.DefaultThreshold
	}

	result := make(map[int]bool, len(outputs))

	for _, out := range outputs {
		external, err := classifyOne(ctx, reqID, profile, out, txInfo, verification, wallet, params, keychains, threshold, walletService)
		if err != nil {
			return nil, err
		}
		result[out.Index] = external
	}

	return result, nil
}

func classifyOne(ctx context.Context, reqID corectx.ReqID, profile network.Profile, out txexplain.Output, txInfo TxInfo, verification Verification, wallet Wallet, params TxParams, keychains keychain.Triple, threshold int, walletService explorer.WalletService) (bool, error) {
	detail, err := mergedAddressDetail(ctx, reqID, out.Address, txInfo, verification, walletService)
	if errors.Is(err, errWalletAddressNotFound) {
		return !isMigratedFrom(out.Address, wallet), nil
	}
	if err != nil {
		return false, err
	}

	if _, err := inferAddressType(detail); err != nil {
		return false, err
	}

	_, verifyErr := multisig.Verify(profile, keychains, multisig.VerificationInput{
		ClaimedAddress: out.Address,
		Chain:          detail.Chain,
		Index:          detail.Index,
		Threshold:      threshold,
	}, wallet.ForceAltScript)

	switch {
	case verifyErr == nil:
		return false, nil
	case errors.Is(verifyErr, multisig.ErrUnexpectedAddress):
		return !isMigratedFrom(out.Address, wallet), nil
	case errors.Is(verifyErr, multisig.ErrInvalidAddressDerivationProperty):
		if params.ChangeAddress != nil && out.Address == *params.ChangeAddress {
			return false, nil
		}
		return false, verifyErr
	default:
		return false, verifyErr
	}
}

func isMigratedFrom(address string, wallet Wallet) bool {
	return wallet.MigratedFrom != nil && *wallet.MigratedFrom == address
}
