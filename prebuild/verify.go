package prebuild

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/wire"
	"github.com/hashicorp/go-hclog"

	"github.com/dan/utxo-wallet-core/corectx"
	"github.com/dan/utxo-wallet-core/explorer"
	"github.com/dan/utxo-wallet-core/keychain"
)

// Verify runs spec §4.4 against an already-parsed transaction: keychain
// provenance, intent match, the pay-as-you-go cap, and fee ≥ 0. It does
// not re-walk the tx; callers run Parse first and pass its result plus
// the same txInfo.
func Verify(ctx context.Context, logger hclog.Logger, txInfo TxInfo, parsed ParsedTransaction, explorerSvc explorer.Explorer) error {
	reqID := corectx.ReqIDFromContext(ctx)

	if err := verifyKeychains(ctx, logger, parsed); err != nil {
		return err
	}

	if len(parsed.MissingOutputs) > 0 {
		return fmt.Errorf("%w: %d expected recipient(s) absent from the transaction", ErrMissingRecipients, len(parsed.MissingOutputs))
	}

	if parsed.ImplicitExternalSpendAmount > (parsed.ExplicitExternalSpendAmount*PaygoCapBps)/10000 {
		return fmt.Errorf("%w: implicit external spend %d exceeds %d bps of explicit external spend %d",
			ErrImplicitSpendLimitExceeded, parsed.ImplicitExternalSpendAmount, PaygoCapBps, parsed.ExplicitExternalSpendAmount)
	}

	if err := verifyFee(ctx, reqID, txInfo, parsed, explorerSvc); err != nil {
		return err
	}

	return nil
}

// verifyKeychains runs spec §4.4 step 1. A present Prv is checked against
// its published pub; a present key_signatures pair is checked against the
// user's signing address. Absent signatures warn if networking is
// allowed (the caller proceeds without provenance) and fail otherwise.
func verifyKeychains(ctx context.Context, logger hclog.Logger, parsed ParsedTransaction) error {
	user := parsed.Keychains.User()

	if user.Prv != nil {
		xprv, err := user.ExtendedPrivateKey()
		if err != nil {
			return fmt.Errorf("%w: parsing user xprv: %v", ErrKeychainIntegrityFailure, err)
		}
		if xprv.IsPrivate() {
			ok, err := keychain.NeuterMatches(xprv, user.Pub)
			if err != nil {
				return fmt.Errorf("%w: %v", ErrKeychainIntegrityFailure, err)
			}
			if !ok {
				return fmt.Errorf("%w: user prv does not neuter to the published pub", ErrKeychainIntegrityFailure)
			}
		} else {
			return fmt.Errorf("%w: user prv is neutered", ErrKeychainIntegrityFailure)
		}
	}

	if parsed.KeySignatures == nil {
		if err := corectx.RequireNetworking(ctx); err != nil {
			return fmt.Errorf("%w: no key signatures present and networking disabled", ErrKeychainIntegrityFailure)
		}
		if logger != nil {
			logger.Warn("prebuild: no key signatures present, skipping keychain provenance check")
		}
		return nil
	}

	userXpub, err := user.ExtendedPublicKey()
	if err != nil {
		return fmt.Errorf("%w: parsing user xpub: %v", ErrKeychainIntegrityFailure, err)
	}
	userPub, err := userXpub.ECPubKey()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrKeychainIntegrityFailure, err)
	}
	addr, err := signingAddress(*userPub)
	if err != nil {
		return fmt.Errorf("%w: deriving signing address: %v", ErrKeychainIntegrityFailure, err)
	}

	backup := parsed.Keychains.Backup()
	if err := verifyMessageSignature(backup.Pub, parsed.KeySignatures.BackupPubSig, addr); err != nil {
		return fmt.Errorf("backup key signature: %w", err)
	}

	bitgo := parsed.Keychains.BitGo()
	if err := verifyMessageSignature(bitgo.Pub, parsed.KeySignatures.BitGoPubSig, addr); err != nil {
		return fmt.Errorf("bitgo key signature: %w", err)
	}

	return nil
}

// verifyFee runs spec §4.4 step 4: sum input values (trusting nothing
// the caller says about them) against the already-decoded output sum,
// and fail if outputs exceed inputs.
func verifyFee(ctx context.Context, reqID corectx.ReqID, txInfo TxInfo, parsed ParsedTransaction, explorerSvc explorer.Explorer) error {
	var totalIn int64
	for _, u := range txInfo.Unspents {
		value, err := resolveInputValue(ctx, reqID, txInfo, explorerSvc, u)
		if err != nil {
			return err
		}
		totalIn += value
	}

	var totalOut int64
	for _, out := range parsed.Outputs {
		totalOut += out.Amount
	}

	if totalIn-totalOut < 0 {
		return fmt.Errorf("%w: inputs %d < outputs %d", ErrNegativeFee, totalIn, totalOut)
	}
	return nil
}

// resolveInputValue finds one input's spent value, preferring the
// locally supplied tx hex (re-validating its own txid before trusting
// it) and falling back to the explorer when absent and networking is
// allowed.
func resolveInputValue(ctx context.Context, reqID corectx.ReqID, txInfo TxInfo, explorerSvc explorer.Explorer, u Unspent) (int64, error) {
	if rawHex, ok := txInfo.TxHexes[u.TxID]; ok {
		return valueFromTxHex(rawHex, u.TxID, u.OutputIndex)
	}

	if err := corectx.RequireNetworking(ctx); err != nil {
		return 0, err
	}
	if explorerSvc == nil {
		return 0, fmt.Errorf("%w: no tx hex for %s and no explorer configured", ErrNegativeFee, u.TxID)
	}

	outputs, err := explorerSvc.TxByID(ctx, reqID, u.TxID)
	if err != nil {
		return 0, err
	}
	if int(u.OutputIndex) >= len(outputs) {
		return 0, fmt.Errorf("%w: output %d out of range for tx %s", ErrNegativeFee, u.OutputIndex, u.TxID)
	}
	return outputs[u.OutputIndex].Value, nil
}

func valueFromTxHex(rawHex, expectedTxID string, outputIndex uint32) (int64, error) {
	raw, err := hex.DecodeString(rawHex)
	if err != nil {
		return 0, fmt.Errorf("%w: decoding prior tx hex: %v", ErrNegativeFee, err)
	}
	tx := wire.NewMsgTx(2)
	if err := tx.Deserialize(bytes.NewReader(raw)); err != nil {
		return 0, fmt.Errorf("%w: parsing prior tx: %v", ErrNegativeFee, err)
	}
	if tx.TxHash().String() != expectedTxID {
		return 0, fmt.Errorf("%w: prior tx hex hashes to %s, expected %s", ErrNegativeFee, tx.TxHash().String(), expectedTxID)
	}
	if int(outputIndex) >= len(tx.TxOut) {
		return 0, fmt.Errorf("%w: output %d out of range for tx %s", ErrNegativeFee, outputIndex, expectedTxID)
	}
	return tx.TxOut[outputIndex].Value, nil
}
