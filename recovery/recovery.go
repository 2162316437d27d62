// Package recovery rebuilds a wallet's funds into a single destination
// without the platform's cosigning service, by deriving and scanning
// every address the wallet could ever have used (spec §4.8).
package recovery

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/hashicorp/go-hclog"

	"github.com/dan/utxo-wallet-core/corectx"
	"github.com/dan/utxo-wallet-core/explorer"
	"github.com/dan/utxo-wallet-core/keychain"
	"github.com/dan/utxo-wallet-core/krs"
	"github.com/dan/utxo-wallet-core/multisig"
	"github.com/dan/utxo-wallet-core/network"
	"github.com/dan/utxo-wallet-core/signer"
)

// Sentinel errors matching spec §7's taxonomy, for the parts of it this
// package is responsible for raising.
var (
	ErrNoFundsFound      = errors.New("recovery: no spendable funds found while scanning")
	ErrInsufficientFunds = errors.New("recovery: recovery amount after fees is negative")
	ErrNoKRSProvider     = errors.New("recovery: KRS mode requires a provider")
)

// Mode is the signing mode a recovery runs under, determined by which of
// the three keys this wallet actually holds a private key for (spec
// §4.8 "Modes").
type Mode string

const (
	ModeFullSweep     Mode = "fullSweep"
	ModeKRS           Mode = "krs"
	ModeUnsignedSweep Mode = "unsignedSweep"
)

// Params is the full input set to a recovery run (spec §4.8 "Inputs").
type Params struct {
	Keys                keychain.Triple
	RecoveryDestination string
	Threshold           int
	ForceAltScript      bool

	// Scan is the dry-streak depth before a chain is abandoned. Zero
	// means the spec default of 20.
	Scan int
	// IgnoreAddressTypes is skipped entirely during scanning. Nil means
	// the spec default of [P2WSH].
	IgnoreAddressTypes []network.AddressType

	// KRSProvider, present only in KRS mode, prices the provider's cut.
	KRSProvider *KRSProviderConfig

	// FeePerByte prices the recovery tx itself; recovery never estimates
	// this from network conditions (spec.md §1/§4.8 Non-goal), it only
	// ever uses a caller-supplied or default constant rate.
	FeePerByte int64
}

// DefaultScanDepth is spec §4.8's default dry-streak depth.
const DefaultScanDepth = 20

// DefaultFeePerByte is used whenever a caller doesn't price the
// recovery transaction itself (spec.md §1: fee-rate estimation is out of
// scope, so this core only ever falls back to a constant).
const DefaultFeePerByte = 10

func defaultIgnoredAddressTypes() []network.AddressType {
	return []network.AddressType{network.P2WSH}
}

// Result is what a completed recovery hands back: either a signed tx
// (full sweep/KRS) or an offline-vault descriptor for later signing
// (unsigned sweep).
type Result struct {
	Mode Mode

	TxHex       string
	TxID        string
	RecoveredTo string
	Amount      int64
	Fee         int64
	KRSFee      int64

	// OfflineVault is populated only in ModeUnsignedSweep.
	OfflineVault *OfflineVaultExport
}

// determineMode implements spec §4.8's mode table.
func determineMode(keys keychain.Triple, krsProvider *KRSProviderConfig) (Mode, error) {
	userHasPrv := keys.User().Prv != nil
	backupHasPrv := keys.Backup().Prv != nil

	switch {
	case userHasPrv && backupHasPrv:
		return ModeFullSweep, nil
	case userHasPrv && !backupHasPrv:
		if krsProvider == nil {
			return "", ErrNoKRSProvider
		}
		return ModeKRS, nil
	case !userHasPrv && !backupHasPrv:
		return ModeUnsignedSweep, nil
	default:
		return "", fmt.Errorf("recovery: unsupported key combination (backup prv without user prv)")
	}
}

// Recover runs spec §4.8 end to end.
func Recover(ctx context.Context, logger hclog.Logger, profile network.Profile, explorerSvc explorer.Explorer, priceFeed explorer.PriceFeed, params Params) (Result, error) {
	mode, err := determineMode(params.Keys, params.KRSProvider)
	if err != nil {
		return Result{}, err
	}

	scanDepth := params.Scan
	if scanDepth <= 0 {
		scanDepth = DefaultScanDepth
	}
	ignored := params.IgnoreAddressTypes
	if ignored == nil {
		ignored = defaultIgnoredAddressTypes()
	}
	feePerByte := params.FeePerByte
	if feePerByte <= 0 {
		feePerByte = DefaultFeePerByte
	}
	threshold := params.Threshold
	if threshold <= 0 {
		threshold = multisig.DefaultThreshold
	}

	reqID := corectx.ReqIDFromContext(ctx)

	pool, totalInput, err := scanForFunds(ctx, reqID, logger, profile, explorerSvc, params.Keys, threshold, params.ForceAltScript, ignored, scanDepth)
	if err != nil {
		return Result{}, err
	}
	if totalInput == 0 {
		return Result{}, ErrNoFundsFound
	}

	var krsFee int64
	if mode == ModeKRS {
		krsFee, err = krs.CalcFee(ctx, reqID, priceFeed, profile.Name, params.KRSProvider.FeeSpec)
		if err != nil {
			return Result{}, err
		}
	}

	numOutputs := 1
	if mode == ModeKRS {
		numOutputs = 2
	}
	fee := estimateRecoveryFee(len(pool), numOutputs, feePerByte)

	recoveryAmount := totalInput - fee - krsFee
	if recoveryAmount < 0 {
		return Result{}, fmt.Errorf("%w: total %d, fee %d, krsFee %d", ErrInsufficientFunds, totalInput, fee, krsFee)
	}

	tx, unspents, err := buildRecoveryTx(pool, profile, params.RecoveryDestination, recoveryAmount, mode, params.KRSProvider, krsFee)
	if err != nil {
		return Result{}, err
	}

	switch mode {
	case ModeFullSweep:
		keys := []keychain.Keychain{params.Keys.User(), params.Keys.Backup()}
		if err := signer.Sign(profile, tx, unspents, keys); err != nil {
			return Result{}, err
		}
	case ModeKRS:
		keys := []keychain.Keychain{params.Keys.User()}
		if err := signer.Sign(profile, tx, unspents, keys); err != nil {
			return Result{}, err
		}
	case ModeUnsignedSweep:
		return Result{
			Mode:        mode,
			RecoveredTo: params.RecoveryDestination,
			Amount:      recoveryAmount,
			Fee:         fee,
			OfflineVault: buildOfflineVaultExport(tx, unspents, profile.Name),
		}, nil
	}

	rawHex, err := serializeTx(tx)
	if err != nil {
		return Result{}, err
	}

	return Result{
		Mode:        mode,
		TxHex:       rawHex,
		TxID:        tx.TxHash().String(),
		RecoveredTo: params.RecoveryDestination,
		Amount:      recoveryAmount,
		Fee:         fee,
		KRSFee:      krsFee,
	}, nil
}

func serializeTx(tx *wire.MsgTx) (string, error) {
	var buf bytes.Buffer
	if err := tx.Serialize(&buf); err != nil {
		return "", fmt.Errorf("recovery: serializing recovery tx: %w", err)
	}
	return hex.EncodeToString(buf.Bytes()), nil
}

// buildRecoveryTx assembles the unsigned recovery transaction: every
// pooled input, the single destination output, and the KRS fee output
// when the mode calls for one (spec §4.8 step 6).
func buildRecoveryTx(pool []scannedUnspent, profile network.Profile, destination string, recoveryAmount int64, mode Mode, krsProvider *KRSProviderConfig, krsFee int64) (*wire.MsgTx, []signer.Unspent, error) {
	tx := wire.NewMsgTx(2)
	unspents := make([]signer.Unspent, 0, len(pool))

	for _, u := range pool {
		tx.AddTxIn(&wire.TxIn{PreviousOutPoint: wire.OutPoint{Hash: u.txHash, Index: u.outputIndex}})
		unspents = append(unspents, signer.Unspent{
			Chain:         u.address.Chain,
			Index:         u.address.Index,
			Value:         u.value,
			RedeemScript:  u.address.Scripts.RedeemScript,
			WitnessScript: u.address.Scripts.WitnessScript,
		})
	}

	destScript, err := addressToOutputScript(destination, profile)
	if err != nil {
		return nil, nil, err
	}
	tx.AddTxOut(wire.NewTxOut(recoveryAmount, destScript))

	if mode == ModeKRS && krsFee > 0 && krsProvider != nil {
		krsScript, err := addressToOutputScript(krsProvider.FeeAddress, profile)
		if err != nil {
			return nil, nil, err
		}
		tx.AddTxOut(wire.NewTxOut(krsFee, krsScript))
	}

	return tx, unspents, nil
}

func addressToOutputScript(address string, profile network.Profile) ([]byte, error) {
	addr, err := btcutil.DecodeAddress(address, profile.ChainParams(false))
	if err != nil {
		return nil, fmt.Errorf("recovery: decoding destination address: %w", err)
	}
	return txscript.PayToAddrScript(addr)
}
