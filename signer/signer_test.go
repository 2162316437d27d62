package signer

import (
	"errors"
	"testing"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"

	"github.com/dan/utxo-wallet-core/keychain"
	"github.com/dan/utxo-wallet-core/multisig"
	"github.com/dan/utxo-wallet-core/network"
	"github.com/dan/utxo-wallet-core/sigverify"
)

func testTriple(t *testing.T) keychain.Triple {
	t.Helper()
	seeds := [][]byte{
		[]byte("user-seed-0123456789abcdef012345"),
		[]byte("backup-seed-0123456789abcdef01234"),
		[]byte("bitgo-seed-0123456789abcdef012345"),
	}
	var triple keychain.Triple
	for i, seed := range seeds {
		master, err := hdkeychain.NewMaster(seed, &chaincfg.MainNetParams)
		if err != nil {
			t.Fatalf("NewMaster: %v", err)
		}
		prv := master.String()
		triple[i] = keychain.Keychain{Role: keychain.Role(i), Pub: master.String(), Prv: &prv}
	}
	return triple
}

func buildSpendTx(t *testing.T, outputScript []byte, inputValue int64) *wire.MsgTx {
	t.Helper()
	tx := wire.NewMsgTx(2)
	tx.AddTxIn(&wire.TxIn{PreviousOutPoint: wire.OutPoint{Hash: chainhash.Hash{}, Index: 0}})
	tx.AddTxOut(wire.NewTxOut(inputValue-1000, outputScript))
	return tx
}

func TestSignFullSweepEachAddressType(t *testing.T) {
	triple := testTriple(t)
	const chain, index = 0, 3
	const value = int64(50000)

	for _, addrType := range network.AllAddressTypes() {
		addrType := addrType
		t.Run(string(addrType), func(t *testing.T) {
			mainChain, err := addrType.MainChain()
			if err != nil {
				t.Fatalf("MainChain: %v", err)
			}
			addr, err := multisig.Derive(network.BTC, triple, mainChain, index, multisig.DefaultThreshold, false)
			if err != nil {
				t.Fatalf("Derive: %v", err)
			}

			tx := buildSpendTx(t, addr.Scripts.OutputScript, value)

			unspents := []Unspent{{
				Chain:         mainChain,
				Index:         index,
				Value:         value,
				RedeemScript:  addr.Scripts.RedeemScript,
				WitnessScript: addr.Scripts.WitnessScript,
			}}

			keys := []keychain.Keychain{triple.User(), triple.Backup()}
			if err := Sign(network.BTC, tx, unspents, keys); err != nil {
				t.Fatalf("Sign: %v", err)
			}

			ok, err := sigverify.Verify(tx, 0, value, true, sigverify.Settings{})
			if err != nil {
				t.Fatalf("sigverify.Verify: %v", err)
			}
			if !ok {
				t.Fatalf("expected placed signatures to verify for %s", addrType)
			}
		})
	}
}

func TestSignHalfSignOneKey(t *testing.T) {
	triple := testTriple(t)
	const chain, index = 0, 5
	const value = int64(20000)

	addr, err := multisig.Derive(network.BTC, triple, chain, index, multisig.DefaultThreshold, false)
	if err != nil {
		t.Fatalf("Derive: %v", err)
	}

	tx := buildSpendTx(t, addr.Scripts.OutputScript, value)
	unspents := []Unspent{{Chain: chain, Index: index, Value: value, RedeemScript: addr.Scripts.RedeemScript}}

	if err := Sign(network.BTC, tx, unspents, []keychain.Keychain{triple.User()}); err != nil {
		t.Fatalf("Sign: %v", err)
	}

	sigIndex := 0
	ok, err := sigverify.Verify(tx, 0, value, true, sigverify.Settings{SignatureIndex: &sigIndex})
	if err != nil {
		t.Fatalf("sigverify.Verify: %v", err)
	}
	if !ok {
		t.Fatalf("expected the single placed signature to verify")
	}
}

func TestSignSkipsTaintedUnspent(t *testing.T) {
	triple := testTriple(t)
	const chain, index = 20, 1
	const value = int64(10000)

	addr, err := multisig.Derive(network.BTC, triple, chain, index, multisig.DefaultThreshold, false)
	if err != nil {
		t.Fatalf("Derive: %v", err)
	}

	tx := buildSpendTx(t, addr.Scripts.OutputScript, value)
	unspents := []Unspent{{Chain: chain, Index: index, Value: value, WitnessScript: addr.Scripts.WitnessScript, IsBitGoTaintedUnspent: true}}

	if err := Sign(network.BTC, tx, unspents, []keychain.Keychain{triple.User(), triple.Backup()}); err != nil {
		t.Fatalf("Sign: %v", err)
	}

	if len(tx.TxIn[0].Witness) != 0 || len(tx.TxIn[0].SignatureScript) != 0 {
		t.Fatalf("expected tainted input to be left unsigned, got witness=%v script=%x", tx.TxIn[0].Witness, tx.TxIn[0].SignatureScript)
	}
}

func TestSignReportsPostVerifyFailure(t *testing.T) {
	triple := testTriple(t)
	const chain, index = 0, 9
	const value = int64(15000)

	addr, err := multisig.Derive(network.BTC, triple, chain, index, multisig.DefaultThreshold, false)
	if err != nil {
		t.Fatalf("Derive: %v", err)
	}

	tx := buildSpendTx(t, addr.Scripts.OutputScript, value)

	// Signing with a keychain unrelated to the redeem script's three
	// embedded public keys places a structurally valid but unmatchable
	// signature: Sign succeeds mechanically but the post-sign verify
	// step catches it.
	foreignMaster, err := hdkeychain.NewMaster([]byte("foreign-seed-0123456789abcdef0123"), &chaincfg.MainNetParams)
	if err != nil {
		t.Fatalf("NewMaster: %v", err)
	}
	foreignPrv := foreignMaster.String()
	foreign := keychain.Keychain{Role: keychain.RoleUser, Pub: foreignPrv, Prv: &foreignPrv}

	unspents := []Unspent{{Chain: chain, Index: index, Value: value, RedeemScript: addr.Scripts.RedeemScript}}

	err = Sign(network.BTC, tx, unspents, []keychain.Keychain{foreign})
	if err == nil {
		t.Fatal("expected Sign to report a verification failure")
	}
	var failure *InputSignatureFailure
	if !errors.As(err, &failure) {
		t.Fatalf("expected *InputSignatureFailure, got %T: %v", err, err)
	}
	if len(failure.Issues) != 1 {
		t.Fatalf("expected exactly one issue, got %d", len(failure.Issues))
	}
}
