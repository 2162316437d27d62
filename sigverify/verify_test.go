package sigverify

import (
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

func testMultisig(t *testing.T, n int) ([]byte, []*btcec.PrivateKey) {
	t.Helper()
	var privs []*btcec.PrivateKey
	var pubKeys [][]byte
	for i := 0; i < n; i++ {
		priv, err := btcec.NewPrivateKey()
		if err != nil {
			t.Fatalf("NewPrivateKey: %v", err)
		}
		privs = append(privs, priv)
		pubKeys = append(pubKeys, priv.PubKey().SerializeCompressed())
	}
	builder := txscript.NewScriptBuilder().AddOp(txscript.OP_2)
	for _, pk := range pubKeys {
		builder.AddData(pk)
	}
	builder.AddOp(txscript.OP_3).AddOp(txscript.OP_CHECKMULTISIG)
	script, err := builder.Script()
	if err != nil {
		t.Fatalf("building script: %v", err)
	}
	return script, privs
}

func legacyMultisigTx(t *testing.T, redeemScript []byte, signers ...*btcec.PrivateKey) *wire.MsgTx {
	t.Helper()

	tx := wire.NewMsgTx(2)
	tx.AddTxIn(&wire.TxIn{PreviousOutPoint: wire.OutPoint{Hash: chainhash.Hash{}, Index: 0}})
	tx.AddTxOut(wire.NewTxOut(50000, []byte{0x00}))

	builder := txscript.NewScriptBuilder().AddOp(txscript.OP_0)
	for _, priv := range signers {
		sig, err := txscript.RawTxInSignature(tx, 0, redeemScript, txscript.SigHashAll, priv)
		if err != nil {
			t.Fatalf("RawTxInSignature: %v", err)
		}
		builder.AddData(sig)
	}
	builder.AddData(redeemScript)
	sigScript, err := builder.Script()
	if err != nil {
		t.Fatalf("building sigScript: %v", err)
	}
	tx.TxIn[0].SignatureScript = sigScript
	return tx
}

func TestVerifyLegacyMultisigValid(t *testing.T) {
	redeemScript, privs := testMultisig(t, 3)
	tx := legacyMultisigTx(t, redeemScript, privs[0], privs[1])

	ok, err := Verify(tx, 0, 0, false, Settings{})
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !ok {
		t.Fatal("expected a correctly signed 2-of-3 input to verify")
	}
}

func TestVerifyLegacyMultisigTargetedPublicKey(t *testing.T) {
	redeemScript, privs := testMultisig(t, 3)
	tx := legacyMultisigTx(t, redeemScript, privs[0], privs[1])

	ok, err := Verify(tx, 0, 0, false, Settings{PublicKey: privs[0].PubKey()})
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !ok {
		t.Fatal("expected targeted verify against a signer's own key to succeed")
	}

	ok, err = Verify(tx, 0, 0, false, Settings{PublicKey: privs[2].PubKey()})
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if ok {
		t.Fatal("expected targeted verify against a non-signer's key to fail")
	}
}

func TestVerifyLegacyMultisigWrongKeySet(t *testing.T) {
	redeemScript, privs := testMultisig(t, 3)

	outsider, err := btcec.NewPrivateKey()
	if err != nil {
		t.Fatalf("NewPrivateKey: %v", err)
	}

	tx := legacyMultisigTx(t, redeemScript, privs[0], outsider)

	ok, err := Verify(tx, 0, 0, false, Settings{})
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if ok {
		t.Fatal("expected verify to fail when one signature belongs to an unrelated key")
	}
}

func TestVerifySignatureIndex(t *testing.T) {
	redeemScript, privs := testMultisig(t, 3)
	tx := legacyMultisigTx(t, redeemScript, privs[0], privs[1])

	idx0 := 0
	ok, err := Verify(tx, 0, 0, false, Settings{SignatureIndex: &idx0})
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !ok {
		t.Fatal("expected signature 0 alone to verify")
	}
}

func TestVerifySegwitWithoutAmountFails(t *testing.T) {
	witnessScript, privs := testMultisig(t, 3)

	tx := wire.NewMsgTx(2)
	tx.AddTxIn(&wire.TxIn{PreviousOutPoint: wire.OutPoint{Hash: chainhash.Hash{}, Index: 0}})
	tx.AddTxOut(wire.NewTxOut(50000, []byte{0x00}))

	sigHashes := txscript.NewTxSigHashes(tx, txscript.NewCannedPrevOutputFetcher(nil, 0))
	sig0, err := txscript.RawTxInWitnessSignature(tx, sigHashes, 0, 100000, witnessScript, txscript.SigHashAll, privs[0])
	if err != nil {
		t.Fatalf("RawTxInWitnessSignature: %v", err)
	}
	sig1, err := txscript.RawTxInWitnessSignature(tx, sigHashes, 0, 100000, witnessScript, txscript.SigHashAll, privs[1])
	if err != nil {
		t.Fatalf("RawTxInWitnessSignature: %v", err)
	}
	tx.TxIn[0].Witness = wire.TxWitness{nil, sig0, sig1, witnessScript}

	ok, err := Verify(tx, 0, 0, false, Settings{})
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if ok {
		t.Fatal("expected verify to fail when amount is not known for a segwit input")
	}

	ok, err = Verify(tx, 0, 100000, true, Settings{})
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !ok {
		t.Fatal("expected verify to succeed once amount is supplied")
	}
}
