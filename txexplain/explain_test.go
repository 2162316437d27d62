package txexplain

import (
	"testing"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"

	"github.com/dan/utxo-wallet-core/network"
)

func p2pkhScript(t *testing.T, params *network.Profile, seed byte) ([]byte, string) {
	t.Helper()
	hash := make([]byte, 20)
	for i := range hash {
		hash[i] = seed
	}
	addr, err := btcutil.NewAddressPubKeyHash(hash, params.ChainParams(false))
	if err != nil {
		t.Fatalf("NewAddressPubKeyHash: %v", err)
	}
	script, err := txscript.PayToAddrScript(addr)
	if err != nil {
		t.Fatalf("PayToAddrScript: %v", err)
	}
	return script, addr.EncodeAddress()
}

func TestExplainSplitsChangeAndSpend(t *testing.T) {
	spendScript, spendAddr := p2pkhScript(t, &network.BTC, 0x01)
	changeScript, changeAddr := p2pkhScript(t, &network.BTC, 0x02)

	tx := wire.NewMsgTx(2)
	tx.AddTxIn(&wire.TxIn{PreviousOutPoint: wire.OutPoint{Hash: chainhash.Hash{}, Index: 0}})
	tx.AddTxOut(wire.NewTxOut(100000, spendScript))
	tx.AddTxOut(wire.NewTxOut(5000, changeScript))

	explanation := Explain(network.BTC, tx, map[string]bool{changeAddr: true}, false)

	if len(explanation.All) != 2 {
		t.Fatalf("expected 2 decoded outputs, got %d", len(explanation.All))
	}
	if len(explanation.SpendOutputs) != 1 || explanation.SpendOutputs[0].Address != spendAddr {
		t.Errorf("expected one spend output for %s, got %+v", spendAddr, explanation.SpendOutputs)
	}
	if len(explanation.ChangeOutputs) != 1 || explanation.ChangeOutputs[0].Address != changeAddr {
		t.Errorf("expected one change output for %s, got %+v", changeAddr, explanation.ChangeOutputs)
	}
}

func TestExplainNonStandardOutputHasNoAddress(t *testing.T) {
	opReturn, err := txscript.NewScriptBuilder().AddOp(txscript.OP_RETURN).AddData([]byte("hello")).Script()
	if err != nil {
		t.Fatalf("building OP_RETURN script: %v", err)
	}

	tx := wire.NewMsgTx(2)
	tx.AddTxIn(&wire.TxIn{PreviousOutPoint: wire.OutPoint{Hash: chainhash.Hash{}, Index: 0}})
	tx.AddTxOut(wire.NewTxOut(0, opReturn))

	explanation := Explain(network.BTC, tx, nil, false)

	if len(explanation.All) != 1 || explanation.All[0].Address != "" {
		t.Fatalf("expected an addressless decoded output, got %+v", explanation.All)
	}
	if len(explanation.SpendOutputs) != 1 {
		t.Error("an addressless output should still be classified as spend, not dropped")
	}
}
