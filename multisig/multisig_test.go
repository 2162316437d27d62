package multisig

import (
	"errors"
	"strings"
	"testing"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"

	"github.com/dan/utxo-wallet-core/keychain"
	"github.com/dan/utxo-wallet-core/network"
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
		triple[i] = keychain.Keychain{Pub: master.String()}
	}
	return triple
}

func TestDeriveRoundTripsPerAddressType(t *testing.T) {
	keys := testTriple(t)

	for _, at := range network.AllAddressTypes() {
		at := at
		t.Run(string(at), func(t *testing.T) {
			chain, err := at.MainChain()
			if err != nil {
				t.Fatalf("MainChain: %v", err)
			}

			addr, err := Derive(network.BTC, keys, chain, 0, DefaultThreshold, false)
			if err != nil {
				t.Fatalf("Derive: %v", err)
			}
			if addr.Address == "" {
				t.Fatal("empty address")
			}

			verified, err := Verify(network.BTC, keys, VerificationInput{
				ClaimedAddress: addr.Address,
				Chain:          chain,
				Index:          0,
				Threshold:      DefaultThreshold,
			}, false)
			if err != nil {
				t.Fatalf("Verify: %v", err)
			}
			if verified.Address != addr.Address {
				t.Errorf("verify returned a different address: %s != %s", verified.Address, addr.Address)
			}
		})
	}
}

func TestVerifyRejectsMutatedAddress(t *testing.T) {
	keys := testTriple(t)

	addr, err := Derive(network.BTC, keys, 0, 0, DefaultThreshold, false)
	if err != nil {
		t.Fatalf("Derive: %v", err)
	}

	mutated := mutateLastChar(addr.Address)

	_, err = Verify(network.BTC, keys, VerificationInput{
		ClaimedAddress: mutated,
		Chain:          0,
		Index:          0,
		Threshold:      DefaultThreshold,
	}, false)
	if err == nil {
		t.Fatal("expected Verify to reject a mutated address")
	}
	if !errors.Is(err, ErrInvalidAddress) && !errors.Is(err, ErrUnexpectedAddress) {
		t.Errorf("expected ErrInvalidAddress or ErrUnexpectedAddress, got %v", err)
	}
}

// TestVerifyAcceptsLegacyAltVersionOnlyWhenForced covers spec §8 scenario 2:
// an old-style version-byte encoding of the same script hash validates only
// when the caller opts into alt-script support.
func TestVerifyAcceptsLegacyAltVersionOnlyWhenForced(t *testing.T) {
	keys := testTriple(t)

	derived, err := Derive(network.LTC, keys, 0, 0, DefaultThreshold, false)
	if err != nil {
		t.Fatalf("Derive: %v", err)
	}

	scriptHash := btcutil.Hash160(derived.Scripts.RedeemScript)
	altParams := &chaincfg.Params{ScriptHashAddrID: *network.LTC.AltScriptHashVersion}
	altAddr, err := btcutil.NewAddressScriptHashFromHash(scriptHash, altParams)
	if err != nil {
		t.Fatalf("building alt-version address: %v", err)
	}

	_, err = Verify(network.LTC, keys, VerificationInput{
		ClaimedAddress: altAddr.EncodeAddress(),
		Chain:          0,
		Index:          0,
		Threshold:      DefaultThreshold,
	}, false)
	if err == nil {
		t.Fatal("expected the legacy alt-version address to be rejected without forceAltScriptSupport")
	}

	verified, err := Verify(network.LTC, keys, VerificationInput{
		ClaimedAddress: altAddr.EncodeAddress(),
		Chain:          0,
		Index:          0,
		Threshold:      DefaultThreshold,
	}, true)
	if err != nil {
		t.Fatalf("expected the legacy alt-version address to validate with forceAltScriptSupport: %v", err)
	}
	if verified.Scripts.RedeemScript == nil {
		t.Error("expected redeem script to be populated")
	}
}

// TestVerifyRejectsBech32AddressFromWrongNetwork covers the "network
// isolation" property of spec §8 for bech32 addresses: a P2WSH address
// encoded under one network's HRP must not parse under another's.
func TestVerifyRejectsBech32AddressFromWrongNetwork(t *testing.T) {
	keys := testTriple(t)

	tltcAddr, err := Derive(network.TLTC, keys, 20, 0, DefaultThreshold, false)
	if err != nil {
		t.Fatalf("Derive: %v", err)
	}

	_, err = Verify(network.BTC, keys, VerificationInput{
		ClaimedAddress: tltcAddr.Address,
		Chain:          20,
		Index:          0,
		Threshold:      DefaultThreshold,
	}, false)
	if !errors.Is(err, ErrInvalidAddress) {
		t.Fatalf("expected ErrInvalidAddress for a bech32 address from a different network, got %v", err)
	}
}

func TestVerifyRejectsWrongIndex(t *testing.T) {
	keys := testTriple(t)

	addr, err := Derive(network.BTC, keys, 0, 0, DefaultThreshold, false)
	if err != nil {
		t.Fatalf("Derive: %v", err)
	}

	_, err = Verify(network.BTC, keys, VerificationInput{
		ClaimedAddress: addr.Address,
		Chain:          0,
		Index:          1,
		Threshold:      DefaultThreshold,
	}, false)
	if err == nil {
		t.Fatal("expected Verify to reject an address claimed at the wrong index")
	}
}

func TestDeriveP2WSHUnsupportedOnNetwork(t *testing.T) {
	keys := testTriple(t)

	noSegwit := network.BTC
	noSegwit.SupportsP2WSH = false

	_, err := Derive(noSegwit, keys, 20, 0, DefaultThreshold, false)
	if err == nil {
		t.Fatal("expected P2WSH derivation to fail when the profile disables segwit")
	}
}

func TestDeriveInvalidThreshold(t *testing.T) {
	keys := testTriple(t)

	_, err := Derive(network.BTC, keys, 0, 0, 0, false)
	if err == nil {
		t.Fatal("expected a zero threshold to be rejected")
	}

	_, err = Derive(network.BTC, keys, 0, 0, 4, false)
	if err == nil {
		t.Fatal("expected a threshold above n to be rejected")
	}
}

func TestScriptsShapePerAddressType(t *testing.T) {
	keys := testTriple(t)

	p2sh, err := Derive(network.BTC, keys, 0, 0, DefaultThreshold, false)
	if err != nil {
		t.Fatalf("Derive P2SH: %v", err)
	}
	if p2sh.Scripts.RedeemScript == nil || p2sh.Scripts.WitnessScript != nil {
		t.Error("P2SH should carry a redeem script and no witness script")
	}

	p2shP2wsh, err := Derive(network.BTC, keys, 10, 0, DefaultThreshold, false)
	if err != nil {
		t.Fatalf("Derive P2SH_P2WSH: %v", err)
	}
	if p2shP2wsh.Scripts.RedeemScript == nil || p2shP2wsh.Scripts.WitnessScript == nil {
		t.Error("P2SH_P2WSH should carry both a redeem and a witness script")
	}

	p2wsh, err := Derive(network.BTC, keys, 20, 0, DefaultThreshold, false)
	if err != nil {
		t.Fatalf("Derive P2WSH: %v", err)
	}
	if p2wsh.Scripts.WitnessScript == nil || p2wsh.Scripts.RedeemScript != nil {
		t.Error("P2WSH should carry a witness script and no redeem script")
	}
}

func mutateLastChar(s string) string {
	if s == "" {
		return s
	}
	last := s[len(s)-1]
	replacement := byte('a')
	if last == 'a' {
		replacement = 'b'
	}
	return strings.TrimSuffix(s, string(last)) + string(replacement)
}
