// Package keychain derives and holds the key material for one signer in a
// multisig wallet: the BIP32 extended keys plus, where applicable, the
// encrypted or decrypted private key and the secondary-key signatures
// that prove provenance (spec §3, §4.4).
package keychain

import "github.com/btcsuite/btcd/btcutil/hdkeychain"

// Role is the fixed position of a key within the [user, backup, bitgo]
// triple (spec §3). Order is significant: it is baked into the multisig
// program and must never be re-sorted.
type Role int

const (
	RoleUser Role = iota
	RoleBackup
	RoleBitGo
)

// KeySignatures carries the message-signatures proving the backup and
// bitgo public keys were countersigned by the user key at wallet creation
// time (spec §4.4 step 1).
type KeySignatures struct {
	BackupPubSig string
	BitGoPubSig  string
}

// Keychain is one signer's key material. Prv is sensitive: callers that
// populate it from a decrypted source are responsible for calling Zero
// when finished with it (spec §3 ownership note, §5 resource discipline).
type Keychain struct {
	Role Role

	// Pub is the base58 extended public key. Always present.
	Pub string

	// Prv is the base58 extended private key, if the caller holds it in
	// the clear. Nil for watch-only / xpub-only keychains.
	Prv *string

	// EncryptedPrv is an opaque, still-encrypted private key blob. The
	// core never decrypts this itself — decryption is an external
	// collaborator concern (spec §1 scope); callers that can decrypt it
	// should populate Prv instead before invoking core operations.
	EncryptedPrv *string

	KeySignatures *KeySignatures
}

// Zero drops this Keychain's reference to the decrypted private key by
// clearing the Prv pointer. Go strings are immutable: the []byte
// conversion below makes a fresh copy and only that copy is overwritten;
// the string's own backing bytes are not wiped and stay in memory until
// the garbage collector reclaims them. It is a best-effort measure, not a
// cryptographic guarantee.
func (k *Keychain) Zero() {
	if k.Prv == nil {
		return
	}
	b := []byte(*k.Prv)
	for i := range b {
		b[i] = 0
	}
	k.Prv = nil
}

// ExtendedPublicKey parses Pub into a btcsuite extended key.
func (k Keychain) ExtendedPublicKey() (*hdkeychain.ExtendedKey, error) {
	return hdkeychain.NewKeyFromString(k.Pub)
}

// ExtendedPrivateKey parses Prv into a btcsuite extended key. Returns an
// error if Prv is not set.
func (k Keychain) ExtendedPrivateKey() (*hdkeychain.ExtendedKey, error) {
	if k.Prv == nil {
		return nil, errNoPrivateKey
	}
	return hdkeychain.NewKeyFromString(*k.Prv)
}

// Triple is the fixed-order [user, backup, bitgo] keychain set used by
// every multisig operation.
type Triple [3]Keychain

func (t Triple) User() Keychain   { return t[RoleUser] }
func (t Triple) Backup() Keychain { return t[RoleBackup] }
func (t Triple) BitGo() Keychain  { return t[RoleBitGo] }
