package keychain

import "errors"

var errNoPrivateKey = errors.New("keychain: no private key available")
