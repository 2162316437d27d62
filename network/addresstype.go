package network

import "fmt"

// AddressType is the closed variant set from spec §3.
type AddressType string

const (
	P2SH      AddressType = "p2sh"
	P2SHP2WSH AddressType = "p2shP2wsh"
	P2WSH     AddressType = "p2wsh"
)

// chainTable is the address-type -> (main chain, change chain) mapping
// from spec §6. Chain numbers are canonical across every coin.
var chainTable = map[AddressType][2]uint32{
	P2SH:      {0, 1},
	P2SHP2WSH: {10, 11},
	P2WSH:     {20, 21},
}

// MainChain returns the receiving-chain number for an address type.
func (t AddressType) MainChain() (uint32, error) {
	pair, ok := chainTable[t]
	if !ok {
		return 0, fmt.Errorf("unsupported address type: %s", t)
	}
	return pair[0], nil
}

// ChangeChain returns the change-chain number for an address type.
func (t AddressType) ChangeChain() (uint32, error) {
	pair, ok := chainTable[t]
	if !ok {
		return 0, fmt.Errorf("unsupported address type: %s", t)
	}
	return pair[1], nil
}

// AddressTypeForChain inverts the table: given a chain number, recover
// its address type and whether it is the change chain. Per spec §3, type
// is determined by the pair (chain % 10, chain / 10).
func AddressTypeForChain(chain uint32) (AddressType, bool, error) {
	remainder := chain % 10
	if remainder != 0 && remainder != 1 {
		return "", false, fmt.Errorf("invalid chain %d: remainder must be 0 or 1", chain)
	}
	isChange := remainder == 1
	switch chain / 10 {
	case 0:
		return P2SH, isChange, nil
	case 1:
		return P2SHP2WSH, isChange, nil
	case 2:
		return P2WSH, isChange, nil
	default:
		return "", false, fmt.Errorf("invalid chain %d: no known address type", chain)
	}
}

// AllAddressTypes lists every address type in canonical order, for
// recovery scanning (spec §4.8 step 2).
func AllAddressTypes() []AddressType {
	return []AddressType{P2SH, P2SHP2WSH, P2WSH}
}
