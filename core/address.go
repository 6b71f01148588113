package core

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Address is the canonical lowercase hex form of an Ethereum address.
type Address string

// ParseAddress validates s and returns its canonical form.
func ParseAddress(s string) (Address, error) {
	s = strings.TrimSpace(s)
	if !common.IsHexAddress(s) {
		return "", ErrInvalidAddress
	}
	return Address(strings.ToLower(common.HexToAddress(s).Hex())), nil
}

// MustAddress is like ParseAddress but panics on invalid input.
func MustAddress(s string) Address {
	addr, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return addr
}

// AddressFromCommon converts a go-ethereum address.
func AddressFromCommon(a common.Address) Address {
	return Address(strings.ToLower(a.Hex()))
}

func (a Address) String() string {
	return string(a)
}

// Common returns the go-ethereum representation.
func (a Address) Common() common.Address {
	return common.HexToAddress(string(a))
}
