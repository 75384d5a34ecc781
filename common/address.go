package common

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"

	"github.com/locey/TaskAVS/base/errcode"
)

// UnifyAddress validates an evm address and returns it lowercased.
func UnifyAddress(address string) (string, error) {
	address = strings.TrimSpace(address)
	if len(address) <= 2 || !common.IsHexAddress(address) {
		return "", errors.WithStack(errcode.ErrInvalidInput.WithMsg("address %q is illegal", address))
	}
	return strings.ToLower(common.HexToAddress(address).Hex()), nil
}

// SameAddress compares two addresses case-insensitively.
func SameAddress(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
