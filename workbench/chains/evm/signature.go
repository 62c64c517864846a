package evm

import (
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// FunctionSignature returns the 4-byte selector of m as 0x-hex.
func FunctionSignature(m abi.Method) string {
	return SignatureOf(m.Sig)
}

// SignatureOf returns the 4-byte selector of a canonical signature such as
// "transfer(address,uint256)" as 0x-hex.
func SignatureOf(signature string) string {
	return hexutil.Encode(crypto.Keccak256([]byte(signature))[:4])
}

// Utf8ToHex encodes s as 0x-prefixed hex.
func Utf8ToHex(s string) string {
	return hexutil.Encode([]byte(s))
}
