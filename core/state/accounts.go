package state

import (
	"fmt"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

var noncePrefix = []byte("account-nonce:")

func nonceKey(addr []byte) []byte {
	buf := make([]byte, len(noncePrefix)+len(addr))
	copy(buf, noncePrefix)
	copy(buf[len(noncePrefix):], addr)
	return ethcrypto.Keccak256(buf)
}

// AccountNonce returns the number of transactions the account has successfully
// executed.
func (m *Manager) AccountNonce(addr []byte) (uint64, error) {
	if len(addr) == 0 {
		return 0, fmt.Errorf("address must not be empty")
	}
	var nonce uint64
	if _, err := m.KVGet(nonceKey(addr), &nonce); err != nil {
		return 0, err
	}
	return nonce, nil
}

// SetAccountNonce stores the next expected nonce for the account.
func (m *Manager) SetAccountNonce(addr []byte, nonce uint64) error {
	if len(addr) == 0 {
		return fmt.Errorf("address must not be empty")
	}
	return m.KVPut(nonceKey(addr), nonce)
}
