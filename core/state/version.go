package state

import (
	"errors"
	"fmt"
	"math"
)

// StateVersion is the layout of the ledger keys written by this binary. Bump
// it when a stored record changes shape.
const StateVersion uint32 = 1

var (
	stateVersionKey = []byte("state/version")

	// ErrStateVersionMismatch is returned when a node opens state written by
	// another layout.
	ErrStateVersionMismatch = errors.New("state: schema version mismatch")
)

// SetStateVersion stamps the layout version. Genesis writes it once.
func (m *Manager) SetStateVersion(version uint32) error {
	return m.KVPut(stateVersionKey, uint64(version))
}

// StateVersion reports the stamped layout version, if any.
func (m *Manager) StateVersion() (uint32, bool, error) {
	var stored uint64
	ok, err := m.KVGet(stateVersionKey, &stored)
	if err != nil || !ok {
		return 0, false, err
	}
	if stored > math.MaxUint32 {
		return 0, false, fmt.Errorf("state: schema version overflow: %d", stored)
	}
	return uint32(stored), true, nil
}

// CheckStateVersion fails unless the state carries exactly StateVersion. An
// unstamped state means genesis never ran against it.
func (m *Manager) CheckStateVersion() error {
	version, ok, err := m.StateVersion()
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: state has no version stamp", ErrStateVersionMismatch)
	}
	if version != StateVersion {
		return fmt.Errorf("%w: on-disk=%d expected=%d", ErrStateVersionMismatch, version, StateVersion)
	}
	return nil
}
