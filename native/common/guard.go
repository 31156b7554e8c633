package common

import "errors"

var ErrModulePaused = errors.New("module paused")

type PauseView interface {
	IsPaused(module string) bool
}

func Guard(p PauseView, module string) error {
	if p == nil || module == "" {
		return nil
	}
	if p.IsPaused(module) {
		return ErrModulePaused
	}
	return nil
}

// PauseStore is the state surface backing module pause flags.
type PauseStore interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
}

// Pauses persists emergency pause flags per module in ledger state.
type Pauses struct {
	store PauseStore
}

func NewPauses(store PauseStore) *Pauses {
	return &Pauses{store: store}
}

func pauseKey(module string) []byte {
	return []byte("pause/" + module)
}

// IsPaused reports the stored flag. Read failures are treated as paused so a
// corrupted flag never re-opens a halted module.
func (p *Pauses) IsPaused(module string) bool {
	if p == nil || p.store == nil {
		return false
	}
	var paused bool
	ok, err := p.store.KVGet(pauseKey(module), &paused)
	if err != nil {
		return true
	}
	return ok && paused
}

// SetPaused records the pause flag for the module.
func (p *Pauses) SetPaused(module string, paused bool) error {
	if p == nil || p.store == nil {
		return errors.New("pauses: state unavailable")
	}
	return p.store.KVPut(pauseKey(module), paused)
}
