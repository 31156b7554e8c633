package state

import (
	"errors"
	"testing"
)

type kvRecord struct {
	Name  string
	Count uint64
}

func TestKVRoundTripAndDelete(t *testing.T) {
	mgr := newTestManager(t)
	key := []byte("module/record")

	var missing kvRecord
	ok, err := mgr.KVGet(key, &missing)
	if err != nil {
		t.Fatalf("kv get: %v", err)
	}
	if ok {
		t.Fatalf("expected missing key")
	}

	if err := mgr.KVPut(key, &kvRecord{Name: "phase", Count: 2}); err != nil {
		t.Fatalf("kv put: %v", err)
	}
	var got kvRecord
	ok, err = mgr.KVGet(key, &got)
	if err != nil || !ok {
		t.Fatalf("kv get: ok=%v err=%v", ok, err)
	}
	if got.Name != "phase" || got.Count != 2 {
		t.Fatalf("unexpected record: %+v", got)
	}

	if err := mgr.KVDelete(key); err != nil {
		t.Fatalf("kv delete: %v", err)
	}
	ok, err = mgr.KVGet(key, nil)
	if err != nil {
		t.Fatalf("kv get: %v", err)
	}
	if ok {
		t.Fatalf("expected key to be deleted")
	}
}

func TestKVAppendDeduplicates(t *testing.T) {
	mgr := newTestManager(t)
	key := []byte("module/index")

	var empty [][]byte
	if err := mgr.KVGetList(key, &empty); err != nil {
		t.Fatalf("kv list: %v", err)
	}
	if empty == nil || len(empty) != 0 {
		t.Fatalf("expected empty non-nil list")
	}

	for _, v := range [][]byte{{0x01}, {0x02}, {0x01}} {
		if err := mgr.KVAppend(key, v); err != nil {
			t.Fatalf("kv append: %v", err)
		}
	}
	var list [][]byte
	if err := mgr.KVGetList(key, &list); err != nil {
		t.Fatalf("kv list: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(list))
	}
}

func TestStateVersionRoundTrip(t *testing.T) {
	mgr := newTestManager(t)
	if _, ok, err := mgr.StateVersion(); err != nil || ok {
		t.Fatalf("expected no stored version: ok=%v err=%v", ok, err)
	}
	if err := mgr.SetStateVersion(StateVersion); err != nil {
		t.Fatalf("set version: %v", err)
	}
	version, ok, err := mgr.StateVersion()
	if err != nil || !ok {
		t.Fatalf("state version: ok=%v err=%v", ok, err)
	}
	if version != StateVersion {
		t.Fatalf("unexpected version %d", version)
	}
}

func TestCheckStateVersion(t *testing.T) {
	mgr := newTestManager(t)
	if err := mgr.CheckStateVersion(); !errors.Is(err, ErrStateVersionMismatch) {
		t.Fatalf("expected unstamped state to fail, got %v", err)
	}
	if err := mgr.SetStateVersion(StateVersion + 1); err != nil {
		t.Fatalf("set version: %v", err)
	}
	if err := mgr.CheckStateVersion(); !errors.Is(err, ErrStateVersionMismatch) {
		t.Fatalf("expected newer layout to fail, got %v", err)
	}
	if err := mgr.SetStateVersion(StateVersion); err != nil {
		t.Fatalf("set version: %v", err)
	}
	if err := mgr.CheckStateVersion(); err != nil {
		t.Fatalf("check version: %v", err)
	}
}
