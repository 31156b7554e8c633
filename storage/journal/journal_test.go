package journal

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/big"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"launchpad/core/types"
)

func openTestJournal(t *testing.T) *Journal {
	t.Helper()
	dsn, err := FileDSN(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("dsn: %v", err)
	}
	j, err := Open(dsn)
	if err != nil {
		t.Fatalf("open journal: %v", err)
	}
	t.Cleanup(func() { _ = j.Close() })
	return j
}

func TestRecordAndLoadReceipt(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()
	receipt := &types.Receipt{
		TxHash:    common.HexToHash("0x01"),
		Type:      "transfer",
		From:      common.HexToAddress("0xaa"),
		Nonce:     3,
		Height:    7,
		BlockTime: 1700000000,
		Success:   true,
		StateRoot: common.HexToHash("0xbeef"),
		Events: []types.Event{
			{Type: "token.transfer", Attributes: map[string]string{"amount": "10"}},
			{Type: "token.burn", Attributes: map[string]string{"amount": "1"}},
		},
	}
	if err := j.RecordReceipt(ctx, receipt); err != nil {
		t.Fatalf("record: %v", err)
	}
	loaded, err := j.Receipt(ctx, receipt.TxHash)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.From != receipt.From || loaded.Nonce != 3 || loaded.Height != 7 || !loaded.Success {
		t.Fatalf("unexpected receipt: %+v", loaded)
	}
	if loaded.StateRoot != receipt.StateRoot {
		t.Fatalf("state root mismatch: %s", loaded.StateRoot.Hex())
	}
	if len(loaded.Events) != 2 || loaded.Events[0].Type != "token.transfer" || loaded.Events[1].Attributes["amount"] != "1" {
		t.Fatalf("unexpected events: %+v", loaded.Events)
	}
}

func TestFailedReceiptKeepsError(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()
	receipt := &types.Receipt{TxHash: common.HexToHash("0x02"), Type: "buy", Error: "Presale not active"}
	if err := j.RecordReceipt(ctx, receipt); err != nil {
		t.Fatalf("record: %v", err)
	}
	loaded, err := j.Receipt(ctx, receipt.TxHash)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Success || loaded.Error != "Presale not active" || len(loaded.Events) != 0 {
		t.Fatalf("unexpected receipt: %+v", loaded)
	}
}

func TestReceiptNotFound(t *testing.T) {
	j := openTestJournal(t)
	if _, err := j.Receipt(context.Background(), common.HexToHash("0x03")); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestEventFilters(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()
	for i, height := range []uint64{1, 2, 3} {
		receipt := &types.Receipt{
			TxHash:  common.BigToHash(big.NewInt(int64(i + 10))),
			Type:    "buy",
			Height:  height,
			Success: true,
			Events: []types.Event{
				{Type: "presale.purchase", Attributes: map[string]string{"height": fmt.Sprint(height)}},
				{Type: "presale.referral", Attributes: map[string]string{}},
			},
		}
		if err := j.RecordReceipt(ctx, receipt); err != nil {
			t.Fatalf("record %d: %v", i, err)
		}
	}

	purchases, err := j.Events(ctx, EventFilter{Type: "presale.purchase", FromHeight: 2})
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	if len(purchases) != 2 || purchases[0].Attributes["height"] != "2" || purchases[1].Height != 3 {
		t.Fatalf("unexpected purchases: %+v", purchases)
	}

	limited, err := j.Events(ctx, EventFilter{Limit: 3})
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	if len(limited) != 3 || limited[2].Index != 0 || limited[2].Height != 2 {
		t.Fatalf("unexpected limited events: %+v", limited)
	}
}

func TestDuplicateReceiptRejected(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()
	receipt := &types.Receipt{TxHash: common.HexToHash("0x04"), Type: "burn", Success: true,
		Events: []types.Event{{Type: "token.burn", Attributes: map[string]string{"amount": "1"}}}}
	if err := j.RecordReceipt(ctx, receipt); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := j.RecordReceipt(ctx, receipt); err == nil {
		t.Fatalf("expected duplicate hash to be rejected")
	}
	events, err := j.Events(ctx, EventFilter{TxHash: &receipt.TxHash})
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("rolled back insert must not leave events behind: %+v", events)
	}
}

func TestDialectorSelection(t *testing.T) {
	cases := map[string]string{
		"postgres://journal:pw@db:5432/launchpad":     "postgres",
		"POSTGRESQL://journal@db/launchpad":           "postgres",
		"file:/var/lib/launchpad/journal.db?mode=rwc": "sqlite",
	}
	for dsn, want := range cases {
		if got := dialectorFor(dsn).Name(); got != want {
			t.Fatalf("dialectorFor(%q) = %s, want %s", dsn, got, want)
		}
	}
}

func TestOpenRequiresDSN(t *testing.T) {
	if _, err := Open("  "); !errors.Is(err, ErrPathRequired) {
		t.Fatalf("expected ErrPathRequired, got %v", err)
	}
	if _, err := FileDSN(""); !errors.Is(err, ErrPathRequired) {
		t.Fatalf("expected ErrPathRequired, got %v", err)
	}
}

func TestExportEventsParquet(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()
	receipt := &types.Receipt{
		TxHash:  common.HexToHash("0x05"),
		Type:    "buy",
		Height:  9,
		Success: true,
		Events: []types.Event{
			{Type: "presale.purchase", Attributes: map[string]string{"asset": "ETH"}},
			{Type: "presale.referral", Attributes: map[string]string{}},
		},
	}
	if err := j.RecordReceipt(ctx, receipt); err != nil {
		t.Fatalf("record: %v", err)
	}

	var buf bytes.Buffer
	rows, err := j.ExportEvents(ctx, &buf, EventFilter{Type: "presale.purchase"})
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if rows != 1 {
		t.Fatalf("expected 1 row, got %d", rows)
	}
	data := buf.Bytes()
	if len(data) < 8 || !bytes.HasPrefix(data, []byte("PAR1")) || !bytes.HasSuffix(data, []byte("PAR1")) {
		t.Fatalf("output is not a parquet file (%d bytes)", len(data))
	}
}
