package journal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"launchpad/core/types"
)

const defaultFilePragmas = "mode=rwc&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"

var (
	// ErrPathRequired is returned when the journal path is missing.
	ErrPathRequired = errors.New("journal path must be configured")
	// ErrNotFound is returned when no receipt exists for the hash.
	ErrNotFound = errors.New("receipt not found")
)

// Journal persists transaction receipts and their events so clients can
// look up outcomes after the fact. The ledger state itself lives in the trie.
type Journal struct {
	db *gorm.DB
}

type receiptRow struct {
	TxHash    string `gorm:"primaryKey;size:66"`
	TxType    string `gorm:"size:32;not null"`
	Sender    string `gorm:"size:42;not null;index:idx_receipts_sender,priority:1"`
	Nonce     uint64 `gorm:"not null;index:idx_receipts_sender,priority:2"`
	Height    uint64 `gorm:"not null"`
	BlockTime int64  `gorm:"not null"`
	Success   bool   `gorm:"not null"`
	Error     string `gorm:"type:text"`
	StateRoot string `gorm:"size:66;not null"`
	CreatedAt time.Time
}

func (receiptRow) TableName() string { return "receipts" }

type eventRow struct {
	ID         uint64 `gorm:"primaryKey;autoIncrement"`
	TxHash     string `gorm:"size:66;not null;index:idx_events_tx"`
	Idx        int    `gorm:"not null"`
	Height     uint64 `gorm:"not null;index:idx_events_type_height,priority:2"`
	EventType  string `gorm:"size:64;not null;index:idx_events_type_height,priority:1"`
	Attributes string `gorm:"type:text;not null"`
}

func (eventRow) TableName() string { return "events" }

// FileDSN converts a filesystem path into an on-disk SQLite DSN.
func FileDSN(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", ErrPathRequired
	}
	abs, err := filepath.Abs(trimmed)
	if err != nil {
		return "", fmt.Errorf("resolve journal path: %w", err)
	}
	return fmt.Sprintf("file:%s?%s", abs, defaultFilePragmas), nil
}

// dialectorFor picks PostgreSQL for postgres:// URLs and SQLite otherwise.
func dialectorFor(dsn string) gorm.Dialector {
	lower := strings.ToLower(dsn)
	if strings.HasPrefix(lower, "postgres://") || strings.HasPrefix(lower, "postgresql://") {
		return postgres.Open(dsn)
	}
	return sqlite.Open(dsn)
}

// Open connects to the journal database and migrates its tables. The DSN is
// either a SQLite DSN (see FileDSN) or a PostgreSQL URL.
func Open(dsn string) (*Journal, error) {
	trimmed := strings.TrimSpace(dsn)
	if trimmed == "" {
		return nil, ErrPathRequired
	}
	db, err := gorm.Open(dialectorFor(trimmed), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.AutoMigrate(&receiptRow{}, &eventRow{}); err != nil {
		if sqlDB, dbErr := db.DB(); dbErr == nil {
			_ = sqlDB.Close()
		}
		return nil, fmt.Errorf("migrate journal: %w", err)
	}
	return &Journal{db: db}, nil
}

// Close releases database resources.
func (j *Journal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	sqlDB, err := j.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// RecordReceipt stores the receipt and its events atomically.
func (j *Journal) RecordReceipt(ctx context.Context, receipt *types.Receipt) error {
	if j == nil {
		return fmt.Errorf("journal not configured")
	}
	if receipt == nil {
		return fmt.Errorf("receipt must not be nil")
	}
	row := receiptRow{
		TxHash:    receipt.TxHash.Hex(),
		TxType:    receipt.Type,
		Sender:    receipt.From.Hex(),
		Nonce:     receipt.Nonce,
		Height:    receipt.Height,
		BlockTime: receipt.BlockTime,
		Success:   receipt.Success,
		Error:     receipt.Error,
		StateRoot: receipt.StateRoot.Hex(),
	}
	events := make([]eventRow, 0, len(receipt.Events))
	for i, evt := range receipt.Events {
		attrs, err := json.Marshal(evt.Attributes)
		if err != nil {
			return fmt.Errorf("encode event attributes: %w", err)
		}
		events = append(events, eventRow{
			TxHash:     row.TxHash,
			Idx:        i,
			Height:     receipt.Height,
			EventType:  evt.Type,
			Attributes: string(attrs),
		})
	}
	return j.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&row).Error; err != nil {
			return fmt.Errorf("insert receipt: %w", err)
		}
		if len(events) == 0 {
			return nil
		}
		if err := tx.Create(&events).Error; err != nil {
			return fmt.Errorf("insert events: %w", err)
		}
		return nil
	})
}

// Receipt loads the receipt recorded for the transaction hash.
func (j *Journal) Receipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	if j == nil {
		return nil, fmt.Errorf("journal not configured")
	}
	var row receiptRow
	err := j.db.WithContext(ctx).Where("tx_hash = ?", hash.Hex()).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query receipt: %w", err)
	}
	receipt := &types.Receipt{
		TxHash:    hash,
		Type:      row.TxType,
		From:      common.HexToAddress(row.Sender),
		Nonce:     row.Nonce,
		Height:    row.Height,
		BlockTime: row.BlockTime,
		Success:   row.Success,
		Error:     row.Error,
		StateRoot: common.HexToHash(row.StateRoot),
	}

	events, err := j.Events(ctx, EventFilter{TxHash: &hash})
	if err != nil {
		return nil, err
	}
	receipt.Events = make([]types.Event, 0, len(events))
	for _, evt := range events {
		receipt.Events = append(receipt.Events, evt.Event)
	}
	return receipt, nil
}

// EventFilter narrows an event query. Zero values match everything.
type EventFilter struct {
	TxHash     *common.Hash
	Type       string
	FromHeight uint64
	Limit      int
}

// RecordedEvent is an event together with its position in the journal.
type RecordedEvent struct {
	TxHash common.Hash `json:"txHash"`
	Index  int         `json:"index"`
	Height uint64      `json:"height"`
	types.Event
}

// Events returns recorded events in execution order.
func (j *Journal) Events(ctx context.Context, filter EventFilter) ([]RecordedEvent, error) {
	if j == nil {
		return nil, fmt.Errorf("journal not configured")
	}
	query := j.db.WithContext(ctx).Model(&eventRow{})
	if filter.TxHash != nil {
		query = query.Where("tx_hash = ?", filter.TxHash.Hex())
	}
	if t := strings.TrimSpace(filter.Type); t != "" {
		query = query.Where("event_type = ?", t)
	}
	if filter.FromHeight > 0 {
		query = query.Where("height >= ?", filter.FromHeight)
	}
	query = query.Order("id ASC")
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	var rows []eventRow
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}

	out := make([]RecordedEvent, 0, len(rows))
	for _, row := range rows {
		evt := RecordedEvent{
			TxHash: common.HexToHash(row.TxHash),
			Index:  row.Idx,
			Height: row.Height,
			Event:  types.Event{Type: row.EventType, Attributes: map[string]string{}},
		}
		if row.Attributes != "" {
			if err := json.Unmarshal([]byte(row.Attributes), &evt.Attributes); err != nil {
				return nil, fmt.Errorf("decode event attributes: %w", err)
			}
		}
		out = append(out, evt)
	}
	return out, nil
}
