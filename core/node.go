package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"

	"launchpad/core/events"
	"launchpad/core/genesis"
	lpstate "launchpad/core/state"
	"launchpad/core/types"
	"launchpad/observability"
	"launchpad/observability/metrics"
	telemetry "launchpad/observability/otel"
	"launchpad/storage"
	"launchpad/storage/trie"
)

var (
	ErrChainIDMismatch = errors.New("transaction chain id mismatch")
	ErrNonceMismatch   = errors.New("transaction nonce mismatch")
	ErrNilTransaction  = errors.New("transaction must not be nil")
)

var headKey = []byte("launchpad/chain/head")

// Journal records receipts outside the state trie.
type Journal interface {
	RecordReceipt(ctx context.Context, receipt *types.Receipt) error
	Receipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)
}

// NodeOptions carries the optional collaborators of a Node.
type NodeOptions struct {
	Journal Journal
	Logger  *slog.Logger
	// Clock stamps transactions. Defaults to time.Now.
	Clock func() time.Time
}

type chainHead struct {
	Root      common.Hash
	Height    uint64
	BlockTime uint64
	ChainID   uint64
}

// Node is the central controller, wiring storage, state and the receipt
// journal together. Every transaction is applied as its own atomic state
// transition.
type Node struct {
	db        storage.Database
	state     *StateProcessor
	journal   Journal
	logger    *slog.Logger
	clock     func() time.Time
	chainID   uint64
	height    uint64
	blockTime int64
	stateMu   sync.Mutex
}

// NewNode opens the ledger stored in db. An empty database is initialised from
// spec; an existing one must carry the same chain id.
func NewNode(db storage.Database, spec *genesis.GenesisSpec, opts NodeOptions) (*Node, error) {
	if db == nil {
		return nil, fmt.Errorf("database must not be nil")
	}
	if spec == nil {
		return nil, fmt.Errorf("genesis spec must not be nil")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}

	head, err := loadHead(db)
	if err != nil {
		return nil, err
	}
	if head == nil {
		root, err := genesis.BuildGenesisFromSpec(spec, db)
		if err != nil {
			return nil, fmt.Errorf("build genesis: %w", err)
		}
		head = &chainHead{
			Root:      root,
			BlockTime: uint64(spec.GenesisTimestamp().Unix()),
			ChainID:   spec.ChainID,
		}
		if err := storeHead(db, head); err != nil {
			return nil, err
		}
		logger.Info("genesis initialised", slog.String("root", root.Hex()), slog.Uint64("chain_id", spec.ChainID))
	} else if head.ChainID != spec.ChainID {
		return nil, fmt.Errorf("%w: database has %d, genesis has %d", ErrChainIDMismatch, head.ChainID, spec.ChainID)
	}

	stateTrie, err := trie.NewTrie(db, head.Root.Bytes())
	if err != nil {
		return nil, fmt.Errorf("open state trie: %w", err)
	}
	sp, err := NewStateProcessor(stateTrie, ProcessorConfig{
		TokenSymbol:  spec.Token.Symbol,
		PriceFeed:    spec.Oracle.Enabled,
		PriceMode:    spec.PriceMode(),
		OracleMaxAge: spec.OracleMaxAge(),
	})
	if err != nil {
		return nil, err
	}
	if err := lpstate.NewManager(stateTrie).CheckStateVersion(); err != nil {
		return nil, err
	}

	node := &Node{
		db:        db,
		state:     sp,
		journal:   opts.Journal,
		logger:    logger,
		clock:     clock,
		chainID:   head.ChainID,
		height:    head.Height,
		blockTime: int64(head.BlockTime),
	}
	sp.SetBlockTime(node.blockTime)
	for n := uint64(1); n <= uint64(len(spec.Phases())); n++ {
		metrics.Presale().InitPhase(n)
	}
	return node, nil
}

func loadHead(db storage.Database) (*chainHead, error) {
	raw, err := db.Get(headKey)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load chain head: %w", err)
	}
	head := new(chainHead)
	if err := rlp.DecodeBytes(raw, head); err != nil {
		return nil, fmt.Errorf("decode chain head: %w", err)
	}
	return head, nil
}

func storeHead(db storage.Database, head *chainHead) error {
	encoded, err := rlp.EncodeToBytes(head)
	if err != nil {
		return err
	}
	if err := db.Put(headKey, encoded); err != nil {
		return fmt.Errorf("store chain head: %w", err)
	}
	return nil
}

// ChainID returns the chain id transactions must be signed for.
func (n *Node) ChainID() uint64 { return n.chainID }

// Height returns the number of committed transactions.
func (n *Node) Height() uint64 {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.height
}

// StateRoot returns the last committed state root.
func (n *Node) StateRoot() common.Hash {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.state.CurrentRoot()
}

// nextBlockTime never moves backwards so time-based schedules stay monotonic.
func (n *Node) nextBlockTime() int64 {
	now := n.clock().Unix()
	if now < n.blockTime {
		return n.blockTime
	}
	return now
}

// SubmitTransaction verifies the envelope and executes it. A transaction that
// reverts still consumes its nonce; the revert reason is carried in the
// receipt rather than the returned error.
func (n *Node) SubmitTransaction(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	if tx == nil {
		return nil, ErrNilTransaction
	}
	if tx.ChainID != n.chainID {
		return nil, fmt.Errorf("%w: expected %d, got %d", ErrChainIDMismatch, n.chainID, tx.ChainID)
	}
	from, err := tx.From()
	if err != nil {
		return nil, err
	}
	return n.execute(ctx, from, tx)
}

var txCounter, _ = telemetry.Meter("launchpad/core").Int64Counter("launchpad.ledger.transactions",
	metric.WithDescription("Executed transactions by type and outcome."))

func (n *Node) execute(ctx context.Context, from common.Address, tx *types.Transaction) (*types.Receipt, error) {
	ctx, span := telemetry.Tracer("launchpad/core").Start(ctx, "node.execute")
	defer span.End()
	span.SetAttributes(attribute.String("tx.type", tx.Type.String()))

	hash, err := tx.Hash()
	if err != nil {
		return nil, err
	}

	n.stateMu.Lock()
	defer n.stateMu.Unlock()

	manager := n.state.Manager()
	expected, err := manager.AccountNonce(from.Bytes())
	if err != nil {
		return nil, err
	}
	if tx.Nonce != expected {
		return nil, fmt.Errorf("%w: expected %d, got %d", ErrNonceMismatch, expected, tx.Nonce)
	}

	start := time.Now()
	blockTime := n.nextBlockTime()
	n.state.SetBlockTime(blockTime)

	applyErr := n.state.ApplyTransaction(from, tx)
	var emitted []types.Event
	if applyErr != nil {
		if err := n.state.Discard(); err != nil {
			return nil, fmt.Errorf("discard reverted state: %w", err)
		}
	} else {
		emitted = n.state.DrainEvents()
	}

	if err := manager.SetAccountNonce(from.Bytes(), expected+1); err != nil {
		_ = n.state.Discard()
		return nil, err
	}
	height := n.height + 1
	root, err := n.state.Commit(height)
	if err != nil {
		_ = n.state.Discard()
		return nil, fmt.Errorf("commit state: %w", err)
	}
	if err := storeHead(n.db, &chainHead{Root: root, Height: height, BlockTime: uint64(blockTime), ChainID: n.chainID}); err != nil {
		return nil, err
	}
	n.height = height
	n.blockTime = blockTime

	receipt := &types.Receipt{
		TxHash:    hash,
		Type:      tx.Type.String(),
		From:      from,
		Nonce:     tx.Nonce,
		Height:    height,
		BlockTime: blockTime,
		Success:   applyErr == nil,
		StateRoot: root,
		Events:    emitted,
	}
	if receipt.Events == nil {
		receipt.Events = []types.Event{}
	}
	if applyErr != nil {
		receipt.Error = applyErr.Error()
		span.SetStatus(codes.Error, receipt.Error)
	}

	if n.journal != nil {
		if err := n.journal.RecordReceipt(ctx, receipt); err != nil {
			n.logger.Error("record receipt", slog.String("tx_hash", hash.Hex()), slog.Any("error", err))
		}
	}
	n.observe(receipt, time.Since(start), applyErr)
	txCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("tx.type", receipt.Type),
		attribute.Bool("tx.success", receipt.Success)))
	return receipt, nil
}

func (n *Node) observe(receipt *types.Receipt, elapsed time.Duration, applyErr error) {
	observability.Ledger().Observe(receipt.Type, receipt.Height, elapsed, applyErr)
	if applyErr != nil {
		n.logger.Warn("transaction reverted",
			slog.String("tx_hash", receipt.TxHash.Hex()),
			slog.String("tx_type", receipt.Type),
			slog.Uint64("height", receipt.Height),
			slog.String("error", applyErr.Error()))
		return
	}
	n.logger.Info("transaction applied",
		slog.String("tx_hash", receipt.TxHash.Hex()),
		slog.String("tx_type", receipt.Type),
		slog.Uint64("height", receipt.Height),
		slog.Int("events", len(receipt.Events)))

	presaleTouched := false
	for _, evt := range receipt.Events {
		observability.Events().Record(evt.Type)
		switch {
		case evt.Type == events.TypePresalePurchase:
			metrics.Presale().ObservePurchase(evt.Attributes["asset"], evt.Attributes["referrer"] != "")
			if evt.Attributes["priceSource"] == "oracle" {
				n.observeQuoteAge(evt.Attributes["asset"], receipt.BlockTime)
			}
		case evt.Type == events.TypeOraclePriceSubmitted:
			if price, err := parseAmount("price", evt.Attributes["price"]); err == nil {
				observability.Oracle().RecordPrice(evt.Attributes["asset"], price)
			}
		}
		if strings.HasPrefix(evt.Type, types.ModulePresale+".") || evt.Attributes["module"] == types.ModulePresale {
			presaleTouched = true
		}
	}
	if presaleTouched {
		n.refreshPresaleGauges()
	}
}

func (n *Node) observeQuoteAge(asset string, blockTime int64) {
	quote, ok, err := n.state.Oracle.Quote(asset)
	if err != nil || !ok {
		return
	}
	age := blockTime - int64(quote.Timestamp)
	if age < 0 {
		age = 0
	}
	observability.Oracle().RecordFreshness(asset, time.Duration(age)*time.Second)
}

func (n *Node) refreshPresaleGauges() {
	stats, err := n.state.Presale.Stats()
	if err != nil {
		n.logger.Debug("presale stats unavailable", slog.Any("error", err))
		return
	}
	metrics.Presale().SetTotals(stats.TotalRaisedUSD, stats.Outstanding, stats.Paused)
	for i := uint64(1); i <= stats.PhaseCount; i++ {
		phase, err := n.state.Presale.Phase(i)
		if err != nil {
			continue
		}
		metrics.Presale().SetPhaseSold(i, phase.TokensSold)
	}
}
