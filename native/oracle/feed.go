package oracle

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"launchpad/core/events"
	"launchpad/native/access"
)

const (
	AssetETH = "ETH"
	AssetBNB = "BNB"

	// DefaultMaxAge bounds how old a submitted price may be before readers
	// treat it as stale.
	DefaultMaxAge = time.Hour
)

var (
	// ErrNoFreshQuote indicates the feed has no usable price for the asset.
	ErrNoFreshQuote     = errors.New("oracle: no fresh price available")
	ErrUnsupportedAsset = errors.New("oracle: unsupported asset")
	ErrInvalidPrice     = errors.New("oracle: price must be positive")
	errNilState         = errors.New("oracle feed: state not configured")
)

// PriceQuote is a USD price with 6 decimals reported by an oracle account.
type PriceQuote struct {
	Asset     string
	Price     *big.Int
	Timestamp uint64
	Reporter  common.Address
}

// PriceSource is consulted by the presale to convert payments into USD.
type PriceSource interface {
	LatestPrice(asset string) (*big.Int, error)
}

type feedState interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
}

func quoteKey(asset string) []byte {
	return []byte("oracle/quote/" + asset)
}

func normalizeAsset(asset string) string {
	return strings.ToUpper(strings.TrimSpace(asset))
}

// Feed stores prices pushed by ORACLE_ROLE holders.
type Feed struct {
	state   feedState
	emitter events.Emitter
	auth    access.Authorizer
	maxAge  time.Duration
	nowFn   func() int64
}

func NewFeed() *Feed {
	return &Feed{
		emitter: events.NoopEmitter{},
		maxAge:  DefaultMaxAge,
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

func (f *Feed) SetState(state feedState) { f.state = state }

func (f *Feed) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	f.emitter = emitter
}

func (f *Feed) SetAuthorizer(auth access.Authorizer) { f.auth = auth }

// SetMaxAge overrides the staleness window. Non-positive values restore the
// default.
func (f *Feed) SetMaxAge(maxAge time.Duration) {
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	f.maxAge = maxAge
}

func (f *Feed) SetNowFunc(now func() int64) {
	if now == nil {
		now = func() int64 { return time.Now().Unix() }
	}
	f.nowFn = now
}

func supported(asset string) bool {
	return asset == AssetETH || asset == AssetBNB
}

// Submit records a new price for asset.
func (f *Feed) Submit(caller common.Address, asset string, price *big.Int) error {
	if err := access.Require(f.auth, access.RoleOracle, caller); err != nil {
		return err
	}
	if f.state == nil {
		return errNilState
	}
	asset = normalizeAsset(asset)
	if !supported(asset) {
		return fmt.Errorf("%w: %s", ErrUnsupportedAsset, asset)
	}
	if price == nil || price.Sign() <= 0 {
		return ErrInvalidPrice
	}
	now := f.nowFn()
	quote := &PriceQuote{Asset: asset, Price: new(big.Int).Set(price), Timestamp: uint64(now), Reporter: caller}
	if err := f.state.KVPut(quoteKey(asset), quote); err != nil {
		return err
	}
	f.emitter.Emit(events.OraclePriceSubmitted{Asset: asset, Price: quote.Price, Reporter: caller, Timestamp: now})
	return nil
}

// Quote returns the last stored quote regardless of age.
func (f *Feed) Quote(asset string) (*PriceQuote, bool, error) {
	if f.state == nil {
		return nil, false, errNilState
	}
	quote := new(PriceQuote)
	ok, err := f.state.KVGet(quoteKey(normalizeAsset(asset)), quote)
	if err != nil || !ok {
		return nil, ok, err
	}
	return quote, true, nil
}

// LatestPrice returns the stored price when it is positive and within the
// staleness window, and ErrNoFreshQuote otherwise.
func (f *Feed) LatestPrice(asset string) (*big.Int, error) {
	quote, ok, err := f.Quote(asset)
	if err != nil {
		return nil, err
	}
	if !ok || quote.Price == nil || quote.Price.Sign() <= 0 {
		return nil, ErrNoFreshQuote
	}
	age := f.nowFn() - int64(quote.Timestamp)
	if age < 0 || time.Duration(age)*time.Second > f.maxAge {
		return nil, ErrNoFreshQuote
	}
	return new(big.Int).Set(quote.Price), nil
}
