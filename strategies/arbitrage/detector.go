package arbitrage

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ErbaZZ/wusd-arb/dex"
	"github.com/ErbaZZ/wusd-arb/types"

	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru"
	"go.uber.org/zap"
)

// ErrNoBalance means the wallet holds none of the input asset, so there is
// nothing to search over.
var ErrNoBalance = errors.New("no input balance")

// Opportunity is the detector's verdict for one snapshot
type Opportunity struct {
	Snapshot *types.Snapshot
	Quote    *types.ProfitQuote

	// Profitable is set when the quoted profit clears the minimum
	Profitable bool
	// Changed is set when the quoted profit differs from the previous evaluation
	Changed bool
	// Cached is set when the quote was reused for an identical snapshot
	Cached bool
}

// Detector runs the maximizer on each snapshot and decides whether the
// result is worth acting on.
type Detector struct {
	maximizer *Maximizer
	minProfit *big.Int
	logger    *zap.Logger

	cache      *lru.Cache
	mu         sync.Mutex
	lastProfit *big.Int
}

// NewDetector creates a new arbitrage detector
func NewDetector(maximizer *Maximizer, minProfit *big.Int, cacheSize int, logger *zap.Logger) (*Detector, error) {
	if minProfit == nil || minProfit.Sign() < 0 {
		return nil, fmt.Errorf("min profit must be non-negative")
	}
	cache, err := lru.New(cacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create quote cache: %w", err)
	}

	return &Detector{
		maximizer: maximizer,
		minProfit: new(big.Int).Set(minProfit),
		logger:    logger,
		cache:     cache,
	}, nil
}

// MinProfit returns the profit threshold in input base units
func (d *Detector) MinProfit() *big.Int {
	return new(big.Int).Set(d.minProfit)
}

// Evaluate quotes the best trade for snapshot. An empty balance is reported
// as ErrNoBalance without running the search.
func (d *Detector) Evaluate(snapshot *types.Snapshot) (*Opportunity, error) {
	if snapshot == nil {
		return nil, fmt.Errorf("%w: nil snapshot", ErrDegenerateDomain)
	}
	if snapshot.Balance == nil || snapshot.Balance.Sign() <= 0 {
		return nil, ErrNoBalance
	}

	key := Fingerprint(snapshot)

	var (
		quote  *types.ProfitQuote
		cached bool
	)
	if v, ok := d.cache.Get(key); ok {
		quote = v.(*types.ProfitQuote)
		cached = true
	} else {
		q, err := d.maximizer.GetMostProfitableAmount(snapshot)
		if err != nil {
			return nil, fmt.Errorf("failed to search trade size: %w", err)
		}
		d.cache.Add(key, q)
		quote = q
	}

	d.mu.Lock()
	changed := d.lastProfit == nil || d.lastProfit.Cmp(quote.Profit) != 0
	d.lastProfit = new(big.Int).Set(quote.Profit)
	d.mu.Unlock()

	opp := &Opportunity{
		Snapshot:   snapshot,
		Quote:      quote,
		Profitable: quote.Profitable(d.minProfit),
		Changed:    changed,
		Cached:     cached,
	}

	if d.logger != nil {
		d.logger.Debug("Evaluated snapshot",
			zap.Uint64("block", snapshot.BlockNumber),
			zap.Uint64("fingerprint", key),
			zap.Bool("cached", cached),
			zap.Int("iterations", quote.Iterations),
			zap.String("profit", quote.Profit.String()))
	}

	return opp, nil
}

// Fingerprint hashes every value of the snapshot that the quote depends on.
// The block number is left out so an unchanged state hits the cache.
func Fingerprint(snapshot *types.Snapshot) uint64 {
	h := xxhash.New()
	writeInt(h, snapshot.Balance)
	writeInt(h, snapshot.IntermediateSupply)
	writeInt(h, snapshot.RewardBalance)
	writePath(h, snapshot.MintPath)
	writePath(h, snapshot.RewardPath)
	return h.Sum64()
}

func writePath(h *xxhash.Digest, path dex.SwapPath) {
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], uint64(len(path)))
	_, _ = h.Write(n[:])
	for _, hop := range path {
		writeInt(h, hop.ReserveIn)
		writeInt(h, hop.ReserveOut)
	}
}

// writeInt length-prefixes the value so adjacent fields cannot collide
func writeInt(h *xxhash.Digest, v *big.Int) {
	var b []byte
	if v != nil {
		b = v.Bytes()
	}
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], uint64(len(b)))
	_, _ = h.Write(n[:])
	_, _ = h.Write(b)
}
