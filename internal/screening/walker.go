package screening

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/cryptocompliance/btc-screening/internal/domain"
	"github.com/cryptocompliance/btc-screening/internal/indexer"
	"github.com/cryptocompliance/btc-screening/internal/metrics"
	"github.com/cryptocompliance/btc-screening/internal/pkg/logger"
)

// TxFetcher is the indexer surface the walker needs
type TxFetcher interface {
	GetTransaction(ctx context.Context, txid string) (*domain.BitcoinTransaction, error)
	GetAddressTransactions(ctx context.Context, addr string, limit int) ([]string, error)
}

// SanctionsLookup resolves an address against the sanctions index
type SanctionsLookup interface {
	FindByAddress(ctx context.Context, addr string) ([]*domain.SanctionEntity, error)
}

// WalkerConfig bounds the traversal
type WalkerConfig struct {
	BatchSize    int           // concurrent tx fetches per batch
	TxsPerHop    int           // txids expanded per hop
	AddrFanout   int           // unvisited addresses followed per transaction
	TxsPerTarget int           // txids fetched for the walk target
	TxsPerAddr   int           // txids fetched per followed address
	CacheTTL     time.Duration // walk memoization window
}

// DefaultWalkerConfig returns the traversal bounds used in production
func DefaultWalkerConfig() WalkerConfig {
	return WalkerConfig{
		BatchSize:    5,
		TxsPerHop:    10,
		AddrFanout:   3,
		TxsPerTarget: 25,
		TxsPerAddr:   5,
		CacheTTL:     30 * time.Minute,
	}
}

type walkCacheEntry struct {
	analysis *domain.PathAnalysis
	cachedAt time.Time
}

// Walker performs bounded breadth-first traversal of the transaction
// graph, reporting sanctioned addresses reachable from a target.
type Walker struct {
	fetcher   TxFetcher
	sanctions SanctionsLookup
	cfg       WalkerConfig
	log       *logger.Logger
	now       func() time.Time

	cacheMu sync.RWMutex
	cache   map[string]walkCacheEntry
	group   singleflight.Group
}

// NewWalker creates a path walker
func NewWalker(fetcher TxFetcher, sanctions SanctionsLookup, cfg WalkerConfig, log *logger.Logger) *Walker {
	return &Walker{
		fetcher:   fetcher,
		sanctions: sanctions,
		cfg:       cfg,
		log:       log.Named("path_walker"),
		now:       time.Now,
		cache:     make(map[string]walkCacheEntry),
	}
}

// Analyze walks the transaction graph from target up to maxHops edges
// away. Identical concurrent walks share one traversal; completed walks
// are memoized for the configured TTL.
func (w *Walker) Analyze(ctx context.Context, target string, maxHops int) (*domain.PathAnalysis, error) {
	if maxHops <= 0 {
		return &domain.PathAnalysis{
			TargetAddress: target,
			MaxHops:       maxHops,
			PathNodes:     []domain.PathNode{},
		}, nil
	}

	key := fmt.Sprintf("%s:%d", target, maxHops)
	if cached := w.cachedAnalysis(key); cached != nil {
		return cached, nil
	}

	v, err, _ := w.group.Do(key, func() (interface{}, error) {
		// A follower may arrive just after the leader stored the result
		if cached := w.cachedAnalysis(key); cached != nil {
			return cached, nil
		}

		analysis, err := w.walk(ctx, target, maxHops)
		if err != nil {
			return nil, err
		}

		w.cacheMu.Lock()
		w.cache[key] = walkCacheEntry{analysis: analysis, cachedAt: w.now()}
		w.cacheMu.Unlock()
		return analysis, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.PathAnalysis), nil
}

func (w *Walker) cachedAnalysis(key string) *domain.PathAnalysis {
	w.cacheMu.RLock()
	entry, ok := w.cache[key]
	w.cacheMu.RUnlock()
	if !ok {
		return nil
	}
	if w.now().Sub(entry.cachedAt) >= w.cfg.CacheTTL {
		w.cacheMu.Lock()
		delete(w.cache, key)
		w.cacheMu.Unlock()
		return nil
	}
	return entry.analysis
}

// walk runs the breadth-first expansion. Fetch failures on individual
// transactions or addresses are skipped; only a failure to list the
// target's transactions, or cancellation, fails the walk.
func (w *Walker) walk(ctx context.Context, target string, maxHops int) (*domain.PathAnalysis, error) {
	started := time.Now()

	analysis := &domain.PathAnalysis{
		TargetAddress: target,
		MaxHops:       maxHops,
		PathNodes:     []domain.PathNode{},
	}
	visitedAddrs := map[string]struct{}{target: {}}
	visitedTxs := make(map[string]struct{})

	queue, err := w.fetcher.GetAddressTransactions(ctx, target, w.cfg.TxsPerTarget)
	if err != nil {
		return nil, err
	}

	for hop := 0; hop < maxHops && len(queue) > 0; hop++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		current := queue
		if len(current) > w.cfg.TxsPerHop {
			current = current[:w.cfg.TxsPerHop]
		}
		queue = nil

		for start := 0; start < len(current); start += w.cfg.BatchSize {
			end := start + w.cfg.BatchSize
			if end > len(current) {
				end = len(current)
			}

			txs, err := w.fetchBatch(ctx, current[start:end], visitedTxs)
			if err != nil {
				return nil, err
			}

			for _, tx := range txs {
				if _, seen := visitedTxs[tx.TxID]; seen {
					continue
				}
				visitedTxs[tx.TxID] = struct{}{}
				analysis.TotalNodesAnalyzed++

				next := w.processTx(ctx, tx, hop, maxHops, visitedAddrs, analysis)
				queue = append(queue, next...)
			}
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	analysis.RiskPropagation = riskPropagation(analysis)

	metrics.ObserveWalk(analysis.TotalNodesAnalyzed, analysis.SanctionedNodesFound)
	w.log.WalkCompleted(target, maxHops, analysis.TotalNodesAnalyzed, analysis.SanctionedNodesFound,
		time.Since(started).Milliseconds())
	return analysis, nil
}

// fetchBatch fetches a batch of transactions in parallel. Individual
// fetch failures are logged and dropped; cancellation aborts the batch.
func (w *Walker) fetchBatch(ctx context.Context, txids []string, visitedTxs map[string]struct{}) ([]*domain.BitcoinTransaction, error) {
	results := make([]*domain.BitcoinTransaction, len(txids))

	g, gctx := errgroup.WithContext(ctx)
	for i, txid := range txids {
		if _, seen := visitedTxs[txid]; seen {
			continue
		}
		i, txid := i, txid
		g.Go(func() error {
			tx, err := w.fetcher.GetTransaction(gctx, txid)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				w.log.Debug("skipping unfetchable transaction",
					logger.StringField("txid", txid), logger.ErrorField(err))
				return nil
			}
			results[i] = tx
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	fetched := results[:0]
	for _, tx := range results {
		if tx != nil {
			fetched = append(fetched, tx)
		}
	}
	return fetched, nil
}

// processTx matches a transaction's addresses against the sanctions
// index and, below the hop bound, selects addresses to follow. Returns
// the txids enqueued for the next hop.
func (w *Walker) processTx(ctx context.Context, tx *domain.BitcoinTransaction, hop, maxHops int,
	visitedAddrs map[string]struct{}, analysis *domain.PathAnalysis) []string {

	addrs := indexer.ExtractAddresses(tx)

	for _, addr := range addrs {
		if _, seen := visitedAddrs[addr]; seen {
			continue
		}

		entities, err := w.sanctions.FindByAddress(ctx, addr)
		if err != nil {
			w.log.Warn("sanctions lookup failed during walk",
				logger.StringField("address", addr), logger.ErrorField(err))
			continue
		}
		if len(entities) == 0 {
			continue
		}

		node := domain.PathNode{
			Address:          addr,
			TxID:             tx.TxID,
			Hop:              hop + 1,
			Value:            tx.AddressValue(addr),
			Timestamp:        tx.BlockTime * 1000,
			RiskContribution: hopContribution(hop+1, len(entities)),
		}
		analysis.PathNodes = append(analysis.PathNodes, node)
		analysis.SanctionedNodesFound++
		w.log.SanctionedNodeFound(addr, tx.TxID, hop+1)
	}

	if hop+1 >= maxHops {
		return nil
	}

	var next []string
	followed := 0
	for _, addr := range addrs {
		if followed >= w.cfg.AddrFanout {
			break
		}
		if _, seen := visitedAddrs[addr]; seen {
			continue
		}
		visitedAddrs[addr] = struct{}{}
		followed++

		txids, err := w.fetcher.GetAddressTransactions(ctx, addr, w.cfg.TxsPerAddr)
		if err != nil {
			w.log.Debug("skipping unexpandable address",
				logger.StringField("address", addr), logger.ErrorField(err))
			continue
		}
		next = append(next, txids...)
	}
	return next
}
