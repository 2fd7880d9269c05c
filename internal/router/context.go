package router

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/smartsor/sor/internal/venue"
	"github.com/smartsor/sor/pkg/cache"
	"github.com/smartsor/sor/pkg/types"
)

// ContextBuilder assembles the venue-state snapshot for one routing
// decision. Market data goes through the short-TTL cache to bound call
// volume to the venue layer; health and fee lookups that fail for an
// individual venue leave that venue absent from the corresponding map.
type ContextBuilder struct {
	registry *venue.Registry
	cache    *cache.MemoryCache
	config   Config
	logger   *logrus.Entry
}

func NewContextBuilder(registry *venue.Registry, memCache *cache.MemoryCache, config Config) *ContextBuilder {
	return &ContextBuilder{
		registry: registry,
		cache:    memCache,
		config:   config,
		logger:   logrus.WithField("component", "context-builder"),
	}
}

// Build snapshots market data, order books, health and fees for all active
// venues. Fails only when no venue is active.
func (cb *ContextBuilder) Build(ctx context.Context, order *types.Order, strategy Strategy) (*RoutingContext, error) {
	active := cb.registry.ActiveVenues()
	if len(active) == 0 {
		return nil, ErrNoVenuesAvailable
	}

	rc := &RoutingContext{
		Order:      order,
		Strategy:   strategy,
		Venues:     active,
		MarketData: make(map[string]*types.MarketData),
		OrderBooks: make(map[string]*types.OrderBookDepth),
		Health:     make(map[string]*types.VenueHealth),
		Fees:       make(map[string]*types.FeeSchedule),
		Timestamp:  time.Now(),
	}

	for _, name := range active {
		connector, ok := cb.registry.Get(name)
		if !ok {
			continue
		}

		md, err := cb.marketData(ctx, connector, order.Symbol)
		if err != nil {
			cb.logger.WithFields(logrus.Fields{
				"venue":  name,
				"symbol": order.Symbol,
			}).WithError(err).Debug("Skipping venue market data")
		} else {
			rc.MarketData[name] = md
		}

		book, err := connector.GetOrderBook(ctx, order.Symbol, cb.config.OrderBookDepth)
		if err != nil {
			cb.logger.WithField("venue", name).WithError(err).Debug("Skipping venue order book")
		} else {
			rc.OrderBooks[name] = book
		}

		if health, err := connector.GetHealth(ctx); err == nil {
			rc.Health[name] = health
		}

		if fees, err := connector.GetFeeSchedule(ctx); err == nil {
			rc.Fees[name] = fees
		}
	}

	return rc, nil
}

func (cb *ContextBuilder) marketData(ctx context.Context, connector venue.Connector, symbol string) (*types.MarketData, error) {
	key := fmt.Sprintf("market:%s:%s", connector.Name(), symbol)
	if cached, ok := cb.cache.Get(key); ok {
		return cached.(*types.MarketData), nil
	}

	md, err := connector.GetMarketData(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch market data: %w", err)
	}

	cb.cache.Set(key, md, cb.config.CacheTTL)
	return md, nil
}
