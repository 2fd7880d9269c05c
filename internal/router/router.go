package router

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/smartsor/sor/internal/monitor"
	"github.com/smartsor/sor/internal/venue"
	"github.com/smartsor/sor/pkg/cache"
	"github.com/smartsor/sor/pkg/types"
)

// SmartOrderRouter routes orders to the venue(s) that minimize cost and risk,
// splitting across venues when that improves expected cost. One router
// instance owns its caches and performance store; concurrent RouteOrder
// calls are safe.
type SmartOrderRouter struct {
	config      Config
	registry    *venue.Registry
	cache       *cache.MemoryCache
	builder     *ContextBuilder
	scorer      *VenueScorer
	splitter    *SplitPlanner
	coordinator *ExecutionCoordinator
	tracker     *PerformanceTracker
	metrics     *monitor.RouterMetrics

	obsMu     sync.RWMutex
	observers []Observer

	// round-robin cursor for the fallback selector
	rrIndex uint64

	logger *logrus.Entry
}

func NewSmartOrderRouter(config Config, registry *venue.Registry) *SmartOrderRouter {
	memCache := cache.NewMemoryCache()
	tracker := NewPerformanceTracker()

	sor := &SmartOrderRouter{
		config:      config,
		registry:    registry,
		cache:       memCache,
		builder:     NewContextBuilder(registry, memCache, config),
		splitter:    NewSplitPlanner(config),
		coordinator: NewExecutionCoordinator(config, registry),
		tracker:     tracker,
		logger:      logrus.WithField("component", "smart-order-router"),
	}
	sor.scorer = NewVenueScorer(config, tracker, sor.emit)

	// a venue status flip invalidates every cached snapshot and decision
	registry.OnStatusChange(func(name string, available bool) {
		removed := memCache.DeletePrefix("market:")
		removed += memCache.DeletePrefix("routing:")

		sor.emit(Event{
			Type:      EventVenueStatus,
			Venue:     name,
			Message:   fmt.Sprintf("venue available=%v", available),
			Timestamp: time.Now(),
		})
		sor.emit(Event{
			Type:      EventCacheInvalidated,
			Venue:     name,
			Message:   fmt.Sprintf("%d cache entries invalidated", removed),
			Timestamp: time.Now(),
		})
	})

	return sor
}

// SetMetrics attaches prometheus instrumentation
func (sor *SmartOrderRouter) SetMetrics(metrics *monitor.RouterMetrics) {
	sor.metrics = metrics
}

// Subscribe registers an observer for router diagnostic events
func (sor *SmartOrderRouter) Subscribe(observer Observer) {
	sor.obsMu.Lock()
	defer sor.obsMu.Unlock()
	sor.observers = append(sor.observers, observer)
}

// Close releases the router's cache resources
func (sor *SmartOrderRouter) Close() {
	sor.cache.Close()
}

// RouteOrder routes a single order. Context build and planning failures
// propagate as errors before any execution call; execution failures come
// back encoded in the result with Success=false and warnings.
func (sor *SmartOrderRouter) RouteOrder(ctx context.Context, order *types.Order, strategy *Strategy) (*RoutedExecutionResult, error) {
	if err := sor.validateOrder(order); err != nil {
		return nil, fmt.Errorf("invalid order: %w", err)
	}

	resolved := sor.resolveStrategy(strategy)

	rc, err := sor.builder.Build(ctx, order, resolved)
	if err != nil {
		sor.observeDecision(resolved.Name, "no_venues")
		return nil, err
	}

	scores := sor.scorer.ScoreVenues(rc)
	sor.emit(Event{
		Type:      EventVenuesScored,
		Symbol:    order.Symbol,
		Data:      scores,
		Timestamp: time.Now(),
	})

	plan := sor.splitter.Plan(rc, scores)
	if plan != nil {
		sor.emit(Event{
			Type:      EventSplitPlanned,
			Symbol:    order.Symbol,
			Data:      plan,
			Timestamp: time.Now(),
		})
	}

	result, err := sor.coordinator.Execute(ctx, rc, scores, plan)
	if err != nil {
		if errors.Is(err, ErrNoQualifyingVenue) {
			sor.observeDecision(resolved.Name, "no_qualifying_venue")
		} else {
			sor.observeDecision(resolved.Name, "rejected")
		}
		return nil, err
	}

	sor.tracker.RecordResult(result)
	sor.cache.Set(
		fmt.Sprintf("routing:%s:%s", order.Symbol, order.Side),
		result,
		sor.config.CacheTTL,
	)

	sor.observeResult(resolved.Name, result)
	sor.emit(Event{
		Type:      EventOrderRouted,
		Symbol:    order.Symbol,
		Data:      result,
		Timestamp: time.Now(),
	})

	sor.logger.WithFields(logrus.Fields{
		"order":    order.ID,
		"symbol":   order.Symbol,
		"success":  result.Success,
		"executed": result.ExecutedQty.String(),
		"venues":   len(result.LegResults),
	}).Info("Order routed")

	return result, nil
}

// GetPerformanceMetrics returns a copy of all per-venue performance records
func (sor *SmartOrderRouter) GetPerformanceMetrics() map[string]*VenuePerformanceRecord {
	return sor.tracker.Records()
}

// History returns the retained routing results
func (sor *SmartOrderRouter) History() []*RoutedExecutionResult {
	return sor.tracker.History()
}

func (sor *SmartOrderRouter) validateOrder(order *types.Order) error {
	if order == nil {
		return fmt.Errorf("order is required")
	}
	if order.Symbol == "" {
		return fmt.Errorf("symbol is required")
	}
	if order.Quantity.IsZero() || order.Quantity.IsNegative() {
		return fmt.Errorf("invalid quantity: %s", order.Quantity)
	}
	if order.Type == types.OrderTypeLimit && order.Price.IsZero() {
		return fmt.Errorf("price required for limit orders")
	}
	return nil
}

// resolveStrategy fills strategy gaps from router configuration
func (sor *SmartOrderRouter) resolveStrategy(strategy *Strategy) Strategy {
	resolved := Strategy{
		Name:          sor.config.DefaultStrategy,
		MaxSlippage:   decimal.NewFromInt(int64(sor.config.MaxSlippageBps)).Div(decimal.NewFromInt(10000)),
		Timeout:       sor.config.MaxExecutionLatency,
		RetryAttempts: sor.config.RetryAttempts,
	}
	if strategy == nil {
		return resolved
	}

	if strategy.Name != "" {
		resolved.Name = strategy.Name
	}
	if !strategy.MaxSlippage.IsZero() {
		resolved.MaxSlippage = strategy.MaxSlippage
	}
	if strategy.Timeout > 0 {
		resolved.Timeout = strategy.Timeout
	}
	if strategy.RetryAttempts > 0 {
		resolved.RetryAttempts = strategy.RetryAttempts
	}

	return resolved
}

func (sor *SmartOrderRouter) emit(event Event) {
	sor.obsMu.RLock()
	observers := make([]Observer, len(sor.observers))
	copy(observers, sor.observers)
	sor.obsMu.RUnlock()

	for _, observer := range observers {
		observer(event)
	}
}

func (sor *SmartOrderRouter) observeDecision(strategy, outcome string) {
	if sor.metrics != nil {
		sor.metrics.ObserveDecision(strategy, outcome)
	}
}

func (sor *SmartOrderRouter) observeResult(strategy string, result *RoutedExecutionResult) {
	if sor.metrics == nil {
		return
	}

	outcome := "single"
	if result.Plan != nil {
		outcome = "split"
	}
	if !result.Success {
		outcome = "failed"
	}
	sor.metrics.ObserveDecision(strategy, outcome)

	for _, leg := range result.LegResults {
		sor.metrics.ObserveLeg(leg.Venue, leg.Success, leg.Latency, leg.ExecutedQty.InexactFloat64())
	}
	if result.Plan != nil {
		sor.metrics.ObserveSavings(result.CostSavingsPct)
	}
}
