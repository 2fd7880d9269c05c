package venue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/smartsor/sor/pkg/types"
)

// SimulatedVenue is an in-memory venue used by the server's dry-run mode and
// by tests. Market state is set up front and mutated through setters; order
// execution fills against the configured top of book after an artificial
// latency.
type SimulatedVenue struct {
	mu        sync.RWMutex
	name      string
	bid       decimal.Decimal
	ask       decimal.Decimal
	liquidity decimal.Decimal
	takerFee  decimal.Decimal
	makerFee  decimal.Decimal
	health    types.VenueHealth
	execDelay time.Duration
	fillRatio decimal.Decimal
	failExec  bool
}

// NewSimulatedVenue creates a venue quoting bid/ask with the given book
// depth on each side
func NewSimulatedVenue(name string, bid, ask, liquidity float64) *SimulatedVenue {
	return &SimulatedVenue{
		name:      name,
		bid:       decimal.NewFromFloat(bid),
		ask:       decimal.NewFromFloat(ask),
		liquidity: decimal.NewFromFloat(liquidity),
		takerFee:  decimal.NewFromFloat(0.001),
		makerFee:  decimal.NewFromFloat(0.0008),
		fillRatio: decimal.NewFromInt(1),
		health: types.VenueHealth{
			Venue:        name,
			UptimePct:    99.9,
			LatencyMs:    40,
			ErrorRatePct: 0.5,
		},
	}
}

func (s *SimulatedVenue) Name() string {
	return s.name
}

// SetHealth overrides the reported health metrics
func (s *SimulatedVenue) SetHealth(uptimePct, latencyMs, errorRatePct float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.health.UptimePct = uptimePct
	s.health.LatencyMs = latencyMs
	s.health.ErrorRatePct = errorRatePct
}

// SetFees overrides maker/taker fee rates
func (s *SimulatedVenue) SetFees(maker, taker float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.makerFee = decimal.NewFromFloat(maker)
	s.takerFee = decimal.NewFromFloat(taker)
}

// SetExecution configures fill behavior: the fraction of requested quantity
// that fills, an artificial execution delay, and a hard-failure switch
func (s *SimulatedVenue) SetExecution(fillRatio float64, delay time.Duration, fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fillRatio = decimal.NewFromFloat(fillRatio)
	s.execDelay = delay
	s.failExec = fail
}

func (s *SimulatedVenue) GetMarketData(ctx context.Context, symbol string) (*types.MarketData, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return &types.MarketData{
		Symbol:     symbol,
		Bid:        s.bid,
		Ask:        s.ask,
		BidQty:     s.liquidity,
		AskQty:     s.liquidity,
		Volume24h:  s.liquidity.Mul(decimal.NewFromInt(100)),
		UpdateTime: time.Now(),
	}, nil
}

func (s *SimulatedVenue) GetOrderBook(ctx context.Context, symbol string, depth int) (*types.OrderBookDepth, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return &types.OrderBookDepth{
		Symbol: symbol,
		Bids: []types.PriceLevel{
			{Price: s.bid, Quantity: s.liquidity},
		},
		Asks: []types.PriceLevel{
			{Price: s.ask, Quantity: s.liquidity},
		},
		UpdateTime: time.Now(),
	}, nil
}

func (s *SimulatedVenue) GetHealth(ctx context.Context) (*types.VenueHealth, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	health := s.health
	health.UpdateTime = time.Now()
	return &health, nil
}

func (s *SimulatedVenue) GetFeeSchedule(ctx context.Context) (*types.FeeSchedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return &types.FeeSchedule{
		Venue:      s.name,
		MakerFee:   s.makerFee,
		TakerFee:   s.takerFee,
		UpdateTime: time.Now(),
	}, nil
}

func (s *SimulatedVenue) ExecuteOrder(ctx context.Context, order *types.Order, params types.ExecutionParams) (*types.ExecutionResult, error) {
	s.mu.RLock()
	delay := s.execDelay
	fail := s.failExec
	fillRatio := s.fillRatio
	price := s.ask
	if order.Side == types.OrderSideSell {
		price = s.bid
	}
	takerFee := s.takerFee
	s.mu.RUnlock()

	if delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}

	if fail {
		return nil, fmt.Errorf("venue %s rejected order %s", s.name, order.ID)
	}

	executed := order.Quantity.Mul(fillRatio)
	fees := executed.Mul(price).Mul(takerFee)

	return &types.ExecutionResult{
		Success:         executed.GreaterThan(decimal.Zero),
		ExecutedQty:     executed,
		ExecutionPrice:  price,
		RemainingQty:    order.Quantity.Sub(executed),
		Fees:            fees,
		ExchangeOrderID: uuid.NewString(),
	}, nil
}
