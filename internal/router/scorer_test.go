package router

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartsor/sor/pkg/types"
)

type testVenue struct {
	bid       float64
	ask       float64
	liquidity float64
	uptime    float64
	latencyMs float64
	errorRate float64
	takerFee  float64
	noHealth  bool
	noBook    bool
}

func newTestContext(order *types.Order, venues map[string]testVenue) *RoutingContext {
	rc := &RoutingContext{
		Order:      order,
		Strategy:   Strategy{Name: StrategyBestExecution},
		MarketData: make(map[string]*types.MarketData),
		OrderBooks: make(map[string]*types.OrderBookDepth),
		Health:     make(map[string]*types.VenueHealth),
		Fees:       make(map[string]*types.FeeSchedule),
		Timestamp:  time.Now(),
	}

	for name, v := range venues {
		rc.Venues = append(rc.Venues, name)

		rc.MarketData[name] = &types.MarketData{
			Symbol:     order.Symbol,
			Bid:        decimal.NewFromFloat(v.bid),
			Ask:        decimal.NewFromFloat(v.ask),
			UpdateTime: time.Now(),
		}

		if !v.noBook {
			rc.OrderBooks[name] = &types.OrderBookDepth{
				Symbol: order.Symbol,
				Bids: []types.PriceLevel{
					{Price: decimal.NewFromFloat(v.bid), Quantity: decimal.NewFromFloat(v.liquidity)},
				},
				Asks: []types.PriceLevel{
					{Price: decimal.NewFromFloat(v.ask), Quantity: decimal.NewFromFloat(v.liquidity)},
				},
				UpdateTime: time.Now(),
			}
		}

		if !v.noHealth {
			rc.Health[name] = &types.VenueHealth{
				Venue:        name,
				UptimePct:    v.uptime,
				LatencyMs:    v.latencyMs,
				ErrorRatePct: v.errorRate,
				UpdateTime:   time.Now(),
			}
		}

		takerFee := v.takerFee
		if takerFee == 0 {
			takerFee = 0.001
		}
		rc.Fees[name] = &types.FeeSchedule{
			Venue:      name,
			MakerFee:   decimal.NewFromFloat(takerFee * 0.8),
			TakerFee:   decimal.NewFromFloat(takerFee),
			UpdateTime: time.Now(),
		}
	}

	return rc
}

func buyOrder(qty float64) *types.Order {
	return &types.Order{
		ID:        "order-1",
		Symbol:    "BTC-USD",
		Side:      types.OrderSideBuy,
		Type:      types.OrderTypeMarket,
		Quantity:  decimal.NewFromFloat(qty),
		CreatedAt: time.Now(),
	}
}

func newTestScorer(config Config) *VenueScorer {
	return NewVenueScorer(config, NewPerformanceTracker(), nil)
}

func TestVenueScorer_ScoresWithinBounds(t *testing.T) {
	scorer := newTestScorer(DefaultConfig())

	rc := newTestContext(buyOrder(10), map[string]testVenue{
		"alpha": {bid: 99.9, ask: 100.1, liquidity: 50, uptime: 99.9, latencyMs: 30, errorRate: 0.5},
		"beta":  {bid: 95, ask: 110, liquidity: 2, uptime: 80, latencyMs: 500, errorRate: 20, takerFee: 0.01},
		"gamma": {bid: 100, ask: 100.05, liquidity: 100, noHealth: true},
	})

	scores := scorer.ScoreVenues(rc)
	require.Len(t, scores, 3)

	for _, score := range scores {
		for name, value := range map[string]float64{
			"price":       score.PriceScore,
			"liquidity":   score.LiquidityScore,
			"fee":         score.FeeScore,
			"reliability": score.ReliabilityScore,
			"speed":       score.SpeedScore,
			"total":       score.TotalScore,
			"risk":        score.RiskScore,
		} {
			assert.GreaterOrEqual(t, value, 0.0, "%s score for %s", name, score.Venue)
			assert.LessOrEqual(t, value, 100.0, "%s score for %s", name, score.Venue)
		}
	}

	// output is sorted descending by total score
	for i := 1; i < len(scores); i++ {
		assert.GreaterOrEqual(t, scores[i-1].TotalScore, scores[i].TotalScore)
	}
}

func TestVenueScorer_LiquidityTiers(t *testing.T) {
	scorer := newTestScorer(DefaultConfig())

	tests := []struct {
		name      string
		liquidity float64
		expected  float64
	}{
		{"twice required", 20, 100},
		{"exactly required", 10, 80},
		{"half required", 5, 60},
		{"below half", 0.8, 30},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score := scorer.liquidityScore(decimal.NewFromFloat(tt.liquidity), decimal.NewFromInt(10))
			assert.Equal(t, tt.expected, score)
		})
	}
}

func TestVenueScorer_PriceScoreDeviation(t *testing.T) {
	scorer := newTestScorer(DefaultConfig())

	mid := decimal.NewFromInt(100)

	// quote at mid scores 100
	assert.Equal(t, 100.0, scorer.priceScore(mid, mid))

	// 50 bps off mid scores 50
	assert.InDelta(t, 50.0, scorer.priceScore(decimal.NewFromFloat(100.5), mid), 0.01)

	// 100 bps or more clamps to 0
	assert.Equal(t, 0.0, scorer.priceScore(decimal.NewFromInt(102), mid))
}

func TestVenueScorer_NoHealthDefaults(t *testing.T) {
	scorer := newTestScorer(DefaultConfig())

	rc := newTestContext(buyOrder(10), map[string]testVenue{
		"alpha": {bid: 99.9, ask: 100.1, liquidity: 50, noHealth: true},
	})

	scores := scorer.ScoreVenues(rc)
	require.Len(t, scores, 1)
	assert.Equal(t, float64(reliabilityNoHealth), scores[0].ReliabilityScore)
	assert.Equal(t, 50.0, scores[0].SpeedScore)
}

func TestVenueScorer_SkipsVenueWithoutOrderBook(t *testing.T) {
	scorer := newTestScorer(DefaultConfig())

	rc := newTestContext(buyOrder(10), map[string]testVenue{
		"alpha": {bid: 99.9, ask: 100.1, liquidity: 50, uptime: 99, latencyMs: 30, errorRate: 0.5},
		"beta":  {bid: 99.9, ask: 100.1, noBook: true},
	})

	scores := scorer.ScoreVenues(rc)
	require.Len(t, scores, 1)
	assert.Equal(t, "alpha", scores[0].Venue)
}

func TestVenueScorer_Idempotent(t *testing.T) {
	scorer := newTestScorer(DefaultConfig())

	rc := newTestContext(buyOrder(10), map[string]testVenue{
		"alpha": {bid: 99.9, ask: 100.1, liquidity: 50, uptime: 99.9, latencyMs: 30, errorRate: 0.5},
		"beta":  {bid: 99.8, ask: 100.2, liquidity: 20, uptime: 95, latencyMs: 80, errorRate: 2},
	})

	first := scorer.ScoreVenues(rc)
	second := scorer.ScoreVenues(rc)

	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].Venue, second[i].Venue)
		assert.Equal(t, first[i].TotalScore, second[i].TotalScore)
		assert.Equal(t, first[i].RiskScore, second[i].RiskScore)
	}
}

func TestVenueScorer_DeterministicTieBreak(t *testing.T) {
	scorer := newTestScorer(DefaultConfig())

	// identical venues produce identical scores; ties order by venue name
	same := testVenue{bid: 99.9, ask: 100.1, liquidity: 50, uptime: 99.9, latencyMs: 30, errorRate: 0.5}
	rc := newTestContext(buyOrder(10), map[string]testVenue{
		"zulu":  same,
		"alpha": same,
		"mike":  same,
	})

	scores := scorer.ScoreVenues(rc)
	require.Len(t, scores, 3)
	assert.Equal(t, "alpha", scores[0].Venue)
	assert.Equal(t, "mike", scores[1].Venue)
	assert.Equal(t, "zulu", scores[2].Venue)
}

func TestVenueScorer_RiskFactors(t *testing.T) {
	scorer := newTestScorer(DefaultConfig())

	rc := newTestContext(buyOrder(10), map[string]testVenue{
		"risky": {bid: 90, ask: 100, liquidity: 2, uptime: 80, latencyMs: 500, errorRate: 20},
	})

	scores := scorer.ScoreVenues(rc)
	require.Len(t, scores, 1)

	factors := scores[0].RiskFactors
	assert.Contains(t, factors, RiskInsufficientLiquidity)
	assert.Contains(t, factors, RiskWideSpread)
	assert.Contains(t, factors, RiskHighErrorRate)
	assert.Contains(t, factors, RiskReliabilityConcerns)
	assert.Contains(t, factors, RiskHighLatency)
	assert.Equal(t, 100.0, scores[0].RiskScore)
}

func TestVenueScorer_HistoricalRecordShiftsReliability(t *testing.T) {
	tracker := NewPerformanceTracker()
	scorer := NewVenueScorer(DefaultConfig(), tracker, nil)

	health := &types.VenueHealth{UptimePct: 99, LatencyMs: 30, ErrorRatePct: 0.5}

	baseline := scorer.reliabilityScore("alpha", health)

	// an all-failure history drags the score down
	tracker.RecordResult(&RoutedExecutionResult{
		LegResults: []LegResult{{Venue: "alpha", Success: false}},
	})
	degraded := scorer.reliabilityScore("alpha", health)

	assert.Less(t, degraded, baseline)
}
