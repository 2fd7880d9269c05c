package router

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartsor/sor/pkg/types"
)

func scoreFor(venue string, total float64, price, liquidity float64) VenueScore {
	p := decimal.NewFromFloat(price)
	liq := decimal.NewFromFloat(liquidity)
	return VenueScore{
		Venue:              venue,
		TotalScore:         total,
		ExpectedPrice:      p,
		AvailableLiquidity: liq,
		EstimatedFee:       decimal.NewFromFloat(price * 0.001),
		RiskScore:          30,
	}
}

func TestSplitPlanner_QuantityConservation(t *testing.T) {
	config := DefaultConfig()
	planner := NewSplitPlanner(config)

	order := buyOrder(10)
	rc := &RoutingContext{Order: order, Venues: []string{"alpha", "beta"}}
	scores := []VenueScore{
		scoreFor("alpha", 90, 100, 50),
		scoreFor("beta", 80, 100.2, 40),
	}

	plan := planner.Plan(rc, scores)
	require.NotNil(t, plan)
	require.GreaterOrEqual(t, len(plan.Legs), 2)

	assert.True(t, plan.TotalQuantity().LessThanOrEqual(order.Quantity),
		"leg quantities must not exceed parent quantity")

	for _, leg := range plan.Legs {
		assert.True(t, leg.Order.Quantity.GreaterThanOrEqual(config.MinSplitSize),
			"leg on %s below minimum split size", leg.Venue)
		assert.Equal(t, order.ID, leg.Order.ParentOrderID)
		assert.NotEqual(t, order.ID, leg.Order.ID)
	}
}

func TestSplitPlanner_ExcludesThinVenue(t *testing.T) {
	planner := NewSplitPlanner(DefaultConfig())

	order := buyOrder(10)
	rc := &RoutingContext{Order: order, Venues: []string{"alpha", "beta"}}

	// beta offers less than 10% of the order quantity; only one venue stays
	// eligible, so no split plan is produced
	scores := []VenueScore{
		scoreFor("alpha", 90, 100, 50),
		scoreFor("beta", 75, 100, 0.8),
	}

	plan := planner.Plan(rc, scores)
	assert.Nil(t, plan)
}

func TestSplitPlanner_ExcludesLowScore(t *testing.T) {
	planner := NewSplitPlanner(DefaultConfig())

	order := buyOrder(10)
	rc := &RoutingContext{Order: order, Venues: []string{"alpha", "beta"}}
	scores := []VenueScore{
		scoreFor("alpha", 90, 100, 50),
		scoreFor("beta", 65, 99, 50), // below the 70 eligibility floor
	}

	assert.Nil(t, planner.Plan(rc, scores))
}

func TestSplitPlanner_Guards(t *testing.T) {
	config := DefaultConfig()
	order := buyOrder(10)
	scores := []VenueScore{
		scoreFor("alpha", 90, 100, 50),
		scoreFor("beta", 85, 100, 50),
	}
	rc := &RoutingContext{Order: order, Venues: []string{"alpha", "beta"}}

	t.Run("splitting disabled", func(t *testing.T) {
		disabled := config
		disabled.SplitOrderEnabled = false
		assert.Nil(t, NewSplitPlanner(disabled).Plan(rc, scores))
	})

	t.Run("order below twice minimum split size", func(t *testing.T) {
		small := config
		small.MinSplitSize = decimal.NewFromInt(8)
		assert.Nil(t, NewSplitPlanner(small).Plan(rc, scores))
	})

	t.Run("single scored venue", func(t *testing.T) {
		assert.Nil(t, NewSplitPlanner(config).Plan(rc, scores[:1]))
	})
}

func TestSplitPlanner_RespectsMaxSplits(t *testing.T) {
	config := DefaultConfig()
	config.MaxSplits = 2
	planner := NewSplitPlanner(config)

	order := buyOrder(30)
	rc := &RoutingContext{Order: order, Venues: []string{"alpha", "beta", "gamma"}}
	scores := []VenueScore{
		scoreFor("alpha", 90, 100, 100),
		scoreFor("beta", 85, 100.1, 100),
		scoreFor("gamma", 80, 100.2, 100),
	}

	plan := planner.Plan(rc, scores)
	require.NotNil(t, plan)
	assert.Len(t, plan.Legs, 2)
}

func TestSplitPlanner_LiquidityCapNotRedistributed(t *testing.T) {
	planner := NewSplitPlanner(DefaultConfig())

	order := buyOrder(100)
	rc := &RoutingContext{Order: order, Venues: []string{"alpha", "beta"}}

	// both venues' 80% liquidity caps bind, so the plan allocates less than
	// the full order; the clipped remainder is deliberately not rebalanced
	scores := []VenueScore{
		scoreFor("alpha", 90, 100, 50),
		scoreFor("beta", 85, 100, 50),
	}

	plan := planner.Plan(rc, scores)
	require.NotNil(t, plan)

	total := plan.TotalQuantity()
	assert.True(t, total.LessThan(order.Quantity),
		"expected capped allocation, got %s of %s", total, order.Quantity)
	assert.True(t, total.Equal(decimal.NewFromInt(80)),
		"both legs should cap at 80%% of 50 units, got %s", total)
}

func TestSplitPlanner_ImprovementAgainstTopVenue(t *testing.T) {
	planner := NewSplitPlanner(DefaultConfig())

	order := buyOrder(10)
	rc := &RoutingContext{Order: order, Venues: []string{"alpha", "beta"}}

	// beta quotes a better price but ranks second; moving quantity there
	// improves expected cost versus full execution on alpha
	scores := []VenueScore{
		scoreFor("alpha", 90, 101, 50),
		scoreFor("beta", 80, 100, 50),
	}

	plan := planner.Plan(rc, scores)
	require.NotNil(t, plan)
	assert.Greater(t, plan.ExpectedImprovement, 0.0)
}

func TestSplitPlanner_AggregateRiskIsQuantityWeighted(t *testing.T) {
	planner := NewSplitPlanner(DefaultConfig())

	legs := []SplitLeg{
		{Order: &types.Order{Quantity: decimal.NewFromInt(6)}, RiskScore: 20},
		{Order: &types.Order{Quantity: decimal.NewFromInt(4)}, RiskScore: 70},
	}

	// (6*20 + 4*70) / 10 = 40
	assert.InDelta(t, 40.0, planner.aggregateRisk(legs), 0.001)
}
