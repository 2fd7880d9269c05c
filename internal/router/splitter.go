package router

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/smartsor/sor/pkg/types"
)

// Split eligibility thresholds
const (
	splitMinScore          = 70.0
	splitMinLiquidityRatio = 0.1
	splitLiquidityCap      = 0.8
)

// SplitPlanner decides single-venue vs. split execution and allocates
// quantities to venues.
type SplitPlanner struct {
	config Config
	logger *logrus.Entry
}

func NewSplitPlanner(config Config) *SplitPlanner {
	return &SplitPlanner{
		config: config,
		logger: logrus.WithField("component", "split-planner"),
	}
}

// Plan produces a split plan for the order, or nil when splitting is
// disabled, the order is too small, or fewer than two venues qualify.
// Allocation is score-proportional, clamped below by the minimum split size
// and above by 80% of a venue's available liquidity. A liquidity-capped
// leg's clipped remainder is not redistributed to other legs.
func (sp *SplitPlanner) Plan(rc *RoutingContext, scores []VenueScore) *SplitPlan {
	if !sp.config.SplitOrderEnabled {
		return nil
	}

	order := rc.Order
	if order.Quantity.LessThan(sp.config.MinSplitSize.Mul(decimal.NewFromInt(2))) {
		return nil
	}
	if len(scores) < 2 {
		return nil
	}

	eligible := sp.eligibleVenues(order, scores)
	if len(eligible) < 2 {
		return nil
	}

	legs := sp.allocate(order, eligible)
	if len(legs) < 2 {
		return nil
	}

	plan := &SplitPlan{
		ID:          uuid.NewString(),
		ParentOrder: order,
		Legs:        legs,
		Status:      PlanPending,
		CreatedAt:   time.Now(),
	}
	plan.ExpectedImprovement = sp.expectedImprovement(order, scores[0], legs)
	plan.RiskScore = sp.aggregateRisk(legs)

	sp.logger.WithFields(logrus.Fields{
		"plan_id":     plan.ID,
		"legs":        len(legs),
		"improvement": plan.ExpectedImprovement,
	}).Debug("Split plan created")

	return plan
}

func (sp *SplitPlanner) eligibleVenues(order *types.Order, scores []VenueScore) []VenueScore {
	minLiquidity := order.Quantity.Mul(decimal.NewFromFloat(splitMinLiquidityRatio))

	eligible := make([]VenueScore, 0, len(scores))
	for _, score := range scores {
		if score.TotalScore < splitMinScore {
			continue
		}
		if score.AvailableLiquidity.LessThan(minLiquidity) {
			continue
		}
		eligible = append(eligible, score)
		if len(eligible) >= sp.config.MaxSplits {
			break
		}
	}

	return eligible
}

func (sp *SplitPlanner) allocate(order *types.Order, eligible []VenueScore) []SplitLeg {
	totalScore := 0.0
	for _, score := range eligible {
		totalScore += score.TotalScore
	}
	if totalScore == 0 {
		return nil
	}

	legs := make([]SplitLeg, 0, len(eligible))
	remaining := order.Quantity

	for i, score := range eligible {
		if remaining.LessThanOrEqual(decimal.Zero) {
			break
		}

		share := order.Quantity.Mul(decimal.NewFromFloat(score.TotalScore / totalScore))

		if share.LessThan(sp.config.MinSplitSize) {
			share = sp.config.MinSplitSize
		}

		liquidityCap := score.AvailableLiquidity.Mul(decimal.NewFromFloat(splitLiquidityCap))
		if share.GreaterThan(liquidityCap) {
			share = liquidityCap
		}
		if share.GreaterThan(remaining) {
			share = remaining
		}
		if share.LessThan(sp.config.MinSplitSize) {
			continue
		}

		legs = append(legs, SplitLeg{
			Venue:          score.Venue,
			Order:          sp.childOrder(order, i+1, share),
			Percentage:     share.Div(order.Quantity).Mul(decimal.NewFromInt(100)).InexactFloat64(),
			EstimatedPrice: score.ExpectedPrice,
			EstimatedFee:   sp.scaleFee(score, share, order.Quantity),
			RiskScore:      score.RiskScore,
		})

		remaining = remaining.Sub(share)
	}

	return legs
}

func (sp *SplitPlanner) childOrder(parent *types.Order, index int, quantity decimal.Decimal) *types.Order {
	child := *parent
	child.ID = fmt.Sprintf("%s-%d", parent.ID, index)
	child.ParentOrderID = parent.ID
	child.Quantity = quantity
	return &child
}

// scaleFee prorates the full-quantity fee estimate to the leg quantity
func (sp *SplitPlanner) scaleFee(score VenueScore, legQty, totalQty decimal.Decimal) decimal.Decimal {
	if totalQty.IsZero() {
		return decimal.Zero
	}
	return score.EstimatedFee.Mul(legQty).Div(totalQty)
}

// expectedImprovement compares full-quantity execution on the top venue
// against the summed leg costs, as a percentage of the single-venue cost
func (sp *SplitPlanner) expectedImprovement(order *types.Order, top VenueScore, legs []SplitLeg) float64 {
	singleCost := top.ExpectedPrice.Mul(order.Quantity).Add(top.EstimatedFee)
	if singleCost.IsZero() {
		return 0
	}

	splitCost := decimal.Zero
	for _, leg := range legs {
		legCost := leg.EstimatedPrice.Mul(leg.Order.Quantity).Add(leg.EstimatedFee)
		splitCost = splitCost.Add(legCost)
	}

	return singleCost.Sub(splitCost).Div(singleCost).Mul(decimal.NewFromInt(100)).InexactFloat64()
}

// aggregateRisk is the quantity-weighted average of leg risk scores
func (sp *SplitPlanner) aggregateRisk(legs []SplitLeg) float64 {
	totalQty := decimal.Zero
	weighted := decimal.Zero

	for _, leg := range legs {
		totalQty = totalQty.Add(leg.Order.Quantity)
		weighted = weighted.Add(leg.Order.Quantity.Mul(decimal.NewFromFloat(leg.RiskScore)))
	}

	if totalQty.IsZero() {
		return 0
	}
	return weighted.Div(totalQty).InexactFloat64()
}
