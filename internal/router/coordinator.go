package router

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/smartsor/sor/internal/venue"
	"github.com/smartsor/sor/pkg/types"
)

// ExecutionCoordinator executes a routing decision: one venue call for the
// single path, or concurrent per-leg calls for a split plan. Execution
// failures are encoded into the result, never propagated; only the quality
// gate rejects with an error before any execution call is made.
type ExecutionCoordinator struct {
	mu          sync.Mutex
	config      Config
	registry    *venue.Registry
	activePlans map[string]*SplitPlan
	logger      *logrus.Entry
}

func NewExecutionCoordinator(config Config, registry *venue.Registry) *ExecutionCoordinator {
	return &ExecutionCoordinator{
		config:      config,
		registry:    registry,
		activePlans: make(map[string]*SplitPlan),
		logger:      logrus.WithField("component", "execution-coordinator"),
	}
}

// Execute applies the decision gate and runs the chosen plan. Returns
// ErrNoQualifyingVenue when neither the split plan nor the top venue passes.
func (ec *ExecutionCoordinator) Execute(ctx context.Context, rc *RoutingContext, scores []VenueScore, plan *SplitPlan) (*RoutedExecutionResult, error) {
	if plan != nil && plan.ExpectedImprovement > ec.config.TargetSavingsPct {
		if err := ec.validatePlan(rc, plan); err != nil {
			return nil, err
		}
		return ec.executeSplit(ctx, rc, plan), nil
	}

	if len(scores) > 0 && scores[0].TotalScore >= ec.config.MinQualityScore {
		top := scores[0]
		if !rc.HasVenue(top.Venue) {
			return nil, &ValidationError{Venue: top.Venue, Reason: "venue not in routing context"}
		}
		return ec.executeSingle(ctx, rc, top), nil
	}

	return nil, ErrNoQualifyingVenue
}

func (ec *ExecutionCoordinator) validatePlan(rc *RoutingContext, plan *SplitPlan) error {
	for _, leg := range plan.Legs {
		if !rc.HasVenue(leg.Venue) {
			return &ValidationError{Venue: leg.Venue, Reason: "split leg references venue not in routing context"}
		}
	}
	return nil
}

func (ec *ExecutionCoordinator) executeSingle(ctx context.Context, rc *RoutingContext, top VenueScore) *RoutedExecutionResult {
	start := time.Now()
	order := rc.Order

	params := types.ExecutionParams{
		Venues:            []string{top.Venue},
		Weights:           map[string]float64{top.Venue: 1.0},
		MaxSlippage:       rc.Strategy.MaxSlippage,
		Timeout:           rc.Strategy.Timeout,
		RetryAttempts:     rc.Strategy.RetryAttempts,
		AllowPartialFills: true,
	}

	leg := ec.executeLeg(ctx, top.Venue, order, params)

	result := &RoutedExecutionResult{
		Order:      order,
		Strategy:   rc.Strategy.Name,
		Venue:      top.Venue,
		LegResults: []LegResult{leg},
		Timestamp:  time.Now(),
	}

	if leg.Success {
		result.Success = true
		result.ExecutedQty = leg.ExecutedQty
		result.WeightedAvgPrice = leg.Price
		result.TotalFees = leg.Fee
	} else {
		result.ExecutedQty = decimal.Zero
		result.WeightedAvgPrice = decimal.Zero
		result.TotalFees = decimal.Zero
		result.Error = leg.Error
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("execution on %s failed: %s", top.Venue, leg.Error))
	}

	result.ExecutionTime = time.Since(start)
	result.QualityScore = ec.qualityScore(order.Quantity, result.ExecutedQty, result.ExecutionTime)

	return result
}

func (ec *ExecutionCoordinator) executeSplit(ctx context.Context, rc *RoutingContext, plan *SplitPlan) *RoutedExecutionResult {
	start := time.Now()

	plan.Status = PlanExecuting
	ec.mu.Lock()
	ec.activePlans[plan.ID] = plan
	ec.mu.Unlock()
	defer func() {
		ec.mu.Lock()
		delete(ec.activePlans, plan.ID)
		ec.mu.Unlock()
	}()

	var wg sync.WaitGroup
	var mu sync.Mutex
	legResults := make([]LegResult, 0, len(plan.Legs))

	for _, leg := range plan.Legs {
		wg.Add(1)
		go func(leg SplitLeg) {
			defer wg.Done()

			params := types.ExecutionParams{
				Venues:            []string{leg.Venue},
				Weights:           map[string]float64{leg.Venue: leg.Percentage / 100},
				MaxSlippage:       rc.Strategy.MaxSlippage,
				Timeout:           rc.Strategy.Timeout,
				RetryAttempts:     rc.Strategy.RetryAttempts,
				AllowPartialFills: true,
			}

			legResult := ec.executeLeg(ctx, leg.Venue, leg.Order, params)

			mu.Lock()
			legResults = append(legResults, legResult)
			mu.Unlock()
		}(leg)
	}

	wg.Wait()

	result := ec.aggregate(rc, plan, legResults)
	result.ExecutionTime = time.Since(start)
	result.QualityScore = ec.qualityScore(plan.ParentOrder.Quantity, result.ExecutedQty, result.ExecutionTime)
	result.CostSavingsPct = plan.ExpectedImprovement

	if result.Success {
		plan.Status = PlanCompleted
	} else {
		plan.Status = PlanFailed
	}

	return result
}

// aggregate fans leg results back in: summed quantity and fees, VWAP over
// filled legs (zero when nothing filled), success when at least one leg
// filled, with a warning counting failed legs.
func (ec *ExecutionCoordinator) aggregate(rc *RoutingContext, plan *SplitPlan, legResults []LegResult) *RoutedExecutionResult {
	result := &RoutedExecutionResult{
		Order:      plan.ParentOrder,
		Strategy:   rc.Strategy.Name,
		Plan:       plan,
		LegResults: legResults,
		Timestamp:  time.Now(),
	}

	totalQty := decimal.Zero
	totalValue := decimal.Zero
	totalFees := decimal.Zero
	failed := 0

	for _, leg := range legResults {
		if !leg.Success {
			failed++
			continue
		}
		totalQty = totalQty.Add(leg.ExecutedQty)
		totalValue = totalValue.Add(leg.ExecutedQty.Mul(leg.Price))
		totalFees = totalFees.Add(leg.Fee)
	}

	result.ExecutedQty = totalQty
	result.TotalFees = totalFees
	if totalQty.GreaterThan(decimal.Zero) {
		result.WeightedAvgPrice = totalValue.Div(totalQty)
		result.Success = true
	} else {
		result.WeightedAvgPrice = decimal.Zero
	}

	if failed > 0 {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("%d split executions failed", failed))
	}
	if !result.Success {
		result.Error = "all split executions failed"
	}

	return result
}

// executeLeg runs one venue execution with an explicit per-leg timeout and a
// constant-backoff retry budget. Failure is returned in the LegResult, never
// as an error.
func (ec *ExecutionCoordinator) executeLeg(ctx context.Context, venueName string, order *types.Order, params types.ExecutionParams) LegResult {
	start := time.Now()
	leg := LegResult{Venue: venueName}

	connector, ok := ec.registry.Get(venueName)
	if !ok {
		leg.Error = fmt.Sprintf("venue %s not registered", venueName)
		leg.Latency = time.Since(start)
		return leg
	}

	timeout := params.Timeout
	if timeout <= 0 {
		timeout = ec.config.MaxExecutionLatency
	}
	legCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	retries := params.RetryAttempts
	if retries <= 0 {
		retries = ec.config.RetryAttempts
	}

	var execResult *types.ExecutionResult
	operation := func() error {
		res, err := connector.ExecuteOrder(legCtx, order, params)
		if err != nil {
			return err
		}
		execResult = res
		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(ec.config.RetryDelay), uint64(retries)),
		legCtx,
	)

	if err := backoff.Retry(operation, policy); err != nil {
		ec.logger.WithFields(logrus.Fields{
			"venue": venueName,
			"order": order.ID,
		}).WithError(err).Warn("Venue execution failed")
		leg.Error = err.Error()
		leg.Latency = time.Since(start)
		return leg
	}

	leg.Success = execResult.Success
	leg.ExecutedQty = execResult.ExecutedQty
	leg.Price = execResult.ExecutionPrice
	leg.Fee = execResult.Fees
	leg.OrderID = execResult.ExchangeOrderID
	if execResult.Error != "" {
		leg.Error = execResult.Error
	}
	leg.Latency = time.Since(start)

	return leg
}

// qualityScore starts at 0.7, adds up to 0.2 proportional to fill rate and a
// 0.1 bonus for finishing under half the configured max latency, capped at 1
func (ec *ExecutionCoordinator) qualityScore(requested, executed decimal.Decimal, elapsed time.Duration) float64 {
	quality := 0.7

	if requested.GreaterThan(decimal.Zero) {
		fillRate := executed.Div(requested).InexactFloat64()
		quality += 0.2 * fillRate
	}

	if elapsed < ec.config.MaxExecutionLatency/2 {
		quality += 0.1
	}

	if quality > 1.0 {
		quality = 1.0
	}
	return quality
}

// ActivePlans returns the ids of plans currently executing
func (ec *ExecutionCoordinator) ActivePlans() []string {
	ec.mu.Lock()
	defer ec.mu.Unlock()

	ids := make([]string, 0, len(ec.activePlans))
	for id := range ec.activePlans {
		ids = append(ids, id)
	}
	return ids
}
