package router

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/smartsor/sor/pkg/types"
)

// Fallback strategies used when no venue passes the quality gate
const (
	FallbackBestAvailable = "best_available"
	FallbackRandom        = "random"
	FallbackRoundRobin    = "round_robin"
)

// Routing strategy names
const (
	StrategyBestExecution = "best_execution"
	StrategyLowestCost    = "lowest_cost"
	StrategyFastest       = "fastest"
)

// Risk factor tags attached to venue scores
const (
	RiskInsufficientLiquidity = "insufficient_liquidity"
	RiskWideSpread            = "wide_spread"
	RiskHighErrorRate         = "high_error_rate"
	RiskReliabilityConcerns   = "reliability_concerns"
	RiskHighLatency           = "high_latency"
	RiskStaleData             = "stale_data"
)

// Config holds router configuration
type Config struct {
	DefaultStrategy     string          `mapstructure:"default_strategy"`
	SplitOrderEnabled   bool            `mapstructure:"split_order_enabled"`
	MaxSplits           int             `mapstructure:"max_splits"`
	MinSplitSize        decimal.Decimal `mapstructure:"min_split_size"`
	MaxExecutionLatency time.Duration   `mapstructure:"max_execution_latency"`
	MinQualityScore     float64         `mapstructure:"min_quality_score"`
	MaxSlippageBps      int             `mapstructure:"max_slippage_bps"`
	CostWeight          float64         `mapstructure:"cost_weight"`
	ReliabilityWeight   float64         `mapstructure:"reliability_weight"`
	TargetSavingsPct    float64         `mapstructure:"target_savings_pct"`
	CacheTTL            time.Duration   `mapstructure:"cache_ttl"`
	FallbackStrategy    string          `mapstructure:"fallback_strategy"`
	RetryAttempts       int             `mapstructure:"retry_attempts"`
	RetryDelay          time.Duration   `mapstructure:"retry_delay"`
	OrderBookDepth      int             `mapstructure:"order_book_depth"`
}

// DefaultConfig returns production defaults
func DefaultConfig() Config {
	return Config{
		DefaultStrategy:     StrategyBestExecution,
		SplitOrderEnabled:   true,
		MaxSplits:           3,
		MinSplitSize:        decimal.NewFromInt(1),
		MaxExecutionLatency: 5 * time.Second,
		MinQualityScore:     60,
		MaxSlippageBps:      50,
		CostWeight:          0.5,
		ReliabilityWeight:   0.3,
		TargetSavingsPct:    0.5,
		CacheTTL:            5 * time.Second,
		FallbackStrategy:    FallbackBestAvailable,
		RetryAttempts:       2,
		RetryDelay:          100 * time.Millisecond,
		OrderBookDepth:      10,
	}
}

// Strategy carries per-request execution parameters; zero-valued fields fall
// back to the router configuration
type Strategy struct {
	Name          string
	MaxSlippage   decimal.Decimal
	Timeout       time.Duration
	RetryAttempts int
}

// RoutingContext is a consistent snapshot of venue state taken for one
// routing decision. Venues missing market data or an order book stay in the
// Venues list but are excluded from scoring.
type RoutingContext struct {
	Order      *types.Order
	Strategy   Strategy
	Venues     []string
	MarketData map[string]*types.MarketData
	OrderBooks map[string]*types.OrderBookDepth
	Health     map[string]*types.VenueHealth
	Fees       map[string]*types.FeeSchedule
	Timestamp  time.Time
}

// HasVenue reports whether a venue was in the active set when the snapshot
// was taken
func (rc *RoutingContext) HasVenue(name string) bool {
	for _, v := range rc.Venues {
		if v == name {
			return true
		}
	}
	return false
}

// VenueScore is the scorer's verdict on one venue for one order. All scores
// live in [0,100]; TotalScore is a convex combination of the five sub-scores.
type VenueScore struct {
	Venue              string          `json:"venue"`
	PriceScore         float64         `json:"price_score"`
	LiquidityScore     float64         `json:"liquidity_score"`
	FeeScore           float64         `json:"fee_score"`
	ReliabilityScore   float64         `json:"reliability_score"`
	SpeedScore         float64         `json:"speed_score"`
	TotalScore         float64         `json:"total_score"`
	ExpectedPrice      decimal.Decimal `json:"expected_price"`
	AvailableLiquidity decimal.Decimal `json:"available_liquidity"`
	EstimatedFee       decimal.Decimal `json:"estimated_fee"`
	EstimatedLatencyMs float64         `json:"estimated_latency_ms"`
	RiskScore          float64         `json:"risk_score"`
	RiskFactors        []string        `json:"risk_factors,omitempty"`
}

// PlanStatus tracks a split plan through its lifecycle
type PlanStatus string

const (
	PlanPending   PlanStatus = "pending"
	PlanExecuting PlanStatus = "executing"
	PlanCompleted PlanStatus = "completed"
	PlanFailed    PlanStatus = "failed"
)

// SplitLeg is one venue's share of a split plan
type SplitLeg struct {
	Venue          string          `json:"venue"`
	Order          *types.Order    `json:"order"`
	Percentage     float64         `json:"percentage"`
	EstimatedPrice decimal.Decimal `json:"estimated_price"`
	EstimatedFee   decimal.Decimal `json:"estimated_fee"`
	RiskScore      float64         `json:"risk_score"`
}

// SplitPlan allocates a parent order across venues. Mutated only by the
// execution coordinator, discarded after result aggregation.
type SplitPlan struct {
	ID                  string       `json:"id"`
	ParentOrder         *types.Order `json:"parent_order"`
	Legs                []SplitLeg   `json:"legs"`
	ExpectedImprovement float64      `json:"expected_improvement"`
	RiskScore           float64      `json:"risk_score"`
	Status              PlanStatus   `json:"status"`
	CreatedAt           time.Time    `json:"created_at"`
}

// TotalQuantity sums leg quantities
func (p *SplitPlan) TotalQuantity() decimal.Decimal {
	total := decimal.Zero
	for _, leg := range p.Legs {
		total = total.Add(leg.Order.Quantity)
	}
	return total
}

// LegResult is the settled outcome of one venue execution
type LegResult struct {
	Venue       string          `json:"venue"`
	Success     bool            `json:"success"`
	ExecutedQty decimal.Decimal `json:"executed_qty"`
	Price       decimal.Decimal `json:"price"`
	Fee         decimal.Decimal `json:"fee"`
	OrderID     string          `json:"order_id,omitempty"`
	Error       string          `json:"error,omitempty"`
	Latency     time.Duration   `json:"latency"`
}

// RoutedExecutionResult is the aggregated outcome of one routing request.
// Immutable after construction; partial success surfaces as Success=true
// with warnings.
type RoutedExecutionResult struct {
	Success          bool            `json:"success"`
	Order            *types.Order    `json:"order"`
	Strategy         string          `json:"strategy"`
	Venue            string          `json:"venue,omitempty"`
	Plan             *SplitPlan      `json:"plan,omitempty"`
	LegResults       []LegResult     `json:"leg_results"`
	ExecutedQty      decimal.Decimal `json:"executed_qty"`
	WeightedAvgPrice decimal.Decimal `json:"weighted_avg_price"`
	TotalFees        decimal.Decimal `json:"total_fees"`
	CostSavingsPct   float64         `json:"cost_savings_pct"`
	QualityScore     float64         `json:"quality_score"`
	ExecutionTime    time.Duration   `json:"execution_time"`
	Warnings         []string        `json:"warnings,omitempty"`
	Error            string          `json:"error,omitempty"`
	Timestamp        time.Time       `json:"timestamp"`
}

// VenuePerformanceRecord holds rolling per-venue execution statistics.
// Owned by the performance tracker, read-only elsewhere.
type VenuePerformanceRecord struct {
	Venue          string          `json:"venue"`
	ExecutionCount int64           `json:"execution_count"`
	SuccessRate    float64         `json:"success_rate"`
	AvgLatency     time.Duration   `json:"avg_latency"`
	AvgFee         decimal.Decimal `json:"avg_fee"`
	QualityScore   float64         `json:"quality_score"`
	LastUpdated    time.Time       `json:"last_updated"`
}

// Recommendation is the advisory output of GetRoutingRecommendations
type Recommendation struct {
	SingleVenue    *VenueScore `json:"single_venue,omitempty"`
	SplitPlan      *SplitPlan  `json:"split_plan,omitempty"`
	Recommendation string      `json:"recommendation"`
	Reasoning      []string    `json:"reasoning"`
}
