package router

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/smartsor/sor/pkg/types"
)

// Scoring weight constants. Liquidity and speed weights are fixed; price,
// fee and reliability weights derive from router configuration.
const (
	liquidityWeight = 0.2
	speedWeight     = 0.1

	// neutral reliability for venues reporting no health data
	reliabilityNoHealth = 70

	// market data older than this gets the stale_data risk tag
	staleDataThreshold = 30 * time.Second
)

// VenueScorer computes per-venue composite scores for an order. Scoring is a
// pure function of the routing context plus the tracker's historical records;
// repeated calls over the same snapshot produce identical scores.
type VenueScorer struct {
	config  Config
	tracker *PerformanceTracker
	logger  *logrus.Entry
	emit    func(Event)
}

func NewVenueScorer(config Config, tracker *PerformanceTracker, emit func(Event)) *VenueScorer {
	if emit == nil {
		emit = func(Event) {}
	}
	return &VenueScorer{
		config:  config,
		tracker: tracker,
		logger:  logrus.WithField("component", "venue-scorer"),
		emit:    emit,
	}
}

// ScoreVenues scores every venue in the context that has both market data
// and an order book. Venues that error during scoring are skipped with a
// diagnostic event. Output is sorted descending by total score; ties order
// by lower risk score, then venue name.
func (vs *VenueScorer) ScoreVenues(rc *RoutingContext) []VenueScore {
	scores := make([]VenueScore, 0, len(rc.Venues))

	for _, name := range rc.Venues {
		md, hasMD := rc.MarketData[name]
		book, hasBook := rc.OrderBooks[name]
		if !hasMD || !hasBook {
			continue
		}

		score, err := vs.scoreVenue(rc, name, md, book)
		if err != nil {
			scoringErr := &ScoringError{Venue: name, Err: err}
			vs.logger.WithField("venue", name).WithError(err).Warn("Venue scoring failed")
			vs.emit(Event{
				Type:      EventScoringError,
				Venue:     name,
				Symbol:    rc.Order.Symbol,
				Message:   scoringErr.Error(),
				Timestamp: time.Now(),
			})
			continue
		}

		scores = append(scores, score)
	}

	sort.Slice(scores, func(i, j int) bool {
		if scores[i].TotalScore != scores[j].TotalScore {
			return scores[i].TotalScore > scores[j].TotalScore
		}
		if scores[i].RiskScore != scores[j].RiskScore {
			return scores[i].RiskScore < scores[j].RiskScore
		}
		return scores[i].Venue < scores[j].Venue
	})

	return scores
}

func (vs *VenueScorer) scoreVenue(rc *RoutingContext, name string, md *types.MarketData, book *types.OrderBookDepth) (VenueScore, error) {
	order := rc.Order

	mid := md.Mid()
	if mid.IsZero() {
		return VenueScore{}, fmt.Errorf("no usable bid/ask quotes")
	}

	quote := md.Ask
	available := book.AskVolume()
	if order.Side == types.OrderSideSell {
		quote = md.Bid
		available = book.BidVolume()
	}
	if quote.IsZero() {
		return VenueScore{}, fmt.Errorf("missing %s side quote", order.Side)
	}

	health := rc.Health[name]
	fees := rc.Fees[name]

	score := VenueScore{
		Venue:              name,
		PriceScore:         vs.priceScore(quote, mid),
		LiquidityScore:     vs.liquidityScore(available, order.Quantity),
		FeeScore:           vs.feeScore(fees),
		ReliabilityScore:   vs.reliabilityScore(name, health),
		SpeedScore:         vs.speedScore(health),
		ExpectedPrice:      quote,
		AvailableLiquidity: available,
		EstimatedFee:       vs.estimateFee(order.Quantity, quote, fees),
	}
	if health != nil {
		score.EstimatedLatencyMs = health.LatencyMs
	}

	score.TotalScore = vs.totalScore(score)
	score.RiskScore, score.RiskFactors = vs.riskScore(order, md, book, health, available)

	return score, nil
}

// priceScore maps the relevant quote's deviation from mid, in basis points,
// linearly onto [0,100]: 0 bps deviation scores 100, 100 bps or more scores 0.
func (vs *VenueScorer) priceScore(quote, mid decimal.Decimal) float64 {
	deviationBps := quote.Sub(mid).Abs().Div(mid).Mul(decimal.NewFromInt(10000)).InexactFloat64()
	return clampScore(100 - deviationBps)
}

// liquidityScore is a four-tier step function of available/required quantity
func (vs *VenueScorer) liquidityScore(available, required decimal.Decimal) float64 {
	if required.IsZero() {
		return 0
	}
	ratio := available.Div(required).InexactFloat64()

	switch {
	case ratio >= 2.0:
		return 100
	case ratio >= 1.0:
		return 80
	case ratio >= 0.5:
		return 60
	default:
		return 30
	}
}

// feeScore maps the taker fee rate in basis points onto [0,100]: 0 bps
// scores 100, 50 bps or more scores 0.
func (vs *VenueScorer) feeScore(fees *types.FeeSchedule) float64 {
	if fees == nil {
		return 50
	}
	feeBps := fees.TakerFee.Mul(decimal.NewFromInt(10000)).InexactFloat64()
	return clampScore(100 - feeBps*2)
}

// reliabilityScore starts at 50 and adds bounded deltas for uptime, latency
// and error-rate bands plus a small contribution from the venue's historical
// record. Venues with no health data default to 70.
func (vs *VenueScorer) reliabilityScore(name string, health *types.VenueHealth) float64 {
	if health == nil {
		return reliabilityNoHealth
	}

	score := 50.0

	if health.UptimePct > 90 {
		score += 15
	} else {
		score -= 15
	}

	switch {
	case health.LatencyMs < 50:
		score += 20
	case health.LatencyMs < 100:
		score += 10
	case health.LatencyMs > 200:
		score -= 10
	}

	switch {
	case health.ErrorRatePct < 1:
		score += 15
	case health.ErrorRatePct < 5:
		score += 5
	case health.ErrorRatePct > 10:
		score -= 20
	}

	if record := vs.tracker.Record(name); record != nil && record.ExecutionCount > 0 {
		score += (record.SuccessRate - 0.5) * 20
	}

	return clampScore(score)
}

// speedScore is a five-tier step function of latency alone
func (vs *VenueScorer) speedScore(health *types.VenueHealth) float64 {
	if health == nil {
		return 50
	}

	switch {
	case health.LatencyMs < 20:
		return 100
	case health.LatencyMs < 50:
		return 90
	case health.LatencyMs < 100:
		return 75
	case health.LatencyMs < 200:
		return 50
	default:
		return 25
	}
}

// totalScore is the weighted average of the five sub-scores. Cost weight is
// split 60/40 between price and fee; liquidity and speed weights are fixed.
func (vs *VenueScorer) totalScore(score VenueScore) float64 {
	priceWeight := vs.config.CostWeight * 0.6
	feeWeight := vs.config.CostWeight * 0.4

	weighted := score.PriceScore*priceWeight +
		score.FeeScore*feeWeight +
		score.ReliabilityScore*vs.config.ReliabilityWeight +
		score.LiquidityScore*liquidityWeight +
		score.SpeedScore*speedWeight

	totalWeight := priceWeight + feeWeight + vs.config.ReliabilityWeight + liquidityWeight + speedWeight
	if totalWeight == 0 {
		return 0
	}

	return clampScore(weighted / totalWeight)
}

// riskScore carries a base of 20 plus additive penalties, capped at 100.
// The returned tags mirror the penalty thresholds and are diagnostic only.
func (vs *VenueScorer) riskScore(order *types.Order, md *types.MarketData, book *types.OrderBookDepth, health *types.VenueHealth, available decimal.Decimal) (float64, []string) {
	risk := 20.0
	var factors []string

	if available.LessThan(order.Quantity) {
		risk += 25
		factors = append(factors, RiskInsufficientLiquidity)
	}

	mid := md.Mid()
	if !mid.IsZero() {
		spreadRatio := book.Spread().Div(mid).InexactFloat64()
		if spreadRatio > 0.005 {
			risk += 20
			factors = append(factors, RiskWideSpread)
		}
	}

	if health != nil {
		if health.ErrorRatePct > 5 {
			risk += 15
			factors = append(factors, RiskHighErrorRate)
		}
		if health.UptimePct < 95 {
			risk += 10
			factors = append(factors, RiskReliabilityConcerns)
		}
		if health.LatencyMs > 200 {
			risk += 10
			factors = append(factors, RiskHighLatency)
		}
	}

	if !md.UpdateTime.IsZero() && time.Since(md.UpdateTime) > staleDataThreshold {
		risk += 10
		factors = append(factors, RiskStaleData)
	}

	if risk > 100 {
		risk = 100
	}

	return risk, factors
}

func (vs *VenueScorer) estimateFee(quantity, price decimal.Decimal, fees *types.FeeSchedule) decimal.Decimal {
	if fees == nil {
		return decimal.Zero
	}
	return quantity.Mul(price).Mul(fees.TakerFee)
}

func clampScore(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
