package router

import (
	"context"
	"fmt"
	"math/rand"
	"sync/atomic"

	"github.com/smartsor/sor/pkg/types"
)

// GetBestVenue scores all venues for the order and returns the top-ranked
// one, skipping any venue in exclude. Returns nil when no venue qualifies.
func (sor *SmartOrderRouter) GetBestVenue(ctx context.Context, order *types.Order, exclude []string) (*VenueScore, error) {
	if err := sor.validateOrder(order); err != nil {
		return nil, fmt.Errorf("invalid order: %w", err)
	}

	rc, err := sor.builder.Build(ctx, order, sor.resolveStrategy(nil))
	if err != nil {
		return nil, err
	}

	excluded := make(map[string]bool, len(exclude))
	for _, name := range exclude {
		excluded[name] = true
	}

	for _, score := range sor.scorer.ScoreVenues(rc) {
		if excluded[score.Venue] {
			continue
		}
		if score.TotalScore < sor.config.MinQualityScore {
			continue
		}
		best := score
		return &best, nil
	}

	return nil, nil
}

// GetRoutingRecommendations produces an advisory routing decision with
// reasoning, without executing anything. When no venue passes the quality
// gate, the configured fallback strategy picks a venue anyway and the
// recommendation flags it as a fallback.
func (sor *SmartOrderRouter) GetRoutingRecommendations(ctx context.Context, order *types.Order) (*Recommendation, error) {
	if err := sor.validateOrder(order); err != nil {
		return nil, fmt.Errorf("invalid order: %w", err)
	}

	rc, err := sor.builder.Build(ctx, order, sor.resolveStrategy(nil))
	if err != nil {
		return nil, err
	}

	scores := sor.scorer.ScoreVenues(rc)
	if len(scores) == 0 {
		return &Recommendation{
			Recommendation: "none",
			Reasoning:      []string{"no venue produced a usable score"},
		}, nil
	}

	rec := &Recommendation{}
	top := scores[0]
	rec.SingleVenue = &top

	plan := sor.splitter.Plan(rc, scores)
	if plan != nil && plan.ExpectedImprovement > sor.config.TargetSavingsPct {
		rec.SplitPlan = plan
		rec.Recommendation = "split"
		rec.Reasoning = append(rec.Reasoning,
			fmt.Sprintf("splitting across %d venues improves expected cost by %.2f%%",
				len(plan.Legs), plan.ExpectedImprovement))
		rec.Reasoning = append(rec.Reasoning,
			fmt.Sprintf("aggregate plan risk %.0f", plan.RiskScore))
		return rec, nil
	}

	if top.TotalScore >= sor.config.MinQualityScore {
		rec.Recommendation = "single"
		rec.Reasoning = append(rec.Reasoning,
			fmt.Sprintf("%s ranks highest with score %.1f", top.Venue, top.TotalScore))
		if len(top.RiskFactors) > 0 {
			rec.Reasoning = append(rec.Reasoning,
				fmt.Sprintf("risk factors on %s: %v", top.Venue, top.RiskFactors))
		}
		return rec, nil
	}

	fallback := sor.fallbackVenue(scores)
	rec.SingleVenue = fallback
	rec.Recommendation = fmt.Sprintf("fallback:%s", sor.config.FallbackStrategy)
	rec.Reasoning = append(rec.Reasoning,
		fmt.Sprintf("no venue meets minimum quality %.0f; best is %.1f",
			sor.config.MinQualityScore, top.TotalScore))
	rec.Reasoning = append(rec.Reasoning,
		fmt.Sprintf("fallback strategy %s selects %s", sor.config.FallbackStrategy, fallback.Venue))

	return rec, nil
}

// fallbackVenue picks a venue according to the configured fallback strategy.
// Only used for recommendations; RouteOrder still rejects when the quality
// gate fails.
func (sor *SmartOrderRouter) fallbackVenue(scores []VenueScore) *VenueScore {
	var pick VenueScore

	switch sor.config.FallbackStrategy {
	case FallbackRandom:
		pick = scores[rand.Intn(len(scores))]
	case FallbackRoundRobin:
		idx := atomic.AddUint64(&sor.rrIndex, 1)
		pick = scores[int(idx)%len(scores)]
	default: // best_available
		pick = scores[0]
	}

	return &pick
}
