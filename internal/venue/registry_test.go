package venue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartsor/sor/pkg/types"
)

func TestRegistry_AddAndGet(t *testing.T) {
	r := NewRegistry()

	require.NoError(t, r.Add(NewSimulatedVenue("alpha", 99.9, 100.1, 50)))

	got, ok := r.Get("alpha")
	require.True(t, ok)
	assert.Equal(t, "alpha", got.Name())

	_, ok = r.Get("ghost")
	assert.False(t, ok)
}

func TestRegistry_RejectsDuplicate(t *testing.T) {
	r := NewRegistry()

	require.NoError(t, r.Add(NewSimulatedVenue("alpha", 99.9, 100.1, 50)))

	err := r.Add(NewSimulatedVenue("alpha", 99.0, 101.0, 10))
	assert.ErrorContains(t, err, "already registered")
}

func TestRegistry_ActiveVenuesSorted(t *testing.T) {
	r := NewRegistry()

	for _, name := range []string{"zulu", "alpha", "mike"} {
		require.NoError(t, r.Add(NewSimulatedVenue(name, 99.9, 100.1, 50)))
	}

	assert.Equal(t, []string{"alpha", "mike", "zulu"}, r.ActiveVenues())

	r.SetAvailable("mike", false, errors.New("connection reset"))
	assert.Equal(t, []string{"alpha", "zulu"}, r.ActiveVenues())
}

func TestRegistry_ListenerFiresOncePerChange(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Add(NewSimulatedVenue("alpha", 99.9, 100.1, 50)))

	var mu sync.Mutex
	var calls []bool
	r.OnStatusChange(func(venue string, available bool) {
		mu.Lock()
		calls = append(calls, available)
		mu.Unlock()
	})

	r.SetAvailable("alpha", false, errors.New("timeout"))
	r.SetAvailable("alpha", false, errors.New("timeout"))
	r.SetAvailable("alpha", true, nil)
	r.SetAvailable("ghost", false, nil)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []bool{false, true}, calls)
}

func TestRegistry_RemoveNotifies(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Add(NewSimulatedVenue("alpha", 99.9, 100.1, 50)))

	var mu sync.Mutex
	notified := ""
	r.OnStatusChange(func(venue string, available bool) {
		mu.Lock()
		notified = venue
		mu.Unlock()
	})

	r.Remove("alpha")

	mu.Lock()
	assert.Equal(t, "alpha", notified)
	mu.Unlock()
	assert.Empty(t, r.ActiveVenues())

	// removing an unknown venue is a no-op
	r.Remove("ghost")
}

func TestSimulatedVenue_MarketData(t *testing.T) {
	v := NewSimulatedVenue("alpha", 99.9, 100.1, 50)
	ctx := context.Background()

	md, err := v.GetMarketData(ctx, "BTC-USD")
	require.NoError(t, err)
	assert.True(t, md.Bid.Equal(decimal.NewFromFloat(99.9)))
	assert.True(t, md.Ask.Equal(decimal.NewFromFloat(100.1)))

	book, err := v.GetOrderBook(ctx, "BTC-USD", 10)
	require.NoError(t, err)
	assert.True(t, book.AskVolume().Equal(decimal.NewFromInt(50)))
	assert.True(t, book.BidVolume().Equal(decimal.NewFromInt(50)))
}

func TestSimulatedVenue_ExecuteOrder(t *testing.T) {
	v := NewSimulatedVenue("alpha", 99.9, 100.1, 50)

	order := &types.Order{
		ID:       "order-1",
		Symbol:   "BTC-USD",
		Side:     types.OrderSideBuy,
		Type:     types.OrderTypeMarket,
		Quantity: decimal.NewFromInt(10),
	}

	result, err := v.ExecuteOrder(context.Background(), order, types.ExecutionParams{})
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.True(t, result.ExecutedQty.Equal(decimal.NewFromInt(10)))
	assert.True(t, result.ExecutionPrice.Equal(decimal.NewFromFloat(100.1)))
	// taker fee at 10 bps of notional
	assert.True(t, result.Fees.Equal(decimal.NewFromFloat(100.1).Mul(decimal.NewFromFloat(0.01))),
		"fees were %s", result.Fees)
	assert.NotEmpty(t, result.ExchangeOrderID)
}

func TestSimulatedVenue_PartialFillAndFailure(t *testing.T) {
	v := NewSimulatedVenue("alpha", 99.9, 100.1, 50)
	v.SetExecution(0.5, 0, false)

	order := &types.Order{
		ID:       "order-1",
		Symbol:   "BTC-USD",
		Side:     types.OrderSideSell,
		Type:     types.OrderTypeMarket,
		Quantity: decimal.NewFromInt(10),
	}

	result, err := v.ExecuteOrder(context.Background(), order, types.ExecutionParams{})
	require.NoError(t, err)
	assert.True(t, result.ExecutedQty.Equal(decimal.NewFromInt(5)))
	assert.True(t, result.ExecutionPrice.Equal(decimal.NewFromFloat(99.9)), "sells fill at the bid")
	assert.True(t, result.RemainingQty.Equal(decimal.NewFromInt(5)))

	v.SetExecution(1, 0, true)
	_, err = v.ExecuteOrder(context.Background(), order, types.ExecutionParams{})
	assert.Error(t, err)
}

func TestSimulatedVenue_ExecutionHonorsContext(t *testing.T) {
	v := NewSimulatedVenue("alpha", 99.9, 100.1, 50)
	v.SetExecution(1, time.Second, false)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	order := &types.Order{
		ID:       "order-1",
		Symbol:   "BTC-USD",
		Side:     types.OrderSideBuy,
		Type:     types.OrderTypeMarket,
		Quantity: decimal.NewFromInt(1),
	}

	_, err := v.ExecuteOrder(ctx, order, types.ExecutionParams{})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
