package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order sides
const (
	OrderSideBuy  = "BUY"
	OrderSideSell = "SELL"
)

// Order types
const (
	OrderTypeMarket = "MARKET"
	OrderTypeLimit  = "LIMIT"
)

// Order status
const (
	OrderStatusNew             = "NEW"
	OrderStatusPartiallyFilled = "PARTIALLY_FILLED"
	OrderStatusFilled          = "FILLED"
	OrderStatusCanceled        = "CANCELED"
	OrderStatusRejected        = "REJECTED"
)

// Time in force
const (
	TimeInForceGTC = "GTC" // Good Till Cancel
	TimeInForceIOC = "IOC" // Immediate or Cancel
	TimeInForceFOK = "FOK" // Fill or Kill
)

// Type aliases for compatibility
type OrderSide = string
type OrderType = string
type OrderStatus = string
type TimeInForce = string

// Order represents a trading order submitted for routing. Immutable once a
// routing decision begins; child orders for splits carry a suffixed ID and
// reference the parent through ParentOrderID.
type Order struct {
	ID            string          `json:"id"`
	ClientOrderID string          `json:"client_order_id,omitempty"`
	ParentOrderID string          `json:"parent_order_id,omitempty"`
	Symbol        string          `json:"symbol"`
	Side          OrderSide       `json:"side"`
	Type          OrderType       `json:"type"`
	Status        OrderStatus     `json:"status,omitempty"`
	Price         decimal.Decimal `json:"price,omitempty"`
	Quantity      decimal.Decimal `json:"quantity"`
	TimeInForce   TimeInForce     `json:"time_in_force,omitempty"`
	MaxSlippage   decimal.Decimal `json:"max_slippage,omitempty"`
	Timeout       time.Duration   `json:"timeout,omitempty"`
	RetryAttempts int             `json:"retry_attempts,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// MarketData represents a venue's current market snapshot
type MarketData struct {
	Symbol     string          `json:"symbol"`
	Bid        decimal.Decimal `json:"bid"`
	Ask        decimal.Decimal `json:"ask"`
	BidQty     decimal.Decimal `json:"bid_qty"`
	AskQty     decimal.Decimal `json:"ask_qty"`
	Volume24h  decimal.Decimal `json:"volume_24h"`
	UpdateTime time.Time       `json:"update_time"`
}

// Mid returns the bid/ask midpoint, zero when either side is missing
func (m *MarketData) Mid() decimal.Decimal {
	if m.Bid.IsZero() || m.Ask.IsZero() {
		return decimal.Zero
	}
	return m.Bid.Add(m.Ask).Div(decimal.NewFromInt(2))
}

// PriceLevel represents a price level in an order book
type PriceLevel struct {
	Price    decimal.Decimal `json:"price"`
	Quantity decimal.Decimal `json:"quantity"`
}

// OrderBookDepth represents aggregated order book depth for one venue
type OrderBookDepth struct {
	Symbol     string       `json:"symbol"`
	Bids       []PriceLevel `json:"bids"`
	Asks       []PriceLevel `json:"asks"`
	UpdateTime time.Time    `json:"update_time"`
}

// BidVolume returns total quantity across all bid levels
func (b *OrderBookDepth) BidVolume() decimal.Decimal {
	total := decimal.Zero
	for _, level := range b.Bids {
		total = total.Add(level.Quantity)
	}
	return total
}

// AskVolume returns total quantity across all ask levels
func (b *OrderBookDepth) AskVolume() decimal.Decimal {
	total := decimal.Zero
	for _, level := range b.Asks {
		total = total.Add(level.Quantity)
	}
	return total
}

// Spread returns best ask minus best bid, zero when either side is empty
func (b *OrderBookDepth) Spread() decimal.Decimal {
	if len(b.Bids) == 0 || len(b.Asks) == 0 {
		return decimal.Zero
	}
	return b.Asks[0].Price.Sub(b.Bids[0].Price)
}

// VenueHealth represents venue connectivity and reliability metrics
type VenueHealth struct {
	Venue        string    `json:"venue"`
	UptimePct    float64   `json:"uptime_pct"`
	LatencyMs    float64   `json:"latency_ms"`
	ErrorRatePct float64   `json:"error_rate_pct"`
	UpdateTime   time.Time `json:"update_time"`
}

// FeeSchedule represents a venue's trading fees as fractional rates
// (0.001 = 10 bps)
type FeeSchedule struct {
	Venue      string          `json:"venue"`
	MakerFee   decimal.Decimal `json:"maker_fee"`
	TakerFee   decimal.Decimal `json:"taker_fee"`
	FeeAsset   string          `json:"fee_asset,omitempty"`
	UpdateTime time.Time       `json:"update_time"`
}

// ExecutionParams carries per-call execution constraints to the venue layer
type ExecutionParams struct {
	Venues             []string           `json:"venues"`
	Weights            map[string]float64 `json:"weights"`
	MaxSlippage        decimal.Decimal    `json:"max_slippage"`
	Timeout            time.Duration      `json:"timeout"`
	RetryAttempts      int                `json:"retry_attempts"`
	MaxOrderSize       decimal.Decimal    `json:"max_order_size,omitempty"`
	ConcentrationLimit float64            `json:"concentration_limit,omitempty"`
	AllowPartialFills  bool               `json:"allow_partial_fills"`
}

// ExecutionResult is the venue layer's response to a single execution call
type ExecutionResult struct {
	Success         bool            `json:"success"`
	ExecutedQty     decimal.Decimal `json:"executed_qty"`
	ExecutionPrice  decimal.Decimal `json:"execution_price"`
	RemainingQty    decimal.Decimal `json:"remaining_qty"`
	Fees            decimal.Decimal `json:"fees"`
	ExchangeOrderID string          `json:"exchange_order_id,omitempty"`
	Error           string          `json:"error,omitempty"`
}
