package venue

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/smartsor/sor/pkg/types"
)

// Connector is the uniform capability contract a venue adapter must satisfy.
// The router never speaks a venue's native protocol; everything it needs
// flows through these five calls.
type Connector interface {
	Name() string
	GetMarketData(ctx context.Context, symbol string) (*types.MarketData, error)
	GetOrderBook(ctx context.Context, symbol string, depth int) (*types.OrderBookDepth, error)
	GetHealth(ctx context.Context) (*types.VenueHealth, error)
	GetFeeSchedule(ctx context.Context) (*types.FeeSchedule, error)
	ExecuteOrder(ctx context.Context, order *types.Order, params types.ExecutionParams) (*types.ExecutionResult, error)
}

// StatusListener is notified whenever a venue's availability flips
type StatusListener func(venue string, available bool)

type entry struct {
	connector Connector
	available bool
	lastError error
	lastCheck time.Time
}

// Registry holds the set of venues the router may route to, with
// availability flags and status-change notification.
type Registry struct {
	mu        sync.RWMutex
	venues    map[string]*entry
	listeners []StatusListener
	logger    *logrus.Entry
	stopCh    chan struct{}
}

func NewRegistry() *Registry {
	return &Registry{
		venues: make(map[string]*entry),
		logger: logrus.WithField("component", "venue-registry"),
		stopCh: make(chan struct{}),
	}
}

// Add registers a venue, initially available
func (r *Registry) Add(connector Connector) error {
	name := connector.Name()
	if name == "" {
		return fmt.Errorf("venue name is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.venues[name]; exists {
		return fmt.Errorf("venue %s already registered", name)
	}

	r.venues[name] = &entry{
		connector: connector,
		available: true,
		lastCheck: time.Now(),
	}
	r.logger.WithField("venue", name).Info("Venue registered")

	return nil
}

// Remove unregisters a venue and notifies listeners
func (r *Registry) Remove(name string) {
	r.mu.Lock()
	_, exists := r.venues[name]
	delete(r.venues, name)
	listeners := r.snapshotListeners()
	r.mu.Unlock()

	if exists {
		r.logger.WithField("venue", name).Info("Venue removed")
		for _, listener := range listeners {
			listener(name, false)
		}
	}
}

// Get returns the connector for a venue if it is registered
func (r *Registry) Get(name string) (Connector, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, exists := r.venues[name]
	if !exists {
		return nil, false
	}
	return e.connector, true
}

// ActiveVenues returns the names of all available venues, sorted for
// deterministic iteration
func (r *Registry) ActiveVenues() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	active := make([]string, 0, len(r.venues))
	for name, e := range r.venues {
		if e.available {
			active = append(active, name)
		}
	}
	sort.Strings(active)

	return active
}

// SetAvailable flips a venue's availability. Listeners fire only on an
// actual state change.
func (r *Registry) SetAvailable(name string, available bool, cause error) {
	r.mu.Lock()
	e, exists := r.venues[name]
	if !exists {
		r.mu.Unlock()
		return
	}

	changed := e.available != available
	e.available = available
	e.lastError = cause
	e.lastCheck = time.Now()
	listeners := r.snapshotListeners()
	r.mu.Unlock()

	if !changed {
		return
	}

	r.logger.WithFields(logrus.Fields{
		"venue":     name,
		"available": available,
	}).Warn("Venue status changed")

	for _, listener := range listeners {
		listener(name, available)
	}
}

// OnStatusChange registers a listener for availability changes
func (r *Registry) OnStatusChange(listener StatusListener) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = append(r.listeners, listener)
}

// MonitorHealth polls every venue's health endpoint on the given interval
// and flips availability on errors. Blocks until ctx is done or Stop.
func (r *Registry) MonitorHealth(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stopCh:
			return
		case <-ticker.C:
			r.checkAll(ctx)
		}
	}
}

// Stop terminates health monitoring
func (r *Registry) Stop() {
	close(r.stopCh)
}

func (r *Registry) checkAll(ctx context.Context) {
	r.mu.RLock()
	connectors := make(map[string]Connector, len(r.venues))
	for name, e := range r.venues {
		connectors[name] = e.connector
	}
	r.mu.RUnlock()

	for name, connector := range connectors {
		checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		_, err := connector.GetHealth(checkCtx)
		cancel()

		r.SetAvailable(name, err == nil, err)
	}
}

// caller must hold r.mu
func (r *Registry) snapshotListeners() []StatusListener {
	listeners := make([]StatusListener, len(r.listeners))
	copy(listeners, r.listeners)
	return listeners
}
