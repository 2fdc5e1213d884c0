// Package trailing ratchets per-position stop losses as price moves in the
// position's favour and keeps a bounded audit trail of every accepted move.
package trailing

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ShizNick84/SmoothSail-sub010/internal/logger"
	"github.com/ShizNick84/SmoothSail-sub010/internal/pkg/ring"
	"github.com/ShizNick84/SmoothSail-sub010/internal/risk"

	"github.com/google/uuid"
)

type Phase string

const (
	PhaseInactive  Phase = "INACTIVE"
	PhaseTrailing  Phase = "TRAILING"
	PhaseBreakeven Phase = "BREAKEVEN"
)

const (
	ReasonInvalid      = "invalid position"
	ReasonBelowMinimum = "below minimum profit to trail"
	ReasonUnfavorable  = "unfavorable direction"
	ReasonCrossesPrice = "stop would cross market price"
	ReasonTrailing     = "trailing stop advanced"
	ReasonLevel        = "trailing stop tightened toward support/resistance"
	ReasonBreakeven    = "breakeven protection"
)

// Update is one accepted stop move.
type Update struct {
	ID           string    `json:"id"`
	PositionID   string    `json:"position_id"`
	Symbol       string    `json:"symbol"`
	Side         risk.Side `json:"side"`
	PreviousStop float64   `json:"previous_stop"`
	NewStop      float64   `json:"new_stop"`
	Price        float64   `json:"price"`
	Reason       string    `json:"reason"`
	Timestamp    time.Time `json:"timestamp"`
}

// Result is returned by every UpdateTrailingStop call. NewStopLoss always holds
// the effective stop, whether or not it moved.
type Result struct {
	PositionID       string  `json:"position_id"`
	NewStopLoss      float64 `json:"new_stop_loss"`
	Updated          bool    `json:"updated"`
	TrailingDistance float64 `json:"trailing_distance"`
	BreakevenActive  bool    `json:"breakeven_active"`
	Phase            Phase   `json:"phase"`
	ProfitPercent    float64 `json:"profit_percent"`
	Reason           string  `json:"reason"`
	Record           *Update `json:"record,omitempty"`
}

// State is a read-only view of a tracked position.
type State struct {
	PositionID      string    `json:"position_id"`
	Symbol          string    `json:"symbol"`
	Side            risk.Side `json:"side"`
	Phase           Phase     `json:"phase"`
	StopLoss        float64   `json:"stop_loss"`
	BreakevenActive bool      `json:"breakeven_active"`
	Updates         int       `json:"updates"`
	LastUpdated     time.Time `json:"last_updated"`
}

type positionState struct {
	mu          sync.Mutex
	symbol      string
	side        risk.Side
	phase       Phase
	breakeven   bool
	lastStop    float64
	lastUpdated time.Time
	history     *ring.Buffer[Update]
}

// Manager owns per-position ratchet state. Each position has its own lock so
// the directional guard runs under mutual exclusion per position while
// different positions proceed in parallel.
type Manager struct {
	mu        sync.RWMutex
	positions map[string]*positionState
	now       func() time.Time
}

type Option func(*Manager)

// WithClock overrides time.Now for audit timestamps.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

func NewManager(opts ...Option) *Manager {
	m := &Manager{
		positions: make(map[string]*positionState),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) stateFor(pos risk.Position) *positionState {
	m.mu.RLock()
	st, ok := m.positions[pos.ID]
	m.mu.RUnlock()
	if ok {
		return st
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if st, ok = m.positions[pos.ID]; ok {
		return st
	}
	st = &positionState{
		symbol:  pos.Symbol,
		side:    pos.Side,
		phase:   PhaseInactive,
		history: ring.New[Update](historyCapacity),
	}
	m.positions[pos.ID] = st
	return st
}

func (m *Manager) lookup(id string) (*positionState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.positions[id]
	if !ok {
		return nil, fmt.Errorf("trailing: %w: %s", risk.ErrPositionNotFound, id)
	}
	return st, nil
}

// UpdateTrailingStop evaluates one price tick for pos. A LONG stop only ever
// moves up and a SHORT stop only ever moves down, measured against both the
// caller's stop and the last stop this manager accepted for the position.
func (m *Manager) UpdateTrailingStop(pos risk.Position, cfg Config, mc risk.MarketConditions) Result {
	res := Result{PositionID: pos.ID, NewStopLoss: pos.StopLoss, Phase: PhaseInactive}
	if strings.TrimSpace(pos.ID) == "" || !pos.Side.Valid() || pos.EntryPrice <= 0 || pos.CurrentPrice <= 0 {
		res.Reason = ReasonInvalid
		return res
	}
	st := m.stateFor(pos)
	st.mu.Lock()
	defer st.mu.Unlock()

	side := pos.Side
	currentStop := favourable(side, pos.StopLoss, st.lastStop)
	profit := pos.ProfitPercent()
	res.NewStopLoss = currentStop
	res.ProfitPercent = profit
	res.BreakevenActive = st.breakeven
	res.Phase = st.phase

	if profit < cfg.MinProfitToTrail {
		res.Reason = ReasonBelowMinimum
		logger.Debugf("trailing %s: profit %.3f%% below %.3f%%, stop stays %.8f", pos.ID, profit, cfg.MinProfitToTrail, currentStop)
		return res
	}

	distance := trailingDistance(cfg.TrailingDistance, cfg, pos.EntryPrice, mc)
	res.TrailingDistance = distance
	candidate := offsetPrice(pos.CurrentPrice, distance, side)
	reason := ReasonTrailing
	if lvl, ok := tightenTowardLevel(side, candidate, pos.CurrentPrice, mc); ok {
		candidate = lvl
		reason = ReasonLevel
	}

	if profit >= cfg.BreakevenThreshold {
		st.breakeven = true
	}
	if st.breakeven {
		be := breakevenStop(pos.EntryPrice, side)
		if best := favourable(side, candidate, be); best != candidate {
			candidate = best
			reason = ReasonBreakeven
		}
		st.phase = PhaseBreakeven
	} else {
		st.phase = PhaseTrailing
	}
	res.BreakevenActive = st.breakeven
	res.Phase = st.phase

	if crossesPrice(side, candidate, pos.CurrentPrice) {
		res.Reason = ReasonCrossesPrice
		return res
	}
	if !improves(side, candidate, currentStop) {
		res.Reason = ReasonUnfavorable
		logger.Debugf("trailing %s: candidate %.8f does not improve %.8f", pos.ID, candidate, currentStop)
		return res
	}

	now := m.now()
	rec := Update{
		ID:           uuid.NewString(),
		PositionID:   pos.ID,
		Symbol:       pos.Symbol,
		Side:         side,
		PreviousStop: currentStop,
		NewStop:      candidate,
		Price:        pos.CurrentPrice,
		Reason:       reason,
		Timestamp:    now,
	}
	st.history.Push(rec)
	st.lastStop = candidate
	st.lastUpdated = now

	res.NewStopLoss = candidate
	res.Updated = true
	res.Reason = reason
	res.Record = &rec
	logger.Infof("trailing %s %s %s: stop %.8f -> %.8f (price=%.8f dist=%.3f%% phase=%s)",
		pos.ID, pos.Symbol, side, currentStop, candidate, pos.CurrentPrice, distance, st.phase)
	return res
}

// History returns the audit trail for id, oldest first.
func (m *Manager) History(id string) ([]Update, error) {
	st, err := m.lookup(id)
	if err != nil {
		return nil, err
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.history.Slice(), nil
}

// ClearHistory drops the audit trail but keeps the ratchet state.
func (m *Manager) ClearHistory(id string) error {
	st, err := m.lookup(id)
	if err != nil {
		return err
	}
	st.mu.Lock()
	st.history.Reset()
	st.mu.Unlock()
	return nil
}

// ClosePosition forgets all state for id.
func (m *Manager) ClosePosition(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.positions[id]; !ok {
		return fmt.Errorf("trailing: %w: %s", risk.ErrPositionNotFound, id)
	}
	delete(m.positions, id)
	return nil
}

func (m *Manager) State(id string) (State, error) {
	st, err := m.lookup(id)
	if err != nil {
		return State{}, err
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return State{
		PositionID:      id,
		Symbol:          st.symbol,
		Side:            st.side,
		Phase:           st.phase,
		StopLoss:        st.lastStop,
		BreakevenActive: st.breakeven,
		Updates:         st.history.Len(),
		LastUpdated:     st.lastUpdated,
	}, nil
}

// ActivePositions lists tracked position ids in sorted order.
func (m *Manager) ActivePositions() []string {
	m.mu.RLock()
	ids := make([]string, 0, len(m.positions))
	for id := range m.positions {
		ids = append(ids, id)
	}
	m.mu.RUnlock()
	sort.Strings(ids)
	return ids
}

// trailingDistance scales base by volatility, floors it at twice the ATR
// percentage when adjustment is enabled, and caps it at 5%.
func trailingDistance(base float64, cfg Config, entry float64, mc risk.MarketConditions) float64 {
	d := base
	if cfg.VolatilityAdjustment {
		d *= 1 + math.Max(mc.Volatility, 0)*0.5
		if mc.ATR > 0 && entry > 0 {
			d = math.Max(d, 2*mc.ATR/entry*100)
		}
	}
	return math.Min(d, maxTrailingDistancePct)
}

// tightenTowardLevel pulls the candidate up to just below support (LONG) or
// down to just above resistance (SHORT) when that level sits between the
// candidate and the market price. The stop never passes the level itself.
func tightenTowardLevel(side risk.Side, candidate, price float64, mc risk.MarketConditions) (float64, bool) {
	switch side {
	case risk.SideLong:
		if !mc.HasSupport() || mc.Support >= price {
			return candidate, false
		}
		lvl := offsetPrice(mc.Support, levelOffsetPct, side)
		if improves(side, lvl, candidate) {
			return lvl, true
		}
	case risk.SideShort:
		if !mc.HasResistance() || mc.Resistance <= price {
			return candidate, false
		}
		lvl := offsetPrice(mc.Resistance, levelOffsetPct, side)
		if improves(side, lvl, candidate) {
			return lvl, true
		}
	}
	return candidate, false
}

func breakevenStop(entry float64, side risk.Side) float64 {
	return offsetPrice(entry, -breakevenFeeBuffer*100, side)
}
