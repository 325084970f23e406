package subscription

import (
	"errors"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"
)

// ErrInvalidCapacity indicates a non-positive maxSymbols at construction.
var ErrInvalidCapacity = errors.New("max symbols must be > 0")

// Stats holds monotonic subscription counters.
type Stats struct {
	// TotalSubscriptions counts symbols admitted, including via replacement.
	TotalSubscriptions int

	// Replacements counts admissions that evicted an incumbent.
	Replacements int
}

// Plan describes the outcome of a bulk subscription request before it is
// applied. It is scratch data: compute it, execute it once, discard it.
type Plan struct {
	// Add are requested symbols that fit into free capacity.
	Add []string

	// Replace are incumbent symbols to evict, paired index-wise with the
	// tail of the requested symbols that displace them.
	Replace []string

	// ReplaceWith are the requested symbols taking the evicted slots.
	ReplaceWith []string

	// Rejected are requested symbols that lost to every incumbent.
	Rejected []string

	// Bump are requested symbols already subscribed; execution raises their
	// stored priority to max(existing, requested).
	Bump []string
}

// Manager is a thread-safe, capacity-bounded symbol admission controller.
//
// All state is guarded by a single coarse mutex; expected symbol counts are
// small (tens), so lock granularity is deliberately simple. Getters return
// copies, never live views.
type Manager struct {
	maxSymbols int
	logger     *slog.Logger

	mu       sync.Mutex
	priority map[string]float64 // subscribed symbol -> priority
	stats    Stats

	nowFunc func() time.Time // injectable clock for testing
}

// NewManager creates a Manager with the given slot capacity.
// maxSymbols <= 0 is a configuration error.
func NewManager(maxSymbols int, logger *slog.Logger) (*Manager, error) {
	if maxSymbols <= 0 {
		return nil, ErrInvalidCapacity
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		maxSymbols: maxSymbols,
		logger:     logger,
		priority:   make(map[string]float64),
		nowFunc:    time.Now,
	}, nil
}

// NormalizeSymbols trims whitespace and drops empty entries, preserving input
// order and duplicates. Pure function.
func NormalizeSymbols(symbols []string) []string {
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		out = append(out, s)
	}
	return out
}

// timePriority is the default priority: seconds since epoch, so newer
// requests get a recency edge over stale ones. Not comparable with
// application-level priority scales; callers that mix the two should pass
// explicit priorities everywhere.
func (m *Manager) timePriority() float64 {
	now := m.nowFunc()
	return float64(now.UnixNano()) / float64(time.Second)
}

// Subscribe admits a symbol with the default wall-clock priority.
// See SubscribeWithPriority for the admission rules.
func (m *Manager) Subscribe(symbol string) (added, replaced bool) {
	return m.SubscribeWithPriority(symbol, m.timePriority())
}

// SubscribeWithPriority admits a single symbol.
//
// Already subscribed: the stored priority is raised to max(existing, priority)
// and (false, false) is returned. Free capacity: the symbol is added,
// returning (true, false). At capacity: the lowest-priority incumbent is
// evicted only if the new priority is strictly greater, returning
// (true, true); ties favor the incumbent and the request is rejected with
// (false, false).
func (m *Manager) SubscribeWithPriority(symbol string, priority float64) (added, replaced bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.priority[symbol]; ok {
		if priority > existing {
			m.priority[symbol] = priority
		}
		return false, false
	}

	if len(m.priority) < m.maxSymbols {
		m.priority[symbol] = priority
		m.stats.TotalSubscriptions++
		return true, false
	}

	victim, victimPriority, ok := m.lowestIncumbentLocked(nil)
	if !ok || priority <= victimPriority {
		return false, false
	}

	delete(m.priority, victim)
	m.priority[symbol] = priority
	m.stats.TotalSubscriptions++
	m.stats.Replacements++

	m.logger.Debug("replaced subscription",
		"evicted", victim,
		"evicted_priority", victimPriority,
		"admitted", symbol,
		"priority", priority,
	)

	return true, true
}

// Unsubscribe removes a symbol. No-op if absent.
func (m *Manager) Unsubscribe(symbol string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.priority, symbol)
}

// SubscribedSymbols returns a sorted snapshot of the admitted symbol set.
func (m *Manager) SubscribedSymbols() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]string, 0, len(m.priority))
	for s := range m.priority {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// IsSubscribed reports whether a symbol currently holds a slot.
func (m *Manager) IsSubscribed(symbol string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.priority[symbol]
	return ok
}

// Stats returns a copy of the counters, taken under the manager lock.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats
}

// CanSubscribe reports whether a symbol would be admitted right now at the
// default wall-clock priority: already subscribed, free capacity, or able to
// beat the lowest-priority incumbent.
func (m *Manager) CanSubscribe(symbol string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.priority[symbol]; ok {
		return true
	}
	if len(m.priority) < m.maxSymbols {
		return true
	}

	_, victimPriority, ok := m.lowestIncumbentLocked(nil)
	if !ok {
		return true
	}
	return m.timePriority() > victimPriority
}

// PlanBulkSubscription computes a Plan for a batch of requested symbols at a
// shared priority, without applying it.
//
// Plan and ExecutePlan are two phases of one logical operation: callers must
// invoke them back-to-back without other writers interleaving, or use
// PlanAndExecute which holds the lock across both phases.
func (m *Manager) PlanBulkSubscription(symbols []string, priority float64) Plan {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.planLocked(symbols, priority)
}

// ExecutePlan applies a previously computed Plan.
func (m *Manager) ExecutePlan(plan Plan, priority float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.executeLocked(plan, priority)
}

// PlanAndExecute plans and applies a bulk subscription atomically. The
// returned Plan describes what was done.
func (m *Manager) PlanAndExecute(symbols []string, priority float64) Plan {
	m.mu.Lock()
	defer m.mu.Unlock()

	plan := m.planLocked(symbols, priority)
	m.executeLocked(plan, priority)
	return plan
}

// planLocked computes the admission plan. Caller must hold m.mu.
func (m *Manager) planLocked(symbols []string, priority float64) Plan {
	var plan Plan

	requested := make(map[string]struct{}, len(symbols))
	var newSymbols []string
	for _, s := range NormalizeSymbols(symbols) {
		if _, seen := requested[s]; seen {
			continue
		}
		requested[s] = struct{}{}
		if _, ok := m.priority[s]; ok {
			plan.Bump = append(plan.Bump, s)
		} else {
			newSymbols = append(newSymbols, s)
		}
	}

	free := m.maxSymbols - len(m.priority)
	if free > len(newSymbols) {
		free = len(newSymbols)
	}
	if free > 0 {
		plan.Add = append(plan.Add, newSymbols[:free]...)
		newSymbols = newSymbols[free:]
	}

	if len(newSymbols) == 0 {
		return plan
	}

	// Eviction candidates: subscribed symbols not in the request, lowest
	// priority first. Ties break on symbol so planning is deterministic.
	candidates := m.evictionOrderLocked(requested)

	for _, s := range newSymbols {
		if len(candidates) == 0 {
			plan.Rejected = append(plan.Rejected, s)
			continue
		}
		victim := candidates[0]
		if priority > m.priority[victim] {
			candidates = candidates[1:]
			plan.Replace = append(plan.Replace, victim)
			plan.ReplaceWith = append(plan.ReplaceWith, s)
		} else {
			plan.Rejected = append(plan.Rejected, s)
		}
	}

	return plan
}

// executeLocked applies a plan. Caller must hold m.mu.
func (m *Manager) executeLocked(plan Plan, priority float64) {
	for _, s := range plan.Replace {
		delete(m.priority, s)
	}

	admit := func(s string) {
		if _, ok := m.priority[s]; ok {
			if priority > m.priority[s] {
				m.priority[s] = priority
			}
			return
		}
		if len(m.priority) >= m.maxSymbols {
			return
		}
		m.priority[s] = priority
		m.stats.TotalSubscriptions++
	}

	for _, s := range plan.Bump {
		if p, ok := m.priority[s]; ok && priority > p {
			m.priority[s] = priority
		}
	}
	for _, s := range plan.Add {
		admit(s)
	}
	for _, s := range plan.ReplaceWith {
		admit(s)
	}
	m.stats.Replacements += len(plan.Replace)

	if len(plan.Replace) > 0 || len(plan.Add) > 0 {
		m.logger.Debug("executed subscription plan",
			"added", len(plan.Add),
			"replaced", len(plan.Replace),
			"rejected", len(plan.Rejected),
			"subscribed", len(m.priority),
		)
	}
}

// lowestIncumbentLocked returns the lowest-priority subscribed symbol,
// excluding any in skip. Ties break on the lexically smallest symbol.
// Caller must hold m.mu.
func (m *Manager) lowestIncumbentLocked(skip map[string]struct{}) (symbol string, priority float64, ok bool) {
	for s, p := range m.priority {
		if skip != nil {
			if _, excluded := skip[s]; excluded {
				continue
			}
		}
		if !ok || p < priority || (p == priority && s < symbol) {
			symbol, priority, ok = s, p, true
		}
	}
	return symbol, priority, ok
}

// evictionOrderLocked returns subscribed symbols not in skip, sorted ascending
// by (priority, symbol). Caller must hold m.mu.
func (m *Manager) evictionOrderLocked(skip map[string]struct{}) []string {
	out := make([]string, 0, len(m.priority))
	for s := range m.priority {
		if _, excluded := skip[s]; excluded {
			continue
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		pi, pj := m.priority[out[i]], m.priority[out[j]]
		if pi != pj {
			return pi < pj
		}
		return out[i] < out[j]
	})
	return out
}
