package utils

import (
	"math/rand"
	"strings"
	"sync"
	"time"

	"leadpilot/apperrors"
	"leadpilot/models"
)

// senderSlot tracks one sender account's usage for the current day.
// cap <= 0 means unlimited.
type senderSlot struct {
	config models.SenderConfig
	cap    int
	sent   int
}

func (s *senderSlot) hasQuota() bool {
	return s.cap <= 0 || s.sent < s.cap
}

// RotationPool serializes sender selection for a single sequence. Usage
// counters are transient: they live in memory and reset at local midnight,
// or when the process restarts.
type RotationPool struct {
	mu         sync.Mutex
	sequenceID uint
	policy     string
	slots      []*senderSlot
	cursor     int
	resetDay   string

	now func() time.Time
	rnd *rand.Rand
}

// RotationRegistry holds one pool per sequence.
type RotationRegistry struct {
	mu    sync.Mutex
	pools map[uint]*RotationPool
	now   func() time.Time
	rnd   *rand.Rand
}

func NewRotationRegistry() *RotationRegistry {
	return &RotationRegistry{
		pools: make(map[uint]*RotationPool),
		now:   time.Now,
		rnd:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Rotation is the process-wide registry used by the send path.
var Rotation = NewRotationRegistry()

// PoolFor returns the pool for a sequence, building or rebuilding it when the
// sender roster changed. defaultCap applies to senders without their own cap;
// defaultCap <= 0 means unlimited. Daily counters survive a rebuild for
// senders that remain in the roster.
func (r *RotationRegistry) PoolFor(sequenceID uint, senders []models.SenderConfig, policy string, defaultCap int) *RotationPool {
	r.mu.Lock()
	defer r.mu.Unlock()

	pool, ok := r.pools[sequenceID]
	if ok && pool.matches(senders, policy, defaultCap) {
		return pool
	}

	var carried map[string]int
	if ok {
		carried = pool.usageLocked()
	}

	if policy == "" {
		policy = models.PolicyRoundRobin
	}
	pool = &RotationPool{
		sequenceID: sequenceID,
		policy:     policy,
		resetDay:   dayKey(r.now()),
		now:        r.now,
		rnd:        r.rnd,
	}
	for _, s := range senders {
		cap := s.DailyCap
		if cap == 0 {
			cap = defaultCap
		}
		slot := &senderSlot{config: s, cap: cap}
		if carried != nil {
			slot.sent = carried[strings.ToLower(s.FromEmail)]
		}
		pool.slots = append(pool.slots, slot)
	}

	r.pools[sequenceID] = pool
	return pool
}

// Drop discards the pool for a sequence.
func (r *RotationRegistry) Drop(sequenceID uint) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.pools, sequenceID)
}

// Next picks the sender account for the next send and counts the send against
// it immediately. The increment is optimistic: a later transport failure does
// not hand the slot back, which keeps the cap an upper bound on attempts.
func (p *RotationPool) Next() (models.SenderConfig, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.maybeResetLocked()

	if len(p.slots) == 0 {
		return models.SenderConfig{}, apperrors.NewQuotaExhausted(p.sequenceID)
	}

	var slot *senderSlot
	switch p.policy {
	case models.PolicyRandom:
		slot = p.pickRandomLocked()
	case models.PolicyWeighted:
		slot = p.pickLeastUsedLocked()
	default:
		slot = p.pickRoundRobinLocked()
	}

	if slot == nil {
		return models.SenderConfig{}, apperrors.NewQuotaExhausted(p.sequenceID)
	}
	slot.sent++
	return slot.config, nil
}

// Usage reports sends counted against each sender today, keyed by address.
func (p *RotationPool) Usage() map[string]int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.maybeResetLocked()
	return p.usageLocked()
}

func (p *RotationPool) usageLocked() map[string]int {
	usage := make(map[string]int, len(p.slots))
	for _, s := range p.slots {
		usage[strings.ToLower(s.config.FromEmail)] = s.sent
	}
	return usage
}

// maybeResetLocked zeroes the counters on the first call of a new local day.
func (p *RotationPool) maybeResetLocked() {
	day := dayKey(p.now())
	if day == p.resetDay {
		return
	}
	for _, s := range p.slots {
		s.sent = 0
	}
	p.cursor = 0
	p.resetDay = day
}

func (p *RotationPool) pickRoundRobinLocked() *senderSlot {
	n := len(p.slots)
	for i := 0; i < n; i++ {
		idx := (p.cursor + i) % n
		if p.slots[idx].hasQuota() {
			p.cursor = (idx + 1) % n
			return p.slots[idx]
		}
	}
	return nil
}

func (p *RotationPool) pickRandomLocked() *senderSlot {
	var eligible []*senderSlot
	for _, s := range p.slots {
		if s.hasQuota() {
			eligible = append(eligible, s)
		}
	}
	if len(eligible) == 0 {
		return nil
	}
	return eligible[p.rnd.Intn(len(eligible))]
}

// pickLeastUsedLocked favors the account with the fewest sends today so that
// volume stays balanced even when caps differ.
func (p *RotationPool) pickLeastUsedLocked() *senderSlot {
	var best *senderSlot
	for _, s := range p.slots {
		if !s.hasQuota() {
			continue
		}
		if best == nil || s.sent < best.sent {
			best = s
		}
	}
	return best
}

func (p *RotationPool) matches(senders []models.SenderConfig, policy string, defaultCap int) bool {
	if policy == "" {
		policy = models.PolicyRoundRobin
	}
	if p.policy != policy || len(p.slots) != len(senders) {
		return false
	}
	for i, s := range senders {
		cap := s.DailyCap
		if cap == 0 {
			cap = defaultCap
		}
		slot := p.slots[i]
		if !strings.EqualFold(slot.config.FromEmail, s.FromEmail) || slot.cap != cap {
			return false
		}
	}
	return true
}

func dayKey(t time.Time) string {
	return t.Format("2006-01-02")
}
