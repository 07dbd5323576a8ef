package utils

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leadpilot/apperrors"
	"leadpilot/models"
)

func testSenders(emails ...string) []models.SenderConfig {
	senders := make([]models.SenderConfig, 0, len(emails))
	for _, e := range emails {
		senders = append(senders, models.SenderConfig{
			FromEmail: e,
			SMTPHost:  "smtp.example.com",
			SMTPPort:  587,
		})
	}
	return senders
}

func newTestRegistry(t time.Time) *RotationRegistry {
	r := NewRotationRegistry()
	r.now = func() time.Time { return t }
	r.rnd = rand.New(rand.NewSource(1))
	return r
}

func TestRoundRobinCyclesThroughSenders(t *testing.T) {
	reg := newTestRegistry(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	pool := reg.PoolFor(1, testSenders("a@x.com", "b@x.com", "c@x.com"), models.PolicyRoundRobin, 50)

	var got []string
	for i := 0; i < 6; i++ {
		s, err := pool.Next()
		require.NoError(t, err)
		got = append(got, s.FromEmail)
	}
	assert.Equal(t, []string{"a@x.com", "b@x.com", "c@x.com", "a@x.com", "b@x.com", "c@x.com"}, got)
}

func TestRoundRobinSkipsExhaustedSender(t *testing.T) {
	reg := newTestRegistry(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	senders := testSenders("a@x.com", "b@x.com")
	senders[0].DailyCap = 1
	pool := reg.PoolFor(1, senders, models.PolicyRoundRobin, 50)

	first, err := pool.Next()
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", first.FromEmail)

	// a is at its cap; every further pick lands on b
	for i := 0; i < 3; i++ {
		s, err := pool.Next()
		require.NoError(t, err)
		assert.Equal(t, "b@x.com", s.FromEmail)
	}
}

func TestQuotaExhaustedWhenAllCapped(t *testing.T) {
	reg := newTestRegistry(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	pool := reg.PoolFor(7, testSenders("a@x.com", "b@x.com"), models.PolicyRoundRobin, 2)

	for i := 0; i < 4; i++ {
		_, err := pool.Next()
		require.NoError(t, err)
	}

	_, err := pool.Next()
	require.Error(t, err)
	var quotaErr *apperrors.QuotaExhaustedError
	require.ErrorAs(t, err, &quotaErr)
	assert.Equal(t, uint(7), quotaErr.SequenceID)
}

func TestCountersResetAtMidnight(t *testing.T) {
	now := time.Date(2026, 3, 1, 23, 50, 0, 0, time.UTC)
	reg := newTestRegistry(now)
	pool := reg.PoolFor(1, testSenders("a@x.com"), models.PolicyRoundRobin, 1)

	_, err := pool.Next()
	require.NoError(t, err)
	_, err = pool.Next()
	require.Error(t, err)

	// Cross midnight: quota is available again
	pool.now = func() time.Time { return now.Add(time.Hour) }
	s, err := pool.Next()
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", s.FromEmail)
	assert.Equal(t, map[string]int{"a@x.com": 1}, pool.Usage())
}

func TestWeightedPicksLeastUsed(t *testing.T) {
	reg := newTestRegistry(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	pool := reg.PoolFor(1, testSenders("a@x.com", "b@x.com"), models.PolicyWeighted, 50)

	// Pre-load a with traffic
	pool.slots[0].sent = 5

	for i := 0; i < 5; i++ {
		s, err := pool.Next()
		require.NoError(t, err)
		assert.Equal(t, "b@x.com", s.FromEmail)
	}
	// Now balanced; either can win, but counts stay within one of each other
	usage := pool.Usage()
	assert.Equal(t, 5, usage["a@x.com"])
	assert.Equal(t, 5, usage["b@x.com"])
}

func TestRandomOnlyPicksSendersWithQuota(t *testing.T) {
	reg := newTestRegistry(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	senders := testSenders("a@x.com", "b@x.com")
	senders[0].DailyCap = 1
	pool := reg.PoolFor(1, senders, models.PolicyRandom, 50)

	seen := map[string]int{}
	for i := 0; i < 20; i++ {
		s, err := pool.Next()
		require.NoError(t, err)
		seen[s.FromEmail]++
	}
	assert.LessOrEqual(t, seen["a@x.com"], 1)
	assert.GreaterOrEqual(t, seen["b@x.com"], 19)
}

func TestPoolRebuildCarriesUsageForSurvivors(t *testing.T) {
	reg := newTestRegistry(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	pool := reg.PoolFor(1, testSenders("a@x.com", "b@x.com"), models.PolicyRoundRobin, 50)

	for i := 0; i < 4; i++ {
		_, err := pool.Next()
		require.NoError(t, err)
	}

	// Roster change: b is replaced by c, a keeps its count
	rebuilt := reg.PoolFor(1, testSenders("a@x.com", "c@x.com"), models.PolicyRoundRobin, 50)
	usage := rebuilt.Usage()
	assert.Equal(t, 2, usage["a@x.com"])
	assert.Equal(t, 0, usage["c@x.com"])
}

func TestPoolReusedWhenRosterUnchanged(t *testing.T) {
	reg := newTestRegistry(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	senders := testSenders("a@x.com")
	first := reg.PoolFor(1, senders, models.PolicyRoundRobin, 50)
	second := reg.PoolFor(1, senders, models.PolicyRoundRobin, 50)
	assert.Same(t, first, second)
}

func TestUnlimitedCapNeverExhausts(t *testing.T) {
	reg := newTestRegistry(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	// defaultCap 0 means no cap at all
	pool := reg.PoolFor(1, testSenders("a@x.com"), models.PolicyRoundRobin, 0)

	for i := 0; i < 500; i++ {
		_, err := pool.Next()
		require.NoError(t, err)
	}
}
