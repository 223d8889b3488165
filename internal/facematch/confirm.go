package facematch

import (
	"maps"
	"strconv"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
)

// Decision is what the confirmer concluded for one scan cycle.
type Decision string

const (
	// DecisionNone means the cycle had no qualifying match.
	DecisionNone Decision = "none"
	// DecisionArmed means the top case gained a hit but is not confirmed yet.
	DecisionArmed Decision = "armed"
	// DecisionFire means the top case is confirmed and exactly one alert must go out.
	DecisionFire Decision = "fire"
	// DecisionSuppressed means the case was confirmed inside its alert cooldown.
	DecisionSuppressed Decision = "suppressed"
)

// Confirmation is the result of observing one scan cycle.
type Confirmation struct {
	Decision Decision
	CaseID   int64
	Hits     int
	Required int
}

// Confirmer turns a stream of per-scan top matches into at most one alert per
// case per confirmation cycle.
//
// Policy: a cycle whose top matched case is X increments X and clears every
// other case. A cycle with no matched case changes nothing. When X reaches the
// required hit count it fires and goes back to zero.
type Confirmer struct {
	mu       sync.Mutex
	required int
	counts   map[int64]int
	cooldown *cache.Cache
}

// NewConfirmer creates a confirmer requiring the given number of consecutive
// hits. A positive cooldown suppresses repeat alerts for the same case within
// that window.
func NewConfirmer(required int, cooldown time.Duration) *Confirmer {
	if required < 1 {
		required = 1
	}
	c := &Confirmer{
		required: required,
		counts:   make(map[int64]int),
	}
	if cooldown > 0 {
		c.cooldown = cache.New(cooldown, 2*cooldown)
	}
	return c
}

// Required returns the confirmation threshold.
func (c *Confirmer) Required() int {
	return c.required
}

// Observe records the top result of one scan cycle. Pass nil (or an unmatched
// result) when the cycle produced no qualifying match.
func (c *Confirmer) Observe(top *Result) Confirmation {
	if top == nil || !top.Matched {
		return Confirmation{Decision: DecisionNone, Required: c.required}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for id := range c.counts {
		if id != top.CaseID {
			delete(c.counts, id)
		}
	}

	hits := c.counts[top.CaseID] + 1
	conf := Confirmation{CaseID: top.CaseID, Hits: hits, Required: c.required}
	if hits < c.required {
		c.counts[top.CaseID] = hits
		conf.Decision = DecisionArmed
		return conf
	}

	delete(c.counts, top.CaseID)
	conf.Decision = DecisionFire
	if c.cooldown != nil {
		if err := c.cooldown.Add(strconv.FormatInt(top.CaseID, 10), struct{}{}, cache.DefaultExpiration); err != nil {
			conf.Decision = DecisionSuppressed
		}
	}
	return conf
}

// Hits returns the current counter for a case.
func (c *Confirmer) Hits(caseID int64) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[caseID]
}

// Reset clears the counter and any cooldown for a case.
func (c *Confirmer) Reset(caseID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.counts, caseID)
	if c.cooldown != nil {
		c.cooldown.Delete(strconv.FormatInt(caseID, 10))
	}
}

// Snapshot returns a copy of all non-zero counters.
func (c *Confirmer) Snapshot() map[int64]int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return maps.Clone(c.counts)
}
