package match

import (
	"fmt"
	"time"
)

// Item is an immutable snapshot of one barterable item together with the
// wants stated by the offer it belongs to. Snapshots are built once per
// search and never mutated by it.
type Item struct {
	ID             int64
	OwnerID        int64
	Title          string
	Category       string
	Value          int64
	Governorate    string
	OfferID        int64
	OfferCreatedAt time.Time
	Wants          []Want
}

// Want describes what an item's owner accepts in return. MinValue/MaxValue
// of zero means no explicit range; the global tolerance applies instead.
type Want struct {
	Category    string
	Description string
	MinValue    int64
	MaxValue    int64
}

// Validate rejects malformed wants before graph construction.
func (w Want) Validate() error {
	if w.Category == "" && w.Description == "" {
		return fmt.Errorf("want has neither category nor description")
	}
	if w.MinValue < 0 || w.MaxValue < 0 {
		return fmt.Errorf("want has negative value bound")
	}
	if w.MaxValue > 0 && w.MinValue > w.MaxValue {
		return fmt.Errorf("want min value %d exceeds max value %d", w.MinValue, w.MaxValue)
	}
	return nil
}

// Criteria controls graph construction and cycle search.
type Criteria struct {
	MaxChainLength   int
	TolerancePercent float64
	MaxPaths         int
	Deadline         time.Duration
	Governorates     []string
	Categories       []string
}

// Search defaults
const (
	DefaultMaxChainLength   = 5
	DefaultTolerancePercent = 15.0
	DefaultMaxPaths         = 100000
	DefaultDeadline         = 2 * time.Second
	MinChainLength          = 2
)

// WithDefaults fills unset criteria fields. An unset chain length gets the
// default; a stated one below the 2-party minimum is clamped up to it rather
// than silently replaced.
func (c Criteria) WithDefaults() Criteria {
	if c.MaxChainLength <= 0 {
		c.MaxChainLength = DefaultMaxChainLength
	} else if c.MaxChainLength < MinChainLength {
		c.MaxChainLength = MinChainLength
	}
	if c.TolerancePercent <= 0 {
		c.TolerancePercent = DefaultTolerancePercent
	}
	if c.MaxPaths <= 0 {
		c.MaxPaths = DefaultMaxPaths
	}
	if c.Deadline <= 0 {
		c.Deadline = DefaultDeadline
	}
	return c
}

// Leg is one position of a cycle: the user gives OfferedItemID and receives
// WantedItemID, which is the next leg's offered item.
type Leg struct {
	UserID        int64 `json:"user_id"`
	OfferedItemID int64 `json:"offered_item_id"`
	WantedItemID  int64 `json:"wanted_item_id"`
}

// Cycle is a closed exchange ring discovered by search. ValueImbalance is
// the largest absolute per-edge value delta in the ring; the relative form
// of the same maximum is what tolerance checks compare against.
type Cycle struct {
	Legs           []Leg   `json:"legs"`
	TotalValue     int64   `json:"total_value"`
	ValueImbalance int64   `json:"value_imbalance"`
	MaxRelDelta    float64 `json:"max_rel_delta"`
}

// Length returns the number of participants in the cycle.
func (c Cycle) Length() int { return len(c.Legs) }

// ItemIDs returns the offered item ids of the cycle in leg order.
func (c Cycle) ItemIDs() []int64 {
	ids := make([]int64, len(c.Legs))
	for i, leg := range c.Legs {
		ids[i] = leg.OfferedItemID
	}
	return ids
}

// Result carries discovered cycles plus search budget metadata. Truncated
// results are valid but possibly incomplete; truncation is never an error.
type Result struct {
	Cycles        []Cycle `json:"cycles"`
	Truncated     bool    `json:"truncated"`
	PathsExplored int     `json:"paths_explored"`
}

// relDelta is the symmetric relative value difference between two items,
// |a-b| / max(a,b). A 35k item against a 55k item is 36% apart regardless
// of which side anchors the comparison.
func relDelta(a, b int64) float64 {
	if a == b {
		return 0
	}
	hi, lo := a, b
	if b > a {
		hi, lo = b, a
	}
	if hi == 0 {
		return 0
	}
	return float64(hi-lo) / float64(hi) * 100
}

func absDelta(a, b int64) int64 {
	if a > b {
		return a - b
	}
	return b - a
}
