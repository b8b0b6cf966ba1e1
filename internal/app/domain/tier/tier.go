// Package tier defines the ordered access tier levels.
package tier

import "strings"

// Tier is an access tier name. Tiers form a strict order; a higher tier
// satisfies every requirement a lower tier satisfies.
type Tier string

const (
	None       Tier = "none"
	Basic      Tier = "basic"
	Pro        Tier = "pro"
	Enterprise Tier = "enterprise"
)

var ranks = map[Tier]int{
	None:       0,
	Basic:      1,
	Pro:        2,
	Enterprise: 3,
}

// Parse maps a raw string onto a known tier. Unknown values resolve to
// None, which never satisfies any requirement above None.
func Parse(raw string) Tier {
	t := Tier(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := ranks[t]; ok {
		return t
	}
	return None
}

// Rank returns the tier's position in the order. Unknown tiers rank as
// None.
func Rank(t Tier) int {
	if r, ok := ranks[t]; ok {
		return r
	}
	return 0
}

// IsSufficient reports whether current meets or exceeds required.
func IsSufficient(current, required Tier) bool {
	return Rank(current) >= Rank(required)
}

// All lists the purchasable tiers in ascending order.
func All() []Tier {
	return []Tier{Basic, Pro, Enterprise}
}
