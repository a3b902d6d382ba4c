package collision

import "github.com/hearthcode/netplay/entity"

// ResolveWorld runs one full collision pass across the groups of a
// world in the fixed, deterministic order the tick loop requires:
// dynamics×static, dynamics×dynamics (upper triangular), dynamics×
// players, players×static, players×players (upper triangular). Each
// unordered pair is tested at most once. It returns the number of
// pairs found in contact, for metrics.
func ResolveWorld(statics, dynamics, players []entity.Object) int {
	resolved := 0

	for _, d := range dynamics {
		for _, s := range statics {
			if c, ok := Detect(d, s); ok {
				Resolve(d, s, c, true)
				resolved++
			}
		}
	}

	for i := 0; i < len(dynamics); i++ {
		for j := i + 1; j < len(dynamics); j++ {
			if c, ok := Detect(dynamics[i], dynamics[j]); ok {
				Resolve(dynamics[i], dynamics[j], c, true)
				resolved++
			}
		}
	}

	for _, d := range dynamics {
		for _, p := range players {
			if c, ok := Detect(d, p); ok {
				Resolve(d, p, c, true)
				resolved++
			}
		}
	}

	for _, p := range players {
		for _, s := range statics {
			if c, ok := Detect(p, s); ok {
				Resolve(p, s, c, true)
				resolved++
			}
		}
	}

	for i := 0; i < len(players); i++ {
		for j := i + 1; j < len(players); j++ {
			if c, ok := Detect(players[i], players[j]); ok {
				Resolve(players[i], players[j], c, true)
				resolved++
			}
		}
	}

	return resolved
}
