package claim

// Allocate distributes requested units across the per-item availabilities in
// available, returning an allocation of the same length. The result never
// exceeds availability per item and its sum is exactly
// min(requested, sum(available)).
//
// The first pass walks the items from a seed-chosen start index handing out
// seed-sized chunks; it is intentionally not a fair or uniform sampler and
// the seed must not be treated as a security mechanism. Two deterministic
// passes follow because the random walk can leave demand unspent against
// depleted items: an average-sized top-up and a final greedy sweep.
//
// Callers must pass len(available) >= 1.
func Allocate(available []uint64, requested uint64, seed uint64) []uint64 {
	n := uint64(len(available))
	alloc := make([]uint64, n)
	remaining := requested

	avail := make([]uint64, n)
	copy(avail, available)

	// Phase A: seeded random pass.
	maxRandom := uint64(1)
	if requested >= n {
		maxRandom = requested/n + 1
	}
	idx := seed % n
	for round := uint64(0); round < n && remaining > 0; round++ {
		roundAmount := seed%maxRandom + 1
		if roundAmount > remaining {
			roundAmount = remaining
		}
		if roundAmount > avail[idx] {
			roundAmount = avail[idx]
		}
		alloc[idx] += roundAmount
		avail[idx] -= roundAmount
		remaining -= roundAmount

		// Chain the previous seed with a quantity that moves every round so
		// consecutive draws diverge even for identical inputs.
		seed = mixSeed(seed, remaining)
		idx = (idx + 1) % n
	}

	// Phase B: average top-up. A single shared average, biased one unit up,
	// spreads roughly equal chunks over items that still hold stock.
	if remaining > 0 {
		var total uint64
		for _, a := range avail {
			total += a
		}
		if total > 0 {
			avg := total/n + 1
			for i := range avail {
				take := avg
				if remaining < avg {
					take = remaining
				}
				if take > avail[i] {
					take = avail[i]
				}
				alloc[i] += take
				avail[i] -= take
				remaining -= take
				if remaining == 0 {
					break
				}
			}
		}
	}

	// Phase C: final sweep drains whatever the first two passes left behind.
	if remaining > 0 {
		for i := range avail {
			take := remaining
			if take > avail[i] {
				take = avail[i]
			}
			alloc[i] += take
			avail[i] -= take
			remaining -= take
			if remaining == 0 {
				break
			}
		}
	}

	return alloc
}

// mixSeed folds salt into the previous seed, splitmix64-style.
func mixSeed(seed, salt uint64) uint64 {
	z := seed + salt + 0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

func sum(values []uint64) uint64 {
	var total uint64
	for _, v := range values {
		total += v
	}
	return total
}
