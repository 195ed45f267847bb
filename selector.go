package upstream

import (
	"github.com/sentryfilter/upstream/internal/hashutil"
)

// maxCheckedSentinel mirrors the original's G_MAXUINT (32-bit) overflow
// guard: once the smallest checked counter among alive upstreams exceeds
// half of it, every counter is reset to zero to keep the checked-balance
// comparison from overflowing.
const maxCheckedSentinel uint = 4294967295

// Get returns an upstream chosen by the list's own rotation policy (or by
// policy if the list's is RotUndefined), incrementing its checked counter. If
// the alive set is currently empty, Get first reactivates every member.
// Get never returns nil on a non-empty list, except for RotSequential at
// end-of-iteration.
func (l *List) Get(policy RotationAlgorithm, key []byte) *Upstream {
	return l.get(policy, key, false)
}

// GetForced is like Get, but the caller's policy takes priority over the
// list's own rotation policy whenever it is not RotUndefined.
func (l *List) GetForced(policy RotationAlgorithm, key []byte) *Upstream {
	return l.get(policy, key, true)
}

func (l *List) get(policy RotationAlgorithm, key []byte, forced bool) *Upstream {
	l.reactivateIfEmpty()

	l.mu.Lock()
	rot := l.rotAlg
	l.mu.Unlock()

	var effective RotationAlgorithm
	if !forced {
		if rot != RotUndefined {
			effective = rot
		} else {
			effective = policy
		}
	} else {
		if policy != RotUndefined {
			effective = policy
		} else {
			effective = rot
		}
	}
	if effective == RotHashed && len(key) == 0 {
		effective = RotRandom
	}

	var picked *Upstream
	switch effective {
	case RotRandom:
		picked = l.pickRandom()
	case RotRoundRobin:
		picked = l.pickWeighted(true)
	case RotMasterSlave:
		picked = l.pickWeighted(false)
	case RotHashed:
		picked = l.pickHashed(key)
	case RotSequential:
		picked = l.pickSequential()
	default:
		picked = l.pickWeighted(true)
	}

	if picked != nil {
		picked.mu.Lock()
		picked.checked++
		picked.mu.Unlock()
	}
	return picked
}

func (l *List) pickRandom() *Upstream {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := len(l.alive)
	if n == 0 {
		return nil
	}
	return l.alive[l.rng.Intn(n)]
}

// pickWeighted implements both the smooth-weighted-round-robin (useCur)
// and master-slave (!useCur) policies, including the shared
// checked-balance fallback for an all-zero-weight pool — modelled on
// the original's rspamd_upstream_get_round_robin, which serves both
// policies from one function for exactly that reason.
func (l *List) pickWeighted(useCur bool) *Upstream {
	l.mu.Lock()
	defer l.mu.Unlock()

	var maxWeight uint
	minChecked := maxCheckedSentinel
	var selected, minCheckedSel *Upstream

	for _, up := range l.alive {
		up.mu.Lock()
		w := up.weight
		cw := up.curWeight
		checked := up.checked
		errs := up.errors
		up.mu.Unlock()

		if useCur {
			if cw > maxWeight {
				selected = up
				maxWeight = cw
			}
		} else {
			if w > maxWeight {
				selected = up
				maxWeight = w
			}
		}

		product := checked * (errs + 1)
		if product < minChecked {
			minCheckedSel = up
			minChecked = checked
		}
	}

	// A smooth round-robin round ends once every running weight is spent;
	// the next round restarts from the configured weights.
	if useCur && maxWeight == 0 {
		for _, up := range l.alive {
			up.mu.Lock()
			up.curWeight = up.weight
			if up.weight > maxWeight {
				selected = up
				maxWeight = up.weight
			}
			up.mu.Unlock()
		}
	}

	if maxWeight == 0 {
		if minChecked > maxCheckedSentinel/2 {
			for _, up := range l.alive {
				up.mu.Lock()
				up.checked = 0
				up.mu.Unlock()
			}
		}
		selected = minCheckedSel
	}

	if useCur && selected != nil {
		selected.mu.Lock()
		if selected.curWeight > 0 {
			selected.curWeight--
		} else {
			selected.curWeight = selected.weight
		}
		selected.mu.Unlock()
	}

	return selected
}

func (l *List) pickHashed(key []byte) *Upstream {
	l.mu.Lock()
	n := len(l.alive)
	seed := l.hashSeed
	l.mu.Unlock()
	if n == 0 {
		return nil
	}

	h := hashutil.Hash64(key, seed)
	idx := jumpConsistentHash(h, n)

	l.mu.Lock()
	defer l.mu.Unlock()
	if idx < 0 || idx >= len(l.alive) {
		return nil
	}
	return l.alive[idx]
}

func (l *List) pickSequential() *Upstream {
	l.mu.Lock()
	defer l.mu.Unlock()

	n := len(l.alive)
	if n == 0 {
		return nil
	}
	if l.curElt >= n {
		l.curElt = 0
		return nil
	}
	picked := l.alive[l.curElt]
	l.curElt++
	return picked
}

// jumpConsistentHash maps key to a bucket in [0, nbuckets) using the
// Lamping & Veach jump-consistent-hash algorithm: moving one bucket in or
// out of nbuckets remaps at most a 1/nbuckets fraction of keys.
func jumpConsistentHash(key uint64, nbuckets int) int {
	var b int64 = -1
	var j int64 = 0
	for j < int64(nbuckets) {
		b = j
		key = key*2862933555777941757 + 1 // per Lamping & Veach
		j = int64(float64(b+1) * float64(uint64(1)<<31) / float64((key>>33)+1))
	}
	return int(b)
}
