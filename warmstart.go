package bedrock

import (
	"sort"

	"github.com/akmonengine/bedrock/constraint"
	"github.com/go-gl/mathgl/mgl64"
)

const (
	// warmStartMatchDistance is the local-anchor distance below which a
	// new contact point is considered the same point as last frame
	warmStartMatchDistance = 0.1

	// warmStartNormalAgreement rejects matches whose contact normal
	// changed too much between frames
	warmStartNormalAgreement = 0.9

	// warmStartCapacity caps the cache; pairs beyond it are evicted in
	// key order, which only costs a cold start for those pairs
	warmStartCapacity = 4096
)

// PairKey identifies a collider pair by IDs, lower first. IDs rather
// than pointers keep every keyed structure reproducible across runs.
type PairKey struct {
	A, B uint64
}

// MakePairKey normalizes the ordering
func MakePairKey(a, b uint64) PairKey {
	if b < a {
		a, b = b, a
	}
	return PairKey{A: a, B: b}
}

type warmStartPoint struct {
	LocalAnchorA mgl64.Vec3
	LocalAnchorB mgl64.Vec3
	NormalLambda float64
}

type warmStartEntry struct {
	Normal mgl64.Vec3
	Points []warmStartPoint
}

// WarmStartCache persists converged contact multipliers across frames.
// A contact whose points persist starts the next frame's solver near
// last frame's solution, which settles stacks in far fewer substeps.
type WarmStartCache struct {
	entries map[PairKey]*warmStartEntry
}

func NewWarmStartCache() *WarmStartCache {
	return &WarmStartCache{
		entries: make(map[PairKey]*warmStartEntry),
	}
}

// Match seeds the warm-start multipliers of a freshly built contact
// from the cached entry of the same collider pair, if any. A cached
// point transfers to the nearest new point within the match distance;
// each cached point transfers at most once.
func (w *WarmStartCache) Match(key PairKey, contact *constraint.Constraint) {
	entry, ok := w.entries[key]
	if !ok || contact.Manifold == nil {
		return
	}

	if entry.Normal.Dot(contact.Manifold.Normal) < warmStartNormalAgreement {
		return
	}

	used := make([]bool, len(entry.Points))

	for i := range contact.Manifold.Points {
		point := &contact.Manifold.Points[i]

		best := -1
		bestDist := warmStartMatchDistance * warmStartMatchDistance

		for j := range entry.Points {
			if used[j] {
				continue
			}
			dist := entry.Points[j].LocalAnchorA.Sub(point.LocalAnchorA).LenSqr()
			if dist < bestDist {
				best = j
				bestDist = dist
			}
		}

		if best >= 0 {
			used[best] = true
			point.WarmStartNormal = entry.Points[best].NormalLambda
		}
	}
}

// Store replaces the cached entry for a pair with the converged state
// of this frame's contact
func (w *WarmStartCache) Store(key PairKey, contact *constraint.Constraint) {
	if contact.Manifold == nil {
		return
	}

	entry := &warmStartEntry{
		Normal: contact.Manifold.Normal,
		Points: make([]warmStartPoint, len(contact.Manifold.Points)),
	}
	for i, point := range contact.Manifold.Points {
		entry.Points[i] = warmStartPoint{
			LocalAnchorA: point.LocalAnchorA,
			LocalAnchorB: point.LocalAnchorB,
			NormalLambda: point.NormalLambda,
		}
	}

	w.entries[key] = entry
}

// Prune drops entries whose pair produced no contact this frame, then
// enforces the capacity bound in sorted key order
func (w *WarmStartCache) Prune(active map[PairKey]bool) {
	for key := range w.entries {
		if !active[key] {
			delete(w.entries, key)
		}
	}

	if len(w.entries) <= warmStartCapacity {
		return
	}

	keys := make([]PairKey, 0, len(w.entries))
	for key := range w.entries {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].A != keys[j].A {
			return keys[i].A < keys[j].A
		}
		return keys[i].B < keys[j].B
	})

	for _, key := range keys[warmStartCapacity:] {
		delete(w.entries, key)
	}
}

// Len reports the number of cached pairs
func (w *WarmStartCache) Len() int {
	return len(w.entries)
}
