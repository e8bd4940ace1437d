package bedrock

import (
	"testing"

	"github.com/akmonengine/bedrock/constraint"
	"github.com/go-gl/mathgl/mgl64"
)

func cachedContact(normal mgl64.Vec3, anchors ...mgl64.Vec3) *constraint.Constraint {
	manifold := &constraint.Manifold{Normal: normal}
	for _, anchor := range anchors {
		manifold.Points = append(manifold.Points, constraint.ContactPoint{
			LocalAnchorA: anchor,
			LocalAnchorB: anchor,
		})
	}
	return &constraint.Constraint{Kind: constraint.KindContact, Manifold: manifold}
}

func TestMakePairKey(t *testing.T) {
	if MakePairKey(7, 3) != (PairKey{A: 3, B: 7}) {
		t.Error("PairKey not normalized to lower ID first")
	}
	if MakePairKey(3, 7) != MakePairKey(7, 3) {
		t.Error("PairKey must not depend on argument order")
	}
}

func TestWarmStartMatch(t *testing.T) {
	up := mgl64.Vec3{0, 1, 0}
	key := MakePairKey(1, 2)

	t.Run("persistent point transfers its multiplier", func(t *testing.T) {
		cache := NewWarmStartCache()

		previous := cachedContact(up, mgl64.Vec3{0.5, 0, 0.5})
		previous.Manifold.Points[0].NormalLambda = -0.8
		cache.Store(key, previous)

		// Same point, moved slightly within the match distance
		current := cachedContact(up, mgl64.Vec3{0.52, 0, 0.5})
		cache.Match(key, current)

		if current.Manifold.Points[0].WarmStartNormal != -0.8 {
			t.Errorf("Expected transferred multiplier -0.8, got %v",
				current.Manifold.Points[0].WarmStartNormal)
		}
	})

	t.Run("distant point stays cold", func(t *testing.T) {
		cache := NewWarmStartCache()

		previous := cachedContact(up, mgl64.Vec3{0.5, 0, 0.5})
		previous.Manifold.Points[0].NormalLambda = -0.8
		cache.Store(key, previous)

		current := cachedContact(up, mgl64.Vec3{-0.5, 0, -0.5})
		cache.Match(key, current)

		if current.Manifold.Points[0].WarmStartNormal != 0 {
			t.Error("Point beyond the match distance must not warm start")
		}
	})

	t.Run("normal flip rejects the whole entry", func(t *testing.T) {
		cache := NewWarmStartCache()

		previous := cachedContact(up, mgl64.Vec3{0.5, 0, 0.5})
		previous.Manifold.Points[0].NormalLambda = -0.8
		cache.Store(key, previous)

		current := cachedContact(mgl64.Vec3{1, 0, 0}, mgl64.Vec3{0.5, 0, 0.5})
		cache.Match(key, current)

		if current.Manifold.Points[0].WarmStartNormal != 0 {
			t.Error("Entry with a rotated normal must not transfer")
		}
	})

	t.Run("each cached point transfers at most once", func(t *testing.T) {
		cache := NewWarmStartCache()

		previous := cachedContact(up, mgl64.Vec3{0, 0, 0})
		previous.Manifold.Points[0].NormalLambda = -0.8
		cache.Store(key, previous)

		// Two new points both near the single cached one
		current := cachedContact(up, mgl64.Vec3{0.01, 0, 0}, mgl64.Vec3{0.02, 0, 0})
		cache.Match(key, current)

		transferred := 0
		for _, point := range current.Manifold.Points {
			if point.WarmStartNormal != 0 {
				transferred++
			}
		}
		if transferred != 1 {
			t.Errorf("Expected exactly 1 transfer, got %d", transferred)
		}
	})

	t.Run("unknown pair is a no-op", func(t *testing.T) {
		cache := NewWarmStartCache()
		current := cachedContact(up, mgl64.Vec3{0, 0, 0})
		cache.Match(MakePairKey(8, 9), current)

		if current.Manifold.Points[0].WarmStartNormal != 0 {
			t.Error("Cold pair received a warm start")
		}
	})
}

func TestWarmStartPrune(t *testing.T) {
	cache := NewWarmStartCache()
	up := mgl64.Vec3{0, 1, 0}

	keep := MakePairKey(1, 2)
	drop := MakePairKey(3, 4)
	cache.Store(keep, cachedContact(up, mgl64.Vec3{}))
	cache.Store(drop, cachedContact(up, mgl64.Vec3{}))

	cache.Prune(map[PairKey]bool{keep: true})

	if cache.Len() != 1 {
		t.Fatalf("Expected 1 entry after prune, got %d", cache.Len())
	}
	if _, ok := cache.entries[keep]; !ok {
		t.Error("Active pair was pruned")
	}
}
