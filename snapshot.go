package bedrock

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/go-gl/mathgl/mgl64"
)

// Snapshot carries the dynamic state of a world: everything Step
// mutates, nothing structural. Restoring it into a world with the same
// bodies and joints resumes the exact same trajectory, because float64
// values survive the JSON round-trip bit for bit.
type Snapshot struct {
	Bodies    []BodySnapshot      `json:"bodies"`
	WarmStart []WarmStartSnapshot `json:"warm_start,omitempty"`
}

type BodySnapshot struct {
	ID              uint64     `json:"id"`
	Position        [3]float64 `json:"position"`
	Rotation        [4]float64 `json:"rotation"` // w, x, y, z
	Velocity        [3]float64 `json:"velocity"`
	AngularVelocity [3]float64 `json:"angular_velocity"`
	IsSleeping      bool       `json:"is_sleeping"`
	SleepTimer      float64    `json:"sleep_timer"`
}

type WarmStartSnapshot struct {
	ColliderA uint64              `json:"collider_a"`
	ColliderB uint64              `json:"collider_b"`
	Normal    [3]float64          `json:"normal"`
	Points    []WarmStartPointRec `json:"points"`
}

type WarmStartPointRec struct {
	LocalAnchorA [3]float64 `json:"local_anchor_a"`
	LocalAnchorB [3]float64 `json:"local_anchor_b"`
	NormalLambda float64    `json:"normal_lambda"`
}

// Snapshot serializes the dynamic state. Bodies and cache entries are
// emitted in ID order so identical states produce identical bytes.
func (w *World) Snapshot() ([]byte, error) {
	snap := Snapshot{
		Bodies: make([]BodySnapshot, 0, len(w.Bodies)),
	}

	sorted := make([]*actorBodyRef, 0, len(w.Bodies))
	for _, body := range w.Bodies {
		sorted = append(sorted, &actorBodyRef{id: body.ID, index: len(sorted)})
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].id < sorted[j].id })

	for _, ref := range sorted {
		body := w.Bodies[ref.index]
		q := body.Transform.Rotation
		snap.Bodies = append(snap.Bodies, BodySnapshot{
			ID:              body.ID,
			Position:        vec3Array(body.Transform.Position),
			Rotation:        [4]float64{q.W, q.V[0], q.V[1], q.V[2]},
			Velocity:        vec3Array(body.Velocity),
			AngularVelocity: vec3Array(body.AngularVelocity),
			IsSleeping:      body.IsSleeping,
			SleepTimer:      body.SleepTimer,
		})
	}

	keys := make([]PairKey, 0, w.warmStart.Len())
	for key := range w.warmStart.entries {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].A != keys[j].A {
			return keys[i].A < keys[j].A
		}
		return keys[i].B < keys[j].B
	})

	for _, key := range keys {
		entry := w.warmStart.entries[key]
		rec := WarmStartSnapshot{
			ColliderA: key.A,
			ColliderB: key.B,
			Normal:    vec3Array(entry.Normal),
			Points:    make([]WarmStartPointRec, len(entry.Points)),
		}
		for i, point := range entry.Points {
			rec.Points[i] = WarmStartPointRec{
				LocalAnchorA: vec3Array(point.LocalAnchorA),
				LocalAnchorB: vec3Array(point.LocalAnchorB),
				NormalLambda: point.NormalLambda,
			}
		}
		snap.WarmStart = append(snap.WarmStart, rec)
	}

	return json.Marshal(snap)
}

// Restore applies a snapshot onto this world. Every snapshotted body
// must exist here with the same ID; extra live bodies keep their state.
func (w *World) Restore(data []byte) error {
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("parsing snapshot: %w", err)
	}

	byID := make(map[uint64]int, len(w.Bodies))
	for i, body := range w.Bodies {
		byID[body.ID] = i
	}

	for _, rec := range snap.Bodies {
		idx, ok := byID[rec.ID]
		if !ok {
			return fmt.Errorf("snapshot references unknown body %d", rec.ID)
		}
		body := w.Bodies[idx]

		body.Transform.Position = arrayVec3(rec.Position)
		body.Transform.SetRotation(mgl64.Quat{
			W: rec.Rotation[0],
			V: mgl64.Vec3{rec.Rotation[1], rec.Rotation[2], rec.Rotation[3]},
		})
		body.PreviousTransform = body.Transform
		body.Velocity = arrayVec3(rec.Velocity)
		body.AngularVelocity = arrayVec3(rec.AngularVelocity)
		body.PresolveVelocity = body.Velocity
		body.PresolveAngularVelocity = body.AngularVelocity
		body.IsSleeping = rec.IsSleeping
		body.SleepTimer = rec.SleepTimer
		body.Frozen = false
		body.ClearForces()
	}

	clear(w.warmStart.entries)
	for _, rec := range snap.WarmStart {
		entry := &warmStartEntry{
			Normal: arrayVec3(rec.Normal),
			Points: make([]warmStartPoint, len(rec.Points)),
		}
		for i, point := range rec.Points {
			entry.Points[i] = warmStartPoint{
				LocalAnchorA: arrayVec3(point.LocalAnchorA),
				LocalAnchorB: arrayVec3(point.LocalAnchorB),
				NormalLambda: point.NormalLambda,
			}
		}
		w.warmStart.entries[PairKey{A: rec.ColliderA, B: rec.ColliderB}] = entry
	}

	return nil
}

type actorBodyRef struct {
	id    uint64
	index int
}

func vec3Array(v mgl64.Vec3) [3]float64 {
	return [3]float64{v[0], v[1], v[2]}
}

func arrayVec3(a [3]float64) mgl64.Vec3 {
	return mgl64.Vec3{a[0], a[1], a[2]}
}
