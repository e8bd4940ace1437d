package bedrock

import (
	"sort"

	"github.com/akmonengine/bedrock/actor"
	"github.com/akmonengine/bedrock/constraint"
)

const (
	TRIGGER_ENTER EventType = iota
	COLLISION_ENTER
	TRIGGER_STAY
	COLLISION_STAY
	TRIGGER_EXIT
	COLLISION_EXIT
	ON_SLEEP
	ON_WAKE
	ON_DIVERGENCE
)

type EventType uint8

// Event interface - all events implement this
type Event interface {
	Type() EventType
}

// Trigger events
type TriggerEnterEvent struct {
	BodyA *actor.RigidBody
	BodyB *actor.RigidBody
}

func (e TriggerEnterEvent) Type() EventType { return TRIGGER_ENTER }

type TriggerStayEvent struct {
	BodyA *actor.RigidBody
	BodyB *actor.RigidBody
}

func (e TriggerStayEvent) Type() EventType { return TRIGGER_STAY }

type TriggerExitEvent struct {
	BodyA *actor.RigidBody
	BodyB *actor.RigidBody
}

func (e TriggerExitEvent) Type() EventType { return TRIGGER_EXIT }

// Collision events
type CollisionEnterEvent struct {
	BodyA *actor.RigidBody
	BodyB *actor.RigidBody
}

func (e CollisionEnterEvent) Type() EventType { return COLLISION_ENTER }

type CollisionStayEvent struct {
	BodyA *actor.RigidBody
	BodyB *actor.RigidBody
}

func (e CollisionStayEvent) Type() EventType { return COLLISION_STAY }

type CollisionExitEvent struct {
	BodyA *actor.RigidBody
	BodyB *actor.RigidBody
}

func (e CollisionExitEvent) Type() EventType { return COLLISION_EXIT }

// Sleep/Wake events
type SleepEvent struct {
	Body *actor.RigidBody
}

func (e SleepEvent) Type() EventType { return ON_SLEEP }

type WakeEvent struct {
	Body *actor.RigidBody
}

func (e WakeEvent) Type() EventType { return ON_WAKE }

// DivergenceEvent reports a body whose state picked up NaN or Inf
// during a step. The body was frozen for the rest of the step and its
// last valid transform restored.
type DivergenceEvent struct {
	Body *actor.RigidBody
}

func (e DivergenceEvent) Type() EventType { return ON_DIVERGENCE }

// EventListener - callback for events
type EventListener func(event Event)

type activePair struct {
	bodyA  *actor.RigidBody
	bodyB  *actor.RigidBody
	sensor bool
}

// dormant reports a pair with no awake dynamic body: a sleeper resting
// on static ground. Such a pair produces no contacts while it sleeps,
// but it has not separated either.
func (p activePair) dormant() bool {
	awakeDynamic := func(body *actor.RigidBody) bool {
		return body.BodyType == actor.BodyTypeDynamic && !body.IsSleeping
	}
	return !awakeDynamic(p.bodyA) && !awakeDynamic(p.bodyB)
}

// Events manager. Pair tracking is keyed by body IDs, and emission
// walks pairs in ID order, so listener call order never depends on map
// scheduling.
type Events struct {
	listeners map[EventType][]EventListener

	// Event buffer sent at flush, at the end of the step
	buffer []Event

	// Collision tracking for Enter/Stay/Exit detection
	previousActivePairs map[PairKey]activePair
	currentActivePairs  map[PairKey]activePair

	sleepStates map[uint64]bool
}

func NewEvents() Events {
	return Events{
		listeners:           make(map[EventType][]EventListener),
		buffer:              make([]Event, 0, 256),
		previousActivePairs: make(map[PairKey]activePair),
		currentActivePairs:  make(map[PairKey]activePair),
		sleepStates:         make(map[uint64]bool),
	}
}

// Subscribe adds a listener for an event type
func (e *Events) Subscribe(eventType EventType, listener EventListener) {
	e.listeners[eventType] = append(e.listeners[eventType], listener)
}

// recordContacts tracks this frame's touching pairs for Enter/Stay/Exit
// detection. Only points actually within tolerance count; speculative
// contacts whose points are all still separated are not "touching".
func (e *Events) recordContacts(contacts []*constraint.Constraint) {
	for _, c := range contacts {
		if c.Manifold == nil {
			continue
		}

		touching := false
		for _, point := range c.Manifold.Points {
			if point.Penetration >= 0 {
				touching = true
				break
			}
		}
		if !touching {
			continue
		}

		key := MakePairKey(c.BodyA.ID, c.BodyB.ID)
		e.currentActivePairs[key] = activePair{
			bodyA:  c.BodyA,
			bodyB:  c.BodyB,
			sensor: c.Sensor,
		}
	}
}

func (e *Events) emitDivergence(body *actor.RigidBody) {
	e.buffer = append(e.buffer, DivergenceEvent{Body: body})
}

// processCollisionEvents compares current and previous pairs to detect
// Enter/Stay/Exit, called once per step after the substeps
func (e *Events) processCollisionEvents() {
	for _, key := range sortedPairKeys(e.currentActivePairs) {
		pair := e.currentActivePairs[key]

		// Skip dormant pairs to avoid spamming Stay events
		if pair.dormant() {
			continue
		}

		if _, wasActive := e.previousActivePairs[key]; wasActive {
			if pair.sensor {
				e.buffer = append(e.buffer, TriggerStayEvent{BodyA: pair.bodyA, BodyB: pair.bodyB})
			} else {
				e.buffer = append(e.buffer, CollisionStayEvent{BodyA: pair.bodyA, BodyB: pair.bodyB})
			}
		} else {
			if pair.sensor {
				e.buffer = append(e.buffer, TriggerEnterEvent{BodyA: pair.bodyA, BodyB: pair.bodyB})
			} else {
				e.buffer = append(e.buffer, CollisionEnterEvent{BodyA: pair.bodyA, BodyB: pair.bodyB})
			}
		}
	}

	for _, key := range sortedPairKeys(e.previousActivePairs) {
		if _, stillActive := e.currentActivePairs[key]; stillActive {
			continue
		}
		pair := e.previousActivePairs[key]

		// Falling asleep stops contact generation, not the touch: carry
		// the pair silently so waking resumes with Stay, not Exit+Enter
		if pair.dormant() {
			e.currentActivePairs[key] = pair
			continue
		}

		if pair.sensor {
			e.buffer = append(e.buffer, TriggerExitEvent{BodyA: pair.bodyA, BodyB: pair.bodyB})
		} else {
			e.buffer = append(e.buffer, CollisionExitEvent{BodyA: pair.bodyA, BodyB: pair.bodyB})
		}
	}

	// Swap for next frame and clear current
	e.previousActivePairs, e.currentActivePairs = e.currentActivePairs, e.previousActivePairs
	clear(e.currentActivePairs)
}

func sortedPairKeys(pairs map[PairKey]activePair) []PairKey {
	keys := make([]PairKey, 0, len(pairs))
	for key := range pairs {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].A != keys[j].A {
			return keys[i].A < keys[j].A
		}
		return keys[i].B < keys[j].B
	})
	return keys
}

func (e *Events) processSleepEvents(bodies []*actor.RigidBody) {
	for _, body := range bodies {
		trackedState, exists := e.sleepStates[body.ID]
		if !exists {
			e.sleepStates[body.ID] = body.IsSleeping
			continue
		}

		if !trackedState && body.IsSleeping {
			e.buffer = append(e.buffer, SleepEvent{Body: body})
			e.sleepStates[body.ID] = true
		} else if trackedState && !body.IsSleeping {
			e.buffer = append(e.buffer, WakeEvent{Body: body})
			e.sleepStates[body.ID] = false
		}
	}
}

func (e *Events) forget(body *actor.RigidBody) {
	delete(e.sleepStates, body.ID)
	for key, pair := range e.previousActivePairs {
		if pair.bodyA == body || pair.bodyB == body {
			delete(e.previousActivePairs, key)
		}
	}
	for key, pair := range e.currentActivePairs {
		if pair.bodyA == body || pair.bodyB == body {
			delete(e.currentActivePairs, key)
		}
	}
}

// flush sends all buffered events and clears the buffer
func (e *Events) flush() {
	e.processCollisionEvents()

	for _, event := range e.buffer {
		if listeners, ok := e.listeners[event.Type()]; ok {
			for _, listener := range listeners {
				listener(event)
			}
		}
	}
	e.buffer = e.buffer[:0]
}
