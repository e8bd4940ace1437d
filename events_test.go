package bedrock

import (
	"testing"

	"github.com/akmonengine/bedrock/actor"
	"github.com/akmonengine/bedrock/constraint"
	"github.com/go-gl/mathgl/mgl64"
)

func eventBody(id uint64) *actor.RigidBody {
	body := actor.NewRigidBody(actor.NewTransform(), actor.BodyTypeDynamic)
	body.ID = id
	return body
}

func touchingContact(a, b *actor.RigidBody, sensor bool) *constraint.Constraint {
	return &constraint.Constraint{
		Kind:   constraint.KindContact,
		BodyA:  a,
		BodyB:  b,
		Sensor: sensor,
		Manifold: &constraint.Manifold{
			Normal: mgl64.Vec3{0, 1, 0},
			Points: []constraint.ContactPoint{{Penetration: 0.01}},
		},
	}
}

func collectEvents(events *Events) *[]EventType {
	var log []EventType
	for _, eventType := range []EventType{
		TRIGGER_ENTER, TRIGGER_STAY, TRIGGER_EXIT,
		COLLISION_ENTER, COLLISION_STAY, COLLISION_EXIT,
		ON_SLEEP, ON_WAKE, ON_DIVERGENCE,
	} {
		et := eventType
		events.Subscribe(et, func(event Event) {
			log = append(log, event.Type())
		})
	}
	return &log
}

func TestCollisionEventSequence(t *testing.T) {
	events := NewEvents()
	log := collectEvents(&events)

	a, b := eventBody(1), eventBody(2)
	contact := touchingContact(a, b, false)

	// Frame 1: contact appears
	events.recordContacts([]*constraint.Constraint{contact})
	events.flush()

	// Frame 2: still touching
	events.recordContacts([]*constraint.Constraint{contact})
	events.flush()

	// Frame 3: gone
	events.flush()

	expected := []EventType{COLLISION_ENTER, COLLISION_STAY, COLLISION_EXIT}
	if len(*log) != len(expected) {
		t.Fatalf("Expected %d events, got %d", len(expected), len(*log))
	}
	for i, eventType := range expected {
		if (*log)[i] != eventType {
			t.Errorf("Event %d: expected type %d, got %d", i, eventType, (*log)[i])
		}
	}
}

func TestTriggerEventSequence(t *testing.T) {
	events := NewEvents()
	log := collectEvents(&events)

	a, b := eventBody(1), eventBody(2)
	sensor := touchingContact(a, b, true)

	events.recordContacts([]*constraint.Constraint{sensor})
	events.flush()
	events.flush()

	expected := []EventType{TRIGGER_ENTER, TRIGGER_EXIT}
	if len(*log) != len(expected) {
		t.Fatalf("Expected %d events, got %d", len(expected), len(*log))
	}
	for i, eventType := range expected {
		if (*log)[i] != eventType {
			t.Errorf("Event %d: expected type %d, got %d", i, eventType, (*log)[i])
		}
	}
}

func TestSpeculativeContactIsNotTouching(t *testing.T) {
	events := NewEvents()
	log := collectEvents(&events)

	a, b := eventBody(1), eventBody(2)
	contact := touchingContact(a, b, false)
	contact.Manifold.Points[0].Penetration = -0.01

	events.recordContacts([]*constraint.Constraint{contact})
	events.flush()

	if len(*log) != 0 {
		t.Errorf("Separated speculative contact fired %d events", len(*log))
	}
}

func TestEventOrderIsDeterministic(t *testing.T) {
	run := func() []PairKey {
		events := NewEvents()

		var order []PairKey
		events.Subscribe(COLLISION_ENTER, func(event Event) {
			e := event.(CollisionEnterEvent)
			order = append(order, MakePairKey(e.BodyA.ID, e.BodyB.ID))
		})

		bodies := make([]*actor.RigidBody, 8)
		for i := range bodies {
			bodies[i] = eventBody(uint64(i + 1))
		}

		var contacts []*constraint.Constraint
		for i := 0; i < len(bodies)-1; i++ {
			contacts = append(contacts, touchingContact(bodies[i], bodies[i+1], false))
		}

		events.recordContacts(contacts)
		events.flush()
		return order
	}

	first, second := run(), run()
	if len(first) != 7 {
		t.Fatalf("Expected 7 enter events, got %d", len(first))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("Emission order differs between runs at index %d", i)
		}
	}
	for i := 1; i < len(first); i++ {
		if first[i].A < first[i-1].A {
			t.Error("Events not emitted in ascending pair order")
		}
	}
}

func TestSleepWakeEvents(t *testing.T) {
	events := NewEvents()
	log := collectEvents(&events)

	body := eventBody(1)
	bodies := []*actor.RigidBody{body}

	// First sighting only registers the state
	events.processSleepEvents(bodies)
	events.flush()
	if len(*log) != 0 {
		t.Fatalf("First sighting fired %d events", len(*log))
	}

	body.Sleep()
	events.processSleepEvents(bodies)
	events.flush()

	body.Awake()
	events.processSleepEvents(bodies)
	events.flush()

	expected := []EventType{ON_SLEEP, ON_WAKE}
	if len(*log) != len(expected) {
		t.Fatalf("Expected %d events, got %d", len(expected), len(*log))
	}
	for i, eventType := range expected {
		if (*log)[i] != eventType {
			t.Errorf("Event %d: expected type %d, got %d", i, eventType, (*log)[i])
		}
	}
}

func TestSleepingPairEmitsNoStay(t *testing.T) {
	events := NewEvents()
	log := collectEvents(&events)

	a, b := eventBody(1), eventBody(2)
	contact := touchingContact(a, b, false)

	events.recordContacts([]*constraint.Constraint{contact})
	events.flush()

	a.Sleep()
	b.Sleep()
	events.recordContacts([]*constraint.Constraint{contact})
	events.flush()

	for _, eventType := range *log {
		if eventType == COLLISION_STAY {
			t.Error("Sleeping pair must not emit stay events")
		}
	}
}

func TestRestingPairGoesSilentWithoutExit(t *testing.T) {
	events := NewEvents()
	log := collectEvents(&events)

	box := eventBody(1)
	ground := actor.NewRigidBody(actor.NewTransform(), actor.BodyTypeStatic)
	ground.ID = 2
	contact := touchingContact(box, ground, false)

	// Frame 1: the box lands
	events.recordContacts([]*constraint.Constraint{contact})
	events.flush()

	// Frames 2-3: the box falls asleep; no contacts are generated for
	// the pair anymore, but it has not separated
	box.Sleep()
	events.flush()
	events.flush()

	// Frame 4: the box wakes, contacts resume
	box.Awake()
	events.recordContacts([]*constraint.Constraint{contact})
	events.flush()

	expected := []EventType{COLLISION_ENTER, COLLISION_STAY}
	if len(*log) != len(expected) {
		t.Fatalf("Expected %d events, got %d: %v", len(expected), len(*log), *log)
	}
	for i, eventType := range expected {
		if (*log)[i] != eventType {
			t.Errorf("Event %d: expected type %d, got %d", i, eventType, (*log)[i])
		}
	}
}

func TestForgetDropsBodyState(t *testing.T) {
	events := NewEvents()
	log := collectEvents(&events)

	a, b := eventBody(1), eventBody(2)
	contact := touchingContact(a, b, false)

	events.recordContacts([]*constraint.Constraint{contact})
	events.flush()

	events.forget(b)
	events.flush()

	for _, eventType := range *log {
		if eventType == COLLISION_EXIT {
			t.Error("Forgotten pair still produced an exit event")
		}
	}
}
