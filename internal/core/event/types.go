package event

import "github.com/l1jgo/hashbounds/internal/core/ecs"

type BodySpawned struct {
	EntityID ecs.EntityID
	Kind     string
}

type BodyDespawned struct {
	EntityID ecs.EntityID
}

// ContactBegan fires on the first tick two bodies' boxes overlap.
// A is always the lower EntityID.
type ContactBegan struct {
	A, B ecs.EntityID
	Tick uint64
}

type ContactEnded struct {
	A, B ecs.EntityID
	Tick uint64
}
