package ecs

import (
	"sort"

	"github.com/phanxgames/quadsprite"

	"github.com/yohamta/donburi"
	"github.com/yohamta/donburi/features/events"
	"github.com/yohamta/donburi/filter"
)

// HitEvent is one collision found during a scan.
type HitEvent struct {
	A, B   quadsprite.Thing
	TypeA  string
	GroupB string
}

// HitEventType is the Donburi event type for collisions. Events are queued
// until ProcessEvents or events.ProcessAllEvents runs.
var HitEventType = events.NewEventType[HitEvent]()

// ThingRef attaches a quadsprite Thing to an entity.
type ThingRef struct {
	Thing quadsprite.Thing
}

// ThingComponent is the component type holding a ThingRef.
var ThingComponent = donburi.NewComponentType[ThingRef]()

var thingQuery = donburi.NewQuery(filter.Contains(ThingComponent))

// PublishHits returns a hit function generator that publishes every
// collision against groupB to world.
func PublishHits(world donburi.World, groupB string) func() quadsprite.HitFunc {
	return func() quadsprite.HitFunc {
		return func(a, b quadsprite.Thing) {
			HitEventType.Publish(world, HitEvent{A: a, B: b, TypeA: a.TypeName(), GroupB: groupB})
		}
	}
}

// AddThing creates an entity holding t.
func AddThing(world donburi.World, t quadsprite.Thing) donburi.Entity {
	e := world.Create(ThingComponent)
	ThingComponent.SetValue(world.Entry(e), ThingRef{Thing: t})
	return e
}

// RegisterAll registers every entity's thing with grid, one group at a time
// in sorted order. Groups listed in clear are emptied even when no entity
// belongs to them.
func RegisterAll(world donburi.World, grid *quadsprite.Grid, clear ...string) {
	byGroup := make(map[string][]quadsprite.Thing)
	for _, g := range clear {
		byGroup[g] = nil
	}
	thingQuery.Each(world, func(entry *donburi.Entry) {
		t := ThingComponent.Get(entry).Thing
		byGroup[t.Group()] = append(byGroup[t.Group()], t)
	})
	groups := make([]string, 0, len(byGroup))
	for g := range byGroup {
		groups = append(groups, g)
	}
	sort.Strings(groups)
	for _, g := range groups {
		grid.DetermineAllQuadrants(g, byGroup[g])
	}
}

// CheckAll runs the collider's scan for every entity's thing.
func CheckAll(world donburi.World, collider *quadsprite.Collider) {
	thingQuery.Each(world, func(entry *donburi.Entry) {
		collider.CheckHitsOf(ThingComponent.Get(entry).Thing)
	})
}
