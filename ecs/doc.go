// Package ecs bridges quadsprite collisions into a [Donburi] world.
//
// Things stored on entities through [ThingComponent] are registered with a
// grid by [RegisterAll] and scanned by [CheckAll]. Hit functions built with
// [PublishHits] publish every collision as a [HitEvent]; subscribe to
// [HitEventType] in your ECS systems to receive them.
//
// Usage:
//
//	collider := quadsprite.NewCollider(quadsprite.ColliderSettings{
//		HitCheckGenerators: checks,
//		HitFunctionGenerators: map[string]map[string]func() quadsprite.HitFunc{
//			"character": {"solid": ecs.PublishHits(world, "solid")},
//		},
//	})
//	ecs.RegisterAll(world, grid)
//	ecs.CheckAll(world, collider)
//	ecs.HitEventType.ProcessEvents(world)
//
// [Donburi]: https://github.com/yohamta/donburi
package ecs
