// Package cooldown implements the per-actor placement cooldown.
//
// The Gate answers whether an actor may place now and records accepted placements. Storage is
// pluggable: MemoryStore for a single instance, the Redis store in adapter/redis when several
// instances share actors. Lock serializes check, persist and record for one actor.
package cooldown
