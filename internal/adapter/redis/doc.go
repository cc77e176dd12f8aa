// Package redis is the optional multi-instance backplane: a shared cooldown store and a pub/sub
// relay that fans broadcast frames out to every instance.
package redis
