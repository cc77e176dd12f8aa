// Package domain defines the core types and interfaces of the pixel board.
//
// Concept-oriented files (actor.go, pixel.go, identity.go, message.go, ...) hold shared types and the
// collaborator contracts the realtime core calls into. No implementation code, just contracts.
package domain
