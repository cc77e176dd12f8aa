package domain

import (
	"fmt"
	"strings"
)

// ActorKind discriminates authenticated users from anonymous visitors.
type ActorKind uint8

const (
	ActorAnonymous ActorKind = iota
	ActorAuthenticated
)

func (k ActorKind) String() string {
	if k == ActorAuthenticated {
		return "user"
	}
	return "anon"
}

// ActorID identifies whoever places pixels. It is comparable and can be used as a map key;
// two actors are equal iff kind and id match.
type ActorID struct {
	kind ActorKind
	id   string
}

// NewAuthenticatedActor returns the actor for a registered user.
func NewAuthenticatedActor(userID string) ActorID {
	return ActorID{kind: ActorAuthenticated, id: userID}
}

// NewAnonymousActor returns the actor for an anonymous visitor.
func NewAnonymousActor(anonID string) ActorID {
	return ActorID{kind: ActorAnonymous, id: anonID}
}

func (a ActorID) Kind() ActorKind     { return a.kind }
func (a ActorID) ID() string          { return a.id }
func (a ActorID) IsZero() bool        { return a.id == "" }
func (a ActorID) Authenticated() bool { return a.kind == ActorAuthenticated }

// Key is the namespaced form used for shared stores such as Redis.
func (a ActorID) Key() string {
	return a.kind.String() + ":" + a.id
}

// String is the display form carried in the "actor" field of pixel events.
func (a ActorID) String() string {
	return a.id
}

// ParseActorKey is the inverse of Key.
func ParseActorKey(key string) (ActorID, error) {
	kind, id, ok := strings.Cut(key, ":")
	if !ok || id == "" {
		return ActorID{}, fmt.Errorf("malformed actor key %q", key)
	}
	switch kind {
	case "user":
		return NewAuthenticatedActor(id), nil
	case "anon":
		return NewAnonymousActor(id), nil
	default:
		return ActorID{}, fmt.Errorf("unknown actor kind %q", kind)
	}
}
