package domain

import "context"

// Credentials are the connection parameters a client presents when opening a socket.
type Credentials struct {
	Token  string
	AnonID string
}

type ResolvedIdentity struct {
	Actor  ActorID
	Role   Role
	Banned bool
	// AnonIssued is set when the anonymous id was synthesized and must be relayed to the client.
	AnonIssued bool
}

// IdentityResolver turns connection credentials into an actor. Any credential problem is
// reported as ErrInvalidCredentials.
type IdentityResolver interface {
	Resolve(ctx context.Context, creds Credentials) (ResolvedIdentity, error)
}
