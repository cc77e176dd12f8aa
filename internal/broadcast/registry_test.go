package broadcast

import (
	"testing"

	"github.com/pscheid92/pixelboard/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestRegistry_ConnectCreatesEntry(t *testing.T) {
	r := newRegistry()
	actor := domain.NewAuthenticatedActor("U")
	conn := newFakeConn()

	first := r.connect(actor, conn, &clientWriter{})

	assert.True(t, first)
	assert.Equal(t, 1, r.actorCount(actor))
	assert.Equal(t, 1, r.count())
	assert.Len(t, r.connectionsFor(actor), 1)
}

func TestRegistry_MultiplexedSessions(t *testing.T) {
	r := newRegistry()
	actor := domain.NewAuthenticatedActor("U")
	c1, c2, c3 := newFakeConn(), newFakeConn(), newFakeConn()

	assert.True(t, r.connect(actor, c1, &clientWriter{}))
	assert.False(t, r.connect(actor, c2, &clientWriter{}))
	assert.False(t, r.connect(actor, c3, &clientWriter{}))

	_, last, ok := r.disconnect(actor, c2)
	assert.True(t, ok)
	assert.False(t, last)
	assert.Equal(t, 2, r.actorCount(actor))
	assert.Contains(t, r.connectionsFor(actor), Conn(c1))
	assert.Contains(t, r.connectionsFor(actor), Conn(c3))
}

func TestRegistry_LastDisconnectRemovesEntry(t *testing.T) {
	r := newRegistry()
	actor := domain.NewAnonymousActor("a")
	conn := newFakeConn()
	r.connect(actor, conn, &clientWriter{})

	_, last, ok := r.disconnect(actor, conn)

	assert.True(t, ok)
	assert.True(t, last)
	assert.Zero(t, r.actorsLen())
	assert.Zero(t, r.count())
	assert.Empty(t, r.connectionsFor(actor))
	_, present := r.actors[actor]
	assert.False(t, present, "empty connection sets must not linger")
}

func TestRegistry_DisconnectUnknown(t *testing.T) {
	r := newRegistry()
	actor := domain.NewAnonymousActor("a")

	_, _, ok := r.disconnect(actor, newFakeConn())
	assert.False(t, ok)

	r.connect(actor, newFakeConn(), &clientWriter{})
	_, _, ok = r.disconnect(actor, newFakeConn())
	assert.False(t, ok)
	assert.Equal(t, 1, r.count())
}

func TestRegistry_ActorsAreDistinctByKind(t *testing.T) {
	r := newRegistry()
	r.connect(domain.NewAuthenticatedActor("1"), newFakeConn(), &clientWriter{})
	r.connect(domain.NewAnonymousActor("1"), newFakeConn(), &clientWriter{})

	assert.Equal(t, 2, r.actorsLen())
}

func TestRegistry_Drain(t *testing.T) {
	r := newRegistry()
	r.connect(domain.NewAuthenticatedActor("1"), newFakeConn(), &clientWriter{})
	r.connect(domain.NewAuthenticatedActor("1"), newFakeConn(), &clientWriter{})
	r.connect(domain.NewAnonymousActor("2"), newFakeConn(), &clientWriter{})

	writers := r.drain()

	assert.Len(t, writers, 3)
	assert.Zero(t, r.count())
	assert.Zero(t, r.actorsLen())
}

func TestRegistry_DuplicateConnectKeepsWriter(t *testing.T) {
	r := newRegistry()
	actor := domain.NewAuthenticatedActor("U")
	conn := newFakeConn()
	original := &clientWriter{}

	r.connect(actor, conn, original)
	first := r.connect(actor, conn, &clientWriter{})

	assert.False(t, first)
	assert.True(t, r.contains(actor, conn))
	assert.False(t, r.contains(domain.NewAnonymousActor("U"), conn))
	assert.Equal(t, 1, r.count())
	assert.Same(t, original, r.connectionsFor(actor)[conn])
}
