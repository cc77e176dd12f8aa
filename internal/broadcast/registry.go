package broadcast

import "github.com/pscheid92/pixelboard/internal/domain"

type actorConns map[Conn]*clientWriter

// registry maps actors to their live connections. It is owned by the broadcaster goroutine and
// never touched from anywhere else.
type registry struct {
	actors map[domain.ActorID]actorConns
	total  int
}

func newRegistry() *registry {
	return &registry{actors: make(map[domain.ActorID]actorConns)}
}

// connect files conn under actor and reports whether this is the actor's first connection.
// A conn that is already filed keeps its writer; callers check contains first.
func (r *registry) connect(actor domain.ActorID, conn Conn, cw *clientWriter) bool {
	conns, exists := r.actors[actor]
	if !exists {
		conns = make(actorConns)
		r.actors[actor] = conns
	}
	if _, dup := conns[conn]; dup {
		return false
	}
	conns[conn] = cw
	r.total++
	return !exists
}

func (r *registry) contains(actor domain.ActorID, conn Conn) bool {
	_, ok := r.actors[actor][conn]
	return ok
}

// disconnect removes conn. The actor entry is deleted with its last connection; last reports that.
func (r *registry) disconnect(actor domain.ActorID, conn Conn) (cw *clientWriter, last bool, ok bool) {
	conns, exists := r.actors[actor]
	if !exists {
		return nil, false, false
	}
	cw, ok = conns[conn]
	if !ok {
		return nil, false, false
	}
	delete(conns, conn)
	r.total--

	if len(conns) == 0 {
		delete(r.actors, actor)
		return cw, true, true
	}
	return cw, false, true
}

// connectionsFor returns the connections of actor; nil for unknown actors.
func (r *registry) connectionsFor(actor domain.ActorID) actorConns {
	return r.actors[actor]
}

func (r *registry) actorCount(actor domain.ActorID) int {
	return len(r.actors[actor])
}

func (r *registry) count() int {
	return r.total
}

func (r *registry) actorsLen() int {
	return len(r.actors)
}

// drain empties the registry and returns every writer it held.
func (r *registry) drain() []*clientWriter {
	writers := make([]*clientWriter, 0, r.total)
	for actor, conns := range r.actors {
		for _, cw := range conns {
			writers = append(writers, cw)
		}
		delete(r.actors, actor)
	}
	r.total = 0
	return writers
}
