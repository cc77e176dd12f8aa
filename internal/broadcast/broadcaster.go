package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/oklog/ulid/v2"
	"github.com/pscheid92/pixelboard/internal/adapter/metrics"
	"github.com/pscheid92/pixelboard/internal/domain"
)

var (
	// ErrStopped is returned by Register once the broadcaster has shut down.
	ErrStopped = errors.New("broadcaster stopped")
	// ErrAlreadyRegistered is returned when conn is already filed under the actor.
	ErrAlreadyRegistered = errors.New("connection already registered")
)

const (
	commandTimeout = 5 * time.Second
	stopTimeout    = 10 * time.Second
	relayTimeout   = 2 * time.Second
	cmdBufferSize  = 1024

	defaultMaxConnsPerActor = 16
)

// Relay forwards broadcasts to other instances.
type Relay interface {
	Publish(ctx context.Context, payload []byte) error
}

// Stats is a point-in-time view of the registry.
type Stats struct {
	Actors      int `json:"actors"`
	Connections int `json:"connections"`
}

type broadcasterCmd interface{ isBroadcasterCmd() }

type baseBroadcasterCmd struct{}

func (baseBroadcasterCmd) isBroadcasterCmd() {}

type registerReply struct {
	id  ulid.ULID
	err error
}

type registerCmd struct {
	baseBroadcasterCmd
	actor      domain.ActorID
	connection Conn
	reply      chan registerReply
}

type unregisterCmd struct {
	baseBroadcasterCmd
	actor      domain.ActorID
	connection Conn
}

type unicastCmd struct {
	baseBroadcasterCmd
	actor domain.ActorID
	// connection narrows delivery to one of the actor's connections when set.
	connection Conn
	payload    []byte
}

type broadcastCmd struct {
	baseBroadcasterCmd
	payload []byte
}

type countCmd struct {
	baseBroadcasterCmd
	actor domain.ActorID
	reply chan int
}

type statsCmd struct {
	baseBroadcasterCmd
	reply chan Stats
}

type stopCmd struct {
	baseBroadcasterCmd
}

type Option func(*Broadcaster)

// WithMaxConnsPerActor bounds how many tabs one actor may keep open.
func WithMaxConnsPerActor(n int) Option {
	return func(b *Broadcaster) { b.maxConnsPerActor = n }
}

// WithRelay publishes every BroadcastAll payload to other instances.
func WithRelay(r Relay) Option {
	return func(b *Broadcaster) { b.relay = r }
}

// WithLifecycleHooks registers callbacks for an actor's first connection and last disconnect.
// They run on their own goroutine.
func WithLifecycleHooks(onConnected, onDisconnected func(domain.ActorID)) Option {
	return func(b *Broadcaster) {
		b.onActorConnected = onConnected
		b.onActorDisconnected = onDisconnected
	}
}

// Broadcaster owns the connection registry and delivers messages to registered connections.
type Broadcaster struct {
	cmdCh               chan broadcasterCmd
	clock               clockwork.Clock
	metrics             *metrics.WebSocketMetrics
	registry            *registry
	relay               Relay
	onActorConnected    func(domain.ActorID)
	onActorDisconnected func(domain.ActorID)
	maxConnsPerActor    int
	stopTimeout         time.Duration
	done                chan struct{}
}

func NewBroadcaster(clock clockwork.Clock, m *metrics.WebSocketMetrics, opts ...Option) *Broadcaster {
	b := &Broadcaster{
		cmdCh:            make(chan broadcasterCmd, cmdBufferSize),
		clock:            clock,
		metrics:          m,
		registry:         newRegistry(),
		maxConnsPerActor: defaultMaxConnsPerActor,
		stopTimeout:      stopTimeout,
		done:             make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	go b.run()
	return b
}

// Register files conn under actor and starts its writer. The returned id identifies the
// connection in logs.
func (b *Broadcaster) Register(actor domain.ActorID, conn Conn) (ulid.ULID, error) {
	replyCh := make(chan registerReply, 1)
	if !b.send(registerCmd{actor: actor, connection: conn, reply: replyCh}) {
		return ulid.ULID{}, ErrStopped
	}

	timer := b.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case r := <-replyCh:
		return r.id, r.err
	case <-timer.Chan():
		return ulid.ULID{}, fmt.Errorf("register command timed out after %v", commandTimeout)
	}
}

// Unregister removes conn and closes it. Unknown connections are ignored.
func (b *Broadcaster) Unregister(actor domain.ActorID, conn Conn) {
	b.send(unregisterCmd{actor: actor, connection: conn})
}

// Unicast delivers msg to every connection of actor. Unknown actors are a no-op.
func (b *Broadcaster) Unicast(actor domain.ActorID, msg any) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal unicast message: %w", err)
	}
	b.send(unicastCmd{actor: actor, payload: data})
	return nil
}

// Send delivers msg to a single connection of actor.
func (b *Broadcaster) Send(actor domain.ActorID, conn Conn, msg any) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	b.send(unicastCmd{actor: actor, connection: conn, payload: data})
	return nil
}

// BroadcastAll delivers msg to every registered connection and, with a relay, to other instances.
func (b *Broadcaster) BroadcastAll(ctx context.Context, msg any) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal broadcast message: %w", err)
	}
	b.send(broadcastCmd{payload: data})

	if b.relay != nil {
		relayCtx, cancel := context.WithTimeout(ctx, relayTimeout)
		defer cancel()
		if err := b.relay.Publish(relayCtx, data); err != nil {
			slog.WarnContext(ctx, "Relay publish failed, other instances miss this broadcast", "error", err)
		}
	}
	return nil
}

// DeliverLocal delivers an already encoded payload to local connections only. Used for
// broadcasts that originate on another instance.
func (b *Broadcaster) DeliverLocal(payload []byte) {
	b.metrics.RelayReceived.Inc()
	b.send(broadcastCmd{payload: payload})
}

// ConnectionCount returns the number of connections of actor, or -1 on timeout.
func (b *Broadcaster) ConnectionCount(actor domain.ActorID) int {
	replyCh := make(chan int, 1)
	if !b.send(countCmd{actor: actor, reply: replyCh}) {
		return 0
	}

	timer := b.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case count := <-replyCh:
		return count
	case <-timer.Chan():
		slog.Warn("ConnectionCount timed out", "timeout", commandTimeout)
		return -1
	}
}

// Stats returns registry totals. The zero value is returned once stopped.
func (b *Broadcaster) Stats() Stats {
	replyCh := make(chan Stats, 1)
	if !b.send(statsCmd{reply: replyCh}) {
		return Stats{}
	}

	timer := b.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case s := <-replyCh:
		return s
	case <-timer.Chan():
		slog.Warn("Stats timed out", "timeout", commandTimeout)
		return Stats{}
	}
}

// Stop closes every connection with a close frame and waits for the actor goroutine to exit.
func (b *Broadcaster) Stop() {
	if !b.send(stopCmd{}) {
		return
	}

	timeout := b.clock.NewTimer(b.stopTimeout)
	defer timeout.Stop()

	select {
	case <-b.done:
		slog.Info("Broadcaster stopped gracefully")
	case <-timeout.Chan():
		slog.Warn("Broadcaster stop timeout exceeded", "timeout", b.stopTimeout)
	}
}

func (b *Broadcaster) send(cmd broadcasterCmd) bool {
	select {
	case <-b.done:
		return false
	default:
	}

	select {
	case b.cmdCh <- cmd:
		return true
	case <-b.done:
		return false
	}
}

func (b *Broadcaster) run() {
	defer close(b.done)
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Broadcaster panic recovered", "panic", r)
			b.closeAll("broadcaster panic")
		}
	}()

	for cmd := range b.cmdCh {
		switch c := cmd.(type) {
		case registerCmd:
			b.handleRegister(c)
		case unregisterCmd:
			b.handleUnregister(c.actor, c.connection)
		case unicastCmd:
			b.handleUnicast(c)
		case broadcastCmd:
			b.handleBroadcast(c.payload)
		case countCmd:
			c.reply <- b.registry.actorCount(c.actor)
		case statsCmd:
			c.reply <- Stats{Actors: b.registry.actorsLen(), Connections: b.registry.count()}
		case stopCmd:
			b.handleStop()
			return
		default:
			slog.Warn("Broadcaster received unknown command type", "command_type", fmt.Sprintf("%T", cmd))
		}
	}
}

func (b *Broadcaster) handleRegister(c registerCmd) {
	if b.registry.contains(c.actor, c.connection) {
		c.reply <- registerReply{err: ErrAlreadyRegistered}
		return
	}
	if b.maxConnsPerActor > 0 && b.registry.actorCount(c.actor) >= b.maxConnsPerActor {
		slog.Warn("Rejecting connection: per-actor limit reached", "actor", c.actor.Key(), "max_connections", b.maxConnsPerActor)
		c.reply <- registerReply{err: fmt.Errorf("%w: max %d per actor", domain.ErrTooManyConnections, b.maxConnsPerActor)}
		return
	}

	actor, conn := c.actor, c.connection
	cw := newClientWriter(conn, b.clock, b.metrics, func() {
		go b.Unregister(actor, conn)
	})

	if first := b.registry.connect(actor, conn, cw); first && b.onActorConnected != nil {
		go b.onActorConnected(actor)
	}
	b.updateGauges()

	slog.Debug("Connection registered", "actor", actor.Key(), "conn_id", cw.id.String(), "actor_connections", b.registry.actorCount(actor))
	c.reply <- registerReply{id: cw.id}
}

func (b *Broadcaster) handleUnregister(actor domain.ActorID, conn Conn) {
	cw, last, ok := b.registry.disconnect(actor, conn)
	if !ok {
		return
	}
	cw.stop()
	b.updateGauges()

	if last {
		slog.Debug("Last connection of actor closed", "actor", actor.Key())
		if b.onActorDisconnected != nil {
			go b.onActorDisconnected(actor)
		}
	} else {
		slog.Debug("Connection unregistered", "actor", actor.Key(), "conn_id", cw.id.String(), "remaining", b.registry.actorCount(actor))
	}
}

func (b *Broadcaster) handleUnicast(c unicastCmd) {
	conns := b.registry.connectionsFor(c.actor)
	if len(conns) == 0 {
		return
	}

	var slow []Conn
	for conn, cw := range conns {
		if c.connection != nil && conn != c.connection {
			continue
		}
		if !cw.enqueue(c.payload) {
			slow = append(slow, conn)
		}
	}
	b.evict(c.actor, slow)
}

func (b *Broadcaster) handleBroadcast(payload []byte) {
	type target struct {
		actor domain.ActorID
		conn  Conn
	}

	var slow []target
	for actor, conns := range b.registry.actors {
		for conn, cw := range conns {
			if !cw.enqueue(payload) {
				slow = append(slow, target{actor: actor, conn: conn})
			}
		}
	}

	for _, t := range slow {
		b.evict(t.actor, []Conn{t.conn})
	}
}

func (b *Broadcaster) evict(actor domain.ActorID, conns []Conn) {
	for _, conn := range conns {
		slog.Warn("Disconnecting slow or failed client", "actor", actor.Key())
		b.metrics.SlowClientsEvicted.Inc()
		b.handleUnregister(actor, conn)
	}
}

func (b *Broadcaster) handleStop() {
	total := b.registry.count()
	slog.Info("Broadcaster shutting down", "actors", b.registry.actorsLen(), "connections", total)
	b.closeAll("server shutting down")
	slog.Info("Broadcaster shutdown complete", "disconnected_clients", total)
}

func (b *Broadcaster) closeAll(reason string) {
	for _, cw := range b.registry.drain() {
		cw.stopGraceful(reason)
	}
	b.updateGauges()
}

func (b *Broadcaster) updateGauges() {
	b.metrics.ActiveConnections.Set(float64(b.registry.count()))
	b.metrics.ConnectedActors.Set(float64(b.registry.actorsLen()))
}
