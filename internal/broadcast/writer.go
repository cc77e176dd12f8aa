package broadcast

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/oklog/ulid/v2"
	"github.com/pscheid92/pixelboard/internal/adapter/metrics"
)

const (
	writeDeadline     = 5 * time.Second
	pingInterval      = 30 * time.Second
	pongDeadline      = 60 * time.Second
	messageBufferSize = 16
)

// Conn is the part of *websocket.Conn the broadcaster needs.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	SetReadDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
	Close() error
}

var _ Conn = (*websocket.Conn)(nil)

type clientWriter struct {
	id            ulid.ULID
	connection    Conn
	clock         clockwork.Clock
	metrics       *metrics.WebSocketMetrics
	sendChannel   chan []byte
	doneChannel   chan struct{}
	failedChannel chan struct{}
	onFailure     func()
	stopOnce      sync.Once
	failOnce      sync.Once
	wg            sync.WaitGroup
}

func newClientWriter(connection Conn, clock clockwork.Clock, m *metrics.WebSocketMetrics, onFailure func()) *clientWriter {
	cw := &clientWriter{
		id:            ulid.Make(),
		connection:    connection,
		clock:         clock,
		metrics:       m,
		sendChannel:   make(chan []byte, messageBufferSize),
		doneChannel:   make(chan struct{}),
		failedChannel: make(chan struct{}),
		onFailure:     onFailure,
	}
	cw.configurePongHandler()
	cw.wg.Add(1)
	go cw.run()
	return cw
}

func (cw *clientWriter) run() {
	ticker := cw.clock.NewTicker(pingInterval)
	defer ticker.Stop()
	defer cw.wg.Done()

	for {
		select {
		case msg := <-cw.sendChannel:
			start := cw.clock.Now()
			cw.updateWriteDeadline()
			if err := cw.connection.WriteMessage(websocket.TextMessage, msg); err != nil {
				cw.fail()
				return
			}
			cw.metrics.MessagesSent.Inc()
			cw.metrics.SendDuration.Observe(cw.clock.Since(start).Seconds())
		case <-ticker.Chan():
			cw.updateWriteDeadline()
			if err := cw.connection.WriteMessage(websocket.PingMessage, nil); err != nil {
				cw.metrics.PingFailures.Inc()
				cw.fail()
				return
			}
		case <-cw.doneChannel:
			return
		}
	}
}

// enqueue hands msg to the writer without blocking. False means the connection is slow or dead.
func (cw *clientWriter) enqueue(msg []byte) bool {
	select {
	case <-cw.failedChannel:
		return false
	case <-cw.doneChannel:
		return false
	default:
	}

	select {
	case cw.sendChannel <- msg:
		return true
	default:
		return false
	}
}

func (cw *clientWriter) fail() {
	cw.failOnce.Do(func() {
		close(cw.failedChannel)
		if cw.onFailure != nil {
			cw.onFailure()
		}
	})
}

func (cw *clientWriter) stop() {
	cw.stopOnce.Do(func() {
		close(cw.doneChannel)
		_ = cw.connection.Close()
	})
	cw.wg.Wait()
}

// stopGraceful sends a close frame with reason before closing.
func (cw *clientWriter) stopGraceful(reason string) {
	cw.stopOnce.Do(func() {
		close(cw.doneChannel)

		// The run goroutine must be gone before we write the close frame.
		cw.wg.Wait()

		closeMsg := websocket.FormatCloseMessage(websocket.CloseGoingAway, reason)
		cw.updateWriteDeadline()
		_ = cw.connection.WriteMessage(websocket.CloseMessage, closeMsg)
		_ = cw.connection.Close()
	})
	cw.wg.Wait()
}

func (cw *clientWriter) configurePongHandler() {
	cw.updateReadDeadline()
	cw.connection.SetPongHandler(func(string) error {
		cw.updateReadDeadline()
		return nil
	})
}

func (cw *clientWriter) updateWriteDeadline() {
	_ = cw.connection.SetWriteDeadline(cw.clock.Now().Add(writeDeadline))
}

func (cw *clientWriter) updateReadDeadline() {
	_ = cw.connection.SetReadDeadline(cw.clock.Now().Add(pongDeadline))
}
