package broadcast

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

type fakeConn struct {
	mu          sync.Mutex
	messages    []string
	closeFrames [][]byte
	closed      bool
	writeErr    error
	block       chan struct{}
	closedCh    chan struct{}
}

func newFakeConn() *fakeConn {
	return &fakeConn{closedCh: make(chan struct{})}
}

func (c *fakeConn) WriteMessage(messageType int, data []byte) error {
	if c.block != nil && messageType == websocket.TextMessage {
		select {
		case <-c.block:
		case <-c.closedCh:
			return errors.New("use of closed network connection")
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.New("use of closed network connection")
	}
	if c.writeErr != nil {
		return c.writeErr
	}
	switch messageType {
	case websocket.TextMessage:
		c.messages = append(c.messages, string(data))
	case websocket.CloseMessage:
		c.closeFrames = append(c.closeFrames, data)
	}
	return nil
}

func (c *fakeConn) SetWriteDeadline(time.Time) error   { return nil }
func (c *fakeConn) SetReadDeadline(time.Time) error    { return nil }
func (c *fakeConn) SetPongHandler(func(string) error) {}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.closedCh)
	}
	return nil
}

func (c *fakeConn) received() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.messages...)
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeConn) closeFrameCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.closeFrames)
}
