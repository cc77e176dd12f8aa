package placement

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/pscheid92/pixelboard/internal/broadcast"
	"github.com/pscheid92/pixelboard/internal/domain"
)

type mockPixelStore struct {
	mu            sync.Mutex
	pixels        []domain.Pixel
	insertPixelFn func(ctx context.Context, p domain.Pixel) error
}

func (m *mockPixelStore) InsertPixel(ctx context.Context, p domain.Pixel) error {
	if m.insertPixelFn != nil {
		if err := m.insertPixelFn(ctx, p); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pixels = append(m.pixels, p)
	return nil
}

func (m *mockPixelStore) stored() []domain.Pixel {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Pixel(nil), m.pixels...)
}

type mockCooldownStore struct {
	mu     sync.Mutex
	writes int
	lastFn func(ctx context.Context, key string) (time.Time, bool, error)
	setFn  func(ctx context.Context, key string, at time.Time, ttl time.Duration) error
}

func (m *mockCooldownStore) Last(ctx context.Context, key string) (time.Time, bool, error) {
	if m.lastFn != nil {
		return m.lastFn(ctx, key)
	}
	return time.Time{}, false, nil
}

func (m *mockCooldownStore) Set(ctx context.Context, key string, at time.Time, ttl time.Duration) error {
	m.mu.Lock()
	m.writes++
	m.mu.Unlock()
	if m.setFn != nil {
		return m.setFn(ctx, key, at, ttl)
	}
	return nil
}

func (m *mockCooldownStore) writeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

type delivery struct {
	actor domain.ActorID
	conn  broadcast.Conn
	msg   map[string]any
}

type recordingMessenger struct {
	mu         sync.Mutex
	sent       []delivery
	unicasts   []delivery
	broadcasts []map[string]any
}

func toMap(msg any) map[string]any {
	data, _ := json.Marshal(msg)
	var m map[string]any
	_ = json.Unmarshal(data, &m)
	return m
}

func (r *recordingMessenger) Send(actor domain.ActorID, conn broadcast.Conn, msg any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, delivery{actor: actor, conn: conn, msg: toMap(msg)})
	return nil
}

func (r *recordingMessenger) Unicast(actor domain.ActorID, msg any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.unicasts = append(r.unicasts, delivery{actor: actor, msg: toMap(msg)})
	return nil
}

func (r *recordingMessenger) BroadcastAll(_ context.Context, msg any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.broadcasts = append(r.broadcasts, toMap(msg))
	return nil
}

func (r *recordingMessenger) sentOfType(typ string) []map[string]any {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []map[string]any
	for _, d := range r.sent {
		if d.msg["type"] == typ {
			out = append(out, d.msg)
		}
	}
	return out
}

func (r *recordingMessenger) broadcastCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.broadcasts)
}

func (r *recordingMessenger) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent, r.unicasts, r.broadcasts = nil, nil, nil
}
