package domain

import (
	"context"
	"time"
)

type Pixel struct {
	X        int
	Y        int
	Color    string
	PlacedAt time.Time
	UserID   *string
	AnonID   *string
}

// NewPixel attributes a pixel to actor.
func NewPixel(x, y int, color string, actor ActorID, placedAt time.Time) Pixel {
	p := Pixel{X: x, Y: y, Color: color, PlacedAt: placedAt}
	id := actor.ID()
	if actor.Authenticated() {
		p.UserID = &id
	} else {
		p.AnonID = &id
	}
	return p
}

// PlacementEvent is an accepted placement as seen by every client.
type PlacementEvent struct {
	X     int
	Y     int
	Color string
	Actor ActorID
}

type Board struct {
	Width  int
	Height int
	Pixels []Pixel
}

// PixelStore is the durable pixel collaborator.
type PixelStore interface {
	InsertPixel(ctx context.Context, p Pixel) error
}

// BoardReader returns the latest pixel of every painted coordinate.
type BoardReader interface {
	Board(ctx context.Context, width, height int) ([]Pixel, error)
}
