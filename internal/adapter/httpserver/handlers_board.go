package httpserver

import (
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	apperrors "github.com/pscheid92/pixelboard/internal/platform/errors"
)

type boardPixel struct {
	X        int       `json:"x"`
	Y        int       `json:"y"`
	Color    string    `json:"color"`
	PlacedAt time.Time `json:"placed_at"`
}

type boardResponse struct {
	Width  int          `json:"width"`
	Height int          `json:"height"`
	Pixels []boardPixel `json:"pixels"`
}

func (s *Server) handleBoard(c echo.Context) error {
	board, err := s.board.ReadBoard(c.Request().Context())
	if err != nil {
		return apperrors.UnavailableError("board unavailable", err)
	}

	resp := boardResponse{
		Width:  board.Width,
		Height: board.Height,
		Pixels: make([]boardPixel, 0, len(board.Pixels)),
	}
	for _, p := range board.Pixels {
		resp.Pixels = append(resp.Pixels, boardPixel{X: p.X, Y: p.Y, Color: p.Color, PlacedAt: p.PlacedAt.UTC()})
	}

	c.Response().Header().Set("Cache-Control", "no-store")
	if err := c.JSON(http.StatusOK, resp); err != nil {
		return fmt.Errorf("failed to write board response: %w", err)
	}
	return nil
}
