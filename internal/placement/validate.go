package placement

import (
	"fmt"
	"regexp"

	"github.com/pscheid92/pixelboard/internal/domain"
)

var colorPattern = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

type pixelRequest struct {
	x, y  int
	color string
}

func validatePixel(msg domain.InboundMessage, width, height int) (pixelRequest, error) {
	if msg.X == nil || msg.Y == nil {
		return pixelRequest{}, fmt.Errorf("%w: x and y are required", domain.ErrInvalidPlacement)
	}
	if msg.Color == nil {
		return pixelRequest{}, fmt.Errorf("%w: color is required", domain.ErrInvalidPlacement)
	}

	x, y, color := *msg.X, *msg.Y, *msg.Color
	if x < 0 || x >= width || y < 0 || y >= height {
		return pixelRequest{}, fmt.Errorf("%w: (%d,%d) is outside the %dx%d board", domain.ErrInvalidPlacement, x, y, width, height)
	}
	if !colorPattern.MatchString(color) {
		return pixelRequest{}, fmt.Errorf("%w: color %q is not #rgb or #rrggbb", domain.ErrInvalidPlacement, color)
	}
	return pixelRequest{x: x, y: y, color: color}, nil
}
