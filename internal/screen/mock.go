package screen

import (
	"context"
	"image"
	"image/color"
	"image/draw"
	"time"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// MockGrabber draws a synthetic desktop: a gradient whose hue drifts with
// the clock, stamped with the current time. It lets the agent run without
// a display server.
type MockGrabber struct {
	Width, Height int
	Now           func() time.Time
}

func NewMockGrabber(width, height int) *MockGrabber {
	return &MockGrabber{Width: width, Height: height, Now: time.Now}
}

func (g *MockGrabber) Grab(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	now := g.Now()
	img := image.NewRGBA(image.Rect(0, 0, g.Width, g.Height))

	shift := uint8(now.Unix() % 256)
	for y := 0; y < g.Height; y++ {
		row := img.Pix[y*img.Stride:]
		for x := 0; x < g.Width; x++ {
			px := row[x*4 : x*4+4]
			px[0] = uint8(x*255/max(g.Width, 1)) + shift
			px[1] = uint8(y * 255 / max(g.Height, 1))
			px[2] = 255 - shift
			px[3] = 255
		}
	}

	banner := image.Rect(0, 0, min(g.Width, 220), min(g.Height, 24))
	draw.Draw(img, banner, image.NewUniform(color.Black), image.Point{}, draw.Src)
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(color.RGBA{R: 255, G: 255, A: 255}),
		Face: basicfont.Face7x13,
		Dot:  fixed.Point26_6{X: fixed.I(8), Y: fixed.I(17)},
	}
	d.DrawString("mock " + now.Format(time.DateTime))
	return img, nil
}
