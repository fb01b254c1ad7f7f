package capture

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"time"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/Gonanf/gabinator-desktop-remaster/internal/config"
)

var bars = []color.RGBA{
	{0xc0, 0xc0, 0xc0, 0xff},
	{0xc0, 0xc0, 0x00, 0xff},
	{0x00, 0xc0, 0xc0, 0xff},
	{0x00, 0xc0, 0x00, 0xff},
	{0xc0, 0x00, 0xc0, 0xff},
	{0xc0, 0x00, 0x00, 0xff},
	{0x00, 0x00, 0xc0, 0xff},
}

// Pattern is a moving colour-bar test card with the frame number and
// time drawn in the corner.
type Pattern struct {
	img   *image.RGBA
	buf   bytes.Buffer
	frame int
	now   func() time.Time
}

func NewPattern(width, height int) (*Pattern, error) {
	if width < 1 || height < 1 {
		return nil, config.ErrSize
	}
	return &Pattern{
		img: image.NewRGBA(image.Rect(0, 0, width, height)),
		now: time.Now,
	}, nil
}

func (p *Pattern) Capture(quality int) ([]byte, error) {
	p.draw()
	p.frame++

	p.buf.Reset()
	if err := jpeg.Encode(&p.buf, p.img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, &CaptureError{Err: err}
	}
	// the caller may hold on to the frame while the next one is encoded
	return append([]byte(nil), p.buf.Bytes()...), nil
}

func (p *Pattern) draw() {
	b := p.img.Bounds()
	w := b.Dx()
	barWidth := (w + len(bars) - 1) / len(bars)
	shift := (p.frame * 4) % w

	for i, c := range bars {
		x0 := (i*barWidth + shift) % w
		r := image.Rect(x0, 0, x0+barWidth, b.Dy())
		draw.Draw(p.img, r.Intersect(b), image.NewUniform(c), image.Point{}, draw.Src)
		if r.Max.X > w {
			// wrap around the right edge
			wrapped := image.Rect(0, 0, r.Max.X-w, b.Dy())
			draw.Draw(p.img, wrapped.Intersect(b), image.NewUniform(c), image.Point{}, draw.Src)
		}
	}

	label := fmt.Sprintf("gabinator #%05d %s", p.frame, p.now().Format("15:04:05.000"))
	box := image.Rect(0, 0, len(label)*7+20, 30).Intersect(b)
	draw.Draw(p.img, box, image.Black, image.Point{}, draw.Src)

	d := &font.Drawer{
		Dst:  p.img,
		Src:  image.White,
		Face: basicfont.Face7x13,
		Dot:  fixed.P(10, 20),
	}
	d.DrawString(label)
}
