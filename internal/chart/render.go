package chart

import (
	"bytes"
	"fmt"
	"math"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/alamin-nifty/enviromoon-mobile/internal/models"
)

// RenderOptions controls PNG chart rendering
type RenderOptions struct {
	Width      int
	Height     int
	LineColor  string // Hex colour
	Background string
}

// DefaultRenderOptions returns options sized for the dashboard cards
func DefaultRenderOptions() RenderOptions {
	return RenderOptions{
		Width:      640,
		Height:     320,
		LineColor:  "#4ade80",
		Background: "#1b2636",
	}
}

// RenderPNG draws one channel of the shaped data as a line chart
func RenderPNG(data Data, ch models.Channel, opts RenderOptions) ([]byte, error) {
	if opts.Width <= 0 || opts.Height <= 0 {
		opts = DefaultRenderOptions()
	}
	const (
		padLeft   = 48.0
		padRight  = 16.0
		padTop    = 28.0
		padBottom = 32.0
	)

	w, h := float64(opts.Width), float64(opts.Height)
	dc := gg.NewContext(opts.Width, opts.Height)
	dc.SetHexColor(opts.Background)
	dc.Clear()

	if err := loadFont(dc, 12); err != nil {
		return nil, fmt.Errorf("loading font: %w", err)
	}

	dc.SetRGB(0.85, 0.87, 0.9)
	dc.DrawStringAnchored(fmt.Sprintf("%s (%s)", ch, data.Range), padLeft, padTop/2, 0, 0.5)

	if len(data.Points) == 0 {
		dc.DrawStringAnchored("No data available yet", w/2, h/2, 0.5, 0.5)
		return encode(dc)
	}

	minVal, maxVal := math.Inf(1), math.Inf(-1)
	for _, p := range data.Points {
		v := p.Value(ch)
		minVal = math.Min(minVal, v)
		maxVal = math.Max(maxVal, v)
	}
	if maxVal == minVal {
		minVal--
		maxVal++
	}

	plotW := w - padLeft - padRight
	plotH := h - padTop - padBottom
	x := func(i int) float64 {
		if len(data.Points) == 1 {
			return padLeft + plotW/2
		}
		return padLeft + float64(i)/float64(len(data.Points)-1)*plotW
	}
	y := func(v float64) float64 {
		return padTop + (1-(v-minVal)/(maxVal-minVal))*plotH
	}

	// Horizontal grid with value labels
	dc.SetLineWidth(1)
	for i := 0; i <= 4; i++ {
		v := minVal + float64(i)/4*(maxVal-minVal)
		gy := y(v)
		dc.SetRGBA(1, 1, 1, 0.1)
		dc.DrawLine(padLeft, gy, w-padRight, gy)
		dc.Stroke()
		dc.SetRGB(0.6, 0.64, 0.7)
		dc.DrawStringAnchored(fmt.Sprintf("%.0f", v), padLeft-6, gy, 1, 0.5)
	}

	// Series line
	dc.SetHexColor(opts.LineColor)
	dc.SetLineWidth(2)
	for i, p := range data.Points {
		if i == 0 {
			dc.MoveTo(x(i), y(p.Value(ch)))
		} else {
			dc.LineTo(x(i), y(p.Value(ch)))
		}
	}
	dc.Stroke()

	// X-axis labels
	dc.SetRGB(0.6, 0.64, 0.7)
	for i, p := range data.Points {
		if p.Label == "" {
			continue
		}
		dc.DrawStringAnchored(p.Label, x(i), h-padBottom/2, 0.5, 0.5)
	}

	return encode(dc)
}

func loadFont(dc *gg.Context, size float64) error {
	font, err := truetype.Parse(goregular.TTF)
	if err != nil {
		return err
	}
	dc.SetFontFace(truetype.NewFace(font, &truetype.Options{Size: size}))
	return nil
}

func encode(dc *gg.Context) ([]byte, error) {
	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
