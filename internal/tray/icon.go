// Package tray renders the system tray icon, label and tooltip
package tray

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/alamin-nifty/enviromoon-mobile/internal/models"
)

const (
	osWindows  = "windows"
	maxHistory = 24
)

// Level classifies a reading for the icon background
type Level string

// Levels
const (
	LevelUnknown  Level = "unknown"
	LevelOffline  Level = "offline"
	LevelOK       Level = "ok"
	LevelWarning  Level = "warning"
	LevelCritical Level = "critical"
)

// warnMargin is the fraction of a threshold range treated as the warning band
const warnMargin = 0.1

// IconGenerator renders tray icons and keeps the sparkline history
type IconGenerator struct {
	mu      sync.Mutex
	history []float64 // Last temperatures for the sparkline
}

// NewIconGenerator creates a new icon generator
func NewIconGenerator() *IconGenerator {
	return &IconGenerator{
		history: make([]float64, 0, maxHistory),
	}
}

// AddHistory appends a value to the sparkline, ignoring missing values
func (g *IconGenerator) AddHistory(v float64) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	g.history = append(g.history, v)
	if len(g.history) > maxHistory {
		g.history = g.history[len(g.history)-maxHistory:]
	}
}

// SetHistory replaces the sparkline history with the newest values of a
// newest-first series
func (g *IconGenerator) SetHistory(series []models.Reading, ch models.Channel) {
	values := make([]float64, 0, maxHistory)
	for i := len(series) - 1; i >= 0; i-- {
		v := series[i].Value(ch)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		values = append(values, v)
	}
	if len(values) > maxHistory {
		values = values[len(values)-maxHistory:]
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.history = values
}

// ClearHistory removes all sparkline values
func (g *IconGenerator) ClearHistory() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.history = make([]float64, 0, maxHistory)
}

// History returns a copy of the sparkline values
func (g *IconGenerator) History() []float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]float64(nil), g.history...)
}

// Classify returns the level of a reading against the device thresholds
func Classify(r *models.Reading, thresholds *models.AlertThresholds, connectivity models.Connectivity) Level {
	switch connectivity {
	case models.ConnectivityUnknown:
		return LevelUnknown
	case models.ConnectivityDisconnected:
		return LevelOffline
	}
	if r.IsPlaceholder() {
		return LevelOffline
	}
	if thresholds == nil {
		return LevelOK
	}

	level := LevelOK
	for _, check := range []struct {
		v   float64
		rng models.Range
	}{
		{r.Temperature, thresholds.Temperature},
		{r.Humidity, thresholds.Humidity},
	} {
		if math.IsNaN(check.v) {
			continue
		}
		if !check.rng.Contains(check.v) {
			return LevelCritical
		}
		margin := (check.rng.Max - check.rng.Min) * warnMargin
		if check.v < check.rng.Min+margin || check.v > check.rng.Max-margin {
			level = LevelWarning
		}
	}
	return level
}

// LevelColor returns the icon background for a level
func LevelColor(level Level) string {
	switch level {
	case LevelOK:
		return "#4ade80" // Green
	case LevelWarning:
		return "#facc15" // Yellow
	case LevelCritical:
		return "#ef4444" // Red
	case LevelOffline:
		return "#9ca3af" // Gray-400
	default:
		return "#808080" // Gray for unknown
	}
}

// Label returns the tray label text: current temperature and trend arrow
func Label(stats models.Stats) string {
	temp := stats.Temperature
	if !temp.Available {
		return models.Unavailable
	}
	return fmt.Sprintf("%s°C %s", temp.Format(temp.Current, 1), temp.TrendArrow())
}

// IconText returns the short value drawn inside the icon
func IconText(stats models.Stats) string {
	if !stats.Temperature.Available {
		return models.Unavailable
	}
	return fmt.Sprintf("%.0f", stats.Temperature.Current)
}

// Tooltip builds the tray tooltip for the current state
func (g *IconGenerator) Tooltip(stats models.Stats, connectivity models.Connectivity, updated time.Time, now time.Time) string {
	g.mu.Lock()
	history := append([]float64(nil), g.history...)
	g.mu.Unlock()

	age := formatDuration(updated, now)
	status := formatConnectivity(connectivity)

	if runtime.GOOS == osWindows {
		return compactTooltip(stats, history, status, age)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "🌡 %s°C %s\n", stats.Temperature.Format(stats.Temperature.Current, 1), stats.Temperature.TrendArrow())
	fmt.Fprintf(&b, "💧 %s%% %s\n", stats.Humidity.Format(stats.Humidity.Current, 1), stats.Humidity.TrendArrow())
	fmt.Fprintf(&b, "☀ %s %s", lightText(stats.Light), stats.Light.TrendArrow())
	if spark := MultiLineSparkline(history, 6); spark != "" {
		b.WriteString("\n")
		b.WriteString(spark)
	}
	fmt.Fprintf(&b, "\nDevice: %s\nUpdated: %s", status, age)
	return b.String()
}

// compactTooltip fits the 128 UTF-16 character limit of Windows tooltips
func compactTooltip(stats models.Stats, history []float64, status, age string) string {
	head := fmt.Sprintf("%s°C %s%%",
		stats.Temperature.Format(stats.Temperature.Current, 1),
		stats.Humidity.Format(stats.Humidity.Current, 0))
	if spark := CompactSparkline(history); spark != "" {
		return fmt.Sprintf("%s\n%s\n%s %s", head, spark, status, age)
	}
	return fmt.Sprintf("%s\n%s %s", head, status, age)
}

// lightText shows the raw LDR value with its brightness percentage
func lightText(light models.ChannelStats) string {
	if !light.Available {
		return models.Unavailable
	}
	r := models.Reading{Light: light.Current}
	return fmt.Sprintf("%.0f (%.0f%% bright)", light.Current, r.Brightness())
}

func formatConnectivity(c models.Connectivity) string {
	switch c {
	case models.ConnectivityConnected:
		return "Connected"
	case models.ConnectivityDisconnected:
		return "Disconnected"
	default:
		return "Checking..."
	}
}

// formatDuration formats the time since the last update
func formatDuration(updated, now time.Time) string {
	if updated.IsZero() {
		return "never"
	}
	d := now.Sub(updated)
	switch {
	case d < time.Minute:
		return "just now"
	case d < 2*time.Minute:
		return "1 minute ago"
	case d < time.Hour:
		return fmt.Sprintf("%d minutes ago", int(d.Minutes()))
	case d < 2*time.Hour:
		return "1 hour ago"
	default:
		return fmt.Sprintf("%d hours ago", int(d.Hours()))
	}
}

func bounds(values []float64) (minVal, maxVal float64) {
	minVal, maxVal = values[0], values[0]
	for _, v := range values {
		minVal = math.Min(minVal, v)
		maxVal = math.Max(maxVal, v)
	}
	return minVal, maxVal
}

// CompactSparkline renders values as a two-line Braille chart
func CompactSparkline(values []float64) string {
	if len(values) < 2 {
		return ""
	}

	minVal, maxVal := bounds(values)
	rangeVal := maxVal - minVal
	if rangeVal == 0 {
		rangeVal = 1
	}

	// Each column is a bar growing from the bottom line into the top line
	var topLine, bottomLine bytes.Buffer
	for _, val := range values {
		height := (val - minVal) / rangeVal * 4.0

		var topChar, bottomChar rune
		switch {
		case height >= 4:
			topChar, bottomChar = '⣿', '⣿'
		case height >= 3.5:
			topChar, bottomChar = '⣶', '⣿'
		case height >= 3:
			topChar, bottomChar = '⣤', '⣿'
		case height >= 2.5:
			topChar, bottomChar = '⣀', '⣿'
		case height >= 2:
			topChar, bottomChar = '⠀', '⣿'
		case height >= 1.5:
			topChar, bottomChar = '⠀', '⣶'
		case height >= 1:
			topChar, bottomChar = '⠀', '⣤'
		default:
			topChar, bottomChar = '⠀', '⣀'
		}

		topLine.WriteRune(topChar)
		bottomLine.WriteRune(bottomChar)
	}

	return topLine.String() + "\n" + bottomLine.String()
}

// MultiLineSparkline renders values as a Braille chart of the given height
// with min/max labels
func MultiLineSparkline(values []float64, height int) string {
	if len(values) < 2 || height < 1 {
		return ""
	}

	minVal, maxVal := bounds(values)
	buffer := math.Max((maxVal-minVal)*0.1, 0.5)
	minVal -= buffer
	maxVal += buffer
	rangeVal := maxVal - minVal

	// Empty, 1/4, 1/2, 3/4, Full
	blocks := []rune{'⠀', '⣀', '⣤', '⣶', '⣿'}
	const subBlocksPerLine = 4.0

	rows := make([][]rune, height)
	for i := range rows {
		rows[i] = []rune(strings.Repeat("⠀", len(values)))
	}

	for x, val := range values {
		total := (val - minVal) / rangeVal * float64(height) * subBlocksPerLine

		for y := 0; y < height; y++ {
			lineIdx := height - 1 - y
			lineStart := float64(y) * subBlocksPerLine
			lineEnd := float64(y+1) * subBlocksPerLine

			if total >= lineEnd {
				rows[lineIdx][x] = '⣿'
			} else if total > lineStart {
				remainder := int(math.Round(total - lineStart))
				remainder = max(0, min(remainder, len(blocks)-1))
				rows[lineIdx][x] = blocks[remainder]
			}
		}
	}

	var result strings.Builder
	fmt.Fprintf(&result, "Max: %.1f\n", maxVal)
	for _, row := range rows {
		result.WriteString(string(row))
		result.WriteString("\n")
	}
	fmt.Fprintf(&result, "Min: %.1f", minVal)
	return result.String()
}

// GenerateIcon renders the tray icon: value text over the level colour with a trend arrow
func (g *IconGenerator) GenerateIcon(text string, trend float64, level Level) []byte {
	const (
		width  = 64
		height = 64
		radius = 16
	)

	dc := gg.NewContext(width, height)

	// Transparent background
	dc.SetRGBA(0, 0, 0, 0)
	dc.Clear()

	r, gr, b := parseHexColor(LevelColor(level))
	dc.SetRGB255(int(r), int(gr), int(b))
	dc.DrawRoundedRectangle(0, 0, float64(width), float64(height), float64(radius))
	dc.Fill()

	// Text color (black or white depending on brightness)
	brightness := (int(r)*299 + int(gr)*587 + int(b)*114) / 1000
	if brightness > 128 {
		dc.SetColor(color.Black)
	} else {
		dc.SetColor(color.White)
	}

	if err := loadFont(dc, 30); err == nil {
		dc.DrawStringAnchored(text, width/2, height/2-12, 0.5, 0.5)
	}

	if level != LevelUnknown && level != LevelOffline {
		drawArrow(dc, width/2, height-16, 22, trend)
	}

	if runtime.GOOS == osWindows {
		return imageToICO(dc.Image())
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, dc.Image()); err != nil {
		return nil
	}
	return buf.Bytes()
}

// loadFont helper to load font safely
func loadFont(dc *gg.Context, size float64) error {
	font, err := truetype.Parse(goregular.TTF)
	if err != nil {
		return err
	}
	dc.SetFontFace(truetype.NewFace(font, &truetype.Options{Size: size}))
	return nil
}

// drawArrow draws an up, flat or down arrow for the trend sign
func drawArrow(dc *gg.Context, x, y, size, trend float64) {
	dc.Push()
	defer dc.Pop()

	dc.Translate(x, y)

	var angle float64
	switch {
	case trend > 0:
		angle = 0
	case trend < 0:
		angle = 180
	default:
		angle = 90
	}
	dc.Rotate(gg.Radians(angle))

	w := size * 0.5
	dc.NewSubPath()
	dc.MoveTo(0, -size/2)
	dc.LineTo(w/2, 0)
	dc.LineTo(w/6, 0)
	dc.LineTo(w/6, size/2)
	dc.LineTo(-w/6, size/2)
	dc.LineTo(-w/6, 0)
	dc.LineTo(-w/2, 0)
	dc.ClosePath()
	dc.Fill()
}

// parseHexColor parses a hex color string to RGB values
func parseHexColor(hex string) (r, g, b byte) {
	if len(hex) == 7 && hex[0] == '#' {
		_, _ = fmt.Sscanf(hex, "#%02x%02x%02x", &r, &g, &b)
	}
	return
}

// imageToICO wraps a PNG encoding of img in a single-entry ICO container
func imageToICO(img image.Image) []byte {
	var pngBuf bytes.Buffer
	if err := png.Encode(&pngBuf, img); err != nil {
		return nil
	}
	pngData := pngBuf.Bytes()

	var buf bytes.Buffer
	// ICONDIR: reserved, type 1 (icon), one image
	_ = binary.Write(&buf, binary.LittleEndian, [3]uint16{0, 1, 1})

	size := img.Bounds()
	for _, dim := range []int{size.Dx(), size.Dy()} {
		if dim >= 256 {
			buf.WriteByte(0) // 0 = 256
		} else {
			buf.WriteByte(byte(dim))
		}
	}
	buf.WriteByte(0) // No palette
	buf.WriteByte(0) // Reserved
	_ = binary.Write(&buf, binary.LittleEndian, uint16(1))  // Planes
	_ = binary.Write(&buf, binary.LittleEndian, uint16(32)) // Bits per pixel
	// #nosec G115 -- PNG size is limited by memory and will not overflow uint32
	_ = binary.Write(&buf, binary.LittleEndian, uint32(len(pngData)))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(22)) // Header + one entry

	buf.Write(pngData)
	return buf.Bytes()
}
