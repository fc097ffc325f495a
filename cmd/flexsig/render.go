package main

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/fogleman/gg"
	"golang.org/x/image/font/basicfont"
	_ "golang.org/x/image/webp"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// fallback canvas when there is no background asset
const (
	fallbackWidth  = 300
	fallbackHeight = 140
)

var (
	canvasColor = color.RGBA{20, 20, 20, 255}
	shadowColor = color.RGBA{0, 0, 0, 255}
	titleColor  = color.RGBA{255, 215, 0, 255}
	bodyColor   = color.RGBA{255, 255, 255, 255}
	footerColor = color.RGBA{150, 150, 150, 255}
)

type textLine struct {
	Text  string
	Color color.Color
}

// Renderer draws records onto the background asset. Assets are read from
// disk on every call so they can be swapped without a restart.
type Renderer struct {
	assets AssetsConfig
	layout LayoutConfig

	ladderTitle string
	zoneTitle   string
	// verbatim values are never re-cased (sentinels)
	verbatim map[string]bool
}

func NewRenderer(cfg Config) *Renderer {
	return &Renderer{
		assets:      cfg.Assets,
		layout:      cfg.Layout,
		ladderTitle: cfg.Ladder.Title,
		zoneTitle:   cfg.Zone.Title,
		verbatim: map[string]bool{
			cfg.Zone.Sentinel:      true,
			cfg.Zone.ErrorSentinel: true,
		},
	}
}

// RenderLadder draws the flex signature and encodes it as PNG.
func (r *Renderer) RenderLadder(stats LadderStats) ([]byte, error) {
	dc, err := r.canvas()
	if err != nil {
		return nil, err
	}
	r.drawLines(dc, r.ladderLines(stats))
	return encodePNG(dc)
}

func (r *Renderer) ladderLines(stats LadderStats) []textLine {
	return []textLine{
		{r.ladderTitle, titleColor},
		{"Rank: " + stats.Rank, bodyColor},
		{"Level: " + stats.Level, bodyColor},
		{"Class: " + stats.Class, bodyColor},
		{"Exp: " + r.groupDigits(stats.Experience), bodyColor},
		{"Last Active: " + stats.LastActive, bodyColor},
		{stats.Identity, footerColor},
	}
}

// RenderZones draws the terror zone card as a static PNG.
func (r *Renderer) RenderZones(rot ZoneRotation, now time.Time) ([]byte, error) {
	dc, err := r.canvas()
	if err != nil {
		return nil, err
	}
	r.drawLines(dc, []textLine{
		{r.zoneTitle, titleColor},
		{"NOW: " + r.zoneName(rot.Current), bodyColor},
		{"NEXT: " + r.zoneName(rot.Next), bodyColor},
		{"in " + timeRemaining(rot, now), footerColor},
	})
	return encodePNG(dc)
}

// canvas opens the background, or a plain canvas when the file is missing.
// A background that exists but cannot be decoded is an error.
func (r *Renderer) canvas() (*gg.Context, error) {
	bg, err := loadImage(r.assets.Background)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		w, h := fallbackWidth, fallbackHeight
		if r.layout.Width > 0 && r.layout.Height > 0 {
			w, h = r.layout.Width, r.layout.Height
		}
		dc := gg.NewContext(w, h)
		dc.SetColor(canvasColor)
		dc.Clear()
		r.setFont(dc)
		return dc, nil
	case err != nil:
		return nil, fmt.Errorf("background %s: %w", r.assets.Background, err)
	}

	if r.layout.Width > 0 && r.layout.Height > 0 {
		bg = coverScale(bg, r.layout.Width, r.layout.Height)
	}
	dc := gg.NewContextForImage(bg)
	r.setFont(dc)
	return dc, nil
}

// setFont loads the font asset and falls back to the built-in face on any
// failure.
func (r *Renderer) setFont(dc *gg.Context) {
	if r.assets.Font != "" {
		if err := dc.LoadFontFace(r.assets.Font, r.assets.FontSize); err == nil {
			return
		}
	}
	dc.SetFontFace(basicfont.Face7x13)
}

// drawLines puts the first line at the origin, leaves TitleGap below it and
// then steps by Pitch.
func (r *Renderer) drawLines(dc *gg.Context, lines []textLine) {
	x := float64(r.layout.OriginX)
	y := float64(r.layout.OriginY)
	for i, l := range lines {
		switch {
		case i == 1:
			y += float64(r.layout.TitleGap)
		case i > 1:
			y += float64(r.layout.Pitch)
		}
		drawShadowed(dc, l.Text, x, y, l.Color)
	}
}

// drawShadowed draws s twice: black one pixel down-right, then in c. y is the
// top of the text.
func drawShadowed(dc *gg.Context, s string, x, y float64, c color.Color) {
	dc.SetColor(shadowColor)
	dc.DrawStringAnchored(s, x+1, y+1, 0, 1)
	dc.SetColor(c)
	dc.DrawStringAnchored(s, x, y, 0, 1)
}

func (r *Renderer) groupDigits(v string) string {
	if !r.layout.GroupDigits {
		return v
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return v
	}
	return message.NewPrinter(language.English).Sprintf("%d", n)
}

// zoneName turns "BLOOD MOOR AND DEN OF EVIL" into "Blood Moor And Den Of Evil".
func (r *Renderer) zoneName(v string) string {
	if r.verbatim[v] || v != strings.ToUpper(v) {
		return v
	}
	return cases.Title(language.English).String(strings.ToLower(v))
}

func loadImage(path string) (image.Image, error) {
	if path == "" {
		return nil, fs.ErrNotExist
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return img, nil
}

func encodePNG(dc *gg.Context) ([]byte, error) {
	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}
