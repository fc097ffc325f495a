package main

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/color/palette"
	"image/gif"
	"time"

	"golang.org/x/image/draw"
)

// RenderAvatar builds the animated zone avatar: now, time left, next. The GIF
// loops forever and every frame shows for the same time.
func (r *Renderer) RenderAvatar(rot ZoneRotation, now time.Time, frameDelay int) ([]byte, error) {
	frames := []string{
		"NOW: " + r.zoneName(rot.Current),
		"NEXT IN: " + timeRemaining(rot, now),
		"NEXT: " + r.zoneName(rot.Next),
	}

	anim := &gif.GIF{LoopCount: 0}
	for _, text := range frames {
		dc, err := r.canvas()
		if err != nil {
			return nil, err
		}
		r.drawLines(dc, []textLine{
			{r.zoneTitle, titleColor},
			{text, bodyColor},
		})
		anim.Image = append(anim.Image, ditherToPalette(dc.Image(), palette.Plan9))
		anim.Delay = append(anim.Delay, frameDelay)
	}

	var buf bytes.Buffer
	if err := gif.EncodeAll(&buf, anim); err != nil {
		return nil, fmt.Errorf("encode gif: %w", err)
	}
	return buf.Bytes(), nil
}

// ditherToPalette maps src onto pal with Floyd-Steinberg error diffusion.
func ditherToPalette(src image.Image, pal color.Palette) *image.Paletted {
	b := src.Bounds()
	out := image.NewPaletted(b, pal)
	draw.FloydSteinberg.Draw(out, b, src, b.Min)
	return out
}
