package main

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"image"
	"image/color"

	"golang.org/x/image/bmp"
	"golang.org/x/image/draw"
)

// RenderLadderBMP draws the flex signature as BMP for picture frames and
// e-ink panels. mono gives a dithered 1bpp file.
func (r *Renderer) RenderLadderBMP(stats LadderStats, mono bool) ([]byte, error) {
	dc, err := r.canvas()
	if err != nil {
		return nil, err
	}
	r.drawLines(dc, r.ladderLines(stats))

	if mono {
		return encode1bppBMP(ditherMono(dc.Image()))
	}
	var buf bytes.Buffer
	if err := bmp.Encode(&buf, dc.Image()); err != nil {
		return nil, fmt.Errorf("encode bmp: %w", err)
	}
	return buf.Bytes(), nil
}

// coverScale fills a w x h canvas with img, cropping whichever side is too
// long so nothing is distorted.
func coverScale(img image.Image, w, h int) image.Image {
	src := img.Bounds()
	crop := src.Size()
	// compare aspect ratios in integers: src wider than target crops x
	if crop.X*h > crop.Y*w {
		crop.X = crop.Y * w / h
	} else {
		crop.Y = crop.X * h / w
	}
	origin := src.Min.Add(src.Size().Sub(crop).Div(2))

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, image.Rectangle{Min: origin, Max: origin.Add(crop)}, draw.Over, nil)
	return dst
}

// monoPalette puts every pixel on pure black or white.
var monoPalette = color.Palette{color.Black, color.White}

// ditherMono is Floyd-Steinberg down to pure black and white.
func ditherMono(src image.Image) *image.Paletted {
	return ditherToPalette(src, monoPalette)
}

// encode1bppBMP writes a bottom-up BITMAPINFOHEADER file with a two colour
// palette, index 0 white and index 1 black.
func encode1bppBMP(img image.Image) ([]byte, error) {
	b := img.Bounds()
	width, height := b.Dx(), b.Dy()

	rawRowBytes := (width + 7) / 8
	rowSize := (rawRowBytes + 3) &^ 3
	imageSize := rowSize * height

	const (
		fileHeaderSize = 14
		dibHeaderSize  = 40
		paletteSize    = 8
	)
	pixelOffset := fileHeaderSize + dibHeaderSize + paletteSize
	fileSize := uint32(pixelOffset + imageSize)

	buf := &bytes.Buffer{}
	buf.Grow(int(fileSize))

	header := []any{
		[2]byte{'B', 'M'},
		fileSize,
		uint16(0), uint16(0),
		uint32(pixelOffset),

		uint32(dibHeaderSize),
		int32(width),
		int32(height),
		uint16(1), // planes
		uint16(1), // bits per pixel
		uint32(0), // BI_RGB
		uint32(imageSize),
		int32(0), int32(0),
		uint32(2), uint32(2),

		[4]byte{0xFF, 0xFF, 0xFF, 0x00},
		[4]byte{0x00, 0x00, 0x00, 0x00},
	}
	for _, v := range header {
		if err := binary.Write(buf, binary.LittleEndian, v); err != nil {
			return nil, fmt.Errorf("write bmp header: %w", err)
		}
	}

	row := make([]byte, rowSize)
	for y := b.Max.Y - 1; y >= b.Min.Y; y-- {
		clear(row)
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			if 299*r+587*g+114*bl < 32768*1000 {
				i := x - b.Min.X
				row[i/8] |= 1 << uint(7-i%8)
			}
		}
		buf.Write(row)
	}
	return buf.Bytes(), nil
}
