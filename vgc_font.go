// vgc_font.go - text-plane character generator, baked from a stock bitmap font

package main

import (
	"image"
	"image/color"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// vgcFont holds an 8x8 monochrome glyph per character code (1 bit per
// pixel, MSB leftmost), baked once at init from
// golang.org/x/image/font/basicfont.Face7x13 — the same glyph-
// rasterization role video_chip.go gives x/image, applied here to the
// VGC's text-plane character generator instead of a debug overlay.
var vgcFont [256][8]byte

func init() {
	for code := 0x20; code < 0x7F; code++ {
		vgcFont[code] = bakeGlyph(rune(code))
	}
}

func bakeGlyph(r rune) [8]byte {
	img := image.NewAlpha(image.Rect(0, 0, 8, 13))
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(color.Alpha{A: 255}),
		Face: basicfont.Face7x13,
		Dot:  fixed.Point26_6{X: 0, Y: fixed.I(11)},
	}
	d.DrawString(string(r))

	var out [8]byte
	for row := 0; row < 8; row++ {
		srcRow := row * 13 / 8
		var bits byte
		for col := 0; col < 8; col++ {
			if img.AlphaAt(col, srcRow).A > 0x80 {
				bits |= 1 << uint(7-col)
			}
		}
		out[row] = bits
	}
	return out
}
