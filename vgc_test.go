package main

import "testing"

func vgcWriteCmd(v *VGC, params []byte, cmd byte) {
	for i, p := range params {
		v.Write(vgcCoreBase+0x10+uint16(i), p)
	}
	v.Write(vgcCoreBase+0x10+cmdTriggerOff, cmd)
}

// VGC-line (§8 concrete scenario): a Bresenham line from (0,0) to
// (319,199) leaves nonzero pixels along the line, including both
// endpoints, and zero off it; PLOT with color 0 clears exactly the
// targeted pixel.
func TestVGCLineAndClearPixel(t *testing.T) {
	v := NewVGC()
	vgcWriteCmd(v, []byte{0, 0, 0, 0, 0x3F, 0x01, 0xC7, 0x00, 1}, cmdLine) // (0,0)-(319,199), color=1

	if v.bitmap[0*vgcBitmapW+0] != 1 {
		t.Fatalf("start point not drawn")
	}
	if v.bitmap[199*vgcBitmapW+319] != 1 {
		t.Fatalf("end point not drawn")
	}
	if v.bitmap[50*vgcBitmapW+0] != 0 {
		t.Fatalf("off-line pixel unexpectedly set")
	}

	vgcWriteCmd(v, []byte{0, 0, 0, 0}, cmdClearPixel)
	if v.bitmap[0] != 0 {
		t.Fatalf("clear pixel did not clear (0,0)")
	}
	if v.bitmap[199*vgcBitmapW+319] != 1 {
		t.Fatalf("clearing (0,0) should not affect the endpoint")
	}
}

func TestVGCFilledRectClipped(t *testing.T) {
	v := NewVGC()
	// rectangle (315,195)-(325,205), clipped to the 320x200 bitmap
	vgcWriteCmd(v, []byte{0x3B, 0x01, 0xC3, 0x00, 0x45, 0x01, 0xCD, 0x00, 3}, cmdRectFilled)
	if v.bitmap[199*vgcBitmapW+319] != 3 {
		t.Fatalf("clipped corner pixel not drawn")
	}
}

func TestVGCFloodFillStopsWhenSameColor(t *testing.T) {
	v := NewVGC()
	for i := range v.bitmap {
		v.bitmap[i] = 5
	}
	vgcWriteCmd(v, []byte{10, 0, 10, 0, 5}, cmdFloodFill) // target == fill, no-op
	for _, b := range v.bitmap {
		if b != 5 {
			t.Fatalf("flood fill mutated bitmap when target == fill")
		}
	}

	vgcWriteCmd(v, []byte{10, 0, 10, 0, 9}, cmdFloodFill)
	if v.bitmap[10] != 9 {
		t.Fatalf("flood fill did not fill uniform bitmap with new color")
	}
}

// VGC scroll wrap (§8 invariant 6): background sampling wraps at the
// bitmap's own dimensions, so a scroll offset near the right/bottom
// edge reads back around to the opposite edge instead of running past
// the array bounds.
func TestVGCScrollWrapSamplesCorrectCell(t *testing.T) {
	v := NewVGC()
	v.bitmap[0] = 7 // pixel (0,0)

	v.Write(vgcCoreBase+regScrollX, byte(vgcBitmapW-1))
	sx := (0 + int(v.core[regScrollX])) % vgcBitmapW
	if sx != vgcBitmapW-1 {
		t.Fatalf("scroll-wrapped x = %d, want %d", sx, vgcBitmapW-1)
	}
	if v.bitmap[sx] != 0 {
		t.Fatalf("wrapped sample should land on the untouched last column")
	}

	v.Write(vgcCoreBase+regScrollX, 0)
	sx = (0 + int(v.core[regScrollX])) % vgcBitmapW
	if v.bitmap[sx] != 7 {
		t.Fatalf("unscrolled sample should read pixel (0,0) = 7, got %d", v.bitmap[sx])
	}
}

// Copper-scroll (§8 concrete scenario): an active-list event at
// (y=100, reg=ScrollX, val=8) takes effect starting exactly at that
// scanline and holds through the rest of the frame.
func TestVGCCopperScrollTakesEffectAtScanline(t *testing.T) {
	v := NewVGC()
	pos := uint16(100 * vgcBitmapW)
	v.Write(vgcCoreBase+0x10+0, byte(pos))    // position lo
	v.Write(vgcCoreBase+0x10+1, byte(pos>>8)) // position hi
	v.Write(vgcCoreBase+0x10+2, regScrollX)   // target register
	v.Write(vgcCoreBase+0x10+3, 8)            // value
	v.Write(vgcCoreBase+0x10+0x0E, cmdCopperAddEvent)
	v.Write(vgcCoreBase+0x10+0x0E, cmdCopperEnable)

	if v.core[regScrollX] != 0 {
		t.Fatalf("scrollX should still read 0 before any frame has rendered, got %d", v.core[regScrollX])
	}

	// Only column 8 is lit, so logical x=0 shows it exactly where scrollX is 8.
	v.Write(vgcCoreBase+regMode, modeGraphicsOverText)
	for _, y := range []int{99, 100, 199} {
		v.bitmap[y*vgcBitmapW+8] = 4
	}

	frame := v.RenderFrame()
	red := func(y int) byte { return frame[(y*2*vgcFrameW)*4] } // logical (0,y), red channel
	if red(99) != 0 {
		t.Fatalf("scanline 99 at x=0 = %d, want 0 (scroll not yet applied)", red(99))
	}
	if red(100) != vgcPalette[4][0] || red(199) != vgcPalette[4][0] {
		t.Fatalf("scanlines 100/199 at x=0 = %d/%d, want column 8's color %d", red(100), red(199), vgcPalette[4][0])
	}
	if v.core[regScrollX] != 0 {
		t.Fatalf("copper writes apply to the frame's register snapshot; live scrollX = %d, want 0", v.core[regScrollX])
	}
}

// Sprite collisions (§8 invariant 7): two enabled, overlapping sprites
// set both their bits in the sprite-sprite collision register; reading
// it clears it.
func TestVGCSpriteCollision(t *testing.T) {
	v := NewVGC()

	for slot := 0; slot < 2; slot++ {
		for row := 0; row < vgcShapeRows; row++ {
			for col := 0; col < 16; col++ {
				v.shapeSetPixelLocked(slot, row, col, 1)
			}
		}
	}

	setSprite := func(idx int, x, y uint16, shape byte) {
		v.Write(vgcSpriteBase+uint16(idx*8)+0, byte(x))
		v.Write(vgcSpriteBase+uint16(idx*8)+1, byte(x>>8))
		v.Write(vgcSpriteBase+uint16(idx*8)+2, byte(y))
		v.Write(vgcSpriteBase+uint16(idx*8)+3, byte(y>>8))
		v.Write(vgcSpriteBase+uint16(idx*8)+4, shape)
		v.Write(vgcSpriteBase+uint16(idx*8)+5, 0x01) // enable
	}
	setSprite(0, 0, 0, 0)
	setSprite(1, 8, 0, 1) // overlaps sprite 0's right half

	_ = v.RenderFrame()

	ss := v.Read(vgcCoreBase + regCollisionSS)
	if ss&0x01 == 0 || ss&0x02 == 0 {
		t.Fatalf("sprite-sprite collision bits = %#b, want both sprite 0 and 1 set", ss)
	}

	ss2 := v.Read(vgcCoreBase + regCollisionSS)
	if ss2 != 0 {
		t.Fatalf("collision register should clear on read, got %#b", ss2)
	}
}

// Character output port ($A00E / regCharOut): printable bytes advance
// the cursor and wrap at column 80; CR returns to column 0 (§4.4).
func TestVGCCharOutWrapAndCR(t *testing.T) {
	v := NewVGC()
	for i := 0; i < vgcTextCols; i++ {
		v.Write(vgcCoreBase+regCharOut, 'X')
	}
	if v.core[regCursorX] != 0 || v.core[regCursorY] != 1 {
		t.Fatalf("cursor after 80 chars = (%d,%d), want (0,1)", v.core[regCursorX], v.core[regCursorY])
	}

	v.Write(vgcCoreBase+regCharOut, 'A')
	v.Write(vgcCoreBase+regCharOut, 0x0D) // CR
	if v.core[regCursorX] != 0 || v.core[regCursorY] != 2 {
		t.Fatalf("cursor after CR = (%d,%d), want (0,2)", v.core[regCursorX], v.core[regCursorY])
	}
}

func TestVGCMemIOPostIncrement(t *testing.T) {
	v := NewVGC()
	vgcWriteCmd(v, []byte{spaceCharRAM, 5, 0, 1, 0x41}, cmdMemWrite) // write 'A' at addr 5, postInc
	if v.charRAM[5] != 0x41 {
		t.Fatalf("memWrite did not land at address 5")
	}
	if v.cmdParams[1] != 6 {
		t.Fatalf("post-increment address lo = %d, want 6", v.cmdParams[1])
	}
}

func TestVGCSystemResetStopsAttachedDevices(t *testing.T) {
	vgc := NewVGC()
	nic := NewNIC()
	sid1, sid2 := NewSIDChip(), NewSIDChip()
	music := NewMusicEngine(sid1, sid2)
	vgc.AttachSystem(nic, sid1, sid2, music)

	if err := music.LoadTrack(0, "cde"); err != nil {
		t.Fatalf("LoadTrack failed: %v", err)
	}
	music.Play(false)
	vgcWriteCmd(vgc, nil, cmdSystemReset)

	if music.playing {
		t.Fatalf("system reset should stop the music engine")
	}
	if music.voices[0].active {
		t.Fatalf("system reset should deactivate voice state")
	}
}
