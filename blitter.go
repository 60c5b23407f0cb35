// blitter.go - Blitter: rectangular, strided block transfers with optional color-key

package main

import "sync"

// Blitter register layout, relative to blitterBase (§4.8).
const (
	blitRegCmd       = 0x00
	blitRegStatus    = 0x01
	blitRegError     = 0x02
	blitRegSrcSpace  = 0x03
	blitRegDstSpace  = 0x04
	blitRegSrcLo     = 0x05
	blitRegSrcHi     = 0x06
	blitRegDstLo     = 0x07
	blitRegDstHi     = 0x08
	blitRegWidth     = 0x09
	blitRegHeight    = 0x0A
	blitRegSrcStride = 0x0B
	blitRegDstStride = 0x0C
	blitRegColorKey  = 0x0D
	blitRegFlags     = 0x0E // bit0: color-key mode enabled
	blitRegProg      = 0x0F // rows transferred so far
)

const (
	blitCmdRun = 0x01
)

const (
	blitStatusIdle = 0
	blitStatusOK   = 1
	blitStatusErr  = 2
)

const (
	blitErrNone     = 0
	blitErrBadSpace = 1
)

const blitFlagColorKey = 0x01

// Blitter performs rectangular, strided copies between any two of the
// machine's 6 addressable spaces (§4.8), built on the same per-byte
// space accessors DMA uses but walked row-by-row so a source/dest
// stride wider than the transfer rectangle (e.g. copying a sprite out
// of a wider shape sheet) works without an intermediate buffer.
type Blitter struct {
	mu sync.Mutex

	bus *CompositeBus
	vgc *VGC
	xmc *XMC

	cmd                        byte
	status                     byte
	errCode                    byte
	srcSpace, dstSpace         byte
	srcAddr, dstAddr           uint16
	width, height              byte
	srcStride, dstStride       byte
	colorKey                   byte
	flags                      byte
	progress                   byte
}

func NewBlitter(bus *CompositeBus, vgc *VGC, xmc *XMC) *Blitter {
	return &Blitter{bus: bus, vgc: vgc, xmc: xmc}
}

func (b *Blitter) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	*b = Blitter{bus: b.bus, vgc: b.vgc, xmc: b.xmc}
}

func (b *Blitter) Read(addr uint16) byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch addr - blitterBase {
	case blitRegCmd:
		return b.cmd
	case blitRegStatus:
		return b.status
	case blitRegError:
		return b.errCode
	case blitRegSrcSpace:
		return b.srcSpace
	case blitRegDstSpace:
		return b.dstSpace
	case blitRegSrcLo:
		return byte(b.srcAddr)
	case blitRegSrcHi:
		return byte(b.srcAddr >> 8)
	case blitRegDstLo:
		return byte(b.dstAddr)
	case blitRegDstHi:
		return byte(b.dstAddr >> 8)
	case blitRegWidth:
		return b.width
	case blitRegHeight:
		return b.height
	case blitRegSrcStride:
		return b.srcStride
	case blitRegDstStride:
		return b.dstStride
	case blitRegColorKey:
		return b.colorKey
	case blitRegFlags:
		return b.flags
	case blitRegProg:
		return b.progress
	}
	return 0
}

func (b *Blitter) Write(addr uint16, value byte) {
	off := addr - blitterBase
	b.mu.Lock()
	switch off {
	case blitRegCmd:
		b.cmd = value
		b.mu.Unlock()
		b.dispatch(value)
		return
	case blitRegSrcSpace:
		b.srcSpace = value
	case blitRegDstSpace:
		b.dstSpace = value
	case blitRegSrcLo:
		b.srcAddr = b.srcAddr&0xFF00 | uint16(value)
	case blitRegSrcHi:
		b.srcAddr = b.srcAddr&0x00FF | uint16(value)<<8
	case blitRegDstLo:
		b.dstAddr = b.dstAddr&0xFF00 | uint16(value)
	case blitRegDstHi:
		b.dstAddr = b.dstAddr&0x00FF | uint16(value)<<8
	case blitRegWidth:
		b.width = value
	case blitRegHeight:
		b.height = value
	case blitRegSrcStride:
		b.srcStride = value
	case blitRegDstStride:
		b.dstStride = value
	case blitRegColorKey:
		b.colorKey = value
	case blitRegFlags:
		b.flags = value
	}
	b.mu.Unlock()
}

func (b *Blitter) dispatch(cmd byte) {
	if cmd != blitCmdRun {
		return
	}
	b.run()
}

func (b *Blitter) run() {
	b.mu.Lock()
	srcSpace, dstSpace := b.srcSpace, b.dstSpace
	srcAddr, dstAddr := b.srcAddr, b.dstAddr
	width, height := int(b.width), int(b.height)
	srcStride, dstStride := int(b.srcStride), int(b.dstStride)
	if srcStride == 0 {
		srcStride = width
	}
	if dstStride == 0 {
		dstStride = width
	}
	colorKeyOn := b.flags&blitFlagColorKey != 0
	colorKey := b.colorKey
	b.mu.Unlock()

	for row := 0; row < height; row++ {
		srcRow := uint32(srcAddr) + uint32(row*srcStride)
		dstRow := uint32(dstAddr) + uint32(row*dstStride)
		for col := 0; col < width; col++ {
			v, ok := b.readSpace(srcSpace, srcRow+uint32(col))
			if !ok {
				b.fail(blitErrBadSpace)
				return
			}
			if colorKeyOn && v == colorKey {
				continue
			}
			if !b.writeSpace(dstSpace, dstRow+uint32(col), v) {
				b.fail(blitErrBadSpace)
				return
			}
		}
		b.mu.Lock()
		b.progress = byte(row + 1)
		b.mu.Unlock()
	}
	b.ok()
}

func (b *Blitter) readSpace(space byte, addr uint32) (byte, bool) {
	switch space {
	case dmaSpaceCPURAM:
		return b.bus.RawRead(uint16(addr)), true
	case dmaSpaceCharRAM, dmaSpaceColorRAM, dmaSpaceGraphics, dmaSpaceSpriteShapes:
		return b.vgc.memReadSpace(blitSpaceToVGC(space), uint16(addr))
	case dmaSpaceXMC:
		if int(addr) >= xmcArenaBytes {
			return 0, false
		}
		b.xmc.mu.Lock()
		v := b.xmc.arena[addr]
		b.xmc.mu.Unlock()
		return v, true
	}
	return 0, false
}

func (b *Blitter) writeSpace(space byte, addr uint32, value byte) bool {
	switch space {
	case dmaSpaceCPURAM:
		b.bus.RawWrite(uint16(addr), value)
		return true
	case dmaSpaceCharRAM, dmaSpaceColorRAM, dmaSpaceGraphics, dmaSpaceSpriteShapes:
		return b.vgc.memWriteSpace(blitSpaceToVGC(space), uint16(addr), value)
	case dmaSpaceXMC:
		if int(addr) >= xmcArenaBytes {
			return false
		}
		b.xmc.mu.Lock()
		b.xmc.arena[addr] = value
		b.xmc.mu.Unlock()
		return true
	}
	return false
}

func blitSpaceToVGC(space byte) byte {
	switch space {
	case dmaSpaceCharRAM:
		return spaceCharRAM
	case dmaSpaceColorRAM:
		return spaceColorRAM
	case dmaSpaceGraphics:
		return spaceGraphics
	case dmaSpaceSpriteShapes:
		return spaceSpriteShapes
	}
	return 0xFF
}

func (b *Blitter) fail(code byte) {
	b.mu.Lock()
	b.status, b.errCode = blitStatusErr, code
	b.mu.Unlock()
}

func (b *Blitter) ok() {
	b.mu.Lock()
	b.status, b.errCode = blitStatusOK, blitErrNone
	b.mu.Unlock()
}
