// dma.go - DMA Controller: linear byte-range copies across 6 address spaces

package main

import "sync"

// dmaSpace selects which backing store a DMA address refers to (§4.8).
const (
	dmaSpaceCPURAM      = 0
	dmaSpaceCharRAM     = 1
	dmaSpaceColorRAM    = 2
	dmaSpaceGraphics    = 3
	dmaSpaceSpriteShapes = 4
	dmaSpaceXMC         = 5
)

// DMA register layout, relative to dmaBase (§4.8).
const (
	dmaRegCmd      = 0x00
	dmaRegStatus   = 0x01
	dmaRegError    = 0x02
	dmaRegSrcSpace = 0x03
	dmaRegDstSpace = 0x04
	dmaRegSrcLo    = 0x05
	dmaRegSrcHi    = 0x06
	dmaRegSrcBank  = 0x07 // high byte of a 24-bit XMC arena address
	dmaRegDstLo    = 0x08
	dmaRegDstHi    = 0x09
	dmaRegDstBank  = 0x0A
	dmaRegLenLo    = 0x0B
	dmaRegLenHi    = 0x0C
	dmaRegFillByte = 0x0D
	dmaRegProgLo   = 0x0E // bytes transferred so far, updated as the copy runs
	dmaRegProgHi   = 0x0F
)

// Commands.
const (
	dmaCmdCopy = 0x01
	dmaCmdFill = 0x02
)

const (
	dmaStatusIdle = 0
	dmaStatusOK   = 1
	dmaStatusErr  = 2
)

const (
	dmaErrNone      = 0
	dmaErrBadSpace  = 1
	dmaErrOutOfRange = 2
)

// DMA moves bytes between any two of the machine's 6 addressable
// spaces without CPU involvement, one register-triggered transfer at
// a time (§4.8). A transfer runs synchronously on the triggering
// write; dmaRegProgLo/Hi always reads back the full length once it
// completes, since the VM has no separate DMA thread.
type DMA struct {
	mu sync.Mutex

	bus *CompositeBus
	vgc *VGC
	xmc *XMC

	cmd              byte
	status           byte
	errCode          byte
	srcSpace, dstSpace byte
	srcAddr, dstAddr uint16
	srcBank, dstBank byte
	lenReg           uint16
	fillByte         byte
	progress         uint16
}

func NewDMA(bus *CompositeBus, vgc *VGC, xmc *XMC) *DMA {
	return &DMA{bus: bus, vgc: vgc, xmc: xmc}
}

func (d *DMA) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	*d = DMA{bus: d.bus, vgc: d.vgc, xmc: d.xmc}
}

func (d *DMA) Read(addr uint16) byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	switch addr - dmaBase {
	case dmaRegCmd:
		return d.cmd
	case dmaRegStatus:
		return d.status
	case dmaRegError:
		return d.errCode
	case dmaRegSrcSpace:
		return d.srcSpace
	case dmaRegDstSpace:
		return d.dstSpace
	case dmaRegSrcLo:
		return byte(d.srcAddr)
	case dmaRegSrcHi:
		return byte(d.srcAddr >> 8)
	case dmaRegSrcBank:
		return d.srcBank
	case dmaRegDstLo:
		return byte(d.dstAddr)
	case dmaRegDstHi:
		return byte(d.dstAddr >> 8)
	case dmaRegDstBank:
		return d.dstBank
	case dmaRegLenLo:
		return byte(d.lenReg)
	case dmaRegLenHi:
		return byte(d.lenReg >> 8)
	case dmaRegFillByte:
		return d.fillByte
	case dmaRegProgLo:
		return byte(d.progress)
	case dmaRegProgHi:
		return byte(d.progress >> 8)
	}
	return 0
}

func (d *DMA) Write(addr uint16, value byte) {
	off := addr - dmaBase
	d.mu.Lock()
	switch off {
	case dmaRegCmd:
		d.cmd = value
		d.mu.Unlock()
		d.dispatch(value)
		return
	case dmaRegSrcSpace:
		d.srcSpace = value
	case dmaRegDstSpace:
		d.dstSpace = value
	case dmaRegSrcLo:
		d.srcAddr = d.srcAddr&0xFF00 | uint16(value)
	case dmaRegSrcHi:
		d.srcAddr = d.srcAddr&0x00FF | uint16(value)<<8
	case dmaRegSrcBank:
		d.srcBank = value
	case dmaRegDstLo:
		d.dstAddr = d.dstAddr&0xFF00 | uint16(value)
	case dmaRegDstHi:
		d.dstAddr = d.dstAddr&0x00FF | uint16(value)<<8
	case dmaRegDstBank:
		d.dstBank = value
	case dmaRegLenLo:
		d.lenReg = d.lenReg&0xFF00 | uint16(value)
	case dmaRegLenHi:
		d.lenReg = d.lenReg&0x00FF | uint16(value)<<8
	case dmaRegFillByte:
		d.fillByte = value
	}
	d.mu.Unlock()
}

func (d *DMA) dispatch(cmd byte) {
	switch cmd {
	case dmaCmdCopy:
		d.doCopy()
	case dmaCmdFill:
		d.doFill()
	}
}

func (d *DMA) doCopy() {
	d.mu.Lock()
	srcSpace, dstSpace := d.srcSpace, d.dstSpace
	srcAddr, dstAddr := uint32(d.srcBank)<<16|uint32(d.srcAddr), uint32(d.dstBank)<<16|uint32(d.dstAddr)
	length := int(d.lenReg)
	d.mu.Unlock()

	for i := 0; i < length; i++ {
		b, ok := d.readSpace(srcSpace, srcAddr+uint32(i))
		if !ok {
			d.fail(dmaErrBadSpace)
			return
		}
		if !d.writeSpace(dstSpace, dstAddr+uint32(i), b) {
			d.fail(dmaErrBadSpace)
			return
		}
		d.mu.Lock()
		d.progress = uint16(i + 1)
		d.mu.Unlock()
	}
	d.ok()
}

func (d *DMA) doFill() {
	d.mu.Lock()
	dstSpace := d.dstSpace
	dstAddr := uint32(d.dstBank)<<16 | uint32(d.dstAddr)
	length := int(d.lenReg)
	fill := d.fillByte
	d.mu.Unlock()

	for i := 0; i < length; i++ {
		if !d.writeSpace(dstSpace, dstAddr+uint32(i), fill) {
			d.fail(dmaErrBadSpace)
			return
		}
		d.mu.Lock()
		d.progress = uint16(i + 1)
		d.mu.Unlock()
	}
	d.ok()
}

func (d *DMA) readSpace(space byte, addr uint32) (byte, bool) {
	switch space {
	case dmaSpaceCPURAM:
		return d.bus.RawRead(uint16(addr)), true
	case dmaSpaceCharRAM:
		return d.vgc.memReadSpace(spaceCharRAM, uint16(addr))
	case dmaSpaceColorRAM:
		return d.vgc.memReadSpace(spaceColorRAM, uint16(addr))
	case dmaSpaceGraphics:
		return d.vgc.memReadSpace(spaceGraphics, uint16(addr))
	case dmaSpaceSpriteShapes:
		return d.vgc.memReadSpace(spaceSpriteShapes, uint16(addr))
	case dmaSpaceXMC:
		if int(addr) >= xmcArenaBytes {
			return 0, false
		}
		return d.xmc.arena[addr], true
	}
	return 0, false
}

func (d *DMA) writeSpace(space byte, addr uint32, value byte) bool {
	switch space {
	case dmaSpaceCPURAM:
		d.bus.RawWrite(uint16(addr), value)
		return true
	case dmaSpaceCharRAM:
		return d.vgc.memWriteSpace(spaceCharRAM, uint16(addr), value)
	case dmaSpaceColorRAM:
		return d.vgc.memWriteSpace(spaceColorRAM, uint16(addr), value)
	case dmaSpaceGraphics:
		return d.vgc.memWriteSpace(spaceGraphics, uint16(addr), value)
	case dmaSpaceSpriteShapes:
		return d.vgc.memWriteSpace(spaceSpriteShapes, uint16(addr), value)
	case dmaSpaceXMC:
		if int(addr) >= xmcArenaBytes {
			return false
		}
		d.xmc.mu.Lock()
		d.xmc.arena[addr] = value
		d.xmc.mu.Unlock()
		return true
	}
	return false
}

func (d *DMA) fail(code byte) {
	d.mu.Lock()
	d.status, d.errCode = dmaStatusErr, code
	d.mu.Unlock()
}

func (d *DMA) ok() {
	d.mu.Lock()
	d.status, d.errCode = dmaStatusOK, dmaErrNone
	d.mu.Unlock()
}
