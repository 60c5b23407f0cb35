// bus.go - composite bus routing CPU reads/writes to RAM, ROM and coprocessors

package main

import "sync"

// Memory map constants (§6).
const (
	romBase uint16 = 0xC000

	vgcCoreBase    uint16 = 0xA000
	vgcCoreEnd     uint16 = 0xA01F
	vgcSpriteBase  uint16 = 0xA040
	vgcSpriteEnd   uint16 = 0xA0BF
	nicBase        uint16 = 0xA100
	nicEnd         uint16 = 0xA13F
	charRAMBase    uint16 = 0xAA00
	charRAMEnd     uint16 = 0xB1CF
	colorRAMBase   uint16 = 0xB1D0
	colorRAMEnd    uint16 = 0xB99F
	fioBase        uint16 = 0xB9A0
	fioEnd         uint16 = 0xB9EF
	xmcRegBase     uint16 = 0xBA00
	xmcRegEnd      uint16 = 0xBA3F
	timerBase      uint16 = 0xBA40
	timerEnd       uint16 = 0xBA4F
	musicStatBase  uint16 = 0xBA50
	musicStatEnd   uint16 = 0xBA56
	dmaBase        uint16 = 0xBA60
	dmaEnd         uint16 = 0xBA7F
	blitterBase    uint16 = 0xBA80
	blitterEnd     uint16 = 0xBA9F
	xmcWindowBase  uint16 = 0xBC00
	xmcWindowEnd   uint16 = 0xBFFF
	sid1Base       uint16 = 0xD400
	sid1End        uint16 = 0xD41C
	sid2Base       uint16 = 0xD420
	sid2End        uint16 = 0xD43C
	sidMirrorBase  uint16 = 0xD500
	sidMirrorEnd   uint16 = 0xD51C
)

// region is one entry of the bus's routing table. Ownership is tested
// by address range in declaration order, matching §4.3 ("the first
// device whose ownership predicate matches handles the access").
type region struct {
	name  string
	start uint16
	end   uint16
	read  func(addr uint16) byte
	write func(addr uint16, value byte)
}

func (r region) owns(addr uint16) bool { return addr >= r.start && addr <= r.end }

// CompositeBus is the 64KB address space: a flat RAM array plus an
// ordered list of device regions. Unclaimed addresses fall through to
// RAM; writes at or above the ROM base are dropped unless a
// coprocessor window claims them first.
//
// regions is populated once by registerRegions() before any CPU,
// renderer, network or audio thread starts (§5), so it is read-only for
// the lifetime of the VM and needs no lock of its own. mu guards only
// the flat RAM array. This matters because a region's read/write
// callback (DMA, Blitter, FIO) may itself call back into RawRead/
// RawWrite/ReadRange/WriteRange to move bytes through cpu-ram space —
// if Read/Write held mu across the callback, that reentrant call would
// deadlock against the same goroutine's own lock.
type CompositeBus struct {
	mu      sync.Mutex
	ram     [65536]byte
	romLock bool // true once ROM has been installed; blocks further writes to it
	regions []region
}

func NewCompositeBus() *CompositeBus {
	return &CompositeBus{}
}

// AddRegion appends a device region to the routing table. Order of
// registration is the order regions are tried. Must only be called
// during VM construction, before Run starts any worker thread.
func (b *CompositeBus) AddRegion(name string, start, end uint16, read func(uint16) byte, write func(uint16, byte)) {
	b.regions = append(b.regions, region{name: name, start: start, end: end, read: read, write: write})
}

// LoadROM copies image into [addr, addr+len(image)) and turns on ROM
// write protection: from then on every flat-RAM write at or above
// romBase is dropped, whatever range the image covered (§3: "writes to
// the ROM region are silently dropped"). The BASIC ROM is loaded this
// way as an opaque blob (§1).
func (b *CompositeBus) LoadROM(addr uint16, image []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	copy(b.ram[int(addr):], image)
	b.romLock = true
}

func (b *CompositeBus) Read(addr uint16) byte {
	for _, r := range b.regions {
		if r.owns(addr) && r.read != nil {
			return r.read(addr)
		}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ram[addr]
}

func (b *CompositeBus) Write(addr uint16, value byte) {
	for _, r := range b.regions {
		if r.owns(addr) {
			if r.write != nil {
				r.write(addr, value)
			}
			return
		}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.romLock && addr >= romBase {
		return
	}
	b.ram[addr] = value
}

// ClearRAM zeroes the flat RAM array below the ROM base, leaving any
// loaded ROM image untouched. Used by a cold start (power-cycle), as
// opposed to Reset's warm restart which leaves RAM contents intact.
func (b *CompositeBus) ClearRAM() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := uint16(0); i < romBase; i++ {
		b.ram[i] = 0
	}
}

// RawRead/RawWrite bypass region routing entirely — used by DMA and
// the Blitter when a transfer's cpu-ram space is a genuinely flat
// array rather than the register-shadowed view the CPU sees.
func (b *CompositeBus) RawRead(addr uint16) byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ram[addr]
}

func (b *CompositeBus) RawWrite(addr uint16, value byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ram[addr] = value
}

// ReadRange/WriteRange give FIO and the CPU-RAM DMA/Blitter case a
// bulk path without one bus-mutex acquisition per byte.
func (b *CompositeBus) ReadRange(addr uint16, length int) []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]byte, length)
	for i := 0; i < length; i++ {
		out[i] = b.ram[uint16(int(addr)+i)]
	}
	return out
}

func (b *CompositeBus) WriteRange(addr uint16, data []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, v := range data {
		b.ram[uint16(int(addr)+i)] = v
	}
}
