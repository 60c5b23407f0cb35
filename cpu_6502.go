// cpu_6502.go - cycle-accurate MOS 6502 / 65C02 core
//
// Implements the two-phase fetch/execute contract: ClocksForNext decodes
// the instruction at PC and caches its resolved operand, returning the
// cycle count the real part would burn; ExecuteNext consumes that cache
// (or decodes fresh if nothing is pending), delivers any pending
// interrupt in place of the instruction, and otherwise runs it.

package main

import "fmt"

type cpuVariant uint8

const (
	variantNMOS cpuVariant = iota
	variantCMOS
)

// Status register bits.
const (
	flagCarry     byte = 0x01
	flagZero      byte = 0x02
	flagInterrupt byte = 0x04
	flagDecimal   byte = 0x08
	flagBreak     byte = 0x10
	flagUnused    byte = 0x20
	flagOverflow  byte = 0x40
	flagNegative  byte = 0x80
)

const (
	stackBase   uint16 = 0x0100
	resetVector uint16 = 0xFFFC
	irqVector   uint16 = 0xFFFE
	nmiVector   uint16 = 0xFFFA
)

// Bus is the minimal interface the CPU core needs from its bus. The
// composite bus (bus.go) implements it; tests may supply a bare-metal
// fake backed by a flat array.
type Bus interface {
	Read(addr uint16) byte
	Write(addr uint16, value byte)
}

// prefetch is the operand cache ClocksForNext fills in and ExecuteNext
// consumes. It is intentionally flat (no pointers into the table) so a
// host can snapshot CPU state mid-instruction for debugging.
type prefetch struct {
	valid       bool
	opcode      byte
	info        opInfo
	address     uint16 // resolved effective address, when the mode has one
	immediate   byte   // operand byte for immediate mode
	pageCrossed bool
	branchTaken bool
	branchTo    uint16
	cycles      int
}

// CPU6502 is the processor core. It carries no goroutines of its own;
// the real-time scheduler and the VM's CPU thread drive it.
type CPU6502 struct {
	A, X, Y byte
	PC      uint16
	SP      byte
	Status  byte

	Variant cpuVariant
	Bus     Bus

	pendingIRQ bool
	pendingNMI bool

	pf prefetch

	Cycles uint64
}

// NewCPU6502 constructs a CPU of the given variant wired to bus.
// Reset must be called before execution begins.
func NewCPU6502(bus Bus, variant cpuVariant) *CPU6502 {
	return &CPU6502{Bus: bus, Variant: variant}
}

// Reset loads PC from the reset vector (or an explicit override when
// pc >= 0), sets the interrupt-disable flag and clears both pending
// interrupt latches. Pass pc = -1 to use $FFFC as the real hardware does.
func (c *CPU6502) Reset(pc int) {
	if pc >= 0 {
		c.PC = uint16(pc)
	} else {
		c.PC = c.read16(resetVector)
	}
	c.SP = 0xFD
	c.Status = flagUnused | flagInterrupt
	c.pendingIRQ = false
	c.pendingNMI = false
	c.pf = prefetch{}
}

func (c *CPU6502) setFlag(flag byte, on bool) {
	if on {
		c.Status |= flag
	} else {
		c.Status &^= flag
	}
}

func (c *CPU6502) getFlag(flag byte) bool {
	return c.Status&flag != 0
}

func (c *CPU6502) updateNZ(v byte) {
	c.setFlag(flagZero, v == 0)
	c.setFlag(flagNegative, v&0x80 != 0)
}

func (c *CPU6502) read16(addr uint16) uint16 {
	lo := c.Bus.Read(addr)
	hi := c.Bus.Read(addr + 1)
	return uint16(hi)<<8 | uint16(lo)
}

// push/pop always stay inside page 1; SP wraps silently, matching
// hardware's empty-stack semantics (no overflow detection).
func (c *CPU6502) push(v byte) {
	c.Bus.Write(stackBase+uint16(c.SP), v)
	c.SP--
}

func (c *CPU6502) pop() byte {
	c.SP++
	return c.Bus.Read(stackBase + uint16(c.SP))
}

func (c *CPU6502) push16(v uint16) {
	c.push(byte(v >> 8))
	c.push(byte(v))
}

func (c *CPU6502) pop16() uint16 {
	lo := c.pop()
	hi := c.pop()
	return uint16(hi)<<8 | uint16(lo)
}

// SetIRQLine and SetNMILine let coprocessors and the bus raise the
// CPU's pending-interrupt latches. NMI is edge-triggered in real
// hardware; callers are expected to pulse it rather than hold it.
func (c *CPU6502) SetIRQLine(asserted bool) { c.pendingIRQ = asserted }
func (c *CPU6502) SetNMILine()              { c.pendingNMI = true }

// ClocksForNext decodes the instruction at PC (or reuses an already
// cached decode) and returns the cycle count including page-cross and
// branch-taken penalties for this variant.
func (c *CPU6502) ClocksForNext() int {
	if !c.pf.valid {
		c.decode()
	}
	return c.pf.cycles
}

// ExecuteNext consumes the cached decode (decoding fresh if none is
// pending), delivers a pending interrupt if one is waiting, and
// otherwise executes the instruction. The cache is cleared either way.
func (c *CPU6502) ExecuteNext() {
	if !c.pf.valid {
		c.decode()
	}
	defer func() { c.pf.valid = false }()

	if c.pendingNMI {
		c.pendingNMI = false
		c.deliverInterrupt(nmiVector, false)
		return
	}
	if c.pendingIRQ && !c.getFlag(flagInterrupt) {
		c.deliverInterrupt(irqVector, false)
		return
	}

	c.PC += uint16(c.pf.info.length)
	c.Cycles += uint64(c.pf.cycles)
	c.execute(c.pf)
}

// deliverInterrupt pushes PC-high, PC-low, then status (B clear, bit 5
// set), sets I, and loads PC from vector. BRK (isBRK=true) is handled
// separately in execute() since it also pre-increments PC by 2 and
// pushes status with B set.
func (c *CPU6502) deliverInterrupt(vector uint16, isBRK bool) {
	c.push16(c.PC)
	sr := (c.Status | flagUnused) &^ flagBreak
	if isBRK {
		sr |= flagBreak
	}
	c.push(sr)
	c.setFlag(flagInterrupt, true)
	if c.Variant == variantCMOS {
		c.setFlag(flagDecimal, false)
	}
	c.PC = c.read16(vector)
	c.Cycles += 6
}

func (c *CPU6502) currentOpInfo(opcode byte) opInfo {
	table := opcodeTableFor(c.Variant)
	return table[opcode]
}

// String renders a one-line register dump, used by the debugger and
// by fatal-error diagnostics (programming errors are never masked,
// §7).
func (c *CPU6502) String() string {
	return fmt.Sprintf("PC=%04X A=%02X X=%02X Y=%02X SP=%02X SR=%02X",
		c.PC, c.A, c.X, c.Y, c.SP, c.Status)
}

// opcodeTableFor memoizes the two static tables so decode doesn't
// rebuild a 256-entry array on every instruction.
var nmosTable = buildOpcodeTable(variantNMOS)
var cmosTable = buildOpcodeTable(variantCMOS)

func opcodeTableFor(v cpuVariant) [256]opInfo {
	if v == variantCMOS {
		return cmosTable
	}
	return nmosTable
}
