// cpu_6502_decode.go - operand resolution for the prefetch cache

package main

// decode resolves the instruction at PC into c.pf without mutating PC,
// registers or flags (branch-taken detection reads flags but doesn't
// change them). This is the half of the fetch/execute split that
// ClocksForNext charges for.
func (c *CPU6502) decode() {
	opcode := c.Bus.Read(c.PC)
	info := c.currentOpInfo(opcode)

	pf := prefetch{valid: true, opcode: opcode, info: info, cycles: int(info.cycles)}

	switch info.mode {
	case modeImmediate:
		pf.immediate = c.Bus.Read(c.PC + 1)
	case modeZeroPage:
		pf.address = uint16(c.Bus.Read(c.PC + 1))
	case modeZeroPageX:
		pf.address = uint16(byte(c.Bus.Read(c.PC+1) + c.X))
	case modeZeroPageY:
		pf.address = uint16(byte(c.Bus.Read(c.PC+1) + c.Y))
	case modeAbsolute:
		pf.address = c.read16(c.PC + 1)
	case modeAbsoluteX:
		base := c.read16(c.PC + 1)
		addr := base + uint16(c.X)
		pf.address = addr
		pf.pageCrossed = (base & 0xFF00) != (addr & 0xFF00)
		if pf.pageCrossed && info.pageCross {
			pf.cycles++
		}
	case modeAbsoluteY:
		base := c.read16(c.PC + 1)
		addr := base + uint16(c.Y)
		pf.address = addr
		pf.pageCrossed = (base & 0xFF00) != (addr & 0xFF00)
		if pf.pageCrossed && info.pageCross {
			pf.cycles++
		}
	case modeIndirect:
		ptr := c.read16(c.PC + 1)
		pf.address = c.readIndirectPointer(ptr)
	case modeIndirectAbsX:
		ptr := c.read16(c.PC+1) + uint16(c.X)
		pf.address = c.read16(ptr)
	case modeIndirectX:
		zp := c.Bus.Read(c.PC+1) + c.X
		lo := c.Bus.Read(uint16(zp))
		hi := c.Bus.Read(uint16(byte(zp + 1)))
		pf.address = uint16(hi)<<8 | uint16(lo)
	case modeIndirectY:
		zp := c.Bus.Read(c.PC + 1)
		lo := c.Bus.Read(uint16(zp))
		hi := c.Bus.Read(uint16(zp + 1))
		base := uint16(hi)<<8 | uint16(lo)
		addr := base + uint16(c.Y)
		pf.address = addr
		pf.pageCrossed = (base & 0xFF00) != (addr & 0xFF00)
		if pf.pageCrossed && info.pageCross {
			pf.cycles++
		}
	case modeZeroPageIndirect:
		zp := c.Bus.Read(c.PC + 1)
		lo := c.Bus.Read(uint16(zp))
		hi := c.Bus.Read(uint16(zp + 1))
		pf.address = uint16(hi)<<8 | uint16(lo)
	case modeRelative:
		offset := int8(c.Bus.Read(c.PC + 1))
		nextPC := c.PC + uint16(info.length)
		target := uint16(int32(nextPC) + int32(offset))
		pf.branchTo = target
		pf.branchTaken = c.branchCondition(info.mnemonic)
		if pf.branchTaken {
			pf.cycles++
			if (nextPC & 0xFF00) != (target & 0xFF00) {
				pf.cycles++
			}
		}
	case modeBranchExt:
		zp := c.Bus.Read(c.PC + 1)
		pf.address = uint16(zp)
		offset := int8(c.Bus.Read(c.PC + 2))
		nextPC := c.PC + uint16(info.length)
		pf.branchTo = uint16(int32(nextPC) + int32(offset))
	case modeAccumulator, modeImplied:
		// no operand to resolve
	}

	// ADC/SBC absolute,X in decimal mode costs one extra cycle on
	// CMOS, per §4.1. This is a runtime condition, not a static
	// table fact, since it depends on the live D flag.
	if c.Variant == variantCMOS && info.mode == modeAbsoluteX &&
		(info.mnemonic == "ADC" || info.mnemonic == "SBC") && c.getFlag(flagDecimal) {
		pf.cycles++
	}

	c.pf = pf
}

// readIndirectPointer implements JMP (indirect), including the NMOS
// page-wrap bug (the high byte is fetched from the start of the same
// page rather than the next page) and its CMOS fix (the extra cycle the
// fix costs is charged by the CMOS decode-table entry for 0x6C in
// cmosOpcodeDeltas).
func (c *CPU6502) readIndirectPointer(ptr uint16) uint16 {
	lo := c.Bus.Read(ptr)
	var hiAddr uint16
	if c.Variant == variantNMOS && byte(ptr) == 0xFF {
		hiAddr = ptr & 0xFF00
	} else {
		hiAddr = ptr + 1
	}
	hi := c.Bus.Read(hiAddr)
	return uint16(hi)<<8 | uint16(lo)
}

func (c *CPU6502) branchCondition(mnemonic string) bool {
	switch mnemonic {
	case "BPL":
		return !c.getFlag(flagNegative)
	case "BMI":
		return c.getFlag(flagNegative)
	case "BVC":
		return !c.getFlag(flagOverflow)
	case "BVS":
		return c.getFlag(flagOverflow)
	case "BCC":
		return !c.getFlag(flagCarry)
	case "BCS":
		return c.getFlag(flagCarry)
	case "BNE":
		return !c.getFlag(flagZero)
	case "BEQ":
		return c.getFlag(flagZero)
	case "BRA":
		return true
	}
	return false
}

// operand reads the byte an instruction operates on, per its mode.
func (c *CPU6502) operand(pf prefetch) byte {
	switch pf.info.mode {
	case modeAccumulator:
		return c.A
	case modeImmediate:
		return pf.immediate
	case modeImplied:
		return 0
	default:
		return c.Bus.Read(pf.address)
	}
}

// storeOperand writes back an RMW or store result to wherever the
// instruction's mode points.
func (c *CPU6502) storeOperand(pf prefetch, v byte) {
	if pf.info.mode == modeAccumulator {
		c.A = v
		return
	}
	c.Bus.Write(pf.address, v)
}
