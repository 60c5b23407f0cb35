// vgc_copper.go - copper event lists: raster-programmed register writer

package main

import "sort"

// copperAddEventLocked adds an event to the target list. An existing
// event at the same position targeting the same register is replaced
// (removed then appended), per §4.4's merge semantics (Open Question
// decision, see DESIGN.md). The list is kept sorted by position (stable, so ties preserve
// insertion order) since the scanline/pixel cursors in vgc_render.go
// only ever walk forward.
func (v *VGC) copperAddEventLocked(position uint16, reg, value byte) {
	list := v.copperLists[v.copperTargetList]
	out := list[:0]
	for _, ev := range list {
		if ev.position == position && ev.reg == reg {
			continue
		}
		out = append(out, ev)
	}
	out = append(out, copperEvent{position: position, reg: reg, value: value})
	sort.SliceStable(out, func(i, j int) bool { return out[i].position < out[j].position })
	v.copperLists[v.copperTargetList] = out
}

// copperSwapAtVblankLocked performs the pending active-list swap; it
// must be called by the renderer only at a vblank boundary (§5 (ii)).
func (v *VGC) copperSwapAtVblankLocked() {
	if v.copperPendingSwap {
		v.copperActiveList = v.copperPendingList
		v.copperPendingSwap = false
	}
}

// copperCursor walks the active event list with two independent
// indices — one for sprite-register events consumed ahead of a
// scanline by fireUpTo, one for core-register events consumed exactly
// on their target pixel by fireExact. Two indices are required because
// fireUpTo must look ahead to the end of the scanline while fireExact
// still needs to visit every core event in between; a single shared
// index would let fireUpTo run past (and silently drop) core events
// before fireExact got to apply them.
type copperCursor struct {
	list      []copperEvent
	spriteIdx int
	coreIdx   int
}

func (v *VGC) newCopperCursorLocked() copperCursor {
	if !v.copperEnabled {
		return copperCursor{}
	}
	return copperCursor{list: v.copperLists[v.copperActiveList]}
}

// fireUpTo applies sprite-register events (reg >= 16) with position
// <= upTo, called once per scanline before sprite rasterization.
func (c *copperCursor) fireUpTo(upTo uint16, apply func(reg, value byte)) {
	for c.spriteIdx < len(c.list) && c.list[c.spriteIdx].position <= upTo {
		ev := c.list[c.spriteIdx]
		if ev.reg >= 16 {
			apply(ev.reg, ev.value)
		}
		c.spriteIdx++
	}
}

// fireExact applies core-register events (reg < 16) at exactly pos,
// called once per pixel during composition.
func (c *copperCursor) fireExact(pos uint16, apply func(reg, value byte)) {
	for c.coreIdx < len(c.list) && c.list[c.coreIdx].position == pos {
		ev := c.list[c.coreIdx]
		if ev.reg < 16 {
			apply(ev.reg, ev.value)
		}
		c.coreIdx++
	}
}
