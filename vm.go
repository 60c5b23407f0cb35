// vm.go - machine wiring: CPU, bus and coprocessors assembled into one
// runnable system, plus the thread model driving it (§5).

package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

const defaultBaseDir = "."

// breakpointGate is the single-writer, single-waiter latch the monitor
// and IPC debugger use to pause the CPU thread and single-step it
// without racing the free-running execution loop (§9). Only the CPU
// thread's own goroutine ever touches CPU state; Pause/Resume/Step
// just signal it across channels.
type breakpointGate struct {
	mu      sync.Mutex
	paused  bool
	resume  chan struct{}
	step    chan struct{}
	stepped chan struct{}
}

func newBreakpointGate() *breakpointGate {
	return &breakpointGate{
		resume:  make(chan struct{}),
		step:    make(chan struct{}),
		stepped: make(chan struct{}),
	}
}

func (g *breakpointGate) Pause() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.paused {
		return
	}
	g.paused = true
	g.resume = make(chan struct{})
}

func (g *breakpointGate) Resume() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.paused {
		return
	}
	g.paused = false
	close(g.resume)
}

func (g *breakpointGate) Paused() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.paused
}

// awaitRunnable is called only from the CPU thread. When not paused it
// returns true immediately. When paused it blocks until Resume (true),
// ctx cancellation (false), or a Step request, which it services by
// running exec on the caller's own goroutine (the CPU thread) before
// reporting back and remaining paused.
func (g *breakpointGate) awaitRunnable(ctx context.Context, exec func()) bool {
	g.mu.Lock()
	paused := g.paused
	resume := g.resume
	g.mu.Unlock()
	if !paused {
		return true
	}
	select {
	case <-ctx.Done():
		return false
	case <-resume:
		return true
	case <-g.step:
		exec()
		g.stepped <- struct{}{}
		return false
	}
}

// Step pauses the gate (if not already) and blocks until the CPU
// thread has executed exactly one instruction. Callers must not call
// Step concurrently from more than one goroutine.
func (g *breakpointGate) Step() {
	g.Pause()
	g.step <- struct{}{}
	<-g.stepped
}

// VM owns every component and the bus they're registered on. A fresh
// VM is inert until Run is called; Reset fans out to every component
// the same way component_reset.go's per-device Reset methods do,
// just gathered under one system-wide call.
type VM struct {
	cpu       *CPU6502
	bus       *CompositeBus
	scheduler *Scheduler

	vgc     *VGC
	xmc     *XMC
	nic     *NIC
	fio     *FIO
	dma     *DMA
	blitter *Blitter
	sid1    *SIDChip
	sid2    *SIDChip
	music   *MusicEngine

	gate *breakpointGate

	cpuHz   int64
	turbo   bool
	variant cpuVariant
}

// NewVM constructs and wires every coprocessor onto the bus. baseDir
// confines FIO's host filesystem access.
func NewVM(cpuHz int64, turbo bool, variant cpuVariant, baseDir string) *VM {
	if baseDir == "" {
		baseDir = defaultBaseDir
	}

	bus := NewCompositeBus()
	vm := &VM{
		bus:       bus,
		scheduler: NewScheduler(cpuHz),
		vgc:       NewVGC(),
		nic:       NewNIC(),
		sid1:      NewSIDChip(),
		sid2:      NewSIDChip(),
		cpuHz:     cpuHz,
		turbo:     turbo,
		variant:   variant,
		gate:      newBreakpointGate(),
	}
	vm.xmc = NewXMC()
	vm.fio = NewFIO(bus, vm.vgc, baseDir)
	vm.dma = NewDMA(bus, vm.vgc, vm.xmc)
	vm.blitter = NewBlitter(bus, vm.vgc, vm.xmc)
	vm.music = NewMusicEngine(vm.sid1, vm.sid2)
	vm.vgc.AttachSystem(vm.nic, vm.sid1, vm.sid2, vm.music)
	vm.cpu = NewCPU6502(bus, variant)

	vm.registerRegions()
	vm.scheduler.SetTurbo(turbo)
	return vm
}

func (vm *VM) registerRegions() {
	b := vm.bus
	b.AddRegion("vgc-core", vgcCoreBase, vgcCoreEnd, vm.vgc.Read, vm.vgc.Write)
	b.AddRegion("vgc-sprites", vgcSpriteBase, vgcSpriteEnd, vm.vgc.Read, vm.vgc.Write)
	b.AddRegion("nic", nicBase, nicEnd, vm.nic.Read, vm.nic.Write)
	b.AddRegion("char-ram", charRAMBase, charRAMEnd, vm.vgc.Read, vm.vgc.Write)
	b.AddRegion("color-ram", colorRAMBase, colorRAMEnd, vm.vgc.Read, vm.vgc.Write)
	b.AddRegion("fio", fioBase, fioEnd, vm.fio.Read, vm.fio.Write)
	b.AddRegion("xmc-regs", xmcRegBase, xmcRegEnd, vm.xmc.Read, vm.xmc.Write)
	b.AddRegion("dma", dmaBase, dmaEnd, vm.dma.Read, vm.dma.Write)
	b.AddRegion("blitter", blitterBase, blitterEnd, vm.blitter.Read, vm.blitter.Write)
	b.AddRegion("xmc-windows", xmcWindowBase, xmcWindowEnd, vm.xmcWindowRead, vm.xmcWindowWrite)
	b.AddRegion("sid1", sid1Base, sid1End,
		func(addr uint16) byte { return vm.sid1.Read(addr - sid1Base) },
		func(addr uint16, value byte) { vm.sid1.Write(addr-sid1Base, value) })
	b.AddRegion("sid2", sid2Base, sid2End,
		func(addr uint16) byte { return vm.sid2.Read(addr - sid2Base) },
		func(addr uint16, value byte) { vm.sid2.Write(addr-sid2Base, value) })
	b.AddRegion("sid-mirror", sidMirrorBase, sidMirrorEnd,
		func(addr uint16) byte { return vm.sid2.Read(addr - sidMirrorBase) },
		func(addr uint16, value byte) { vm.sid2.Write(addr-sidMirrorBase, value) })
}

// xmcWindowRead/xmcWindowWrite route the 4 256-byte CPU-bus windows
// (0xBC00-0xBFFF) to XMC.ReadWindow/WriteWindow by window index.
func (vm *VM) xmcWindowRead(addr uint16) byte {
	off := addr - xmcWindowBase
	return vm.xmc.ReadWindow(int(off/xmcWindowSize), byte(off%xmcWindowSize))
}

func (vm *VM) xmcWindowWrite(addr uint16, value byte) {
	off := addr - xmcWindowBase
	vm.xmc.WriteWindow(int(off/xmcWindowSize), byte(off%xmcWindowSize), value)
}

// Reset fans out to the CPU and every coprocessor.
func (vm *VM) Reset() {
	vm.cpu.Reset(-1)
	vm.scheduler.Reset()
	vm.vgc.Reset()
	vm.xmc.Reset()
	vm.nic.Reset()
	vm.fio.Reset()
	vm.dma.Reset()
	vm.blitter.Reset()
	vm.sid1.Reset()
	vm.sid2.Reset()
	vm.music.Stop()
	vm.gate.Resume()
}

// ColdStart clears flat RAM (preserving the loaded ROM image) before
// resetting every component, matching a power-cycle rather than a
// warm reset.
func (vm *VM) ColdStart() {
	vm.bus.ClearRAM()
	vm.Reset()
}

// Step pauses the CPU thread (if not already paused) and executes
// exactly one instruction on it, used by the monitor's single-step
// command and the Lua console's step() global.
func (vm *VM) Step() {
	vm.gate.Step()
}

// Pause and Resume halt and release the free-running CPU thread
// without touching CPU state directly; only the CPU thread's own
// goroutine ever calls ClocksForNext/ExecuteNext (§9).
func (vm *VM) Pause()       { vm.gate.Pause() }
func (vm *VM) Resume()      { vm.gate.Resume() }
func (vm *VM) Halted() bool { return vm.gate.Paused() }

// Run drives the CPU/renderer/audio threads concurrently until ctx is
// cancelled or one thread returns an error (§5). The CPU thread is the
// scheduler's client; renderer and audio run on their own fixed-rate
// tickers since neither needs cycle-level pacing. NIC socket I/O is not
// one of these threads: it runs on goroutines the NIC starts itself.
func (vm *VM) Run(ctx context.Context, frameSink func([]byte)) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return vm.runCPUThread(ctx) })
	g.Go(func() error { return vm.runRenderThread(ctx, frameSink) })
	g.Go(func() error { return vm.runAudioThread(ctx) })

	return g.Wait()
}

func (vm *VM) runCPUThread(ctx context.Context) error {
	exec := func() {
		vm.cpu.ClocksForNext()
		vm.cpu.ExecuteNext()
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if !vm.gate.awaitRunnable(ctx, exec) {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			continue
		}
		budget := vm.scheduler.Budget(0)
		for budget > 0 {
			clocks := int64(vm.cpu.ClocksForNext())
			vm.cpu.ExecuteNext()
			budget -= clocks
		}
	}
}

func (vm *VM) runRenderThread(ctx context.Context, frameSink func([]byte)) error {
	ticker := time.NewTicker(time.Second / 60)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			frame := vm.vgc.RenderFrame()
			if frameSink != nil {
				frameSink(frame)
			}
		}
	}
}

func (vm *VM) runAudioThread(ctx context.Context) error {
	ticker := time.NewTicker(time.Second / mmlFrameHz)
	defer ticker.Stop()
	const dtMs = 1000.0 / float32(mmlFrameHz)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			vm.music.Tick()
			vm.sid1.TickEnvelopes(dtMs)
			vm.sid2.TickEnvelopes(dtMs)
		}
	}
}

// LoadROM loads a flat binary image at addr and write-protects it.
func (vm *VM) LoadROM(addr uint16, image []byte) {
	vm.bus.LoadROM(addr, image)
}

func (vm *VM) String() string {
	return fmt.Sprintf("VM{cpuHz=%d turbo=%v variant=%v}", vm.cpuHz, vm.turbo, vm.variant)
}
