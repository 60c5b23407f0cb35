// monitor.go - interactive machine monitor: single-keystroke debugger
// plus a small Lua scripting console for batch automation.

package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	lua "github.com/yuin/gopher-lua"
	"golang.org/x/term"
)

// Monitor is the machine's interactive debugger. It runs on its own
// goroutine, independent of the CPU/renderer/audio threads, and
// pauses/steps the CPU through the VM's breakpoint gate rather than
// touching CPU state itself.
type Monitor struct {
	vm  *VM
	out io.Writer
}

func NewMonitor(vm *VM) *Monitor {
	return &Monitor{vm: vm, out: os.Stdout}
}

// RunInteractive puts the controlling terminal into raw mode so single
// keystrokes (not whole lines) drive stepping, matching a classic
// machine-language monitor's feel. Falls back to line mode when stdin
// isn't a real terminal (e.g. piped input, CI).
func (m *Monitor) RunInteractive() error {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return m.runLineMode(os.Stdin)
	}

	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return m.runLineMode(os.Stdin)
	}
	defer term.Restore(fd, oldState)

	reader := bufio.NewReader(os.Stdin)
	fmt.Fprint(m.out, "ie6502 monitor — h:help s:step r:run b:break q:quit\r\n")
	for {
		b, err := reader.ReadByte()
		if err != nil {
			return nil
		}
		if m.handleKey(b) {
			return nil
		}
	}
}

func (m *Monitor) handleKey(b byte) (quit bool) {
	switch b {
	case 'q', 3: // ctrl-C
		return true
	case 's':
		m.vm.Step()
		fmt.Fprintf(m.out, "%s\r\n", m.vm.cpu.String())
	case 'r':
		m.vm.Resume()
		fmt.Fprint(m.out, "running\r\n")
	case 'b':
		m.vm.Pause()
		fmt.Fprint(m.out, "halted\r\n")
	case 'h':
		fmt.Fprint(m.out, "h:help s:step r:run b:break q:quit\r\n")
	}
	return false
}

// runLineMode is the non-interactive fallback: newline-delimited
// commands, including "script <lua>" for the Lua console.
func (m *Monitor) runLineMode(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		m.runCommand(line)
	}
	return nil
}

func (m *Monitor) runCommand(line string) {
	fields := strings.Fields(line)
	switch fields[0] {
	case "step", "s":
		m.vm.Step()
	case "run", "r":
		m.vm.Resume()
	case "break", "b":
		m.vm.Pause()
	case "peek":
		if len(fields) < 2 {
			return
		}
		addr, _ := strconv.ParseUint(fields[1], 0, 16)
		fmt.Fprintf(m.out, "%04X: %02X\n", addr, m.vm.bus.Read(uint16(addr)))
	case "poke":
		if len(fields) < 3 {
			return
		}
		addr, _ := strconv.ParseUint(fields[1], 0, 16)
		val, _ := strconv.ParseUint(fields[2], 0, 8)
		m.vm.bus.Write(uint16(addr), byte(val))
	case "script":
		m.runScript(strings.TrimPrefix(line, fields[0]+" "))
	case "quit", "q":
		os.Exit(0)
	}
}

// runScript evaluates a Lua snippet with peek/poke/step/reset bound in,
// for scripted test sequences and demo automation without recompiling
// the VM.
func (m *Monitor) runScript(src string) {
	L := lua.NewState()
	defer L.Close()

	L.SetGlobal("peek", L.NewFunction(func(L *lua.LState) int {
		addr := L.CheckInt(1)
		L.Push(lua.LNumber(m.vm.bus.Read(uint16(addr))))
		return 1
	}))
	L.SetGlobal("poke", L.NewFunction(func(L *lua.LState) int {
		addr := L.CheckInt(1)
		val := L.CheckInt(2)
		m.vm.bus.Write(uint16(addr), byte(val))
		return 0
	}))
	L.SetGlobal("step", L.NewFunction(func(L *lua.LState) int {
		n := 1
		if L.GetTop() >= 1 {
			n = L.CheckInt(1)
		}
		for i := 0; i < n; i++ {
			m.vm.Step()
		}
		return 0
	}))
	L.SetGlobal("reset", L.NewFunction(func(L *lua.LState) int {
		m.vm.Reset()
		return 0
	}))

	if err := L.DoString(src); err != nil {
		fmt.Fprintf(m.out, "script error: %v\n", err)
	}
}
