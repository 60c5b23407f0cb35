// fio.go - File I/O Controller: host filesystem access confined to a base directory

package main

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

const (
	fioNameBufLen = 32
	fioDirBufLen  = 32
)

// FIO register layout, relative to fioBase (§4.7).
const (
	fioRegCmd      = 0x00
	fioRegStatus   = 0x01
	fioRegError    = 0x02
	fioRegAddrLo   = 0x03
	fioRegAddrHi   = 0x04
	fioRegLenLo    = 0x05
	fioRegLenHi    = 0x06
	fioRegSpace    = 0x07
	fioRegNameBase = 0x08 // 32 bytes, null-terminated filename
	fioRegDirBase  = 0x28 // 32 bytes, readback for DirRead
)

// Commands.
const (
	fioCmdSave     = 0x01
	fioCmdLoad     = 0x02
	fioCmdGSave    = 0x03
	fioCmdGLoad    = 0x04
	fioCmdDirOpen  = 0x05
	fioCmdDirRead  = 0x06
	fioCmdLoadPSID = 0x07
)

// Status.
const (
	fioStatusIdle = 0
	fioStatusOK   = 1
	fioStatusErr  = 2
)

// Error codes, adapted from file_io_constants.go's FILE_ERR_* taxonomy.
const (
	fioErrNone           = 0
	fioErrPathTraversal  = 1
	fioErrNotFound       = 2
	fioErrPermission     = 3
	fioErrBadSpace       = 4
	fioErrEndOfDir       = 5
	fioErrBadPSID        = 6
)

// FIO is the File I/O Controller. It confines host access to baseDir,
// the same sanitizePath discipline file_io.go applies (reject absolute
// paths and ".." components, then verify the joined path still resolves
// inside baseDir).
type FIO struct {
	mu      sync.Mutex
	bus     *CompositeBus
	vgc     *VGC
	baseDir string

	cmd     byte
	status  byte
	errCode byte
	addr    uint16
	lenReg  uint16
	space   byte
	nameBuf [fioNameBufLen]byte
	dirBuf  [fioDirBufLen]byte

	dirEntries []string
	dirCursor  int
}

func NewFIO(bus *CompositeBus, vgc *VGC, baseDir string) *FIO {
	absBase, err := filepath.Abs(baseDir)
	if err != nil {
		absBase = baseDir
	}
	return &FIO{bus: bus, vgc: vgc, baseDir: absBase}
}

func (f *FIO) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cmd, f.status, f.errCode = 0, 0, 0
	f.addr, f.lenReg = 0, 0
	f.space = 0
	f.nameBuf = [fioNameBufLen]byte{}
	f.dirBuf = [fioDirBufLen]byte{}
	f.dirEntries = nil
	f.dirCursor = 0
}

func (f *FIO) Read(addr uint16) byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	off := addr - fioBase

	if off >= fioRegNameBase && off < fioRegNameBase+fioNameBufLen {
		return f.nameBuf[off-fioRegNameBase]
	}
	if off >= fioRegDirBase && off < fioRegDirBase+fioDirBufLen {
		return f.dirBuf[off-fioRegDirBase]
	}
	switch off {
	case fioRegCmd:
		return f.cmd
	case fioRegStatus:
		return f.status
	case fioRegError:
		return f.errCode
	case fioRegAddrLo:
		return byte(f.addr)
	case fioRegAddrHi:
		return byte(f.addr >> 8)
	case fioRegLenLo:
		return byte(f.lenReg)
	case fioRegLenHi:
		return byte(f.lenReg >> 8)
	case fioRegSpace:
		return f.space
	}
	return 0
}

func (f *FIO) Write(addr uint16, value byte) {
	f.mu.Lock()
	off := addr - fioBase

	if off >= fioRegNameBase && off < fioRegNameBase+fioNameBufLen {
		f.nameBuf[off-fioRegNameBase] = value
		f.mu.Unlock()
		return
	}
	switch off {
	case fioRegCmd:
		f.mu.Unlock()
		f.dispatch(value)
		return
	case fioRegAddrLo:
		f.addr = f.addr&0xFF00 | uint16(value)
	case fioRegAddrHi:
		f.addr = f.addr&0x00FF | uint16(value)<<8
	case fioRegLenLo:
		f.lenReg = f.lenReg&0xFF00 | uint16(value)
	case fioRegLenHi:
		f.lenReg = f.lenReg&0x00FF | uint16(value)<<8
	case fioRegSpace:
		f.space = value
	}
	f.mu.Unlock()
}

func (f *FIO) sanitizePath(name string) (string, bool) {
	if filepath.IsAbs(name) || strings.Contains(name, "..") {
		return "", false
	}
	full := filepath.Join(f.baseDir, name)
	rel, err := filepath.Rel(f.baseDir, full)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", false
	}
	return full, true
}

func (f *FIO) nameLocked() string {
	n := 0
	for n < len(f.nameBuf) && f.nameBuf[n] != 0 {
		n++
	}
	return string(f.nameBuf[:n])
}

func (f *FIO) fail(code byte) {
	f.mu.Lock()
	f.status, f.errCode = fioStatusErr, code
	f.mu.Unlock()
}

func (f *FIO) ok() {
	f.mu.Lock()
	f.status, f.errCode = fioStatusOK, fioErrNone
	f.mu.Unlock()
}

func (f *FIO) dispatch(cmd byte) {
	f.mu.Lock()
	f.cmd = cmd
	f.mu.Unlock()

	switch cmd {
	case fioCmdSave:
		f.doSave()
	case fioCmdLoad:
		f.doLoad()
	case fioCmdGSave:
		f.doGSave()
	case fioCmdGLoad:
		f.doGLoad()
	case fioCmdDirOpen:
		f.doDirOpen()
	case fioCmdDirRead:
		f.doDirRead()
	case fioCmdLoadPSID:
		f.doLoadPSID()
	}
}

// doSave writes CPU RAM [addr, addr+len) to name, prefixed with the
// 2-byte little-endian load address. doLoad skips that prefix and
// writes the body wherever the CPU stages its own destination.
func (f *FIO) doSave() {
	f.mu.Lock()
	name := f.nameLocked()
	addr, length := f.addr, f.lenReg
	f.mu.Unlock()

	full, okPath := f.sanitizePath(name)
	if !okPath {
		f.fail(fioErrPathTraversal)
		return
	}

	data := make([]byte, 2+int(length))
	data[0] = byte(addr)
	data[1] = byte(addr >> 8)
	copy(data[2:], f.bus.ReadRange(addr, int(length)))

	if err := os.WriteFile(full, data, 0644); err != nil {
		f.fail(fioErrPermission)
		return
	}
	f.ok()
}

// doLoad reads a file saved by doSave and copies its body into CPU RAM
// at the destination the CPU already staged in the addr register. The
// file's own embedded load address is discarded: the CPU-provided
// destination is authoritative (§4.7).
func (f *FIO) doLoad() {
	f.mu.Lock()
	name := f.nameLocked()
	dest := f.addr
	f.mu.Unlock()

	full, okPath := f.sanitizePath(name)
	if !okPath {
		f.fail(fioErrPathTraversal)
		return
	}
	data, err := os.ReadFile(full)
	if err != nil {
		f.fail(fioErrNotFound)
		return
	}
	if len(data) < 2 {
		f.fail(fioErrBadSpace)
		return
	}

	body := data[2:]
	f.bus.WriteRange(dest, body)

	f.mu.Lock()
	f.lenReg = uint16(len(body))
	f.mu.Unlock()
	f.ok()
}

// doGSave/doGLoad transfer one of the VGC's 4 memory spaces (§4.8
// space selectors) to/from a host file, byte for byte with no address
// prefix since each space has a fixed, implicit size.
func (f *FIO) doGSave() {
	f.mu.Lock()
	name := f.nameLocked()
	space := f.space
	f.mu.Unlock()

	full, okPath := f.sanitizePath(name)
	if !okPath {
		f.fail(fioErrPathTraversal)
		return
	}
	data, ok := f.vgc.snapshotSpace(space)
	if !ok {
		f.fail(fioErrBadSpace)
		return
	}
	if err := os.WriteFile(full, data, 0644); err != nil {
		f.fail(fioErrPermission)
		return
	}
	f.ok()
}

func (f *FIO) doGLoad() {
	f.mu.Lock()
	name := f.nameLocked()
	space := f.space
	f.mu.Unlock()

	full, okPath := f.sanitizePath(name)
	if !okPath {
		f.fail(fioErrPathTraversal)
		return
	}
	data, err := os.ReadFile(full)
	if err != nil {
		f.fail(fioErrNotFound)
		return
	}
	if !f.vgc.restoreSpace(space, data) {
		f.fail(fioErrBadSpace)
		return
	}
	f.ok()
}

// dirEntryKind classifies a host filename as one of the two types
// DirOpen/DirRead enumerate (§4.7): "sid" for PSID music files, else
// "program" for anything saved by Save (which carries no fixed
// extension). Hidden/dotfiles are never entries of either type.
func dirEntryKind(name string) (kind string, ok bool) {
	if strings.HasPrefix(name, ".") {
		return "", false
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".sid", ".psid":
		return "sid", true
	default:
		return "program", true
	}
}

func (f *FIO) doDirOpen() {
	entries, err := os.ReadDir(f.baseDir)
	if err != nil {
		f.fail(fioErrPermission)
		return
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if _, ok := dirEntryKind(e.Name()); ok {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	f.mu.Lock()
	f.dirEntries = names
	f.dirCursor = 0
	f.mu.Unlock()
	f.ok()
}

func (f *FIO) doDirRead() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.dirCursor >= len(f.dirEntries) {
		f.status, f.errCode = fioStatusErr, fioErrEndOfDir
		return
	}
	name := f.dirEntries[f.dirCursor]
	f.dirCursor++
	f.dirBuf = [fioDirBufLen]byte{}
	copy(f.dirBuf[:], name)
	f.status, f.errCode = fioStatusOK, fioErrNone
}
