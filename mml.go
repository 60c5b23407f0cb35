// mml.go - MML music engine: parses Music Macro Language text into a
// per-frame register-write stream for the SID chips.
//
// Loosely follows sid_engine.go's SetEvents/TickSample event-player
// shape (a pre-parsed event list walked forward one frame at a time)
// retargeted from driving a SoundChip DSP voice to driving SIDChip
// register writes.

package main

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
)

const (
	mmlNumVoices   = 6 // 3 per SID chip, 2 chips
	mmlVoicesPerSID = 3
	mmlNumInstruments = 16
	mmlFrameHz     = 60
	mmlSFXChannels = 2 // voices 4-5 form the SFX range; TriggerSFX always uses voice 4
)

// instrument is a canned ADSR + waveform preset, indexed 0-15.
type instrument struct {
	waveform byte // SID_CTRL_* waveform bit
	attack   byte
	decay    byte
	sustain  byte
	release  byte
	pulseW   uint16
}

var mmlInstruments = [mmlNumInstruments]instrument{
	{waveform: SID_CTRL_TRIANGLE, attack: 0, decay: 8, sustain: 12, release: 6},
	{waveform: SID_CTRL_SAWTOOTH, attack: 0, decay: 6, sustain: 10, release: 5},
	{waveform: SID_CTRL_PULSE, attack: 0, decay: 5, sustain: 8, release: 4, pulseW: 2048},
	{waveform: SID_CTRL_NOISE, attack: 0, decay: 2, sustain: 0, release: 3},
	{waveform: SID_CTRL_TRIANGLE, attack: 2, decay: 10, sustain: 14, release: 9},
	{waveform: SID_CTRL_SAWTOOTH, attack: 1, decay: 9, sustain: 11, release: 7},
	{waveform: SID_CTRL_PULSE, attack: 0, decay: 4, sustain: 6, release: 3, pulseW: 1024},
	{waveform: SID_CTRL_PULSE, attack: 0, decay: 4, sustain: 6, release: 3, pulseW: 3072},
	{waveform: SID_CTRL_TRIANGLE | SID_CTRL_SAWTOOTH, attack: 1, decay: 7, sustain: 10, release: 6},
	{waveform: SID_CTRL_NOISE, attack: 0, decay: 1, sustain: 0, release: 1},
	{waveform: SID_CTRL_TRIANGLE, attack: 4, decay: 12, sustain: 15, release: 12},
	{waveform: SID_CTRL_SAWTOOTH, attack: 0, decay: 3, sustain: 4, release: 2},
	{waveform: SID_CTRL_PULSE, attack: 3, decay: 8, sustain: 9, release: 8, pulseW: 2560},
	{waveform: SID_CTRL_NOISE, attack: 0, decay: 6, sustain: 3, release: 5},
	{waveform: SID_CTRL_TRIANGLE, attack: 0, decay: 15, sustain: 15, release: 15},
	{waveform: SID_CTRL_SAWTOOTH, attack: 0, decay: 0, sustain: 15, release: 0},
}

var noteSemitone = map[byte]int{
	'c': 0, 'd': 2, 'e': 4, 'f': 5, 'g': 7, 'a': 9, 'b': 11,
}

// noteFreq converts octave+semitone into a SID 16-bit frequency word
// at PAL clock, using the standard SID frequency formula
// freq = note_hz * 16777216 / clock.
func noteFreq(octave, semitone int) uint16 {
	midi := (octave+1)*12 + semitone
	hz := 440.0 * pow2((float64(midi)-69.0)/12.0)
	word := hz * 16777216.0 / float64(SID_CLOCK_PAL)
	if word > 65535 {
		word = 65535
	}
	if word < 0 {
		word = 0
	}
	return uint16(word)
}

func pow2(x float64) float64 {
	// Small integer+fraction power-of-2 via repeated squaring on the
	// fractional part is overkill here; math.Pow is the natural call
	// but mml avoids importing all of "math" for one use.
	result := 1.0
	whole := int(x)
	frac := x - float64(whole)
	if whole >= 0 {
		for i := 0; i < whole; i++ {
			result *= 2
		}
	} else {
		for i := 0; i < -whole; i++ {
			result /= 2
		}
	}
	if frac != 0 {
		result *= 1.0 + frac*0.6931471805599453 + frac*frac*0.2402265069591007
	}
	return result
}

// mmlOp is one parsed instruction in a voice's command stream.
type mmlOp struct {
	kind    byte
	a, b, c int
}

const (
	opNote = iota
	opRest
	opOctave
	opOctaveUp
	opOctaveDown
	opLength
	opTempo
	opVolume
	opInstrument
	opLoopStart
	opLoopEnd
	opArpeggio
	opVibrato
	opPortamento
	opPulseSweep
	opFilterSweep
)

type modulator struct {
	kind    byte // matches opArpeggio/opVibrato/opPortamento/opPulseSweep/opFilterSweep
	depth   int
	rate    int
	framesLeft int
}

type mmlVoice struct {
	ops      []mmlOp
	pc       int
	octave   int
	lengthDenom int
	instrument int
	volume   int
	loopPC   int
	framesLeft int
	active   bool
	baseFreq uint16
	mod      *modulator
}

// MusicEngine drives up to 6 voices (3 per SID chip) from parsed MML
// programs, plus a small pool of SFX voices stolen from the top of the
// voice range for one-shot sound effects.
type MusicEngine struct {
	mu sync.Mutex

	sid1, sid2 *SIDChip

	voices [mmlNumVoices]mmlVoice
	tempo  int // quarter notes per minute
	loop   bool
	playing bool
	frame  int
}

func NewMusicEngine(sid1, sid2 *SIDChip) *MusicEngine {
	m := &MusicEngine{sid1: sid1, sid2: sid2, tempo: 120}
	for i := range m.voices {
		m.voices[i].octave = 4
		m.voices[i].lengthDenom = 4
		m.voices[i].volume = 15
	}
	return m
}

func (m *MusicEngine) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.playing = false
	for i := range m.voices {
		m.voices[i] = mmlVoice{octave: 4, lengthDenom: 4, volume: 15}
		m.gateOffLocked(i)
	}
}

// LoadTrack parses MML text into voice index `voice`'s op stream. Each
// voice is independent; a multi-voice score is loaded one LoadTrack
// call per voice.
func (m *MusicEngine) LoadTrack(voice int, mml string) error {
	ops, err := parseMML(mml)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if voice < 0 || voice >= mmlNumVoices {
		return fmt.Errorf("mml: voice %d out of range", voice)
	}
	v := &m.voices[voice]
	v.ops = ops
	v.pc = 0
	v.loopPC = 0
	v.active = true
	return nil
}

func (m *MusicEngine) Play(loop bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loop = loop
	m.playing = true
}

// parseMML tokenizes a single-voice MML string into an op stream.
// Grammar (case-insensitive letters): notes a-g with optional #/+/- and
// a trailing length digit; r for rest; o<n> set octave; < > octave
// step; l<n> default length; t<n> tempo; v<n> volume 0-15; @<n> pick
// instrument 0-15; [ ... ]<n> loop n times (0 = infinite); M<depth,rate>
// arpeggio; K<depth,rate> vibrato; P<target,rate> portamento;
// W<depth,rate> pulse-width sweep; Z<depth,rate> filter sweep.
func parseMML(s string) ([]mmlOp, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	var ops []mmlOp
	i := 0
	readInt := func(def int) int {
		start := i
		for i < len(s) && (s[i] >= '0' && s[i] <= '9') {
			i++
		}
		if start == i {
			return def
		}
		n, _ := strconv.Atoi(s[start:i])
		return n
	}

	for i < len(s) {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'g':
			semitone, ok := noteSemitone[c]
			if !ok {
				return nil, fmt.Errorf("mml: bad note %q", c)
			}
			i++
			for i < len(s) && (s[i] == '#' || s[i] == '+' || s[i] == '-') {
				if s[i] == '#' || s[i] == '+' {
					semitone++
				} else {
					semitone--
				}
				i++
			}
			length := readInt(0)
			ops = append(ops, mmlOp{kind: opNote, a: semitone, b: length})
		case c == 'r':
			i++
			length := readInt(0)
			ops = append(ops, mmlOp{kind: opRest, a: length})
		case c == 'o':
			i++
			ops = append(ops, mmlOp{kind: opOctave, a: readInt(4)})
		case c == '<':
			i++
			ops = append(ops, mmlOp{kind: opOctaveDown})
		case c == '>':
			i++
			ops = append(ops, mmlOp{kind: opOctaveUp})
		case c == 'l':
			i++
			ops = append(ops, mmlOp{kind: opLength, a: readInt(4)})
		case c == 't':
			i++
			ops = append(ops, mmlOp{kind: opTempo, a: readInt(120)})
		case c == 'v':
			i++
			ops = append(ops, mmlOp{kind: opVolume, a: readInt(15)})
		case c == '@':
			i++
			ops = append(ops, mmlOp{kind: opInstrument, a: readInt(0) % mmlNumInstruments})
		case c == '[':
			i++
			ops = append(ops, mmlOp{kind: opLoopStart})
		case c == ']':
			i++
			ops = append(ops, mmlOp{kind: opLoopEnd, a: readInt(0)})
		case c == 'm', c == 'k', c == 'p', c == 'w', c == 'z':
			kind := map[byte]byte{'m': opArpeggio, 'k': opVibrato, 'p': opPortamento, 'w': opPulseSweep, 'z': opFilterSweep}[c]
			i++
			depth := readInt(0)
			rate := 0
			if i < len(s) && s[i] == ',' {
				i++
				rate = readInt(1)
			}
			ops = append(ops, mmlOp{kind: kind, a: depth, b: rate})
		case c == ' ' || c == '\t' || c == '\n':
			i++
		default:
			return nil, fmt.Errorf("mml: unexpected character %q at %d", c, i)
		}
	}
	return ops, nil
}

// Tick advances playback by one frame (1/60s at mmlFrameHz), called by
// the VM's audio thread. It applies register writes for any voice
// whose current note's frame budget has just run out, advancing to
// the next op.
func (m *MusicEngine) Tick() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.playing {
		return
	}
	m.frame++
	for i := range m.voices {
		m.tickVoiceLocked(i)
	}
}

func (m *MusicEngine) tickVoiceLocked(i int) {
	v := &m.voices[i]
	if !v.active || len(v.ops) == 0 {
		return
	}
	if v.mod != nil {
		m.applyModulatorLocked(i)
	}
	if v.framesLeft > 0 {
		v.framesLeft--
		return
	}
	for v.pc < len(v.ops) {
		op := v.ops[v.pc]
		v.pc++
		switch op.kind {
		case opNote:
			v.baseFreq = noteFreq(v.octave, op.a)
			m.writeVoiceLocked(i, v.baseFreq, true)
			v.framesLeft = m.framesForLengthLocked(v, op.b)
			return
		case opRest:
			m.gateOffLocked(i)
			v.framesLeft = m.framesForLengthLocked(v, op.a)
			return
		case opOctave:
			v.octave = op.a
		case opOctaveUp:
			v.octave++
		case opOctaveDown:
			v.octave--
		case opLength:
			v.lengthDenom = op.a
		case opTempo:
			m.tempo = op.a
		case opVolume:
			v.volume = op.a
		case opInstrument:
			v.instrument = op.a
			m.applyInstrumentLocked(i)
		case opLoopStart:
			v.loopPC = v.pc
		case opLoopEnd:
			// The ] op's own c field counts the repeats taken so far.
			end := &v.ops[v.pc-1]
			if op.a == 0 {
				v.pc = v.loopPC
			} else if end.c+1 < op.a {
				end.c++
				v.pc = v.loopPC
			} else {
				end.c = 0
			}
		case opArpeggio, opVibrato, opPortamento, opPulseSweep, opFilterSweep:
			v.mod = &modulator{kind: op.kind, depth: op.a, rate: maxInt(op.b, 1)}
		}
	}
	if v.pc >= len(v.ops) {
		if m.loop && len(v.ops) > 0 {
			v.pc = 0
		} else {
			v.active = false
			m.gateOffLocked(i)
		}
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// framesForLengthLocked converts an MML note-length denominator (4 =
// quarter note, 8 = eighth, etc; 0 means "use the voice's default l")
// into a frame count at the current tempo.
func (m *MusicEngine) framesForLengthLocked(v *mmlVoice, denom int) int {
	if denom == 0 {
		denom = v.lengthDenom
	}
	if denom <= 0 {
		denom = 4
	}
	secondsPerQuarter := 60.0 / float64(m.tempo)
	secondsPerNote := secondsPerQuarter * 4.0 / float64(denom)
	frames := int(secondsPerNote * mmlFrameHz)
	if frames < 1 {
		frames = 1
	}
	return frames
}

func (m *MusicEngine) chipAndVoice(i int) (*SIDChip, int) {
	if i < mmlVoicesPerSID {
		return m.sid1, i
	}
	return m.sid2, i - mmlVoicesPerSID
}

func (m *MusicEngine) writeVoiceLocked(i int, freq uint16, gate bool) {
	sid, vi := m.chipAndVoice(i)
	if sid == nil {
		return
	}
	base := uint16(vi * 7)
	sid.Write(base+0, byte(freq))
	sid.Write(base+1, byte(freq>>8))
	inst := mmlInstruments[m.voices[i].instrument]
	ctrl := inst.waveform
	if gate {
		ctrl |= SID_CTRL_GATE
	}
	sid.Write(base+5, inst.attack<<4|inst.decay)
	sid.Write(base+6, inst.sustain<<4|inst.release)
	sid.Write(base+4, ctrl)
}

func (m *MusicEngine) applyInstrumentLocked(i int) {
	sid, vi := m.chipAndVoice(i)
	if sid == nil {
		return
	}
	inst := mmlInstruments[m.voices[i].instrument]
	base := uint16(vi * 7)
	sid.Write(base+2, byte(inst.pulseW))
	sid.Write(base+3, byte(inst.pulseW>>8)&0x0F)
}

func (m *MusicEngine) gateOffLocked(i int) {
	sid, vi := m.chipAndVoice(i)
	if sid == nil {
		return
	}
	base := uint16(vi * 7)
	ctrl := sid.Read(base + 4)
	sid.Write(base+4, ctrl&^byte(SID_CTRL_GATE))
}

// applyModulatorLocked steps a per-frame pitch/timbre modulator
// (arpeggio, vibrato, portamento, pulse-width sweep, filter sweep)
// attached by an M/K/P/W/Z command, one tick at a time.
func (m *MusicEngine) applyModulatorLocked(i int) {
	v := &m.voices[i]
	mod := v.mod
	sid, vi := m.chipAndVoice(i)
	if sid == nil {
		return
	}
	base := uint16(vi * 7)
	phase := (m.frame / maxInt(mod.rate, 1)) % 3

	switch mod.kind {
	case opArpeggio:
		offsets := [3]int{0, mod.depth, mod.depth * 2}
		freq := noteFreq(v.octave, offsets[phase])
		sid.Write(base+0, byte(freq))
		sid.Write(base+1, byte(freq>>8))
	case opVibrato:
		delta := int(v.baseFreq) + sweepTriangle(m.frame, mod.rate, mod.depth)
		if delta < 0 {
			delta = 0
		}
		sid.Write(base+0, byte(uint16(delta)))
		sid.Write(base+1, byte(uint16(delta)>>8))
	case opPortamento:
		target := v.baseFreq + uint16(mod.depth)
		step := (int(target) - int(v.baseFreq)) / maxInt(mod.rate, 1)
		cur := int(v.baseFreq) + step*(m.frame%maxInt(mod.rate, 1))
		sid.Write(base+0, byte(uint16(cur)))
		sid.Write(base+1, byte(uint16(cur)>>8))
	case opPulseSweep:
		pw := uint16(2048 + sweepTriangle(m.frame, mod.rate, mod.depth))
		sid.Write(base+2, byte(pw))
		sid.Write(base+3, byte(pw>>8)&0x0F)
	case opFilterSweep:
		if vi == 0 {
			cutoff := uint16(512 + sweepTriangle(m.frame, mod.rate, mod.depth))
			sid.Write(0x15, byte(cutoff)&0x07)
			sid.Write(0x16, byte(cutoff>>3))
		}
	}
	mod.framesLeft--
}

func sweepTriangle(frame, rate, depth int) int {
	if rate <= 0 {
		rate = 1
	}
	period := rate * 2
	pos := frame % period
	if pos < rate {
		return pos * depth / rate
	}
	return depth - (pos-rate)*depth/rate
}

// TriggerSFX plays a one-shot instrument preset on voice 4, the first
// of the two SFX voices, stopping any music program on that voice; it
// does not pick a voice by priority. For UI/game sound effects that
// shouldn't need a dedicated MML track.
func (m *MusicEngine) TriggerSFX(instrumentIdx int, octave, semitone int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	voice := mmlNumVoices - mmlSFXChannels
	v := &m.voices[voice]
	v.active = false // steal: stop any music program on this voice
	v.instrument = instrumentIdx % mmlNumInstruments
	v.octave = octave
	m.applyInstrumentLocked(voice)
	freq := noteFreq(octave, semitone)
	m.writeVoiceLocked(voice, freq, true)
}
