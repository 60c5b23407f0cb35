// sid_constants.go - MOS 6581/8580 SID sound chip register addresses and constants

package main

// SID register addresses laid out from base 0xF0E00 (0xF0E00-0xF0E1C).
// The bus maps each chip at sid1Base/sid2Base/sidMirrorBase instead, so
// these are used only as register offsets (X - SID_BASE).
const (
	SID_BASE = 0xF0E00
	SID_END  = 0xF0E1C

	// Voice 1 registers (0x00-0x06)
	SID_V1_FREQ_LO = 0xF0E00 // Voice 1 frequency low byte
	SID_V1_FREQ_HI = 0xF0E01 // Voice 1 frequency high byte
	SID_V1_PW_LO   = 0xF0E02 // Voice 1 pulse width low byte
	SID_V1_PW_HI   = 0xF0E03 // Voice 1 pulse width high byte (bits 0-3 only)
	SID_V1_CTRL    = 0xF0E04 // Voice 1 control register
	SID_V1_AD      = 0xF0E05 // Voice 1 attack/decay
	SID_V1_SR      = 0xF0E06 // Voice 1 sustain/release

	// Voice 2's control register, addressed the same way voice 1's is
	// in tests; the rest of voice 2/3's registers are reached by
	// sid.go's off/7 offset arithmetic instead of named addresses.
	SID_V2_CTRL = 0xF0E0B
	SID_V3_CTRL = 0xF0E12

	// Filter registers (0x15-0x17)
	SID_FC_LO    = 0xF0E15 // Filter cutoff low (bits 0-2 only)
	SID_FC_HI    = 0xF0E16 // Filter cutoff high byte
	SID_RES_FILT = 0xF0E17 // Filter resonance (bits 4-7) and routing (bits 0-3)

	// Volume and filter mode (0x18)
	SID_MODE_VOL = 0xF0E18 // Volume (bits 0-3), filter mode (bits 4-7)
)

// SID clock frequency. The envelope model runs on milliseconds (see
// sidAttackMs/sidDecayReleaseMs below), so only PAL's figure is needed.
const SID_CLOCK_PAL = 985248 // PAL C64 clock (Hz)

// SID chip model types
const (
	SID_MODEL_6581 = 0 // Original SID (non-linear filter, warmer sound)
	SID_MODEL_8580 = 1 // Revised SID (linear filter, cleaner sound)
)

// Voice control register bits
const (
	SID_CTRL_GATE     = 0x01 // Bit 0: Gate (trigger envelope)
	SID_CTRL_SYNC     = 0x02 // Bit 1: Sync with previous voice
	SID_CTRL_RINGMOD  = 0x04 // Bit 2: Ring modulation with previous voice
	SID_CTRL_TEST     = 0x08 // Bit 3: Test bit (resets oscillator)
	SID_CTRL_TRIANGLE = 0x10 // Bit 4: Triangle waveform
	SID_CTRL_SAWTOOTH = 0x20 // Bit 5: Sawtooth waveform
	SID_CTRL_PULSE    = 0x40 // Bit 6: Pulse/square waveform
	SID_CTRL_NOISE    = 0x80 // Bit 7: Noise waveform
)

// Filter resonance/routing register bits
const (
	SID_FILT_V1  = 0x01 // Bit 0: Route voice 1 through filter
	SID_FILT_V2  = 0x02 // Bit 1: Route voice 2 through filter
	SID_FILT_V3  = 0x04 // Bit 2: Route voice 3 through filter
	SID_FILT_EXT = 0x08 // Bit 3: Route external input through filter
	SID_FILT_RES = 0xF0 // Bits 4-7: Filter resonance (0-15)
)

// Mode/volume register bits
const (
	SID_MODE_VOL_MASK = 0x0F // Bits 0-3: Master volume (0-15)
	SID_MODE_LP       = 0x10 // Bit 4: Low-pass filter
	SID_MODE_BP       = 0x20 // Bit 5: Band-pass filter
	SID_MODE_HP       = 0x40 // Bit 6: High-pass filter
	SID_MODE_3OFF     = 0x80 // Bit 7: Voice 3 off (disconnect from output)
)

// SID ADSR timing tables (values in milliseconds), approximations of
// the real chip's exponential decay. sid.go's envelope model uses
// these to drive each voice's attack/decay/release ramp.
var sidAttackMs = [16]float32{
	2, 8, 16, 24, 38, 56, 68, 80,
	100, 250, 500, 800, 1000, 3000, 5000, 8000,
}

var sidDecayReleaseMs = [16]float32{
	6, 24, 48, 72, 114, 168, 204, 240,
	300, 750, 1500, 2400, 3000, 9000, 15000, 24000,
}
