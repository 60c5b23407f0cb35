// config.go - environment-variable configuration, read the way main.go
// reads its env vars directly rather than through a config framework.

package main

import (
	"os"
	"strconv"
)

// Config holds every knob the VM reads from the environment at
// startup (§6).
type Config struct {
	CPUHz            int64
	Turbo            bool
	TimingTelemetry  bool
	IPCPort          int
	BaseDir          string
	Variant          cpuVariant
}

func loadConfig() Config {
	cfg := Config{
		CPUHz:   defaultTargetHz,
		IPCPort: 6502,
		BaseDir: defaultBaseDir,
		Variant: variantNMOS,
	}

	if v := os.Getenv("IE6502_CPU_HZ"); v != "" {
		if hz, err := strconv.ParseInt(v, 10, 64); err == nil && hz > 0 {
			cfg.CPUHz = hz
		}
	}
	if v := os.Getenv("IE6502_TURBO"); v != "" {
		cfg.Turbo = parseBoolEnv(v)
	}
	if v := os.Getenv("IE6502_TIMING_TELEMETRY"); v != "" {
		cfg.TimingTelemetry = parseBoolEnv(v)
	}
	if v := os.Getenv("IE6502_IPC_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil && port > 0 {
			cfg.IPCPort = port
		}
	}
	if v := os.Getenv("IE6502_BASE_DIR"); v != "" {
		cfg.BaseDir = v
	}
	if v := os.Getenv("IE6502_CPU_VARIANT"); v == "65c02" {
		cfg.Variant = variantCMOS
	}
	return cfg
}

func parseBoolEnv(v string) bool {
	b, err := strconv.ParseBool(v)
	return err == nil && b
}
