// main.go - ie6502 entry point: CLI flags, env config, boot sequence

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		romPath   string
		cpuHz     int64
		turbo     bool
		cmos      bool
		ipcPort   int
		baseDir   string
		monitorOn bool
	)

	cmd := &cobra.Command{
		Use:   "ie6502 [rom]",
		Short: "A retro-computer VM built around a 6502/65C02 CPU core",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				romPath = args[0]
			}
			cfg := loadConfig()
			if cpuHz > 0 {
				cfg.CPUHz = cpuHz
			}
			if cmd.Flags().Changed("turbo") {
				cfg.Turbo = turbo
			}
			if cmd.Flags().Changed("ipc-port") {
				cfg.IPCPort = ipcPort
			}
			if baseDir != "" {
				cfg.BaseDir = baseDir
			}
			if cmos {
				cfg.Variant = variantCMOS
			}
			return runVM(cfg, romPath, monitorOn)
		},
	}

	cmd.Flags().Int64Var(&cpuHz, "cpu-hz", 0, "target CPU frequency in Hz (overrides IE6502_CPU_HZ)")
	cmd.Flags().BoolVar(&turbo, "turbo", false, "run the CPU as fast as possible, ignoring pacing")
	cmd.Flags().BoolVar(&cmos, "65c02", false, "use the 65C02 instruction set instead of NMOS 6502")
	cmd.Flags().IntVar(&ipcPort, "ipc-port", 0, "TCP port for the JSON IPC/CLI surface (overrides IE6502_IPC_PORT)")
	cmd.Flags().StringVar(&baseDir, "base-dir", "", "host directory FIO is confined to")
	cmd.Flags().BoolVar(&monitorOn, "monitor", false, "start the interactive machine monitor instead of free-running")

	return cmd
}

func runVM(cfg Config, romPath string, monitorOn bool) error {
	vm := NewVM(cfg.CPUHz, cfg.Turbo, cfg.Variant, cfg.BaseDir)
	vm.Reset()

	if romPath != "" {
		data, err := os.ReadFile(romPath)
		if err != nil {
			return fmt.Errorf("reading rom: %w", err)
		}
		vm.LoadROM(romBase, data)
		vm.cpu.Reset(-1)
	}

	ipc, err := NewIPCServer(vm, cfg.IPCPort)
	if err != nil {
		return fmt.Errorf("starting ipc: %w", err)
	}
	ipc.Start()
	defer ipc.Stop()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if monitorOn {
		mon := NewMonitor(vm)
		go func() {
			vm.Run(ctx, nil)
		}()
		return mon.RunInteractive()
	}

	if cfg.TimingTelemetry {
		fmt.Printf("ie6502: cpuHz=%d turbo=%v ipcPort=%d\n", cfg.CPUHz, cfg.Turbo, cfg.IPCPort)
	}
	return vm.Run(ctx, nil)
}
