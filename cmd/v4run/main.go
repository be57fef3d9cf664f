// Command v4run hosts a bundle (words + tasks) against package vm and
// drives its scheduler until nothing is runnable or the bundle's
// max_turns (default 1000) is used up, logging progress and faults.
//
// Usage:
//
//	v4run bundle.toml
//
// Grounded on original_source/bsp/esp32c6/runtime/main's wiring of a
// v4_vm_t, a panic handler, and a scheduling loop -- minus the board's
// GPIO and flashing specifics, which spec.md explicitly puts out of
// scope. The teacher's own cmd (main.go + bootstrap/bootstrap.go) fed a
// cross-compiled FORTH image to forth.NewVM(...).Run(); this plays the
// same "load a program and run it" role against a declarative bundle.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/dustin/go-humanize"
	slogmulti "github.com/samber/slog-multi"

	"github.com/V4-project/V4-runtime/vm"
)

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintln(os.Stderr, "usage: v4run <bundle.toml>")
		os.Exit(2)
	}

	logger := newLogger()

	bundle, err := LoadBundle(os.Args[1])
	if err != nil {
		logger.Error("load bundle", slog.String("error", err.Error()))
		os.Exit(1)
	}

	machine := newVMFromBundle(bundle, logger)
	logger.Info("vm ready",
		slog.String("id", machine.ID().String()),
		slog.Int("words", machine.WordCount()),
		slog.Int("tasks", machine.TaskCount()),
		slog.String("arena", humanize.IBytes(uint64(bundle.Arena.Size))),
	)

	maxTurns := bundle.MaxTurns
	if maxTurns == 0 {
		maxTurns = 1000
	}
	if err := machine.RunScheduler(maxTurns); err != nil {
		logger.Error("scheduler halted", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("scheduler idle", slog.Int("tasks_remaining", machine.TaskCount()))
}

func newLogger() *slog.Logger {
	text := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})
	debug := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})
	return slog.New(slogmulti.Fanout(text, debug))
}

func newVMFromBundle(b *Bundle, logger *slog.Logger) *vm.VM {
	var windows []vm.MMIOWindow
	for _, w := range b.Arena.MMIO {
		windows = append(windows, vm.MMIOWindow{Name: w.Name, Addr: w.Addr, Size: w.Size})
	}
	var arena *vm.Arena
	if b.Arena.Size > 0 {
		arena = vm.NewArena(make([]byte, b.Arena.Size), windows)
	}

	machine := vm.New(vm.Config{
		Arena:        arena,
		Platform:     vm.NewStdPlatform(),
		PanicHandler: vm.NewSlogPanicHandler(logger),
	})

	byName := make(map[string]int, len(b.Words))
	for _, w := range b.Words {
		code, err := w.decode()
		if err != nil {
			logger.Error("skip word", slog.String("error", err.Error()))
			continue
		}
		idx, err := machine.RegisterWord(w.Name, code)
		if err != nil {
			logger.Error("register word", slog.String("word", w.Name), slog.String("error", err.Error()))
			continue
		}
		byName[w.Name] = idx
	}

	for _, tc := range b.Tasks {
		idx, ok := byName[tc.Word]
		if !ok {
			logger.Error("spawn task: unknown word", slog.String("word", tc.Word))
			continue
		}
		dsSize, rsSize := tc.DSSize, tc.RSSize
		if dsSize == 0 {
			dsSize = 64
		}
		if rsSize == 0 {
			rsSize = 16
		}
		if _, err := machine.SpawnTask(idx, tc.Priority, dsSize, rsSize); err != nil {
			logger.Error("spawn task", slog.String("word", tc.Word), slog.String("error", err.Error()))
		}
	}

	return machine
}
