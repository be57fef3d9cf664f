package main

import (
	"encoding/hex"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Bundle describes one v4run session: an optional memory arena, the
// words to register, and the tasks to spawn against them. Grounded on
// chazu-maggie's manifest.Manifest (github.com/chazu-maggie) for the
// struct-tagged TOML shape; stands in for the teacher's bootstrap tool,
// which cross-compiled a FORTH image from stdin -- here the image is a
// declarative bundle instead, since the wire framing (V4-link) that
// original_source uses to load a real board is out of scope.
type Bundle struct {
	Arena    ArenaConfig  `toml:"arena"`
	Words    []WordConfig `toml:"words"`
	Tasks    []TaskConfig `toml:"tasks"`
	MaxTurns int          `toml:"max_turns"`
}

// ArenaConfig describes the memory arena MemRead32/MemWrite32 operate
// on, plus any named MMIO windows within it.
type ArenaConfig struct {
	Size uint32       `toml:"size"`
	MMIO []MMIOConfig `toml:"mmio"`
}

// MMIOConfig names one peripheral-register window inside the arena.
type MMIOConfig struct {
	Name string `toml:"name"`
	Addr uint32 `toml:"addr"`
	Size uint32 `toml:"size"`
}

// WordConfig is one dictionary entry: a name and its bytecode, hex
// encoded (a pair of ASCII hex digits per byte, as v4asm's output looks
// once hex-dumped).
type WordConfig struct {
	Name string `toml:"name"`
	Code string `toml:"code"`
}

// TaskConfig spawns one task against an already-registered word.
type TaskConfig struct {
	Word     string `toml:"word"`
	Priority uint8  `toml:"priority"`
	DSSize   int    `toml:"ds_size"`
	RSSize   int    `toml:"rs_size"`
}

// LoadBundle reads and parses a TOML bundle file.
func LoadBundle(path string) (*Bundle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read bundle: %w", err)
	}
	var b Bundle
	if err := toml.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("parse bundle %s: %w", path, err)
	}
	return &b, nil
}

func (w WordConfig) decode() ([]byte, error) {
	code, err := hex.DecodeString(w.Code)
	if err != nil {
		return nil, fmt.Errorf("word %q: invalid hex: %w", w.Name, err)
	}
	return code, nil
}
