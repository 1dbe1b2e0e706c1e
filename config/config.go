// Package config holds the machine description the simulator is built
// from.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/d-iii-s/msim-sub002/emu"
	"github.com/d-iii-s/msim-sub002/physmem"
)

// ErrInvalid is wrapped by every validation error.
var ErrInvalid = errors.New("invalid machine configuration")

// MaxCPUs is the largest number of processors a machine may have.
const MaxCPUs = 32

// Trace formats.
const (
	TraceText = "text"
	TraceJSON = "json"
)

// MemoryArea describes one block of physical memory.
type MemoryArea struct {
	// Start is the physical address of the first byte. Must be frame
	// aligned.
	Start uint64 `json:"start"`

	// Size is the area size in bytes. Must be a multiple of the frame
	// size.
	Size uint64 `json:"size"`

	// Writable selects RAM. Read-only areas are ROM.
	Writable bool `json:"writable"`

	// Image is an optional file copied to the start of the area.
	Image string `json:"image,omitempty"`
}

// MachineConfig describes the simulated machine.
type MachineConfig struct {
	// CPUs is the number of processors. Default: 1.
	CPUs int `json:"cpus"`

	// MemoryAreas lists the physical memory blocks.
	// Default: 16 MiB of RAM at 0 and 64 KiB of RAM at the reset vector.
	MemoryAreas []MemoryArea `json:"memory_areas"`

	// FrameCacheFrames is the number of decoded frames each processor
	// keeps. Default: 256.
	FrameCacheFrames int `json:"frame_cache_frames"`

	// FrameCacheWays is the frame cache associativity. Default: 8.
	FrameCacheWays int `json:"frame_cache_ways"`

	// SpecificInstructions enables the simulator control instructions.
	// Default: true.
	SpecificInstructions bool `json:"specific_instructions"`

	// Trace turns instruction tracing on from the start.
	Trace bool `json:"trace"`

	// TraceFormat is "text" or "json". Default: "text".
	TraceFormat string `json:"trace_format"`

	// MaxSteps stops the machine after that many steps. 0 means no limit.
	MaxSteps uint64 `json:"max_steps"`

	// StartAddress overrides the entry point. 0 keeps the ELF entry point,
	// or the reset vector when no image is loaded.
	StartAddress uint64 `json:"start_address"`
}

// DefaultMachineConfig returns the configuration used when no file is
// given.
func DefaultMachineConfig() *MachineConfig {
	frames := emu.DefaultFrameCacheConfig()
	return &MachineConfig{
		CPUs: 1,
		MemoryAreas: []MemoryArea{
			{Start: 0, Size: 16 << 20, Writable: true},
			{Start: 0x1fc00000, Size: 64 << 10, Writable: true},
		},
		FrameCacheFrames:     frames.Frames,
		FrameCacheWays:       frames.Associativity,
		SpecificInstructions: true,
		TraceFormat:          TraceText,
	}
}

// LoadConfig loads a MachineConfig from a JSON file. Fields missing from
// the file keep their defaults.
func LoadConfig(path string) (*MachineConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read machine config file: %w", err)
	}

	config := DefaultMachineConfig()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse machine config: %w", err)
	}

	return config, nil
}

// SaveConfig writes a MachineConfig to a JSON file.
func (c *MachineConfig) SaveConfig(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize machine config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write machine config file: %w", err)
	}

	return nil
}

// Validate checks the configuration for values the machine cannot be
// built from.
func (c *MachineConfig) Validate() error {
	if c.CPUs <= 0 || c.CPUs > MaxCPUs {
		return fmt.Errorf("%w: cpus must be between 1 and %d", ErrInvalid, MaxCPUs)
	}
	if len(c.MemoryAreas) == 0 {
		return fmt.Errorf("%w: at least one memory area is required", ErrInvalid)
	}

	for i, a := range c.MemoryAreas {
		if a.Size == 0 || a.Size&physmem.FrameMask != 0 || a.Start&physmem.FrameMask != 0 {
			return fmt.Errorf("%w: memory area %d must be aligned to %d bytes", ErrInvalid, i, physmem.FrameSize)
		}
		for j, b := range c.MemoryAreas[:i] {
			if a.Start < b.Start+b.Size && b.Start < a.Start+a.Size {
				return fmt.Errorf("%w: memory areas %d and %d overlap", ErrInvalid, j, i)
			}
		}
	}

	if c.FrameCacheWays <= 0 {
		return fmt.Errorf("%w: frame_cache_ways must be > 0", ErrInvalid)
	}
	if c.FrameCacheFrames < c.FrameCacheWays || c.FrameCacheFrames%c.FrameCacheWays != 0 {
		return fmt.Errorf("%w: frame_cache_frames must be a multiple of frame_cache_ways", ErrInvalid)
	}

	if c.TraceFormat != TraceText && c.TraceFormat != TraceJSON {
		return fmt.Errorf("%w: trace_format must be %q or %q", ErrInvalid, TraceText, TraceJSON)
	}
	if c.StartAddress&3 != 0 {
		return fmt.Errorf("%w: start_address must be word aligned", ErrInvalid)
	}

	return nil
}

// Clone returns a deep copy of the MachineConfig.
func (c *MachineConfig) Clone() *MachineConfig {
	clone := *c
	clone.MemoryAreas = append([]MemoryArea(nil), c.MemoryAreas...)
	return &clone
}

// FrameCacheConfig returns the frame cache geometry for each processor.
func (c *MachineConfig) FrameCacheConfig() emu.FrameCacheConfig {
	return emu.FrameCacheConfig{
		Frames:        c.FrameCacheFrames,
		Associativity: c.FrameCacheWays,
	}
}

// CPUOptions returns the processor options the configuration implies.
func (c *MachineConfig) CPUOptions() []emu.CPUOption {
	return []emu.CPUOption{
		emu.WithFrameCacheConfig(c.FrameCacheConfig()),
		emu.WithSpecificInstructions(c.SpecificInstructions),
		emu.WithTrace(c.Trace),
	}
}

// BuildMemory creates the physical memory and loads the area images.
func (c *MachineConfig) BuildMemory() (*physmem.Memory, error) {
	mem := physmem.NewMemory()
	for i, a := range c.MemoryAreas {
		if err := addArea(mem, a); err != nil {
			return nil, fmt.Errorf("memory area %d: %w", i, err)
		}
	}
	return mem, nil
}

func addArea(mem *physmem.Memory, a MemoryArea) error {
	var image []byte
	if a.Image != "" {
		var err error
		image, err = os.ReadFile(a.Image)
		if err != nil {
			return fmt.Errorf("failed to read image: %w", err)
		}
		if uint64(len(image)) > a.Size {
			return fmt.Errorf("%w: image %s is larger than the area", ErrInvalid, a.Image)
		}
	}

	if !a.Writable {
		data := make([]byte, a.Size)
		copy(data, image)
		_, err := mem.AddROM(a.Start, data)
		return err
	}

	if _, err := mem.AddRAM(a.Start, a.Size); err != nil {
		return err
	}
	return mem.Load(a.Start, image)
}
