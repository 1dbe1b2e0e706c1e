package emu

import (
	akitacache "github.com/sarchlab/akita/v4/mem/cache"

	"github.com/d-iii-s/msim-sub002/insts"
	"github.com/d-iii-s/msim-sub002/physmem"
)

// WordsPerFrame is the number of instruction words in one physical frame.
const WordsPerFrame = physmem.FrameSize / 4

// FrameCacheConfig holds frame cache parameters.
type FrameCacheConfig struct {
	// Frames is the total number of decoded frames kept.
	Frames int
	// Associativity (number of ways)
	Associativity int
}

// DefaultFrameCacheConfig returns the default frame cache geometry:
// 256 frames (1 MiB of code), 8-way.
func DefaultFrameCacheConfig() FrameCacheConfig {
	return FrameCacheConfig{
		Frames:        256,
		Associativity: 8,
	}
}

// DecodedFrame is one physical frame together with the decoded operation
// of every word in it.
type DecodedFrame struct {
	// Addr is the physical address of the frame.
	Addr  uint64
	Words [WordsPerFrame]insts.Word
	Ops   [WordsPerFrame]insts.Op

	valid bool
}

// Valid reports whether the decoded ops match memory.
func (f *DecodedFrame) Valid() bool {
	return f.valid
}

// FrameCacheStats holds frame cache statistics.
type FrameCacheStats struct {
	Lookups       uint64
	Hits          uint64
	Misses        uint64
	Decodes       uint64
	Invalidations uint64
	Evictions     uint64
}

// FrameCache keeps decoded physical frames, using an Akita cache directory
// with LRU replacement to decide which frames stay resident.
type FrameCache struct {
	config    FrameCacheConfig
	directory *akitacache.DirectoryImpl

	// frames is indexed by (setID * associativity + wayID)
	frames []*DecodedFrame

	mem     *physmem.Memory
	decoder *insts.Decoder
	stats   FrameCacheStats
}

// NewFrameCache creates a frame cache over mem and subscribes it to frame
// change notifications.
func NewFrameCache(config FrameCacheConfig, mem *physmem.Memory, decoder *insts.Decoder) *FrameCache {
	if config.Associativity <= 0 {
		config.Associativity = 1
	}
	if config.Frames < config.Associativity {
		config.Frames = config.Associativity
	}
	numSets := config.Frames / config.Associativity

	frames := make([]*DecodedFrame, numSets*config.Associativity)
	for i := range frames {
		frames[i] = &DecodedFrame{}
	}

	c := &FrameCache{
		config: config,
		directory: akitacache.NewDirectory(
			numSets,
			config.Associativity,
			physmem.FrameSize,
			akitacache.NewLRUVictimFinder(),
		),
		frames:  frames,
		mem:     mem,
		decoder: decoder,
	}
	mem.Subscribe(c)

	return c
}

// Config returns the frame cache configuration.
func (c *FrameCache) Config() FrameCacheConfig {
	return c.config
}

// Stats returns frame cache statistics.
func (c *FrameCache) Stats() FrameCacheStats {
	return c.stats
}

func (c *FrameCache) blockIndex(block *akitacache.Block) int {
	return block.SetID*c.config.Associativity + block.WayID
}

// Fetch returns the decoded frame holding phys. It reports false when no
// memory backs the address.
func (c *FrameCache) Fetch(phys uint64) (*DecodedFrame, bool) {
	c.stats.Lookups++

	src := c.mem.FindFrame(phys)
	if src == nil {
		return nil, false
	}
	frameAddr := src.Addr()

	block := c.directory.Lookup(0, frameAddr)
	if block != nil && block.IsValid {
		c.stats.Hits++
		c.directory.Visit(block)

		f := c.frames[c.blockIndex(block)]
		if !f.valid {
			c.decode(f, src)
		}
		return f, true
	}

	c.stats.Misses++

	victim := c.directory.FindVictim(frameAddr)
	if victim.IsValid {
		c.stats.Evictions++
	}
	victim.Tag = frameAddr
	victim.IsValid = true
	victim.IsDirty = false
	c.directory.Visit(victim)

	f := c.frames[c.blockIndex(victim)]
	f.Addr = frameAddr
	c.decode(f, src)

	return f, true
}

// Refresh decodes f again if memory changed under it.
func (c *FrameCache) Refresh(f *DecodedFrame) bool {
	if f.valid {
		return true
	}
	src := c.mem.FindFrame(f.Addr)
	if src == nil {
		return false
	}
	c.decode(f, src)
	return true
}

func (c *FrameCache) decode(f *DecodedFrame, src *physmem.Frame) {
	c.stats.Decodes++

	for i := range f.Words {
		w := insts.Word(src.Word32(uint64(i) * 4))
		f.Words[i] = w
		f.Ops[i] = c.decoder.Decode(w)
	}
	f.valid = true
}

// InvalidateFrame marks the decoded copy of frame pfn stale. It is called
// by physical memory on every write.
func (c *FrameCache) InvalidateFrame(pfn uint64) {
	block := c.directory.Lookup(0, pfn<<physmem.FrameWidth)
	if block == nil || !block.IsValid {
		return
	}

	f := c.frames[c.blockIndex(block)]
	if f.valid {
		c.stats.Invalidations++
		f.valid = false
	}
}

// Flush marks every decoded frame stale.
func (c *FrameCache) Flush() {
	for _, f := range c.frames {
		f.valid = false
	}
}

// Reset drops every frame and clears statistics.
func (c *FrameCache) Reset() {
	c.directory.Reset()
	for _, f := range c.frames {
		f.valid = false
	}
	c.stats = FrameCacheStats{}
}

// Close unsubscribes the cache from memory notifications.
func (c *FrameCache) Close() {
	c.mem.Unsubscribe(c)
}
