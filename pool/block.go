// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package pool

import (
	"encoding/binary"
	"log/slog"
	"sync"
	"unsafe"

	"code.hybscloud.com/atomix"
)

// MaxAlign is the largest alignment served from pool blocks. Requests with a
// larger alignment go to the fallback allocator.
const MaxAlign = 16

// linkSize is the room reserved at the start of a free block for the
// intrusive free-list link.
const linkSize = 8

// BlockPool is a chunked fixed-size block allocator with a bounded arena.
//
// Blocks are carved from large chunks. A free block stores the packed id of
// the next free block in its first 8 bytes; the link is meaningless once the
// block is handed out. When the free list is empty a new chunk holding about
// a quarter of MaxBlocks is carved, until MaxBlocks blocks exist.
//
// Requests larger than the block size or with an alignment above MaxAlign
// are served by the fallback allocator (the Go heap) and never fail on the
// size or alignment constraint.
//
// Free-list mutation and chunk growth are serialized by one mutex. The
// allocated-blocks counter is atomic and may be read at any time.
type BlockPool struct {
	blockSize int
	stride    int
	maxBlocks int

	mu     sync.Mutex
	free   uint64 // packed id + 1 of the first free block, 0 when empty
	chunks []chunk
	carved int
	closed bool

	allocated atomix.Int64
	fallbacks atomix.Int64

	logger *slog.Logger
}

type chunk struct {
	mem    []byte  // aligned view over the chunk, blocks*stride bytes
	base   uintptr // address of mem[0]
	blocks int
}

// BlockStats is a point-in-time view of a BlockPool.
type BlockStats struct {
	BlockSize int   `json:"block_size"`
	MaxBlocks int   `json:"max_blocks"`
	Allocated int64 `json:"allocated"`
	Carved    int   `json:"carved"`
	Chunks    int   `json:"chunks"`
	Fallbacks int64 `json:"fallbacks"`
}

// NewBlockPool creates a pool of blockSize-byte blocks holding at most
// maxBlocks blocks. No memory is carved until the first Acquire.
func NewBlockPool(blockSize, maxBlocks int, opts ...Option) (*BlockPool, error) {
	if blockSize <= 0 {
		return nil, errInvalidConfig("block size must be > 0")
	}
	if maxBlocks <= 0 {
		return nil, errInvalidConfig("max blocks must be > 0")
	}
	o := buildOptions(opts)
	return &BlockPool{
		blockSize: blockSize,
		stride:    alignUp(max(blockSize, linkSize), MaxAlign),
		maxBlocks: maxBlocks,
		logger:    o.logger,
	}, nil
}

// Acquire returns a block of len size aligned to align.
//
// Returns ErrOutOfCapacity when the pool is at its maximum and no block is
// free, ErrPoolClosed after Close, and ErrInvalidAlignment when align is
// not a power of two.
func (p *BlockPool) Acquire(align, size int) ([]byte, error) {
	if align <= 0 || align&(align-1) != 0 {
		return nil, ErrInvalidAlignment
	}
	if size < 0 {
		return nil, ErrInvalidSize
	}
	if p.isFallback(align, size) {
		p.fallbacks.Add(1)
		return fallbackAlloc(align, size), nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, ErrPoolClosed
	}
	if p.free == 0 {
		if err := p.grow(); err != nil {
			return nil, err
		}
	}

	id := p.free - 1
	b := p.block(id)
	p.free = binary.LittleEndian.Uint64(b[:linkSize])
	clear(b[:linkSize])
	p.allocated.Add(1)
	return b[:size:size], nil
}

// Release returns a block obtained from Acquire with the same size and
// alignment. Releasing after Close panics.
func (p *BlockPool) Release(b []byte, size, align int) {
	if p.isFallback(align, size) {
		// The Go collector owns fallback memory.
		return
	}
	ptr := unsafe.SliceData(b)
	if ptr == nil {
		return
	}
	addr := uintptr(unsafe.Pointer(ptr))

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		panic("pool: release after close")
	}
	id, ok := p.locate(addr)
	if !ok {
		panic("pool: release of a block not owned by this pool")
	}
	blk := p.block(id)
	binary.LittleEndian.PutUint64(blk[:linkSize], p.free)
	p.free = id + 1
	p.allocated.Add(-1)
}

// Close drops every chunk. The pool cannot be used afterwards.
func (p *BlockPool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	p.chunks = nil
	p.free = 0
	p.logger.Debug("pool: block pool closed",
		slog.Int("carved", p.carved),
		slog.Int64("allocated", p.allocated.Load()))
}

// Allocated returns the number of pool blocks currently handed out.
// Fallback allocations are not counted.
func (p *BlockPool) Allocated() int {
	return int(p.allocated.Load())
}

// BlockSize returns the configured block size.
func (p *BlockPool) BlockSize() int { return p.blockSize }

// MaxBlocks returns the configured maximum block count.
func (p *BlockPool) MaxBlocks() int { return p.maxBlocks }

// Stats returns a snapshot of the pool counters.
func (p *BlockPool) Stats() BlockStats {
	p.mu.Lock()
	carved, chunks := p.carved, len(p.chunks)
	p.mu.Unlock()
	return BlockStats{
		BlockSize: p.blockSize,
		MaxBlocks: p.maxBlocks,
		Allocated: p.allocated.Load(),
		Carved:    carved,
		Chunks:    chunks,
		Fallbacks: p.fallbacks.Load(),
	}
}

func (p *BlockPool) isFallback(align, size int) bool {
	return size > p.blockSize || align > MaxAlign
}

// grow carves a new chunk and links its blocks into the free list.
// Caller holds p.mu.
func (p *BlockPool) grow() error {
	n := growBy(p.maxBlocks, p.carved)
	if n == 0 {
		p.logger.Warn("pool: block pool exhausted",
			slog.Int("block_size", p.blockSize),
			slog.Int("max_blocks", p.maxBlocks))
		return ErrOutOfCapacity
	}

	raw := make([]byte, n*p.stride+MaxAlign)
	off := alignUp(int(uintptr(unsafe.Pointer(unsafe.SliceData(raw)))), MaxAlign) -
		int(uintptr(unsafe.Pointer(unsafe.SliceData(raw))))
	mem := raw[off : off+n*p.stride : off+n*p.stride]

	ci := uint64(len(p.chunks))
	p.chunks = append(p.chunks, chunk{
		mem:    mem,
		base:   uintptr(unsafe.Pointer(unsafe.SliceData(mem))),
		blocks: n,
	})
	for i := range n {
		next := p.free
		if i < n-1 {
			next = packID(ci, uint64(i+1)) + 1
		}
		binary.LittleEndian.PutUint64(mem[i*p.stride:], next)
	}
	p.free = packID(ci, 0) + 1
	p.carved += n

	p.logger.Debug("pool: carved chunk",
		slog.Int("blocks", n),
		slog.Int("carved", p.carved),
		slog.Int("max_blocks", p.maxBlocks))
	return nil
}

func (p *BlockPool) block(id uint64) []byte {
	c := &p.chunks[id>>32]
	off := int(id&0xffffffff) * p.stride
	return c.mem[off : off+p.stride : off+p.stride]
}

// locate maps a block address back to its packed id. There are at most a
// handful of chunks (each holds a quarter of MaxBlocks), so a linear scan
// is enough. Caller holds p.mu.
func (p *BlockPool) locate(addr uintptr) (uint64, bool) {
	for ci := range p.chunks {
		c := &p.chunks[ci]
		end := c.base + uintptr(c.blocks*p.stride)
		if addr < c.base || addr >= end {
			continue
		}
		off := addr - c.base
		if off%uintptr(p.stride) != 0 {
			return 0, false
		}
		return packID(uint64(ci), uint64(off/uintptr(p.stride))), true
	}
	return 0, false
}

func packID(chunkIdx, blockIdx uint64) uint64 {
	return chunkIdx<<32 | blockIdx
}

// growBy returns how many slots the next chunk holds: about a quarter of
// maxBlocks, clamped to what is left. Zero means the pool is at capacity.
func growBy(maxBlocks, carved int) int {
	remaining := maxBlocks - carved
	if remaining <= 0 {
		return 0
	}
	return min(remaining, max(1, maxBlocks/4))
}

func fallbackAlloc(align, size int) []byte {
	raw := make([]byte, size+align)
	base := int(uintptr(unsafe.Pointer(unsafe.SliceData(raw))))
	off := alignUp(base, align) - base
	return raw[off : off+size : off+size]
}

func alignUp(n, align int) int {
	return (n + align - 1) &^ (align - 1)
}
