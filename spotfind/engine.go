// Copyright 2021 Nick White.
// Use of this source code is governed by the GPLv3
// license that can be found in the LICENSE file.

// spotfind computes local-neighbourhood statistics for detector
// images, to find statistically anomalous "strong" pixels that are
// candidate diffraction signal. The streaming Engine computes the
// windowed sum and sum of squares around every pixel in amortised
// constant work per pixel; BruteForceSum and IntegralSum compute the
// same statistics more simply, and are used to validate it.
package spotfind

import "fmt"

// DefaultBlockSize is the number of pixels streamed at a time if no
// block size is configured.
const DefaultBlockSize = 16

// blockDepth is the capacity of the channel between the block
// producer and the engine; the producer suspends once it is this
// many blocks ahead of the consumer.
const blockDepth = 5

// Config sets up an Engine.
type Config struct {
	Slow, Fast   int  // image dimensions in pixels
	BlockSize    int  // pixels per streamed block; must be a power of two
	KernelWidth  int  // window half-width; the full span is 2*KernelWidth+1
	KernelHeight int  // window half-height; the full span is 2*KernelHeight+1
	Squares      bool // also accumulate sums of squared pixel values
}

// Engine computes windowed sums over a frame streamed through it in
// blocks. It holds a rolling pixel buffer wide enough for the kernel
// overlap plus two blocks, and a ring of 2*KernelHeight+1 rows of
// cumulative vertical sums per block column; the windowed sum for a
// pixel is then one add and one subtract on top of a small fixed
// horizontal convolution.
//
// An Engine is not safe for concurrent use; run one engine per lane.
type Engine struct {
	cfg        Config
	fullBlocks int // full blocks across the image; trailing columns are dropped
	height     int // rows in the ring store: 2*KernelHeight+1

	interim []uint16 // rolling pixel buffer, 2*BlockSize+KernelWidth wide
	horiz   []uint64 // horizontal window sums for the block being emitted
	horizSq []uint64
	rows    [][]uint64 // ring of cumulative vertical sums per block column
	rowsSq  [][]uint64
}

func isPowerOfTwo(x int) bool {
	return x > 0 && x&(x-1) == 0
}

// NewEngine validates the configuration and allocates the engine
// buffers. The two-block rolling buffer only works if the kernel
// half-width is smaller than the block size, so that is rejected
// here, as is a block size that is not a power of two.
func NewEngine(cfg Config) (*Engine, error) {
	if cfg.BlockSize == 0 {
		cfg.BlockSize = DefaultBlockSize
	}
	if !isPowerOfTwo(cfg.BlockSize) {
		return nil, fmt.Errorf("Error: block size %d is not a power of two", cfg.BlockSize)
	}
	if cfg.KernelWidth < 0 || cfg.KernelHeight < 0 {
		return nil, fmt.Errorf("Error: negative kernel half-size %dx%d", cfg.KernelWidth, cfg.KernelHeight)
	}
	if cfg.KernelWidth >= cfg.BlockSize {
		return nil, fmt.Errorf("Error: kernel half-width %d must be smaller than block size %d", cfg.KernelWidth, cfg.BlockSize)
	}
	if cfg.Slow < 1 || cfg.Fast < cfg.BlockSize {
		return nil, fmt.Errorf("Error: image of %dx%d pixels is too small for %d pixel blocks", cfg.Slow, cfg.Fast, cfg.BlockSize)
	}

	e := Engine{
		cfg:        cfg,
		fullBlocks: cfg.Fast / cfg.BlockSize,
		height:     2*cfg.KernelHeight + 1,
		interim:    make([]uint16, 2*cfg.BlockSize+cfg.KernelWidth),
		horiz:      make([]uint64, cfg.BlockSize),
	}
	e.rows = make([][]uint64, e.height)
	for i := range e.rows {
		e.rows[i] = make([]uint64, e.fullBlocks*cfg.BlockSize)
	}
	if cfg.Squares {
		e.horizSq = make([]uint64, cfg.BlockSize)
		e.rowsSq = make([][]uint64, e.height)
		for i := range e.rowsSq {
			e.rowsSq[i] = make([]uint64, e.fullBlocks*cfg.BlockSize)
		}
	}
	return &e, nil
}

// ProcessFrame streams one frame through the engine and returns its
// windowed statistics. Output lags the input by KernelHeight rows:
// the first KernelHeight input rows only prime the accumulators, so
// the final KernelHeight rows of the output are never written, and
// neither are the pixels of the final block of each row nor any
// columns beyond the last full block. All accumulator state is
// zeroed at the start of the frame, so rerunning over the same data
// gives identical results.
//
// Blocks are consumed in strict row-major, left to right order; the
// vertical recurrence depends on it.
func (e *Engine) ProcessFrame(data []uint16) (*Stats, error) {
	cfg := e.cfg
	if len(data) != cfg.Slow*cfg.Fast {
		return nil, fmt.Errorf("Error: frame has %d pixels, expected %dx%d", len(data), cfg.Slow, cfg.Fast)
	}

	for _, r := range e.rows {
		for i := range r {
			r[i] = 0
		}
	}
	for _, r := range e.rowsSq {
		for i := range r {
			r[i] = 0
		}
	}

	out := Stats{
		Slow: cfg.Slow, Fast: cfg.Fast,
		KernelWidth: cfg.KernelWidth, KernelHeight: cfg.KernelHeight,
		Sum: make([]uint64, cfg.Slow*cfg.Fast),
	}
	if cfg.Squares {
		out.SumSq = make([]uint64, cfg.Slow*cfg.Fast)
	}

	bs, kw, kh := cfg.BlockSize, cfg.KernelWidth, cfg.KernelHeight

	blocks := make(chan []uint16, blockDepth)
	go produceBlocks(data, cfg.Slow, cfg.Fast, bs, e.fullBlocks, blocks)

	for y := 0; y < cfg.Slow; y++ {
		for i := range e.interim {
			e.interim[i] = 0
		}
		// Read the first block in next to the kernel overlap; the
		// sums for it can only be done once the following block has
		// arrived, as its rightmost pixels depend on that.
		copy(e.interim[kw:kw+bs], <-blocks)

		prev := (y + e.height - 1) % e.height
		oldest := y % e.height

		for b := 0; b < e.fullBlocks-1; b++ {
			copy(e.interim[kw+bs:], <-blocks)

			// Horizontal pass: each pixel of the left block sums its
			// 2*KernelWidth+1 neighbours from the rolling buffer.
			for c := 0; c < bs; c++ {
				var sum, sq uint64
				for i := -kw; i <= kw; i++ {
					p := uint64(e.interim[kw+c+i])
					sum += p
					sq += p * p
				}
				e.horiz[c] = sum
				if cfg.Squares {
					e.horizSq[c] = sq
				}
			}

			// Shift left by a block, keeping the kernel overlap for
			// the next read.
			copy(e.interim[:kw+bs], e.interim[bs:])

			// Vertical pass: extend the cumulative column sums and
			// subtract the value recorded 2*KernelHeight+1 rows ago,
			// which leaves exactly the full window sum.
			off := b * bs
			for c := 0; c < bs; c++ {
				newRow := e.horiz[c] + e.rows[prev][off+c]
				kernel := newRow - e.rows[oldest][off+c]
				e.rows[oldest][off+c] = newRow
				if y >= kh {
					out.Sum[(y-kh)*cfg.Fast+off+c] = kernel
				}
			}
			if cfg.Squares {
				for c := 0; c < bs; c++ {
					newRow := e.horizSq[c] + e.rowsSq[prev][off+c]
					kernel := newRow - e.rowsSq[oldest][off+c]
					e.rowsSq[oldest][off+c] = newRow
					if y >= kh {
						out.SumSq[(y-kh)*cfg.Fast+off+c] = kernel
					}
				}
			}
		}
	}

	return &out, nil
}
