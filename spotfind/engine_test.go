// Copyright 2021 Nick White.
// Use of this source code is governed by the GPLv3
// license that can be found in the LICENSE file.

package spotfind

import (
	"testing"
)

// testFrame generates a deterministic pseudo-random frame, so that
// the engines can be compared on non-trivial data without carrying
// test fixtures around
func testFrame(slow, fast int) []uint16 {
	data := make([]uint16, slow*fast)
	seed := uint32(42)
	for i := range data {
		seed = seed*1664525 + 1013904223
		data[i] = uint16(seed >> 20)
	}
	return data
}

func TestEngineConfigErrors(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
	}{
		{"blocknotpoweroftwo", Config{Slow: 32, Fast: 36, BlockSize: 12, KernelWidth: 3, KernelHeight: 3}},
		{"negativekernel", Config{Slow: 32, Fast: 32, BlockSize: 16, KernelWidth: -1, KernelHeight: 3}},
		{"kernelwiderthanblock", Config{Slow: 32, Fast: 32, BlockSize: 16, KernelWidth: 16, KernelHeight: 3}},
		{"imagenarrowerthanblock", Config{Slow: 32, Fast: 8, BlockSize: 16, KernelWidth: 3, KernelHeight: 3}},
		{"noimage", Config{Slow: 0, Fast: 32, BlockSize: 16, KernelWidth: 3, KernelHeight: 3}},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := NewEngine(c.cfg)
			if err == nil {
				t.Fatalf("Expected an error for config %+v, got none", c.cfg)
			}
		})
	}
}

func TestEngineDefaultBlockSize(t *testing.T) {
	e, err := NewEngine(Config{Slow: 32, Fast: 32, KernelWidth: 3, KernelHeight: 3})
	if err != nil {
		t.Fatalf("Error creating engine: %v", err)
	}
	if e.cfg.BlockSize != DefaultBlockSize {
		t.Fatalf("Expected default block size %d, got %d", DefaultBlockSize, e.cfg.BlockSize)
	}
}

func TestEngineFlatFrame(t *testing.T) {
	slow, fast := 32, 32
	data := make([]uint16, slow*fast)
	for i := range data {
		data[i] = 1
	}

	e, err := NewEngine(Config{Slow: slow, Fast: fast, BlockSize: 16, KernelWidth: 3, KernelHeight: 3, Squares: true})
	if err != nil {
		t.Fatalf("Error creating engine: %v", err)
	}
	out, err := e.ProcessFrame(data)
	if err != nil {
		t.Fatalf("Error processing frame: %v", err)
	}

	// Away from every edge the window covers 7x7 pixels of value 1
	if got := out.Sum[10*fast+10]; got != 49 {
		t.Errorf("Expected interior sum 49, got %d", got)
	}
	if got := out.SumSq[10*fast+10]; got != 49 {
		t.Errorf("Expected interior sum of squares 49, got %d", got)
	}
	// The top left corner only sees the 4x4 pixels that exist
	if got := out.Sum[0]; got != 16 {
		t.Errorf("Expected corner sum 16, got %d", got)
	}
}

func TestEngineSinglePixel(t *testing.T) {
	slow, fast := 32, 32
	kw, kh := 3, 3
	data := make([]uint16, slow*fast)
	data[10*fast+10] = 1000

	e, err := NewEngine(Config{Slow: slow, Fast: fast, BlockSize: 16, KernelWidth: kw, KernelHeight: kh, Squares: true})
	if err != nil {
		t.Fatalf("Error creating engine: %v", err)
	}
	out, err := e.ProcessFrame(data)
	if err != nil {
		t.Fatalf("Error processing frame: %v", err)
	}

	// Only windows centred within kernel reach of (10, 10) contain
	// the pixel, so its value appears exactly on rows 7-13 and
	// columns 7-13 and nowhere else
	for y := 0; y < slow-kh; y++ {
		for x := 0; x < 16; x++ {
			want := uint64(0)
			if y >= 10-kh && y <= 10+kh && x >= 10-kw && x <= 10+kw {
				want = 1000
			}
			if got := out.Sum[y*fast+x]; got != want {
				t.Fatalf("Sum at (%d, %d) is %d, expected %d", y, x, got, want)
			}
			wantsq := want * 1000
			if got := out.SumSq[y*fast+x]; got != wantsq {
				t.Fatalf("Sum of squares at (%d, %d) is %d, expected %d", y, x, got, wantsq)
			}
		}
	}
}

// TestEngineMatchesBruteForce streams pseudo-random frames of
// various shapes through the engine and checks that every pixel it
// emits agrees exactly with direct summation. The engine never
// writes the last block of each row, any trailing columns beyond
// the last full block, or the final KernelHeight rows, so those
// stay zero.
func TestEngineMatchesBruteForce(t *testing.T) {
	cases := []struct {
		name       string
		slow, fast int
		bs, kw, kh int
	}{
		{"square", 32, 32, 16, 3, 3},
		{"threeblocks", 33, 48, 16, 3, 3},
		{"trailingcolumns", 32, 40, 16, 3, 3},
		{"smallblocks", 24, 32, 8, 2, 4},
		{"flatkernel", 20, 32, 16, 5, 0},
		{"pointkernel", 20, 32, 16, 0, 0},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			data := testFrame(c.slow, c.fast)

			e, err := NewEngine(Config{Slow: c.slow, Fast: c.fast, BlockSize: c.bs, KernelWidth: c.kw, KernelHeight: c.kh, Squares: true})
			if err != nil {
				t.Fatalf("Error creating engine: %v", err)
			}
			got, err := e.ProcessFrame(data)
			if err != nil {
				t.Fatalf("Error processing frame: %v", err)
			}
			want := BruteForceSum(data, c.slow, c.fast, c.kw, c.kh)

			fullBlocks := c.fast / c.bs
			emittedCols := (fullBlocks - 1) * c.bs
			emittedRows := c.slow - c.kh

			for y := 0; y < c.slow; y++ {
				for x := 0; x < c.fast; x++ {
					i := y*c.fast + x
					if y < emittedRows && x < emittedCols {
						if got.Sum[i] != want.Sum[i] {
							t.Fatalf("Sum at (%d, %d) is %d, expected %d", y, x, got.Sum[i], want.Sum[i])
						}
						if got.SumSq[i] != want.SumSq[i] {
							t.Fatalf("Sum of squares at (%d, %d) is %d, expected %d", y, x, got.SumSq[i], want.SumSq[i])
						}
					} else {
						if got.Sum[i] != 0 {
							t.Fatalf("Sum at (%d, %d) is %d, expected it to be unwritten", y, x, got.Sum[i])
						}
					}
				}
			}
		})
	}
}

// TestEngineRepeatable checks that an engine fully resets between
// frames, by processing the same frame twice and ensuring identical
// output.
func TestEngineRepeatable(t *testing.T) {
	slow, fast := 33, 48
	data := testFrame(slow, fast)

	e, err := NewEngine(Config{Slow: slow, Fast: fast, BlockSize: 16, KernelWidth: 3, KernelHeight: 3, Squares: true})
	if err != nil {
		t.Fatalf("Error creating engine: %v", err)
	}

	first, err := e.ProcessFrame(data)
	if err != nil {
		t.Fatalf("Error processing frame: %v", err)
	}
	second, err := e.ProcessFrame(data)
	if err != nil {
		t.Fatalf("Error processing frame again: %v", err)
	}

	for i := range first.Sum {
		if first.Sum[i] != second.Sum[i] {
			t.Fatalf("Sum at index %d changed between runs: %d then %d", i, first.Sum[i], second.Sum[i])
		}
		if first.SumSq[i] != second.SumSq[i] {
			t.Fatalf("Sum of squares at index %d changed between runs: %d then %d", i, first.SumSq[i], second.SumSq[i])
		}
	}
}

func TestEngineWrongFrameSize(t *testing.T) {
	e, err := NewEngine(Config{Slow: 32, Fast: 32, BlockSize: 16, KernelWidth: 3, KernelHeight: 3})
	if err != nil {
		t.Fatalf("Error creating engine: %v", err)
	}
	_, err = e.ProcessFrame(make([]uint16, 100))
	if err == nil {
		t.Fatal("Expected an error for a wrongly sized frame, got none")
	}
}
