// Copyright 2021 Nick White.
// Use of this source code is governed by the GPLv3
// license that can be found in the LICENSE file.

package spotfind

import "rescribe.xyz/spotpipeline/integralimg"

// Stats holds per-pixel local-neighbourhood statistics for one
// frame: the sum, and optionally the sum of squares, of the window
// around each pixel, in row-major arrays matching the frame
// dimensions. Strong is nil until Flag has been run.
type Stats struct {
	Slow, Fast                int
	KernelWidth, KernelHeight int
	Sum                       []uint64
	SumSq                     []uint64
	Strong                    []bool
}

// BruteForceSum computes the windowed sum and sum of squares for
// every pixel by adding up its neighbourhood directly, clamping the
// window to the frame edges so that border pixels use smaller
// windows rather than any padding. It costs the full window area
// per pixel, and exists to define the ground truth that the other
// calculators are checked against.
func BruteForceSum(data []uint16, slow, fast, kw, kh int) *Stats {
	s := Stats{
		Slow: slow, Fast: fast,
		KernelWidth: kw, KernelHeight: kh,
		Sum:   make([]uint64, slow*fast),
		SumSq: make([]uint64, slow*fast),
	}

	for y := 0; y < slow; y++ {
		y0, y1 := y-kh, y+kh
		if y0 < 0 {
			y0 = 0
		}
		if y1 > slow-1 {
			y1 = slow - 1
		}
		for x := 0; x < fast; x++ {
			x0, x1 := x-kw, x+kw
			if x0 < 0 {
				x0 = 0
			}
			if x1 > fast-1 {
				x1 = fast - 1
			}
			var sum, sq uint64
			for yi := y0; yi <= y1; yi++ {
				for xi := x0; xi <= x1; xi++ {
					p := uint64(data[yi*fast+xi])
					sum += p
					sq += p * p
				}
			}
			s.Sum[y*fast+x] = sum
			s.SumSq[y*fast+x] = sq
		}
	}
	return &s
}

// IntegralSum computes the same clamped windowed statistics as
// BruteForceSum using summed-area tables: one pass to build the
// tables, then four lookups per pixel however large the window is.
// Its output is pixel-exact equal to BruteForceSum for every input.
func IntegralSum(data []uint16, slow, fast, kw, kh int) *Stats {
	s := Stats{
		Slow: slow, Fast: fast,
		KernelWidth: kw, KernelHeight: kh,
		Sum:   make([]uint64, slow*fast),
		SumSq: make([]uint64, slow*fast),
	}

	integrals := integralimg.ToAllIntegralImg(data, slow, fast)

	for y := 0; y < slow; y++ {
		for x := 0; x < fast; x++ {
			s.Sum[y*fast+x] = integrals.Img.Window(x, y, kw, kh)
			s.SumSq[y*fast+x] = integrals.Sq.Window(x, y, kw, kh)
		}
	}
	return &s
}
