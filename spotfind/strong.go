// Copyright 2021 Nick White.
// Use of this source code is governed by the GPLv3
// license that can be found in the LICENSE file.

package spotfind

import (
	"errors"
	"fmt"
	"math"
)

// Thresholder decides whether a pixel stands out from its local
// neighbourhood, given the pixel value, the windowed sum and sum of
// squares around it, and the number n of pixels in the window. The
// statistics engines have no opinion on what makes a pixel strong;
// the policy lives entirely in functions of this type.
type Thresholder func(pixel uint16, sum, sumsq uint64, n int) bool

// DispersionThreshold returns a Thresholder implementing the index
// of dispersion test used for diffraction spot finding: a pixel is
// strong when the variance of its neighbourhood exceeds its mean by
// more than nsig standard deviations of the dispersion expected
// from counting statistics, and the pixel itself sits above the
// neighbourhood mean.
func DispersionThreshold(nsig float64) Thresholder {
	return func(pixel uint16, sum, sumsq uint64, n int) bool {
		if n < 2 || sum == 0 {
			return false
		}
		mean := float64(sum) / float64(n)
		variance := (float64(sumsq) - float64(sum)*mean) / float64(n-1)
		if variance <= 0 {
			return false
		}
		dispersion := variance / mean
		cutoff := 1 + nsig*math.Sqrt(2/float64(n-1))
		return dispersion > cutoff && float64(pixel) > mean
	}
}

// area is the number of pixels a window centred on (x, y) covers
// once clamped to the frame
func (s *Stats) area(x, y int) int {
	x0, x1 := x-s.KernelWidth, x+s.KernelWidth
	y0, y1 := y-s.KernelHeight, y+s.KernelHeight
	if x0 < 0 {
		x0 = 0
	}
	if y0 < 0 {
		y0 = 0
	}
	if x1 > s.Fast-1 {
		x1 = s.Fast - 1
	}
	if y1 > s.Slow-1 {
		y1 = s.Slow - 1
	}
	return (x1 - x0 + 1) * (y1 - y0 + 1)
}

// Flag fills in the Strong array by applying a Thresholder to every
// pixel of the frame the statistics were computed from. Pixels
// marked invalid in the validity mask are never strong; a nil mask
// treats every pixel as valid.
func (s *Stats) Flag(data []uint16, valid []bool, t Thresholder) error {
	if s.SumSq == nil {
		return errors.New("Error flagging pixels: statistics have no sum of squares")
	}
	if len(data) != s.Slow*s.Fast {
		return fmt.Errorf("Error flagging pixels: frame has %d pixels, expected %dx%d", len(data), s.Slow, s.Fast)
	}
	if valid != nil && len(valid) != len(data) {
		return fmt.Errorf("Error flagging pixels: mask has %d entries for %d pixels", len(valid), len(data))
	}

	s.Strong = make([]bool, len(data))
	for i := range data {
		if valid != nil && !valid[i] {
			continue
		}
		s.Strong[i] = t(data[i], s.Sum[i], s.SumSq[i], s.area(i%s.Fast, i/s.Fast))
	}
	return nil
}

// StrongCount returns the number of pixels flagged strong.
func (s *Stats) StrongCount() int {
	var n int
	for _, strong := range s.Strong {
		if strong {
			n++
		}
	}
	return n
}
