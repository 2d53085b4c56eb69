// Copyright 2021 Nick White.
// Use of this source code is governed by the GPLv3
// license that can be found in the LICENSE file.

// integralimg provides summed-area tables over detector frames,
// which allow the sum of any rectangular window of pixels to be
// found with four lookups regardless of the window size.
package integralimg

import "math"

// I is the Integral Image, an inclusive 2D prefix sum table; the
// entry at [y][x] holds the sum of every pixel at or above-left of
// (x, y).
type I [][]uint64

// WithSq contains an Integral Image and its Square
type WithSq struct {
	Img I
	Sq  I
}

// ToIntegralImg creates an integral image from a flat row-major
// frame of fast x slow pixels
func ToIntegralImg(data []uint16, slow, fast int) I {
	integral := make(I, slow)
	for y := 0; y < slow; y++ {
		integral[y] = make([]uint64, fast)
		var rowsum uint64
		for x := 0; x < fast; x++ {
			rowsum += uint64(data[y*fast+x])
			integral[y][x] = rowsum
			if y > 0 {
				integral[y][x] += integral[y-1][x]
			}
		}
	}
	return integral
}

// ToSqIntegralImg creates an integral image of the square of all
// pixel values
func ToSqIntegralImg(data []uint16, slow, fast int) I {
	integral := make(I, slow)
	for y := 0; y < slow; y++ {
		integral[y] = make([]uint64, fast)
		var rowsum uint64
		for x := 0; x < fast; x++ {
			p := uint64(data[y*fast+x])
			rowsum += p * p
			integral[y][x] = rowsum
			if y > 0 {
				integral[y][x] += integral[y-1][x]
			}
		}
	}
	return integral
}

// ToAllIntegralImg creates a WithSq containing a regular and
// squared Integral Image
func ToAllIntegralImg(data []uint16, slow, fast int) WithSq {
	var s WithSq
	s.Img = ToIntegralImg(data, slow, fast)
	s.Sq = ToSqIntegralImg(data, slow, fast)
	return s
}

// at reads a table entry, treating anything above or left of the
// frame as zero so that four-corner queries work at the borders
func (i I) at(x, y int) uint64 {
	if x < 0 || y < 0 {
		return 0
	}
	return i[y][x]
}

// clamp limits a window of half-width kw and half-height kh centred
// on (x, y) to the frame bounds
func (i I) clamp(x, y, kw, kh int) (x0, y0, x1, y1 int) {
	slow := len(i)
	fast := len(i[0])

	x0, y0 = x-kw, y-kh
	x1, y1 = x+kw, y+kh
	if x0 < 0 {
		x0 = 0
	}
	if y0 < 0 {
		y0 = 0
	}
	if x1 > fast-1 {
		x1 = fast - 1
	}
	if y1 > slow-1 {
		y1 = slow - 1
	}
	return
}

// Window returns the sum over a window of half-width kw and
// half-height kh centred on (x, y), clamped to the frame bounds:
// windows near an edge cover only the pixels that exist, with no
// padding.
func (i I) Window(x, y, kw, kh int) uint64 {
	x0, y0, x1, y1 := i.clamp(x, y, kw, kh)
	return i.at(x1, y1) - i.at(x0-1, y1) - i.at(x1, y0-1) + i.at(x0-1, y0-1)
}

// WindowArea returns the number of pixels covered by a clamped
// window centred on (x, y).
func (i I) WindowArea(x, y, kw, kh int) int {
	x0, y0, x1, y1 := i.clamp(x, y, kw, kh)
	return (x1 - x0 + 1) * (y1 - y0 + 1)
}

// MeanWindow calculates the mean value of a clamped window centred
// on (x, y)
func (i I) MeanWindow(x, y, kw, kh int) float64 {
	return float64(i.Window(x, y, kw, kh)) / float64(i.WindowArea(x, y, kw, kh))
}

// MeanStdDevWindow calculates the mean and standard deviation of
// a clamped window centred on (x, y)
func (i WithSq) MeanStdDevWindow(x, y, kw, kh int) (float64, float64) {
	imean := i.Img.MeanWindow(x, y, kw, kh)
	smean := i.Sq.MeanWindow(x, y, kw, kh)

	variance := smean - (imean * imean)

	return imean, math.Sqrt(variance)
}
