// Copyright 2021 Nick White.
// Use of this source code is governed by the GPLv3
// license that can be found in the LICENSE file.

package spotpipeline

import "fmt"

// ModuleLayout describes the physical geometry of a tiled detector
// sensor: the pixel dimensions of one module, the size of the
// inactive gaps between modules, and the shape of the module grid.
// These are facts about the hardware, read from the tables below
// rather than derived, and are passed to the parts of the pipeline
// that need them.
type ModuleLayout struct {
	ModSlow, ModFast int // pixels per module
	GapSlow, GapFast int // inactive pixels between modules
	NumSlow, NumFast int // module grid shape
}

// Eiger2XE16M is the layout of the EIGER2 XE 16M detector.
var Eiger2XE16M = ModuleLayout{
	ModSlow: 512, ModFast: 1028,
	GapSlow: 38, GapFast: 12,
	NumSlow: 8, NumFast: 4,
}

// Eiger2XE4M is the layout of the EIGER2 XE 4M detector.
var Eiger2XE4M = ModuleLayout{
	ModSlow: 512, ModFast: 1028,
	GapSlow: 38, GapFast: 12,
	NumSlow: 4, NumFast: 2,
}

// layouts lists the supported detector geometries. An image which
// matches none of these sizes cannot be processed.
var layouts = []ModuleLayout{Eiger2XE16M, Eiger2XE4M}

// ImageSlow returns the full sensor height in pixels, gaps included.
func (l ModuleLayout) ImageSlow() int {
	return l.NumSlow*l.ModSlow + (l.NumSlow-1)*l.GapSlow
}

// ImageFast returns the full sensor width in pixels, gaps included.
func (l ModuleLayout) ImageFast() int {
	return l.NumFast*l.ModFast + (l.NumFast-1)*l.GapFast
}

// Modules returns the number of modules on the sensor.
func (l ModuleLayout) Modules() int {
	return l.NumSlow * l.NumFast
}

// ModulePixels returns the number of pixels in a single module.
func (l ModuleLayout) ModulePixels() int {
	return l.ModSlow * l.ModFast
}

// LayoutForDims finds the detector layout whose full sensor size
// matches the given image dimensions.
func LayoutForDims(slow, fast int) (ModuleLayout, error) {
	for _, l := range layouts {
		if l.ImageSlow() == slow && l.ImageFast() == fast {
			return l, nil
		}
	}
	return ModuleLayout{}, fmt.Errorf("Error: no supported detector layout with dimensions %dx%d", slow, fast)
}

// LayoutForPixels finds the detector layout whose full sensor pixel
// count matches the given array length. Mask arrays are looked up
// this way as they arrive flat, without dimensions attached.
func LayoutForPixels(n int) (ModuleLayout, error) {
	for _, l := range layouts {
		if l.ImageSlow()*l.ImageFast() == n {
			return l, nil
		}
	}
	return ModuleLayout{}, fmt.Errorf("Error: no supported detector layout with %d pixels", n)
}
