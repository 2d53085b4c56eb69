// Copyright 2021 Nick White.
// Use of this source code is governed by the GPLv3
// license that can be found in the LICENSE file.

package spotpipeline

import "fmt"

// Blit rearranges a flat full-sensor array into a gap-free
// module-tiled array: the inactive gap pixels are dropped and each
// module's rows are packed contiguously, module by module in
// row-major grid order. The same rearrangement is used for the pixel
// mask and for raw image data, which is why it is generic over the
// element type.
//
// dst must have room for l.Modules()*l.ModulePixels() elements and
// src must be exactly one full sensor image.
func Blit[T any](dst, src []T, l ModuleLayout) error {
	if len(src) != l.ImageSlow()*l.ImageFast() {
		return fmt.Errorf("Error blitting: source length %d does not match sensor size %dx%d", len(src), l.ImageSlow(), l.ImageFast())
	}
	if len(dst) != l.Modules()*l.ModulePixels() {
		return fmt.Errorf("Error blitting: destination length %d does not match %d modules of %d pixels", len(dst), l.Modules(), l.ModulePixels())
	}

	fast := l.ImageFast()
	for ms := 0; ms < l.NumSlow; ms++ {
		row0 := ms * (l.ModSlow + l.GapSlow) * fast
		for mf := 0; mf < l.NumFast; mf++ {
			for row := 0; row < l.ModSlow; row++ {
				offset := row0 + row*fast + mf*(l.ModFast+l.GapFast)
				target := (ms*l.NumFast+mf)*l.ModulePixels() + row*l.ModFast
				copy(dst[target:target+l.ModFast], src[offset:offset+l.ModFast])
			}
		}
	}
	return nil
}

// BlitModules is a convenience form of Blit which allocates the
// module-tiled destination array.
func BlitModules[T any](src []T, l ModuleLayout) ([]T, error) {
	dst := make([]T, l.Modules()*l.ModulePixels())
	err := Blit(dst, src, l)
	if err != nil {
		return nil, err
	}
	return dst, nil
}
