// Copyright 2021 Nick White.
// Use of this source code is governed by the GPLv3
// license that can be found in the LICENSE file.

package spotpipeline

import "testing"

// a toy layout small enough to write out by hand: 2x2 grid of 2x3
// pixel modules with single pixel gaps, so a 5x7 sensor
var toyLayout = ModuleLayout{
	ModSlow: 2, ModFast: 3,
	GapSlow: 1, GapFast: 1,
	NumSlow: 2, NumFast: 2,
}

func TestBlit(t *testing.T) {
	slow, fast := toyLayout.ImageSlow(), toyLayout.ImageFast()
	if slow != 5 || fast != 7 {
		t.Fatalf("Expected a 5x7 toy sensor, got %dx%d", slow, fast)
	}

	// number every sensor pixel by position so misplaced copies are
	// obvious; gap pixels are the ones that must never appear
	src := make([]uint16, slow*fast)
	for i := range src {
		src[i] = uint16(i)
	}

	got, err := BlitModules(src, toyLayout)
	if err != nil {
		t.Fatalf("Error blitting: %v", err)
	}

	want := []uint16{
		// module (0, 0): rows 0-1, columns 0-2
		0, 1, 2, 7, 8, 9,
		// module (0, 1): rows 0-1, columns 4-6
		4, 5, 6, 11, 12, 13,
		// module (1, 0): rows 3-4, columns 0-2
		21, 22, 23, 28, 29, 30,
		// module (1, 1): rows 3-4, columns 4-6
		25, 26, 27, 32, 33, 34,
	}

	if len(got) != len(want) {
		t.Fatalf("Expected %d tiled pixels, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Tiled pixel %d is %d, expected %d", i, got[i], want[i])
		}
	}
}

func TestBlitMask(t *testing.T) {
	slow, fast := toyLayout.ImageSlow(), toyLayout.ImageFast()
	src := make([]bool, slow*fast)
	src[0] = true        // module (0, 0) local (0, 0)
	src[1*fast+5] = true // module (0, 1) local (1, 1)

	got, err := BlitModules(src, toyLayout)
	if err != nil {
		t.Fatalf("Error blitting mask: %v", err)
	}

	mp := toyLayout.ModulePixels()
	if !got[0] {
		t.Error("Expected module 0 pixel (0, 0) set")
	}
	if !got[mp+1*toyLayout.ModFast+1] {
		t.Error("Expected module 1 pixel (1, 1) set")
	}
	count := 0
	for _, v := range got {
		if v {
			count++
		}
	}
	if count != 2 {
		t.Errorf("Expected 2 set pixels after blitting, got %d", count)
	}
}

func TestBlitErrors(t *testing.T) {
	dst := make([]uint16, toyLayout.Modules()*toyLayout.ModulePixels())

	err := Blit(dst, make([]uint16, 10), toyLayout)
	if err == nil {
		t.Error("Expected an error for a wrongly sized source, got none")
	}

	src := make([]uint16, toyLayout.ImageSlow()*toyLayout.ImageFast())
	err = Blit(make([]uint16, 10), src, toyLayout)
	if err == nil {
		t.Error("Expected an error for a wrongly sized destination, got none")
	}
}
