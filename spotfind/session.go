// Copyright 2021 Nick White.
// Use of this source code is governed by the GPLv3
// license that can be found in the LICENSE file.

package spotfind

import (
	"fmt"

	"rescribe.xyz/spotpipeline"
)

// FrameSource is where detector frames come from. Implementations
// deliver full-sensor images (gaps included) into a caller-provided
// buffer, and a validity mask shared by every frame of the dataset.
type FrameSource interface {
	ImageCount() int
	ImageDims() (slow, fast int)
	Mask() []bool
	ReadImageInto(buf []uint16, index int) error
}

// Session binds a FrameSource to the windowed-sum engines for the
// lifetime of one dataset. The pixel mask is rearranged into
// module-tiled form once, when the session is created, and shared
// read-only across all frames; each detector module gets its own
// engine lane. A Session processes one frame at a time and is not
// safe for concurrent use.
type Session struct {
	Layout  spotpipeline.ModuleLayout
	src     FrameSource
	thresh  Thresholder
	mask    []bool   // module-tiled validity mask
	frame   []uint16 // full sensor frame buffer
	modules []uint16 // module-tiled frame buffer
	engines []*Engine
}

// NewSession checks the source geometry against the supported
// detector layouts, rearranges the mask, and sets up one engine per
// module. The Slow and Fast of cfg are ignored; engines always work
// on single gap-free modules. A non-nil Thresholder implies the sum
// of squares chain, so Squares is switched on for it here.
func NewSession(src FrameSource, cfg Config, thresh Thresholder) (*Session, error) {
	slow, fast := src.ImageDims()
	layout, err := spotpipeline.LayoutForDims(slow, fast)
	if err != nil {
		return nil, err
	}

	mask := src.Mask()
	if len(mask) != slow*fast {
		return nil, fmt.Errorf("Error: mask has %d entries for a %dx%d image", len(mask), slow, fast)
	}
	tiled, err := spotpipeline.BlitModules(mask, layout)
	if err != nil {
		return nil, err
	}

	cfg.Slow = layout.ModSlow
	cfg.Fast = layout.ModFast
	if thresh != nil {
		cfg.Squares = true
	}

	s := Session{
		Layout:  layout,
		src:     src,
		thresh:  thresh,
		mask:    tiled,
		frame:   make([]uint16, slow*fast),
		modules: make([]uint16, layout.Modules()*layout.ModulePixels()),
	}
	for m := 0; m < layout.Modules(); m++ {
		e, err := NewEngine(cfg)
		if err != nil {
			return nil, err
		}
		s.engines = append(s.engines, e)
	}
	return &s, nil
}

// Frames returns the number of frames the source offers.
func (s *Session) Frames() int {
	return s.src.ImageCount()
}

// ModuleResult holds the statistics for one module of one frame.
type ModuleResult struct {
	Stats  *Stats
	Strong int
}

// FrameResult holds the per-module statistics for one frame, in
// module-tiled order, plus the total strong pixel count.
type FrameResult struct {
	Modules []ModuleResult
	Strong  int
}

// Frame reads one frame from the source and processes it to
// completion: the image is rearranged into gap-free module tiles,
// masked-out pixels are zeroed so they contribute nothing to any
// window, and every module lane runs in parallel with no shared
// state. A read failure aborts the frame with no partial output.
func (s *Session) Frame(n int) (*FrameResult, error) {
	err := s.src.ReadImageInto(s.frame, n)
	if err != nil {
		return nil, err
	}
	err = spotpipeline.Blit(s.modules, s.frame, s.Layout)
	if err != nil {
		return nil, err
	}
	for i, ok := range s.mask {
		if !ok {
			s.modules[i] = 0
		}
	}

	mp := s.Layout.ModulePixels()
	res := FrameResult{Modules: make([]ModuleResult, len(s.engines))}
	errc := make(chan error, len(s.engines))
	for m := range s.engines {
		go func(m int) {
			data := s.modules[m*mp : (m+1)*mp]
			st, err := s.engines[m].ProcessFrame(data)
			if err == nil && s.thresh != nil {
				err = st.Flag(data, s.mask[m*mp:(m+1)*mp], s.thresh)
			}
			if err == nil {
				res.Modules[m] = ModuleResult{Stats: st, Strong: st.StrongCount()}
			}
			errc <- err
		}(m)
	}

	for range s.engines {
		if err2 := <-errc; err2 != nil && err == nil {
			err = err2
		}
	}
	if err != nil {
		return nil, err
	}

	for _, m := range res.Modules {
		res.Strong += m.Strong
	}
	return &res, nil
}
