// Copyright 2021 Nick White.
// Use of this source code is governed by the GPLv3
// license that can be found in the LICENSE file.

package spotpipeline

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/image/tiff"
)

// maskName is the file a TiffSource reads its pixel mask from, if
// present in the frame directory. A mask pixel value of zero marks
// a usable detector pixel; anything else marks it bad.
const maskName = "mask.tiff"

// TiffSource delivers detector frames from a directory of 16 bit
// grayscale TIFF files, one frame per file, ordered by file name.
// It implements the FrameSource interface the spotfind package
// consumes.
type TiffSource struct {
	dir        string
	files      []string
	slow, fast int
	mask       []bool
}

// decodeGray16 reads a TIFF file and returns its pixels as a flat
// row-major array, along with the image dimensions
func decodeGray16(fn string) ([]uint16, int, int, error) {
	f, err := os.Open(fn)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("Error opening %s: %v", fn, err)
	}
	defer f.Close()

	img, err := tiff.Decode(f)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("Error decoding %s: %v", fn, err)
	}

	b := img.Bounds()
	slow, fast := b.Dy(), b.Dx()
	data := make([]uint16, slow*fast)
	switch i := img.(type) {
	case *image.Gray16:
		for y := 0; y < slow; y++ {
			for x := 0; x < fast; x++ {
				data[y*fast+x] = i.Gray16At(b.Min.X+x, b.Min.Y+y).Y
			}
		}
	case *image.Gray:
		for y := 0; y < slow; y++ {
			for x := 0; x < fast; x++ {
				data[y*fast+x] = uint16(i.GrayAt(b.Min.X+x, b.Min.Y+y).Y)
			}
		}
	default:
		return nil, 0, 0, fmt.Errorf("Error: %s is not a grayscale TIFF", fn)
	}
	return data, slow, fast, nil
}

// NewTiffSource scans a directory for frame files, reads the first
// to establish the image dimensions, and loads the pixel mask if
// one is present; with no mask file every pixel is treated as
// usable.
func NewTiffSource(dir string) (*TiffSource, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("Error reading directory %s: %v", dir, err)
	}

	var files []string
	for _, e := range entries {
		n := e.Name()
		if n == maskName || e.IsDir() {
			continue
		}
		if strings.HasSuffix(n, ".tiff") || strings.HasSuffix(n, ".tif") {
			files = append(files, filepath.Join(dir, n))
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("Error: no frame files found in %s", dir)
	}
	sort.Strings(files)

	_, slow, fast, err := decodeGray16(files[0])
	if err != nil {
		return nil, err
	}

	s := TiffSource{dir: dir, files: files, slow: slow, fast: fast}

	maskfn := filepath.Join(dir, maskName)
	if _, err := os.Stat(maskfn); err == nil {
		raw, mslow, mfast, err := decodeGray16(maskfn)
		if err != nil {
			return nil, err
		}
		if mslow != slow || mfast != fast {
			return nil, fmt.Errorf("Error: mask is %dx%d but frames are %dx%d", mslow, mfast, slow, fast)
		}
		s.mask = make([]bool, len(raw))
		for i, v := range raw {
			s.mask[i] = v == 0
		}
	} else {
		s.mask = make([]bool, slow*fast)
		for i := range s.mask {
			s.mask[i] = true
		}
	}

	return &s, nil
}

// ImageCount returns the number of frames in the dataset.
func (s *TiffSource) ImageCount() int {
	return len(s.files)
}

// ImageDims returns the slow and fast pixel dimensions of every
// frame.
func (s *TiffSource) ImageDims() (int, int) {
	return s.slow, s.fast
}

// Mask returns the shared per-pixel validity mask.
func (s *TiffSource) Mask() []bool {
	return s.mask
}

// ReadImageInto fills buf with the pixels of frame n. It fails on
// an out of range index, a read or decode failure, or a frame whose
// size disagrees with the rest of the dataset.
func (s *TiffSource) ReadImageInto(buf []uint16, n int) error {
	if n < 0 || n >= len(s.files) {
		return fmt.Errorf("Error: frame %d out of range (%d frames)", n, len(s.files))
	}
	data, slow, fast, err := decodeGray16(s.files[n])
	if err != nil {
		return err
	}
	if slow != s.slow || fast != s.fast {
		return fmt.Errorf("Error: frame %s is %dx%d, expected %dx%d", s.files[n], slow, fast, s.slow, s.fast)
	}
	if len(buf) != len(data) {
		return fmt.Errorf("Error: buffer has %d pixels, frame has %d", len(buf), len(data))
	}
	copy(buf, data)
	return nil
}
