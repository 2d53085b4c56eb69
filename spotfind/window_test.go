// Copyright 2021 Nick White.
// Use of this source code is governed by the GPLv3
// license that can be found in the LICENSE file.

package spotfind

import (
	"flag"
	"testing"
)

var slowtest = flag.Bool("slow", false, "run slow full module size comparisons")

// TestIntegralMatchesBruteForce checks that the summed-area table
// calculator agrees exactly with direct summation for every pixel,
// edges and corners included.
func TestIntegralMatchesBruteForce(t *testing.T) {
	cases := []struct {
		name       string
		slow, fast int
		kw, kh     int
	}{
		{"square", 32, 32, 3, 3},
		{"wide", 16, 64, 5, 2},
		{"tall", 64, 16, 2, 5},
		{"windowbiggerthanframe", 8, 8, 10, 10},
		{"pointkernel", 16, 16, 0, 0},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			data := testFrame(c.slow, c.fast)
			brute := BruteForceSum(data, c.slow, c.fast, c.kw, c.kh)
			integral := IntegralSum(data, c.slow, c.fast, c.kw, c.kh)

			for i := range brute.Sum {
				if brute.Sum[i] != integral.Sum[i] {
					t.Fatalf("Sum at (%d, %d) differs: brute force %d, integral %d",
						i/c.fast, i%c.fast, brute.Sum[i], integral.Sum[i])
				}
				if brute.SumSq[i] != integral.SumSq[i] {
					t.Fatalf("Sum of squares at (%d, %d) differs: brute force %d, integral %d",
						i/c.fast, i%c.fast, brute.SumSq[i], integral.SumSq[i])
				}
			}
		})
	}
}

// TestFullModule compares all three calculators over a full detector
// module worth of pixels, which takes a while brute force, so it only
// runs with -slow.
func TestFullModule(t *testing.T) {
	if !*slowtest {
		t.Skip("skipping full module comparison; use -slow to run it")
	}

	slow, fast := 512, 1028
	data := testFrame(slow, fast)

	brute := BruteForceSum(data, slow, fast, 3, 3)
	integral := IntegralSum(data, slow, fast, 3, 3)
	for i := range brute.Sum {
		if brute.Sum[i] != integral.Sum[i] || brute.SumSq[i] != integral.SumSq[i] {
			t.Fatalf("Calculators differ at (%d, %d)", i/fast, i%fast)
		}
	}

	e, err := NewEngine(Config{Slow: slow, Fast: fast, KernelWidth: 3, KernelHeight: 3, Squares: true})
	if err != nil {
		t.Fatalf("Error creating engine: %v", err)
	}
	got, err := e.ProcessFrame(data)
	if err != nil {
		t.Fatalf("Error processing frame: %v", err)
	}
	emittedCols := (fast/DefaultBlockSize - 1) * DefaultBlockSize
	for y := 0; y < slow-3; y++ {
		for x := 0; x < emittedCols; x++ {
			i := y*fast + x
			if got.Sum[i] != brute.Sum[i] || got.SumSq[i] != brute.SumSq[i] {
				t.Fatalf("Engine differs from brute force at (%d, %d)", y, x)
			}
		}
	}
}

func TestBruteForceCorner(t *testing.T) {
	slow, fast := 8, 8
	data := make([]uint16, slow*fast)
	for i := range data {
		data[i] = 2
	}

	s := BruteForceSum(data, slow, fast, 3, 3)

	// corner windows are clamped to the 4x4 pixels that exist
	if got := s.Sum[0]; got != 32 {
		t.Errorf("Expected corner sum 32, got %d", got)
	}
	if got := s.SumSq[0]; got != 64 {
		t.Errorf("Expected corner sum of squares 64, got %d", got)
	}
	// interior windows cover the full 7x7
	if got := s.Sum[4*fast+4]; got != 98 {
		t.Errorf("Expected interior sum 98, got %d", got)
	}
}
