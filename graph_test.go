// Copyright 2021 Nick White.
// Use of this source code is governed by the GPLv3
// license that can be found in the LICENSE file.

package spotpipeline

import (
	"bytes"
	"testing"
)

func TestGraph(t *testing.T) {
	var counts []SpotCount
	for i := 0; i < 100; i++ {
		counts = append(counts, SpotCount{Frame: i, Strong: i % 7})
	}
	counts[50].Strong = 300

	var buf bytes.Buffer
	err := Graph(counts, "testdataset", &buf)
	if err != nil {
		t.Fatalf("Error creating graph: %v", err)
	}
	if buf.Len() == 0 {
		t.Fatal("Expected PNG data, got none")
	}
	// PNG magic bytes
	if !bytes.HasPrefix(buf.Bytes(), []byte("\x89PNG")) {
		t.Fatal("Expected graph output to be a PNG")
	}
}

func TestGraphUnsorted(t *testing.T) {
	// frame order in the input should not matter
	counts := []SpotCount{
		{Frame: 2, Strong: 5},
		{Frame: 0, Strong: 1},
		{Frame: 1, Strong: 3},
	}
	var buf bytes.Buffer
	err := Graph(counts, "testdataset", &buf)
	if err != nil {
		t.Fatalf("Error creating graph from unsorted counts: %v", err)
	}
}

func TestGraphTooFewFrames(t *testing.T) {
	var buf bytes.Buffer
	err := Graph([]SpotCount{{Frame: 0, Strong: 3}}, "testdataset", &buf)
	if err == nil {
		t.Fatal("Expected an error graphing a single frame, got none")
	}
}
