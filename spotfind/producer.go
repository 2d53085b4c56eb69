// Copyright 2021 Nick White.
// Use of this source code is governed by the GPLv3
// license that can be found in the LICENSE file.

package spotfind

// produceBlocks slices each image row into blocks of bs pixels and
// sends them over the blocks channel in row-major, left to right
// order, closing it when the frame is done. The send suspends while
// the channel is full, which is the only backpressure between the
// two ends. The trailing fast mod bs columns of each row are never read,
// and the source data is never written to; each block is a subslice
// of it, which the consumer copies out of before its next receive.
func produceBlocks(data []uint16, slow, fast, bs, fullBlocks int, blocks chan<- []uint16) {
	for y := 0; y < slow; y++ {
		row := data[y*fast : (y+1)*fast]
		for b := 0; b < fullBlocks; b++ {
			blocks <- row[b*bs : (b+1)*bs]
		}
	}
	close(blocks)
}
