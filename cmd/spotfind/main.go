// Copyright 2019 Nick White.
// Use of this source code is governed by the GPLv3
// license that can be found in the LICENSE file.

// spotfind runs spot finding over a directory of detector frames,
// with no cloud services involved, printing the number of strong
// pixels found on each frame.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"rescribe.xyz/spotpipeline"
	"rescribe.xyz/spotpipeline/spotfind"
)

const usage = `Usage: spotfind [-v] [-bs size] [-kw width] [-kh height] [-nsig n] [-graph graph.png] framedir

Runs spot finding over a directory of 16 bit grayscale TIFF frames,
printing the number of strong pixels found on each frame. A file
named mask.tiff in the directory, if present, marks the detector
pixels to ignore.

Strong pixels are those which pass a dispersion test against the
local background around them, the same test used by the full
pipeline.
`

// null writer to enable non-verbose logging to be discarded
type NullWriter bool

func (w NullWriter) Write(p []byte) (n int, err error) {
	return len(p), nil
}

func main() {
	verbose := flag.Bool("v", false, "verbose")
	blocksize := flag.Int("bs", spotfind.DefaultBlockSize, "block size (must be a power of two)")
	kernelwidth := flag.Int("kw", 3, "kernel half width")
	kernelheight := flag.Int("kh", 3, "kernel half height")
	nsig := flag.Float64("nsig", 3.0, "significance level for strong pixel detection")
	graphfn := flag.String("graph", "", "file name to save a graph of the counts to (no graph if empty)")

	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		return
	}

	var verboselog *log.Logger
	if *verbose {
		verboselog = log.New(os.Stdout, "", 0)
	} else {
		var n NullWriter
		verboselog = log.New(n, "", 0)
	}

	framedir := flag.Arg(0)

	verboselog.Println("Reading frames from", framedir)
	src, err := spotpipeline.NewTiffSource(framedir)
	if err != nil {
		log.Fatalln("Error opening frame directory:", err)
	}

	slow, fast := src.ImageDims()
	verboselog.Println("Frames are", fast, "x", slow, "pixels")

	cfg := spotfind.Config{
		BlockSize:    *blocksize,
		KernelWidth:  *kernelwidth,
		KernelHeight: *kernelheight,
	}
	session, err := spotfind.NewSession(src, cfg, spotfind.DispersionThreshold(*nsig))
	if err != nil {
		log.Fatalln("Error setting up spot finding:", err)
	}

	var counts []spotpipeline.SpotCount
	for n := 0; n < session.Frames(); n++ {
		res, err := session.Frame(n)
		if err != nil {
			log.Fatalln("Error finding spots on frame", n, err)
		}
		fmt.Printf("%d\t%d\n", n, res.Strong)
		counts = append(counts, spotpipeline.SpotCount{Frame: n, Strong: res.Strong})
	}

	if *graphfn != "" {
		verboselog.Println("Creating graph", *graphfn)
		f, err := os.Create(*graphfn)
		if err != nil {
			log.Fatalln("Error creating file", *graphfn, err)
		}
		defer f.Close()
		err = spotpipeline.Graph(counts, filepath.Base(framedir), f)
		if err != nil {
			log.Fatalln("Error creating graph:", err)
		}
	}
}
