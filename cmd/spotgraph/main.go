package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"rescribe.xyz/spotpipeline"
)

const usage = `Usage: spotgraph spotcounts graph.png

spotgraph creates a graph showing the number of strong pixels found
on each frame, from a spotcounts file produced by the pipeline.
`

func readCounts(path string) ([]spotpipeline.SpotCount, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var counts []spotpipeline.SpotCount
	s := bufio.NewScanner(f)
	for s.Scan() {
		parts := strings.Split(s.Text(), "\t")
		if len(parts) != 2 {
			return nil, fmt.Errorf("Error parsing line %q", s.Text())
		}
		frame, err := strconv.Atoi(parts[0])
		if err != nil {
			return nil, err
		}
		strong, err := strconv.Atoi(parts[1])
		if err != nil {
			return nil, err
		}
		counts = append(counts, spotpipeline.SpotCount{Frame: frame, Strong: strong})
	}
	return counts, s.Err()
}

func main() {
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 2 {
		flag.Usage()
		return
	}

	counts, err := readCounts(flag.Arg(0))
	if err != nil {
		log.Fatalln("Failed to read", flag.Arg(0), err)
	}

	fn := flag.Arg(1)
	f, err := os.Create(fn)
	if err != nil {
		log.Fatalln("Error creating file", fn, err)
	}
	defer f.Close()
	err = spotpipeline.Graph(counts, filepath.Base(flag.Arg(0)), f)
	if err != nil {
		log.Fatalln("Error creating graph", err)
	}
}
