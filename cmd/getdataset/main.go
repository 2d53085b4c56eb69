// Copyright 2019 Nick White.
// Use of this source code is governed by the GPLv3
// license that can be found in the LICENSE file.

// getdataset downloads the pipeline results for a dataset.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"rescribe.xyz/spotpipeline"

	"rescribe.xyz/spotpipeline/internal/pipeline"
)

const usage = `Usage: getdataset [-a] [-c conn] [-v] dataset

Downloads the pipeline results for a dataset.

By default this downloads the spotcounts, summary and graph.png
analysis files. The -a flag downloads everything stored for the
dataset, frames included.
`

// null writer to enable non-verbose logging to be discarded
type NullWriter bool

func (w NullWriter) Write(p []byte) (n int, err error) {
	return len(p), nil
}

func main() {
	all := flag.Bool("a", false, "Get all files for dataset")
	conntype := flag.String("c", "aws", "connection type ('aws' or 'local')")
	verbose := flag.Bool("v", false, "Verbose")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		return
	}

	var verboselog *log.Logger
	if *verbose {
		verboselog = log.New(os.Stdout, "", log.LstdFlags)
	} else {
		var n NullWriter
		verboselog = log.New(n, "", log.LstdFlags)
	}

	var conn pipeline.Pipeliner
	switch *conntype {
	case "aws":
		conn = &spotpipeline.AwsConn{Region: "eu-west-2", Logger: verboselog}
	case "local":
		conn = &spotpipeline.LocalConn{Logger: verboselog}
	default:
		log.Fatalln("Unknown connection type")
	}

	verboselog.Println("Setting up connection")
	err := conn.Init()
	if err != nil {
		log.Fatalln("Error setting up cloud connection:", err)
	}
	verboselog.Println("Finished setting up connection")

	dataset := flag.Arg(0)

	err = os.MkdirAll(dataset, 0755)
	if err != nil {
		log.Fatalln("Failed to create directory", dataset, err)
	}

	if *all {
		verboselog.Println("Downloading all files for", dataset)
		err = pipeline.DownloadAll(dataset, dataset, conn)
		if err != nil {
			log.Fatalln(err)
		}
		return
	}

	verboselog.Println("Downloading analysis files for", dataset)
	err = pipeline.DownloadAnalyses(dataset, dataset, conn)
	if err != nil {
		log.Fatalln(err)
	}
}
