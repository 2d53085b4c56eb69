// Copyright 2019 Nick White.
// Use of this source code is governed by the GPLv3
// license that can be found in the LICENSE file.

// datasettopipeline uploads a dataset of detector frames to cloud
// storage and adds the name to a queue ready to be processed by the
// spotpipeline tool.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"rescribe.xyz/spotpipeline"

	"rescribe.xyz/spotpipeline/internal/pipeline"
)

const usage = `Usage: datasettopipeline [-c conn] [-v] framedir [dataset]

Uploads the frames in framedir to the S3 'inprogress' bucket and
adds the dataset to the spot finding SQS queue. Frames must be 16
bit grayscale TIFF files; a mask.tiff file, if present, is uploaded
alongside them and marks the detector pixels to ignore.

If dataset is omitted the last part of the framedir is used.
`

// null writer to enable non-verbose logging to be discarded
type NullWriter bool

func (w NullWriter) Write(p []byte) (n int, err error) {
	return len(p), nil
}

var verboselog *log.Logger

func main() {
	verbose := flag.Bool("v", false, "Verbose")
	conntype := flag.String("c", "aws", "connection type ('aws' or 'local')")

	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() < 1 || flag.NArg() > 2 {
		flag.Usage()
		return
	}

	framedir := flag.Arg(0)
	var dataset string
	if flag.NArg() > 1 {
		dataset = flag.Arg(1)
	} else {
		dataset = filepath.Base(framedir)
	}

	if *verbose {
		verboselog = log.New(os.Stdout, "", log.LstdFlags)
	} else {
		var n NullWriter
		verboselog = log.New(n, "", log.LstdFlags)
	}

	ctx := context.Background()

	var conn pipeline.Pipeliner
	switch *conntype {
	case "aws":
		conn = &spotpipeline.AwsConn{Region: "eu-west-2", Logger: verboselog}
	case "local":
		conn = &spotpipeline.LocalConn{Logger: verboselog}
	default:
		log.Fatalln("Unknown connection type")
	}
	err := conn.Init()
	if err != nil {
		log.Fatalln("Failed to set up cloud connection:", err)
	}

	verboselog.Println("Checking that all frames are valid in", framedir)
	err = pipeline.CheckFrames(ctx, framedir)
	if err != nil {
		log.Fatalln(err)
	}

	verboselog.Println("Checking that a dataset hasn't already been uploaded with that name")
	list, err := conn.ListObjects(conn.WIPStorageId(), dataset)
	if err != nil {
		log.Fatalln(err)
	}
	if len(list) > 0 {
		log.Fatalf("Error: There is already a dataset in S3 named %s", dataset)
	}

	verboselog.Println("Uploading frames from", framedir)
	err = pipeline.UploadFrames(ctx, framedir, dataset, conn)
	if err != nil {
		log.Fatalln(err)
	}

	err = conn.AddToQueue(conn.SpotQueueId(), dataset)
	if err != nil {
		log.Fatalln("Error adding dataset to queue:", err)
	}

	fmt.Println("Uploaded dataset to spot finding queue")
}
