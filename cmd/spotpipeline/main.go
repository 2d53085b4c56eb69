// Copyright 2019 Nick White.
// Use of this source code is governed by the GPLv3
// license that can be found in the LICENSE file.

// spotpipeline watches the spot finding and analyse queues for
// dataset names, processing each dataset it finds.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"regexp"
	"time"

	"rescribe.xyz/spotpipeline"
	"rescribe.xyz/spotpipeline/internal/pipeline"
	"rescribe.xyz/spotpipeline/spotfind"
)

const usage = `Usage: spotpipeline [-v] [-c conn] [-nf] [-na] [-bs size] [-kw width] [-kh height] [-nsig n]

Watches the spot finding and analyse queues for dataset names. When
one is found this general process is followed:

- The dataset name is hidden from the queue, and a 'heartbeat' is
  started which keeps it hidden (this will time out after 2 minutes
  if the program is terminated)
- The necessary files from dataset/ are downloaded
- The files are processed
- The resulting files are uploaded to dataset/
- The heartbeat is stopped
- The dataset name is removed from the queue it was taken from, and
  added to the next queue for future processing

`

const PauseBetweenChecks = 3 * time.Minute
const TimeBeforeShutdown = 5 * time.Minute
const HeartbeatSeconds = pipeline.HeartbeatSeconds

// null writer to enable non-verbose logging to be discarded
type NullWriter bool

func (w NullWriter) Write(p []byte) (n int, err error) {
	return len(p), nil
}

func stopTimer(t *time.Timer) {
	if !t.Stop() {
		<-t.C
	}
}

func resetTimer(t *time.Timer, d time.Duration) {
	if d > 0 {
		t.Reset(d)
	}
}

func main() {
	verbose := flag.Bool("v", false, "verbose")
	conntype := flag.String("c", "aws", "connection type ('aws' or 'local')")
	nofind := flag.Bool("nf", false, "disable spot finding")
	noanalyse := flag.Bool("na", false, "disable analysis")
	blocksize := flag.Int("bs", spotfind.DefaultBlockSize, "block size for spot finding (must be a power of two)")
	kernelwidth := flag.Int("kw", 3, "kernel half width for spot finding")
	kernelheight := flag.Int("kh", 3, "kernel half height for spot finding")
	nsig := flag.Float64("nsig", 3.0, "significance level for strong pixel detection")
	autostop := flag.Duration("autostop", 0, "automatically stop if no work has been available for this long (0 to never stop)")

	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	var verboselog *log.Logger
	if *verbose {
		verboselog = log.New(os.Stdout, "", 0)
	} else {
		var n NullWriter
		verboselog = log.New(n, "", 0)
	}

	ctx := context.Background()

	// matches the frame files plus the pixel mask, but not any results
	framePattern := regexp.MustCompile(`\.tiff?$`)
	spotcountsPattern := regexp.MustCompile(`/spotcounts$`)

	cfg := spotfind.Config{
		BlockSize:    *blocksize,
		KernelWidth:  *kernelwidth,
		KernelHeight: *kernelheight,
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

	var checkSpotQueue <-chan time.Time
	var checkAnalyseQueue <-chan time.Time
	var stopIfQuiet *time.Timer
	if !*nofind {
		checkSpotQueue = time.After(0)
	}
	if !*noanalyse {
		checkAnalyseQueue = time.After(0)
	}
	stopIfQuiet = time.NewTimer(TimeBeforeShutdown)
	if *autostop > 0 {
		stopIfQuiet.Reset(*autostop)
	}

	for {
		select {
		case <-checkSpotQueue:
			msg, err := conn.CheckQueue(conn.SpotQueueId(), HeartbeatSeconds*2)
			checkSpotQueue = time.After(PauseBetweenChecks)
			if err != nil {
				log.Println("Error checking spot queue", err)
				continue
			}
			if msg.Handle == "" {
				verboselog.Println("No message received on spot queue, sleeping")
				continue
			}
			verboselog.Println("Message received on spot queue, processing", msg.Body)
			stopTimer(stopIfQuiet)
			err = pipeline.ProcessDataset(ctx, msg, conn, pipeline.FindSpots(cfg, *nsig), framePattern, conn.SpotQueueId(), conn.AnalyseQueueId())
			resetTimer(stopIfQuiet, *autostop)
			if err != nil {
				log.Println("Error during spot finding", err)
			}
		case <-checkAnalyseQueue:
			msg, err := conn.CheckQueue(conn.AnalyseQueueId(), HeartbeatSeconds*2)
			checkAnalyseQueue = time.After(PauseBetweenChecks)
			if err != nil {
				log.Println("Error checking analyse queue", err)
				continue
			}
			if msg.Handle == "" {
				verboselog.Println("No message received on analyse queue, sleeping")
				continue
			}
			verboselog.Println("Message received on analyse queue, processing", msg.Body)
			stopTimer(stopIfQuiet)
			err = pipeline.ProcessDataset(ctx, msg, conn, pipeline.Analyse, spotcountsPattern, conn.AnalyseQueueId(), "")
			resetTimer(stopIfQuiet, *autostop)
			if err != nil {
				log.Println("Error during analysis", err)
			}
		case <-stopIfQuiet.C:
			if *autostop > 0 {
				verboselog.Println("Stopping as no work has been available")
				return
			}
		}
	}
}
