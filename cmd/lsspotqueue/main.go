// Copyright 2019 Nick White.
// Use of this source code is governed by the GPLv3
// license that can be found in the LICENSE file.

// lsspotqueue lists useful things related to the spot pipeline.
package main

import (
	"flag"
	"fmt"
	"log"
	"sort"

	"rescribe.xyz/spotpipeline"
)

const usage = `Usage: lsspotqueue [-nodatasets]

Lists useful things related to the pipeline.

- Messages in each queue
- Datasets not completed
- Datasets done
`

type LsPipeliner interface {
	Init() error
	SpotQueueId() string
	AnalyseQueueId() string
	GetQueueDetails(url string) (string, string, error)
	ListObjectsWithMeta(bucket string, prefix string) ([]spotpipeline.ObjMeta, error)
	ListObjectPrefixes(bucket string) ([]string, error)
	WIPStorageId() string
}

// NullWriter is used so non-verbose logging may be discarded
type NullWriter bool

func (w NullWriter) Write(p []byte) (n int, err error) {
	return len(p), nil
}

type queueDetails struct {
	name, numAvailable, numInProgress string
}

func getQueueDetails(conn LsPipeliner, qdetails chan queueDetails) {
	queues := []struct{ name, id string }{
		{"spotfind", conn.SpotQueueId()},
		{"analyse", conn.AnalyseQueueId()},
	}
	for _, q := range queues {
		avail, inprog, err := conn.GetQueueDetails(q.id)
		if err != nil {
			log.Println("Error getting queue details:", err)
		}
		var qd queueDetails
		qd.name = q.name
		qd.numAvailable = avail
		qd.numInProgress = inprog
		qdetails <- qd
	}
	close(qdetails)
}

type ObjMetas []spotpipeline.ObjMeta

// used by sort.Sort
func (o ObjMetas) Len() int {
	return len(o)
}

// used by sort.Sort
func (o ObjMetas) Swap(i, j int) {
	o[i], o[j] = o[j], o[i]
}

// used by sort.Sort
func (o ObjMetas) Less(i, j int) bool {
	return o[i].Date.Before(o[j].Date)
}

// getDatasetStatus returns a list of in progress and done datasets.
// It determines this by finding all prefixes, and splitting them
// into two lists, those which have a 'graph.png' file (the done
// list), and those which do not (the inprogress list). They are
// sorted according to the date of the graph.png file, or the date
// of a random file with the prefix if no graph.png was found.
func getDatasetStatus(conn LsPipeliner) (inprogress []string, done []string, err error) {
	prefixes, err := conn.ListObjectPrefixes(conn.WIPStorageId())
	var inprogressmeta, donemeta ObjMetas
	if err != nil {
		log.Println("Error getting object prefixes:", err)
		return
	}
	// Search for graph.png to determine done datasets (and save the date of it to sort with)
	for _, p := range prefixes {
		objs, err := conn.ListObjectsWithMeta(conn.WIPStorageId(), p+"graph.png")
		if err != nil || len(objs) == 0 {
			inprogressmeta = append(inprogressmeta, spotpipeline.ObjMeta{Name: p})
		} else {
			donemeta = append(donemeta, spotpipeline.ObjMeta{Name: p, Date: objs[0].Date})
		}
	}
	// Fill in dates for in progress datasets with the date of any file
	// with the prefix, so they can be sorted too
	for i, m := range inprogressmeta {
		objs, err := conn.ListObjectsWithMeta(conn.WIPStorageId(), m.Name)
		if err == nil && len(objs) > 0 {
			inprogressmeta[i].Date = objs[0].Date
		}
	}

	sort.Sort(donemeta)
	for _, m := range donemeta {
		done = append(done, m.Name)
	}
	sort.Sort(inprogressmeta)
	for _, m := range inprogressmeta {
		inprogress = append(inprogress, m.Name)
	}

	return
}

func main() {
	nodatasets := flag.Bool("nodatasets", false, "disable listing datasets in progress and done, which takes some time")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	var n NullWriter
	quietlog := log.New(n, "", 0)

	var conn LsPipeliner
	conn = &spotpipeline.AwsConn{Region: "eu-west-2", Logger: quietlog}

	err := conn.Init()
	if err != nil {
		log.Fatalln("Failed to set up cloud connection:", err)
	}

	qdetails := make(chan queueDetails)
	go getQueueDetails(conn, qdetails)

	fmt.Println("Messages in queues:")
	for qd := range qdetails {
		fmt.Printf("  %s: %s available, %s in progress\n", qd.name, qd.numAvailable, qd.numInProgress)
	}

	if *nodatasets {
		return
	}

	inprogress, done, err := getDatasetStatus(conn)
	if err != nil {
		log.Fatalln("Error getting dataset status:", err)
	}

	fmt.Println("Datasets in progress:")
	for _, d := range inprogress {
		fmt.Println("  " + d)
	}

	fmt.Println("Datasets done:")
	for _, d := range done {
		fmt.Println("  " + d)
	}
}
