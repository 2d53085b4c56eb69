// Copyright 2020 Nick White.
// Use of this source code is governed by the GPLv3
// license that can be found in the LICENSE file.

// pipeline is a package used by the spotpipeline command, which
// handles the core functionality, using channels heavily to
// coordinate jobs. Note that it is considered an "internal" package,
// not intended for external use, and no guarantee is made of the
// stability of any interfaces provided.
package pipeline

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io/ioutil"
	"log"
	"net/smtp"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"rescribe.xyz/spotpipeline"
	"rescribe.xyz/spotpipeline/spotfind"
)

const HeartbeatSeconds = 60

type Lister interface {
	ListObjects(bucket string, prefix string) ([]string, error)
	Log(v ...interface{})
	WIPStorageId() string
}

type Downloader interface {
	Download(bucket string, key string, fn string) error
	Log(v ...interface{})
	WIPStorageId() string
}

type DownloadLister interface {
	Download(bucket string, key string, fn string) error
	ListObjects(bucket string, prefix string) ([]string, error)
	Log(v ...interface{})
	WIPStorageId() string
}

type Uploader interface {
	Log(v ...interface{})
	Upload(bucket string, key string, path string) error
	WIPStorageId() string
}

type Queuer interface {
	AddToQueue(url string, msg string) error
	AnalyseQueueId() string
	CheckQueue(url string, timeout int64) (spotpipeline.Qmsg, error)
	DelFromQueue(url string, handle string) error
	Log(v ...interface{})
	QueueHeartbeat(msg spotpipeline.Qmsg, qurl string, duration int64) (spotpipeline.Qmsg, error)
	SpotQueueId() string
}

type Pipeliner interface {
	AddToQueue(url string, msg string) error
	AnalyseQueueId() string
	CheckQueue(url string, timeout int64) (spotpipeline.Qmsg, error)
	DelFromQueue(url string, handle string) error
	Download(bucket string, key string, fn string) error
	GetLogger() *log.Logger
	Init() error
	ListObjects(bucket string, prefix string) ([]string, error)
	Log(v ...interface{})
	QueueHeartbeat(msg spotpipeline.Qmsg, qurl string, duration int64) (spotpipeline.Qmsg, error)
	SpotQueueId() string
	Upload(bucket string, key string, path string) error
	WIPStorageId() string
}

type MinPipeliner interface {
	Pipeliner
	MinimalInit() error
}

type mailSettings struct {
	server, port, user, pass, from, to string
}

func GetMailSettings() (mailSettings, error) {
	p := filepath.Join(os.Getenv("HOME"), ".config", "spotpipeline", "mailsettings")
	b, err := ioutil.ReadFile(p)
	if err != nil {
		return mailSettings{}, fmt.Errorf("Error reading mailsettings from %s: %v", p, err)
	}
	f := strings.Fields(string(b))
	if len(f) != 6 {
		return mailSettings{}, fmt.Errorf("Error parsing mailsettings, need %d fields, got %d", 6, len(f))
	}
	return mailSettings{f[0], f[1], f[2], f[3], f[4], f[5]}, nil
}

// download reads file names from a channel and downloads them into
// dir, putting each successfully downloaded file name into the
// process channel. If an error occurs it is sent to the errc channel
// and the function returns early.
func download(ctx context.Context, dl chan string, process chan string, conn Downloader, dir string, errc chan error, logger *log.Logger) {
	for key := range dl {
		select {
		case <-ctx.Done():
			for range dl {
			} // consume the rest of the receiving channel so it isn't blocked
			errc <- ctx.Err()
			close(process)
			return
		default:
		}
		fn := filepath.Join(dir, filepath.Base(key))
		logger.Println("Downloading", key)
		err := conn.Download(conn.WIPStorageId(), key, fn)
		if err != nil {
			for range dl {
			} // consume the rest of the receiving channel so it isn't blocked
			errc <- err
			close(process)
			return
		}
		process <- fn
	}
	close(process)
}

// up reads file names from a channel and uploads them with
// the dataset/ prefix, removing the local copy of each file
// once it has been successfully uploaded. The done channel is
// then written to to signal completion. If an error occurs it
// is sent to the errc channel and the function returns early.
func up(ctx context.Context, c chan string, done chan bool, conn Uploader, dataset string, errc chan error, logger *log.Logger) {
	for path := range c {
		select {
		case <-ctx.Done():
			for range c {
			} // consume the rest of the receiving channel so it isn't blocked
			errc <- ctx.Err()
			return
		default:
		}
		name := filepath.Base(path)
		key := dataset + "/" + name
		logger.Println("Uploading", key)
		err := conn.Upload(conn.WIPStorageId(), key, path)
		if err != nil {
			for range c {
			} // consume the rest of the receiving channel so it isn't blocked
			errc <- err
			return
		}
		err = os.Remove(path)
		if err != nil {
			for range c {
			} // consume the rest of the receiving channel so it isn't blocked
			errc <- err
			return
		}
	}

	done <- true
}

// FindSpots returns a process function which runs spot finding over
// every frame of a dataset. The downloaded frame files are collected
// until the channel closes, as the pixel mask may arrive after the
// frames that need it, then a single spotfind session covers them
// all. The per frame strong pixel counts are written to a spotcounts
// file which is passed on for upload.
func FindSpots(cfg spotfind.Config, nsig float64) func(context.Context, chan string, chan string, chan error, *log.Logger) {
	return func(ctx context.Context, tofind chan string, up chan string, errc chan error, logger *log.Logger) {
		savedir := ""
		nframes := 0

		for path := range tofind {
			select {
			case <-ctx.Done():
				for range tofind {
				} // consume the rest of the receiving channel so it isn't blocked
				errc <- ctx.Err()
				return
			default:
			}
			if savedir == "" {
				savedir = filepath.Dir(path)
			}
			nframes++
		}

		if nframes == 0 {
			errc <- fmt.Errorf("No frames downloaded to find spots on")
			return
		}

		select {
		case <-ctx.Done():
			errc <- ctx.Err()
			return
		default:
		}

		src, err := spotpipeline.NewTiffSource(savedir)
		if err != nil {
			errc <- fmt.Errorf("Error opening frame directory %s: %v", savedir, err)
			return
		}

		session, err := spotfind.NewSession(src, cfg, spotfind.DispersionThreshold(nsig))
		if err != nil {
			errc <- fmt.Errorf("Error setting up spot finding: %v", err)
			return
		}

		fn := filepath.Join(savedir, "spotcounts")
		logger.Println("Saving spot counts in file", fn)
		f, err := os.Create(fn)
		if err != nil {
			errc <- fmt.Errorf("Error creating file %s: %s", fn, err)
			return
		}
		defer f.Close()

		start := time.Now()
		for n := 0; n < session.Frames(); n++ {
			select {
			case <-ctx.Done():
				errc <- ctx.Err()
				return
			default:
			}
			logger.Println("Finding spots on frame", n)
			res, err := session.Frame(n)
			if err != nil {
				errc <- fmt.Errorf("Error finding spots on frame %d: %v", n, err)
				return
			}
			logger.Println("Found", res.Strong, "strong pixels on frame", n)
			_, err = fmt.Fprintf(f, "%d\t%d\n", n, res.Strong)
			if err != nil {
				errc <- fmt.Errorf("Error writing spotcounts file: %s", err)
				return
			}
		}
		logger.Println("Spot finding on", session.Frames(), "frames took", time.Since(start))
		f.Close()
		up <- fn

		close(up)
	}
}

// readSpotCounts parses a spotcounts file of tab separated frame
// number and strong pixel count lines.
func readSpotCounts(path string) ([]spotpipeline.SpotCount, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("Error opening %s: %v", path, err)
	}
	defer f.Close()

	var counts []spotpipeline.SpotCount
	s := bufio.NewScanner(f)
	for s.Scan() {
		parts := strings.Split(s.Text(), "\t")
		if len(parts) != 2 {
			return nil, fmt.Errorf("Error parsing line %q in %s", s.Text(), path)
		}
		frame, err := strconv.Atoi(parts[0])
		if err != nil {
			return nil, fmt.Errorf("Error parsing frame number in %s: %v", path, err)
		}
		strong, err := strconv.Atoi(parts[1])
		if err != nil {
			return nil, fmt.Errorf("Error parsing strong count in %s: %v", path, err)
		}
		counts = append(counts, spotpipeline.SpotCount{Frame: frame, Strong: strong})
	}
	if err = s.Err(); err != nil {
		return nil, fmt.Errorf("Error reading %s: %v", path, err)
	}
	return counts, nil
}

// Analyse takes the spotcounts file produced by spot finding and
// creates a graph of strong pixels per frame, plus a summary file
// of the dataset statistics, passing both on for upload.
func Analyse(ctx context.Context, toanalyse chan string, up chan string, errc chan error, logger *log.Logger) {
	var counts []spotpipeline.SpotCount
	savedir := ""

	for path := range toanalyse {
		select {
		case <-ctx.Done():
			for range toanalyse {
			} // consume the rest of the receiving channel so it isn't blocked
			errc <- ctx.Err()
			return
		default:
		}
		if savedir == "" {
			savedir = filepath.Dir(path)
		}
		logger.Println("Reading spot counts from", path)
		c, err := readSpotCounts(path)
		if err != nil {
			for range toanalyse {
			} // consume the rest of the receiving channel so it isn't blocked
			errc <- err
			return
		}
		counts = append(counts, c...)
	}

	if len(counts) == 0 {
		errc <- fmt.Errorf("No spot counts found to analyse")
		return
	}

	select {
	case <-ctx.Done():
		errc <- ctx.Err()
		return
	default:
	}

	var total, max, maxframe int
	for _, c := range counts {
		total += c.Strong
		if c.Strong > max {
			max = c.Strong
			maxframe = c.Frame
		}
	}

	fn := filepath.Join(savedir, "summary")
	logger.Println("Saving summary in file", fn)
	f, err := os.Create(fn)
	if err != nil {
		errc <- fmt.Errorf("Error creating file %s: %s", fn, err)
		return
	}
	defer f.Close()
	_, err = fmt.Fprintf(f, "frames\t%d\nstrong\t%d\nmean\t%.1f\nmaxframe\t%d\nmax\t%d\n",
		len(counts), total, float64(total)/float64(len(counts)), maxframe, max)
	if err != nil {
		errc <- fmt.Errorf("Error writing summary file: %s", err)
		return
	}
	f.Close()
	up <- fn

	select {
	case <-ctx.Done():
		errc <- ctx.Err()
		return
	default:
	}

	logger.Println("Creating graph")
	fn = filepath.Join(savedir, "graph.png")
	f, err = os.Create(fn)
	if err != nil {
		errc <- fmt.Errorf("Error creating file %s: %s", fn, err)
		return
	}
	defer f.Close()
	err = spotpipeline.Graph(counts, filepath.Base(savedir), f)
	if err != nil {
		_ = os.Remove(fn)
	}
	if err != nil && err.Error() != "Not enough frames to graph" {
		errc <- fmt.Errorf("Error rendering graph: %s", err)
		return
	}

	select {
	case <-ctx.Done():
		errc <- ctx.Err()
		return
	default:
	}

	if err == nil {
		up <- fn
	}

	close(up)
}

func heartbeat(conn Queuer, t *time.Ticker, msg spotpipeline.Qmsg, queue string, msgc chan spotpipeline.Qmsg, errc chan error) {
	currentmsg := msg
	for range t.C {
		m, err := conn.QueueHeartbeat(currentmsg, queue, HeartbeatSeconds*2)
		if err != nil {
			// This is for better debugging of the heartbeat issue
			conn.Log("Error with heartbeat", err)
			os.Exit(1)
			// TODO: would be better to ensure this error stops any running
			//       processes, as they will ultimately fail in the case of
			//       it. could do this by setting a global variable that
			//       processes check each time they loop.
			errc <- err
			t.Stop()
			return
		}
		if m.Id != "" {
			conn.Log("Replaced message handle as visibilitytimeout limit was reached")
			currentmsg = m
			// TODO: maybe handle communicating new msg more gracefully than this
			for range msgc {
			} // throw away any old msgc
			msgc <- m
		}
	}
}

// ProcessDataset handles the core lifecycle of processing one queue
// message: downloading the files of the named dataset which match,
// running the process function over them, uploading the results with
// the dataset prefix, and finally passing the dataset on to the next
// queue and removing the message from the current one. A heartbeat
// keeps the message hidden from other workers while this goes on.
func ProcessDataset(ctx context.Context, msg spotpipeline.Qmsg, conn Pipeliner, process func(context.Context, chan string, chan string, chan error, *log.Logger), match *regexp.Regexp, fromQueue string, toQueue string) error {
	dl := make(chan string)
	msgc := make(chan spotpipeline.Qmsg)
	processc := make(chan string)
	upc := make(chan string)
	done := make(chan bool)
	errc := make(chan error)

	dataset := strings.Fields(msg.Body)[0]

	d := filepath.Join(os.TempDir(), dataset)
	err := os.MkdirAll(d, 0755)
	if err != nil {
		return fmt.Errorf("Failed to create directory %s: %s", d, err)
	}

	t := time.NewTicker(HeartbeatSeconds * time.Second)
	go heartbeat(conn, t, msg, fromQueue, msgc, errc)

	// these functions will do their jobs when their channels have data
	go download(ctx, dl, processc, conn, d, errc, conn.GetLogger())
	go process(ctx, processc, upc, errc, conn.GetLogger())
	go up(ctx, upc, done, conn, dataset, errc, conn.GetLogger())

	conn.Log("Getting list of objects to download")
	objs, err := conn.ListObjects(conn.WIPStorageId(), dataset)
	if err != nil {
		t.Stop()
		_ = os.RemoveAll(d)
		return fmt.Errorf("Failed to get list of files for dataset %s: %s", dataset, err)
	}
	var todl []string
	for _, n := range objs {
		if !match.MatchString(n) {
			conn.Log("Skipping item that doesn't match target", n)
			continue
		}
		todl = append(todl, n)
	}
	for _, a := range todl {
		dl <- a
	}
	close(dl)

	// wait for either the done or errc channel to be sent to
	select {
	case err = <-errc:
		t.Stop()
		_ = os.RemoveAll(d)
		// if the error is in spot finding, chances are that it will never
		// complete, as every retry will hit the same frames, so in that
		// case it's better to delete the message from the queue and
		// notify us.
		if fromQueue == conn.SpotQueueId() {
			conn.Log("Deleting message from queue due to a bad error", fromQueue)
			err2 := conn.DelFromQueue(fromQueue, msg.Handle)
			if err2 != nil {
				conn.Log("Error deleting message from queue", err2)
			}
			ms, err2 := GetMailSettings()
			if err2 != nil {
				conn.Log("Failed to mail settings ", err2)
			}
			if err2 == nil && ms.server != "" {
				logs, err2 := getLogs()
				if err2 != nil {
					conn.Log("Failed to get logs ", err2)
					logs = ""
				}
				msg := fmt.Sprintf("To: %s\r\nFrom: %s\r\n"+
					"Subject: [spotpipeline] Error in spot finding queue with %s\r\n\r\n"+
					" Fail message: %s\r\nFull log:\r\n%s\r\n",
					ms.to, ms.from, dataset, err, logs)
				host := fmt.Sprintf("%s:%s", ms.server, ms.port)
				auth := smtp.PlainAuth("", ms.user, ms.pass, ms.server)
				err2 = smtp.SendMail(host, auth, ms.from, []string{ms.to}, []byte(msg))
				if err2 != nil {
					conn.Log("Error sending email ", err2)
				}
			}
		}
		return err
	case <-ctx.Done():
		t.Stop()
		_ = os.RemoveAll(d)
		return ctx.Err()
	case <-done:
	}

	if toQueue != "" {
		conn.Log("Sending", dataset, "to queue", toQueue)
		err = conn.AddToQueue(toQueue, dataset)
		if err != nil {
			t.Stop()
			_ = os.RemoveAll(d)
			return fmt.Errorf("Error adding to queue %s: %s", dataset, err)
		}
	}

	t.Stop()

	// check whether we're using a newer msg handle
	select {
	case m, ok := <-msgc:
		if ok {
			msg = m
			conn.Log("Using new message handle to delete message from queue")
		}
	default:
		conn.Log("Using original message handle to delete message from queue")
	}

	conn.Log("Deleting original message from queue", fromQueue)
	err = conn.DelFromQueue(fromQueue, msg.Handle)
	if err != nil {
		_ = os.RemoveAll(d)
		return fmt.Errorf("Error deleting message from queue: %s", err)
	}

	err = os.RemoveAll(d)
	if err != nil {
		return fmt.Errorf("Failed to remove directory %s: %s", d, err)
	}

	return nil
}

// TODO: rather than relying on journald, would be nicer to save the logs
//       ourselves maybe, so that we weren't relying on a particular systemd
//       setup. this can be done by having the conn.Log also append line
//       to a file (though that would mean everything would have to go through
//       conn.Log, which we're not consistently doing yet). the correct thing
//       to do then would be to implement a new interface that covers the part
//       of log.Logger we use (e.g. Print and Printf), and then have an exported
//       conn struct that implements those, so that we could pass a log.Logger
//       or the new conn struct everywhere (we wouldn't be passing a log.Logger,
//       it's just good to be able to keep the compatibility)
func getLogs() (string, error) {
	cmd := exec.Command("journalctl", "-u", "spotpipeline", "-n", "all")
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.String(), err
}

func SaveLogs(conn Uploader, starttime int64, hostname string) error {
	logs, err := getLogs()
	if err != nil {
		return fmt.Errorf("Error getting logs, error: %v", err)
	}
	key := fmt.Sprintf("spotpipeline.log.%d.%s", starttime, hostname)
	path := filepath.Join(os.TempDir(), key)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("Error creating log file: %v", err)
	}
	defer f.Close()
	_, err = f.WriteString(logs)
	if err != nil {
		return fmt.Errorf("Error saving log file: %v", err)
	}
	_ = f.Close()
	err = conn.Upload(conn.WIPStorageId(), key, path)
	if err != nil {
		return fmt.Errorf("Error uploading log: %v", err)
	}
	conn.Log("Log saved to", key)
	return nil
}
