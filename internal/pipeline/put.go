// Copyright 2021 Nick White.
// Use of this source code is governed by the GPLv3
// license that can be found in the LICENSE file.

package pipeline

import (
	"context"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/tiff"
)

// null writer to enable non-verbose logging to be discarded
type NullWriter bool

func (w NullWriter) Write(p []byte) (n int, err error) {
	return len(p), nil
}

type fileWalk chan string

// Walk sends the path of all files to the channel, with the exception of
// any file which starts with "."
func (f fileWalk) Walk(path string, info os.FileInfo, err error) error {
	if err != nil {
		return err
	}
	// skip files starting with . to prevent automatically generated
	// files like .DS_Store getting in the way
	if strings.HasPrefix(filepath.Base(path), ".") {
		return nil
	}
	if !info.IsDir() {
		f <- path
	}
	return nil
}

// CheckFrames checks that all files with a ".tiff" or ".tif" suffix
// in a directory are images that can be decoded (skipping dotfiles)
func CheckFrames(ctx context.Context, dir string) error {
	checker := make(fileWalk)
	go func() {
		_ = filepath.Walk(dir, checker.Walk)
		close(checker)
	}()

	n := 0
	for path := range checker {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		suffix := filepath.Ext(path)
		lsuffix := strings.ToLower(suffix)
		if lsuffix != ".tiff" && lsuffix != ".tif" {
			continue
		}
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("Opening frame %s failed: %v", path, err)
		}
		_, err = tiff.Decode(f)
		f.Close()
		if err != nil {
			return fmt.Errorf("Decoding frame %s failed: %v", path, err)
		}
		n++
	}

	if n == 0 {
		return fmt.Errorf("No frames found")
	}

	return nil
}

// UploadFrames uploads all files with a suffix of ".tiff" or ".tif"
// (except those which start with a ".") from a directory into
// conn.WIPStorageId(), prefixed with the given dataset name and a
// slash. It also appends all file names with sequential numbers, like
// 0001, to ensure they are appropriately ordered for processing in
// the pipeline. A mask file keeps its name, as it applies to the
// whole dataset rather than one frame.
func UploadFrames(ctx context.Context, dir string, dataset string, conn Uploader) error {
	files, err := ioutil.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("Failed to read directory %s: %v", dir, err)
	}

	filenum := 0
	for _, file := range files {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if file.IsDir() {
			continue
		}
		origsuffix := filepath.Ext(file.Name())
		lsuffix := strings.ToLower(origsuffix)
		if lsuffix != ".tiff" && lsuffix != ".tif" {
			continue
		}
		origname := file.Name()
		origbase := strings.TrimSuffix(origname, origsuffix)
		origpath := filepath.Join(dir, origname)

		newname := origname
		if origname != "mask.tiff" {
			newname = fmt.Sprintf("%s_%04d%s", origbase, filenum, origsuffix)
			filenum++
		}
		err = conn.Upload(conn.WIPStorageId(), filepath.Join(dataset, newname), origpath)
		if err != nil {
			return fmt.Errorf("Failed to upload %s: %v", origpath, err)
		}
	}

	return nil
}
