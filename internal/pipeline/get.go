// Copyright 2019 Nick White.
// Use of this source code is governed by the GPLv3
// license that can be found in the LICENSE file.

package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
)

// DownloadAnalyses downloads the analysis output for a dataset:
// the spotcounts and summary files and the strong pixel graph.
func DownloadAnalyses(dir string, name string, conn Downloader) error {
	for _, a := range []string{"spotcounts", "summary", "graph.png"} {
		key := filepath.Join(name, a)
		fn := filepath.Join(dir, a)
		err := conn.Download(conn.WIPStorageId(), key, fn)
		// ignore errors with graph.png, as it will not exist in the case of a 1 frame dataset
		if err != nil && a != "graph.png" {
			return fmt.Errorf("Failed to download analysis file %s: %v", key, err)
		}
	}
	return nil
}

// DownloadAll downloads every file stored for a dataset.
func DownloadAll(dir string, name string, conn DownloadLister) error {
	objs, err := conn.ListObjects(conn.WIPStorageId(), name)
	if err != nil {
		return fmt.Errorf("Failed to get list of files for dataset %s: %v", name, err)
	}
	for _, i := range objs {
		base := filepath.Base(i)
		fn := filepath.Join(dir, base)
		conn.Log("Downloading", i)
		err = conn.Download(conn.WIPStorageId(), i, fn)
		if err != nil {
			return fmt.Errorf("Failed to download file %s: %v", i, err)
		}
	}
	return nil
}

// DownloadMask downloads the pixel mask for a dataset, if one was
// uploaded; a missing mask is not an error.
func DownloadMask(dir string, name string, conn Downloader) error {
	key := filepath.Join(name, "mask.tiff")
	fn := filepath.Join(dir, "mask.tiff")
	err := conn.Download(conn.WIPStorageId(), key, fn)
	if err != nil {
		_ = os.Remove(fn)
	}
	return nil
}
