// Copyright 2021 Nick White.
// Use of this source code is governed by the GPLv3
// license that can be found in the LICENSE file.

package spotpipeline

// This file contains various cloud account specific stuff; change this if
// you want to use the cloud functionality on your own site.

// Queue names
const (
	queueSpot    = "spotpipelinefind"
	queueAnalyse = "spotpipelineanalyse"
)

// Storage bucket names
const (
	storageWip = "spotpipelineinprogress"
)
