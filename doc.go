// Copyright 2020 Nick White.
// Use of this source code is governed by the GPLv3
// license that can be found in the LICENSE file.

/*
The spotpipeline package contains various tools and functions for
finding diffraction spots in X-ray detector images, with a focus on
distributed processing of large datasets of frames. It also contains
several tools that are useful standalone; read the accompanying
README for more details.

Introduction

The spot pipeline is a way to split the processing of diffraction
datasets into small jobs, which can be processed when a computer is
ready for them. It is currently implemented with Amazon's AWS cloud
systems, and can scale from zero to many computers, with jobs being
processed faster when more servers are available.

Central to the pipeline in terms of software is the spotpipeline
command, which is part of the rescribe.xyz/spotpipeline package.
Presuming you have the go tools installed, you can install it, and
useful tools to control the system, with this command:
  go get -u rescribe.xyz/spotpipeline/...

All of the tools provided in the spotpipeline package will give
information on what they do and how they work with the '-h' flag, so
for example to get usage information on the datasettopipeline tool
simply run the following:
  datasettopipeline -h

To get the pipeline tools to work for you, you'll need to change the
settings in cloudsettings.go, and set up your ~/.aws/credentials
appropriately.

Managing servers

The spotpipeline program is run as a service managed by systemd on
the servers. The system is resiliant in the face of unexpected
failures; see the section "How the pipeline works" for details on
this. spotpipeline can be managed like any other systemd service. A
few examples:
  # show all logs for spotpipeline:
  ssh -i key.pem admin@<ip-address> journalctl -n all -u spotpipeline
  # restart spotpipeline
  ssh -i key.pem admin@<ip-address> systemctl restart spotpipeline

Using the pipeline

Datasets can be added to the pipeline using the "datasettopipeline"
tool. This takes a directory of frame images as input, and uploads
them all to S3, adding a job to the pipeline queue to start
processing them. So it can be used like this:
  datasettopipeline -v ExcellentCrystal/

A directory may contain a file named mask.tiff, which marks the
detector pixels to ignore; a mask pixel value of zero means the
pixel is usable, anything else means it is not.

Getting a finished dataset

Once a dataset has been finished, it can be downloaded using the
"getdataset" tool. The default case will download the spotcounts,
summary and graph.png analysis files; the -all flag downloads
everything stored for the dataset, frames included. Use it like
this:
  getdataset ExcellentCrystal

How the pipeline works

The central part of the spot pipeline is several SQS queues, which
contain jobs which need to be done by a server running spotpipeline.
Each queue is checked at least once every couple of minutes on any
server that isn't currently processing a job.

When a job is taken from the queue by a process, it is hidden from
the queue for 2 minutes so that no other process can take it. Once
per minute when processing a job the process sends a message
updating the queue, to tell it to keep the job hidden for two
minutes. This is called the "heartbeat", as if the process fails for
any reason the heartbeat will stop, and in 2 minutes the job will
reappear on the queue for another process to have a go at. Once a
job is completed successfully it is deleted from the queue.

Queues

Queue names are defined in cloudsettings.go.

queueSpot

Each message in the queueSpot queue is a dataset name. Every frame
of the dataset is run through the spot finder, which calculates the
local mean and variance of the area around each pixel and flags the
pixels which are significantly brighter than their surroundings.
The number of strong pixels found on each frame is saved to a
spotcounts file, which is uploaded to S3, and the dataset name is
then added to the queueAnalyse queue.

  example message: TehranVirus3_EigerMarch

queueAnalyse

A message on the queueAnalyse queue contains only a dataset name.
The spotcounts file is read, a summary of the dataset statistics is
saved in the 'summary' file, and the strong pixel graph is generated
and saved as 'graph.png', so that frames where the crystal was hit
stand out and can be picked for indexing.

  example message: TehranVirus3_EigerMarch

Queue manipulation

The queues should generally only be messed with by the spotpipeline
and datasettopipeline tools, but if you're feeling ambitious you can
take a look at the `addtoqueue` tool.

Remember that messages in a queue are hidden for a few minutes when
they are read, so for example you couldn't straightforwardly delete
a message which was currently being processed by a server, as you
wouldn't be able to see it.

Frame naming

Frames are stored as 16 bit grayscale TIFF files, one frame per
file, and are processed in file name order, so their names need to
sort correctly. The datasettopipeline tool appends sequential
numbers, like 0001, to every uploaded frame to guarantee this. The
pixel mask, if present, is always named mask.tiff.

Local operation

While spotpipeline was built with cloud based operation in mind,
there is also a local mode that can be used to run spot finding jobs
from a single computer, with all the benefits of queueing, graph
creation and so on that the pipeline provides.

You can use this by passing the '-c local' flag to the core
spotpipeline commands. Here is a simple example run:

  datasettopipeline -c local MyCrystal
  spotpipeline -v -c local      # run until MyCrystal has finished processing
  getdataset -c local MyCrystal

Alternatively the spotfind tool runs the whole process over a
directory of frames directly, with no queues or storage involved:

  spotfind MyCrystal/

Note that the local mode is not as well tested as the core cloud
modes; please report any bugs you find with it.
*/
package spotpipeline
