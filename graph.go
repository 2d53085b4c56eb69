// Copyright 2021 Nick White.
// Use of this source code is governed by the GPLv3
// license that can be found in the LICENSE file.

package spotpipeline

import (
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

const maxticks = 40

// SpotCount records the number of strong pixels found on one frame
// of a dataset.
type SpotCount struct {
	Frame  int
	Strong int
}

// createLine creates a horizontal line with a particular y value for
// a graph
func createLine(xvalues []float64, y float64, c drawing.Color) chart.ContinuousSeries {
	var yvalues []float64
	for range xvalues {
		yvalues = append(yvalues, y)
	}
	return chart.ContinuousSeries{
		XValues: xvalues,
		YValues: yvalues,
		Style: chart.Style{
			StrokeColor: c,
		},
	}
}

// Graph creates a graph of the strong pixel count on each frame of
// a dataset, with a dashed guideline at the mean count so outlier
// frames stand out.
func Graph(counts []SpotCount, dataset string, w io.Writer) error {
	if len(counts) < 2 {
		return errors.New("Not enough frames to graph")
	}

	sorted := make([]SpotCount, len(counts))
	copy(sorted, counts)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Frame < sorted[j].Frame })

	var xvalues, yvalues []float64
	var ticks []chart.Tick
	var total float64
	tickevery := len(sorted) / maxticks
	if tickevery < 1 {
		tickevery = 1
	}
	max := 0.0
	for i, c := range sorted {
		xvalues = append(xvalues, float64(c.Frame))
		yvalues = append(yvalues, float64(c.Strong))
		total += float64(c.Strong)
		if float64(c.Strong) > max {
			max = float64(c.Strong)
		}
		if i%tickevery == 0 {
			ticks = append(ticks, chart.Tick{Value: float64(c.Frame), Label: fmt.Sprintf("%d", c.Frame)})
		}
	}
	if max == 0 {
		max = 1
	}
	// Make last tick the final frame
	final := sorted[len(sorted)-1]
	ticks[len(ticks)-1] = chart.Tick{Value: float64(final.Frame), Label: fmt.Sprintf("%d", final.Frame)}

	mainSeries := chart.ContinuousSeries{
		Style: chart.Style{
			StrokeColor: chart.ColorBlue,
			FillColor:   chart.ColorAlternateBlue,
		},
		XValues: xvalues,
		YValues: yvalues,
	}

	mean := total / float64(len(sorted))
	meanSeries := createLine(xvalues, mean, chart.ColorAlternateGray)
	meanSeries.Style.StrokeDashArray = []float64{5.0, 5.0}

	graph := chart.Chart{
		Title:  dataset,
		Width:  3840,
		Height: 2160,
		XAxis: chart.XAxis{
			Name: "Frame",
			Range: &chart.ContinuousRange{
				Min: 0.0,
			},
			Ticks: ticks,
		},
		YAxis: chart.YAxis{
			Name: "Strong pixels",
			Range: &chart.ContinuousRange{
				Min: 0.0,
				Max: max * 1.1,
			},
		},
		Series: []chart.Series{
			mainSeries,
			meanSeries,
			chart.AnnotationSeries{
				Annotations: []chart.Value2{
					{Label: fmt.Sprintf("mean %.0f", mean), XValue: xvalues[len(xvalues)-1], YValue: mean},
				},
			},
		},
	}
	return graph.Render(chart.PNG, w)
}
