package report

import (
	"strconv"
	"strings"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/Sumatoshi-tech/revchurn/pkg/churn"
)

const (
	chartStackName = "churn"
	fullZoomPct    = 100
)

// renderHTML produces an interactive stacked bar chart of lines added and
// removed per revision.
func renderHTML(result churn.Result) (string, error) {
	bar := newChart(result)

	var builder strings.Builder

	if err := bar.Render(&builder); err != nil {
		return "", &churn.RenderError{Format: string(FormatHTML), Err: err}
	}

	return builder.String(), nil
}

func newChart(result churn.Result) *charts.Bar {
	if len(result.Revisions) == 0 {
		return emptyChart()
	}

	xLabels := make([]string, len(result.Revisions))
	addedData := make([]opts.BarData, len(result.Revisions))
	removedData := make([]opts.BarData, len(result.Revisions))

	for i, stat := range result.Revisions {
		xLabels[i] = "r" + strconv.FormatInt(stat.Revision, 10)
		addedData[i] = opts.BarData{Value: stat.LinesAdded}
		removedData[i] = opts.BarData{Value: stat.LinesRemoved}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    "Code Churn History",
			Subtitle: "Lines added and removed per revision",
			Left:     "2%",
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{
			Show: opts.Bool(true),
			Top:  "5px",
			Left: "40%",
		}),
		charts.WithGridOpts(opts.Grid{
			Top:    "15%",
			Bottom: "10%",
			Left:   "5%",
			Right:  "5%",
		}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider", Start: 0, End: fullZoomPct}, opts.DataZoom{Type: "inside"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Revision"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Lines"}),
	)
	bar.SetXAxis(xLabels)
	bar.AddSeries("Added", addedData, charts.WithBarChartOpts(opts.BarChart{Stack: chartStackName}))
	bar.AddSeries("Removed", removedData, charts.WithBarChartOpts(opts.BarChart{Stack: chartStackName}))

	return bar
}

func emptyChart() *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    "Code Churn History",
			Subtitle: "No data (empty revision range)",
		}),
	)
	bar.SetXAxis([]string{})

	return bar
}
