package chart

import (
	"encoding/json"
	"fmt"
	"html/template"
	"math"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/google/uuid"
)

// EChartsAsset is the script the page must load before any Fragments.
const EChartsAsset = "https://go-echarts.github.io/go-echarts-assets/assets/echarts.min.js"

const dateLayout = "2006-01-02"

// Fragments are the two embeddable pieces of a rendered chart.
type Fragments struct {
	Script template.HTML
	Div    template.HTML
}

// Render serializes c into a container div and the script that draws it.
func Render(c *Chart) (Fragments, error) {
	id := "chart_" + uuid.NewString()[:8]

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			ChartID: id,
			Width:   "900px",
			Height:  "500px",
		}),
		charts.WithTitleOpts(opts.Title{Title: c.Title}),
		charts.WithTooltipOpts(opts.Tooltip{Trigger: "axis"}),
		charts.WithXAxisOpts(opts.XAxis{Name: c.XLabel, Type: "category"}),
		charts.WithYAxisOpts(opts.YAxis{Name: c.YLabel}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "inside"}),
	)

	x := make([]string, len(c.Dates))
	for i, d := range c.Dates {
		x[i] = d.Format(dateLayout)
	}
	line.SetXAxis(x)

	for _, s := range c.Series {
		line.AddSeries(s.Name, lineData(s.Values),
			charts.WithLineStyleOpts(opts.LineStyle{Color: s.Color}),
			charts.WithItemStyleOpts(opts.ItemStyle{Color: s.Color}),
		)
	}
	line.Validate()

	// json.Marshal escapes <, > and & so the title cannot close the script.
	raw, err := json.Marshal(line.JSON())
	if err != nil {
		return Fragments{}, fmt.Errorf("render chart %q: %w", c.Title, err)
	}
	option := string(raw)

	div := fmt.Sprintf(`<div class="pricegraph-chart" id="%s" style="width:900px;height:500px;"></div>`, id)
	script := fmt.Sprintf(`<script type="text/javascript">
(function () {
  var el = document.getElementById(%q);
  var chart = echarts.init(el, "white", {renderer: "canvas"});
  chart.setOption(%s);
  window.addEventListener("resize", function () { chart.resize(); });
})();
</script>`, id, option)

	return Fragments{Script: template.HTML(script), Div: template.HTML(div)}, nil
}

// lineData maps NaN cells to gaps; encoding/json rejects NaN.
func lineData(values []float64) []opts.LineData {
	out := make([]opts.LineData, len(values))
	for i, v := range values {
		if math.IsNaN(v) {
			out[i] = opts.LineData{Value: nil}
			continue
		}
		out[i] = opts.LineData{Value: v}
	}
	return out
}
