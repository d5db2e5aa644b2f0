package domain

// VisualizationType names a renderable chart kind.
type VisualizationType string

const (
	ChartBar       VisualizationType = "bar"
	ChartLine      VisualizationType = "line"
	ChartPie       VisualizationType = "pie"
	ChartArea      VisualizationType = "area"
	ChartScatter   VisualizationType = "scatter"
	ChartRadar     VisualizationType = "radar"
	ChartHeatmap   VisualizationType = "heatmap"
	ChartBoxplot   VisualizationType = "boxplot"
	ChartWaterfall VisualizationType = "waterfall"
)

// AllVisualizationTypes returns every chart kind.
func AllVisualizationTypes() []VisualizationType {
	return []VisualizationType{
		ChartBar, ChartLine, ChartPie, ChartArea, ChartScatter,
		ChartRadar, ChartHeatmap, ChartBoxplot, ChartWaterfall,
	}
}

// Valid reports whether t is a known chart kind.
func (t VisualizationType) Valid() bool {
	for _, v := range AllVisualizationTypes() {
		if v == t {
			return true
		}
	}
	return false
}

// ChartSpec is a renderer-agnostic chart description. Data rows are plain
// maps so any charting front end can consume them directly.
type ChartSpec struct {
	ID          string            `json:"id"`
	Type        VisualizationType `json:"type"`
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Data        []map[string]any  `json:"data"`
	XKey        string            `json:"x_key"`
	YKey        string            `json:"y_key"`
	SeriesKeys  []string          `json:"series_keys,omitempty"`
	Score       float64           `json:"score"`
	Confidence  float64           `json:"confidence"`
	Reasoning   string            `json:"reasoning"`
}
