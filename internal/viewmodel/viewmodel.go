package viewmodel

import "html/template"

// Option is one entry of a select input.
type Option struct {
	Value    string
	Label    string
	Selected bool
}

// BackgroundOption is one gradient swatch of the control panel.
type BackgroundOption struct {
	ID       string
	Class    string
	Selected bool
}

// ViewerRow holds one viewer for the simulator list and the name editor.
type ViewerRow struct {
	Index      int
	Name       string
	HasReacted bool
	Reaction   string
	TimeAgo    string
	IsOnline   bool
	Avatar     string
}

// Simulator holds data for the phone-shaped status preview.
type Simulator struct {
	ViewCount       string
	IsImage         bool
	ImageURL        template.URL
	BackgroundClass string
	Headline        string
	Lines           []string
	Placeholder     string
	Viewers         []ViewerRow
}

// ExportButton holds the state of one export trigger.
type ExportButton struct {
	Kind     string
	State    string
	Progress int
	Active   bool
}

// ExportPanel holds data for the export section.
type ExportPanel struct {
	PNG          ExportButton
	HTML         ExportButton
	Busy         bool
	ShowProgress bool
}

// ControlPanel holds data for the editor column.
type ControlPanel struct {
	StatusType    string
	ViewCount     int
	ViewFormats   []Option
	StatusText    string
	MaxTextLength int
	Backgrounds   []BackgroundOption
	Pools         []Option
	GenerateCount int
	HasImage      bool
	ImageURL      template.URL
	ImageName     string
	Viewers       []ViewerRow
	Export        ExportPanel
}

// Workspace is the simulator and the control panel side by side.
type Workspace struct {
	Simulator Simulator
	Panel     ControlPanel
}

// GeneratorPage holds data for the main page.
type GeneratorPage struct {
	Title     string
	Version   string
	Workspace Workspace
}

// PreviewPage holds data for the simulator-only page.
type PreviewPage struct {
	Title     string
	Simulator Simulator
}
