package viewmodel

import (
	"html/template"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"statusgen/internal/export"
	"statusgen/internal/status"
)

// CountFormatter renders view counts for one locale.
type CountFormatter struct {
	p *message.Printer
}

// NewCountFormatter returns a formatter for locale, French when it cannot be parsed.
func NewCountFormatter(locale string) CountFormatter {
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.French
	}
	return CountFormatter{p: message.NewPrinter(tag)}
}

// Format renders n using one of the status view formats. Unknown formats mean exact.
func (f CountFormatter) Format(n int, format string) string {
	if f.p == nil {
		f = NewCountFormatter("fr")
	}
	switch {
	case n < 1000 || format == "" || format == status.ViewFormatExact:
		return f.p.Sprintf("%d", n)
	case format == status.ViewFormatThousands:
		return f.p.Sprintf("%dK+", n/1000)
	case format == status.ViewFormatAbbreviated && n < 1_000_000:
		return f.p.Sprint(number.Decimal(float64(n)/1000, number.MaxFractionDigits(1))) + "K"
	case format == status.ViewFormatAbbreviated:
		return f.p.Sprint(number.Decimal(float64(n)/1_000_000, number.MaxFractionDigits(1))) + "M"
	default:
		return f.p.Sprintf("%d", n)
	}
}

var viewFormatLabels = []Option{
	{Value: status.ViewFormatExact, Label: "Nombre exact (1,247)"},
	{Value: status.ViewFormatAbbreviated, Label: "Abrégé (1.2K)"},
	{Value: status.ViewFormatThousands, Label: "Milliers (1K+)"},
}

func toViewerRows(viewers []status.Viewer) []ViewerRow {
	out := make([]ViewerRow, 0, len(viewers))
	for i, v := range viewers {
		out = append(out, ViewerRow{
			Index:      i,
			Name:       v.Name,
			HasReacted: v.HasReacted,
			Reaction:   v.Reaction,
			TimeAgo:    v.TimeAgo,
			IsOnline:   v.IsOnline,
			Avatar:     v.Avatar,
		})
	}
	return out
}

// imageURL marks a stored status image as safe for src attributes. Only data
// URLs produced by the upload path are accepted.
func imageURL(dataURL string) template.URL {
	if !strings.HasPrefix(dataURL, "data:image/") {
		return ""
	}
	return template.URL(dataURL)
}

// BuildSimulator flattens a session state for the simulator.
func BuildSimulator(state status.State, counts CountFormatter) Simulator {
	cfg := state.Config
	sim := Simulator{
		ViewCount:       counts.Format(cfg.ViewCount, cfg.ViewFormat),
		BackgroundClass: cfg.BackgroundClass(),
		Viewers:         toViewerRows(state.Viewers),
	}
	switch {
	case cfg.StatusType == status.TypeImage && cfg.StatusImage != "":
		sim.IsImage = true
		sim.ImageURL = imageURL(cfg.StatusImage)
	case cfg.StatusType == status.TypeImage:
		sim.Placeholder = "Ajouter une image..."
	case cfg.StatusText == "":
		sim.Placeholder = "Votre message..."
	default:
		lines := strings.Split(cfg.StatusText, "\n")
		sim.Headline = lines[0]
		if sim.Headline == "" {
			sim.Headline = "Votre message..."
		}
		sim.Lines = lines[1:]
	}
	return sim
}

// BuildExportPanel flattens export statuses, as returned by Tracker.Snapshot.
func BuildExportPanel(statuses []export.Status) ExportPanel {
	var panel ExportPanel
	for _, st := range statuses {
		btn := ExportButton{Kind: string(st.Kind), State: string(st.State), Progress: st.Progress, Active: st.Active()}
		switch st.Kind {
		case export.KindPNG:
			panel.PNG = btn
			panel.ShowProgress = st.Active() || st.Progress > 0
		case export.KindHTML:
			panel.HTML = btn
		}
		if st.Active() {
			panel.Busy = true
		}
	}
	return panel
}

// BuildControlPanel flattens a session state for the editor column. pool is
// the name pool preselected in the generator.
func BuildControlPanel(state status.State, pool string, exports []export.Status) ControlPanel {
	cfg := state.Config
	panel := ControlPanel{
		StatusType:    string(cfg.StatusType),
		ViewCount:     cfg.ViewCount,
		StatusText:    cfg.StatusText,
		MaxTextLength: status.MaxTextLength,
		GenerateCount: status.GenerateCount(cfg.ViewCount),
		HasImage:      cfg.StatusImage != "",
		ImageURL:      imageURL(cfg.StatusImage),
		ImageName:     cfg.ImageName,
		Viewers:       toViewerRows(state.Viewers),
		Export:        BuildExportPanel(exports),
	}
	format := cfg.ViewFormat
	if format == "" {
		format = status.ViewFormatExact
	}
	for _, o := range viewFormatLabels {
		o.Selected = o.Value == format
		panel.ViewFormats = append(panel.ViewFormats, o)
	}
	for _, bg := range status.Backgrounds {
		panel.Backgrounds = append(panel.Backgrounds, BackgroundOption{
			ID:       bg.ID,
			Class:    bg.Class,
			Selected: bg.ID == cfg.BackgroundType,
		})
	}
	if !status.ValidPool(pool) {
		pool = string(status.PoolFrench)
	}
	for _, p := range status.Pools() {
		panel.Pools = append(panel.Pools, Option{Value: string(p), Label: p.Label(), Selected: string(p) == pool})
	}
	return panel
}

// BuildWorkspace combines the simulator and the control panel.
func BuildWorkspace(state status.State, pool string, exports []export.Status, counts CountFormatter) Workspace {
	return Workspace{
		Simulator: BuildSimulator(state, counts),
		Panel:     BuildControlPanel(state, pool, exports),
	}
}
