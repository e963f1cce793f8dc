// Package views renders the generator UI. Templates are embedded html/template
// sources exposed as templ components.
package views

import (
	"embed"
	"html/template"
	"io/fs"

	"github.com/a-h/templ"

	"statusgen/internal/export"
	"statusgen/internal/viewmodel"
)

//go:embed templates/*.gohtml
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

var templates = template.Must(template.New("views").ParseFS(templateFS, "templates/*.gohtml"))

func component(name string, data any) templ.Component {
	return templ.FromGoHTML(templates.Lookup(name), data)
}

// GeneratorPage is the full editor page.
func GeneratorPage(data viewmodel.GeneratorPage) templ.Component {
	return component("generator_page", data)
}

// PreviewPage is a page holding only the simulator. Exports render it.
func PreviewPage(data viewmodel.PreviewPage) templ.Component {
	return component("preview_page", data)
}

// Workspace is the simulator and control panel fragment swapped by htmx.
func Workspace(data viewmodel.Workspace) templ.Component {
	return component("workspace", data)
}

// Simulator is the phone-shaped status preview.
func Simulator(data viewmodel.Simulator) templ.Component {
	return component("simulator", data)
}

// ExportPanel is the export section of the control panel.
func ExportPanel(data viewmodel.ExportPanel) templ.Component {
	return component("export_panel", data)
}

// StaticFS serves app.css and app.js.
func StaticFS() fs.FS {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	return sub
}

// Stylesheets are the embedded stylesheets inlined into exports.
func Stylesheets() ([]export.StyleSource, error) {
	return export.FSStyles(StaticFS(), "*.css")
}
