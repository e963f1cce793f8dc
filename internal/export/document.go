package export

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"regexp"

	"github.com/a-h/templ"
)

var styleEnd = regexp.MustCompile(`(?i)</style`)

// inlineCSS keeps stylesheet text from closing the <style> element it is
// placed in.
func inlineCSS(css string) string {
	return styleEnd.ReplaceAllLiteralString(css, `<\/style`)
}

// documentComponent wraps one element and its styles into a standalone page.
func documentComponent(markup, styles string) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		_, err := fmt.Fprintf(w, `<!DOCTYPE html>
<html lang="fr">
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
  <title>WhatsApp Status</title>
  <style>%s</style>
</head>
<body>
  %s
</body>
</html>
`, inlineCSS(styles), markup)
		return err
	})
}

// Document renders the standalone export document for markup and styles.
func Document(ctx context.Context, markup, styles string) ([]byte, error) {
	var buf bytes.Buffer
	if err := documentComponent(markup, styles).Render(ctx, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
