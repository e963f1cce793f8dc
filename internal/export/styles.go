package export

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"sort"
	"strings"

	"statusgen/internal/logx"
)

// StyleSource is one stylesheet whose rules are inlined into exported documents.
type StyleSource interface {
	Name() string
	Rules(ctx context.Context) (string, error)
}

type fsStyle struct {
	fsys fs.FS
	path string
}

func (s fsStyle) Name() string { return s.path }

func (s fsStyle) Rules(context.Context) (string, error) {
	b, err := fs.ReadFile(s.fsys, s.path)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// FSStyles returns one source per file in fsys matching pattern, in name order.
func FSStyles(fsys fs.FS, pattern string) ([]StyleSource, error) {
	matches, err := fs.Glob(fsys, pattern)
	if err != nil {
		return nil, fmt.Errorf("glob stylesheets: %w", err)
	}
	sort.Strings(matches)
	out := make([]StyleSource, 0, len(matches))
	for _, m := range matches {
		out = append(out, fsStyle{fsys: fsys, path: m})
	}
	return out, nil
}

type urlStyle struct {
	url    string
	client *http.Client
}

// URLStyle is a stylesheet fetched over HTTP at export time.
func URLStyle(url string, client *http.Client) StyleSource {
	if client == nil {
		client = http.DefaultClient
	}
	return urlStyle{url: url, client: client}
}

func (s urlStyle) Name() string { return s.url }

func (s urlStyle) Rules(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return "", err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch %s: %s", s.url, resp.Status)
	}
	b, err := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// CollectStyles joins the rules of every readable source. Unreadable sources are
// skipped; they never fail the export.
func CollectStyles(ctx context.Context, sources []StyleSource) string {
	log := logx.Ctx(ctx)
	parts := make([]string, 0, len(sources))
	for _, src := range sources {
		rules, err := src.Rules(ctx)
		if err != nil {
			log.Debug().Err(err).Str("stylesheet", src.Name()).Msg("stylesheet skipped")
			continue
		}
		parts = append(parts, rules)
	}
	return strings.Join(parts, "\n")
}
