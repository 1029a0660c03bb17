// Package template renders the server-side HTML pages.
package template

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"os"
	"path"
	"strings"

	"github.com/icubam/icubam/internal/shared/logger"
	"github.com/icubam/icubam/internal/shared/services/markdown"
)

//go:embed pages/*.html
var pageFS embed.FS

const (
	PageHome   = "home"
	PageUpdate = "update"
)

// PageLoader parses the embedded pages and the optional disclaimer.
type PageLoader struct {
	pages          map[string]*template.Template
	disclaimer     template.HTML
	disclaimerPath string
	md             markdown.Renderer
	logger         logger.Interface
}

func NewPageLoader(disclaimerPath string, md markdown.Renderer, logger logger.Interface) *PageLoader {
	return &PageLoader{
		pages:          make(map[string]*template.Template),
		disclaimerPath: disclaimerPath,
		md:             md,
		logger:         logger,
	}
}

// Load parses every page. A missing disclaimer file only disables the
// disclaimer.
func (l *PageLoader) Load() error {
	entries, err := pageFS.ReadDir("pages")
	if err != nil {
		return fmt.Errorf("failed to list pages: %w", err)
	}
	for _, e := range entries {
		name := strings.TrimSuffix(e.Name(), path.Ext(e.Name()))
		tmpl, err := template.ParseFS(pageFS, "pages/"+e.Name())
		if err != nil {
			return fmt.Errorf("failed to parse page %s: %w", e.Name(), err)
		}
		l.pages[name] = tmpl
	}

	if l.disclaimerPath == "" {
		return nil
	}
	content, err := os.ReadFile(l.disclaimerPath)
	if err != nil {
		if os.IsNotExist(err) {
			l.logger.Warnw("disclaimer file not found", "path", l.disclaimerPath)
			return nil
		}
		return fmt.Errorf("failed to read disclaimer: %w", err)
	}
	safe, err := l.md.ToSafeHTML(string(content))
	if err != nil {
		return err
	}
	// ToSafeHTML output went through the UGC policy.
	l.disclaimer = template.HTML(safe)
	l.logger.Infow("disclaimer loaded", "path", l.disclaimerPath, "size", len(content))
	return nil
}

// Disclaimer returns the sanitized disclaimer, empty when none is configured.
func (l *PageLoader) Disclaimer() template.HTML {
	return l.disclaimer
}

// Render executes page name into w.
func (l *PageLoader) Render(w io.Writer, name string, data interface{}) error {
	tmpl, ok := l.pages[name]
	if !ok {
		return fmt.Errorf("unknown page %q", name)
	}
	return tmpl.Execute(w, data)
}

// HasPage reports whether name was loaded.
func (l *PageLoader) HasPage(name string) bool {
	_, ok := l.pages[name]
	return ok
}
