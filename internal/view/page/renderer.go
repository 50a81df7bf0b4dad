package page

import (
	"embed"
	"html/template"
	"io"

	"github.com/pkg/errors"
)

//go:embed templates/*.html
var templatesFS embed.FS

// Renderer renders the catalog HTML.
type Renderer struct {
	tpl *template.Template
}

// NewRenderer parses the embedded templates.
func NewRenderer() (*Renderer, error) {
	tpl, err := template.ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, errors.Wrap(err, "could not parse page templates")
	}
	return &Renderer{tpl: tpl}, nil
}

// Page renders the whole document.
func (r *Renderer) Page(w io.Writer, v View) error {
	if v.Setup == nil && v.Catalog == nil {
		return errors.New("page view without content")
	}
	return r.exec(w, "page", v)
}

// Panel renders the metrics panel fragment, it is the content of the
// `metrics-panel` element.
func (r *Renderer) Panel(w io.Writer, v PanelView) error {
	return r.exec(w, "panel", v)
}

func (r *Renderer) exec(w io.Writer, name string, data interface{}) error {
	if err := r.tpl.ExecuteTemplate(w, name, data); err != nil {
		return errors.Wrapf(err, "could not render %s", name)
	}
	return nil
}
