package server

import (
	"html/template"
	"io"

	"github.com/labstack/echo/v4"
	"github.com/mahesh-hegde/tilasto/app/config"
)

type TemplateRenderer struct {
	tmpl *template.Template
	conf *config.TilastoConfig
}

func (t *TemplateRenderer) Render(w io.Writer, name string, data interface{}, c echo.Context) error {
	wrappedData := map[string]any{
		"Page":     name,
		"Instance": t.conf.InstanceName,
		"Data":     data,
	}
	err := t.tmpl.ExecuteTemplate(w, "layout.html", wrappedData)
	if err != nil {
		c.Logger().Error(err)
		return err
	}
	return nil
}

func NewTemplateRenderer(conf *config.TilastoConfig, hashFs *HashFS) *TemplateRenderer {
	return &TemplateRenderer{
		tmpl: MustParseTemplates(hashFs),
		conf: conf,
	}
}
