package server

import (
	"embed"
	"html/template"
	"strings"

	"github.com/mahesh-hegde/tilasto/app/common"
)

//go:embed template/*.html template/info.md
var templateFs embed.FS

//go:embed static
var staticFs embed.FS

func MustParseTemplates(hashFs *HashFS) *template.Template {
	funcMap := template.FuncMap{
		"join": strings.Join,
		"static": func(path string) string {
			return "/static/" + hashFs.FormatWithHash(path)
		},
		"metricName": func(m common.Metric) string {
			return common.MetricStyles[m].ReadableName
		},
	}

	return template.Must(template.New("").Funcs(funcMap).ParseFS(templateFs, "template/*.html"))
}
