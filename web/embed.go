// Package web holds the embedded templates and static assets of the dashboard.
package web

import (
	"embed"
	"html/template"
	"io/fs"
)

// TemplatesFS embeds HTML templates for server-side rendering.
//
//go:embed templates/*.html
var TemplatesFS embed.FS

// StaticFS embeds static assets (css/js).
//
//go:embed static/*
var StaticFS embed.FS

// Templates parses every embedded template. Each file is addressable by its
// base name, e.g. "table.html".
func Templates() (*template.Template, error) {
	return template.ParseFS(TemplatesFS, "templates/*.html")
}

// Static returns the static assets rooted at the static/ directory.
func Static() (fs.FS, error) {
	return fs.Sub(StaticFS, "static")
}
