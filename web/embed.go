// Package web carries the editor UI: page templates and the static files
// the browser loads alongside htmx.
package web

import "embed"

// TemplatesFS holds the dashboard, editor and profile templates with their
// htmx fragments.
//
//go:embed templates/*.html
var TemplatesFS embed.FS

// StaticFS holds app.css and app.js, served under /static/.
//
//go:embed static/*
var StaticFS embed.FS
