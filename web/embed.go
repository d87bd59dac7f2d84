// Package web embeds the landing page and the log browser template.
package web

import "embed"

//go:embed index.html logs.html
var FS embed.FS
