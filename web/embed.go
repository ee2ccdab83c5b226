// Package web embeds the dashboard page template and static assets.
package web

import (
	"embed"
	"io/fs"
)

//go:embed all:dist
var distFS embed.FS

// Assets returns the embedded dashboard assets filesystem.
// The returned FS has dist/ as its root, so files are accessed
// directly (e.g., "index.html" not "dist/index.html").
func Assets() (fs.FS, error) {
	return fs.Sub(distFS, "dist")
}
