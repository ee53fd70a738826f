// Package web holds the dashboard templates and static assets compiled into
// the binary.
package web

import (
	"embed"
	"io/fs"
)

//go:embed templates/*.html
var templatesFS embed.FS

//go:embed css/*.css js/*.js
var staticFS embed.FS

// Templates returns the template files rooted at templates/.
func Templates() fs.FS {
	sub, err := fs.Sub(templatesFS, "templates")
	if err != nil {
		panic(err)
	}
	return sub
}

// Static serves css/ and js/ under /static/.
func Static() fs.FS {
	return staticFS
}
