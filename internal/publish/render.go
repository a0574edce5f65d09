package publish

import (
	"strconv"
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
)

var (
	rendererMu sync.Mutex
	// Keyed by style and wrap width. A fixed style avoids the terminal background query
	// WithAutoStyle performs.
	renderers = map[string]*glamour.TermRenderer{}
)

// RenderTerminal renders markdown for a terminal using a glamour standard style
// ("dark", "light", "notty", ...). On renderer errors the markdown is returned as is.
func RenderTerminal(md string, style string, width int) string {
	if strings.TrimSpace(style) == "" {
		style = "dark"
	}
	if width < 20 {
		width = 20
	}
	key := style + ":" + strconv.Itoa(width)

	rendererMu.Lock()
	defer rendererMu.Unlock()
	r := renderers[key]
	if r == nil {
		rr, err := glamour.NewTermRenderer(
			glamour.WithStandardStyle(style),
			glamour.WithWordWrap(width),
		)
		if err != nil {
			return md
		}
		renderers[key] = rr
		r = rr
	}
	out, err := r.Render(md)
	if err != nil {
		return md
	}
	return out
}
