package markdown

import (
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
	glamouransi "github.com/charmbracelet/glamour/ansi"
	"github.com/charmbracelet/glamour/styles"
	xansi "github.com/charmbracelet/x/ansi"
)

const (
	StyleAuto  = "auto"
	StyleDark  = "dark"
	StyleLight = "light"
	StyleNoTTY = "notty"
)

var (
	rendererMu sync.Mutex
	renderers  = map[rendererKey]*glamour.TermRenderer{}
)

type rendererKey struct {
	style string
	width int
}

// Render draws doc for a terminal. It falls back to the raw markdown when
// no renderer can be built.
func Render(doc, style string, width int) string {
	doc = strings.TrimRight(doc, "\n")
	if doc == "" {
		return ""
	}
	if width <= 0 {
		width = 80
	}
	r := rendererFor(normalizeStyle(style), width)
	if r == nil {
		return doc
	}
	out, err := r.Render(doc)
	if err != nil {
		return doc
	}
	out = strings.TrimRight(out, "\n")
	out = xansi.Hardwrap(out, width, true)
	return strings.TrimRight(out, "\n") + "\n"
}

func normalizeStyle(style string) string {
	switch strings.ToLower(strings.TrimSpace(style)) {
	case StyleDark:
		return StyleDark
	case StyleLight:
		return StyleLight
	case StyleNoTTY, "ascii", "plain":
		return StyleNoTTY
	default:
		return StyleAuto
	}
}

func rendererFor(style string, width int) *glamour.TermRenderer {
	rendererMu.Lock()
	defer rendererMu.Unlock()
	key := rendererKey{style: style, width: width}
	if r, ok := renderers[key]; ok && r != nil {
		return r
	}
	styleOption := glamour.WithAutoStyle()
	if style != StyleAuto {
		styleOption = glamour.WithStyles(styleConfig(style))
	}
	r, err := glamour.NewTermRenderer(styleOption, glamour.WithWordWrap(width))
	if err != nil {
		return nil
	}
	renderers[key] = r
	return r
}

func styleConfig(style string) glamouransi.StyleConfig {
	var base glamouransi.StyleConfig
	switch style {
	case StyleLight:
		base = styles.LightStyleConfig
	case StyleNoTTY:
		base = styles.NoTTYStyleConfig
	default:
		base = styles.DarkStyleConfig
	}
	zero := uint(0)
	base.Document.Margin = &zero
	return base
}
