package app

import (
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"

	"marquee/internal/config"
	"marquee/internal/surface"
	"marquee/internal/surface/memory"
	"marquee/internal/surface/term"
)

// openSurface builds the display for d. "auto" picks the terminal only when
// out is an interactive terminal.
func openSurface(d config.DisplayConfig, out io.Writer) (surface.Surface, string, error) {
	backend := d.Backend
	if backend == "auto" {
		backend = "memory"
		if isTTY(out) {
			backend = "terminal"
		}
	}
	switch backend {
	case "memory":
		return memory.New(d.Width, d.Height, d.RefreshRate), backend, nil
	case "terminal":
		return term.New(out, term.Config{
			Width:       d.Width,
			Height:      d.Height,
			RefreshRate: d.RefreshRate,
			AltScreen:   d.AltScreen,
		}), backend, nil
	default:
		return nil, "", fmt.Errorf("display.backend: unknown %q", d.Backend)
	}
}

func isTTY(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
