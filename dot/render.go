package dot

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Render writes the graph's canonical DOT text next to the output file
// and invokes the Graphviz `dot` binary to produce the image. The
// format is taken from the output extension ("png" when absent).
// Requires Graphviz on PATH.
func Render(g *Graph, output string) error {
	format := strings.TrimPrefix(filepath.Ext(output), ".")
	if format == "" {
		format = "png"
		output += ".png"
	}

	dotPath := strings.TrimSuffix(output, filepath.Ext(output)) + ".dot"
	if err := os.WriteFile(dotPath, []byte(g.String()), 0o644); err != nil {
		return fmt.Errorf("failed to write dot file: %w", err)
	}

	cmd := exec.Command("dot", "-T"+format, "-o", output, dotPath)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("graphviz render failed: %w: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}
