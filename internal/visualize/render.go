package visualize

import (
	"bytes"
	"fmt"
	"html/template"
	"os"
)

// Options sizes the rendered viewer
type Options struct {
	Height string
	Width  string
	// TempDir holds the intermediate artifact; empty uses the OS default
	TempDir string
}

// DefaultOptions matches the embedded viewer size
func DefaultOptions() Options {
	return Options{Height: "700px", Width: "100%"}
}

var pageTemplate = template.Must(template.New("network").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Knowledge graph</title>
<script src="https://unpkg.com/vis-network@9.1.9/standalone/umd/vis-network.min.js"></script>
<style>
  #network { height: {{.Height}}; width: {{.Width}}; border: 1px solid lightgray; background: #ffffff; }
</style>
</head>
<body>
<div id="network"></div>
<script>
  var nodes = new vis.DataSet({{.Network.Nodes}});
  var edges = new vis.DataSet({{.Network.Edges}});
  var options = {
    edges: { arrows: { to: { enabled: true } } },
    physics: { stabilization: { iterations: 150 } },
    interaction: { hover: true }
  };
  new vis.Network(document.getElementById("network"), { nodes: nodes, edges: edges }, options);
</script>
</body>
</html>
`))

// Render writes the network page to a temporary file, reads it back and
// removes the file. A failure to remove the file is ignored.
func Render(net *Network, opts Options) (string, error) {
	if opts.Height == "" {
		opts.Height = DefaultOptions().Height
	}
	if opts.Width == "" {
		opts.Width = DefaultOptions().Width
	}

	tmp, err := os.CreateTemp(opts.TempDir, "kgquery-network-*.html")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	path := tmp.Name()
	defer func() { _ = os.Remove(path) }()

	var buf bytes.Buffer
	err = pageTemplate.Execute(&buf, struct {
		Height  template.CSS
		Width   template.CSS
		Network *Network
	}{template.CSS(opts.Height), template.CSS(opts.Width), net})
	if err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to render network: %w", err)
	}
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to close %s: %w", path, err)
	}

	html, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return string(html), nil
}
