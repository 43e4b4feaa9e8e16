package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/joestump/docmerge/internal/document"
	"github.com/joestump/docmerge/internal/logging"
	"github.com/joestump/docmerge/internal/placeholder"
	"github.com/joestump/docmerge/internal/render"
)

type mergeOptions struct {
	sets        []string
	valuesFile  string
	preview     bool
	filler      string
	pdf         bool
	output      string
	browserBin  string
	debuggerURL string
	timeout     time.Duration
}

func newMergeCmd() *cobra.Command {
	opts := &mergeOptions{}
	cmd := &cobra.Command{
		Use:   "merge FILE",
		Short: "Substitute values into a document without a database",
		Long: "merge replaces ${name} tokens in FILE with values given by --set or a YAML\n" +
			"values file. With --preview, tokens without a value become a fill-in line.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMerge(cmd, args[0], opts)
		},
	}
	cmd.Flags().StringArrayVar(&opts.sets, "set", nil, "name=value substitution (repeatable)")
	cmd.Flags().StringVarP(&opts.valuesFile, "values", "f", "", "YAML file mapping names to values")
	cmd.Flags().BoolVar(&opts.preview, "preview", false, "replace placeholders without a value with the filler")
	cmd.Flags().StringVar(&opts.filler, "filler", placeholder.DefaultFiller, "text for blanked placeholders")
	cmd.Flags().BoolVar(&opts.pdf, "pdf", false, "render the result to PDF")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (default stdout)")
	cmd.Flags().StringVar(&opts.browserBin, "browser-bin", "", "Chromium binary for --pdf")
	cmd.Flags().StringVar(&opts.debuggerURL, "debugger-url", "", "DevTools URL of a running browser for --pdf")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", time.Minute, "PDF render timeout")
	return cmd
}

func runMerge(cmd *cobra.Command, path string, opts *mergeOptions) error {
	doc, err := readDocument(path)
	if err != nil {
		return err
	}
	values := map[string]string{}
	if opts.valuesFile != "" {
		if values, err = readValues(opts.valuesFile); err != nil {
			return err
		}
	}
	sets, err := parseAssignments(opts.sets)
	if err != nil {
		return err
	}
	for k, v := range sets {
		values[k] = v
	}

	ctx := cmd.Context()
	if opts.preview {
		text, err := document.Extract(ctx, doc)
		if err != nil {
			return err
		}
		for k, v := range placeholder.BlankMap(placeholder.Scan(text), opts.filler) {
			if _, ok := values[k]; !ok {
				values[k] = v
			}
		}
	}

	merged, err := document.Substitute(ctx, doc, values)
	if err != nil {
		return err
	}
	data := merged.Data
	if opts.pdf {
		log, err := logging.New("warn", false)
		if err != nil {
			return err
		}
		backend := render.NewChromeBackend(render.ChromeConfig{DebuggerURL: opts.debuggerURL, Bin: opts.browserBin}, log)
		defer func() { _ = backend.Close() }()
		art, err := render.NewCoordinator(backend, opts.timeout, log).Render(ctx, "merge", merged)
		if err != nil {
			return err
		}
		data = art.Data
	}
	return writeOutput(cmd.OutOrStdout(), opts.output, data)
}

// parseAssignments turns name=value pairs into a map; later pairs win.
func parseAssignments(pairs []string) (map[string]string, error) {
	out := make(map[string]string, len(pairs))
	for _, p := range pairs {
		name, value, ok := strings.Cut(p, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid --set %q: want name=value", p)
		}
		out[name] = value
	}
	return out, nil
}

func readValues(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	values := map[string]string{}
	if err := yaml.NewDecoder(f).Decode(&values); err != nil && err != io.EOF {
		return nil, fmt.Errorf("read values %s: %w", path, err)
	}
	return values, nil
}

func writeOutput(stdout io.Writer, path string, data []byte) error {
	if path == "" {
		_, err := stdout.Write(data)
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
