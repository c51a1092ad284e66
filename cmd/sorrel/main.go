package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/klauspost/compress/gzip"
	"github.com/spf13/pflag"

	"github.com/sambeau/sorrel/pkg/sorrel/astfile"
	"github.com/sambeau/sorrel/pkg/sorrel/config"
	"github.com/sambeau/sorrel/pkg/sorrel/emit"
	serrors "github.com/sambeau/sorrel/pkg/sorrel/errors"
	"github.com/sambeau/sorrel/pkg/sorrel/template"
)

// Version is set at compile time via -ldflags
var Version = "0.3.0"

func main() {
	// Check for subcommands first (before flag parsing)
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "build":
			buildCommand(os.Args[2:])
			return
		case "version":
			fmt.Printf("sorrel version %s\n", Version)
			return
		case "-h", "--help", "help":
			printHelp()
			return
		}
	}

	printHelp()
	os.Exit(2)
}

func printHelp() {
	fmt.Printf(`sorrel - deployment template emitter version %s

Usage:
  sorrel build [options] <file.sorrel.json>
  sorrel version

Commands:
  build                 Emit the deployment template for an interchange file
  version               Show version information

Build Options:
  -o, --output <path>   Write the template to a file instead of stdout
  -c, --config <path>   Config file (default: sorrel.yaml, SORREL_CONFIG)
      --symbolic        Use symbolic references instead of computed ids
      --indent <n>      Spaces per nesting level (0 = compact)
      --compress        Gzip the emitted template
  -w, --watch           Re-emit whenever the input file changes

Examples:
  sorrel build app.sorrel.json
  sorrel build -o out/app.json app.sorrel.json
  sorrel build --symbolic --indent 0 app.sorrel.json
  sorrel build -w -o out/app.json app.sorrel.json
`, Version)
}

// buildOptions is the fully resolved build configuration: file config with
// CLI flags applied on top.
type buildOptions struct {
	input    string
	output   string
	symbolic bool
	indent   string
	compress bool
	watch    bool
	debounce time.Duration
}

func buildCommand(args []string) {
	fs := pflag.NewFlagSet("build", pflag.ExitOnError)
	output := fs.StringP("output", "o", "", "write the template to a file")
	configPath := fs.StringP("config", "c", "", "config file path")
	symbolic := fs.Bool("symbolic", false, "use symbolic references")
	indent := fs.Int("indent", 2, "spaces per nesting level")
	compress := fs.Bool("compress", false, "gzip the emitted template")
	watch := fs.BoolP("watch", "w", false, "re-emit on input change")
	if err := fs.Parse(args); err != nil {
		os.Exit(2)
	}

	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Error: build requires exactly one interchange file")
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath, os.Getenv)
	if err != nil {
		fatal(err)
	}

	opts := buildOptions{
		input:    fs.Arg(0),
		output:   cfg.Output,
		symbolic: cfg.Symbolic,
		indent:   cfg.IndentString(),
		compress: cfg.Compress,
		watch:    *watch,
		debounce: time.Duration(cfg.Watch.DebounceMs) * time.Millisecond,
	}
	// CLI flags override the config file only when given.
	if fs.Changed("output") {
		opts.output = *output
	}
	if fs.Changed("symbolic") {
		opts.symbolic = *symbolic
	}
	if fs.Changed("indent") {
		opts.indent = (&config.Config{Indent: *indent}).IndentString()
	}
	if fs.Changed("compress") {
		opts.compress = *compress
	}

	if opts.watch && opts.output == "" {
		fmt.Fprintln(os.Stderr, "Error: --watch requires --output (stdout would interleave rebuilds)")
		os.Exit(2)
	}

	if err := buildOnce(opts); err != nil {
		fatal(err)
	}

	if opts.watch {
		if err := watchLoop(opts); err != nil {
			fatal(err)
		}
	}
}

// buildOnce runs one full emission. The template is assembled in memory and
// written out only on success, so a failed build never clobbers the previous
// output file.
func buildOnce(opts buildOptions) error {
	unit, err := astfile.Load(opts.input)
	if err != nil {
		return err
	}

	ctx := emit.NewContext(unit.Model, emit.Settings{SymbolicReferences: opts.symbolic})
	ctx.Inline = unit.Inline

	var buf bytes.Buffer
	w := emit.NewJSONWriter(&buf, opts.indent)
	if err := template.NewWriter(ctx).Write(w, unit.Program); err != nil {
		return err
	}
	if err := w.Err(); err != nil {
		return err
	}
	buf.WriteByte('\n')

	return writeOutput(opts, buf.Bytes())
}

func writeOutput(opts buildOptions, data []byte) error {
	if opts.compress {
		var zipped bytes.Buffer
		zw := gzip.NewWriter(&zipped)
		if _, err := zw.Write(data); err != nil {
			return err
		}
		if err := zw.Close(); err != nil {
			return err
		}
		data = zipped.Bytes()
	}

	if opts.output == "" {
		_, err := os.Stdout.Write(data)
		return err
	}
	if dir := filepath.Dir(opts.output); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(opts.output, data, 0o644)
}

// watchLoop re-emits whenever the input interchange file changes. Watching
// the directory rather than the file survives editors that replace the file
// on save.
func watchLoop(opts buildOptions) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	dir := filepath.Dir(opts.input)
	if err := watcher.Add(dir); err != nil {
		return err
	}
	logInfo("watching %s", opts.input)

	var lastChange time.Time
	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if filepath.Base(event.Name) != filepath.Base(opts.input) {
				continue
			}

			// Debounce rapid changes
			if time.Since(lastChange) < opts.debounce {
				continue
			}
			lastChange = time.Now()

			if err := buildOnce(opts); err != nil {
				// Keep watching; a broken intermediate save is normal.
				logError("%s", errorText(err))
				continue
			}
			logInfo("rebuilt %s", opts.output)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logError("watcher error: %v", err)
		}
	}
}

func errorText(err error) string {
	if serr, ok := err.(*serrors.SorrelError); ok {
		return serr.PrettyString()
	}
	return err.Error()
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, errorText(err))
	os.Exit(1)
}

func logInfo(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "[WATCH] "+format+"\n", args...)
}

func logError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "[WATCH ERROR] "+format+"\n", args...)
}
