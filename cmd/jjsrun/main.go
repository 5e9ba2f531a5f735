// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// jjsrun is a thin embedder demo CLI (module map's "Ambient: CLI host
// example" entry, explicitly not the "CLI host" non-goal's own feature
// surface): it loads a jjs.Context from the library's public API and
// runs a script file through it, the same "parse global flags, dispatch
// to one behavior" shape cmd/cie/main.go uses for its own entry point.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	flag "github.com/spf13/pflag"

	"github.com/kraklabs/jjs"
	"github.com/kraklabs/jjs/module"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// globalFlags mirrors cmd/cie/main.go's GlobalFlags: one small struct
// threaded through every command instead of package-level flag vars.
type globalFlags struct {
	NoColor bool
	Verbose int
	Quiet   bool
}

func main() {
	var (
		showVersion = flag.BoolP("version", "V", false, "Show version and exit")
		configPath  = flag.StringP("config", "c", "", "Path to a jjs options YAML file")
		pmapPath    = flag.String("pmap", "", "Path to a module package-map YAML file")
		watch       = flag.BoolP("watch", "w", false, "Re-run the script whenever a required .js file changes")
		noColor     = flag.Bool("no-color", false, "Disable color output")
		verbose     = flag.CountP("verbose", "v", "Increase verbosity (-v for info, -vv for debug)")
		quiet       = flag.BoolP("quiet", "q", false, "Suppress diagnostic output")
	)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `jjsrun - run a JavaScript file on the jjs engine

Usage:
  jjsrun [options] <script.js> [args...]

Options:
  -c, --config     Path to a jjs options YAML file
      --pmap       Path to a module package-map YAML file
  -w, --watch      Re-run the script whenever a required .js file changes
      --no-color   Disable color output (respects NO_COLOR env var)
  -v, --verbose    Increase verbosity (-v for info, -vv for debug)
  -q, --quiet      Suppress diagnostic output
  -V, --version    Show version and exit
`)
	}

	flag.Parse()

	if *showVersion {
		fmt.Printf("jjsrun version %s\n", version)
		fmt.Printf("commit: %s\n", commit)
		fmt.Printf("built: %s\n", date)
		os.Exit(0)
	}

	if os.Getenv("NO_COLOR") != "" {
		*noColor = true
	}
	if *quiet && *verbose > 0 {
		fmt.Fprintln(os.Stderr, "Error: cannot use --quiet and --verbose together")
		os.Exit(1)
	}

	globals := globalFlags{NoColor: *noColor, Verbose: *verbose, Quiet: *quiet}
	color.NoColor = globals.NoColor || !isTerminal(os.Stdout)

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(1)
	}
	scriptPath := args[0]

	runner, err := newRunner(scriptPath, *configPath, *pmapPath, globals)
	if err != nil {
		fatal(err)
	}
	defer runner.ctx.Close()

	if *watch {
		runWatch(runner)
		return
	}

	if err := runner.runOnce(); err != nil {
		fatal(err)
	}
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, color.RedString("error:"), err)
	os.Exit(1)
}

// runWatch re-runs the script on every change, stopping on SIGINT/SIGTERM -
// cmd/cie's commands exit after one unit of work, but jjsrun's --watch
// mode is explicitly long-running, so it needs its own signal handling
// rather than cmd/cie's "report and os.Exit" shape.
func runWatch(r *runner) {
	w, err := module.NewWatcher(r.loader, []string{r.scriptDir})
	if err != nil {
		fatal(err)
	}
	defer func() { _ = w.Close() }()

	stop := make(chan struct{})
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		close(stop)
	}()

	if err := r.runOnce(); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("error:"), err)
	}

	done := make(chan struct{})
	go func() {
		w.Run(stop, func(path string) {
			if !r.globals.Quiet {
				fmt.Fprintln(os.Stderr, color.YellowString("reload:"), path)
			}
			if err := r.runOnce(); err != nil {
				fmt.Fprintln(os.Stderr, color.RedString("error:"), err)
			}
		})
		close(done)
	}()
	<-done
}

func isTerminal(f *os.File) bool {
	return isatty(f.Fd())
}
