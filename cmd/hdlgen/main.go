// =============================================================================
// hdlgen - Main Entry Point
// =============================================================================
//
// hdlgen compiles hardware designs described in Go into Verilog.
//
// THE PIPELINE:
//   1. Designs are looked up in the registry (internal/designs)
//   2. Vendor IP descriptors are loaded and checked against the CUE schema
//   3. Each design is described and lowered to Verilog in its own run
//   4. Design facts are flattened into tables and validated (CUE)
//   5. OPA evaluates design rules against the facts
//   6. Verilog is written through a content-hash cache
//
// WHEN A BUILD FAILS:
//   Read the first error. Width, ownership and driver errors name the module
//   and signal; fix the describe callback, not the generated text.
// =============================================================================

package main

import (
	"os"

	"github.com/fatih/color"
	"gopkg.in/urfave/cli.v1"
)

var (
	configFlag = cli.StringFlag{
		Name:  "config, c",
		Usage: "configuration file (JSON or TOML)",
	}
	rootFlag = cli.StringFlag{
		Name:  "root",
		Value: ".",
		Usage: "project root; outputs, cache and vendor descriptors are resolved against it",
	}
)

func newApp() *cli.App {
	app := cli.NewApp()
	app.Name = "hdlgen"
	app.Usage = "compile Go hardware descriptions to Verilog"
	app.Version = "0.1.0"
	app.Flags = []cli.Flag{configFlag, rootFlag}
	app.Commands = []cli.Command{
		initCommand,
		listCommand,
		buildCommand,
		factsCommand,
		lintCommand,
		statsCommand,
	}
	return app
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		color.New(color.FgRed).Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
