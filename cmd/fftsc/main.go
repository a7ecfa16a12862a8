package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rendis/ffts/pkg/schema"
)

const usage = `fftsc compiles operator-graph partitions into FFTS+ task graphs.

Usage:
  fftsc <command> [flags] [args]

Commands:
  build     compile partition JSON files (one file, or many as a batch)
  validate  check partition JSON without building
  verify    check a built table (JSON or wire) against the table invariants
  diagram   render a build as ascii, mermaid or png
  query     run an expr or jq expression against a build
  list      list stored builds
  delete    remove stored builds by id
  prune     drop old build revisions and compact the database
  serve     run the MCP server on stdio
  profile   print the effective hardware profile as JSON
  install   write settings and fetch the mermaid-ascii renderer
  version   print the version
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run dispatches a subcommand and returns the process exit code.
func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return 2
	}

	cfg := loadConfig()
	a := &app{cfg: cfg, stdin: stdin, stdout: stdout, stderr: stderr}

	var err error
	switch args[0] {
	case "build":
		err = a.runBuild(ctx, args[1:])
	case "validate":
		err = a.runValidate(ctx, args[1:])
	case "verify":
		err = a.runVerify(ctx, args[1:])
	case "diagram":
		err = a.runDiagram(ctx, args[1:])
	case "query":
		err = a.runQuery(ctx, args[1:])
	case "list":
		err = a.runList(ctx, args[1:])
	case "delete":
		err = a.runDelete(ctx, args[1:])
	case "prune":
		err = a.runPrune(ctx, args[1:])
	case "serve":
		err = a.runServe(ctx, args[1:])
	case "profile":
		err = a.runProfile(ctx, args[1:])
	case "install":
		err = a.runInstall(ctx, args[1:])
	case "version", "--version", "-v":
		err = a.runVersion(ctx)
	case "help", "--help", "-h":
		fmt.Fprint(stdout, usage)
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n%s", args[0], usage)
		return 2
	}

	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitCode(err)
	}
	return 0
}

// inputFaults are the error codes that blame the partition or table being
// processed rather than the tool or its environment.
var inputFaults = []string{
	schema.ErrCodeValidation,
	schema.ErrCodeCycleDetected,
	schema.ErrCodeMissingTemplate,
	schema.ErrCodeShapeMismatch,
	schema.ErrCodeOverflowChainExhausted,
	schema.ErrCodeDanglingSuccessor,
}

// exitCode is 3 for a faulty input, 1 for anything else.
func exitCode(err error) int {
	for _, code := range inputFaults {
		if schema.HasCode(err, code) {
			return 3
		}
	}
	return 1
}
