// Command synq is the SynQ compiler and virtual machine front end.
//
// Usage:
//
//	synq compile -path contract.synqsrc
//	synq run -path contract.synq
//
// compile reads SynQ source text and writes a sibling ".synq" bytecode
// image next to it. run loads a bytecode image and executes it on the
// stack machine, printing Print-opcode output and the final result.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"synq/codegen"
	"synq/log"
	"synq/parser"
	"synq/vm"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

// run is the actual entry point, returning an exit code. It accepts CLI
// arguments (without the program name) so it can be tested in isolation.
func run(args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "usage: synq <compile|run> -path FILE [-log-format text|json|color]")
		return 2
	}

	switch args[0] {
	case "compile":
		path, logger, exit, code := parseSubcommandFlags("compile", args[1:])
		if exit {
			return code
		}
		return runCompile(logger, path)
	case "run":
		path, logger, exit, code := parseSubcommandFlags("run", args[1:])
		if exit {
			return code
		}
		return runExecute(logger, path)
	default:
		fmt.Fprintf(os.Stderr, "unknown subcommand %q (want compile or run)\n", args[0])
		return 2
	}
}

// parseSubcommandFlags parses the flags shared by both subcommands: the
// required input path and the diagnostic output format. text and color
// render through the teacher's line-oriented LogFormatter (see
// log/formatter.go); json keeps the structured slog.JSONHandler used by the
// rest of the toolchain.
func parseSubcommandFlags(subcommand string, args []string) (string, *log.Logger, bool, int) {
	fs := flag.NewFlagSet(subcommand, flag.ContinueOnError)
	path := fs.String("path", "", "path to the input file")
	logFormat := fs.String("log-format", "color", "diagnostic output format: text, json, or color")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return "", nil, true, 2
	}
	if *path == "" {
		fmt.Fprintf(os.Stderr, "%s: -path is required\n", subcommand)
		return "", nil, true, 2
	}

	var base *log.Logger
	switch *logFormat {
	case "text":
		base = log.NewFormatted(&log.TextFormatter{}, slog.LevelInfo, os.Stderr)
	case "json":
		base = log.New(slog.LevelInfo)
	case "color":
		base = log.NewFormatted(&log.ColorFormatter{}, slog.LevelInfo, os.Stderr)
	default:
		fmt.Fprintf(os.Stderr, "%s: unknown -log-format %q (want text, json, or color)\n", subcommand, *logFormat)
		return "", nil, true, 2
	}
	return *path, base.Module("cli"), false, 0
}

// runCompile parses the source file at path, lowers it to a bytecode
// image, and writes the image to a sibling ".synq" file. It never emits a
// Solidity translation: that backend is a separate, out-of-scope
// collaborator of this toolchain.
func runCompile(logger *log.Logger, path string) int {
	src, err := os.ReadFile(path)
	if err != nil {
		logger.Error("failed to read source file", "path", path, "err", err)
		return 1
	}

	versionReq, units, semErrs, err := parser.Parse(string(src))
	if err != nil {
		if pe, ok := err.(*parser.ParseError); ok {
			logger.Error("parse error", "line", pe.Line, "column", pe.Column, "expected", pe.Expected, "got", pe.Got)
		} else {
			logger.Error("parse error", "err", err)
		}
		return 1
	}
	if versionReq.Present {
		logger.Info("source declares a version requirement", "constraint", versionReq.Constraint)
	}
	if len(semErrs) > 0 {
		for _, se := range semErrs {
			logger.Error("semantic error", "line", se.Line, "column", se.Column, "message", se.Message)
		}
		return 1
	}

	image, err := codegen.Generate(units)
	if err != nil {
		if ce, ok := err.(*codegen.CodegenError); ok {
			logger.Error("codegen error", "kind", ce.Kind, "context", ce.Context)
		} else {
			logger.Error("codegen error", "err", err)
		}
		return 1
	}

	outPath := outputImagePath(path)
	if err := os.WriteFile(outPath, image, 0o644); err != nil {
		logger.Error("failed to write bytecode image", "path", outPath, "err", err)
		return 1
	}
	logger.Info("compiled", "source", path, "image", outPath, "bytes", len(image))
	return 0
}

func outputImagePath(sourcePath string) string {
	ext := filepath.Ext(sourcePath)
	base := strings.TrimSuffix(sourcePath, ext)
	return base + ".synq"
}

// runExecute loads a bytecode image and runs it to completion, printing
// any Print-opcode output followed by the final outcome: either the top
// of the operand stack, or a revert message if the program aborted.
func runExecute(logger *log.Logger, path string) int {
	raw, err := os.ReadFile(path)
	if err != nil {
		logger.Error("failed to read bytecode image", "path", path, "err", err)
		return 1
	}

	machine := vm.New()
	if err := machine.LoadBytecode(raw); err != nil {
		logger.Error("failed to load bytecode image", "err", err)
		return 1
	}

	if err := machine.Execute(); err != nil {
		if vmErr, ok := err.(*vm.Error); ok {
			logger.Error("execution failed", "kind", vmErr.Kind, "message", vmErr.Message)
		} else {
			logger.Error("execution failed", "err", err)
		}
		return 1
	}

	for _, v := range machine.Prints() {
		fmt.Println(v.String())
	}

	if msg, reverted := machine.RevertMessage(); reverted {
		fmt.Printf("reverted: %s\n", msg)
		return 1
	}

	stack := machine.Stack()
	if len(stack) == 0 {
		fmt.Println("(no result)")
		return 0
	}
	fmt.Println(stack[len(stack)-1].String())
	return 0
}
