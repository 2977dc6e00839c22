// Scriptstack CLI - builds a demo script with the stack tracker and offers
// execution, disassembly, and interactive replay of the result.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/rs/zerolog"

	"github.com/scriptkit/scriptstack/debug"
	"github.com/scriptkit/scriptstack/dis"
	"github.com/scriptkit/scriptstack/interactive"
	"github.com/scriptkit/scriptstack/optimize"
	"github.com/scriptkit/scriptstack/stack"
	"github.com/scriptkit/scriptstack/vm"
)

func main() {
	verbose := flag.Bool("v", false, "Trace every generated instruction")
	replay := flag.Bool("i", false, "Step through the run interactively")
	disasm := flag.Bool("dis", false, "Print the generated script as a table")
	optimized := flag.Bool("O", false, "Apply peephole optimizations before running")
	render := flag.Bool("render", false, "Print the final symbolic stack")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: scriptstack [options]\n\n")
		fmt.Fprintf(os.Stderr, "Builds a demo script with the stack tracker, runs it, and reports the verdict.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  scriptstack -dis       # Show the generated instructions\n")
		fmt.Fprintf(os.Stderr, "  scriptstack -i         # Replay the run step by step\n")
		fmt.Fprintf(os.Stderr, "  scriptstack -O -dis    # Show the optimized instructions\n")
	}
	flag.Parse()

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	if *verbose {
		logger = logger.Level(zerolog.TraceLevel)
	} else {
		logger = logger.Level(zerolog.InfoLevel)
	}

	t := stack.New(stack.WithLogger(logger))
	if err := buildDemo(t); err != nil {
		fmt.Fprintf(os.Stderr, "Error building script: %v\n", err)
		os.Exit(1)
	}

	if *render {
		fmt.Print(t.Render())
	}

	s := t.Script()
	if *optimized {
		before := len(s)
		s = optimize.Optimize(s)
		logger.Info().Int("before", before).Int("after", len(s)).Msg("optimized")
	}

	if *disasm {
		rows := dis.Disassemble(s)
		dis.MarkBreakpoints(rows, t.Recorder().Breakpoints())
		dis.Print(rows, os.Stdout)
	}

	if *replay {
		if err := interactive.New(t).Run(); err != nil {
			fmt.Fprintf(os.Stderr, "Error in replay: %v\n", err)
			os.Exit(1)
		}
		return
	}

	res := vm.Run(s)
	if res.Error {
		last := t.Recorder().Len() - 1
		fmt.Print(debug.ExecuteStep(t.Script(), t.Recorder(), last).Format())
		fmt.Fprintf(os.Stderr, "Execution error after %s: %s\n", res.LastOpcode, res.ErrMsg)
		os.Exit(1)
	}
	if res.Success {
		color.Green("Success")
		return
	}
	color.Red("Script left %d elements on the stack", len(res.Stack))
	os.Exit(1)
}

// buildDemo assembles a small program that exercises the tracker: copies
// and moves, an alt stack round trip, a conditional branch, and a final
// verified comparison.
func buildDemo(t *stack.Tracker) error {
	one := t.Number(1)
	ten := t.Number(10)
	t.SetBreakpoint("literals")

	copied, err := t.Copy(ten)
	if err != nil {
		return err
	}
	if err := t.MoveToTop(ten); err != nil {
		return err
	}
	if err := t.Equals(copied, true, ten, true); err != nil {
		return err
	}
	t.SetBreakpoint("compared")

	if err := t.ToAltStack(one); err != nil {
		return err
	}
	if err := t.FromAltStack(one); err != nil {
		return err
	}

	ifTrue, ifFalse, err := t.OpenBranch()
	if err != nil {
		return err
	}
	ifTrue.Number(42)
	ifFalse.Number(0)
	if err := t.Merge(ifTrue, ifFalse); err != nil {
		return err
	}
	t.SetBreakpoint("merged")

	if err := t.Drop(t.Number(7)); err != nil {
		return err
	}
	if _, err := t.Op0NotEqual(); err != nil {
		return err
	}
	return t.Err()
}
