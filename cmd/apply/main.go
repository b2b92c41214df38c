// cmd/apply/main.go
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/muesli/termenv"

	"chess-tuner/config"
	"chess-tuner/tuner"
	"chess-tuner/writer"
)

// Symbols with more changed entries than this are summarised on one line.
const listLimit = 16

func main() {
	params := flag.String("params", "", "fitted-parameter record written by texel")
	schemaPath := flag.String("schema", "", "parameter source to rewrite")
	outPath := flag.String("out", "", "where to write the result (default: overwrite -schema)")
	dryRun := flag.Bool("dry-run", false, "print the changes without writing")
	logLevel := flag.String("log-level", "info", "log level")
	flag.Parse()
	if *params == "" || *schemaPath == "" {
		fmt.Fprintln(os.Stderr, "Usage:")
		flag.PrintDefaults()
		os.Exit(2)
	}

	log, err := config.NewLogger(os.Stderr, *logLevel, false)
	if err != nil {
		fmt.Fprintln(os.Stderr, "apply:", err)
		os.Exit(2)
	}

	rec, err := tuner.LoadRecord(*params)
	if err != nil {
		log.Fatal().Err(err).Msg("load record")
	}
	src, err := os.ReadFile(*schemaPath)
	if err != nil {
		log.Fatal().Err(err).Msg("read schema")
	}
	out, changes, err := writer.Apply(rec, src, log)
	if err != nil {
		log.Fatal().Err(err).Msg("apply")
	}

	printChanges(termenv.NewOutput(os.Stdout), changes)
	if *dryRun {
		return
	}
	dst := *outPath
	if dst == "" {
		dst = *schemaPath
	}
	if err := writer.WriteFile(dst, out); err != nil {
		log.Fatal().Err(err).Msg("write")
	}
	log.Info().Str("out", dst).Str("run_id", rec.RunID).Msg("applied")
}

func printChanges(o *termenv.Output, changes []writer.Change) {
	fmt.Fprintln(o, o.String("Applying tuned values:").Bold())

	var order []string
	bySymbol := map[string][]writer.Change{}
	for _, c := range changes {
		if _, ok := bySymbol[c.Symbol]; !ok {
			order = append(order, c.Symbol)
		}
		bySymbol[c.Symbol] = append(bySymbol[c.Symbol], c)
	}

	red, green := o.Color("1"), o.Color("2")
	for _, sym := range order {
		var moved []writer.Change
		for _, c := range bySymbol[sym] {
			if c.Old != c.New {
				moved = append(moved, c)
			}
		}
		name := o.String(sym).Bold()
		switch {
		case len(moved) == 0:
			fmt.Fprintf(o, "  %s unchanged\n", name)
		case len(bySymbol[sym]) > listLimit:
			fmt.Fprintf(o, "  %s %d of %d entries changed\n", name, len(moved), len(bySymbol[sym]))
		default:
			for _, c := range moved {
				label := c.Symbol
				if len(bySymbol[sym]) > 1 {
					label = fmt.Sprintf("%s[%d]", c.Symbol, c.Index)
				}
				fmt.Fprintf(o, "  %-22s %s -> %s  (base %d x %.4f)\n", label,
					o.String(fmt.Sprint(c.Old)).Foreground(red),
					o.String(fmt.Sprint(c.New)).Foreground(green),
					c.Base, c.Scale)
			}
		}
	}
}
