// cmd/evalterms/main.go
package main

import (
	"flag"
	"fmt"
	"os"

	"chess-tuner/evaluator"
	"chess-tuner/schema"
)

func main() {
	schemaPath := flag.String("schema", "", "parameter source the evaluator reads its constants from")
	modeName := flag.String("mode", "terms", `"terms" prints the term header and one row per FEN, "eval" prints scores`)
	flag.Parse()

	mode, ok := evaluator.ParseMode(*modeName)
	if !ok || *schemaPath == "" {
		fmt.Fprintln(os.Stderr, "Usage:")
		flag.PrintDefaults()
		os.Exit(2)
	}
	s, err := schema.ParseFile(*schemaPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "evalterms:", err)
		os.Exit(1)
	}
	p := evaluator.FromSchema(s)
	if err := evaluator.Serve(os.Stdin, os.Stdout, &p, mode); err != nil {
		fmt.Fprintln(os.Stderr, "evalterms:", err)
		os.Exit(1)
	}
}
