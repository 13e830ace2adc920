// Command pomkit-report renders a report from a saved `go test -json` log,
// such as the one written by `pomkit -json`.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/kidandcat/pomkit/pkg/parser"
	"github.com/kidandcat/pomkit/pkg/report"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("pomkit-report", flag.ContinueOnError)
	out := fs.String("o", "report.html", "Output file (.md, .html or .json)")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "usage: pomkit-report [-o report.html] [events.jsonl]\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return 2
	}

	var in io.Reader = os.Stdin
	if fs.NArg() > 0 {
		f, err := os.Open(fs.Arg(0))
		if err != nil {
			log.Print(err)
			return 1
		}
		defer f.Close()
		in = f
	}

	summary, err := render(in, *out)
	if err != nil {
		log.Print(err)
		return 1
	}

	fmt.Printf("%s: %d passed, %d failed, %d skipped\n", *out, summary.Passed, summary.Failed, summary.Skipped)
	if !summary.OK() {
		return 1
	}
	return 0
}

func render(in io.Reader, out string) (report.Summary, error) {
	collector := report.NewCollector()
	err := parser.New().Stream(in, func(ev parser.Event) error {
		collector.Add(ev)
		return nil
	})
	if err != nil {
		return report.Summary{}, fmt.Errorf("read events: %w", err)
	}

	summary := collector.Summary()
	if len(summary.Tests) == 0 && len(summary.Packages) == 0 {
		return summary, fmt.Errorf("no test events found")
	}
	if err := report.Write(out, summary); err != nil {
		return summary, fmt.Errorf("write report: %w", err)
	}
	return summary, nil
}
