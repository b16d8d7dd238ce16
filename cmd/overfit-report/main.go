package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/ariafx/session-validator/internal/params"
	"github.com/ariafx/session-validator/internal/report"
	"github.com/ariafx/session-validator/internal/scoring"
)

func main() {
	paramsPath := flag.String("params", "params.yaml", "path to parameter file")
	format := flag.String("format", "text", "output format: text|markdown|csv")
	warnThreshold := flag.Float64("warn-threshold", 0, "override warn threshold (0 keeps default)")
	quiet := flag.Bool("quiet", false, "suppress output, signal the verdict via exit status only")
	flag.Parse()

	policy := scoring.DefaultPolicy()
	if *warnThreshold > 0 {
		policy.WarnThreshold = *warnThreshold
	}

	calc, err := scoring.NewCalculator(policy)
	if err != nil {
		log.Fatalf("scoring policy: %v", err)
	}

	file, err := params.Load(*paramsPath)
	if err != nil {
		log.Fatalf("parameter file: %v", err)
	}

	res, err := calc.Compute(file.Baseline, file.Sessions)
	if err != nil {
		log.Fatalf("score: %v", err)
	}

	if *quiet {
		if !res.Accepted {
			os.Exit(1)
		}
		return
	}

	r := report.Build(*paramsPath, policy, res)

	switch *format {
	case "text":
		fmt.Print(r.RenderText())
	case "markdown":
		fmt.Print(r.RenderMarkdown())
	case "csv":
		if err := r.WriteCSV(os.Stdout); err != nil {
			log.Fatalf("csv: %v", err)
		}
	default:
		log.Fatalf("unknown -format %q (want text, markdown, or csv)", *format)
	}

	if !res.Accepted {
		os.Exit(1)
	}
}
