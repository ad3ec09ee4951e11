package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"golang.org/x/text/language"

	"github.com/tsb/numus"
	"github.com/tsb/numus/plan"
	"github.com/tsb/numus/version"
)

func main() {
	help := flag.Bool("h", false, "Show help.")
	templateFile := flag.String("t", "", "Template file used to print the plan. By default, a built-in table is printed.")
	lang := flag.String("lang", "en", "Language (BCP 47 tag) used to format numbers.")
	patterns := flag.Bool("patterns", false, "List the built-in patterns and digit sources and exit.")
	yamlOut := flag.Bool("y", false, "Print the performance as .yml, with the defaults it will be played with, instead of the plan.")
	versionFlag := flag.Bool("v", false, "Print version.")
	flag.Usage = printUsage
	flag.Parse()
	if *versionFlag {
		fmt.Println(version.VersionOrHash)
		os.Exit(0)
	}
	if *patterns {
		for _, name := range numus.PatternNames() {
			p, _ := numus.LookupPattern(name)
			fmt.Printf("%-14s %-16v %d/%d\n", name, p, p.Pulses(), len(p))
		}
		fmt.Printf("sources: %v\n", strings.Join(numus.SourceNames(), ", "))
		os.Exit(0)
	}
	if flag.NArg() == 0 || *help {
		flag.Usage()
		os.Exit(0)
	}
	tag, err := language.Parse(*lang)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid language %v: %v\n", *lang, err)
		os.Exit(1)
	}
	var renderer *plan.Renderer
	if *templateFile != "" {
		renderer, err = plan.NewRendererFromFile(tag, *templateFile)
	} else {
		renderer, err = plan.NewRenderer(tag)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	retval := 0
	for _, filename := range flag.Args() {
		var err error
		if *yamlOut {
			err = printResolved(filename)
		} else {
			err = process(renderer, filename)
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "could not process file %v: %v\n", filename, err)
			retval = 1
		}
	}
	os.Exit(retval)
}

func process(renderer *plan.Renderer, filename string) error {
	perf, err := readPerformance(filename)
	if err != nil {
		return err
	}
	p, err := plan.Build(context.Background(), perf)
	if err != nil {
		return err
	}
	return renderer.Render(os.Stdout, p)
}

func readPerformance(filename string) (numus.Performance, error) {
	inputBytes, err := os.ReadFile(filename)
	if err != nil {
		return numus.Performance{}, fmt.Errorf("could not read file %v: %v", filename, err)
	}
	return numus.ReadPerformance(inputBytes)
}

// printResolved prints the performance with its defaults filled in, as the
// conductor will play it.
func printResolved(filename string) error {
	perf, err := readPerformance(filename)
	if err != nil {
		return err
	}
	if err := perf.Validate(); err != nil {
		return fmt.Errorf("invalid performance: %w", err)
	}
	resolved := perf.Resolved()
	out, err := resolved.Marshal()
	if err != nil {
		return fmt.Errorf("could not marshal the performance: %v", err)
	}
	_, err = os.Stdout.Write(out)
	return err
}

func printUsage() {
	fmt.Fprintf(os.Stderr, "numus-plan prints what a performance will do, bar by bar, without playing it.\nUsage: %s [flags] [path ...]\n", os.Args[0])
	flag.PrintDefaults()
}
