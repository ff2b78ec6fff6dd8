package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/shopspring/decimal"

	"github.com/poi-ai/SPAFT-sub000/pkg/quant"
	"github.com/poi-ai/SPAFT-sub000/pkg/ticks"
)

func parsePrice(name, s string) (quant.PriceMicros, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("-%s %q: not a price", name, s)
	}
	return quant.FromDecimal(d), nil
}

// laddercheck prints the tick a price falls under and builds the full
// ladder between two limits, so a mismatch between the tick table and an
// instrument's daily limits is caught before the trading day, not during.
func main() {
	group := flag.String("group", "standard", "price group: standard or topix100")
	lower := flag.String("lower", "", "lower daily limit (required)")
	upper := flag.String("upper", "", "upper daily limit (required)")
	flag.Parse()

	if *lower == "" || *upper == "" {
		fmt.Fprintln(os.Stderr, "usage: laddercheck -group standard -lower 700 -upper 1300")
		os.Exit(2)
	}

	g, err := ticks.ParseGroup(*group)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	lo, err := parsePrice("lower", *lower)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	hi, err := parsePrice("upper", *upper)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	fmt.Printf("=== Tick check (%s) ===\n", *group)
	for _, p := range []quant.PriceMicros{lo, hi} {
		tick, err := ticks.Tick(g, p)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		fmt.Printf("tick at %-12s = %s\n", p, tick)
	}
	fmt.Println()

	ladder, err := ticks.Build(g, lo, hi)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ladder build FAILED: %v\n", err)
		fmt.Fprintln(os.Stderr, "the walk from lower does not land on upper; check the limits against the tick table")
		os.Exit(1)
	}

	fmt.Printf("ladder %s .. %s: %d rungs\n", ladder.Lower(), ladder.Upper(), ladder.Len())
	if ladder.Len() <= 20 {
		for i := 0; i < ladder.Len(); i++ {
			p, _ := ladder.Shift(ladder.Lower(), i, ticks.Up)
			fmt.Printf("  %s\n", p)
		}
	}
}
