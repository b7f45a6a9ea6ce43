// solver-tune benchmarks the Greedy and CSO strategies against one
// roster file across a grid of CSO annealing parameters, reporting
// score distributions and solution stability.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"slices"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/nlevy/classrooms-go/internal/cso"
	"github.com/nlevy/classrooms-go/internal/engine"
	"github.com/nlevy/classrooms-go/internal/evaluate"
	"github.com/nlevy/classrooms-go/internal/greedy"
	"github.com/nlevy/classrooms-go/internal/ingest"
	"github.com/nlevy/classrooms-go/internal/validate"
)

func normalizeKey(a engine.Assignment) string {
	cm := map[int][]int{}
	for i, class := range a {
		cm[class] = append(cm[class], i)
	}
	var groups [][]int
	for _, members := range cm {
		slices.Sort(members)
		groups = append(groups, members)
	}
	slices.SortFunc(groups, func(a, b []int) int { return a[0] - b[0] })
	var buf strings.Builder
	for _, g := range groups {
		for i, m := range g {
			if i > 0 {
				buf.WriteByte(',')
			}
			buf.WriteString(strconv.Itoa(m))
		}
		buf.WriteByte(';')
	}
	return buf.String()
}

type runResult struct {
	feasible bool
	score    float64
	key      string
	elapsed  time.Duration
}

func printStats(label string, results []runResult, runs int) {
	feasibleCount := 0
	var totalTime time.Duration
	var totalScore float64
	solutionSets := map[string]int{}

	for _, r := range results {
		totalTime += r.elapsed
		if r.feasible {
			feasibleCount++
			totalScore += r.score
			solutionSets[r.key]++
		}
	}

	fmt.Printf("--- %s ---\n", label)
	fmt.Printf("  avg time: %v\n", totalTime/time.Duration(runs))
	fmt.Printf("  feasible: %d/%d runs (%.0f%%)\n", feasibleCount, runs, float64(feasibleCount)/float64(runs)*100)
	if feasibleCount > 0 {
		fmt.Printf("  avg overall score (feasible runs): %.3f\n", totalScore/float64(feasibleCount))
	}
	fmt.Printf("  unique feasible solutions seen: %d\n", len(solutionSets))

	var freqs []int
	for _, c := range solutionSets {
		freqs = append(freqs, c)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(freqs)))
	stableCount := 0
	for _, c := range freqs {
		if c == runs {
			stableCount++
		}
	}
	fmt.Printf("  solutions found in every run: %d\n", stableCount)
	fmt.Println()
}

func main() {
	rosterPath := flag.String("roster", "", "path to a JSON roster file ({\"students\":[...]})")
	classes := flag.Int("classes", 0, "number of classes to partition into")
	algo := flag.String("algo", "both", "algorithm: greedy, cso, both")
	runs := flag.Int("runs", 10, "number of solver runs per parameter set")
	restarts := flag.String("restarts", "10,30", "comma-separated CSO restart counts")
	steps := flag.String("steps", "1000,3000", "comma-separated CSO steps-per-restart counts")
	tempHigh := flag.Float64("thigh", 6.0, "CSO initial temperature")
	tempLow := flag.Float64("tlow", 0.05, "CSO final temperature")
	timeout := flag.Duration("timeout", 10*time.Second, "deadline passed to each solver run")
	flag.Parse()

	if *rosterPath == "" || *classes <= 0 {
		fmt.Fprintln(os.Stderr, "usage: solver-tune -roster roster.json -classes N [-algo greedy|cso|both]")
		os.Exit(1)
	}

	f, err := os.Open(*rosterPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "reading roster: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()

	raw, err := ingest.FromJSON(f)
	if err != nil {
		fmt.Fprintf(os.Stderr, "parsing roster: %v\n", err)
		os.Exit(1)
	}

	r, _, err := validate.Validate(raw, *classes, validate.DefaultConfig())
	if err != nil {
		fmt.Fprintf(os.Stderr, "validating roster: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Students: %d, Classes: %d\n", r.Len(), *classes)
	fmt.Printf("Runs per config: %d\n\n", *runs)

	weights := engine.DefaultWeights()
	solveCfg := engine.SolveConfig{Weights: weights}

	if *algo == "greedy" || *algo == "both" {
		g := greedy.New()
		var results []runResult
		for run := 0; run < *runs; run++ {
			ctx, cancel := context.WithTimeout(context.Background(), *timeout)
			start := time.Now()
			assignment, _, err := g.Solve(ctx, r, *classes, solveCfg)
			elapsed := time.Since(start)
			cancel()
			if err != nil {
				results = append(results, runResult{elapsed: elapsed})
				continue
			}
			record := evaluate.Evaluate(r, assignment, *classes, weights)
			results = append(results, runResult{feasible: record.Feasible, score: record.OverallScore, key: normalizeKey(assignment), elapsed: elapsed})
		}
		printStats("greedy", results, *runs)
	}

	if *algo == "cso" || *algo == "both" {
		restartCounts := parseIntList(*restarts)
		stepCounts := parseIntList(*steps)
		for _, nr := range restartCounts {
			for _, ns := range stepCounts {
				s := &cso.Solver{Params: cso.Params{Restarts: nr, StepsPerRestart: ns, TempHigh: *tempHigh, TempLow: *tempLow}}
				var results []runResult
				for run := 0; run < *runs; run++ {
					s.Params.Seed = int64(run * 31337)
					ctx, cancel := context.WithTimeout(context.Background(), *timeout)
					start := time.Now()
					assignment, _, err := s.Solve(ctx, r, *classes, solveCfg)
					elapsed := time.Since(start)
					cancel()
					if err != nil {
						results = append(results, runResult{elapsed: elapsed})
						continue
					}
					record := evaluate.Evaluate(r, assignment, *classes, weights)
					results = append(results, runResult{feasible: record.Feasible, score: record.OverallScore, key: normalizeKey(assignment), elapsed: elapsed})
				}
				label := fmt.Sprintf("cso restarts=%d steps=%d thigh=%.1f tlow=%.3f", nr, ns, *tempHigh, *tempLow)
				printStats(label, results, *runs)
			}
		}
	}
}

func parseIntList(s string) []int {
	parts := strings.Split(s, ",")
	var result []int
	for _, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err == nil {
			result = append(result, v)
		}
	}
	return result
}
