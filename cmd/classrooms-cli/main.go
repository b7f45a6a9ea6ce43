// classrooms-cli runs one assignment against a roster file from the
// command line, using the same flag-based shape as cmd/solver-tune.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/nlevy/classrooms-go/internal/engine"
	"github.com/nlevy/classrooms-go/internal/evaluate"
	"github.com/nlevy/classrooms-go/internal/ingest"
	"github.com/nlevy/classrooms-go/internal/orchestrate"
	"github.com/nlevy/classrooms-go/internal/roster"
)

func main() {
	rosterPath := flag.String("roster", "", "path to a roster file (.csv or .json)")
	classes := flag.Int("classes", 0, "number of classes to partition the roster into")
	algorithm := flag.String("algorithm", "cso", "primary algorithm: greedy, cso (also accepts cpsat, legacy, legacy_greedy)")
	timeout := flag.Duration("timeout", 30*time.Second, "deadline for the primary solver")
	fallback := flag.Bool("fallback", true, "fall back to greedy once if the primary solver fails")
	minClassSize := flag.Int("min-class-size", 2, "minimum allowed class size")
	format := flag.String("format", "text", "output format: json, text")
	flag.Parse()

	if *rosterPath == "" || *classes <= 0 {
		fmt.Fprintln(os.Stderr, "usage: classrooms-cli -roster roster.csv -classes N [-algorithm greedy|cso] [-format json|text]")
		os.Exit(1)
	}

	students, err := readRoster(*rosterPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "parsing roster: %v\n", err)
		os.Exit(1)
	}

	cfg := orchestrate.Config{
		Algorithm:       *algorithm,
		TimeoutSeconds:  int(timeout.Seconds()),
		FallbackEnabled: *fallback,
		MinClassSize:    *minClassSize,
		Weights:         engine.DefaultWeights(),
	}
	orch := orchestrate.New(cfg)

	result, err := orch.Assign(context.Background(), students, *classes)
	if err != nil {
		fmt.Fprintf(os.Stderr, "assignment failed: %v\n", err)
		os.Exit(1)
	}

	if *format == "json" {
		printJSON(result)
	} else {
		printText(result)
	}
}

func readRoster(path string) ([]roster.RawStudent, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if strings.EqualFold(filepath.Ext(path), ".json") {
		return ingest.FromJSON(f)
	}
	return ingest.FromCSV(f)
}

type cliOutput struct {
	Strategy   string                  `json:"strategy"`
	FellBack   bool                    `json:"fellBack"`
	Assignment map[string]int          `json:"assignment"`
	Evaluation evaluate.Record         `json:"evaluation"`
}

func printJSON(result orchestrate.Result) {
	out := cliOutput{
		Strategy:   result.Strategy,
		FellBack:   result.FellBack,
		Assignment: assignmentByName(result),
		Evaluation: result.Evaluation,
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(out)
}

func printText(result orchestrate.Result) {
	fmt.Printf("strategy: %s (fell back: %v)\n", result.Strategy, result.FellBack)
	fmt.Printf("feasible: %v  overall score: %.3f\n\n", result.Evaluation.Feasible, result.Evaluation.OverallScore)

	for _, summary := range result.Evaluation.Classes {
		fmt.Printf("class %d: %d students, %d male, academic avg %.2f, behavior avg %.2f, without friends %d, unwanted matches %d\n",
			summary.Class, summary.StudentsCount, summary.MalesCount,
			summary.AverageAcademicPerformance, summary.AverageBehaviouralPerformance,
			summary.WithoutFriends, summary.UnwantedMatches)
	}

	if len(result.Evaluation.HardViolations) > 0 {
		fmt.Println("\nhard constraint violations:")
		for _, v := range result.Evaluation.HardViolations {
			fmt.Printf("  %s: %s %s (class %d)\n", v.Kind, v.StudentName, v.OtherName, v.Class)
		}
	}

	if len(result.Warnings) > 0 {
		fmt.Println("\nwarnings:")
		for _, w := range result.Warnings {
			fmt.Printf("  %s\n", w.String())
		}
	}
}

func assignmentByName(result orchestrate.Result) map[string]int {
	out := make(map[string]int, result.Roster.Len())
	for i, name := range result.Roster.Names() {
		out[name] = result.Assignment[i]
	}
	return out
}
