package plan_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/text/language"

	"github.com/tsb/numus"
	"github.com/tsb/numus/plan"
)

func showPerformance() numus.Performance {
	return numus.Performance{
		Name:        "warm_up",
		BPM:         120,
		Energy:      []numus.Segment{{Start: 0, End: 16, StartValue: 0.2, EndValue: 1}},
		Sections:    []numus.Section{{Name: "intro", Bars: 8}, {Name: "drive", Bars: 8}},
		Transitions: []numus.TransitionWindow{{From: "intro", To: "drive", StartBar: 6, DurationBars: 4}},
		Spread:      1,
		Tracks: []numus.Track{
			{Name: "kick", Threshold: numus.Float(0.1), Pattern: "four_on_floor", Subdivision: 4},
			{Name: "pad", Section: "intro", Threshold: numus.Float(0.1), Steps: "x"},
			{Name: "lead", Section: "drive", Threshold: numus.Float(0.1), Pattern: "tresillo", Subdivision: 2},
		},
	}
}

func TestBuild(t *testing.T) {
	p, err := plan.Build(context.Background(), showPerformance())
	if err != nil {
		t.Fatalf("plan.Build failed: %v", err)
	}
	if len(p.Bars) != 16 {
		t.Fatalf("got %v bars, expected 16", len(p.Bars))
	}
	triggers := 0
	for i, b := range p.Bars {
		if b.Index != i {
			t.Fatalf("bar %d has index %d", i, b.Index)
		}
		if b.Transition != (i >= 6 && i < 10) {
			t.Fatalf("bar %d: transition %v", i, b.Transition)
		}
		if i < 6 && b.Section != "intro" || i >= 10 && b.Section != "drive" {
			t.Fatalf("bar %d: section %v", i, b.Section)
		}
		triggers += b.Triggers
	}
	if triggers != p.Stats.Triggers || triggers == 0 {
		t.Fatalf("got %v triggers in bars, %v in stats", triggers, p.Stats.Triggers)
	}
	if p.Duration.Seconds() != 32 {
		t.Fatalf("got duration %v, expected 32s", p.Duration)
	}
	if _, err := plan.Build(context.Background(), numus.Performance{}); err == nil {
		t.Fatal("plan.Build should fail on an empty performance")
	}
}

func TestRender(t *testing.T) {
	p, err := plan.Build(context.Background(), showPerformance())
	if err != nil {
		t.Fatalf("plan.Build failed: %v", err)
	}
	r, err := plan.NewRenderer(language.English)
	if err != nil {
		t.Fatalf("plan.NewRenderer failed: %v", err)
	}
	var buf bytes.Buffer
	if err := r.Render(&buf, p); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	out := buf.String()
	for _, expected := range []string{"Warm Up: 120 BPM", "tracks: kick, pad, lead", "Intro", "0.20 ##", "[intro > drive", "triggers in 64 ticks"} {
		if !strings.Contains(out, expected) {
			t.Errorf("output does not contain %q:\n%v", expected, out)
		}
	}
	if lines := strings.Count(out, "\n"); lines != 19 {
		t.Errorf("got %v lines, expected 19:\n%v", lines, out)
	}
	r, err = plan.NewRenderer(language.German)
	if err != nil {
		t.Fatalf("plan.NewRenderer failed: %v", err)
	}
	buf.Reset()
	if err := r.Render(&buf, p); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if !strings.Contains(buf.String(), "0,20") {
		t.Errorf("german output should use a decimal comma:\n%v", buf.String())
	}
}

func TestRenderFromFile(t *testing.T) {
	p, err := plan.Build(context.Background(), showPerformance())
	if err != nil {
		t.Fatalf("plan.Build failed: %v", err)
	}
	path := filepath.Join(t.TempDir(), "csv.txt")
	tmpl := `{{ range .Bars }}{{ .Index }};{{ fixed 3 .Energy }};{{ len .Active }}{{ "\n" }}{{ end }}`
	if err := os.WriteFile(path, []byte(tmpl), 0644); err != nil {
		t.Fatalf("could not write template: %v", err)
	}
	r, err := plan.NewRendererFromFile(language.English, path)
	if err != nil {
		t.Fatalf("plan.NewRendererFromFile failed: %v", err)
	}
	var buf bytes.Buffer
	if err := r.Render(&buf, p); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 16 || lines[0] != "0;0.200;1" {
		t.Fatalf("unexpected output:\n%v", buf.String())
	}
}
