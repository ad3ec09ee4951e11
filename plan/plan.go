// Package plan runs a performance offline and reports, bar by bar, what the
// conductor decided: energy, section, active tracks and transitions.
package plan

import (
	"context"
	"embed"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"text/template"
	"time"

	"github.com/Masterminds/sprig"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/tsb/numus"
	"github.com/tsb/numus/conductor"
)

type (
	// Bar is what happened in one bar. Triggers counts the triggers of
	// all its ticks.
	Bar struct {
		Index      int
		Energy     float64
		Category   numus.Category
		Section    string
		Active     []string
		Triggers   int
		Transition bool
		From       string
		To         string
		GainFrom   float64
		GainTo     float64
		MasterGain float64
		Phrase     bool
	}

	Plan struct {
		Name        string
		BPM         int
		BeatsPerBar int
		Duration    time.Duration
		Tracks      []string
		Bars        []Bar
		Stats       conductor.Stats
	}

	// Renderer formats plans with a text/template. The template gets the
	// sprig functions plus locale aware number formatting.
	Renderer struct {
		Template *template.Template
		Name     string
	}
)

//go:embed templates/*
var templateFS embed.FS

// Build conducts the performance as fast as possible and collects one Bar
// per bar.
func Build(ctx context.Context, perf numus.Performance) (*Plan, error) {
	p := &Plan{Name: perf.Name, BPM: perf.BPM, BeatsPerBar: perf.Meter()}
	var names []string
	hook := func(s *conductor.Snapshot, triggers []numus.Trigger) {
		if s.Downbeat || len(p.Bars) == 0 {
			b := Bar{
				Index:      s.Bar,
				Energy:     s.Energy,
				Category:   s.Category,
				Section:    s.Section,
				Transition: s.InTransition,
				GainFrom:   s.Crossfade.GainFrom,
				GainTo:     s.Crossfade.GainTo,
				MasterGain: s.MasterGain,
				Phrase:     s.Phrase,
			}
			if s.InTransition {
				b.From, b.To = s.Transition.From, s.Transition.To
			}
			for i, n := range names {
				if s.IsActive(i) {
					b.Active = append(b.Active, n)
				}
			}
			p.Bars = append(p.Bars, b)
		}
		p.Bars[len(p.Bars)-1].Triggers += len(triggers)
	}
	c, err := conductor.New(perf, conductor.WithHook(hook))
	if err != nil {
		return nil, err
	}
	names = c.TrackNames()
	p.Tracks = names
	if err := c.Run(ctx); err != nil {
		return nil, fmt.Errorf("could not run the performance: %w", err)
	}
	p.Stats = c.Stats()
	p.Duration = time.Duration(perf.TotalTicks()) * perf.BeatDuration()
	return p, nil
}

// NewRenderer returns a renderer using the built-in template, formatting
// numbers for lang.
func NewRenderer(lang language.Tag) (*Renderer, error) {
	tmpl, err := template.New("base").Funcs(funcs(lang)).ParseFS(templateFS, "templates/*.*")
	if err != nil {
		return nil, fmt.Errorf(`could not create templates: %v`, err)
	}
	return &Renderer{Template: tmpl, Name: "plan"}, nil
}

// NewRendererFromFile parses a user template; the template named after the
// file (without extension) is executed, or the whole file if it defines
// none.
func NewRendererFromFile(lang language.Tag, path string) (*Renderer, error) {
	tmpl, err := template.New("base").Funcs(funcs(lang)).ParseFiles(path)
	if err != nil {
		return nil, fmt.Errorf(`could not create template based on file "%v": %v`, path, err)
	}
	name := filepath.Base(path)
	if t := tmpl.Lookup(strings.TrimSuffix(name, filepath.Ext(name))); t != nil {
		name = t.Name()
	}
	return &Renderer{Template: tmpl, Name: name}, nil
}

// Render executes the template for the plan.
func (r *Renderer) Render(w io.Writer, p *Plan) error {
	if err := r.Template.ExecuteTemplate(w, r.Name, p); err != nil {
		return fmt.Errorf(`could not execute template "%v": %v`, r.Name, err)
	}
	return nil
}

func funcs(lang language.Tag) template.FuncMap {
	printer := message.NewPrinter(lang)
	caser := cases.Title(lang)
	ret := sprig.TxtFuncMap()
	ret["num"] = func(v any) string {
		return printer.Sprintf("%v", v)
	}
	ret["fixed"] = func(digits int, v float64) string {
		return printer.Sprintf("%.*f", digits, v)
	}
	ret["caption"] = func(s string) string {
		return caser.String(strings.ReplaceAll(s, "_", " "))
	}
	ret["meter"] = func(width int, v float64) string {
		n := int(v*float64(width) + 0.5)
		n = max(0, min(n, width))
		return strings.Repeat("#", n) + strings.Repeat(".", width-n)
	}
	return ret
}
