package commands

import (
	"context"
	"fmt"
	"io"
	"time"

	"git.home.luguber.info/inful/docdelta/internal/buildstate"
	"git.home.luguber.info/inful/docdelta/internal/eventstore"
	"git.home.luguber.info/inful/docdelta/internal/foundation/errors"
)

// InspectCmd implements the 'inspect' command.
type InspectCmd struct {
	Events  bool          `help:"Print the decision journal of the current build"`
	History int           `help:"Print summaries of the last N journaled builds" default:"0"`
	Since   time.Duration `help:"How far back --history looks" default:"720h"`
}

func (i *InspectCmd) Run(g *Global, root *CLI) error {
	cfg, logger, err := root.load()
	if err != nil {
		return err
	}
	rt, err := openState(cfg, logger)
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx := context.Background()
	rec, err := rt.store.LoadStrict(ctx)
	if err != nil {
		return err
	}
	w := g.out()
	writeRecord(w, rec)

	if !i.Events && i.History <= 0 {
		return nil
	}
	if rt.journal == nil {
		return errors.ConfigError("journal.path is not configured").UserAction().Build()
	}
	if i.Events && rec != nil {
		events, err := rt.journal.GetByBuildID(ctx, rec.ID)
		if err != nil {
			return err
		}
		writeEvents(w, events)
		writeSummary(w, eventstore.Summarize(rec.ID, events))
	}
	if i.History > 0 {
		end := time.Now()
		summaries, err := eventstore.History(ctx, rt.journal, end.Add(-i.Since), end, i.History)
		if err != nil {
			return err
		}
		fmt.Fprintln(w, "history:")
		for _, s := range summaries {
			writeSummary(w, s)
		}
	}
	return nil
}

func writeRecord(w io.Writer, rec *buildstate.BuildRecord) {
	if rec == nil {
		fmt.Fprintln(w, "no build recorded")
		return
	}
	fmt.Fprintf(w, "build %s\n", rec.ID)
	fmt.Fprintf(w, "  started:   %s\n", rec.StartedAt.Format(time.RFC3339))
	fmt.Fprintf(w, "  tool:      %s\n", rec.ToolVersion)
	fmt.Fprintf(w, "  plugins:   %s\n", orDash(rec.PluginHash))
	fmt.Fprintf(w, "  templates: %s\n", orDash(rec.TemplateHash))
	if rec.CommitRange != nil {
		fmt.Fprintf(w, "  commits:   %s..%s\n", rec.CommitRange.From, rec.CommitRange.To)
	}
	for _, v := range rec.Versions {
		fmt.Fprintf(w, "version %s\n", v.Name)
		fmt.Fprintf(w, "  config:       %s\n", v.ConfigHash)
		fmt.Fprintf(w, "  inputs:       %d\n", v.Fingerprints.Len())
		fmt.Fprintf(w, "  edges:        %d\n", v.Graph.Len())
		for _, p := range v.Processors {
			fmt.Fprintf(w, "  processor:    %s (%d steps)\n", p.Name, len(p.Steps))
		}
		fmt.Fprintf(w, "  graph:        %s\n", v.Links.Graph)
		fmt.Fprintf(w, "  fingerprints: %s\n", v.Links.Fingerprints)
		fmt.Fprintf(w, "  outputs:      %s\n", v.Links.OutputManifest)
		fmt.Fprintf(w, "  xrefs:        %s\n", v.Links.XRefMap)
		fmt.Fprintf(w, "  log:          %s\n", v.Links.BuildLog)
	}
}

func writeEvents(w io.Writer, events []eventstore.Event) {
	fmt.Fprintln(w, "journal:")
	for _, e := range events {
		fmt.Fprintf(w, "  %s %-18s %s\n", e.Timestamp.Format(time.RFC3339), e.Type, e.Payload)
	}
}

func writeSummary(w io.Writer, s *eventstore.PlanSummary) {
	state := "planned"
	if s.Committed {
		state = "committed"
	}
	mode := "full"
	if s.Incremental {
		mode = "incremental"
	}
	fmt.Fprintf(w, "  %s %s %s %s evaluations=%d denials=%d\n",
		s.StartedAt.Format(time.RFC3339), s.BuildID, state, mode, s.Evaluations, len(s.Denials))
	for _, d := range s.Denials {
		fmt.Fprintf(w, "    denied %s %s%s: %s\n", d.Level, d.Version, unitSuffix(d.Unit), d.Reason)
	}
}

func unitSuffix(unit string) string {
	if unit == "" {
		return ""
	}
	return "/" + unit
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
