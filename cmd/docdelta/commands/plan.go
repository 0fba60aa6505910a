package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"git.home.luguber.info/inful/docdelta/internal/changes"
	"git.home.luguber.info/inful/docdelta/internal/foundation/errors"
	"git.home.luguber.info/inful/docdelta/internal/incremental"
)

// PlanCmd implements the 'plan' command.
type PlanCmd struct {
	Commit          bool   `help:"Persist the new build state after planning"`
	Changes         string `type:"existingfile" help:"JSON file mapping version names to {path: kind} change lists. Prior inputs a list does not mention are treated as deleted"`
	CompleteChanges bool   `name:"complete-changes" help:"Treat current inputs a --changes list does not mention as unchanged"`
	FromGit         bool   `name:"from-git" help:"Derive change lists from git history since the prior build"`
	JSON            bool   `name:"json" help:"Print the plan as JSON"`
}

func (p *PlanCmd) Run(g *Global, root *CLI) error {
	cfg, logger, err := root.load()
	if err != nil {
		return err
	}
	explicit, err := readChanges(p.Changes)
	if err != nil {
		return err
	}

	ctx := context.Background()
	rt, err := openEngine(ctx, cfg, logger, nil)
	if err != nil {
		return err
	}
	defer rt.Close()

	plan, err := rt.engine.Plan(ctx, incremental.Request{
		Explicit:         explicit,
		CompleteExplicit: p.CompleteChanges,
		FromGit:          p.FromGit,
	})
	if err != nil {
		return err
	}
	var hash string
	if p.Commit {
		if hash, err = rt.engine.Commit(ctx, plan); err != nil {
			return err
		}
	}

	if p.JSON {
		return writePlanJSON(g.out(), plan, hash)
	}
	return writePlan(g.out(), plan, hash)
}

// readChanges parses a change list file of the form
// {"version": {"path": "kind"}}. An empty path yields nil.
func readChanges(path string) (map[string]map[string]changes.Kind, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path) // #nosec G304 -- user supplied path
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryFileSystem, "read change list").
			WithContext("path", path).
			Build()
	}
	var out map[string]map[string]changes.Kind
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, errors.WrapError(err, errors.CategoryValidation, "decode change list").
			WithContext("path", path).
			UserAction().
			Build()
	}
	return out, nil
}

type versionView struct {
	Name        string            `json:"name"`
	Incremental bool              `json:"incremental"`
	Reason      string            `json:"reason,omitempty"`
	Mode        string            `json:"mode"`
	Counts      map[string]int    `json:"counts"`
	Propagated  []string          `json:"propagated,omitempty"`
	Rebuild     []string          `json:"rebuild"`
	Processors  map[string]string `json:"processors,omitempty"`
}

type planView struct {
	BuildID     string        `json:"build_id"`
	Incremental bool          `json:"incremental"`
	Reason      string        `json:"reason,omitempty"`
	RecordHash  string        `json:"record_hash,omitempty"`
	Versions    []versionView `json:"versions"`
}

func viewOf(plan *incremental.Plan, hash string) planView {
	pv := planView{
		BuildID:     plan.BuildID,
		Incremental: plan.Build.OK(),
		Reason:      plan.Build.Reason(),
		RecordHash:  hash,
	}
	for _, vp := range plan.Versions {
		vv := versionView{
			Name:        vp.Name,
			Incremental: vp.Decision.OK(),
			Reason:      vp.Decision.Reason(),
			Mode:        vp.Mode,
			Counts:      vp.Changes.Summary(),
			Propagated:  vp.Propagated,
			Rebuild:     vp.Rebuild(),
		}
		if len(vp.Processors) > 0 {
			vv.Processors = make(map[string]string, len(vp.Processors))
			for _, pp := range vp.Processors {
				vv.Processors[pp.Name] = pp.Decision.String()
			}
		}
		pv.Versions = append(pv.Versions, vv)
	}
	return pv
}

func writePlanJSON(w io.Writer, plan *incremental.Plan, hash string) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(viewOf(plan, hash))
}

func writePlan(w io.Writer, plan *incremental.Plan, hash string) error {
	pv := viewOf(plan, hash)
	fmt.Fprintf(w, "build %s: %s\n", pv.BuildID, decisionText(pv.Incremental, pv.Reason))
	if hash != "" {
		fmt.Fprintf(w, "committed %s\n", hash)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "VERSION\tDECISION\tMODE\tCHANGES\tREBUILD")
	for _, v := range pv.Versions {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\n", v.Name, decisionText(v.Incremental, v.Reason), v.Mode, countsText(v.Counts), len(v.Rebuild))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	for _, v := range pv.Versions {
		for _, name := range sortedKeys(v.Processors) {
			fmt.Fprintf(w, "  %s/%s: %s\n", v.Name, name, v.Processors[name])
		}
	}
	return nil
}

func decisionText(ok bool, reason string) string {
	if ok {
		return "incremental"
	}
	return "full (" + reason + ")"
}

func countsText(counts map[string]int) string {
	parts := make([]string, 0, len(counts))
	for _, k := range sortedKeys(counts) {
		if k == "none" || counts[k] == 0 {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s=%d", k, counts[k]))
	}
	if len(parts) == 0 {
		return "-"
	}
	return strings.Join(parts, " ")
}
