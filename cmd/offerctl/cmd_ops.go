package main

import (
	"fmt"
	"strings"

	"github.com/dgallion1/offersplice/internal/engine"
	"github.com/dgallion1/offersplice/internal/pipeline"
	"github.com/dgallion1/offersplice/internal/store"
	"github.com/sanity-io/litter"
	"github.com/spf13/cobra"
)

func opCommands(c *cli) []*cobra.Command {
	var preferred, section, keys []string

	inject := &cobra.Command{
		Use:   "inject",
		Short: "Repair existing embeds and insert relevant offers",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runOp(cmd, pipeline.Spec{Op: engine.OpInject, Preferred: preferred, Section: section})
		},
	}
	inject.Flags().StringSliceVar(&preferred, "prefer", nil, "only insert these offer keys")
	inject.Flags().StringSliceVar(&section, "section", nil, "insert into the section whose heading contains one of these keywords")

	restore := &cobra.Command{
		Use:   "restore",
		Short: "Convert inline offer links into embeds",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runOp(cmd, pipeline.Spec{Op: engine.OpRestore})
		},
	}

	revert := &cobra.Command{
		Use:   "revert",
		Short: "Convert offer embeds back into inline links",
		Long: `Convert offer embeds back into inline links.
Without --keys every keyed embed is converted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runOp(cmd, pipeline.Spec{Op: engine.OpRevert, Keys: keys})
		},
	}
	revert.Flags().StringSliceVar(&keys, "keys", nil, "only revert these offer keys")

	reposition := &cobra.Command{
		Use:   "reposition",
		Short: "Move the last limited embed into the summary section",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runOp(cmd, pipeline.Spec{Op: engine.OpReposition})
		},
	}

	reorder := &cobra.Command{
		Use:   "reorder",
		Short: "Put the summary, related, reference and disclaimer sections in order",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runOp(cmd, pipeline.Spec{Op: engine.OpReorder})
		},
	}

	return []*cobra.Command{inject, restore, revert, reposition, reorder}
}

// runOp processes the selected documents synchronously and prints one
// line per document.
func (c *cli) runOp(cmd *cobra.Command, spec pipeline.Spec) error {
	spec.Filter = c.filter()
	spec.DryRun = c.dryRun || c.cfg.DryRun
	spec.ApplyLimit = c.applyLimit
	spec.Diff = c.diff

	run := pipeline.NewRun(spec)
	c.app.Worker.Process(cmd.Context(), run)
	snap := run.Snapshot()

	for _, res := range snap.Results {
		line := fmt.Sprintf("%-9s %s", res.Status, res.DocID)
		if n := res.ChangeCount(); n > 0 {
			line += fmt.Sprintf(" (%d changes)", n)
		}
		if res.Reason != "" {
			line += ": " + res.Reason
		}
		fmt.Fprintln(c.out, line)
		if c.diff && res.Diff != "" {
			fmt.Fprintln(c.out, indent(res.Diff))
		}
	}
	if c.dump {
		fmt.Fprintln(c.out, litter.Sdump(snap.Results))
	}

	p := snap.Progress
	mode := ""
	if spec.DryRun {
		mode = " (dry run)"
	}
	fmt.Fprintf(c.out, "%s%s: %d processed, %d changed, %d unchanged, %d skipped, %d failed\n",
		spec.Op, mode, p.Processed, p.Changed, p.Unchanged, p.Skipped, p.Failed)

	switch snap.Status {
	case pipeline.StatusFailed, pipeline.StatusPartial, pipeline.StatusCancelled:
		return fmt.Errorf("run %s", snap.Status)
	}
	return nil
}

func (c *cli) filter() store.Filter {
	return store.Filter{IDs: c.ids, Slug: c.slug, Category: c.category, Limit: c.limit}
}

func indent(s string) string {
	return "    " + strings.ReplaceAll(strings.TrimRight(s, "\n"), "\n", "\n    ")
}
