// Command offerctl runs offer operations against the configured document
// store without the HTTP server.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/dgallion1/offersplice/internal/app"
	"github.com/dgallion1/offersplice/internal/config"
	"github.com/spf13/cobra"
)

// cli carries the persistent flags and the opened app between commands.
type cli struct {
	out     io.Writer
	verbose bool

	dryRun     bool
	ids        []string
	slug       string
	category   string
	limit      int
	applyLimit int
	maxInsert  int
	diff       bool
	dump       bool

	cfg config.Config
	app *app.App
}

func newRootCmd(out io.Writer) *cobra.Command {
	c := &cli{out: out}

	root := &cobra.Command{
		Use:   "offerctl",
		Short: "Insert, repair and remove offer embeds in CMS documents",
		Long: `offerctl applies offer operations to documents in the configured store.

Configuration is read from the environment and an optional .env file,
the same way the server reads it. Flags override the environment.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.open()
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if c.app == nil {
				return nil
			}
			return c.app.Close()
		},
	}

	pf := root.PersistentFlags()
	pf.BoolVarP(&c.verbose, "verbose", "v", false, "log to stderr")
	pf.BoolVar(&c.dryRun, "dry-run", false, "compute changes without writing")
	pf.StringSliceVar(&c.ids, "id", nil, "document ID (repeatable)")
	pf.StringVar(&c.slug, "slug", "", "select documents by slug")
	pf.StringVar(&c.category, "category", "", "select documents by category")
	pf.IntVar(&c.limit, "limit", 0, "maximum documents to list, 0 = all")
	pf.IntVar(&c.applyLimit, "apply-limit", 0, "stop after this many changed documents, 0 = none")
	pf.IntVar(&c.maxInsert, "max-insert", -1, "per-document cap on inserted offers (default from MAX_INSERT)")
	pf.BoolVar(&c.diff, "diff", false, "print a block outline diff per changed document")
	pf.BoolVar(&c.dump, "dump", false, "dump full results")

	root.AddCommand(opCommands(c)...)
	root.AddCommand(suggestCmd(c), importCmd(c), listCmd(c))
	return root
}

func (c *cli) open() error {
	c.cfg = config.Load()
	if c.maxInsert >= 0 {
		c.cfg.MaxInsert = c.maxInsert
	}
	if err := c.cfg.Validate(); err != nil {
		return err
	}

	w := io.Discard
	if c.verbose {
		w = os.Stderr
	}
	log := slog.New(slog.NewTextHandler(w, nil))

	a, err := app.Open(c.cfg, log)
	if err != nil {
		return err
	}
	c.app = a
	return nil
}

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
