package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/dgallion1/offersplice/internal/importer"
	"github.com/sanity-io/litter"
	"github.com/spf13/cobra"
)

func suggestCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "suggest <doc-id>...",
		Short: "Rank the offers relevant to documents",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, id := range args {
				rec, err := c.app.Store.FetchDocument(cmd.Context(), id)
				if err != nil {
					return err
				}
				suggestions := c.app.Engine.Suggest(rec.Doc)
				fmt.Fprintf(c.out, "%s: %d suggestions\n", id, len(suggestions))
				for _, s := range suggestions {
					fmt.Fprintf(c.out, "  %-20s %-9s %d  %s\n", s.Offer.Key, s.Offer.Category, s.Score, s.Offer.DisplayName)
				}
			}
			return nil
		},
	}
}

func importCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>...",
		Short: "Convert drafts into block documents in the local store",
		Long: `Convert .txt, .md, .html, .pdf and .docx drafts into block documents.
The document ID is the slugified file name. Requires STORE_DRIVER=sqlite.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if c.app.Local == nil {
				return errors.New("import requires STORE_DRIVER=sqlite")
			}
			for _, path := range args {
				imp, err := importer.ForFile(path)
				if err != nil {
					return err
				}
				if p, ok := imp.(*importer.PDFImporter); ok {
					p.FallbackPdftotext = c.cfg.PDFFallbackPdftotext
				}

				f, err := os.Open(path)
				if err != nil {
					return err
				}
				doc, err := imp.Import(f, filepath.Base(path))
				f.Close()
				if err != nil {
					return fmt.Errorf("import %s: %w", path, err)
				}
				if c.category != "" {
					doc.Category = c.category
				}
				if c.dump {
					fmt.Fprintln(c.out, litter.Sdump(doc))
				}
				if c.dryRun {
					fmt.Fprintf(c.out, "parsed   %s (%d blocks)\n", doc.ID, len(doc.Blocks))
					continue
				}

				changed, err := c.app.Local.PutDocument(cmd.Context(), doc, "import:"+filepath.Base(path))
				if err != nil {
					return err
				}
				status := "unchanged"
				if changed {
					status = "imported"
				}
				fmt.Fprintf(c.out, "%-8s %s (%d blocks)\n", status, doc.ID, len(doc.Blocks))
			}
			return nil
		},
	}
}

func listCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List documents matching the filter flags",
		RunE: func(cmd *cobra.Command, args []string) error {
			heads, err := c.app.Store.ListDocuments(cmd.Context(), c.filter())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tSLUG\tCATEGORY\tTITLE")
			for _, h := range heads {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", h.ID, h.Slug, h.Category, h.Title)
			}
			return tw.Flush()
		},
	}
}
