package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/matthewjhunter/veille"
)

func sourceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "source",
		Short: "Manage the sources scanned for a topic",
	}
	cmd.AddCommand(sourceAddCmd(), sourceListCmd(), sourceImportCmd(), sourceExportCmd(), sourceSuggestCmd())
	return cmd
}

func sourceAddCmd() *cobra.Command {
	var kind, title, description string
	cmd := &cobra.Command{
		Use:   "add <topic-id> <url>",
		Short: "Attach a source URL to a topic",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter, err := newFormatter()
			if err != nil {
				return err
			}
			engine, err := openEngine(nil)
			if err != nil {
				return err
			}
			defer engine.Close()

			src, err := engine.AddSource(cmd.Context(), args[0], args[1], veille.SourceKind(kind), title, description)
			if err != nil {
				return err
			}
			return formatter.OutputSources([]veille.Source{*src})
		},
	}
	cmd.Flags().StringVarP(&kind, "kind", "k", "rss", "source kind: rss, web, blog, forum, manual")
	cmd.Flags().StringVarP(&title, "title", "t", "", "display title")
	cmd.Flags().StringVarP(&description, "description", "d", "", "short description")
	return cmd
}

func sourceListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list [topic-id]",
		Short: "List sources, optionally for one topic",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter, err := newFormatter()
			if err != nil {
				return err
			}
			engine, err := openEngine(nil)
			if err != nil {
				return err
			}
			defer engine.Close()

			topicID := ""
			if len(args) == 1 {
				topicID = args[0]
				if _, err := engine.GetTopic(cmd.Context(), topicID); err != nil {
					return err
				}
			}
			sources, err := engine.ListSources(cmd.Context(), topicID)
			if err != nil {
				return err
			}
			return formatter.OutputSources(sources)
		},
	}
}

func sourceImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <topic-id> <opml-file>",
		Short: "Import the feeds of an OPML file as rss sources of a topic",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := openEngine(nil)
			if err != nil {
				return err
			}
			defer engine.Close()

			added, err := engine.ImportOPML(cmd.Context(), args[1], args[0])
			if err != nil {
				return fmt.Errorf("failed to import OPML: %w", err)
			}
			fmt.Printf("Imported %d feeds from %s into topic %s\n", added, args[1], args[0])
			return nil
		},
	}
}

func sourceExportCmd() *cobra.Command {
	var outPath string
	cmd := &cobra.Command{
		Use:   "export <topic-id>",
		Short: "Export a topic's rss sources as OPML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := openEngine(nil)
			if err != nil {
				return err
			}
			defer engine.Close()

			var w io.Writer = os.Stdout
			if outPath != "" {
				fh, err := os.Create(outPath)
				if err != nil {
					return fmt.Errorf("failed to create %s: %w", outPath, err)
				}
				defer fh.Close()
				w = fh
			}
			return engine.ExportOPML(cmd.Context(), w, args[0])
		},
	}
	cmd.Flags().StringVarP(&outPath, "output", "o", "", "write to file instead of stdout")
	return cmd
}

func sourceSuggestCmd() *cobra.Command {
	var accept bool
	cmd := &cobra.Command{
		Use:   "suggest <topic-id>",
		Short: "Ask the model for sources matching a topic",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter, err := newFormatter()
			if err != nil {
				return err
			}
			engine, err := openEngine(nil)
			if err != nil {
				return err
			}
			defer engine.Close()

			ctx := cmd.Context()
			suggestions, err := engine.SuggestSources(ctx, args[0])
			if err != nil {
				return err
			}
			if err := formatter.OutputSuggestions(suggestions); err != nil {
				return err
			}
			if !accept {
				return nil
			}
			for _, s := range suggestions.Suggestions {
				if _, err := engine.AcceptSuggestion(ctx, args[0], s); err != nil {
					formatter.Warning("could not add %s: %v", s.URL, err)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&accept, "accept", false, "add every suggestion as a source")
	return cmd
}
