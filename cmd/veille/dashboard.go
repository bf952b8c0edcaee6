package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/matthewjhunter/veille/internal/analysis"
)

// filterFlags are the card filter options shared by cards, stats and timeline.
type filterFlags struct {
	topicID    string
	sentiments []string
	entities   []string
	search     string
	from, to   string
}

func (ff *filterFlags) register(fs *pflag.FlagSet, withDates bool) {
	fs.StringVarP(&ff.topicID, "topic", "t", "", "only cards of this topic id")
	fs.StringSliceVarP(&ff.sentiments, "sentiment", "s", nil, "only these sentiments (repeatable, OR)")
	fs.StringSliceVarP(&ff.entities, "entity", "e", nil, "only cards naming one of these entities (repeatable, OR)")
	fs.StringVarP(&ff.search, "search", "q", "", "case-insensitive text in title or summary")
	if withDates {
		fs.StringVar(&ff.from, "from", "", "first day included (YYYY-MM-DD)")
		fs.StringVar(&ff.to, "to", "", "last day included (YYYY-MM-DD)")
	}
}

func (ff *filterFlags) filter() (analysis.Filter, error) {
	f := analysis.Filter{
		TopicID:    ff.topicID,
		Sentiments: ff.sentiments,
		Entities:   ff.entities,
		Search:     ff.search,
	}
	var err error
	if ff.from != "" {
		if f.DateFrom, err = parseDay(ff.from); err != nil {
			return f, err
		}
	}
	if ff.to != "" {
		day, err := parseDay(ff.to)
		if err != nil {
			return f, err
		}
		// The whole last day is included.
		f.DateTo = day.AddDate(0, 0, 1).Add(-time.Nanosecond)
	}
	return f, nil
}

func parseDay(s string) (time.Time, error) {
	t, err := time.ParseInLocation(analysis.DayLayout, s, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (want YYYY-MM-DD)", s)
	}
	return t, nil
}

func scanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scan [topic-id]",
		Short: "Fetch sources and analyze new articles",
		Long: `Scan one topic, or every topic when no id is given. Articles that already
have a card for the topic are skipped, so repeated scans only analyze new content.`,
		Args: cobra.MaximumNArgs(1),
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

			if len(args) == 1 {
				result, err := engine.Scan(cmd.Context(), args[0])
				if result != nil {
					if outErr := formatter.OutputScanResult(result); outErr != nil {
						return outErr
					}
				}
				return err
			}

			results, err := engine.ScanAll(cmd.Context())
			for _, r := range results {
				if outErr := formatter.OutputScanResult(r); outErr != nil {
					return outErr
				}
			}
			return err
		},
	}
}

func cardsCmd() *cobra.Command {
	var ff filterFlags
	cmd := &cobra.Command{
		Use:   "cards",
		Short: "List analysis cards grouped by topic",
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter, err := newFormatter()
			if err != nil {
				return err
			}
			f, err := ff.filter()
			if err != nil {
				return err
			}
			engine, err := openEngine(nil)
			if err != nil {
				return err
			}
			defer engine.Close()

			dash, err := engine.Dashboard(cmd.Context())
			if err != nil {
				return err
			}
			view := dash.View(f)
			return formatter.OutputCards(view.Groups, dash.Topics())
		},
	}
	ff.register(cmd.Flags(), true)
	return cmd
}

func statsCmd() *cobra.Command {
	var ff filterFlags
	var top int
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Count cards by sentiment, entity and day",
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter, err := newFormatter()
			if err != nil {
				return err
			}
			f, err := ff.filter()
			if err != nil {
				return err
			}
			engine, err := openEngine(nil)
			if err != nil {
				return err
			}
			defer engine.Close()

			dash, err := engine.Dashboard(cmd.Context())
			if err != nil {
				return err
			}
			return formatter.OutputStats(dash.View(f).Stats, top)
		},
	}
	ff.register(cmd.Flags(), true)
	cmd.Flags().IntVarP(&top, "top", "n", 10, "number of entities to list")
	return cmd
}

func timelineCmd() *cobra.Command {
	var ff filterFlags
	var days int
	var from, to string
	var csv bool
	cmd := &cobra.Command{
		Use:   "timeline",
		Short: "Cards per day and sentiment over a period",
		Long: `Build the per-day, per-sentiment card counts for a trailing window (--days)
or an explicit range (--from and --to). Days without cards are zero.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter, err := newFormatter()
			if err != nil {
				return err
			}
			f, err := ff.filter()
			if err != nil {
				return err
			}
			var override *analysis.Period
			if cmd.Flags().Changed("days") {
				p, err := daysPeriod(days)
				if err != nil {
					return err
				}
				override = &p
			}
			if from != "" || to != "" {
				p, err := rangePeriod(from, to)
				if err != nil {
					return err
				}
				override = &p
			}

			engine, err := openEngine(nil)
			if err != nil {
				return err
			}
			defer engine.Close()

			period := engine.DefaultPeriod()
			if override != nil {
				period = *override
			}

			dash, err := engine.Dashboard(cmd.Context())
			if err != nil {
				return err
			}
			tl := dash.Timeline(f, period)
			if csv {
				return analysis.WriteCSV(cmd.OutOrStdout(), tl)
			}
			return formatter.OutputTimeline(tl)
		},
	}
	ff.register(cmd.Flags(), false)
	cmd.Flags().IntVarP(&days, "days", "d", analysis.DefaultPeriodDays, "trailing window in days, ending today")
	cmd.Flags().StringVar(&from, "from", "", "first day of an explicit range (YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "to", "", "last day of an explicit range (YYYY-MM-DD)")
	cmd.Flags().BoolVar(&csv, "csv", false, "write the CSV export")
	return cmd
}

func daysPeriod(days int) (analysis.Period, error) {
	if days < 1 {
		return analysis.Period{}, fmt.Errorf("--days must be at least 1, got %d", days)
	}
	return analysis.LastDays(days), nil
}

func rangePeriod(from, to string) (analysis.Period, error) {
	if from == "" || to == "" {
		return analysis.Period{}, fmt.Errorf("--from and --to must be given together")
	}
	start, err := parseDay(from)
	if err != nil {
		return analysis.Period{}, err
	}
	end, err := parseDay(to)
	if err != nil {
		return analysis.Period{}, err
	}
	if end.Before(start) {
		return analysis.Period{}, fmt.Errorf("--to %s is before --from %s", to, from)
	}
	return analysis.Between(start, end), nil
}
