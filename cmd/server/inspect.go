package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/suPer8Hu/helpdesk-triage/internal/app"
	"github.com/suPer8Hu/helpdesk-triage/internal/kb"
	"github.com/suPer8Hu/helpdesk-triage/internal/logger"
)

var withSteps bool

func newResolveCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resolve <text>",
		Short: "Classify a message with the configured backends",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			cfg.Mapping.Mirror = "none"
			a, err := app.New(cmd.Context(), cfg, logger.Get())
			if err != nil {
				return err
			}
			defer a.Close()

			text := strings.Join(args, " ")
			out := map[string]any{"intent": a.Resolver.ResolveIntent(cmd.Context(), text)}
			if withSteps {
				ctx, cancel := context.WithTimeout(cmd.Context(), stepsTimeout(cfg.AI.StepsTimeout))
				defer cancel()
				out["steps"] = a.Resolver.ResolveSteps(ctx, text, false)
			}
			return printJSON(out)
		},
	}
	cmd.Flags().BoolVar(&withSteps, "steps", false, "Also generate troubleshooting steps")
	return cmd
}

func newArticlesCommand() *cobra.Command {
	var match string
	cmd := &cobra.Command{
		Use:   "articles",
		Short: "List the knowledge base, or show the best match for a query",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			articles, err := kb.LoadDir(cfg.KB.Dir, logger.WithComponent("kb"))
			if err != nil {
				return err
			}
			idx := kb.NewIndex(articles, app.Weights(cfg.KB.Weights))

			if match != "" {
				a := idx.Find(match)
				if a == nil {
					fmt.Fprintln(os.Stdout, "no match")
					return nil
				}
				return printJSON(map[string]any{"score": idx.Score(a, strings.ToLower(strings.TrimSpace(match))), "article": a})
			}
			for _, a := range idx.All() {
				fmt.Fprintf(os.Stdout, "%-24s %-32s %d steps\n", a.ID, a.Title, len(a.Steps))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&match, "match", "", "Query to match against the articles")
	return cmd
}

func stepsTimeout(d time.Duration) time.Duration {
	if d <= 0 {
		return 15 * time.Second
	}
	return d
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
