package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Teaching-Knowledge-Graph/TeachingKG/internal/app"
	"github.com/Teaching-Knowledge-Graph/TeachingKG/internal/domain/catalogue"
	"github.com/Teaching-Knowledge-Graph/TeachingKG/internal/services"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the health, status, metrics and catalogue endpoints",
		RunE: func(cmd *cobra.Command, args []string) error {
			log, cfg, err := opts.load(func(c *app.Config) {
				if addr != "" {
					c.HTTPAddr = addr
				}
			})
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := app.New(ctx, cfg, log)
			if err != nil {
				log.Sync()
				return err
			}
			defer func() {
				closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				_ = a.Close(closeCtx)
			}()
			return a.Run(ctx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides TKG_HTTP_ADDR)")
	return cmd
}

type statusReport struct {
	Catalogue catalogue.Stats `json:"catalogue"`
	Store     services.Status `json:"store"`
}

func newStatusCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Load the catalogue, check the store and print both states",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, nil, func(ctx context.Context, a *app.App) error {
				return writeJSON(cmd.OutOrStdout(), statusReport{
					Catalogue: a.Catalogue.Stats(),
					Store:     a.Store.Status(),
				})
			})
		},
	}
}

func newSearchCmd(opts *rootOptions) *cobra.Command {
	var f catalogue.Filters
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the catalogue",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, catalogueOnly, func(ctx context.Context, a *app.App) error {
				res, err := a.Catalogue.Search(ctx, strings.Join(args, " "), f)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), res)
			})
		},
	}
	cmd.Flags().StringVar(&f.Type, "type", "", "class IRI to search, or * for any (default schema:Course)")
	cmd.Flags().StringVar(&f.Topic, "topic", "", "keep only entities pointing at this topic IRI")
	cmd.Flags().IntVar(&f.Limit, "limit", 0, "maximum number of results (0 = no limit)")
	return cmd
}

func newDetailCmd(opts *rootOptions) *cobra.Command {
	var summary bool
	cmd := &cobra.Command{
		Use:   "detail <iri>",
		Short: "Print one catalogue entity with its relations",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, catalogueOnly, func(ctx context.Context, a *app.App) error {
				if summary {
					sum, err := a.Catalogue.CourseSummary(ctx, args[0])
					if err != nil {
						return err
					}
					return writeJSON(cmd.OutOrStdout(), sum)
				}
				d, err := a.Catalogue.Detail(ctx, args[0])
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), d)
			})
		},
	}
	cmd.Flags().BoolVar(&summary, "summary", false, "print the course summary instead")
	return cmd
}

func catalogueOnly(c *app.Config) { c.StoreBackend = app.BackendNone }

func withApp(cmd *cobra.Command, opts *rootOptions, mutate func(*app.Config), fn func(context.Context, *app.App) error) error {
	log, cfg, err := opts.load(mutate)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Sync()
		return err
	}
	defer a.Close(context.Background())
	return fn(ctx, a)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}
