package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/KretovDmitry/gophermart-pricing-service/internal/cbr"
	"github.com/KretovDmitry/gophermart-pricing-service/internal/config"
	"github.com/KretovDmitry/gophermart-pricing-service/internal/exchange"
	"github.com/KretovDmitry/gophermart-pricing-service/internal/models/rate"
	"github.com/KretovDmitry/gophermart-pricing-service/internal/postgres"
	"github.com/KretovDmitry/gophermart-pricing-service/pkg/logger"
	trmsql "github.com/avito-tech/go-transaction-manager/drivers/sql/v2"
	trmcontext "github.com/avito-tech/go-transaction-manager/trm/v2/context"
	"github.com/avito-tech/go-transaction-manager/trm/v2/manager"
	"github.com/spf13/cobra"
)

func refreshCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Pull rates from the central bank and store them",
		Long: `Fetches today's USD and EUR rates and writes them as the current rate.
When the central bank cannot be reached the default rates are stored instead.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			timeout, _ := cmd.Flags().GetDuration("timeout")
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			return withService(cmd, func(s *exchange.Service) error {
				er, err := s.Refresh(ctx)
				if err != nil {
					return err
				}
				if er.Source != rate.CBR {
					fmt.Fprintln(cmd.ErrOrStderr(), "warning: central bank unavailable, default rates stored")
				}
				return printRate(cmd.OutOrStdout(), er)
			})
		},
	}

	cmd.Flags().Duration("timeout", time.Minute, "overall refresh timeout")

	return cmd
}

func showCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the current rate and the latest history entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			asJSON, _ := cmd.Flags().GetBool("json")

			return withService(cmd, func(s *exchange.Service) error {
				er, err := s.Get(cmd.Context())
				if err != nil {
					return err
				}
				entries, err := s.History(cmd.Context(), limit)
				if err != nil {
					return err
				}

				if asJSON {
					enc := json.NewEncoder(cmd.OutOrStdout())
					enc.SetIndent("", "  ")
					return enc.Encode(struct {
						Current *exchange.RateResponse `json:"current"`
						History []*rate.HistoryEntry   `json:"history"`
					}{exchange.NewRateResponse(er), entries})
				}

				if err = printRate(cmd.OutOrStdout(), er); err != nil {
					return err
				}
				return printHistory(cmd.OutOrStdout(), entries)
			})
		},
	}

	cmd.Flags().IntP("limit", "n", 10, "history entries to show")
	cmd.Flags().BoolP("json", "j", false, "output as JSON")

	return cmd
}

// withService wires the exchange service the same way the server does.
// Storage bootstrap, swapped in tests.
var (
	connectDB = postgres.Connect
	migrateDB = postgres.Migrate
)

func withService(cmd *cobra.Command, fn func(s *exchange.Service) error) error {
	path, _ := cmd.Flags().GetString("config")

	cfg, err := config.Load(path)
	if err != nil {
		return err
	}

	l := logger.New(cfg)
	defer func() { _ = l.Sync() }()

	db, err := connectDB(cmd.Context(), cfg, l)
	if err != nil {
		return err
	}
	defer db.Close()

	// The CLI may run before the server ever has.
	if err = migrateDB(db); err != nil {
		return err
	}

	source, err := cbr.NewClient(cfg)
	if err != nil {
		return err
	}

	repo, err := exchange.NewRepository(db, trmsql.DefaultCtxGetter, l)
	if err != nil {
		return err
	}

	trManager := manager.Must(
		trmsql.NewDefaultFactory(db),
		manager.WithCtxManager(trmcontext.DefaultManager),
	)

	s, err := exchange.NewService(repo, source, trManager, l, nil)
	if err != nil {
		return err
	}

	return fn(s)
}

func printRate(w io.Writer, er *rate.ExchangeRate) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "source\t%s\n", er.Source)
	fmt.Fprintf(tw, "rub per usd\t%s\n", er.RUBRate.StringFixed(4))
	fmt.Fprintf(tw, "rub per eur\t%s\n", er.RUBPerEUR().StringFixed(4))
	fmt.Fprintf(tw, "eur rate\t%s\n", er.EURRate.StringFixed(6))
	if !er.UpdatedAt.IsZero() {
		fmt.Fprintf(tw, "updated at\t%s\n", er.UpdatedAt.Format(time.RFC3339))
	}
	return tw.Flush()
}

func printHistory(w io.Writer, entries []*rate.HistoryEntry) error {
	if len(entries) == 0 {
		_, err := fmt.Fprintln(w, "\nno history yet")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "\nID\tCREATED AT\tSOURCE\tRUB/USD\tRUB/EUR")
	for _, e := range entries {
		perEUR := (&rate.ExchangeRate{EURRate: e.EURRate, RUBRate: e.RUBRate}).RUBPerEUR()
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n",
			e.ID, e.CreatedAt.Format(time.RFC3339), e.Source, e.RUBRate.StringFixed(4), perEUR.StringFixed(4))
	}
	return tw.Flush()
}
