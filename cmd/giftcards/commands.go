package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/iurnickita/giftcards/internal/auth"
	"github.com/iurnickita/giftcards/internal/config"
	"github.com/iurnickita/giftcards/internal/handler"
	"github.com/iurnickita/giftcards/internal/model"
	"github.com/iurnickita/giftcards/internal/reminder"
)

type rootFlags struct {
	addr   string
	driver string
	dsn    string
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	root := &cobra.Command{
		Use:           "giftcards",
		Short:         "Keep track of gift cards and their balances",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, flags)
		},
	}
	root.PersistentFlags().StringVar(&flags.addr, "addr", "", "HTTP listen address")
	root.PersistentFlags().StringVar(&flags.driver, "driver", "", "database driver: sqlite or pgx")
	root.PersistentFlags().StringVar(&flags.dsn, "dsn", "", "database DSN")

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the HTTP API, backup autosave and expiry reminders",
			RunE: func(cmd *cobra.Command, args []string) error {
				return runServe(cmd, flags)
			},
		},
		newListCmd(flags),
		newAddCmd(flags),
		newImportCmd(flags),
		newExportCmd(flags),
	)
	return root
}

func loadConfig(flags *rootFlags) (config.Config, error) {
	cfg, err := config.GetConfig()
	if err != nil {
		return cfg, err
	}
	// флаги важнее окружения
	if flags.addr != "" {
		cfg.Handler.ServerAddr = flags.addr
	}
	if flags.driver != "" {
		cfg.Store.Driver = flags.driver
	}
	if flags.dsn != "" {
		cfg.Store.DBDsn = flags.dsn
	}
	return cfg, nil
}

// withApp runs a one-shot command against the local store.
func withApp(cmd *cobra.Command, flags *rootFlags, fn func(ctx context.Context, a *app) error) error {
	cfg, err := loadConfig(flags)
	if err != nil {
		return err
	}
	cfg.Service.WatchBackup = false

	ctx := cmd.Context()
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

func runServe(cmd *cobra.Command, flags *rootFlags) error {
	cfg, err := loadConfig(flags)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	remind, err := reminder.New(cfg.Reminder, a.service, reminder.NewNotifier(cfg.Reminder, a.zaplog), a.zaplog)
	if err != nil {
		return fmt.Errorf("reminder: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return handler.Serve(gctx, cfg.Handler, auth.NewAuth(cfg.Auth), a.service, a.registry, a.zaplog)
	})
	g.Go(func() error {
		return a.service.Run(gctx)
	})
	g.Go(func() error {
		return remind.Run(gctx)
	})
	return g.Wait()
}

func newListCmd(flags *rootFlags) *cobra.Command {
	var reveal bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List active and archived cards",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, flags, func(ctx context.Context, a *app) error {
				listing := a.service.ListCards(ctx, time.Now())
				out := cmd.OutOrStdout()
				printCards(out, model.StatusActive, listing.Active, reveal)
				printCards(out, model.StatusArchived, listing.Archived, reveal)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&reveal, "reveal", false, "show PINs")
	return cmd
}

func printCards(out io.Writer, status model.Status, cards []model.Card, reveal bool) {
	fmt.Fprintf(out, "%s (%d)\n", status, len(cards))
	if len(cards) == 0 {
		return
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "  NUMBER\tPIN\tBALANCE\tEXPIRES\tID")
	for _, card := range cards {
		pin := card.Data.MaskedPIN()
		if reveal {
			pin = card.Data.PIN
		}
		fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\t%s\n",
			card.Data.Number, pin, card.Data.Balance.StringFixed(2), card.Data.ExpiryDate, card.ID)
	}
	tw.Flush()
}

func newAddCmd(flags *rootFlags) *cobra.Command {
	var number, pin, amount string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a card",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			balance, err := decimal.NewFromString(amount)
			if err != nil {
				return fmt.Errorf("balance: %w", err)
			}
			return withApp(cmd, flags, func(ctx context.Context, a *app) error {
				result, err := a.service.AddCards(ctx, []model.NewCard{{Number: number, PIN: pin, Balance: balance}})
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				for _, card := range result.Added {
					fmt.Fprintf(out, "added %s (%s)\n", card.Data.Number, card.ID)
				}
				for _, duplicate := range result.Duplicates {
					fmt.Fprintf(out, "already present: %s\n", duplicate)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&number, "number", "", "card number")
	cmd.Flags().StringVar(&pin, "pin", "", "card PIN")
	cmd.Flags().StringVar(&amount, "balance", "0", "card balance")
	cmd.MarkFlagRequired("number")
	cmd.MarkFlagRequired("pin")
	return cmd
}

func newImportCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "import FILE",
		Short: "Merge cards from an exported file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, flags, func(ctx context.Context, a *app) error {
				n, err := a.service.Import(ctx, data)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "imported %d card(s)\n", n)
				return nil
			})
		},
	}
}

func newExportCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "export [FILE]",
		Short: "Write all cards as JSON to FILE or stdout",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, flags, func(ctx context.Context, a *app) error {
				data, err := a.service.Export(ctx)
				if err != nil {
					return err
				}
				if len(args) == 0 {
					_, err = cmd.OutOrStdout().Write(append(data, '\n'))
					return err
				}
				return os.WriteFile(args[0], data, 0o600)
			})
		},
	}
}
