package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"cloud.google.com/go/civil"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hackgods/training-appointments/internal/appointment"
	"github.com/hackgods/training-appointments/internal/availability"
	"github.com/hackgods/training-appointments/internal/config"
	"github.com/hackgods/training-appointments/internal/db"
	"github.com/hackgods/training-appointments/internal/logging"
	"github.com/hackgods/training-appointments/internal/offday"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "slotctl",
		Short:         "Inspect training slot availability and manage the schema",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(monthCmd())
	rootCmd.AddCommand(checkCmd())
	rootCmd.AddCommand(offDaysCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// env bundles what every read command needs. The services are built without
// a lock or cache since slotctl never books.
type env struct {
	pool         *pgxpool.Pool
	log          *zap.Logger
	appointments *appointment.Service
	offDays      *offday.Service
}

func openEnv(ctx context.Context) (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(cfg.LogLevel, cfg.Env)
	if err != nil {
		return nil, err
	}
	for _, w := range cfg.Warnings {
		logger.Warn(w)
	}

	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}

	offDays := offday.NewService(offday.NewPgRepository(pool), nil, nil, logger,
		offday.WithMaxRangeDays(cfg.MaxRangeDays))
	return &env{
		pool:    pool,
		log:     logger,
		offDays: offDays,
		appointments: appointment.NewService(appointment.NewPgRepository(pool), nil, offDays, cfg,
			appointment.WithLogger(logger)),
	}, nil
}

func (e *env) Close() {
	e.pool.Close()
	_ = e.log.Sync()
}

func monthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "month",
		Short: "Print the bookable slots for every day of a month",
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, _ := cmd.Flags().GetString("month")
			year, month, err := parseMonth(raw)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			e, err := openEnv(ctx)
			if err != nil {
				return err
			}
			defer e.Close()

			first, last := availability.MonthBounds(year, month)
			days, err := e.appointments.AvailableSlots(ctx, first, last)
			if err != nil {
				return err
			}
			return writeMonth(cmd.OutOrStdout(), days)
		},
	}
	cmd.Flags().String("month", time.Now().Format("2006-01"), "Month to print (YYYY-MM)")
	return cmd
}

func checkCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Report whether one slot kind can be booked on a date",
		RunE: func(cmd *cobra.Command, args []string) error {
			rawDate, _ := cmd.Flags().GetString("date")
			rawKind, _ := cmd.Flags().GetString("type")

			date, err := civil.ParseDate(rawDate)
			if err != nil {
				return fmt.Errorf("invalid --date: %w", err)
			}
			kind, err := availability.ParseSlotKind(rawKind)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			e, err := openEnv(ctx)
			if err != nil {
				return err
			}
			defer e.Close()

			ok, err := e.appointments.CheckAvailability(ctx, date, kind)
			if err != nil {
				return err
			}
			verdict := "available"
			if !ok {
				verdict = "unavailable"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s: %s\n", date, kind, verdict)
			return nil
		},
	}
	cmd.Flags().String("date", "", "Date to check (YYYY-MM-DD)")
	cmd.Flags().String("type", string(availability.FullDay), "Slot kind: morning, afternoon or full_day")
	_ = cmd.MarkFlagRequired("date")
	return cmd
}

func offDaysCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "off-days",
		Short: "List expanded off-day occurrences in a date range",
		RunE: func(cmd *cobra.Command, args []string) error {
			rawFrom, _ := cmd.Flags().GetString("from")
			rawTo, _ := cmd.Flags().GetString("to")

			from, err := civil.ParseDate(rawFrom)
			if err != nil {
				return fmt.Errorf("invalid --from: %w", err)
			}
			to, err := civil.ParseDate(rawTo)
			if err != nil {
				return fmt.Errorf("invalid --to: %w", err)
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			e, err := openEnv(ctx)
			if err != nil {
				return err
			}
			defer e.Close()

			occ, err := e.offDays.Calendar(ctx, from, to)
			if err != nil {
				return err
			}
			return writeOccurrences(cmd.OutOrStdout(), occ)
		},
	}
	cmd.Flags().String("from", "", "First date (YYYY-MM-DD)")
	cmd.Flags().String("to", "", "Last date (YYYY-MM-DD)")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Database migration commands",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := db.Migrate(cfg.PostgresDSN); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations complete")
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "force <version>",
		Short: "Mark the schema as being at version after a failed migration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			version, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid version: %w", err)
			}
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := db.Force(cfg.PostgresDSN, version); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "forced version to %d\n", version)
			return nil
		},
	})

	return cmd
}

func parseMonth(raw string) (int, time.Month, error) {
	t, err := time.Parse("2006-01", strings.TrimSpace(raw))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid --month %q, want YYYY-MM", raw)
	}
	return t.Year(), t.Month(), nil
}

func writeMonth(w io.Writer, days []availability.DateAvailability) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "DATE\tDAY\tMORNING\tAFTERNOON\tFULL DAY")
	for _, d := range days {
		free := make(map[availability.SlotKind]bool, len(d.AvailableSlots))
		for _, k := range d.AvailableSlots {
			free[k] = true
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			d.Date, d.Date.Weekday().String()[:3],
			mark(free[availability.MorningHalf]),
			mark(free[availability.AfternoonHalf]),
			mark(free[availability.FullDay]))
	}
	return tw.Flush()
}

func writeOccurrences(w io.Writer, occ []offday.Occurrence) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "DATE\tBLOCKED\tREASON\tRULE")
	for _, o := range occ {
		kinds := make([]string, len(o.Blocked))
		for i, k := range o.Blocked {
			kinds[i] = string(k)
		}
		reason := "-"
		if o.Reason != nil {
			reason = *o.Reason
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", o.Date, strings.Join(kinds, ","), reason, o.OffDayID)
	}
	return tw.Flush()
}

func mark(free bool) string {
	if free {
		return "open"
	}
	return "-"
}
