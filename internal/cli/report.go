package cli

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/ferreiramx/smart-events/internal/catalog"
	"github.com/ferreiramx/smart-events/internal/compare"
	"github.com/ferreiramx/smart-events/internal/config"
	"github.com/ferreiramx/smart-events/internal/database"
	"github.com/ferreiramx/smart-events/internal/funnel"
	"github.com/ferreiramx/smart-events/internal/metrics"
)

var reportTopN int

var reportCmd = &cobra.Command{
	Use:   "report <event-id>",
	Short: "Print a plain-text dashboard for one event",
	Long: `Print the dashboard sections for one event to stdout: the event
snapshot, its cohort of comparable events, the purchase funnel and the
payment-method mix.

Examples:
  smart-events report 4212
  smart-events report 4212 --top 3`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var eventID int64
		if _, err := fmt.Sscanf(args[0], "%d", &eventID); err != nil {
			return fmt.Errorf("invalid event id %q", args[0])
		}
		return runReport(eventID, os.Stdout)
	},
}

func runReport(eventID int64, out io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer func() { _ = db.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return writeReport(ctx, db, cfg, eventID, out)
}

func writeReport(ctx context.Context, db *sql.DB, cfg *config.Config, eventID int64, out io.Writer) error {
	events := catalog.NewStore(db)
	store := metrics.NewStore(db)

	event, err := events.Load(ctx, eventID)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "\n%s\n", event.Name)
	fmt.Fprintf(out, "%s / %s, %s\n\n", event.Subcategory, event.City, event.State)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Started\t%s\n", event.StartedAt.Format("2006-01-02"))
	fmt.Fprintf(w, "Bookings\t%d\n", event.BookingsCompleted)
	fmt.Fprintf(w, "Tickets sold\t%d\n", event.TicketsSold)
	fmt.Fprintf(w, "Ticket sales\t$%.2f\n", event.TotalTicketSales)
	fmt.Fprintf(w, "Avg ticket price\t$%.2f\n", event.AverageTicketPrice)
	if err := w.Flush(); err != nil {
		return err
	}

	if err := writeCohortSection(ctx, events, cfg, event, out); err != nil {
		return err
	}
	if err := writeFunnelSection(ctx, store, eventID, out); err != nil {
		return err
	}
	return writePaymentSection(ctx, store, eventID, out)
}

func writeCohortSection(ctx context.Context, events *catalog.Store, cfg *config.Config, event *catalog.Event, out io.Writer) error {
	var cohort []catalog.Event
	var err error

	if cfg.HasExplicitCohort() {
		fmt.Fprintf(out, "\nSimilar events (pinned)\n\n")
		cohort, err = events.FetchExplicit(ctx, cfg.SimilarEvents)
	} else {
		low, high := catalog.PriceBand(event.AverageTicketPrice, cfg.PriceThreshold)
		fmt.Fprintf(out, "\nSimilar events ($%.2f - $%.2f)\n\n", low, high)
		cohort, err = events.SelectCohort(ctx, event.ID, cfg.PriceThreshold)
	}
	if err != nil {
		return err
	}
	if len(cohort) == 0 {
		fmt.Fprintln(out, "  no comparable events found")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tCITY\tAVG PRICE\tTICKETS")
	for _, e := range cohort {
		fmt.Fprintf(w, "%d\t%s\t%s\t$%.2f\t%d\n",
			e.ID, e.Name, e.City, e.AverageTicketPrice, e.TicketsSold)
	}
	return w.Flush()
}

func writeFunnelSection(ctx context.Context, store *metrics.Store, eventID int64, out io.Writer) error {
	rows, err := store.Pageviews(ctx, eventID)
	if err != nil {
		return err
	}
	table := funnel.Normalize(rows)

	fmt.Fprintf(out, "\nPurchase funnel\n\n")
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	for _, row := range table {
		fmt.Fprintf(w, "%s\t%d\n", row.Stage, row.Pageviews)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(out, "\nConversion: %s\n", funnel.FormatRate(funnel.ConversionRate(table)))
	return nil
}

func writePaymentSection(ctx context.Context, store *metrics.Store, eventID int64, out io.Writer) error {
	rows, err := store.BookingsByPaymentMethod(ctx, metrics.Single(eventID))
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}

	fmt.Fprintf(out, "\nPayment methods\n\n")
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	for _, row := range compare.Collapse(rows, reportTopN) {
		fmt.Fprintf(w, "%s\t%.0f\n", row.Label, row.Count)
	}
	return w.Flush()
}

func init() {
	reportCmd.Flags().IntVarP(&reportTopN, "top", "t", 5, "Number of payment methods before the rest collapses into 'others'")
	RootCmd.AddCommand(reportCmd)
}
