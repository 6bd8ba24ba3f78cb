// Package cli implements the smart-events command tree.
package cli

import (
	"github.com/spf13/cobra"
)

// Version is stamped at build time.
var Version = "dev"

var RootCmd = &cobra.Command{
	Use:   "smart-events",
	Short: "Ticket-sales analytics dashboard",
	Long: `smart-events serves a ticket-sales analytics dashboard: sales timing,
payment methods, buyer demographics and purchase funnels for one event,
benchmarked against a cohort of comparable past events.

Configuration is read from SMARTEVENTS_* environment variables:

  SMARTEVENTS_DATABASE_URL     warehouse connection string (or DATABASE_URL)
  SMARTEVENTS_LISTEN_ADDR      HTTP listen address (default :3000)
  SMARTEVENTS_EVENT_ID         default event shown on the overview page
  SMARTEVENTS_PRICE_THRESHOLD  cohort price band, 0..1 (default 0.1)
  SMARTEVENTS_SIMILAR_EVENTS   comma-separated event ids pinning the cohort
  SMARTEVENTS_COHORT_FILE      YAML file with an explicit cohort override`,
	SilenceUsage: true,
}

// Execute runs the command tree.
func Execute() error {
	return RootCmd.Execute()
}
