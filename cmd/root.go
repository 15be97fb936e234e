package cmd

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "booking_service",
	Short: "Venue booking service for events, supplies and payments",
	Long: `A service that books venue events with collision detection,
allocates catering supplies against a stock ledger, prices bookings
and tracks payment status from payment lifecycle messages.`,
	Run: func(cmd *cobra.Command, args []string) {
		err := cmd.Help()
		if err != nil {
			log.Error().Err(err).Msg("Failed to display help")
		}
	},
}

// Execute executes the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize()
}
