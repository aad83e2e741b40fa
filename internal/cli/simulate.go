package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"ratewatch/internal/app"
)

var (
	simulateInstrument string
	simulateChatID     int64
	simulateOld        float64
	simulateNew        float64
	simulateThreshold  float64
)

var simulateCmd = &cobra.Command{
	Use:   "simulate-alert",
	Short: "Run one evaluation with synthetic values and deliver the alert",
	RunE: func(cmd *cobra.Command, args []string) error {
		if simulateOld <= 0 || simulateNew <= 0 {
			return errors.New("--old and --new must be greater than 0")
		}

		return getApp().SimulateAlert(cmd.Context(), app.SimulateOptions{
			Instrument: simulateInstrument,
			ChatID:     simulateChatID,
			OldValue:   simulateOld,
			NewValue:   simulateNew,
			Threshold:  simulateThreshold,
		})
	},
}

func init() {
	simulateCmd.Flags().StringVar(&simulateInstrument, "instrument", "TEST", "Instrument code to render in the message")
	simulateCmd.Flags().Int64Var(&simulateChatID, "chat-id", 0, "Chat to deliver the alert to")
	simulateCmd.Flags().Float64Var(&simulateOld, "old", 0, "Baseline value")
	simulateCmd.Flags().Float64Var(&simulateNew, "new", 0, "Observed value")
	simulateCmd.Flags().Float64Var(&simulateThreshold, "threshold", 0.01, "Percent threshold as a fraction")
}
