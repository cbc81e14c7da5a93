package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/Eventual-Inc/modelfn/pkg/frame"
	"github.com/Eventual-Inc/modelfn/pkg/inference"
)

var (
	runInputFile string
	runPreview   bool
	runEnvelope  bool
)

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringVarP(&runInputFile, "input", "i", "-", "JSON payload to predict on, - for stdin")
	runCmd.Flags().BoolVar(&runPreview, "preview", false, "print the parsed input table before predicting")
	runCmd.Flags().BoolVar(&runEnvelope, "envelope", false, "print the full Lambda response envelope instead of the predictions")
}

func readPayload(name string, stdin io.Reader) ([]byte, error) {
	if name == "-" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(name)
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Runs the model function",
	Long:  `Runs the model function a single time on a JSON payload, useful for debugging and for adhoc runs`,
	Run: func(cmd *cobra.Command, args []string) {
		payload, err := readPayload(runInputFile, cmd.InOrStdin())
		cobra.CheckErr(err)

		if runPreview {
			f, err := frame.Parse(payload)
			cobra.CheckErr(err)
			fmt.Fprint(cmd.OutOrStdout(), PreviewFrame(f))
			f.Release()
		}

		ctx := context.Background()
		handler, err := inference.New(ctx, cfg)
		cobra.CheckErr(err)
		event := inference.Event{Body: json.RawMessage(payload)}

		if runEnvelope {
			resp, err := handler.Handle(ctx, event)
			cobra.CheckErr(err)
			out, err := json.MarshalIndent(resp, "", "  ")
			cobra.CheckErr(err)
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return
		}
		predictions, err := handler.Predict(ctx, event)
		cobra.CheckErr(err)
		out, err := json.MarshalIndent(inference.PredictionResponse{Predictions: predictions}, "", "  ")
		cobra.CheckErr(err)
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
	},
}
