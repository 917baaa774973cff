package cli

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/headline-goat/intent-goat/internal/store"
)

var (
	exportFormat     string
	exportType       string
	exportExperiment string
	exportSince      int64
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the server event log",
	Long: `Export ingested events in CSV or JSON format.

Examples:
  igt export --format csv > events.csv
  igt export --format json --type lead_form_submit > submits.json`,
	Args: cobra.NoArgs,
	RunE: runExport,
}

func init() {
	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", "csv", "output format (csv or json)")
	exportCmd.Flags().StringVar(&exportType, "type", "", "only events of this type")
	exportCmd.Flags().StringVar(&exportExperiment, "experiment", "", "only events of this experiment")
	exportCmd.Flags().Int64Var(&exportSince, "since", 0, "only events at or after this epoch ms")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	if exportFormat != "csv" && exportFormat != "json" {
		return fmt.Errorf("invalid format: must be 'csv' or 'json'")
	}

	return withStore(func(s *store.SQLiteStore) error {
		evs, err := s.ListEvents(context.Background(), store.EventFilter{
			Type:         exportType,
			ExperimentID: exportExperiment,
			Since:        exportSince,
		})
		if err != nil {
			return fmt.Errorf("failed to get events: %w", err)
		}

		if exportFormat == "csv" {
			return exportCSV(cmd.OutOrStdout(), evs)
		}
		return exportJSON(cmd.OutOrStdout(), evs)
	})
}

func exportCSV(out io.Writer, evs []*store.Event) error {
	w := csv.NewWriter(out)
	defer w.Flush()

	header := []string{"event_id", "timestamp", "type", "session_id", "regime_id", "traffic_source", "experiment_id", "variant", "received_at"}
	if err := w.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for _, e := range evs {
		row := []string{
			e.EventID,
			strconv.FormatInt(e.Timestamp, 10),
			e.Type,
			e.SessionID,
			e.RegimeID,
			e.TrafficSource,
			e.ExperimentID,
			e.Variant,
			strconv.FormatInt(e.ReceivedAt.Unix(), 10),
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}

	return nil
}

type jsonExport struct {
	Events []json.RawMessage `json:"events"`
}

// exportJSON writes the stored envelopes verbatim, so the output can be
// posted back to the recompute endpoints.
func exportJSON(out io.Writer, evs []*store.Event) error {
	export := jsonExport{Events: make([]json.RawMessage, 0, len(evs))}
	for _, e := range evs {
		if !json.Valid(e.Payload) {
			continue
		}
		export.Events = append(export.Events, json.RawMessage(e.Payload))
	}

	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(export)
}
