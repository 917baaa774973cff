package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/headline-goat/intent-goat/internal/alerts"
	"github.com/headline-goat/intent-goat/internal/store"
)

var alertsAll bool

var alertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "List and acknowledge sales alerts",
}

var alertsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List active sales alerts",
	Long: `List the most recent unacknowledged sales alerts kept in local state.

Example:
  igt alerts list
  igt alerts list --all`,
	Args: cobra.NoArgs,
	RunE: runAlertsList,
}

var alertsAckCmd = &cobra.Command{
	Use:   "ack [id]",
	Short: "Acknowledge a sales alert",
	Long: `Acknowledge an alert by id. Without an id, pick one interactively.

Example:
  igt alerts ack s1_high_intent
  igt alerts ack`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAlertsAck,
}

func init() {
	alertsListCmd.Flags().BoolVar(&alertsAll, "all", false, "include acknowledged alerts")
	alertsCmd.AddCommand(alertsListCmd, alertsAckCmd)
	rootCmd.AddCommand(alertsCmd)
}

func withAlerts(fn func(context.Context, *alerts.Store) error) error {
	return withStore(func(s *store.SQLiteStore) error {
		ctx := context.Background()
		return fn(ctx, alerts.NewStore(ctx, store.NewLocalState(s, nil), nil))
	})
}

func runAlertsList(cmd *cobra.Command, args []string) error {
	return withAlerts(func(ctx context.Context, as *alerts.Store) error {
		list := as.Active()
		if alertsAll {
			list = as.All()
		}
		printAlerts(cmd.OutOrStdout(), list)
		return nil
	})
}

func printAlerts(out io.Writer, list []alerts.Alert) {
	if len(list) == 0 {
		fmt.Fprintln(out, "No active alerts.")
		return
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTYPE\tPROBABILITY\tSCROLL\tDWELL\tCREATED\tACK")
	for _, a := range list {
		probability := "-"
		if a.Probability != nil {
			probability = formatPercent(*a.Probability)
		}
		scroll := "-"
		if a.MaxScrollDepth != nil {
			scroll = fmt.Sprintf("%.0f%%", *a.MaxScrollDepth)
		}
		dwell := "-"
		if a.TotalDwellMs != nil {
			dwell = fmt.Sprintf("%d ms", *a.TotalDwellMs)
		}
		ack := ""
		if a.Acknowledged {
			ack = "yes"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			a.ID, a.Type, probability, scroll, dwell,
			time.UnixMilli(a.CreatedAt).Format("2006-01-02 15:04"), ack)
	}
	w.Flush()
}

func runAlertsAck(cmd *cobra.Command, args []string) error {
	return withAlerts(func(ctx context.Context, as *alerts.Store) error {
		var id string
		if len(args) == 1 {
			id = args[0]
		} else {
			picked, err := promptAlert(as.Active())
			if err != nil {
				return err
			}
			id = picked
		}

		if !as.Acknowledge(ctx, id) {
			return fmt.Errorf("alert '%s' not found", id)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Acknowledged %s\n", id)
		return nil
	})
}

func promptAlert(active []alerts.Alert) (string, error) {
	if len(active) == 0 {
		return "", errors.New("no active alerts to acknowledge")
	}

	items := make([]string, len(active))
	for i, a := range active {
		items[i] = fmt.Sprintf("%s (%s)", a.ID, time.UnixMilli(a.CreatedAt).Format("15:04:05"))
	}

	prompt := promptui.Select{
		Label: "Alert to acknowledge",
		Items: items,
		Size:  len(items),
	}

	idx, _, err := prompt.Run()
	if err != nil {
		if errors.Is(err, promptui.ErrInterrupt) {
			return "", errors.New("cancelled")
		}
		return "", err
	}
	return active[idx].ID, nil
}
