package cli

import (
	"errors"
	"fmt"
	"net/url"
	"os"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/headline-goat/intent-goat/internal/config"
)

var (
	initPath  string
	initYes   bool
	initForce bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter config file",
	Long: `Write a YAML config file holding the experiment definition, the
intent sequences, the recompute schedule and the rate limits.

Without --yes you are asked for the sales webhook and the recompute
schedule.

Example:
  igt init
  igt init --path igt.yaml --yes`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

func init() {
	initCmd.Flags().StringVar(&initPath, "path", "igt.yaml", "config file to write")
	initCmd.Flags().BoolVarP(&initYes, "yes", "y", false, "accept the defaults without prompting")
	initCmd.Flags().BoolVar(&initForce, "force", false, "overwrite an existing file")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	cfg := config.Default()

	if !initYes {
		webhook, err := promptWebhook()
		if err != nil {
			return err
		}
		cfg.Webhook.URL = webhook

		schedule, err := promptSchedule()
		if err != nil {
			return err
		}
		cfg.Recompute.Schedule = schedule
	}

	if err := writeConfig(initPath, cfg, initForce); err != nil {
		return err
	}
	printNextSteps(cmd, initPath)
	return nil
}

// writeConfig validates cfg and writes it as YAML.
func writeConfig(path string, cfg *config.Config, force bool) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

func promptWebhook() (string, error) {
	prompt := promptui.Prompt{
		Label: "Sales webhook URL (empty to skip)",
		Validate: func(input string) error {
			if input == "" {
				return nil
			}
			u, err := url.Parse(input)
			if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
				return errors.New("must be an http(s) URL")
			}
			return nil
		},
	}

	result, err := prompt.Run()
	if err != nil {
		if errors.Is(err, promptui.ErrInterrupt) {
			os.Exit(0)
		}
		return "", err
	}
	return result, nil
}

var scheduleChoices = []struct {
	label string
	spec  string
}{
	{"Every 5 minutes", "@every 5m"},
	{"Hourly", "@hourly"},
	{"Daily at midnight", "@daily"},
	{"Never (serve computes on request only)", ""},
}

func promptSchedule() (string, error) {
	labels := make([]string, len(scheduleChoices))
	for i, c := range scheduleChoices {
		labels[i] = c.label
	}

	prompt := promptui.Select{
		Label: "Posterior snapshot schedule",
		Items: labels,
		Size:  len(labels),
	}

	idx, _, err := prompt.Run()
	if err != nil {
		if errors.Is(err, promptui.ErrInterrupt) {
			os.Exit(0)
		}
		return "", err
	}
	return scheduleChoices[idx].spec, nil
}

func printNextSteps(cmd *cobra.Command, path string) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Wrote %s\n", path)
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Next steps:")
	fmt.Fprintf(out, "  igt serve --config %s     Start ingestion and the dashboard API\n", path)
	fmt.Fprintf(out, "  igt replay events.jsonl --config %s  Run recorded sessions offline\n", path)
	fmt.Fprintln(out, "  igt token                   Show the dashboard URL")
}
