package cli

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/headline-goat/intent-goat/internal/alerts"
	"github.com/headline-goat/intent-goat/internal/config"
	"github.com/headline-goat/intent-goat/internal/engine"
	"github.com/headline-goat/intent-goat/internal/events"
	"github.com/headline-goat/intent-goat/internal/ingest"
	"github.com/headline-goat/intent-goat/internal/intent"
	"github.com/headline-goat/intent-goat/internal/logger"
	"github.com/headline-goat/intent-goat/internal/notify"
)

var (
	replayForward  bool
	replayNotify   bool
	replayLanding  string
	replayReferrer string
)

var replayCmd = &cobra.Command{
	Use:   "replay <events.jsonl>",
	Short: "Run recorded sessions through the engine",
	Long: `Replay recorded events, one engine per session, and print each
session's final score, intent tier and block order.

The file holds either a JSON array of events or one event per line.
Recorded narrative_reorder events are skipped; the engine emits its own.
Sessions recorded without a traffic source are attributed from --landing
(utm_* query parameters) and --referrer.

Examples:
  igt replay sessions.jsonl
  igt replay sessions.jsonl --landing "https://example.com/?utm_source=google&utm_medium=cpc"
  igt replay sessions.jsonl --forward --notify`,
	Args: cobra.ExactArgs(1),
	RunE: runReplay,
}

func init() {
	replayCmd.Flags().BoolVar(&replayForward, "forward", false, "forward emitted events to ingest.url / IGT_INGEST_URL")
	replayCmd.Flags().BoolVar(&replayNotify, "notify", false, "relay raised alerts to webhook.url / IGT_WEBHOOK_URL")
	replayCmd.Flags().StringVar(&replayLanding, "landing", "", "landing URL used to attribute sessions without a traffic source")
	replayCmd.Flags().StringVar(&replayReferrer, "referrer", "", "referrer used to attribute sessions without a traffic source")
	rootCmd.AddCommand(replayCmd)
}

func runReplay(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log, err := newLogger()
	if err != nil {
		return err
	}
	defer log.Sync()

	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("failed to open events: %w", err)
	}
	defer f.Close()

	evs, err := readEvents(f)
	if err != nil {
		return err
	}

	var sinks replaySinks
	if replayForward {
		if cfg.Ingest.URL == "" {
			return fmt.Errorf("--forward needs ingest.url or IGT_INGEST_URL")
		}
		client := ingest.New(cfg.Ingest.URL, cfg.Ingest.QueueSize, log)
		defer client.Close()
		sinks.forwarder = client
	}
	if replayNotify {
		relay := notify.NewRelay(cfg.Webhook.URL, notify.Options{
			Timeout:   time.Duration(cfg.Webhook.TimeoutMs) * time.Millisecond,
			PerSecond: cfg.RateLimit.WebhookPerSecond,
			Burst:     cfg.RateLimit.WebhookBurst,
		}, log)
		if !relay.Configured() {
			relay.Close()
			return fmt.Errorf("--notify needs webhook.url or IGT_WEBHOOK_URL")
		}
		defer relay.Close()
		sinks.notifier = alerts.NotifierFunc(func(n alerts.Notification) { relay.Enqueue(n) })
	}

	results := replay(cmd.Context(), evs, cfg, sinks, log)
	printReplay(cmd.OutOrStdout(), results)
	return nil
}

// readEvents accepts a JSON array or line-delimited events.
func readEvents(r io.Reader) ([]events.Event, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read events: %w", err)
	}
	if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && trimmed[0] == '[' {
		return events.DecodeAll(trimmed)
	}

	var out []events.Event
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for line := 1; sc.Scan(); line++ {
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		e, err := events.Decode([]byte(text))
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		out = append(out, e)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan events: %w", err)
	}
	return out, nil
}

type replaySinks struct {
	forwarder engine.Forwarder
	notifier  alerts.Notifier
}

type replayResult struct {
	SessionID string
	Source    string
	Variant   events.Variant
	Score     intent.Score
	Intent    intent.State
	Reorders  int
	Alerts    int
	Rejected  int
	Order     []string
}

// replay groups events by session in first-seen order and feeds each
// group to its own engine.
func replay(ctx context.Context, evs []events.Event, cfg *config.Config, sinks replaySinks, log *logger.Logger) []replayResult {
	var ids []string
	bySession := make(map[string][]events.Event)
	for _, e := range evs {
		if e.Type == events.TypeNarrativeReorder {
			continue
		}
		if _, ok := bySession[e.SessionID]; !ok {
			ids = append(ids, e.SessionID)
		}
		bySession[e.SessionID] = append(bySession[e.SessionID], e)
	}

	results := make([]replayResult, 0, len(ids))
	for _, id := range ids {
		group := bySession[id]

		eng := engine.New(ctx, engine.Options{
			SessionID:   id,
			Attribution: sessionAttribution(group[0], replayLanding, replayReferrer),
			Experiment:  cfg.Experiment,
			Sequences:   cfg.Sequences,
			LogCap:      cfg.LogCap,
			Notifier:    sinks.notifier,
			Forwarder:   sinks.forwarder,
			Logger:      log,
		})

		rejected := 0
		for _, e := range group {
			if _, err := eng.Emit(e); err != nil {
				log.Warn("rejected recorded event", "error", err)
				rejected++
			}
		}

		score := eng.Score()
		results = append(results, replayResult{
			SessionID: eng.SessionID(),
			Source:    eng.TrafficSource(),
			Variant:   eng.Variant(),
			Score:     score,
			Intent:    intent.Classify(score.Probability),
			Reorders:  eng.Summary().TotalReorders,
			Alerts:    len(eng.Alerts().All()),
			Rejected:  rejected,
			Order:     eng.Order(),
		})
	}
	return results
}

// sessionAttribution keeps the recorded attribution of a session's first
// event, or derives one from the landing URL and referrer.
func sessionAttribution(first events.Event, landing, referrer string) events.Attribution {
	if first.TrafficSource != "" {
		return events.Attribution{
			TrafficSource: first.TrafficSource,
			UTMSource:     first.UTMSource,
			UTMMedium:     first.UTMMedium,
			UTMCampaign:   first.UTMCampaign,
			ReferrerHost:  first.ReferrerHost,
		}
	}
	return events.AttributeURL(landing, referrer)
}

func printReplay(out io.Writer, results []replayResult) {
	if len(results) == 0 {
		fmt.Fprintln(out, "No events to replay.")
		return
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SESSION\tSOURCE\tVARIANT\tSCORE\tINTENT\tREORDERS\tALERTS\tREJECTED\tORDER")
	for _, r := range results {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d%%\t%s\t%d\t%d\t%d\t%s\n",
			r.SessionID,
			r.Source,
			r.Variant,
			r.Score.ScorePercent,
			strings.ToUpper(string(r.Intent)),
			r.Reorders,
			r.Alerts,
			r.Rejected,
			strings.Join(r.Order, ","),
		)
	}
	w.Flush()
}
