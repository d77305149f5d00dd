// Package notify delivers scheduling pass results to chat channels.
package notify

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/okton/shopfloor/internal/config"
	"github.com/okton/shopfloor/internal/scheduler"
)

// Colors for pass outcomes, shared by the Slack and Discord notifiers.
const (
	colorGood    = "#36a64f"
	colorWarning = "#daa038"
	colorBad     = "#cc3333"
)

// Report is the rendered summary of one scheduling pass.
type Report struct {
	Title string
	Body  string
	Color string
}

// Notifier delivers one pass report to a destination.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, r Report) error
}

// FromConfig builds the notifiers enabled by configuration. A section with
// no bot token is simply disabled; an empty config yields no notifiers.
func FromConfig(cfg config.NotifyConfig) ([]Notifier, error) {
	var notifiers []Notifier
	if cfg.Slack.BotToken != "" {
		n, err := NewSlack(SlackOpts{BotToken: cfg.Slack.BotToken, Channel: cfg.Slack.Channel})
		if err != nil {
			return nil, err
		}
		notifiers = append(notifiers, n)
	}
	if cfg.Discord.BotToken != "" {
		n, err := NewDiscord(DiscordOpts{BotToken: cfg.Discord.BotToken, Channel: cfg.Discord.Channel})
		if err != nil {
			return nil, err
		}
		notifiers = append(notifiers, n)
	}
	return notifiers, nil
}

// Render turns a pass result into a report.
func Render(result *scheduler.PassResult) Report {
	r := Report{
		Title: fmt.Sprintf("Scheduling pass: %s", result.Status),
	}

	var lines []string
	switch result.Status {
	case scheduler.PassOptimal, scheduler.PassFeasible:
		r.Color = colorGood
		lines = append(lines,
			fmt.Sprintf("Makespan: %d min", result.MakespanMins),
			fmt.Sprintf("Placements: %d", len(result.Placements)))
	case scheduler.PassNoTasks:
		r.Color = colorWarning
		lines = append(lines, "Nothing to schedule.")
	case scheduler.PassInfeasible:
		r.Color = colorBad
		lines = append(lines, "No feasible schedule exists; the previous plan remains in effect.")
	default:
		r.Color = colorBad
		lines = append(lines, "Solver ran out of budget without a solution; the previous plan remains in effect.")
	}

	for _, d := range result.Diagnostics {
		lines = append(lines, fmt.Sprintf("Skipped %s: %s", d.Key, d.Reason))
	}
	r.Body = strings.Join(lines, "\n")
	return r
}

// Fanout sends the report to every notifier. A failing destination is logged
// and skipped so one misconfigured channel never blocks the others; the last
// error is returned.
func Fanout(ctx context.Context, notifiers []Notifier, r Report) error {
	var last error
	for _, n := range notifiers {
		if err := n.Notify(ctx, r); err != nil {
			log.Printf("notify: %s: %v", n.Name(), err)
			last = err
		}
	}
	return last
}
