package notify

import (
	"context"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/bwmarrin/discordgo"
)

const (
	// discordBaseBackoff is the initial backoff for rate-limited calls.
	discordBaseBackoff = 2 * time.Second
	// discordMaxBackoff caps the exponential backoff.
	discordMaxBackoff = 2 * time.Minute
)

// session abstracts the discordgo.Session methods we use, enabling test mocks.
type session interface {
	ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// DiscordNotifier posts pass reports to a Discord channel as embeds. It uses
// the REST API only; no Gateway connection is opened.
type DiscordNotifier struct {
	sess    session
	channel string
}

// DiscordOpts holds parameters for creating a DiscordNotifier.
type DiscordOpts struct {
	BotToken string // Discord bot token
	Channel  string // channel ID to post to
	// For testing: inject a mock session instead of the real Discord API.
	Session session
}

// NewDiscord creates a Discord notifier.
func NewDiscord(opts DiscordOpts) (*DiscordNotifier, error) {
	if opts.Session == nil && opts.BotToken == "" {
		return nil, fmt.Errorf("notify: discord bot token is required")
	}
	if opts.Channel == "" {
		return nil, fmt.Errorf("notify: discord channel is required")
	}

	n := &DiscordNotifier{sess: opts.Session, channel: opts.Channel}
	if n.sess == nil {
		dg, err := discordgo.New("Bot " + opts.BotToken)
		if err != nil {
			return nil, fmt.Errorf("notify: discord create session: %w", err)
		}
		n.sess = dg
	}
	return n, nil
}

func (n *DiscordNotifier) Name() string { return "discord" }

// Notify posts the report as a single embed.
func (n *DiscordNotifier) Notify(ctx context.Context, r Report) error {
	embed := &discordgo.MessageEmbed{
		Title:       r.Title,
		Description: r.Body,
		Color:       parseHexColor(r.Color),
	}

	err := discordRetryOnRateLimit(ctx, func() error {
		_, sendErr := n.sess.ChannelMessageSendEmbed(n.channel, embed)
		return sendErr
	})
	if err != nil {
		return fmt.Errorf("notify: discord send embed: %w", err)
	}
	return nil
}

// parseHexColor converts a hex color string (e.g. "#36a64f") to an int.
func parseHexColor(hex string) int {
	if len(hex) > 0 && hex[0] == '#' {
		hex = hex[1:]
	}
	var color int
	for _, c := range hex {
		color <<= 4
		switch {
		case c >= '0' && c <= '9':
			color |= int(c - '0')
		case c >= 'a' && c <= 'f':
			color |= int(c-'a') + 10
		case c >= 'A' && c <= 'F':
			color |= int(c-'A') + 10
		}
	}
	return color
}

// discordRetryOnRateLimit calls fn and retries with exponential backoff on
// Discord rate limit errors. It respects context cancellation.
func discordRetryOnRateLimit(ctx context.Context, fn func() error) error {
	for attempt := 0; attempt <= maxRetries; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}

		restErr, ok := err.(*discordgo.RESTError)
		if !ok || restErr.Response == nil || restErr.Response.StatusCode != 429 {
			return err // not a rate limit error
		}

		if attempt == maxRetries {
			return err
		}

		wait := time.Duration(math.Pow(2, float64(attempt))) * discordBaseBackoff
		if wait > discordMaxBackoff {
			wait = discordMaxBackoff
		}

		log.Printf("notify: discord rate limited (attempt %d/%d), retrying in %v",
			attempt+1, maxRetries, wait)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
	return nil // unreachable
}
