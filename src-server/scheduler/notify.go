package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"smallsched/src-server/model"
	"smallsched/src-server/recurrence"

	"github.com/bwmarrin/discordgo"
)

// discord refuses messages with more embeds than this
const maxEmbedsPerMessage = 10

// Notifier delivers the reminder for the events occurring on day.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, day time.Time, events []model.Event) error
}

// Reminder is one event with its position in its series on a given day.
type Reminder struct {
	Event model.Event
	Index int // 0-based
}

func (r Reminder) String() string {
	return fmt.Sprintf("%s (%d of %d)", r.Event.Name, r.Index+1, r.Event.Occurrences)
}

func reminders(day time.Time, events []model.Event) []Reminder {
	out := make([]Reminder, 0, len(events))
	for _, e := range events {
		out = append(out, Reminder{
			Event: e,
			Index: recurrence.IndexOf(recurrence.Occurrences(e), day),
		})
	}
	return out
}

type LogNotifier struct{}

func (LogNotifier) Name() string { return "log" }

func (LogNotifier) Notify(_ context.Context, day time.Time, events []model.Event) error {
	for _, r := range reminders(day, events) {
		slog.Info("reminder", "date", day.Format(time.DateOnly), "event", r.String(), "id", r.Event.ID)
	}
	return nil
}

type embedSender interface {
	ChannelMessageSendEmbeds(channelID string, embeds []*discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// DiscordNotifier posts the reminders as embeds in one channel.
type DiscordNotifier struct {
	session   embedSender
	channelID string
}

func NewDiscordNotifier(token string, channelID string) (*DiscordNotifier, error) {
	dgSession, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("NewDiscordNotifier: %w", err)
	}
	return &DiscordNotifier{session: dgSession, channelID: channelID}, nil
}

func (n *DiscordNotifier) Name() string { return "discord" }

func (n *DiscordNotifier) Notify(ctx context.Context, day time.Time, events []model.Event) error {
	embeds := make([]*discordgo.MessageEmbed, 0, len(events))
	for _, r := range reminders(day, events) {
		embeds = append(embeds, ToDiscordEmbed(r, day))
	}
	for start := 0; start < len(embeds); start += maxEmbedsPerMessage {
		end := min(start+maxEmbedsPerMessage, len(embeds))
		if _, err := n.session.ChannelMessageSendEmbeds(
			n.channelID,
			embeds[start:end],
			discordgo.WithContext(ctx),
		); err != nil {
			return fmt.Errorf("(*DiscordNotifier).Notify: %w", err)
		}
	}
	return nil
}

func ToDiscordEmbed(r Reminder, day time.Time) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title: r.Event.Name,
		Fields: []*discordgo.MessageEmbedField{
			{
				Name:   "Date",
				Value:  day.Format("Mon, 02 Jan 2006"),
				Inline: true,
			},
			{
				Name:   "Repeats",
				Value:  string(r.Event.Frequency),
				Inline: true,
			},
			{
				Name:   "Occurrence",
				Value:  fmt.Sprintf("%d of %d", r.Index+1, r.Event.Occurrences),
				Inline: true,
			},
		},
		Footer: &discordgo.MessageEmbedFooter{
			Text: fmt.Sprintf("#%d", r.Event.ID),
		},
	}
}
