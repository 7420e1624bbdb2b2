package host

import (
	"fmt"
	"strings"
	"time"

	"github.com/customeros/mailchannel/config"
	"github.com/customeros/mailchannel/dto"
)

const envelopeTimeLayout = "Mon 2006-01-02 15:04 MST"

func ResolveEnvelopeFormatOptions(cfg *config.HostConfig) dto.EnvelopeOptions {
	options := dto.EnvelopeOptions{
		Timezone:         "local",
		IncludeTimestamp: true,
		IncludeElapsed:   true,
	}
	if cfg == nil {
		return options
	}
	if tz := strings.TrimSpace(cfg.Envelope.Timezone); tz != "" {
		options.Timezone = tz
	}
	if cfg.Envelope.IncludeTimestamp != nil {
		options.IncludeTimestamp = *cfg.Envelope.IncludeTimestamp
	}
	if cfg.Envelope.IncludeElapsed != nil {
		options.IncludeElapsed = *cfg.Envelope.IncludeElapsed
	}
	return options
}

// FormatAgentEnvelope renders "[<channel> <from> +<elapsed> <timestamp>] <body>"
func FormatAgentEnvelope(envelope dto.AgentEnvelope) string {
	parts := []string{strings.TrimSpace(envelope.Channel)}
	if from := strings.TrimSpace(envelope.From); from != "" {
		parts = append(parts, from)
	}

	timestamp := envelope.Timestamp
	if envelope.Envelope.IncludeElapsed && envelope.PreviousTimestamp != nil && !timestamp.IsZero() {
		if elapsed := timestamp.Sub(*envelope.PreviousTimestamp); elapsed >= 0 {
			parts = append(parts, "+"+formatElapsed(elapsed))
		}
	}
	if envelope.Envelope.IncludeTimestamp && !timestamp.IsZero() {
		parts = append(parts, timestamp.In(resolveLocation(envelope.Envelope.Timezone)).Format(envelopeTimeLayout))
	}

	return fmt.Sprintf("[%s] %s", strings.Join(parts, " "), envelope.Body)
}

func formatElapsed(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	}
}

func resolveLocation(timezone string) *time.Location {
	switch strings.ToLower(strings.TrimSpace(timezone)) {
	case "", "local":
		return time.Local
	case "utc":
		return time.UTC
	}
	location, err := time.LoadLocation(timezone)
	if err != nil {
		return time.UTC
	}
	return location
}
