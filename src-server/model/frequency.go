package model

import (
	"errors"
	"fmt"
	"strings"
)

var ErrUnknownFrequency = errors.New("unknown frequency")

type Frequency string

const (
	FrequencyDaily    Frequency = "daily"
	FrequencyWeekly   Frequency = "weekly"
	FrequencyBiWeekly Frequency = "biweekly"
	FrequencyMonthly  Frequency = "monthly"
)

func (f Frequency) IsValid() bool {
	switch f {
	case FrequencyDaily, FrequencyWeekly, FrequencyBiWeekly, FrequencyMonthly:
		return true
	}
	return false
}

// ParseFrequency accepts the spellings used by the event feed and the CLI.
func ParseFrequency(s string) (Frequency, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "daily":
		return FrequencyDaily, nil
	case "weekly":
		return FrequencyWeekly, nil
	case "bi-weekly", "biweekly":
		return FrequencyBiWeekly, nil
	case "monthly":
		return FrequencyMonthly, nil
	}
	return "", fmt.Errorf("ParseFrequency: %w: %q", ErrUnknownFrequency, s)
}
