package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

type Sentiment string

const (
	SentimentPositive Sentiment = "POSITIVE"
	SentimentNegative Sentiment = "NEGATIVE"
	SentimentNeutral  Sentiment = "NEUTRAL"
)

var ErrInvalidSentiment = errors.New("invalid sentiment")

// ParseSentiment matches case-insensitively and normalizes to upper case.
func ParseSentiment(s string) (Sentiment, error) {
	switch v := Sentiment(strings.ToUpper(strings.TrimSpace(s))); v {
	case SentimentPositive, SentimentNegative, SentimentNeutral:
		return v, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidSentiment, s)
	}
}

func (s *Sentiment) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidSentiment, string(data))
	}
	parsed, err := ParseSentiment(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// SentimentRecord is one LLM verdict, positionally aligned with the analyzed posts on a best-effort basis.
type SentimentRecord struct {
	Sentiment         Sentiment `json:"sentiment"`
	Score             float64   `json:"score"`
	PositiveWordCount int       `json:"positive_word_count"`
	NegativeWordCount int       `json:"negative_word_count"`
}
