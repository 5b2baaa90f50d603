package sentiment

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/pscheid92/hashpulse/internal/domain"
	apperrors "github.com/pscheid92/hashpulse/internal/platform/errors"
)

var arrayPattern = regexp.MustCompile(`(?s)\[.*?\]`)

// Extract recovers the sentiment array embedded in text. No count check against the analyzed posts is made.
func Extract(text string) ([]domain.SentimentRecord, error) {
	if strings.TrimSpace(text) == "" {
		return nil, apperrors.ExtractionError("model output is empty")
	}

	loc := arrayPattern.FindStringIndex(text)
	if loc == nil {
		return nil, apperrors.ExtractionError("no JSON array in model output")
	}

	records, firstErr := parseSpan(text[loc[0]:loc[1]])
	if firstErr == nil {
		return records, nil
	}

	candidates := []string{text[loc[0]:]}
	if unescaped := unescapeJSON(text[loc[0]:]); unescaped != candidates[0] {
		candidates = append(candidates, unescaped)
	}
	for _, candidate := range candidates {
		if records, ok := scanBalanced(candidate); ok {
			return records, nil
		}
	}

	return nil, firstErr
}

// scanBalanced tries the balanced span starting at every '[' in s and returns the first that parses.
func scanBalanced(s string) ([]domain.SentimentRecord, bool) {
	for start := strings.IndexByte(s, '['); start >= 0; {
		if end, ok := matchBracket(s, start); ok {
			if records, err := parseSpan(s[start : end+1]); err == nil {
				return records, true
			}
		}
		next := strings.IndexByte(s[start+1:], '[')
		if next < 0 {
			break
		}
		start += next + 1
	}
	return nil, false
}

// matchBracket returns the index of the ']' closing the '[' at start, skipping brackets inside JSON strings.
func matchBracket(s string, start int) (int, bool) {
	depth := 0
	inString := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch c {
			case '\\':
				i++
			case '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return 0, false
}

// parseSpan decodes the un-escaped span, falling back to the raw span.
func parseSpan(span string) ([]domain.SentimentRecord, error) {
	unescaped := unescapeJSON(span)
	records, err := decodeRecords(unescaped)
	if err == nil {
		return records, nil
	}
	if unescaped != span {
		if raw, rawErr := decodeRecords(span); rawErr == nil {
			return raw, nil
		}
	}
	return nil, apperrors.ParseError("malformed sentiment array", err)
}

func decodeRecords(s string) ([]domain.SentimentRecord, error) {
	var records []domain.SentimentRecord
	if err := json.Unmarshal([]byte(s), &records); err != nil {
		return nil, err
	}
	for i, r := range records {
		if r.Sentiment == "" {
			return nil, fmt.Errorf("record %d: %w: missing", i, domain.ErrInvalidSentiment)
		}
	}
	if records == nil {
		records = []domain.SentimentRecord{}
	}
	return records, nil
}
