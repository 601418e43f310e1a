package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// PageMetadata describes one page of the upstream event feed.
type PageMetadata struct {
	Total    int64   `json:"total"`
	NextPage *string `json:"next_page"`
	PageSize int     `json:"page_size"`
}

// Page is the wire shape returned by GET /api/events.
type Page struct {
	Metadata PageMetadata `json:"metadata"`
	Events   []RawEvent   `json:"events"`
}

// RawEvent is a single upstream event before decoding. Data carries the
// type-specific field bag; its keys depend on Type.
type RawEvent struct {
	Index       int64             `json:"index"`
	ID          string            `json:"id"`
	Hash        string            `json:"hash"`
	Type        string            `json:"type"`
	Data        map[string]string `json:"data"`
	Timestamp   EventTime         `json:"timestamp"`
	BlockNumber string            `json:"block_number"`
	GasUsed     string            `json:"gas_used"`
}

// EventTime accepts both RFC3339 strings and epoch-millisecond numbers,
// since the feed has emitted both representations.
type EventTime struct {
	time.Time
}

func (t *EventTime) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		t.Time = time.Time{}
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		parsed, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return fmt.Errorf("parse event timestamp %q: %w", s, err)
		}
		t.Time = parsed
		return nil
	}

	millis, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return fmt.Errorf("parse event timestamp %s: %w", data, err)
	}
	t.Time = time.UnixMilli(millis).UTC()
	return nil
}

func (t EventTime) MarshalJSON() ([]byte, error) {
	if t.Time.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Time.Format(time.RFC3339))
}
