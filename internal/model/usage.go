package model

import (
	"fmt"
	"strings"
	"time"
)

type ActionKind string

const (
	ActionAsk            ActionKind = "ask"
	ActionDocumentUpload ActionKind = "document_upload"
	ActionDocumentSearch ActionKind = "document_search"
	ActionTTS            ActionKind = "tts"
	ActionSTT            ActionKind = "stt"
	ActionAddVehicle     ActionKind = "add_vehicle"
)

var AllActionKinds = []ActionKind{
	ActionAsk,
	ActionDocumentUpload,
	ActionDocumentSearch,
	ActionTTS,
	ActionSTT,
	ActionAddVehicle,
}

func ParseActionKind(s string) (ActionKind, error) {
	kind := ActionKind(strings.ToLower(strings.TrimSpace(s)))
	switch kind {
	case "ask_query":
		return ActionAsk, nil
	case "tts_request":
		return ActionTTS, nil
	case "stt_request":
		return ActionSTT, nil
	}
	for _, k := range AllActionKinds {
		if k == kind {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown action kind: %q", s)
}

const (
	DateLayout      = "2006-01-02"
	YearMonthLayout = "2006-01"
)

type UsageEvent struct {
	ID        string                 `json:"id"`
	UserID    string                 `json:"user_id"`
	Kind      ActionKind             `json:"action_kind"`
	Timestamp int64                  `json:"timestamp"`
	Date      string                 `json:"date"`
	YearMonth string                 `json:"year_month"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

type DailyUsage struct {
	UserID string               `json:"user_id"`
	Date   string               `json:"date"`
	Counts map[ActionKind]int64 `json:"counts"`
}

type MonthlyUsage struct {
	UserID    string               `json:"user_id"`
	YearMonth string               `json:"year_month"`
	Counts    map[ActionKind]int64 `json:"counts"`
}

// UsageCalendar maps instants to the day and month buckets used by the ledger.
type UsageCalendar struct {
	loc *time.Location
}

func NewUsageCalendar(loc *time.Location) UsageCalendar {
	if loc == nil {
		loc = time.UTC
	}
	return UsageCalendar{loc: loc}
}

func (c UsageCalendar) Location() *time.Location {
	if c.loc == nil {
		return time.UTC
	}
	return c.loc
}

func (c UsageCalendar) Date(t time.Time) string {
	return t.In(c.Location()).Format(DateLayout)
}

func (c UsageCalendar) YearMonth(t time.Time) string {
	return t.In(c.Location()).Format(YearMonthLayout)
}

// MonthRange returns the first and last date of a year_month.
func (c UsageCalendar) MonthRange(yearMonth string) (string, string, error) {
	start, err := time.ParseInLocation(YearMonthLayout, yearMonth, c.Location())
	if err != nil {
		return "", "", fmt.Errorf("parse year_month %q: %w", yearMonth, err)
	}
	end := start.AddDate(0, 1, -1)
	return start.Format(DateLayout), end.Format(DateLayout), nil
}

// YearMonthOfDate returns the month bucket that a date string belongs to.
func YearMonthOfDate(date string) string {
	if len(date) < len(YearMonthLayout) {
		return date
	}
	return date[:len(YearMonthLayout)]
}
