package models

import (
	"strconv"
	"strings"
	"time"
)

// Offer statuses. A status is assigned once at creation and never
// transitions automatically.
const (
	StatusNew    = "new"
	StatusActive = "active"
	StatusPaused = "paused"
	StatusClosed = "closed"
)

// Offer kinds.
const (
	KindChannel  = "channel"
	KindMerchant = "merchant"
)

// Offer is a persisted record describing a payment channel's or
// merchant's terms. Every field except ID, RawText and Status comes from
// a best-effort extraction and may be absent.
type Offer struct {
	ID         int64     `json:"id"`
	RawText    string    `json:"raw_text"`
	Country    *string   `json:"country,omitempty"`
	Method     *string   `json:"method,omitempty"`
	Fee        *string   `json:"fee,omitempty"`
	Rate       *string   `json:"rate,omitempty"`
	Limits     *string   `json:"limits,omitempty"`
	Conditions *string   `json:"conditions,omitempty"`
	Kind       *string   `json:"kind,omitempty"`
	FeePercent *float64  `json:"fee_percent,omitempty"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// OfferPayload carries the extracted offer fields of a submission.
// FeePercent is kept loosely typed because the extraction step may
// return a number, a numeric string or garbage; it is coerced at write
// time. ShortSummary is only used in the confirmation reply and is
// never persisted.
type OfferPayload struct {
	Country      *string `json:"country,omitempty"`
	Method       *string `json:"method,omitempty"`
	Fee          *string `json:"fee,omitempty"`
	Rate         *string `json:"rate,omitempty"`
	Limits       *string `json:"limits,omitempty"`
	Conditions   *string `json:"conditions,omitempty"`
	Kind         *string `json:"kind,omitempty"`
	FeePercent   any     `json:"fee_percent,omitempty"`
	ShortSummary string  `json:"short_summary,omitempty"`
}

// SearchFilter is a set of optional, AND-combined criteria. Country and
// Method match by case-insensitive substring, Status and Kind exactly,
// the fee bounds inclusively. An empty filter matches every record.
type SearchFilter struct {
	Country       string `json:"country,omitempty"`
	Method        string `json:"method,omitempty"`
	Status        string `json:"status,omitempty"`
	Kind          string `json:"kind,omitempty"`
	MinFeePercent any    `json:"min_fee_percent,omitempty"`
	MaxFeePercent any    `json:"max_fee_percent,omitempty"`
}

// Interpretation modes.
const (
	ModeOffer        = "offer"
	ModeSearch       = "search"
	ModeUnrecognized = "unrecognized"
)

// InterpretResult is the validated outcome of classifying one inbound
// message: exactly one of the payloads is set, matching Mode.
type InterpretResult struct {
	Mode   string
	Offer  *OfferPayload
	Search *SearchFilter
}

// CoerceFloat normalizes a loosely typed numeric value. JSON decoding
// yields float64 for numbers, but the extraction step occasionally
// returns percentages as strings ("1.8", "1,8%"). Anything that cannot
// be read as a number yields nil.
func CoerceFloat(v any) *float64 {
	switch n := v.(type) {
	case nil:
		return nil
	case float64:
		return &n
	case int:
		f := float64(n)
		return &f
	case string:
		s := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(n), "%"))
		s = strings.ReplaceAll(s, ",", ".")
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil
		}
		return &f
	default:
		return nil
	}
}
