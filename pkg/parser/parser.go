// Package parser extracts structured transactions from normalized messages
// using a fixed, deterministic pattern set.
package parser

import (
	"regexp"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/sidhantk/txnrelay/pkg/api"
)

var (
	// Currency marker (rupee sign, "Rs", "Rs.", "INR"; case-sensitive),
	// optional whitespace, then digits with optional grouping commas and at
	// most one decimal separator.
	amountPattern = regexp.MustCompile(`(?:₹|Rs\.?|INR)\s?(\d+(?:,\d+)*(?:\.\d+)?)`)
	// "at" or "from", whitespace, then a run of letters, digits, space or
	// ampersand captured up to the first character outside that class.
	merchantPattern = regexp.MustCompile(`(?:at|from)\s+([A-Za-z0-9 &]+)`)
)

// idSeq disambiguates transactions parsed within the same millisecond.
var idSeq atomic.Int64

// NextID returns an identifier unique for the lifetime of this process:
// the current millisecond timestamp combined with a monotonic counter in
// the low 16 bits.
func NextID() int64 {
	seq := idSeq.Add(1)
	return time.Now().UnixMilli()<<16 | (seq & 0xFFFF)
}

// Parse extracts a transaction from a normalized message. The second result
// is false when the text contains no recognized amount marker; that is a
// normal outcome, not an error, and nothing is created.
//
// A matched amount token that fails numeric parsing degrades to 0.0 rather
// than failing the whole parse. Merchant extraction failure never blocks
// creation; the merchant falls back to the message origin.
func Parse(msg api.NormalizedMessage) (*api.Transaction, bool) {
	amountMatch := amountPattern.FindStringSubmatch(msg.Text)
	if amountMatch == nil {
		return nil, false
	}

	amount, err := strconv.ParseFloat(strings.ReplaceAll(amountMatch[1], ",", ""), 64)
	if err != nil {
		amount = 0.0
	}

	merchant := msg.Origin
	if m := merchantPattern.FindStringSubmatch(msg.Text); m != nil {
		merchant = strings.TrimSpace(m[1])
	}

	return &api.Transaction{
		ID:        NextID(),
		Amount:    amount,
		Merchant:  merchant,
		Timestamp: msg.ReceivedAt,
		Tag:       nil,
	}, true
}
