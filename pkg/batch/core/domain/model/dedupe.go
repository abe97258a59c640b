package model

import (
	"fmt"
	"strings"
)

// MatchType tells where a duplicate was found.
type MatchType string

const (
	MatchRemoteExisting MatchType = "remote_existing"
	MatchInBatch        MatchType = "in_batch"
)

// DuplicateMatch is the duplicate verdict for one source record. At most one
// match is produced per record.
type DuplicateMatch struct {
	SourceRowIndex   int                    `json:"source_row_index"`
	MatchType        MatchType              `json:"match_type"`
	RemoteID         *int64                 `json:"remote_id,omitempty"`
	InBatchRowIndex  *int                   `json:"in_batch_row_index,omitempty"`
	MatchedKeyValues map[string]interface{} `json:"matched_key_values"`
	Confidence       float64                `json:"confidence"`
}

// DedupeStrategy decides what happens to a duplicate.
type DedupeStrategy string

const (
	// DedupeSkip routes every duplicate to the duplicate list.
	DedupeSkip DedupeStrategy = "skip"
	// DedupeUpdate turns remote matches into updates of the existing record.
	DedupeUpdate DedupeStrategy = "update"
	// DedupeCreate imports duplicates as new records.
	DedupeCreate DedupeStrategy = "create"
)

// ParseDedupeStrategy parses a configured strategy name.
func ParseDedupeStrategy(s string) (DedupeStrategy, error) {
	switch DedupeStrategy(strings.ToLower(strings.TrimSpace(s))) {
	case DedupeSkip, "":
		return DedupeSkip, nil
	case DedupeUpdate:
		return DedupeUpdate, nil
	case DedupeCreate:
		return DedupeCreate, nil
	default:
		return "", fmt.Errorf("unknown dedupe strategy %q", s)
	}
}

// DedupeResult partitions the input records of one FindDuplicates call.
type DedupeResult struct {
	UniqueRecords    []Record         `json:"unique_records"`
	DuplicateRecords []Record         `json:"duplicate_records"`
	UpdateRecords    []Record         `json:"update_records"`
	Matches          []DuplicateMatch `json:"matches"`
}

// Writable returns the records to hand to the batch writer: unique records
// followed by update records.
func (r *DedupeResult) Writable() []Record {
	out := make([]Record, 0, len(r.UniqueRecords)+len(r.UpdateRecords))
	out = append(out, r.UniqueRecords...)
	out = append(out, r.UpdateRecords...)
	return out
}

// RemoteMatches counts matches against existing remote records.
func (r *DedupeResult) RemoteMatches() int {
	n := 0
	for _, m := range r.Matches {
		if m.MatchType == MatchRemoteExisting {
			n++
		}
	}
	return n
}

// InBatchMatches counts matches inside the input batch.
func (r *DedupeResult) InBatchMatches() int {
	return len(r.Matches) - r.RemoteMatches()
}
