package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

type Success struct {
	Summary string
}

type Failure struct {
	Reason ErrorKind
	Detail string
}

// DocumentOutcome is the final state of one document. Exactly one of Success
// and Failure is set.
type DocumentOutcome struct {
	Ref     DocumentRef
	Success *Success
	Failure *Failure
}

func Succeeded(ref DocumentRef, summary string) DocumentOutcome {
	return DocumentOutcome{Ref: ref, Success: &Success{Summary: summary}}
}

func Failed(ref DocumentRef, reason ErrorKind, detail string) DocumentOutcome {
	return DocumentOutcome{Ref: ref, Failure: &Failure{Reason: reason, Detail: detail}}
}

func (o DocumentOutcome) OK() bool {
	return o.Success != nil
}

type Counts struct {
	Attempted int `json:"attempted"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// AggregateResult is the outcome of one batch. Outcomes follow input order and
// CombinedSummary is empty unless at least one document succeeded.
type AggregateResult struct {
	BatchID         string
	Outcomes        []DocumentOutcome
	CombinedSummary string
	Counts          Counts
	StartedAt       time.Time
	CompletedAt     time.Time
}

// BatchFailed reports whether no document in the batch succeeded.
func (r *AggregateResult) BatchFailed() bool {
	return r.Counts.Succeeded == 0
}

func (r *AggregateResult) Outcome(ref DocumentRef) (DocumentOutcome, bool) {
	for _, o := range r.Outcomes {
		if o.Ref == ref {
			return o, true
		}
	}

	return DocumentOutcome{}, false
}

// CountOutcomes recomputes Counts from Outcomes.
func (r *AggregateResult) CountOutcomes() {
	r.Counts = Counts{Attempted: len(r.Outcomes)}
	for _, o := range r.Outcomes {
		if o.OK() {
			r.Counts.Succeeded++
		} else {
			r.Counts.Failed++
		}
	}
}

type aggregateJSON struct {
	BatchID         string          `json:"batch_id"`
	Documents       orderedOutcomes `json:"documents"`
	CombinedSummary string          `json:"combined_summary,omitempty"`
	Counts          Counts          `json:"counts"`
	StartedAt       time.Time       `json:"started_at"`
	CompletedAt     time.Time       `json:"completed_at"`
}

type outcomeJSON struct {
	Summary string    `json:"summary,omitempty"`
	Error   ErrorKind `json:"error,omitempty"`
	Detail  string    `json:"detail,omitempty"`
}

// orderedOutcomes is encoded as a JSON object keyed by document URL whose keys
// keep input order.
type orderedOutcomes []DocumentOutcome

func (r AggregateResult) MarshalJSON() ([]byte, error) {
	return json.Marshal(aggregateJSON{
		BatchID:         r.BatchID,
		Documents:       orderedOutcomes(r.Outcomes),
		CombinedSummary: r.CombinedSummary,
		Counts:          r.Counts,
		StartedAt:       r.StartedAt,
		CompletedAt:     r.CompletedAt,
	})
}

func (r *AggregateResult) UnmarshalJSON(b []byte) error {
	var v aggregateJSON
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}

	*r = AggregateResult{
		BatchID:         v.BatchID,
		Outcomes:        []DocumentOutcome(v.Documents),
		CombinedSummary: v.CombinedSummary,
		Counts:          v.Counts,
		StartedAt:       v.StartedAt,
		CompletedAt:     v.CompletedAt,
	}

	return nil
}

func (o orderedOutcomes) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')

	for i, outcome := range o {
		if i > 0 {
			buf.WriteByte(',')
		}

		key, err := json.Marshal(string(outcome.Ref))
		if err != nil {
			return nil, fmt.Errorf("marshal key: %w", err)
		}

		var value outcomeJSON
		switch {
		case outcome.Success != nil:
			value.Summary = outcome.Success.Summary
		case outcome.Failure != nil:
			value.Error = outcome.Failure.Reason
			value.Detail = outcome.Failure.Detail
		}

		encoded, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("marshal outcome (ref = %s): %w", outcome.Ref, err)
		}

		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(encoded)
	}

	buf.WriteByte('}')

	return buf.Bytes(), nil
}

func (o *orderedOutcomes) UnmarshalJSON(b []byte) error {
	dec := json.NewDecoder(bytes.NewReader(b))

	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("read token: %w", err)
	}
	if tok == nil {
		*o = nil
		return nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("expected object, got %v", tok)
	}

	var out orderedOutcomes
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("read key: %w", err)
		}

		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("expected string key, got %v", keyTok)
		}

		var value outcomeJSON
		if err = dec.Decode(&value); err != nil {
			return fmt.Errorf("decode outcome (ref = %s): %w", key, err)
		}

		ref := DocumentRef(key)
		if value.Error != "" {
			out = append(out, Failed(ref, value.Error, value.Detail))
		} else {
			out = append(out, Succeeded(ref, value.Summary))
		}
	}

	if _, err = dec.Token(); err != nil {
		return fmt.Errorf("read closing token: %w", err)
	}

	*o = out

	return nil
}
