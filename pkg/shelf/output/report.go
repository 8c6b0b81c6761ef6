package output

import (
	"time"

	"github.com/dustin/go-humanize"

	"github.com/jamesainslie/shelf/pkg/shelf/executor"
	"github.com/jamesainslie/shelf/pkg/shelf/oplog"
	"github.com/jamesainslie/shelf/pkg/shelf/suggest"
	"github.com/jamesainslie/shelf/pkg/shelf/types"
	"github.com/jamesainslie/shelf/pkg/shelf/undo"
)

// Suggestions builds a report of suggestions for files under source.
func Suggestions(source string, ss []suggest.Suggestion, dryRun bool) *Report {
	r := &Report{Kind: KindSuggestions, Source: source, DryRun: dryRun, Entries: make([]Entry, 0, len(ss))}
	for _, s := range ss {
		conf := s.Confidence
		e := Entry{
			Action:      string(s.Action),
			Status:      StatusSuggested,
			Destination: s.Destination,
			Rule:        s.RuleName,
			Confidence:  &conf,
			Confirm:     s.RequiresConfirmation,
		}
		if s.File != nil {
			e.Source = s.File.Path
			e.Size = s.File.Size
			e.SizeHuman = types.FormatSize(s.File.Size)
		}
		r.Entries = append(r.Entries, e)
	}
	return r
}

// Results builds a report of an executed batch.
func Results(source string, b executor.Batch) *Report {
	r := &Report{Kind: KindResults, Source: source, Entries: make([]Entry, 0, len(b.Results))}
	for _, res := range b.Results {
		e := Entry{
			Action:      string(res.Request.Type()),
			Source:      res.Request.Source(),
			Destination: requestDestination(res.Request),
			BatchID:     b.ID,
		}
		if res.OK() {
			e.Status = StatusCommitted
			e.ID = res.Record.ID
			e.Destination = res.Record.Destination
			e.Rule = res.Record.RuleName
			e.Confidence = res.Record.Confidence
			e.Time = res.Record.CreatedAt
		} else {
			e.Status = StatusFailed
			e.Reason = res.Reason()
		}
		r.Entries = append(r.Entries, e)
	}
	return r
}

// History builds a report of log records, rendering times relative to now.
func History(recs []oplog.Record, now time.Time) *Report {
	r := &Report{Kind: KindHistory, Entries: make([]Entry, 0, len(recs))}
	for i := range recs {
		r.Entries = append(r.Entries, recordEntry(&recs[i], now))
	}
	return r
}

// Undo builds a report of undo outcomes.
func Undo(outcomes []undo.Outcome, now time.Time) *Report {
	r := &Report{Kind: KindUndo, Entries: make([]Entry, 0, len(outcomes))}
	for _, o := range outcomes {
		e := Entry{ID: o.ID, Status: StatusUndone}
		if o.Record != nil {
			e = recordEntry(o.Record, now)
		}
		if !o.OK() {
			e.Status = StatusFailed
			e.Reason = o.Err.Error()
		}
		r.Entries = append(r.Entries, e)
	}
	return r
}

func recordEntry(rec *oplog.Record, now time.Time) Entry {
	e := Entry{
		ID:          rec.ID,
		Action:      string(rec.Type),
		Status:      StatusActive,
		Source:      rec.Source,
		Destination: rec.Destination,
		Rule:        rec.RuleName,
		Confidence:  rec.Confidence,
		Time:        rec.CreatedAt,
		When:        humanize.RelTime(rec.CreatedAt, now, "ago", "from now"),
		BatchID:     rec.BatchID,
	}
	if rec.Undone() {
		e.Status = StatusUndone
	}
	return e
}

func requestDestination(req executor.Request) string {
	switch r := req.(type) {
	case executor.MoveRequest:
		return r.Dst
	case executor.CopyRequest:
		return r.Dst
	case executor.ArchiveRequest:
		return r.Dst
	case executor.RenameRequest:
		return r.Target()
	default:
		return ""
	}
}
