// Package activity keeps the append-only log of mutating commands.
package activity

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// LogPath is the activity log location relative to the workspace root.
var LogPath = filepath.Join("logs", "activity.csv")

// Header is the first row of activity.csv.
var Header = []string{"timestamp", "command", "action", "details", "batch_id", "commit_hash"}

const (
	numFields     = 6
	colTimestamp  = 0
	colCommand    = 1
	colAction     = 2
	colDetails    = 3
	colBatchID    = 4
	colCommitHash = 5
)

// Event is one row of the activity log.
type Event struct {
	Timestamp  time.Time
	Command    string
	Action     string
	Details    string
	BatchID    string
	CommitHash string
}

// MarshalEvent converts an Event to a CSV row.
func MarshalEvent(e Event) []string {
	row := make([]string, numFields)
	row[colTimestamp] = e.Timestamp.UTC().Format(time.RFC3339)
	row[colCommand] = e.Command
	row[colAction] = e.Action
	row[colDetails] = e.Details
	row[colBatchID] = e.BatchID
	row[colCommitHash] = e.CommitHash
	return row
}

// UnmarshalEvent converts a CSV row to an Event.
func UnmarshalEvent(row []string) (Event, error) {
	if len(row) != numFields {
		return Event{}, fmt.Errorf("expected %d fields, got %d", numFields, len(row))
	}
	ts, err := time.Parse(time.RFC3339, row[colTimestamp])
	if err != nil {
		return Event{}, fmt.Errorf("parsing timestamp %q: %w", row[colTimestamp], err)
	}
	return Event{
		Timestamp:  ts,
		Command:    row[colCommand],
		Action:     row[colAction],
		Details:    row[colDetails],
		BatchID:    row[colBatchID],
		CommitHash: row[colCommitHash],
	}, nil
}

// Log appends events for one workspace.
type Log struct {
	root string
	now  func() time.Time
}

// New returns the activity log of the workspace at root.
func New(root string) *Log {
	return &Log{root: root, now: time.Now}
}

// Record appends one event stamped with the current time.
func (l *Log) Record(command, action, details, batchID, commitHash string) error {
	return l.Append(Event{
		Timestamp:  l.now(),
		Command:    command,
		Action:     action,
		Details:    details,
		BatchID:    batchID,
		CommitHash: commitHash,
	})
}

// Append writes events, creating the file and header if needed.
func (l *Log) Append(events ...Event) error {
	path := filepath.Join(l.root, LogPath)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating logs dir: %w", err)
	}
	_, statErr := os.Stat(path)
	needsHeader := errors.Is(statErr, fs.ErrNotExist)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening activity log: %w", err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	if needsHeader {
		if err := cw.Write(Header); err != nil {
			return fmt.Errorf("writing header: %w", err)
		}
	}
	for i, e := range events {
		if err := cw.Write(MarshalEvent(e)); err != nil {
			return fmt.Errorf("writing event %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// Events returns every logged event in file order. A missing log is empty.
func (l *Log) Events() ([]Event, error) {
	f, err := os.Open(filepath.Join(l.root, LogPath))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening activity log: %w", err)
	}
	defer f.Close()
	return readEvents(f)
}

func readEvents(r io.Reader) ([]Event, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading activity log: %w", err)
	}
	if len(rows) <= 1 {
		return nil, nil
	}
	events := make([]Event, 0, len(rows)-1)
	for i, row := range rows[1:] {
		e, err := UnmarshalEvent(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		events = append(events, e)
	}
	return events, nil
}
