// Package recorder keeps the append-only record log of a Watt page and
// exports it as CSV.
package recorder

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/dm/pmon/internal/model"
)

// Sink mirrors records to durable storage.
type Sink interface {
	Insert(ctx context.Context, page string, rec model.Record) error
	Clear(ctx context.Context, page string) error
}

// Log is the record log of one page. Record ids start at 0 and increase by
// one per appended record until Reset. Safe for concurrent use.
type Log struct {
	page string
	sink Sink
	now  func() time.Time

	mu     sync.Mutex
	rows   []model.Record
	nextID int64
	since  time.Time
}

// NewLog creates an empty log for page. sink may be nil.
func NewLog(page string, sink Sink) *Log {
	return &Log{page: page, sink: sink, now: time.Now}
}

// Append records r with the current time. The first record of a run sets
// Since. A sink failure is returned after the record has been kept in memory.
func (l *Log) Append(ctx context.Context, r model.ClusterReading) (model.Record, error) {
	at := l.now()

	l.mu.Lock()
	if l.since.IsZero() {
		l.since = at
	}
	rec := model.RecordFromReading(l.nextID, r, at)
	l.rows = append(l.rows, rec)
	l.nextID++
	l.mu.Unlock()

	if l.sink != nil {
		if err := l.sink.Insert(ctx, l.page, rec); err != nil {
			return rec, fmt.Errorf("mirror record %d: %w", rec.ID, err)
		}
	}
	return rec, nil
}

// Reset drops all records, the id counter and Since.
func (l *Log) Reset(ctx context.Context) error {
	l.mu.Lock()
	l.rows = nil
	l.nextID = 0
	l.since = time.Time{}
	l.mu.Unlock()

	if l.sink != nil {
		if err := l.sink.Clear(ctx, l.page); err != nil {
			return fmt.Errorf("clear mirrored records: %w", err)
		}
	}
	return nil
}

// Count returns the number of records, which is also the next record id.
func (l *Log) Count() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.nextID
}

// Since returns the time of the first record of the run, zero when empty.
func (l *Log) Since() time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.since
}

// Records returns a copy of the records in id order.
func (l *Log) Records() []model.Record {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.rows)
}

// Filename returns the export file name, embedding the start of the run.
func (l *Log) Filename() string {
	return Filename(l.Since())
}

// Filename formats records_since_YYYYMMDD_HHMMSS.csv. A zero since yields
// records_since_none.csv.
func Filename(since time.Time) string {
	if since.IsZero() {
		return "records_since_none.csv"
	}
	return "records_since_" + since.Format("20060102_150405") + ".csv"
}

// WriteCSV writes the log as CSV: an id column, one power:<host> column per
// host, power:total, then the decomposed timestamp. Hosts that were not
// included in a reading leave their cell empty.
func (l *Log) WriteCSV(w io.Writer) error {
	rows := l.Records()

	var hosts []string
	for _, r := range rows {
		for _, h := range r.Hosts {
			if !slices.Contains(hosts, h) {
				hosts = append(hosts, h)
			}
		}
	}

	cw := csv.NewWriter(w)
	header := []string{"id"}
	for _, h := range hosts {
		header = append(header, "power:"+h)
	}
	header = append(header, "power:total",
		"time:year", "time:month", "time:day", "time:hour", "time:minute", "time:second")
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for _, r := range rows {
		row := make([]string, 0, len(header))
		row = append(row, strconv.FormatInt(r.ID, 10))
		for _, h := range hosts {
			row = append(row, cell(r, h))
		}
		sec := float64(r.At.Second()) + float64(r.At.Nanosecond())/1e9
		row = append(row,
			formatFloat(r.TotalWatts),
			strconv.Itoa(r.At.Year()),
			strconv.Itoa(int(r.At.Month())),
			strconv.Itoa(r.At.Day()),
			strconv.Itoa(r.At.Hour()),
			strconv.Itoa(r.At.Minute()),
			formatFloat(sec),
		)
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write record %d: %w", r.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func cell(r model.Record, host string) string {
	i := slices.Index(r.Hosts, host)
	if i < 0 || r.Values[i] == nil {
		return ""
	}
	return formatFloat(*r.Values[i])
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Restore replaces the log with previously mirrored records.
func (l *Log) Restore(records []model.Record) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rows = slices.Clone(records)
	l.nextID = 0
	l.since = time.Time{}
	if len(records) > 0 {
		l.nextID = records[len(records)-1].ID + 1
		l.since = records[0].At
	}
}
