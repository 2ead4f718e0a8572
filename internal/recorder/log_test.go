package recorder

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dm/pmon/internal/model"
)

var base = time.Date(2026, 5, 17, 9, 30, 0, 0, time.UTC)

func reading() model.ClusterReading {
	return model.ClusterReading{
		Hosts: []model.HostReading{
			{Host: "node1", Active: true, Included: true, Watts: 120.5},
			{Host: "node2", Active: true, Err: "connection error: timeout"},
			{Host: "node3"},
		},
		TotalWatts:  120.5,
		ActiveHosts: 1,
	}
}

func newTestLog(sink Sink) *Log {
	l := NewLog("wattmon_rack", sink)
	next := base
	l.now = func() time.Time {
		t := next
		next = next.Add(1500 * time.Millisecond)
		return t
	}
	return l
}

type memSink struct {
	inserted []model.Record
	cleared  int
	err      error
}

func (s *memSink) Insert(_ context.Context, _ string, rec model.Record) error {
	if s.err != nil {
		return s.err
	}
	s.inserted = append(s.inserted, rec)
	return nil
}

func (s *memSink) Clear(context.Context, string) error {
	s.cleared++
	return s.err
}

func TestLog_AppendAssignsIDsAndSince(t *testing.T) {
	l := newTestLog(nil)
	ctx := context.Background()

	assert.True(t, l.Since().IsZero())
	assert.Equal(t, "records_since_none.csv", l.Filename())

	r0, err := l.Append(ctx, reading())
	require.NoError(t, err)
	r1, err := l.Append(ctx, reading())
	require.NoError(t, err)

	assert.Equal(t, int64(0), r0.ID)
	assert.Equal(t, int64(1), r1.ID)
	assert.Equal(t, int64(2), l.Count())
	assert.Equal(t, base, l.Since())
	assert.Equal(t, "records_since_20260517_093000.csv", l.Filename())
	assert.Len(t, l.Records(), 2)
}

func TestLog_Reset(t *testing.T) {
	sink := &memSink{}
	l := newTestLog(sink)
	ctx := context.Background()
	_, _ = l.Append(ctx, reading())

	require.NoError(t, l.Reset(ctx))
	assert.Zero(t, l.Count())
	assert.True(t, l.Since().IsZero())
	assert.Empty(t, l.Records())
	assert.Equal(t, 1, sink.cleared)

	rec, err := l.Append(ctx, reading())
	require.NoError(t, err)
	assert.Equal(t, int64(0), rec.ID, "ids restart after reset")
	assert.Equal(t, rec.At, l.Since())
}

func TestLog_SinkFailureKeepsRecord(t *testing.T) {
	sink := &memSink{err: errors.New("readonly database")}
	l := newTestLog(sink)

	_, err := l.Append(context.Background(), reading())
	assert.Error(t, err)
	assert.Equal(t, int64(1), l.Count())
}

func TestLog_WriteCSV(t *testing.T) {
	l := newTestLog(nil)
	ctx := context.Background()
	_, _ = l.Append(ctx, reading())
	_, _ = l.Append(ctx, reading())

	var buf bytes.Buffer
	require.NoError(t, l.WriteCSV(&buf))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "id,power:node1,power:node2,power:node3,power:total,time:year,time:month,time:day,time:hour,time:minute,time:second", lines[0])
	assert.Equal(t, "0,120.5,,,120.5,2026,5,17,9,30,0", lines[1])
	assert.Equal(t, "1,120.5,,,120.5,2026,5,17,9,30,1.5", lines[2])
}

func TestLog_WriteCSVEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewLog("p", nil).WriteCSV(&buf))
	assert.Equal(t, "id,power:total,time:year,time:month,time:day,time:hour,time:minute,time:second\n", buf.String())
}

func TestLog_Restore(t *testing.T) {
	l := newTestLog(nil)
	w := 10.0
	l.Restore([]model.Record{
		{ID: 4, Hosts: []string{"a"}, Values: []*float64{&w}, At: base},
		{ID: 5, Hosts: []string{"a"}, Values: []*float64{nil}, At: base.Add(time.Second)},
	})
	assert.Equal(t, int64(6), l.Count())
	assert.Equal(t, base, l.Since())

	rec, err := l.Append(context.Background(), reading())
	require.NoError(t, err)
	assert.Equal(t, int64(6), rec.ID)
}

func TestFilename(t *testing.T) {
	assert.Equal(t, "records_since_20261231_235959.csv",
		Filename(time.Date(2026, 12, 31, 23, 59, 59, 900, time.Local)))
}
