package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/reporover/internal/conversation"
)

type stubRecords struct {
	rec *conversation.Record
	err error
}

func (s stubRecords) Get(context.Context, string, string) (*conversation.Record, error) {
	return s.rec, s.err
}

func TestFreshnessGate(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	at := func(ago time.Duration) stubRecords {
		return stubRecords{rec: &conversation.Record{LastAccessed: now.Add(-ago), IngestedAt: now.Add(-ago)}}
	}
	chatOnly := stubRecords{rec: &conversation.Record{LastAccessed: now.Add(-time.Minute)}}

	tests := []struct {
		name    string
		records RecordReader
		owner   string
		want    bool
		wantErr bool
	}{
		{name: "accessed an hour ago", records: at(time.Hour), owner: "alice", want: true},
		{name: "just under the window", records: at(24*time.Hour - time.Second), owner: "alice", want: true},
		{name: "exactly the window", records: at(24 * time.Hour), owner: "alice", want: false},
		{name: "older than the window", records: at(25 * time.Hour), owner: "alice", want: false},
		{name: "chat without ingestion", records: chatOnly, owner: "alice", want: false},
		{name: "no record", records: stubRecords{err: conversation.ErrNotFound}, owner: "alice", want: false},
		{name: "empty owner", records: at(time.Minute), owner: "", want: false},
		{name: "store error", records: stubRecords{err: errors.New("disk I/O")}, owner: "alice", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewFreshnessGate(tt.records, 24*time.Hour)
			g.now = func() time.Time { return now }

			skip, err := g.ShouldSkip(context.Background(), tt.owner, "octo/repo")
			if tt.wantErr {
				require.Error(t, err)
				assert.False(t, skip)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, skip)
		})
	}
}

func TestFreshnessGate_ZeroWindowNeverSkips(t *testing.T) {
	g := NewFreshnessGate(stubRecords{rec: &conversation.Record{LastAccessed: time.Now(), IngestedAt: time.Now()}}, 0)
	skip, err := g.ShouldSkip(context.Background(), "alice", "octo/repo")
	require.NoError(t, err)
	assert.False(t, skip)
}
