package domain

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCursorValidate(t *testing.T) {
	tests := []struct {
		name    string
		kind    JobKind
		cursor  Cursor
		wantErr bool
	}{
		{name: "finder ok", kind: JobKindFinder, cursor: NewCursor(JobKindFinder)},
		{name: "scanner ok", kind: JobKindScanner, cursor: NewCursor(JobKindScanner)},
		{name: "finder with scanner cursor", kind: JobKindFinder, cursor: NewCursor(JobKindScanner), wantErr: true},
		{name: "both set", kind: JobKindFinder, cursor: Cursor{Finder: &FinderCursor{PageNumber: 1}, Scanner: &ScannerCursor{PageNumber: 1}}, wantErr: true},
		{name: "empty", kind: JobKindScanner, cursor: Cursor{}, wantErr: true},
		{name: "page zero", kind: JobKindFinder, cursor: Cursor{Finder: &FinderCursor{PageNumber: 0}}, wantErr: true},
		{name: "unknown kind", kind: JobKind("other"), cursor: NewCursor(JobKindFinder), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cursor.Validate(tt.kind)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidCursor))
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestCursorMovesDoNotAlias(t *testing.T) {
	start := NewCursor(JobKindFinder)

	next := start.NextPage()
	unit, page := next.Position()
	assert.Equal(t, 0, unit)
	assert.Equal(t, 2, page)

	_, startPage := start.Position()
	assert.Equal(t, 1, startPage, "original cursor must not change")

	advanced := next.AddCollected(3).NextUnit()
	unit, page = advanced.Position()
	assert.Equal(t, 1, unit)
	assert.Equal(t, 1, page)
	assert.Equal(t, 3, advanced.Collected())
	assert.Equal(t, 0, next.Collected())
}

func TestJobParamsRoundTripThroughColumn(t *testing.T) {
	params := JobParams{
		Categories:      []string{"shoes"},
		PageSize:        20,
		MaxPagesPerUnit: 3,
		Cursor:          NewCursor(JobKindScanner).NextPage(),
	}

	raw, err := params.Value()
	require.NoError(t, err)

	var decoded JobParams
	require.NoError(t, decoded.Scan(raw))
	require.NoError(t, decoded.Validate(JobKindScanner))

	unit, page := decoded.Cursor.Position()
	assert.Equal(t, 0, unit)
	assert.Equal(t, 2, page)
	assert.Nil(t, decoded.Cursor.Finder)
}

func TestJobParamsRejectsCursorDrift(t *testing.T) {
	raw := []byte(`{"keywords":["hat"],"page_size":10,"max_pages_per_unit":2,"cursor":{"scanner":{"category_index":0,"page_number":1}}}`)

	var params JobParams
	require.NoError(t, json.Unmarshal(raw, &params))

	err := params.Validate(JobKindFinder)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidCursor)
}

func TestJobStatusIsTerminal(t *testing.T) {
	assert.False(t, JobStatusPending.IsTerminal())
	assert.False(t, JobStatusRunning.IsTerminal())
	assert.True(t, JobStatusSuccess.IsTerminal())
	assert.True(t, JobStatusError.IsTerminal())
	assert.True(t, JobStatusCanceled.IsTerminal())
}
