package service

import (
	"context"
	"testing"

	"sheetvend-api/internal/errs"
	"sheetvend-api/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestScanner(g *fakeGrid) *Scanner {
	if g == nil {
		return NewScanner(nil, testRegions, zapNop())
	}
	return NewScanner(g, testRegions, zapNop())
}

func TestZipColumns(t *testing.T) {
	tests := []struct {
		name     string
		ids      []string
		secrets  []string
		statuses []string
		want     []model.InventoryRow
	}{
		{
			name: "empty",
			want: []model.InventoryRow{},
		},
		{
			name:     "header only",
			ids:      []string{"Email"},
			secrets:  []string{"Password"},
			statuses: []string{"Status"},
			want:     []model.InventoryRow{},
		},
		{
			name:     "ragged columns are padded",
			ids:      []string{"Email", "e1", "e2", "e3"},
			secrets:  []string{"Password", "p1"},
			statuses: []string{"Status"},
			want: []model.InventoryRow{
				{Position: 2, Identifier: "e1", Secret: "p1"},
				{Position: 3, Identifier: "e2"},
				{Position: 4, Identifier: "e3"},
			},
		},
		{
			name:     "cells are trimmed",
			ids:      []string{"h", "  e1 "},
			secrets:  []string{"h", "p1\t"},
			statuses: []string{"h", "   "},
			want: []model.InventoryRow{
				{Position: 2, Identifier: "e1", Secret: "p1"},
			},
		},
		{
			name:     "longest column wins even if it is the status",
			ids:      []string{"h"},
			secrets:  []string{"h"},
			statuses: []string{"h", "", "used"},
			want: []model.InventoryRow{
				{Position: 2},
				{Position: 3, StatusMarker: "used"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, zipColumns(tt.ids, tt.secrets, tt.statuses))
		})
	}
}

func TestScanner_FindAvailable(t *testing.T) {
	ctx := context.Background()
	g := newFakeGrid(map[int][]string{
		1: {"Email", "e1", "e2", "e3", "", "e5"},
		2: {"Password", "p1", "p2", "p3", "p4", "p5"},
		3: {"Status", "", "", "used"},
	})
	s := newTestScanner(g)

	rows, err := s.FindAvailable(ctx, "accounts", 2)
	require.NoError(t, err)
	assert.Equal(t, []model.InventoryRow{
		{Position: 2, Identifier: "e1", Secret: "p1"},
		{Position: 3, Identifier: "e2", Secret: "p2"},
	}, rows)

	rows, err = s.FindAvailable(ctx, "accounts", 10)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, 6, rows[2].Position)

	n, err := s.CountAvailable(ctx, "accounts")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	first, err := s.FindFirstAvailable(ctx, "accounts")
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, 2, first.Position)
}

func TestScanner_EmptyRegion(t *testing.T) {
	ctx := context.Background()
	s := newTestScanner(newFakeGrid(map[int][]string{
		6: {"Email"},
	}))

	first, err := s.FindFirstAvailable(ctx, "emails")
	require.NoError(t, err)
	assert.Nil(t, first)

	rows, err := s.FindAvailable(ctx, "emails", 5)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestScanner_Errors(t *testing.T) {
	ctx := context.Background()

	_, err := newTestScanner(newFakeGrid(nil)).Scan(ctx, "nope")
	require.ErrorIs(t, err, errs.ErrUnknownRegion)

	_, err = newTestScanner(nil).Scan(ctx, "accounts")
	require.ErrorIs(t, err, errs.ErrStoreUnavailable)
	require.ErrorIs(t, newTestScanner(nil).Ping(ctx), errs.ErrStoreUnavailable)

	g := newFakeGrid(nil)
	g.readErr = errFake
	_, err = newTestScanner(g).CountAvailable(ctx, "accounts")
	require.ErrorIs(t, err, errs.ErrStoreUnavailable)
}

func TestScanner_Regions(t *testing.T) {
	s := newTestScanner(newFakeGrid(nil))

	regions := s.Regions()
	require.Len(t, regions, 2)
	assert.Equal(t, "accounts", regions[0].ID)

	regions[0].ID = "mutated"
	r, err := s.Region("accounts")
	require.NoError(t, err)
	assert.True(t, r.HasAttribution())
	require.NoError(t, s.Ping(context.Background()))
}
