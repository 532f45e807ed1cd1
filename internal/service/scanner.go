package service

import (
	"context"
	"fmt"
	"strings"

	"sheetvend-api/internal/errs"
	"sheetvend-api/internal/model"
	"sheetvend-api/internal/repository"

	"go.uber.org/zap"
)

// Scanner reads live views of the inventory regions. Nothing is cached:
// the grid is shared and edited outside this process, so every call costs
// three column reads.
type Scanner struct {
	store   repository.GridStore
	regions []model.Region
	byID    map[string]model.Region
	log     *zap.Logger
}

// NewScanner binds regions to store. A nil store yields a scanner whose every
// call fails with errs.ErrStoreUnavailable.
func NewScanner(store repository.GridStore, regions []model.Region, log *zap.Logger) *Scanner {
	byID := make(map[string]model.Region, len(regions))
	for _, r := range regions {
		byID[r.ID] = r
	}
	return &Scanner{
		store:   store,
		regions: regions,
		byID:    byID,
		log:     log,
	}
}

// Regions returns the configured regions in order.
func (s *Scanner) Regions() []model.Region {
	return append([]model.Region(nil), s.regions...)
}

// Region looks up a region by id.
func (s *Scanner) Region(id string) (model.Region, error) {
	r, ok := s.byID[id]
	if !ok {
		return model.Region{}, fmt.Errorf("%w: %q", errs.ErrUnknownRegion, id)
	}
	return r, nil
}

func (s *Scanner) readColumn(ctx context.Context, column int) ([]string, error) {
	if s.store == nil {
		return nil, fmt.Errorf("%w: no grid configured", errs.ErrStoreUnavailable)
	}
	values, err := s.store.ReadColumn(ctx, column)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrStoreUnavailable, err)
	}
	return values, nil
}

func (s *Scanner) writeCell(ctx context.Context, row, column int, value string) error {
	if s.store == nil {
		return fmt.Errorf("%w: no grid configured", errs.ErrStoreUnavailable)
	}
	if err := s.store.WriteCell(ctx, row, column, value); err != nil {
		return fmt.Errorf("%w: %v", errs.ErrStoreUnavailable, err)
	}
	return nil
}

// Ping checks that the grid answers a read of the first region's status column.
func (s *Scanner) Ping(ctx context.Context) error {
	column := 1
	if len(s.regions) > 0 {
		column = s.regions[0].StatusColumn
	}
	_, err := s.readColumn(ctx, column)
	return err
}

// Scan returns every non-header row of the region, including malformed and
// consumed ones.
func (s *Scanner) Scan(ctx context.Context, regionID string) ([]model.InventoryRow, error) {
	region, err := s.Region(regionID)
	if err != nil {
		return nil, err
	}

	ids, err := s.readColumn(ctx, region.IdentifierColumn)
	if err != nil {
		return nil, err
	}
	secrets, err := s.readColumn(ctx, region.SecretColumn)
	if err != nil {
		return nil, err
	}
	statuses, err := s.readColumn(ctx, region.StatusColumn)
	if err != nil {
		return nil, err
	}

	return zipColumns(ids, secrets, statuses), nil
}

// zipColumns pads the three columns to the longest one and drops the header.
func zipColumns(ids, secrets, statuses []string) []model.InventoryRow {
	n := max(len(ids), len(secrets), len(statuses))
	if n <= 1 {
		return []model.InventoryRow{}
	}

	cell := func(col []string, i int) string {
		if i < len(col) {
			return strings.TrimSpace(col[i])
		}
		return ""
	}

	rows := make([]model.InventoryRow, 0, n-1)
	for i := 1; i < n; i++ {
		rows = append(rows, model.InventoryRow{
			Position:     i + 1,
			Identifier:   cell(ids, i),
			Secret:       cell(secrets, i),
			StatusMarker: cell(statuses, i),
		})
	}
	return rows
}

// FindFirstAvailable returns the lowest available row, or nil if there is none.
func (s *Scanner) FindFirstAvailable(ctx context.Context, regionID string) (*model.InventoryRow, error) {
	rows, err := s.FindAvailable(ctx, regionID, 1)
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return &rows[0], nil
}

// FindAvailable returns up to limit available rows in ascending position.
// A short pool yields fewer rows, not an error.
func (s *Scanner) FindAvailable(ctx context.Context, regionID string, limit int) ([]model.InventoryRow, error) {
	rows, err := s.Scan(ctx, regionID)
	if err != nil {
		return nil, err
	}

	out := make([]model.InventoryRow, 0, min(max(limit, 0), len(rows)))
	for _, row := range rows {
		if len(out) >= limit {
			break
		}
		if row.Available() {
			out = append(out, row)
		}
	}
	return out, nil
}

// CountAvailable counts available rows with a fresh scan.
func (s *Scanner) CountAvailable(ctx context.Context, regionID string) (int, error) {
	rows, err := s.Scan(ctx, regionID)
	if err != nil {
		return 0, err
	}

	n := 0
	for _, row := range rows {
		if row.Available() {
			n++
		}
	}
	return n, nil
}
