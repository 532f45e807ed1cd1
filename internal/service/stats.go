package service

import (
	"context"

	"sheetvend-api/internal/model"
)

// StatsAggregator derives availability counts from fresh scans.
type StatsAggregator struct {
	scanner *Scanner
}

// NewStatsAggregator creates a stats aggregator.
func NewStatsAggregator(scanner *Scanner) *StatsAggregator {
	return &StatsAggregator{scanner: scanner}
}

// RegionStats counts available and used rows of one region in a single scan.
// Malformed rows count nowhere.
func (s *StatsAggregator) RegionStats(ctx context.Context, regionID string) (model.RegionStats, error) {
	rows, err := s.scanner.Scan(ctx, regionID)
	if err != nil {
		return model.RegionStats{}, err
	}

	st := model.RegionStats{Region: regionID}
	for _, row := range rows {
		switch row.State() {
		case model.RowAvailable:
			st.Available++
		case model.RowConsumed:
			st.Used++
		}
	}
	st.Total = st.Available + st.Used
	return st, nil
}

// CombinedStats returns every region's stats in configured order plus the sum.
func (s *StatsAggregator) CombinedStats(ctx context.Context) (model.CombinedStats, error) {
	regions := s.scanner.Regions()
	out := model.CombinedStats{
		Regions: make([]model.RegionStats, 0, len(regions)),
		Total:   model.RegionStats{Region: "total"},
	}

	for _, r := range regions {
		st, err := s.RegionStats(ctx, r.ID)
		if err != nil {
			return model.CombinedStats{}, err
		}
		out.Regions = append(out.Regions, st)
		out.Total.Available += st.Available
		out.Total.Used += st.Used
		out.Total.Total += st.Total
	}
	return out, nil
}
