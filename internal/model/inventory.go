package model

import "time"

// RowState classifies an inventory row.
type RowState string

const (
	RowAvailable RowState = "available"
	RowConsumed  RowState = "consumed"
	RowMalformed RowState = "malformed"
)

// Region binds one inventory pool to a column triple of the shared grid.
// Columns are 1-indexed. AttributionColumn is optional (0 means none).
type Region struct {
	ID                string `json:"id"`
	IdentifierColumn  int    `json:"identifier_column"`
	SecretColumn      int    `json:"secret_column"`
	StatusColumn      int    `json:"status_column"`
	AttributionColumn int    `json:"attribution_column,omitempty"`
}

// HasAttribution reports whether consumed rows get a separate attribution cell.
func (r Region) HasAttribution() bool {
	return r.AttributionColumn > 0
}

// InventoryRow is one position of a region after zip-and-pad of its columns.
type InventoryRow struct {
	Position     int    `json:"position"` // 1-based sheet row, row 1 is the header
	Identifier   string `json:"identifier"`
	Secret       string `json:"secret"`
	StatusMarker string `json:"status_marker,omitempty"`
}

// State classifies the row. A row missing identifier or secret is malformed
// whatever its marker says.
func (r InventoryRow) State() RowState {
	switch {
	case r.Identifier == "" || r.Secret == "":
		return RowMalformed
	case r.StatusMarker != "":
		return RowConsumed
	default:
		return RowAvailable
	}
}

// Available reports whether the row may be allocated.
func (r InventoryRow) Available() bool {
	return r.State() == RowAvailable
}

// RegionStats counts well-formed rows of one region.
type RegionStats struct {
	Region    string `json:"region"`
	Available int    `json:"available"`
	Used      int    `json:"used"`
	Total     int    `json:"total"`
}

// CombinedStats holds per-region stats in configured order plus a grand total.
type CombinedStats struct {
	Regions []RegionStats `json:"regions"`
	Total   RegionStats   `json:"total"`
}

// Requester identifies who asks for an allocation. Username and FirstName
// only feed the attribution tag.
type Requester struct {
	UserID    int64  `json:"user_id"`
	Username  string `json:"username,omitempty"`
	FirstName string `json:"first_name,omitempty"`
}

// AllocationResult is what an allocation actually granted.
type AllocationResult struct {
	ID          string         `json:"id"`
	Region      string         `json:"region"`
	Granted     []InventoryRow `json:"granted"`
	Requested   int            `json:"requested"`
	Failed      []int          `json:"failed_positions,omitempty"`
	Balance     int64          `json:"balance"`
	AllocatedAt time.Time      `json:"allocated_at"`
}

// Shortfall is how many requested rows were not granted.
func (r *AllocationResult) Shortfall() int {
	return r.Requested - len(r.Granted)
}

// Partial reports whether fewer rows were granted than requested.
func (r *AllocationResult) Partial() bool {
	return r.Shortfall() > 0
}

// AuditRow is a raw row with its classification, for sheet audits.
type AuditRow struct {
	InventoryRow
	State RowState `json:"state"`
}

// AuditPage is a window over a region's raw rows.
type AuditPage struct {
	Region string     `json:"region"`
	Total  int        `json:"total"`
	Offset int        `json:"offset"`
	Rows   []AuditRow `json:"rows"`
}
