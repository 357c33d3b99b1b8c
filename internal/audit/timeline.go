package audit

import "time"

// TimelineFilters narrows the audit timeline of one company.
type TimelineFilters struct {
	CompanyID int64
	From      time.Time
	To        time.Time
	ActorID   int64
	Entity    string
	Action    string
	Page      int
	PageSize  int
}

// TimelineRow is one audit_logs entry.
type TimelineRow struct {
	At       time.Time      `json:"at"`
	ActorID  int64          `json:"actor_id"`
	Action   string         `json:"action"`
	Entity   string         `json:"entity"`
	EntityID string         `json:"entity_id"`
	Meta     map[string]any `json:"meta,omitempty"`
}

// PagingInfo carries simple next/previous paging.
type PagingInfo struct {
	Page     int  `json:"page"`
	PageSize int  `json:"page_size"`
	HasNext  bool `json:"has_next"`
	PrevPage int  `json:"prev_page,omitempty"`
	NextPage int  `json:"next_page,omitempty"`
}

// Result wraps a timeline page.
type Result struct {
	Rows   []TimelineRow `json:"rows"`
	Paging PagingInfo    `json:"paging"`
}

// WindowQuery is what the repository receives for a paged read.
type WindowQuery struct {
	TimelineFilters
	Offset int
	Limit  int
}
