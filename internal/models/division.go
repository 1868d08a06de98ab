package models

import "time"

// Division is a hierarchical organisational unit persisted by the upstream gateway.
// JSON tags follow the gateway's wire names.
type Division struct {
	ID          int64      `json:"id"`
	ParentID    *int64     `json:"division_id"`
	Name        string     `json:"name"`
	Description *string    `json:"deskripsi"`
	DeletedAt   *time.Time `json:"deleted_at"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   *time.Time `json:"updated_at"`

	// DivisionParent is filled by a one-hop lookup when the record is fetched individually.
	DivisionParent *Division `json:"divisionParent"`
}

// HasParent reports whether the division references another division.
func (d Division) HasParent() bool {
	return d.ParentID != nil && *d.ParentID > 0
}

// DivisionInput is the create/update payload.
type DivisionInput struct {
	Name        string  `json:"name" validate:"required,max=255"`
	ParentID    *int64  `json:"division_id" validate:"omitempty,gt=0"`
	Description *string `json:"deskripsi"`
}

// DivisionFilter captures list parameters.
type DivisionFilter struct {
	Page   int
	Search string
}

// DivisionPageMeta mirrors the gateway's pagination block.
type DivisionPageMeta struct {
	CurrentPage int     `json:"current_page"`
	LastPage    int     `json:"last_page"`
	PerPage     int     `json:"per_page"`
	Total       int     `json:"total"`
	NextPageURL *string `json:"next_page_url"`
	PrevPageURL *string `json:"prev_page_url"`
}

// DivisionPage is one page of divisions.
type DivisionPage struct {
	Items       []Division `json:"items"`
	TotalCount  int        `json:"total_count"`
	CurrentPage int        `json:"current_page"`
	LastPage    int        `json:"last_page"`
	PerPage     int        `json:"per_page"`
}

// EmptyDivisionPage is returned when the gateway cannot serve a list request.
func EmptyDivisionPage() *DivisionPage {
	return &DivisionPage{
		Items:       []Division{},
		TotalCount:  0,
		CurrentPage: 1,
		LastPage:    1,
		PerPage:     10,
	}
}

// DivisionOption is the compact projection used by the parent selector.
type DivisionOption struct {
	ID    int64  `json:"id"`
	Label string `json:"label"`
}

// ParentStatus enumerates parent resolution states.
type ParentStatus string

const (
	ParentNone     ParentStatus = "no_parent"
	ParentLoading  ParentStatus = "loading"
	ParentResolved ParentStatus = "resolved"
	ParentNotFound ParentStatus = "not_found"
)

// ParentState is a snapshot of resolving a division's parent.
type ParentState struct {
	Status   ParentStatus `json:"state"`
	ParentID *int64       `json:"parent_id,omitempty"`
	Name     string       `json:"name,omitempty"`
}

// Terminal reports whether no further transitions follow this state.
func (s ParentState) Terminal() bool {
	return s.Status != ParentLoading
}

// Label renders the state the way the detail view displays it.
func (s ParentState) Label() string {
	switch s.Status {
	case ParentNone:
		return "No Parent"
	case ParentLoading:
		return "Loading..."
	case ParentResolved:
		return s.Name
	default:
		return "Not Found"
	}
}
