package domain

import "time"

type FollowState string

const (
	FollowRequested FollowState = "requested"
	FollowAccepted  FollowState = "accepted"
)

// Connection is one entry of an owner's requested or accepted set.
type Connection struct {
	AccountId   AccountId   `json:"id"`
	Username    Username    `json:"username"`
	FirstName   string      `json:"first_name"`
	LastName    string      `json:"last_name"`
	State       FollowState `json:"state"`
	RequestedAt time.Time   `json:"requested_at"`
}

// ConnectionSlice is one independently paginated follow set.
type ConnectionSlice struct {
	Items      []Connection `json:"items"`
	Total      int          `json:"total"`
	TotalPages int          `json:"total_pages"`
}

type ConnectionsPage struct {
	Page        int             `json:"page"`
	Size        int             `json:"size"`
	Accepted    ConnectionSlice `json:"accepted"`
	Requested   ConnectionSlice `json:"requested"`
	HasNextPage bool            `json:"has_next_page"`
}
