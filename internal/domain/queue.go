package domain

// Queue is a routing bucket tickets and agents are grouped under.
type Queue struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}
