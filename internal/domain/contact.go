package domain

// Contact is the customer (or group) on the other side of a ticket.
type Contact struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	Number        string `json:"number"`
	ProfilePicURL string `json:"profilePicUrl"`
	IsGroup       bool   `json:"isGroup"`
}
