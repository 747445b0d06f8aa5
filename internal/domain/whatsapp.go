package domain

// Whatsapp is a messaging connection (channel) tickets originate from.
type Whatsapp struct {
	ID              int64  `json:"id"`
	Name            string `json:"name"`
	IsDefault       bool   `json:"isDefault"`
	FarewellMessage string `json:"farewellMessage,omitempty"`
}
