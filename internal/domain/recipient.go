package domain

import "strings"

// RecipientRecord is one (name, address) pair taken from a contact list.
type RecipientRecord struct {
	Name    string `json:"name"`
	Address string `json:"address"` // raw phone number as it appeared in the source
	Row     int    `json:"row,omitempty"`
}

// Valid reports whether both fields are present after trimming.
func (r RecipientRecord) Valid() bool {
	return strings.TrimSpace(r.Name) != "" && strings.TrimSpace(r.Address) != ""
}

// Address is a phone number carrying exactly one "+<country code>" prefix.
type Address string

func (a Address) String() string { return string(a) }

// Digits returns the address without the leading '+'.
func (a Address) Digits() string { return strings.TrimPrefix(string(a), "+") }
