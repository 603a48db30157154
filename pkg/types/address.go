package types

import "strings"

// Address is the delivery address snapshot stored on orders and deliveries.
// Persisted as jsonb through the gorm JSON serializer.
type Address struct {
	Line1      string  `json:"line1"`
	Line2      *string `json:"line2,omitempty"`
	City       string  `json:"city"`
	State      string  `json:"state"`
	PostalCode string  `json:"postal_code,omitempty"`
	Country    string  `json:"country"`
	Lat        float64 `json:"lat,omitempty"`
	Lng        float64 `json:"lng,omitempty"`
}

// IsZero reports whether the address carries no usable destination.
func (a Address) IsZero() bool {
	return strings.TrimSpace(a.Line1) == "" && strings.TrimSpace(a.City) == ""
}

// Oneline renders the address for timeline notes and logs.
func (a Address) Oneline() string {
	parts := make([]string, 0, 4)
	for _, part := range []string{a.Line1, a.City, a.State, a.Country} {
		if strings.TrimSpace(part) != "" {
			parts = append(parts, part)
		}
	}
	return strings.Join(parts, ", ")
}
