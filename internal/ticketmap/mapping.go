package ticketmap

import (
	"strings"
	"time"
)

// Mapping routes a ticket's status updates back to whoever raised it. The
// JSON names match the on-disk mirror format.
type Mapping struct {
	TicketID      string    `json:"ticketId,omitempty"`
	RequesterID   string    `json:"userId"`
	OriginChannel string    `json:"channelId"`
	TicketType    string    `json:"ticketType"`
	IsSensitive   bool      `json:"isSensitive"`
	CreatedAt     time.Time `json:"createdAt"`
}

var sensitiveTypes = map[string]bool{
	"domain_lock":    true,
	"password_reset": true,
}

// IsSensitiveType reports whether updates for ticketType go by DM only.
func IsSensitiveType(ticketType string) bool {
	return sensitiveTypes[strings.ToLower(strings.TrimSpace(ticketType))]
}

// normalize derives IsSensitive from TicketType.
func (m Mapping) normalize() Mapping {
	if strings.TrimSpace(m.TicketType) == "" {
		m.TicketType = "general"
	}
	m.IsSensitive = IsSensitiveType(m.TicketType)
	return m
}
