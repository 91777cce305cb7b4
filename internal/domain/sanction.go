package domain

import "strings"

// SanctionEntity represents one consolidated entry from a sanctions list.
// Immutable after the index load that produced it.
type SanctionEntity struct {
	EntityID    string     `json:"entity_id"`
	Name        string     `json:"name"`
	ListSource  ListSource `json:"list_source"`
	EntityType  string     `json:"entity_type,omitempty"`
	Program     string     `json:"program,omitempty"`
	Addresses   []string   `json:"addresses"`
	Aliases     []string   `json:"aliases,omitempty"`
	LastUpdated string     `json:"last_updated,omitempty"` // ISO date from the feed
	IsActive    bool       `json:"is_active"`
}

// HasAddress reports whether the entity lists the address, compared
// case-insensitively.
func (e *SanctionEntity) HasAddress(addr string) bool {
	for _, a := range e.Addresses {
		if strings.EqualFold(a, addr) {
			return true
		}
	}
	return false
}

// SanctionsMetadata summarizes the loaded sanctions data set
type SanctionsMetadata struct {
	Source           string         `json:"source"`
	LastUpdated      string         `json:"last_updated"`
	Version          string         `json:"version,omitempty"`
	TotalEntities    int            `json:"total_entities"`
	TotalAddresses   int            `json:"total_addresses"`
	Cryptocurrencies map[string]int `json:"cryptocurrencies,omitempty"`
}
