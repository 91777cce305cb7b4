// Package sanctions loads the OFAC SDN crypto feed and serves address and
// entity lookups with TTL-based refresh.
package sanctions

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/cryptocompliance/btc-screening/internal/domain"
	"github.com/cryptocompliance/btc-screening/internal/pkg/logger"
)

// document is the wire shape of the sanctions data file
type document struct {
	Metadata struct {
		Source           string         `json:"source"`
		LastUpdated      string         `json:"lastUpdated"`
		Version          string         `json:"version"`
		TotalEntities    int            `json:"totalEntities"`
		Cryptocurrencies map[string]int `json:"cryptocurrencies"`
	} `json:"metadata"`
	Entities []entityRow `json:"entities"`
}

// entityRow is one feed row; the feed emits one row per (entity, address)
type entityRow struct {
	EntityID       string `json:"entityId"`
	EntityName     string `json:"entityName"`
	EntityType     string `json:"entityType"`
	Program        string `json:"program"`
	Cryptocurrency string `json:"cryptocurrency"`
	Address        string `json:"address"`
	Remarks        string `json:"remarks"`
	IsActive       bool   `json:"isActive"`
}

var aliasRes = []*regexp.Regexp{
	regexp.MustCompile(`a\.k\.a\.\s+'([^']+)'`),
	regexp.MustCompile(`a\.k\.a\.\s+"([^"]+)"`),
}

// extractAliases pulls a.k.a. names out of the feed's remarks text
func extractAliases(remarks string) []string {
	var aliases []string
	for _, re := range aliasRes {
		for _, m := range re.FindAllStringSubmatch(remarks, -1) {
			alias := strings.TrimSpace(m[1])
			if alias != "" {
				aliases = append(aliases, alias)
			}
		}
	}
	return aliases
}

// snapshot is one immutable generation of the index; replaced wholesale
// on reload
type snapshot struct {
	entities  map[string]*domain.SanctionEntity
	byAddress map[string][]*domain.SanctionEntity // keyed lower case
	metadata  domain.SanctionsMetadata
}

func emptySnapshot() *snapshot {
	return &snapshot{
		entities:  make(map[string]*domain.SanctionEntity),
		byAddress: make(map[string][]*domain.SanctionEntity),
	}
}

// Index provides O(1) address and entity lookups over the sanctions set
type Index struct {
	source Source
	ttl    time.Duration
	log    *logger.Logger
	now    func() time.Time

	mu       sync.RWMutex
	snap     *snapshot
	loadedAt time.Time
}

// NewIndex creates a sanctions index over the given source.
// The index loads lazily on first access and refreshes after ttl.
func NewIndex(source Source, ttl time.Duration, log *logger.Logger) *Index {
	return &Index{
		source: source,
		ttl:    ttl,
		log:    log.Named("sanctions_index"),
		now:    time.Now,
		snap:   emptySnapshot(),
	}
}

// current returns a fresh snapshot, reloading if the TTL has elapsed
func (i *Index) current(ctx context.Context) (*snapshot, error) {
	i.mu.RLock()
	snap, loadedAt := i.snap, i.loadedAt
	i.mu.RUnlock()

	if !loadedAt.IsZero() && i.now().Sub(loadedAt) <= i.ttl {
		return snap, nil
	}
	return i.reload(ctx)
}

// reload rebuilds the snapshot from the source and swaps it in
func (i *Index) reload(ctx context.Context) (*snapshot, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	// Another caller may have reloaded while we waited for the lock
	if !i.loadedAt.IsZero() && i.now().Sub(i.loadedAt) <= i.ttl {
		return i.snap, nil
	}

	raw, err := i.source.Load(ctx)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// Missing source keeps the service available with an empty set;
			// the next reload is still attempted after TTL
			i.snap = emptySnapshot()
			i.loadedAt = i.now()
			i.log.Warn("sanctions source missing, serving empty index")
			return i.snap, nil
		}
		return nil, domain.WrapError(domain.KindDataLoad, "reading sanctions source", err)
	}

	snap, err := buildSnapshot(raw)
	if err != nil {
		return nil, err
	}

	i.snap = snap
	i.loadedAt = i.now()
	i.log.SanctionsReloaded(snap.metadata.TotalEntities, snap.metadata.TotalAddresses, snap.metadata.LastUpdated)
	return snap, nil
}

func buildSnapshot(raw []byte) (*snapshot, error) {
	var doc document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, domain.WrapError(domain.KindDataLoad, "parsing sanctions source", err)
	}

	snap := emptySnapshot()
	for _, row := range doc.Entities {
		if !row.IsActive {
			continue
		}

		entity, ok := snap.entities[row.EntityID]
		if !ok {
			entity = &domain.SanctionEntity{
				EntityID:    row.EntityID,
				Name:        row.EntityName,
				ListSource:  domain.ListSourceOFAC,
				EntityType:  row.EntityType,
				Program:     row.Program,
				Aliases:     extractAliases(row.Remarks),
				LastUpdated: doc.Metadata.LastUpdated,
				IsActive:    true,
			}
			snap.entities[row.EntityID] = entity
		}

		if row.Address != "" && !entity.HasAddress(row.Address) {
			entity.Addresses = append(entity.Addresses, row.Address)
			key := strings.ToLower(row.Address)
			snap.byAddress[key] = append(snap.byAddress[key], entity)
		}
	}

	snap.metadata = domain.SanctionsMetadata{
		Source:           doc.Metadata.Source,
		LastUpdated:      doc.Metadata.LastUpdated,
		Version:          doc.Metadata.Version,
		TotalEntities:    len(snap.entities),
		TotalAddresses:   len(snap.byAddress),
		Cryptocurrencies: doc.Metadata.Cryptocurrencies,
	}
	return snap, nil
}

// All returns the active entity set
func (i *Index) All(ctx context.Context) ([]*domain.SanctionEntity, error) {
	snap, err := i.current(ctx)
	if err != nil {
		return nil, err
	}
	entities := make([]*domain.SanctionEntity, 0, len(snap.entities))
	for _, e := range snap.entities {
		entities = append(entities, e)
	}
	return entities, nil
}

// FindByAddress returns all entities whose address set contains addr,
// compared case-insensitively
func (i *Index) FindByAddress(ctx context.Context, addr string) ([]*domain.SanctionEntity, error) {
	snap, err := i.current(ctx)
	if err != nil {
		return nil, err
	}
	return snap.byAddress[strings.ToLower(addr)], nil
}

// FindByAddresses is the batched form of FindByAddress
func (i *Index) FindByAddresses(ctx context.Context, addrs []string) (map[string][]*domain.SanctionEntity, error) {
	snap, err := i.current(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]*domain.SanctionEntity, len(addrs))
	for _, addr := range addrs {
		if entities := snap.byAddress[strings.ToLower(addr)]; len(entities) > 0 {
			out[addr] = entities
		}
	}
	return out, nil
}

// FindByID returns the entity with the given id, or nil
func (i *Index) FindByID(ctx context.Context, id string) (*domain.SanctionEntity, error) {
	snap, err := i.current(ctx)
	if err != nil {
		return nil, err
	}
	return snap.entities[id], nil
}

// SearchByName matches q as a case-insensitive substring of entity names
// and aliases
func (i *Index) SearchByName(ctx context.Context, q string) ([]*domain.SanctionEntity, error) {
	snap, err := i.current(ctx)
	if err != nil {
		return nil, err
	}
	q = strings.ToLower(strings.TrimSpace(q))
	if q == "" {
		return nil, nil
	}

	var matched []*domain.SanctionEntity
	for _, e := range snap.entities {
		if strings.Contains(strings.ToLower(e.Name), q) {
			matched = append(matched, e)
			continue
		}
		for _, alias := range e.Aliases {
			if strings.Contains(strings.ToLower(alias), q) {
				matched = append(matched, e)
				break
			}
		}
	}
	return matched, nil
}

// Metadata returns the loaded data set summary
func (i *Index) Metadata(ctx context.Context) (domain.SanctionsMetadata, error) {
	snap, err := i.current(ctx)
	if err != nil {
		return domain.SanctionsMetadata{}, err
	}
	return snap.metadata, nil
}

// Clear forces a reload on the next access
func (i *Index) Clear() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.loadedAt = time.Time{}
}
