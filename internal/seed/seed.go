// Package seed loads sectors and agents from YAML fixtures into a store.
package seed

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ayushsreejith06/max/internal/idgen"
	"github.com/ayushsreejith06/max/internal/model"
	"github.com/ayushsreejith06/max/internal/store"
)

// File is the fixture document.
//
//	sectors:
//	  - name: Technology
//	    symbol: TECH
//	    balance: 10000
//	    agents:
//	      - name: Desk Manager
//	        role: manager
//	      - name: Momentum Trader
//	        role: trader
//	        confidence: 80
type File struct {
	Sectors []SectorSpec `yaml:"sectors"`
}

// SectorSpec is a sector together with the agents that belong to it.
type SectorSpec struct {
	model.Sector `yaml:",inline"`
	Agents       []model.Agent `yaml:"agents"`
}

// Parse decodes and validates a fixture.
func Parse(data []byte) (*File, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("seed: fixture is empty")
	}
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("seed: decode: %w", err)
	}
	if err := f.normalize(); err != nil {
		return nil, err
	}
	return &f, nil
}

// LoadFile reads and parses a fixture from disk.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("seed: read %s: %w", path, err)
	}
	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// normalize fills IDs and defaults and validates every record.
func (f *File) normalize() error {
	seen := make(map[string]bool)
	for i := range f.Sectors {
		sec := &f.Sectors[i]
		sec.Symbol = strings.ToUpper(strings.TrimSpace(sec.Symbol))
		if sec.ID == "" {
			sec.ID = idgen.Must(idgen.PrefixSector)
		}
		if seen[sec.ID] {
			return fmt.Errorf("seed: duplicate id %s", sec.ID)
		}
		seen[sec.ID] = true
		if err := model.ValidateSector(&sec.Sector); err != nil {
			return fmt.Errorf("seed: sector %q: %w", sec.Name, err)
		}

		for j := range sec.Agents {
			a := &sec.Agents[j]
			if a.ID == "" {
				a.ID = idgen.Must(idgen.PrefixAgent)
			}
			if seen[a.ID] {
				return fmt.Errorf("seed: duplicate id %s", a.ID)
			}
			seen[a.ID] = true
			if a.SectorID != "" && a.SectorID != sec.ID {
				return fmt.Errorf("seed: agent %q is nested under %s but names sector %s", a.Name, sec.ID, a.SectorID)
			}
			a.SectorID = sec.ID
			if a.Role == "" {
				a.Role = model.RoleGeneral
			}
			if a.Status == "" {
				a.Status = model.AgentActive
			}
			if err := model.ValidateAgent(a); err != nil {
				return fmt.Errorf("seed: agent %q: %w", a.Name, err)
			}
		}
	}
	return nil
}

// Result counts what Apply wrote.
type Result struct {
	SectorsCreated int `json:"sectors_created"`
	SectorsUpdated int `json:"sectors_updated"`
	AgentsCreated  int `json:"agents_created"`
	AgentsUpdated  int `json:"agents_updated"`
}

// Apply upserts the fixture in a single transaction. Existing records keep
// their creation time and discussion history.
func Apply(ctx context.Context, s store.Store, f *File, now time.Time) (Result, error) {
	var res Result
	now = now.UTC()
	err := s.RunInTransaction(ctx, func(tx store.Store) error {
		res = Result{}
		for i := range f.Sectors {
			spec := f.Sectors[i]
			sec := spec.Sector

			existing, err := tx.GetSector(ctx, sec.ID)
			switch {
			case errors.Is(err, store.ErrNotFound):
				sec.CreatedAt, sec.UpdatedAt = now, now
				if err := tx.CreateSector(ctx, &sec); err != nil {
					return fmt.Errorf("create sector %s: %w", sec.ID, err)
				}
				res.SectorsCreated++
			case err != nil:
				return fmt.Errorf("get sector %s: %w", sec.ID, err)
			default:
				sec.CreatedAt = existing.CreatedAt
				sec.LastDiscussionAt = existing.LastDiscussionAt
				sec.UpdatedAt = now
				if err := tx.UpdateSector(ctx, &sec); err != nil {
					return fmt.Errorf("update sector %s: %w", sec.ID, err)
				}
				res.SectorsUpdated++
			}

			for _, a := range spec.Agents {
				existing, err := tx.GetAgent(ctx, a.ID)
				switch {
				case errors.Is(err, store.ErrNotFound):
					a.CreatedAt, a.UpdatedAt = now, now
					if err := tx.CreateAgent(ctx, &a); err != nil {
						return fmt.Errorf("create agent %s: %w", a.ID, err)
					}
					res.AgentsCreated++
				case err != nil:
					return fmt.Errorf("get agent %s: %w", a.ID, err)
				default:
					a.CreatedAt = existing.CreatedAt
					a.UpdatedAt = now
					if err := tx.UpdateAgent(ctx, &a); err != nil {
						return fmt.Errorf("update agent %s: %w", a.ID, err)
					}
					res.AgentsUpdated++
				}
			}
		}
		return nil
	})
	if err != nil {
		return Result{}, err
	}
	return res, nil
}
