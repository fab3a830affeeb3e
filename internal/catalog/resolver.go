package catalog

import (
	"context"
	"fmt"

	"github.com/xelth-com/sharpcrmgo/internal/models"
)

// Source provides the read-only catalog tables.
type Source interface {
	Instruments(ctx context.Context) ([]models.Instrument, error)
	Departments(ctx context.Context) ([]models.Department, error)
	ServicesCatalog(ctx context.Context) ([]models.InstrumentService, error)
	PartsCatalog(ctx context.Context) ([]models.Part, error)
}

// Resolver maps instrument ids to names and departments. It is a plain
// lookup built once per request path; it never writes.
type Resolver struct {
	instruments map[uint]models.Instrument
	departments map[uint]models.Department
	services    map[uint]models.InstrumentService
	parts       map[uint]models.Part
}

// Load reads the catalog tables and builds a resolver.
func Load(ctx context.Context, src Source) (*Resolver, error) {
	instruments, err := src.Instruments(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load instruments: %w", err)
	}
	departments, err := src.Departments(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load departments: %w", err)
	}
	services, err := src.ServicesCatalog(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load services: %w", err)
	}
	parts, err := src.PartsCatalog(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load parts: %w", err)
	}
	return NewResolver(instruments, departments, services, parts), nil
}

// NewResolver builds a resolver from already-loaded catalog rows.
func NewResolver(instruments []models.Instrument, departments []models.Department, services []models.InstrumentService, parts []models.Part) *Resolver {
	r := &Resolver{
		instruments: make(map[uint]models.Instrument, len(instruments)),
		departments: make(map[uint]models.Department, len(departments)),
		services:    make(map[uint]models.InstrumentService, len(services)),
		parts:       make(map[uint]models.Part, len(parts)),
	}
	for _, in := range instruments {
		r.instruments[in.ID] = in
	}
	for _, d := range departments {
		r.departments[d.ID] = d
	}
	for _, s := range services {
		r.services[s.ID] = s
	}
	for _, p := range parts {
		r.parts[p.ID] = p
	}
	return r
}

// InstrumentName returns the catalog name for an instrument id.
func (r *Resolver) InstrumentName(id uint) string {
	if in, ok := r.instruments[id]; ok {
		return in.Name
	}
	return ""
}

// DepartmentOf returns the configured department of an instrument.
func (r *Resolver) DepartmentOf(instrumentID uint) (uint, bool) {
	in, ok := r.instruments[instrumentID]
	if !ok || in.DepartmentID == nil {
		return 0, false
	}
	return *in.DepartmentID, true
}

// DepartmentName returns the name for a department id.
func (r *Resolver) DepartmentName(id uint) string {
	if d, ok := r.departments[id]; ok {
		return d.Name
	}
	return ""
}

// ServiceName returns the catalog name for a service id.
func (r *Resolver) ServiceName(id uint) string {
	if s, ok := r.services[id]; ok {
		return s.Name
	}
	return ""
}

// PartName returns the catalog name for a part id.
func (r *Resolver) PartName(id uint) string {
	if p, ok := r.parts[id]; ok {
		return p.Name
	}
	return ""
}
