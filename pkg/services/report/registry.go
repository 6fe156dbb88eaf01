package report

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/de-tools/case-atlas/pkg/models/domain"
	"github.com/de-tools/case-atlas/pkg/records"
)

// ErrUnknownKind is returned when a section names a kind with no factory.
var ErrUnknownKind = errors.New("unknown section kind")

// Section produces one report section from a record set.
type Section interface {
	Build(ctx context.Context, rs *records.RecordSet) (domain.ReportSection, error)
}

// SectionFactory creates a Section from its plan. Column names in the plan are
// logical and resolved through columns.
type SectionFactory func(spec SectionPlan, columns Columns) (Section, error)

// Registry manages section factories by kind
type Registry interface {
	// Register adds a factory for a section kind
	Register(kind string, factory SectionFactory) error
	// Create instantiates the section described by spec
	Create(spec SectionPlan, columns Columns) (Section, error)
	// ListKinds returns the registered kinds in sorted order
	ListKinds() []string
}

type registry struct {
	mu        sync.RWMutex
	factories map[string]SectionFactory
}

// NewRegistry creates an empty section registry
func NewRegistry() Registry {
	return &registry{
		factories: make(map[string]SectionFactory),
	}
}

// NewDefaultRegistry creates a registry holding the built-in section kinds.
func NewDefaultRegistry() Registry {
	r := &registry{factories: make(map[string]SectionFactory, 5)}
	r.factories[KindHeading] = newHeadingSection
	r.factories[KindSummary] = newSummarySection
	r.factories[KindBreakdown] = newBreakdownSection
	r.factories[KindDrillDown] = newDrillDownSection
	r.factories[KindIndicators] = newIndicatorsSection
	return r
}

func (r *registry) Register(kind string, factory SectionFactory) error {
	if kind == "" {
		return fmt.Errorf("section kind cannot be empty")
	}
	if factory == nil {
		return fmt.Errorf("factory cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[kind]; exists {
		return fmt.Errorf("section kind %q is already registered", kind)
	}

	r.factories[kind] = factory
	return nil
}

func (r *registry) Create(spec SectionPlan, columns Columns) (Section, error) {
	r.mu.RLock()
	factory, exists := r.factories[spec.Kind]
	r.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, spec.Kind)
	}

	return factory(spec, columns)
}

func (r *registry) ListKinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kinds := make([]string, 0, len(r.factories))
	for kind := range r.factories {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	return kinds
}
