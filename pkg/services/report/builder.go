package report

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/de-tools/case-atlas/pkg/models/domain"
	"github.com/de-tools/case-atlas/pkg/records"
)

// SectionError reports a section that could not be built.
type SectionError struct {
	Index int
	ID    string
	Field string
	Err   error
}

func (e *SectionError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("section %d (%s, field %s): %v", e.Index+1, e.ID, e.Field, e.Err)
	}
	return fmt.Sprintf("section %d (%s): %v", e.Index+1, e.ID, e.Err)
}

func (e *SectionError) Unwrap() error {
	return e.Err
}

// Builder runs a plan against a record set and assembles the document.
type Builder struct {
	registry        Registry
	continueOnError bool
	parallelism     int
}

// Option configures a Builder.
type Option func(*Builder)

// WithContinueOnError keeps building after a section fails. Failed sections
// are recorded in Document.Omitted.
func WithContinueOnError() Option {
	return func(b *Builder) { b.continueOnError = true }
}

// WithParallelism builds up to n sections concurrently. Sections are still
// merged in plan order, so the document does not depend on n.
func WithParallelism(n int) Option {
	return func(b *Builder) { b.parallelism = n }
}

// NewBuilder creates a builder resolving section kinds through registry.
func NewBuilder(registry Registry, opts ...Option) *Builder {
	if registry == nil {
		registry = NewDefaultRegistry()
	}
	b := &Builder{registry: registry, parallelism: 1}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

type outcome struct {
	done    bool
	section domain.ReportSection
	err     error
}

// Build produces the document for plan. On section failures it returns the
// partial document together with the SectionErrors; by default building
// stops at the first failure in plan order. A nil document means nothing
// could be built.
func (b *Builder) Build(ctx context.Context, rs *records.RecordSet, plan Plan) (*domain.Document, error) {
	if rs == nil {
		return nil, fmt.Errorf("no records to report on")
	}
	if err := plan.Validate(); err != nil {
		return nil, fmt.Errorf("invalid plan: %w", err)
	}

	logger := zerolog.Ctx(ctx)
	columns := Columns(nil).Merge(plan.Columns)
	outcomes := make([]outcome, len(plan.Sections))

	build := func(ctx context.Context, i int) {
		spec := plan.Sections[i]
		spec.ID = spec.Key(i)
		outcomes[i] = outcome{done: true}
		if err := ctx.Err(); err != nil {
			outcomes[i].err = b.sectionError(i, spec, columns, err)
			return
		}
		section, err := b.registry.Create(spec, columns)
		if err == nil {
			outcomes[i].section, err = section.Build(ctx, rs)
		}
		if err != nil {
			outcomes[i].err = b.sectionError(i, spec, columns, err)
			return
		}
		logger.Debug().Int("index", i).Str("section", spec.ID).Str("kind", spec.Kind).Msg("section built")
	}

	if b.parallelism > 1 {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(b.parallelism)
		for i := range plan.Sections {
			g.Go(func() error {
				build(gctx, i)
				return nil
			})
		}
		_ = g.Wait()
	} else {
		for i := range plan.Sections {
			build(ctx, i)
			if outcomes[i].err != nil && !b.continueOnError {
				break
			}
		}
	}

	doc := &domain.Document{Title: plan.Title, Subtitle: plan.Subtitle}
	var errs []error
	var stoppedAt string
	for i, o := range outcomes {
		id := plan.Sections[i].Key(i)
		switch {
		case stoppedAt != "" || !o.done:
			doc.Omitted = append(doc.Omitted, domain.Omission{
				Index:  i,
				ID:     id,
				Reason: fmt.Sprintf("not built: stopped after section %q failed", stoppedAt),
			})
		case o.err != nil:
			logger.Warn().Err(o.err).Int("index", i).Str("section", id).Msg("section omitted")
			doc.Omitted = append(doc.Omitted, domain.Omission{Index: i, ID: id, Reason: o.err.Error()})
			errs = append(errs, o.err)
			if !b.continueOnError {
				stoppedAt = id
			}
		default:
			doc.Sections = append(doc.Sections, o.section)
		}
	}

	logger.Info().
		Int("sections", len(doc.Sections)).
		Int("omitted", len(doc.Omitted)).
		Msg("report built")
	return doc, errors.Join(errs...)
}

func (b *Builder) sectionError(i int, spec SectionPlan, columns Columns, err error) *SectionError {
	field := ""
	var schemaErr *records.SchemaError
	if errors.As(err, &schemaErr) && len(schemaErr.Fields) > 0 {
		field = schemaErr.Fields[0]
	} else if spec.Field != "" {
		field = columns.Resolve(spec.Field)
	}
	return &SectionError{Index: i, ID: spec.ID, Field: field, Err: err}
}
