package core

// Engine bundles the pure table operations: search, view, render and
// flatten. It holds no record state and is safe for concurrent use once
// constructed.
type Engine struct {
	Format     *Formatter
	Extractors *ExtractorRegistry

	// LegacyStringSort compares every column as lowercase strings.
	LegacyStringSort bool

	// DefaultPageSize applies to view requests without a page size.
	DefaultPageSize int

	report ReportOptions
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithFormatter sets the locale formatter.
func WithFormatter(f *Formatter) EngineOption {
	return func(e *Engine) { e.Format = f }
}

// WithExtractors replaces the search extractor registry.
func WithExtractors(r *ExtractorRegistry) EngineOption {
	return func(e *Engine) { e.Extractors = r }
}

// WithLegacyStringSort restores blanket string comparison.
func WithLegacyStringSort(on bool) EngineOption {
	return func(e *Engine) { e.LegacyStringSort = on }
}

// WithDefaultPageSize overrides DefaultPageSize.
func WithDefaultPageSize(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.DefaultPageSize = n
		}
	}
}

// WithReportOptions sets the printable report limits and branding.
func WithReportOptions(o ReportOptions) EngineOption {
	return func(e *Engine) { e.report = o.withDefaults() }
}

// NewEngine returns an engine with es-MX formatting and default extractors.
func NewEngine(opts ...EngineOption) *Engine {
	e := &Engine{
		Format:          DefaultFormatter(),
		Extractors:      NewExtractorRegistry(),
		DefaultPageSize: DefaultPageSize,
		report:          ReportOptions{}.withDefaults(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}
