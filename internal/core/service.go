package core

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/JonMunkholm/joyeria/internal/logging"
)

var (
	// ErrUnknownTable is returned for an entity with no registered config.
	ErrUnknownTable = errors.New("unknown table")

	// ErrActionNotAllowed is returned when a table's Actions forbid an operation.
	ErrActionNotAllowed = errors.New("action not allowed")

	// ErrRecordNotFound is returned when an id is not in the cached records.
	ErrRecordNotFound = errors.New("record not found")
)

// DefaultExportTimeout bounds a single export.
var DefaultExportTimeout = 2 * time.Minute

// Attachment is a file field sent with a create or update.
type Attachment struct {
	Field       string
	Filename    string
	ContentType string
	Data        []byte
}

// Source is the remote owner of the records.
type Source interface {
	List(ctx context.Context, entity string) ([]Record, error)
	Create(ctx context.Context, entity string, rec Record, files []Attachment) (Record, error)
	Update(ctx context.Context, entity, id string, rec Record, files []Attachment) (Record, error)
	Delete(ctx context.Context, entity, id string) error
}

// Service serves table views, exports and mutations over a Source. It
// caches each entity's records and refetches after every mutation.
type Service struct {
	engine   *Engine
	source   Source
	audit    AuditLogger
	limiter  *ExportLimiter
	renderer ReportRenderer

	debounce      time.Duration
	exportTimeout time.Duration

	mu         sync.Mutex
	loaders    map[string]*Loader
	debouncers map[string]*Debouncer
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithAuditLogger replaces the in-memory audit log.
func WithAuditLogger(a AuditLogger) ServiceOption {
	return func(s *Service) { s.audit = a }
}

// WithExportLimiter replaces the default export limiter.
func WithExportLimiter(l *ExportLimiter) ServiceOption {
	return func(s *Service) { s.limiter = l }
}

// WithReportRenderer enables the printable report format.
func WithReportRenderer(r ReportRenderer) ServiceOption {
	return func(s *Service) { s.renderer = r }
}

// WithRefreshDebounce sets the quiet period of RequestRefresh.
func WithRefreshDebounce(d time.Duration) ServiceOption {
	return func(s *Service) { s.debounce = d }
}

// WithExportTimeout bounds a single export.
func WithExportTimeout(d time.Duration) ServiceOption {
	return func(s *Service) {
		if d > 0 {
			s.exportTimeout = d
		}
	}
}

// NewService creates a service over source.
func NewService(engine *Engine, source Source, opts ...ServiceOption) *Service {
	if engine == nil {
		engine = NewEngine()
	}
	s := &Service{
		engine:        engine,
		source:        source,
		debounce:      DefaultDebounce,
		exportTimeout: DefaultExportTimeout,
		loaders:       make(map[string]*Loader),
		debouncers:    make(map[string]*Debouncer),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.audit == nil {
		s.audit = NewMemoryAuditLog(DefaultAuditLimit)
	}
	if s.limiter == nil {
		s.limiter = NewExportLimiter(DefaultMaxConcurrentExports, DefaultExportWait)
	}
	return s
}

// Engine returns the table engine.
func (s *Service) Engine() *Engine { return s.engine }

// Tables returns all registered configs.
func (s *Service) Tables() []TableConfig { return All() }

// TablesByGroup returns the registered configs keyed by group.
func (s *Service) TablesByGroup() map[string][]TableConfig {
	result := make(map[string][]TableConfig)
	for _, g := range Groups() {
		result[g] = ByGroup(g)
	}
	return result
}

// Config returns the config of entity.
func (s *Service) Config(entity string) (TableConfig, error) {
	return Lookup(entity)
}

func (s *Service) loader(entity string) *Loader {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.loaders[entity]
	if !ok {
		l = NewLoader(entity, func(ctx context.Context) ([]Record, error) {
			return s.source.List(ctx, entity)
		})
		s.loaders[entity] = l
	}
	return l
}

// Records returns the cached records of entity, fetching when needed.
// On a fetch failure the previous records (or none) come back with the error.
func (s *Service) Records(ctx context.Context, entity string) ([]Record, error) {
	if _, err := Lookup(entity); err != nil {
		return nil, err
	}
	return s.loader(entity).Records(ctx)
}

// Refresh invalidates the cache of entity and refetches it.
func (s *Service) Refresh(ctx context.Context, entity string) ([]Record, error) {
	if _, err := Lookup(entity); err != nil {
		return nil, err
	}
	l := s.loader(entity)
	l.Invalidate()
	return l.Load(ctx)
}

// RequestRefresh schedules a debounced background refresh of entity.
// A burst of requests results in a single fetch. The cache keeps serving
// until that fetch lands.
func (s *Service) RequestRefresh(entity string) error {
	if _, err := Lookup(entity); err != nil {
		return err
	}
	s.mu.Lock()
	d, ok := s.debouncers[entity]
	if !ok {
		d = NewDebouncer(s.debounce)
		s.debouncers[entity] = d
	}
	s.mu.Unlock()

	d.Trigger(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		l := s.loader(entity)
		if _, err := l.Load(ctx); err != nil {
			l.Invalidate()
			logging.ForEntity(ctx, entity).Warn("background refresh failed", "error", err)
		}
	})
	return nil
}

// CacheStatus describes every cached entity.
func (s *Service) CacheStatus() []LoaderStatus {
	s.mu.Lock()
	loaders := make([]*Loader, 0, len(s.loaders))
	for _, l := range s.loaders {
		loaders = append(loaders, l)
	}
	s.mu.Unlock()

	out := make([]LoaderStatus, len(loaders))
	for i, l := range loaders {
		out[i] = l.Status()
	}
	return out
}

// TableView is a rendered page of a table.
type TableView struct {
	Config  TableConfig               `json:"config"`
	Columns []ColumnDescriptor        `json:"columns"`
	Sort    SortState                 `json:"sort"`
	Search  string                    `json:"search"`
	Result  ViewResult                `json:"result"`
	Cells   []map[string]DisplayValue `json:"cells"`
	Warning string                    `json:"warning,omitempty"`
}

// View renders one page of entity restricted to the visible columns.
// A nil visibility map uses the config defaults. A fetch failure does
// not fail the view: it renders the cached data with a warning.
func (s *Service) View(ctx context.Context, entity string, req ViewRequest, visible VisibleColumns) (*TableView, error) {
	cfg, err := Lookup(entity)
	if err != nil {
		return nil, err
	}
	if req.Sort.Key != "" {
		if col, ok := cfg.Column(req.Sort.Key); !ok || !col.IsSortable() {
			req.Sort = req.Sort.Reset()
		}
	}

	records, fetchErr := s.loader(entity).Records(ctx)

	if visible == nil {
		visible = DefaultVisibility(cfg.Columns)
	}
	cols := VisibleOnly(cfg.Columns, visible)

	res := s.engine.View(records, req, cfg.Columns)
	cells := make([]map[string]DisplayValue, len(res.Rows))
	for i, r := range res.Rows {
		cells[i] = s.engine.RenderRow(r, cols)
	}

	tv := &TableView{
		Config:  cfg,
		Columns: cols,
		Sort:    req.Sort,
		Search:  req.Search,
		Result:  res,
		Cells:   cells,
	}
	if fetchErr != nil {
		tv.Warning = FormatUserError(fetchErr)
	}
	return tv, nil
}

// Get returns one cached record of entity by id.
func (s *Service) Get(ctx context.Context, entity, id string) (Record, error) {
	cfg, err := Lookup(entity)
	if err != nil {
		return nil, err
	}
	if !cfg.Actions.CanView {
		return nil, fmt.Errorf("%w: view %s", ErrActionNotAllowed, entity)
	}
	records, err := s.loader(entity).Records(ctx)
	if err != nil && len(records) == 0 {
		return nil, err
	}
	for _, r := range records {
		if r.ID() == id {
			return r, nil
		}
	}
	return nil, fmt.Errorf("%w: %s/%s", ErrRecordNotFound, entity, id)
}

// ExportRequest selects what to export.
type ExportRequest struct {
	Format ExportFormat
	Search string
	Sort   SortState
	Now    time.Time
}

// ExportResult is a finished export.
type ExportResult struct {
	Filename    string
	ContentType string
	Inline      bool
	Rows        int
	Body        []byte
}

// Export serializes the filtered and sorted records of entity.
func (s *Service) Export(ctx context.Context, entity string, req ExportRequest) (*ExportResult, error) {
	cfg, err := Lookup(entity)
	if err != nil {
		return nil, err
	}
	if !cfg.Actions.CanExport {
		return nil, fmt.Errorf("%w: export %s", ErrActionNotAllowed, entity)
	}
	if req.Now.IsZero() {
		req.Now = time.Now()
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	defer s.limiter.Release()

	ctx, cancel := context.WithTimeout(ctx, s.exportTimeout)
	defer cancel()

	log := logging.WithFields(ctx, "entity", entity, "format", req.Format)

	records, fetchErr := s.loader(entity).Records(ctx)
	if fetchErr != nil && len(records) == 0 {
		return nil, fetchErr
	}
	rows := s.engine.Arrange(records, req.Search, req.Sort, cfg.Columns)

	var buf bytes.Buffer
	err = s.engine.Export(&buf, req.Format, rows, ExportOptions{
		Title:    cfg.Title,
		Columns:  cfg.Columns,
		Now:      req.Now,
		Renderer: s.renderer,
	})
	if err != nil {
		if errors.Is(err, ErrNothingToExport) {
			log.Warn("export skipped, no records")
		}
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if _, err := s.audit.Log(ctx, AuditLogParams{
		Action:       ActionExport,
		TableKey:     entity,
		Format:       string(req.Format),
		RowsAffected: len(rows),
		Detail:       map[string]any{"search": req.Search, "sort": req.Sort.Key, "dir": req.Sort.Direction},
	}); err != nil {
		log.Error("audit export failed", "error", err)
	}

	log.Info("export completed", "rows", len(rows), "bytes", buf.Len())
	return &ExportResult{
		Filename:    Filename(entity, req.Format, req.Now),
		ContentType: req.Format.ContentType(),
		Inline:      req.Format.Inline(),
		Rows:        len(rows),
		Body:        buf.Bytes(),
	}, nil
}

// Create adds a record upstream, then refetches the entity.
func (s *Service) Create(ctx context.Context, entity string, rec Record, files []Attachment) (Record, error) {
	cfg, err := Lookup(entity)
	if err != nil {
		return nil, err
	}
	if !cfg.Actions.CanAdd {
		return nil, fmt.Errorf("%w: add %s", ErrActionNotAllowed, entity)
	}

	created, err := s.source.Create(ctx, entity, rec, files)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", entity, err)
	}
	s.afterMutation(ctx, entity, ActionCreate, created.ID())
	return created, nil
}

// Update replaces a record upstream, then refetches the entity.
func (s *Service) Update(ctx context.Context, entity, id string, rec Record, files []Attachment) (Record, error) {
	cfg, err := Lookup(entity)
	if err != nil {
		return nil, err
	}
	if !cfg.Actions.CanEdit {
		return nil, fmt.Errorf("%w: edit %s", ErrActionNotAllowed, entity)
	}

	updated, err := s.source.Update(ctx, entity, id, rec, files)
	if err != nil {
		return nil, fmt.Errorf("update %s/%s: %w", entity, id, err)
	}
	s.afterMutation(ctx, entity, ActionUpdate, id)
	return updated, nil
}

// Delete removes a record upstream, then refetches the entity.
func (s *Service) Delete(ctx context.Context, entity, id string) error {
	cfg, err := Lookup(entity)
	if err != nil {
		return err
	}
	if !cfg.Actions.CanDelete {
		return fmt.Errorf("%w: delete %s", ErrActionNotAllowed, entity)
	}

	if err := s.source.Delete(ctx, entity, id); err != nil {
		return fmt.Errorf("delete %s/%s: %w", entity, id, err)
	}
	s.afterMutation(ctx, entity, ActionDelete, id)
	return nil
}

// afterMutation audits the change and replaces the cached records with a
// fresh fetch. Cached records are never patched locally.
func (s *Service) afterMutation(ctx context.Context, entity string, action AuditAction, id string) {
	log := logging.ForEntity(ctx, entity)
	if _, err := s.audit.Log(ctx, AuditLogParams{
		Action:       action,
		TableKey:     entity,
		RecordID:     id,
		RowsAffected: 1,
	}); err != nil {
		log.Error("audit mutation failed", "action", action, "error", err)
	}

	if _, err := s.Refresh(ctx, entity); err != nil {
		log.Warn("refetch after mutation failed", "action", action, "error", err)
	}
}

// RecentAudit lists recent audit entries.
func (s *Service) RecentAudit(ctx context.Context, q AuditQuery) ([]AuditEntry, error) {
	return s.audit.Recent(ctx, q)
}

// ExportStatus reports the export limiter state.
func (s *Service) ExportStatus() ExportLimiterStatus { return s.limiter.Status() }

// WaitForExports blocks until in-flight exports finish or ctx ends.
func (s *Service) WaitForExports(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}

// Close cancels pending debounced refreshes.
func (s *Service) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.debouncers {
		d.Cancel()
	}
}
