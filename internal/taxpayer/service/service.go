package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	taxpayermetrics "taxregistry/internal/taxpayer/metrics"
	"taxregistry/internal/taxpayer/models"
	dErrors "taxregistry/pkg/domain-errors"
	"taxregistry/pkg/platform/sentinel"
	"taxregistry/pkg/requestcontext"
)

// Store is the persistence port. Implementations return copies and report
// a missing tid with sentinel.ErrNotFound.
type Store interface {
	Create(ctx context.Context, p models.Profile) (*models.TaxPayer, error)
	UpdateProfile(ctx context.Context, tid models.TID, p models.Profile) error
	Delete(ctx context.Context, tid models.TID) error
	AppendCapitalGain(ctx context.Context, tid models.TID, g models.CapitalGain) error
	FindByID(ctx context.Context, tid models.TID) (*models.TaxPayer, error)
	ListAll(ctx context.Context) ([]*models.TaxPayer, error)
}

// EventPublisher receives registry events after the change is committed.
type EventPublisher interface {
	Publish(ctx context.Context, event models.Event) error
}

// Service is the taxpayer registry. Mutations are serialized through a
// StoreTx; reads go straight to the store.
type Service struct {
	store     Store
	tx        StoreTx
	logger    *slog.Logger
	metrics   *taxpayermetrics.Metrics
	publisher EventPublisher
	tracer    trace.Tracer
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *taxpayermetrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithEventPublisher(publisher EventPublisher) Option {
	return func(s *Service) {
		s.publisher = publisher
	}
}

// WithTx replaces the in-memory mutation lock, e.g. with a database transaction.
func WithTx(tx StoreTx) Option {
	return func(s *Service) {
		if tx != nil {
			s.tx = tx
		}
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(s *Service) {
		if tracer != nil {
			s.tracer = tracer
		}
	}
}

func New(store Store, opts ...Option) *Service {
	s := &Service{
		store:  store,
		tx:     newInMemoryStoreTx(),
		tracer: noop.NewTracerProvider().Tracer("taxpayer"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateTaxPayer registers a new taxpayer with no capital gains and returns its tid.
func (s *Service) CreateTaxPayer(ctx context.Context, firstName, lastName, address string) (models.TID, error) {
	ctx, span := s.tracer.Start(ctx, "taxpayer.create")
	defer span.End()
	defer s.observe("create", time.Now())

	profile := models.Profile{FirstName: firstName, LastName: lastName, Address: address}
	var created *models.TaxPayer
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		tp, err := s.store.Create(ctx, profile)
		if err != nil {
			return err
		}
		created = tp
		return nil
	})
	if err != nil {
		return 0, failSpan(span, translateErr(err, "failed to create taxpayer"))
	}

	span.SetAttributes(attribute.String("taxpayer.tid", created.TID.String()))
	s.logAudit(ctx, models.EventTaxPayerCreated, "tid", created.TID)
	s.incrementCreated()
	s.publish(ctx, models.TaxPayerCreated{
		TID:        created.TID,
		FirstName:  created.FirstName,
		LastName:   created.LastName,
		Address:    created.Address,
		OccurredAt: requestcontext.Now(ctx).UTC(),
	})
	return created.TID, nil
}

// UpdateTaxPayer replaces all three profile fields. Capital gains are untouched.
func (s *Service) UpdateTaxPayer(ctx context.Context, tid models.TID, firstName, lastName, address string) error {
	ctx, span := s.startWithTID(ctx, "taxpayer.update", tid)
	defer span.End()
	defer s.observe("update", time.Now())

	profile := models.Profile{FirstName: firstName, LastName: lastName, Address: address}
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		return s.store.UpdateProfile(ctx, tid, profile)
	})
	if err != nil {
		return failSpan(span, translateErr(err, "failed to update taxpayer"))
	}

	s.logAudit(ctx, models.EventTaxPayerUpdated, "tid", tid)
	s.publish(ctx, models.TaxPayerUpdated{
		TID:        tid,
		FirstName:  firstName,
		LastName:   lastName,
		Address:    address,
		OccurredAt: requestcontext.Now(ctx).UTC(),
	})
	return nil
}

// DeleteTaxPayer removes the taxpayer and its capital gains. The tid is retired.
func (s *Service) DeleteTaxPayer(ctx context.Context, tid models.TID) error {
	ctx, span := s.startWithTID(ctx, "taxpayer.delete", tid)
	defer span.End()
	defer s.observe("delete", time.Now())

	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		return s.store.Delete(ctx, tid)
	})
	if err != nil {
		return failSpan(span, translateErr(err, "failed to delete taxpayer"))
	}

	s.logAudit(ctx, models.EventTaxPayerDeleted, "tid", tid)
	s.incrementDeleted()
	s.publish(ctx, models.TaxPayerDeleted{TID: tid, OccurredAt: requestcontext.Now(ctx).UTC()})
	return nil
}

// AddCapitalGain appends a gain to the end of the taxpayer's sequence.
// Any date and amount, including negative or zero, is accepted.
func (s *Service) AddCapitalGain(ctx context.Context, tid models.TID, date time.Time, amount float64) error {
	ctx, span := s.startWithTID(ctx, "taxpayer.add_capital_gain", tid)
	defer span.End()
	defer s.observe("add_capital_gain", time.Now())

	gain := models.CapitalGain{Date: date, Amount: amount}
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		return s.store.AppendCapitalGain(ctx, tid, gain)
	})
	if err != nil {
		return failSpan(span, translateErr(err, "failed to add capital gain"))
	}

	s.logAudit(ctx, models.EventCapitalGainAdded, "tid", tid)
	s.incrementGainAdded()
	s.publish(ctx, models.CapitalGainAdded{
		TID:        tid,
		Date:       date,
		Amount:     amount,
		OccurredAt: requestcontext.Now(ctx).UTC(),
	})
	return nil
}

// GetAllTaxPayers returns every live taxpayer in ascending tid order.
func (s *Service) GetAllTaxPayers(ctx context.Context) ([]*models.TaxPayer, error) {
	ctx, span := s.tracer.Start(ctx, "taxpayer.get_all")
	defer span.End()
	defer s.observe("get_all", time.Now())

	if err := ctx.Err(); err != nil {
		return nil, failSpan(span, translateErr(err, "failed to list taxpayers"))
	}
	all, err := s.store.ListAll(ctx)
	if err != nil {
		return nil, failSpan(span, translateErr(err, "failed to list taxpayers"))
	}
	span.SetAttributes(attribute.Int("taxpayer.count", len(all)))
	return all, nil
}

// SearchTaxPayerByTID returns a slice holding the matching taxpayer, or an
// empty slice when the tid is unknown. Absence is not an error.
func (s *Service) SearchTaxPayerByTID(ctx context.Context, tid models.TID) ([]*models.TaxPayer, error) {
	ctx, span := s.startWithTID(ctx, "taxpayer.search", tid)
	defer span.End()
	defer s.observe("search", time.Now())

	if err := ctx.Err(); err != nil {
		return nil, failSpan(span, translateErr(err, "failed to search taxpayers"))
	}
	tp, err := s.store.FindByID(ctx, tid)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return []*models.TaxPayer{}, nil
		}
		return nil, failSpan(span, translateErr(err, "failed to search taxpayers"))
	}
	return []*models.TaxPayer{tp}, nil
}

func (s *Service) startWithTID(ctx context.Context, name string, tid models.TID) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, name, trace.WithAttributes(attribute.String("taxpayer.tid", tid.String())))
}

// translateErr maps store and context failures to domain errors. Errors that
// already carry a domain code, such as a tx timeout, pass through unchanged.
func translateErr(err error, msg string) error {
	var domainErr *dErrors.Error
	switch {
	case errors.As(err, &domainErr):
		return err
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "taxpayer not found")
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return dErrors.Wrap(err, dErrors.CodeTimeout, msg)
	case errors.Is(err, sentinel.ErrUnavailable):
		return dErrors.Wrap(err, dErrors.CodeUnavailable, msg)
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, msg)
	}
}

func failSpan(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

func (s *Service) observe(operation string, start time.Time) {
	if s.metrics != nil {
		s.metrics.ObserveOperation(operation, start)
	}
}

func (s *Service) incrementCreated() {
	if s.metrics != nil {
		s.metrics.IncrementTaxPayerCreated()
	}
}

func (s *Service) incrementDeleted() {
	if s.metrics != nil {
		s.metrics.IncrementTaxPayerDeleted()
	}
}

func (s *Service) incrementGainAdded() {
	if s.metrics != nil {
		s.metrics.IncrementCapitalGainAdded()
	}
}
