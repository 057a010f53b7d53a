package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/mock/gomock"

	"taxregistry/internal/taxpayer/models"
	dErrors "taxregistry/pkg/domain-errors"
	"taxregistry/pkg/platform/sentinel"
	"taxregistry/pkg/requestcontext"
)

var adaProfile = models.Profile{FirstName: "Ada", LastName: "Lovelace", Address: "London"}

func (s *ServiceSuite) TestCreateTaxPayer() {
	ctx := context.Background()

	s.Run("returns allocated tid and publishes created event", func() {
		s.mockStore.EXPECT().Create(gomock.Any(), adaProfile).
			Return(models.NewTaxPayer(0, adaProfile), nil)
		s.mockPublisher.EXPECT().Publish(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, event models.Event) error {
				created, ok := event.(models.TaxPayerCreated)
				s.Require().True(ok)
				s.Equal(models.TID(0), created.TID)
				s.Equal("Lovelace", created.LastName)
				return nil
			})

		tid, err := s.service.CreateTaxPayer(ctx, "Ada", "Lovelace", "London")

		s.Require().NoError(err)
		s.Equal(models.TID(0), tid)
		s.InDelta(1, testutil.ToFloat64(s.metrics.TaxPayersCreated), 0)
	})

	s.Run("empty fields are accepted as given", func() {
		s.mockStore.EXPECT().Create(gomock.Any(), models.Profile{}).
			Return(models.NewTaxPayer(1, models.Profile{}), nil)
		s.mockPublisher.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(nil)

		tid, err := s.service.CreateTaxPayer(ctx, "", "", "")

		s.Require().NoError(err)
		s.Equal(models.TID(1), tid)
	})

	s.Run("store fault is internal and publishes nothing", func() {
		s.mockStore.EXPECT().Create(gomock.Any(), adaProfile).
			Return(nil, errors.New("disk on fire"))

		_, err := s.service.CreateTaxPayer(ctx, "Ada", "Lovelace", "London")

		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
		s.Equal("failed to create taxpayer", err.Error())
		s.Equal(codes.Error, s.endedSpan("taxpayer.create").Status().Code)
	})

	s.Run("full store is unavailable", func() {
		s.mockStore.EXPECT().Create(gomock.Any(), adaProfile).
			Return(nil, fmt.Errorf("registry holds 1 taxpayers: %w", sentinel.ErrUnavailable))

		_, err := s.service.CreateTaxPayer(ctx, "Ada", "Lovelace", "London")

		s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))
	})

	s.Run("cancelled context never reaches the store", func() {
		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		_, err := s.service.CreateTaxPayer(cancelled, "Ada", "Lovelace", "London")

		s.True(dErrors.HasCode(err, dErrors.CodeTimeout))
	})
}

func (s *ServiceSuite) TestCreateTaxPayerPublishFailureDoesNotFailCall() {
	s.mockStore.EXPECT().Create(gomock.Any(), adaProfile).
		Return(models.NewTaxPayer(4, adaProfile), nil)
	s.mockPublisher.EXPECT().Publish(gomock.Any(), gomock.Any()).
		Return(errors.New("broker unreachable"))

	tid, err := s.service.CreateTaxPayer(context.Background(), "Ada", "Lovelace", "London")

	s.Require().NoError(err)
	s.Equal(models.TID(4), tid)
}

func (s *ServiceSuite) TestUpdateTaxPayer() {
	ctx := context.Background()
	updated := models.Profile{FirstName: "Augusta", LastName: "King", Address: "Ockham"}

	s.Run("writes all three fields", func() {
		s.mockStore.EXPECT().UpdateProfile(gomock.Any(), models.TID(3), updated).Return(nil)
		s.mockPublisher.EXPECT().Publish(gomock.Any(), gomock.AssignableToTypeOf(models.TaxPayerUpdated{})).Return(nil)

		s.Require().NoError(s.service.UpdateTaxPayer(ctx, 3, "Augusta", "King", "Ockham"))
	})

	s.Run("missing tid is not found", func() {
		s.mockStore.EXPECT().UpdateProfile(gomock.Any(), models.TID(9), updated).Return(sentinel.ErrNotFound)

		err := s.service.UpdateTaxPayer(ctx, 9, "Augusta", "King", "Ockham")

		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
		s.Equal("taxpayer not found", err.Error())
	})
}

func (s *ServiceSuite) TestDeleteTaxPayer() {
	ctx := context.Background()

	s.Run("deletes and counts", func() {
		s.mockStore.EXPECT().Delete(gomock.Any(), models.TID(2)).Return(nil)
		s.mockPublisher.EXPECT().Publish(gomock.Any(), gomock.AssignableToTypeOf(models.TaxPayerDeleted{})).Return(nil)

		s.Require().NoError(s.service.DeleteTaxPayer(ctx, 2))
		s.InDelta(1, testutil.ToFloat64(s.metrics.TaxPayersDeleted), 0)
	})

	s.Run("missing tid is not found and not counted", func() {
		s.mockStore.EXPECT().Delete(gomock.Any(), models.TID(2)).Return(sentinel.ErrNotFound)

		err := s.service.DeleteTaxPayer(ctx, 2)

		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
		s.InDelta(1, testutil.ToFloat64(s.metrics.TaxPayersDeleted), 0)
	})
}

func (s *ServiceSuite) TestAddCapitalGain() {
	ctx := context.Background()
	date := time.Date(2024, 4, 5, 9, 30, 0, 123, time.UTC)

	s.Run("appends negative amounts unchanged", func() {
		s.mockStore.EXPECT().
			AppendCapitalGain(gomock.Any(), models.TID(1), models.CapitalGain{Date: date, Amount: -42.5}).
			Return(nil)
		s.mockPublisher.EXPECT().Publish(gomock.Any(), gomock.AssignableToTypeOf(models.CapitalGainAdded{})).Return(nil)

		s.Require().NoError(s.service.AddCapitalGain(ctx, 1, date, -42.5))
		s.InDelta(1, testutil.ToFloat64(s.metrics.CapitalGainsAdded), 0)
	})

	s.Run("missing tid is not found", func() {
		s.mockStore.EXPECT().AppendCapitalGain(gomock.Any(), models.TID(7), gomock.Any()).Return(sentinel.ErrNotFound)

		err := s.service.AddCapitalGain(ctx, 7, date, 1)

		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *ServiceSuite) TestGetAllTaxPayers() {
	ctx := context.Background()

	s.Run("returns store listing", func() {
		all := []*models.TaxPayer{models.NewTaxPayer(0, adaProfile), models.NewTaxPayer(2, adaProfile)}
		s.mockStore.EXPECT().ListAll(gomock.Any()).Return(all, nil)

		got, err := s.service.GetAllTaxPayers(ctx)

		s.Require().NoError(err)
		s.Equal(all, got)
	})

	s.Run("store fault is internal", func() {
		s.mockStore.EXPECT().ListAll(gomock.Any()).Return(nil, errors.New("connection reset"))

		_, err := s.service.GetAllTaxPayers(ctx)

		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	})
}

func (s *ServiceSuite) TestSearchTaxPayerByTID() {
	ctx := context.Background()

	s.Run("present tid yields one element", func() {
		tp := models.NewTaxPayer(5, adaProfile)
		s.mockStore.EXPECT().FindByID(gomock.Any(), models.TID(5)).Return(tp, nil)

		got, err := s.service.SearchTaxPayerByTID(ctx, 5)

		s.Require().NoError(err)
		s.Equal([]*models.TaxPayer{tp}, got)
	})

	s.Run("absent tid yields empty slice, not an error", func() {
		s.mockStore.EXPECT().FindByID(gomock.Any(), models.TID(6)).Return(nil, sentinel.ErrNotFound)

		got, err := s.service.SearchTaxPayerByTID(ctx, 6)

		s.Require().NoError(err)
		s.NotNil(got)
		s.Empty(got)
	})

	s.Run("store fault is internal", func() {
		s.mockStore.EXPECT().FindByID(gomock.Any(), models.TID(6)).Return(nil, errors.New("boom"))

		_, err := s.service.SearchTaxPayerByTID(ctx, 6)

		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	})
}

func (s *ServiceSuite) TestEventsCarryRequestTime() {
	pinned := time.Date(2024, 3, 1, 12, 0, 0, 42, time.FixedZone("CET", 3600))
	ctx := requestcontext.WithTime(context.Background(), pinned)
	var events []models.Event
	record := func(_ context.Context, event models.Event) error {
		events = append(events, event)
		return nil
	}

	s.mockStore.EXPECT().Create(gomock.Any(), adaProfile).Return(models.NewTaxPayer(3, adaProfile), nil)
	s.mockStore.EXPECT().UpdateProfile(gomock.Any(), models.TID(3), adaProfile).Return(nil)
	s.mockStore.EXPECT().AppendCapitalGain(gomock.Any(), models.TID(3), gomock.Any()).Return(nil)
	s.mockStore.EXPECT().Delete(gomock.Any(), models.TID(3)).Return(nil)
	s.mockPublisher.EXPECT().Publish(gomock.Any(), gomock.Any()).DoAndReturn(record).Times(4)

	_, err := s.service.CreateTaxPayer(ctx, "Ada", "Lovelace", "London")
	s.Require().NoError(err)
	s.Require().NoError(s.service.UpdateTaxPayer(ctx, 3, "Ada", "Lovelace", "London"))
	s.Require().NoError(s.service.AddCapitalGain(ctx, 3, time.Unix(0, 1), 5))
	s.Require().NoError(s.service.DeleteTaxPayer(ctx, 3))

	want := pinned.UTC()
	s.Require().Len(events, 4)
	s.Equal(want, events[0].(models.TaxPayerCreated).OccurredAt)
	s.Equal(want, events[1].(models.TaxPayerUpdated).OccurredAt)
	s.Equal(want, events[2].(models.CapitalGainAdded).OccurredAt)
	s.Equal(want, events[3].(models.TaxPayerDeleted).OccurredAt)
}
