package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"

	"taxregistry/internal/taxpayer/models"
	"taxregistry/internal/taxpayer/service"
	"taxregistry/internal/taxpayer/store"
	"taxregistry/pkg/platform/httputil"
)

type HandlerSuite struct {
	suite.Suite
	router http.Handler
}

func newRouter(st service.Store) http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	r := chi.NewRouter()
	New(service.New(st), logger).Register(r)
	return r
}

func (s *HandlerSuite) SetupTest() {
	s.router = newRouter(store.NewInMemory())
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) do(method, path, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *HandlerSuite) create(first, last, address string) models.TID {
	body, err := json.Marshal(TaxPayerRequest{FirstName: first, LastName: last, Address: address})
	s.Require().NoError(err)
	rec := s.do(http.MethodPost, "/taxpayers", string(body))
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())
	var resp CreateTaxPayerResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.TID
}

func (s *HandlerSuite) list(path string) []TaxPayerResponse {
	rec := s.do(http.MethodGet, path, "")
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
	var resp TaxPayerListResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.TaxPayers
}

func (s *HandlerSuite) errorCode(rec *httptest.ResponseRecorder) string {
	var resp httputil.ErrorResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Error
}

func (s *HandlerSuite) TestCreateReturnsTID() {
	s.Equal(models.TID(0), s.create("Ada", "Lovelace", "London"))
	s.Equal(models.TID(1), s.create("Charles", "Babbage", "London"))
}

func (s *HandlerSuite) TestCreateRejectsMalformedBody() {
	rec := s.do(http.MethodPost, "/taxpayers", `{"first_name":`)
	s.Equal(http.StatusBadRequest, rec.Code)
	s.Equal("bad_request", s.errorCode(rec))
}

func (s *HandlerSuite) TestGetAllListsInTIDOrder() {
	s.Empty(s.list("/taxpayers"))

	s.create("Ada", "Lovelace", "London")
	s.create("Grace", "Hopper", "Arlington")

	all := s.list("/taxpayers")
	s.Require().Len(all, 2)
	s.Equal("Ada", all[0].FirstName)
	s.Equal("Grace", all[1].FirstName)
	s.NotNil(all[0].CapitalGains)
}

func (s *HandlerSuite) TestSearch() {
	tid := s.create("Ada", "Lovelace", "London")

	found := s.list("/taxpayers/search?tid=" + tid.String())
	s.Require().Len(found, 1)
	s.Equal("Lovelace", found[0].LastName)

	s.Empty(s.list("/taxpayers/search?tid=404"))
}

func (s *HandlerSuite) TestSearchRejectsBadTID() {
	for _, q := range []string{"", "?tid=", "?tid=-1", "?tid=ada"} {
		rec := s.do(http.MethodGet, "/taxpayers/search"+q, "")
		s.Equal(http.StatusBadRequest, rec.Code, q)
	}
}

func (s *HandlerSuite) TestUpdate() {
	tid := s.create("Ada", "Lovelace", "London")

	rec := s.do(http.MethodPut, "/taxpayers/"+tid.String(), `{"first_name":"Augusta","last_name":"King","address":"Ockham"}`)
	s.Require().Equal(http.StatusNoContent, rec.Code)

	found := s.list("/taxpayers/search?tid=" + tid.String())
	s.Require().Len(found, 1)
	s.Equal("Augusta", found[0].FirstName)
	s.Equal("King", found[0].LastName)
	s.Equal("Ockham", found[0].Address)
}

func (s *HandlerSuite) TestUpdateUnknownTIDIsNotFound() {
	rec := s.do(http.MethodPut, "/taxpayers/7", `{"first_name":"x"}`)
	s.Equal(http.StatusNotFound, rec.Code)
	s.Equal("not_found", s.errorCode(rec))
}

func (s *HandlerSuite) TestDelete() {
	tid := s.create("Ada", "Lovelace", "London")

	s.Equal(http.StatusNoContent, s.do(http.MethodDelete, "/taxpayers/"+tid.String(), "").Code)
	s.Equal(http.StatusNotFound, s.do(http.MethodDelete, "/taxpayers/"+tid.String(), "").Code)
	s.Empty(s.list("/taxpayers"))
}

func (s *HandlerSuite) TestBadPathTID() {
	s.Equal(http.StatusBadRequest, s.do(http.MethodDelete, "/taxpayers/abc", "").Code)
	s.Equal(http.StatusBadRequest, s.do(http.MethodPut, "/taxpayers/-3", `{}`).Code)
	s.Equal(http.StatusBadRequest, s.do(http.MethodPost, "/taxpayers/x/capital-gains", `{}`).Code)
}

func (s *HandlerSuite) TestAddCapitalGainKeepsOrderAndNanoseconds() {
	tid := s.create("Ada", "Lovelace", "London")
	path := "/taxpayers/" + tid.String() + "/capital-gains"

	s.Require().Equal(http.StatusNoContent,
		s.do(http.MethodPost, path, `{"date":"2024-03-01T12:00:00.123456789Z","amount":1500.25}`).Code)
	s.Require().Equal(http.StatusNoContent,
		s.do(http.MethodPost, path, `{"date":"1999-12-31T23:59:59Z","amount":-20}`).Code)

	found := s.list("/taxpayers/search?tid=" + tid.String())
	s.Require().Len(found, 1)
	gains := found[0].CapitalGains
	s.Require().Len(gains, 2)
	s.True(gains[0].Date.Equal(time.Date(2024, 3, 1, 12, 0, 0, 123456789, time.UTC)))
	s.InDelta(1500.25, gains[0].Amount, 0)
	s.InDelta(-20, gains[1].Amount, 0)
}

func (s *HandlerSuite) TestAddCapitalGainRequiresFields() {
	tid := s.create("Ada", "Lovelace", "London")
	path := "/taxpayers/" + tid.String() + "/capital-gains"

	s.Equal(http.StatusBadRequest, s.do(http.MethodPost, path, `{"amount":1}`).Code)
	s.Equal(http.StatusBadRequest, s.do(http.MethodPost, path, `{"date":"2024-01-01T00:00:00Z"}`).Code)
	s.Equal(http.StatusBadRequest, s.do(http.MethodPost, path, `{"date":"yesterday","amount":1}`).Code)
}

func (s *HandlerSuite) TestAddCapitalGainUnknownTID() {
	rec := s.do(http.MethodPost, "/taxpayers/55/capital-gains", `{"date":"2024-01-01T00:00:00Z","amount":1}`)
	s.Equal(http.StatusNotFound, rec.Code)
}

type brokenSequence struct{}

func (brokenSequence) Next(context.Context) (models.TID, error) {
	return 0, errors.New("sequence offline")
}

func TestStoreFaultsMapToServerErrors(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	body := `{"first_name":"Ada","last_name":"Lovelace","address":"London"}`

	t.Run("internal", func(t *testing.T) {
		r := chi.NewRouter()
		New(service.New(store.NewInMemory(store.WithSequence(brokenSequence{}))), logger).Register(r)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/taxpayers", bytes.NewBufferString(body)))
		if rec.Code != http.StatusInternalServerError {
			t.Fatalf("status = %d, want 500", rec.Code)
		}
	})

	t.Run("capacity reached", func(t *testing.T) {
		r := newRouter(store.NewInMemory(store.WithCapacity(1)))
		for i, want := range []int{http.StatusCreated, http.StatusServiceUnavailable} {
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/taxpayers", bytes.NewBufferString(body)))
			if rec.Code != want {
				t.Fatalf("create %d: status = %d, want %d", i, rec.Code, want)
			}
		}
	})
}
