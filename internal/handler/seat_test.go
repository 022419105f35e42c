package handler_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/movie-booking-core/internal/handler"
	"github.com/iliyamo/movie-booking-core/internal/model"
	"github.com/iliyamo/movie-booking-core/internal/repository"
	"github.com/iliyamo/movie-booking-core/internal/service"
)

const seatTTL = 10 * time.Minute

func newSeatHandler(t *testing.T) (*handler.SeatHandler, redismock.ClientMock) {
	t.Helper()
	rdb, mock := redismock.NewClientMock()
	locks := repository.NewSeatLockRepo(rdb, seatTTL)
	avail := repository.NewAvailabilityRepo(rdb, nil, nil, 30*time.Second, time.Hour)
	return handler.NewSeatHandler(service.NewSeatManager(locks, avail)), mock
}

// reserveRequest builds an authenticated echo context for the reserve
// route, bypassing the JWT middleware the way handlers see it in
// production: with user_id already placed in the context.
func reserveRequest(e *echo.Echo, body string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(http.MethodPost, "/v1/showtimes/7/reserve", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath("/v1/showtimes/:id/reserve")
	c.SetParamNames("id")
	c.SetParamValues("7")
	c.Set("user_id", uint64(42))
	return c, rec
}

func layoutJSON(t *testing.T) string {
	t.Helper()
	raw, err := json.Marshal(model.GenerateLayout(2, 13))
	require.NoError(t, err)
	return string(raw)
}

func availableJSON(t *testing.T) string {
	t.Helper()
	raw, err := json.Marshal(model.LayoutSeatIDs(model.GenerateLayout(2, 13)))
	require.NoError(t, err)
	return string(raw)
}

func TestReserveEndpointSuccess(t *testing.T) {
	h, mock := newSeatHandler(t)
	e := echo.New()

	mock.ExpectGet("seat_layout:7").SetVal(layoutJSON(t))
	mock.ExpectGet("available_seats:7").SetVal(availableJSON(t))
	mock.ExpectSetNX("seatlock:7:A1", "42", seatTTL).SetVal(true)
	mock.ExpectSAdd("reserved_seats:7", "A1").SetVal(1)
	mock.ExpectExpire("reserved_seats:7", seatTTL).SetVal(true)
	mock.Regexp().ExpectSet("seat_reservation:7:42", `.+`, seatTTL).SetVal("OK")

	c, rec := reserveRequest(e, `{"seat_ids":["A1"]}`)
	require.NoError(t, h.Reserve(c))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"reserved_seats":["A1"]`)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReserveEndpointConflictIs409(t *testing.T) {
	h, mock := newSeatHandler(t)
	e := echo.New()

	mock.ExpectGet("seat_layout:7").SetVal(layoutJSON(t))
	mock.ExpectGet("available_seats:7").SetVal(availableJSON(t))
	mock.ExpectSetNX("seatlock:7:A1", "42", seatTTL).SetVal(false)
	mock.ExpectGet("seatlock:7:A1").SetVal("99")

	c, rec := reserveRequest(e, `{"seat_ids":["A1"]}`)
	require.NoError(t, h.Reserve(c))

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), `"unavailable_seats":["A1"]`)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReserveEndpointRejectsBadInput(t *testing.T) {
	h, mock := newSeatHandler(t)
	e := echo.New()

	// Unknown seat: 400 with the offending id, nothing locked.
	mock.ExpectGet("seat_layout:7").SetVal(layoutJSON(t))
	c, rec := reserveRequest(e, `{"seat_ids":["Z99"]}`)
	require.NoError(t, h.Reserve(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Empty list: 400 before any store access.
	c, rec = reserveRequest(e, `{"seat_ids":[]}`)
	require.NoError(t, h.Reserve(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReserveEndpointRequiresUser(t *testing.T) {
	h, _ := newSeatHandler(t)
	e := echo.New()

	req := httptest.NewRequest(http.MethodPost, "/v1/showtimes/7/reserve", strings.NewReader(`{"seat_ids":["A1"]}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("7")

	require.NoError(t, h.Reserve(c))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestReleaseEndpointIsIdempotent(t *testing.T) {
	h, mock := newSeatHandler(t)
	e := echo.New()

	// Nothing held: the release still answers 200.
	mock.ExpectGet("seat_reservation:7:42").RedisNil()
	mock.ExpectDel("seat_reservation:7:42").SetVal(0)

	req := httptest.NewRequest(http.MethodPost, "/v1/showtimes/7/release", strings.NewReader(`{}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("7")
	c.Set("user_id", uint64(42))

	require.NoError(t, h.Release(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, mock.ExpectationsWereMet())
}
