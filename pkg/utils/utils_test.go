package utils

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"laundry-pickup/internal/auth"
	"laundry-pickup/internal/models"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newContext(target string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestHandleServiceError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantBody string
	}{
		{"forbidden hides detail", fmt.Errorf("orders.Get: %w", models.ErrForbidden), http.StatusForbidden, "not authorized"},
		{"not found", fmt.Errorf("repo: %w", models.ErrNotFound), http.StatusNotFound, "resource not found"},
		{"order taken", models.ErrOrderUnavailable, http.StatusConflict, "order no longer available"},
		{"shift", models.ErrShiftAlreadyActive, http.StatusConflict, "active shift"},
		{"price", models.ErrPriceMismatch, http.StatusUnprocessableEntity, "price"},
		{"validation", fmt.Errorf("%w: invalid phone", models.ErrValidation), http.StatusBadRequest, "invalid phone"},
		{"upstream hides detail", fmt.Errorf("%w: dial tcp 10.0.0.1", models.ErrUpstreamUnavailable), http.StatusBadGateway, "upstream provider unavailable"},
		{"unknown", errors.New("connection reset"), http.StatusInternalServerError, "internal error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, rec := newContext("/")
			require.NoError(t, HandleServiceError(c, tt.err))
			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.wantBody)
			assert.NotContains(t, rec.Body.String(), "10.0.0.1")
			assert.NotContains(t, rec.Body.String(), "connection reset")
		})
	}
}

func TestHandleServiceError_StripsOperationPrefixes(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "transition",
			err:  fmt.Errorf("service.Transition: %w", fmt.Errorf("lifecycle.Plan: pending -> washing: %w", models.ErrInvalidTransition)),
			want: `{"message":"invalid order status transition"}`,
		},
		{
			name: "validation keeps detail",
			err:  fmt.Errorf("service.Transition: %w", fmt.Errorf("%w: assign a driver first", models.ErrValidation)),
			want: `{"message":"validation failed: assign a driver first"}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, rec := newContext("/")
			require.NoError(t, HandleServiceError(c, tt.err))
			assert.JSONEq(t, tt.want, rec.Body.String())
		})
	}
}

func TestGetPageLimit(t *testing.T) {
	tests := []struct {
		query       string
		page, limit int
	}{
		{"/", 1, 20},
		{"/?page=3&limit=50", 3, 50},
		{"/?page=0&limit=0", 1, 20},
		{"/?page=-2&limit=500", 1, 20},
		{"/?page=abc&limit=x", 1, 20},
	}
	for _, tt := range tests {
		c, _ := newContext(tt.query)
		page, limit := GetPageLimit(c)
		assert.Equal(t, tt.page, page, tt.query)
		assert.Equal(t, tt.limit, limit, tt.query)
	}
	assert.Equal(t, 40, Offset(3, 20))
}

func TestExtractSession(t *testing.T) {
	c, _ := newContext("/")
	_, err := ExtractSession(c)
	assert.ErrorIs(t, err, models.ErrForbidden)

	c.Set(SessionKey, auth.Session{UserID: "u1", Role: auth.RoleDriver})
	s, err := ExtractSession(c)
	require.NoError(t, err)
	assert.Equal(t, auth.RoleDriver, s.Role)
}

func TestValidateStruct_CustomTags(t *testing.T) {
	valid := models.CreateOrderRequest{
		Items:         []models.CartLineRequest{{ProductID: "wash_dry", Quantity: 1}},
		PickupMode:    models.PickupChooseTime,
		PickupDate:    "2026-03-04",
		PickupStart:   "10:00",
		Address:       "Hauptstrasse 1, Berlin",
		Phone:         "+49 30 1234567",
		PaymentMethod: models.PaymentCash,
	}
	require.NoError(t, ValidateStruct(valid))

	badPhone := valid
	badPhone.Phone = "call me"
	assert.ErrorIs(t, ValidateStruct(badPhone), models.ErrValidation)

	badTime := valid
	badTime.PickupStart = "25:00"
	err := ValidateStruct(badTime)
	assert.ErrorIs(t, err, models.ErrValidation)
	assert.Contains(t, err.Error(), "pickup_start")

	badDate := valid
	badDate.PickupDate = "04.03.2026"
	assert.ErrorIs(t, ValidateStruct(badDate), models.ErrValidation)

	halfReturn := valid
	halfReturn.ReturnDate = "2026-03-05"
	assert.ErrorIs(t, ValidateStruct(halfReturn), models.ErrValidation)

	noItems := valid
	noItems.Items = nil
	assert.ErrorIs(t, ValidateStruct(noItems), models.ErrValidation)

	zeroQty := valid
	zeroQty.Items = []models.CartLineRequest{{ProductID: "wash_dry", Quantity: 0}}
	assert.ErrorIs(t, ValidateStruct(zeroQty), models.ErrValidation)
}

func TestAccessTokenRoundTrip(t *testing.T) {
	user := &models.User{ID: "u1", Email: "a@example.com", Role: "customer"}
	token, err := NewAccessToken("0123456789abcdef", user, time.Hour, time.Now())
	require.NoError(t, err)

	claims, err := ParseAccessToken("0123456789abcdef", token)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)

	_, err = ParseAccessToken("another-secret-123", token)
	assert.ErrorIs(t, err, models.ErrForbidden)

	expired, err := NewAccessToken("0123456789abcdef", user, time.Hour, time.Now().Add(-2*time.Hour))
	require.NoError(t, err)
	_, err = ParseAccessToken("0123456789abcdef", expired)
	assert.ErrorIs(t, err, models.ErrForbidden)
}
