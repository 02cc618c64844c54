package server

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"splitpay/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHumanizeParam(t *testing.T) {
	tests := []struct {
		param    string
		expected string
	}{
		{"id", "ID"},
		{"userId", "user ID"},
		{"debtId", "debt ID"},
		{"requestId", "request ID"},
		{"somethingElse", "somethingElse"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, humanizeParam(tt.param), "param %q", tt.param)
	}
}

func TestParseID(t *testing.T) {
	s := &Server{}
	app := fiber.New()
	app.Get("/items/:itemId", func(c *fiber.Ctx) error {
		id, err := s.parseID(c, "itemId")
		if err != nil {
			return nil
		}
		return c.JSON(fiber.Map{"id": id})
	})

	tests := []struct {
		path           string
		expectedStatus int
	}{
		{"/items/42", http.StatusOK},
		{"/items/0", http.StatusBadRequest},
		{"/items/-3", http.StatusBadRequest},
		{"/items/abc", http.StatusBadRequest},
	}

	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, tt.path, nil)
		resp, err := app.Test(req)
		require.NoError(t, err)
		_ = resp.Body.Close()
		assert.Equal(t, tt.expectedStatus, resp.StatusCode, "path %s", tt.path)
	}
}

func TestParsePagination(t *testing.T) {
	app := fiber.New()
	var got Pagination
	app.Get("/list", func(c *fiber.Ctx) error {
		got = parsePagination(c, 20)
		return c.SendStatus(http.StatusOK)
	})

	tests := []struct {
		query    string
		expected Pagination
	}{
		{"", Pagination{Limit: 20, Offset: 0}},
		{"?limit=5&offset=10", Pagination{Limit: 5, Offset: 10}},
		{"?limit=9999", Pagination{Limit: maxPaginationLimit, Offset: 0}},
		{"?limit=-1&offset=-5", Pagination{Limit: 20, Offset: 0}},
	}

	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/list"+tt.query, nil)
		resp, err := app.Test(req)
		require.NoError(t, err)
		_ = resp.Body.Close()
		assert.Equal(t, tt.expected, got, "query %q", tt.query)
	}
}

func TestRespondForAppError(t *testing.T) {
	tests := []struct {
		name           string
		err            error
		expectedStatus int
	}{
		{"Not found", models.NewNotFoundError("User", 3), http.StatusNotFound},
		{"Validation", models.NewValidationError("bad input"), http.StatusBadRequest},
		{"Unauthorized", models.NewUnauthorizedError("nope"), http.StatusUnauthorized},
		{"Duplicate request", models.NewDuplicateRequestError(), http.StatusConflict},
		{"Already friends", models.NewAlreadyFriendsError(), http.StatusConflict},
		{"Pending debts", models.NewPendingDebtsError(100, 50), http.StatusConflict},
		{"Plain error", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := fiber.New()
			app.Get("/", func(c *fiber.Ctx) error {
				return respondForAppError(c, tt.err)
			})

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			resp, err := app.Test(req)
			require.NoError(t, err)
			_ = resp.Body.Close()
			assert.Equal(t, tt.expectedStatus, resp.StatusCode)
		})
	}
}
