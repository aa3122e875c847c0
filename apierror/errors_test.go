package apierror_test

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MSF-Collaborate/msf-toolbox/apierror"
)

func TestParse(t *testing.T) {
	t.Run("classifies by status code", func(t *testing.T) {
		tests := []struct {
			name       string
			statusCode int
			target     any
		}{
			{"unauthorized", http.StatusUnauthorized, new(*apierror.AuthenticationError)},
			{"forbidden", http.StatusForbidden, new(*apierror.AuthenticationError)},
			{"not found", http.StatusNotFound, new(*apierror.NotFoundError)},
			{"bad request", http.StatusBadRequest, new(*apierror.ValidationError)},
			{"too many requests", http.StatusTooManyRequests, new(*apierror.RateLimitError)},
			{"server error", http.StatusInternalServerError, new(*apierror.ServerError)},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				err := apierror.Parse(tt.statusCode, []byte(`{"message": "nope"}`), http.Header{})
				require.ErrorAs(t, err, tt.target)

				var apiErr *apierror.APIError
				require.ErrorAs(t, err, &apiErr)
				assert.Equal(t, tt.statusCode, apiErr.StatusCode)
				assert.Equal(t, "nope", apiErr.Message)
			})
		}
	})

	t.Run("string status field in the envelope", func(t *testing.T) {
		// DHIS2 conflict responses carry "status" as a string.
		body := []byte(`{"httpStatus": "Conflict", "status": "ERROR", "message": "Data element not found"}`)

		err := apierror.Parse(http.StatusConflict, body, http.Header{})

		var apiErr *apierror.APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, "Data element not found", apiErr.Message)
		assert.Equal(t, http.StatusConflict, apiErr.StatusCode)
	})

	t.Run("plain text body becomes the message", func(t *testing.T) {
		err := apierror.Parse(http.StatusBadGateway, []byte("upstream timed out"), http.Header{})

		var apiErr *apierror.APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, "upstream timed out", apiErr.Message)
	})

	t.Run("request ID from header wins over the body", func(t *testing.T) {
		headers := http.Header{}
		headers.Set("X-Request-ID", "req-header")

		err := apierror.Parse(http.StatusInternalServerError,
			[]byte(`{"message": "boom", "requestId": "req-body"}`), headers)

		var apiErr *apierror.APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, "req-header", apiErr.RequestID)
	})

	t.Run("validation fields", func(t *testing.T) {
		body := []byte(`{"message": "invalid request", "fields": {"name": "required"}}`)

		err := apierror.Parse(http.StatusBadRequest, body, http.Header{})

		var validationErr *apierror.ValidationError
		require.ErrorAs(t, err, &validationErr)
		assert.Equal(t, "required", validationErr.Fields["name"])
	})

	t.Run("retry after seconds", func(t *testing.T) {
		headers := http.Header{}
		headers.Set("Retry-After", "30")

		err := apierror.Parse(http.StatusTooManyRequests, []byte(`{"message": "slow down"}`), headers)

		var rateErr *apierror.RateLimitError
		require.ErrorAs(t, err, &rateErr)
		assert.Equal(t, 30*time.Second, rateErr.RetryAfter)
	})
}
