package reliefweb_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MSF-Collaborate/msf-toolbox/apierror"
	"github.com/MSF-Collaborate/msf-toolbox/reliefweb"
)

func setupTestServer(t *testing.T, handler http.HandlerFunc, opts ...reliefweb.Option) *reliefweb.Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	opts = append([]reliefweb.Option{
		reliefweb.WithBaseURL(server.URL),
		reliefweb.WithAppName("toolbox-tests"),
	}, opts...)

	client, err := reliefweb.New(opts...)
	require.NoError(t, err)
	return client
}

func validQuery() *reliefweb.ReportQuery {
	return &reliefweb.ReportQuery{
		StartDate: "2024-01-01",
		EndDate:   "2024-01-31",
		Value:     "cholera",
	}
}

func TestListReports(t *testing.T) {
	t.Run("builds filters and flattens records", func(t *testing.T) {
		client := setupTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/reports", r.URL.Path)
			assert.Equal(t, "toolbox-tests", r.URL.Query().Get("appname"))

			var body map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))

			assert.Equal(t, "latest", body["preset"])
			assert.EqualValues(t, 50, body["limit"])

			query := body["query"].(map[string]any)
			assert.Equal(t, "cholera", query["value"])
			assert.Equal(t, "OR", query["operator"])
			assert.Equal(t, []any{"body", "title"}, query["fields"])

			filter := body["filter"].(map[string]any)
			assert.Equal(t, "AND", filter["operator"])
			conditions := filter["conditions"].([]any)
			require.Len(t, conditions, 3)

			dateCond := conditions[0].(map[string]any)
			assert.Equal(t, "date.original", dateCond["field"])
			dateValue := dateCond["value"].(map[string]any)
			assert.Equal(t, "2024-01-01T00:00:00+00:00", dateValue["from"])
			assert.Equal(t, "2024-01-31T23:59:59+00:00", dateValue["to"])

			countryCond := conditions[1].(map[string]any)
			assert.Equal(t, "country.iso3", countryCond["field"])
			assert.Equal(t, []any{"KEN"}, countryCond["value"])

			langCond := conditions[2].(map[string]any)
			assert.Equal(t, "language.code", langCond["field"])
			assert.Equal(t, []any{"en"}, langCond["value"])

			_, err := w.Write([]byte(`{"data": [{
				"id": "4567",
				"href": "https://api.reliefweb.int/v1/reports/4567",
				"fields": {
					"title": "Cholera Situation Report",
					"source": [{"name": "WHO"}, {"name": "UNICEF"}],
					"language": [{"name": "English"}],
					"date": {"original": "2024-01-15T00:00:00+00:00"}
				}
			}]}`))
			assert.NoError(t, err)
		})

		query := validQuery()
		query.Countries = []string{"KEN"}

		reports, err := client.ListReports(context.Background(), query)
		require.NoError(t, err)
		require.Len(t, reports, 1)

		assert.Equal(t, "4567", reports[0].ID)
		assert.Equal(t, "Cholera Situation Report", reports[0].Title)
		assert.Equal(t, "WHO / UNICEF", reports[0].SourceName)
		assert.Equal(t, "English", reports[0].Language)
		assert.Equal(t, "2024-01-15T00:00:00+00:00", reports[0].Date)
		assert.Equal(t, "https://api.reliefweb.int/v1/reports/4567", reports[0].URL)
	})

	t.Run("raw records keep the API shape", func(t *testing.T) {
		client := setupTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			_, err := w.Write([]byte(`{"data": [{"id": "1", "href": "h", "fields": {"title": "T"}}]}`))
			assert.NoError(t, err)
		})

		records, err := client.ListReportsRaw(context.Background(), validQuery())
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, "1", records[0].ID)
		assert.JSONEq(t, `{"title": "T"}`, string(records[0].Fields))
	})

	t.Run("invalid operator", func(t *testing.T) {
		client, err := reliefweb.New()
		require.NoError(t, err)

		query := validQuery()
		query.Operator = "XOR"
		_, err = client.ListReports(context.Background(), query)
		require.Error(t, err)

		var validationErr *apierror.ValidationError
		require.ErrorAs(t, err, &validationErr)
	})

	t.Run("invalid dates", func(t *testing.T) {
		client, err := reliefweb.New()
		require.NoError(t, err)

		query := validQuery()
		query.EndDate = "31/01/2024"
		_, err = client.ListReports(context.Background(), query)
		require.Error(t, err)

		var validationErr *apierror.ValidationError
		require.ErrorAs(t, err, &validationErr)
	})

	t.Run("language filter skipped when all languages requested", func(t *testing.T) {
		client := setupTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			var body map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))

			conditions := body["filter"].(map[string]any)["conditions"].([]any)
			require.Len(t, conditions, 1)
			assert.Equal(t, "date.original", conditions[0].(map[string]any)["field"])

			_, err := w.Write([]byte(`{"data": []}`))
			assert.NoError(t, err)
		})

		query := validQuery()
		query.IncludeAllLanguages = true
		_, err := client.ListReports(context.Background(), query)
		require.NoError(t, err)
	})

	t.Run("server error", func(t *testing.T) {
		client := setupTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		})

		_, err := client.ListReports(context.Background(), validQuery())
		require.Error(t, err)

		var serverErr *apierror.ServerError
		require.ErrorAs(t, err, &serverErr)
	})
}

func TestGetReport(t *testing.T) {
	t.Run("follows href with appname and profile", func(t *testing.T) {
		var reportURL string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/reports/4567", r.URL.Path)
			assert.Equal(t, "toolbox-tests", r.URL.Query().Get("appname"))
			assert.Equal(t, "full", r.URL.Query().Get("profile"))

			_, err := w.Write([]byte(`{"data": [{"id": "4567", "fields": {"title": "Full Report"}}]}`))
			assert.NoError(t, err)
		}))
		t.Cleanup(server.Close)
		reportURL = server.URL + "/reports/4567"

		client, err := reliefweb.New(reliefweb.WithAppName("toolbox-tests"))
		require.NoError(t, err)

		data, err := client.GetReport(context.Background(), reportURL)
		require.NoError(t, err)
		require.Len(t, data, 1)
		assert.Equal(t, "4567", data[0]["id"])
	})

	t.Run("empty href", func(t *testing.T) {
		client, err := reliefweb.New()
		require.NoError(t, err)

		_, err = client.GetReport(context.Background(), "")
		require.Error(t, err)
	})
}
