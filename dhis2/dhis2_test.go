package dhis2_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MSF-Collaborate/msf-toolbox/apierror"
	"github.com/MSF-Collaborate/msf-toolbox/dhis2"
)

func setupTestServer(t *testing.T, handler http.HandlerFunc) *dhis2.Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := dhis2.New(
		dhis2.WithServerURL(server.URL),
		dhis2.WithBasicAuth("admin", "district"),
	)
	require.NoError(t, err)
	return client
}

func TestNew(t *testing.T) {
	t.Run("error without server URL", func(t *testing.T) {
		_, err := dhis2.New(dhis2.WithBasicAuth("admin", "district"))
		require.Error(t, err)
		assert.ErrorIs(t, err, dhis2.ErrNoServerURL)
	})

	t.Run("error without credentials", func(t *testing.T) {
		_, err := dhis2.New(dhis2.WithServerURL("https://play.dhis2.org/demo"))
		require.Error(t, err)
		assert.ErrorIs(t, err, dhis2.ErrNoCredentials)
	})

	t.Run("basic auth header", func(t *testing.T) {
		client := setupTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			username, password, ok := r.BasicAuth()
			assert.True(t, ok)
			assert.Equal(t, "admin", username)
			assert.Equal(t, "district", password)
			_, err := w.Write([]byte(`{"dataSets": []}`))
			assert.NoError(t, err)
		})

		_, err := client.Metadata.ListDataSets(context.Background(), nil)
		require.NoError(t, err)
	})

	t.Run("personal access token takes precedence", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "ApiToken d2pat_secret", r.Header.Get("Authorization"))
			_, err := w.Write([]byte(`{"dataSets": []}`))
			assert.NoError(t, err)
		}))
		t.Cleanup(server.Close)

		client, err := dhis2.New(
			dhis2.WithServerURL(server.URL),
			dhis2.WithBasicAuth("admin", "district"),
			dhis2.WithPersonalAccessToken("d2pat_secret"),
		)
		require.NoError(t, err)

		_, err = client.Metadata.ListDataSets(context.Background(), nil)
		require.NoError(t, err)
	})
}

func TestListOrganisationUnits(t *testing.T) {
	client := setupTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/organisationUnits", r.URL.Path)
		assert.Equal(t, "id,name,path", r.URL.Query().Get("fields"))
		_, err := w.Write([]byte(`{"organisationUnits": [
			{"id": "ImspTQPwCqd", "name": "Sierra Leone", "path": "/ImspTQPwCqd"},
			{"id": "O6uvpzGd5pu", "name": "Bo", "path": "/ImspTQPwCqd/O6uvpzGd5pu"}
		]}`))
		assert.NoError(t, err)
	})

	units, err := client.Metadata.ListOrganisationUnits(context.Background(), dhis2.Params{
		"fields": "id,name,path",
	})
	require.NoError(t, err)
	require.Len(t, units, 2)
	assert.Equal(t, "Bo", units[1].Name)
	assert.Equal(t, "/ImspTQPwCqd/O6uvpzGd5pu", units[1].Path)
}

func TestAddOrganisationUnitNamePath(t *testing.T) {
	client := setupTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "false", r.URL.Query().Get("paging"))
		assert.Equal(t, "id,name", r.URL.Query().Get("fields"))
		_, err := w.Write([]byte(`{"organisationUnits": [
			{"id": "ImspTQPwCqd", "name": "Sierra Leone"},
			{"id": "O6uvpzGd5pu", "name": "Bo"},
			{"id": "YuQRtpLP10I", "name": "Badjia"}
		]}`))
		assert.NoError(t, err)
	})

	units := []dhis2.OrganisationUnit{
		{ID: "YuQRtpLP10I", Name: "Badjia", Path: "/ImspTQPwCqd/O6uvpzGd5pu/YuQRtpLP10I"},
		{ID: "ImspTQPwCqd", Name: "Sierra Leone", Path: "/ImspTQPwCqd"},
	}
	require.NoError(t, client.Metadata.AddOrganisationUnitNamePath(context.Background(), units))

	assert.Equal(t, "Sierra Leone > Bo > Badjia", units[0].NamePath)
	assert.Equal(t, "Sierra Leone", units[1].NamePath)
}

func TestGetOrganisationUnit(t *testing.T) {
	t.Run("includes children", func(t *testing.T) {
		client := setupTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/organisationUnits/O6uvpzGd5pu", r.URL.Path)
			assert.Equal(t, "true", r.URL.Query().Get("includeChildren"))
			_, err := w.Write([]byte(`{"id": "O6uvpzGd5pu", "name": "Bo"}`))
			assert.NoError(t, err)
		})

		unit, err := client.Metadata.GetOrganisationUnit(context.Background(), "O6uvpzGd5pu", nil)
		require.NoError(t, err)
		assert.Equal(t, "Bo", unit["name"])
	})

	t.Run("not found", func(t *testing.T) {
		client := setupTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})

		_, err := client.Metadata.GetOrganisationUnit(context.Background(), "missing", nil)
		require.Error(t, err)

		var notFound *apierror.NotFoundError
		require.ErrorAs(t, err, &notFound)
		assert.Equal(t, "organisationUnit", notFound.ResourceType)
	})

	t.Run("empty UID", func(t *testing.T) {
		client := setupTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			t.Error("no request expected")
		})

		_, err := client.Metadata.GetOrganisationUnit(context.Background(), "", nil)
		require.Error(t, err)
	})
}

func TestMetadataCollections(t *testing.T) {
	client := setupTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/dataElements":
			_, err := w.Write([]byte(`{"dataElements": [{"id": "fbfJHSPpUQD", "name": "ANC 1st visit"}]}`))
			assert.NoError(t, err)
		case "/api/predictors":
			_, err := w.Write([]byte(`{"predictors": []}`))
			assert.NoError(t, err)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	})

	elements, err := client.Metadata.ListDataElements(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, elements, 1)
	assert.Equal(t, "ANC 1st visit", elements[0]["name"])

	predictors, err := client.Metadata.ListPredictors(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, predictors)
}

func TestListDataElementsForOrgUnit(t *testing.T) {
	client := setupTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/organisationUnits/O6uvpzGd5pu":
			assert.Equal(t, "dataSets", r.URL.Query().Get("fields"))
			_, err := w.Write([]byte(`{"dataSets": [{"id": "ds1"}, {"id": "ds2"}]}`))
			assert.NoError(t, err)
		case "/api/dataSets/ds1":
			assert.Equal(t, "dataSetElements[dataElement]", r.URL.Query().Get("fields"))
			_, err := w.Write([]byte(`{"dataSetElements": [
				{"dataElement": {"id": "de1", "name": "ANC 1st visit"}},
				{"dataElement": {"id": "de2", "name": "ANC 2nd visit"}}
			]}`))
			assert.NoError(t, err)
		case "/api/dataSets/ds2":
			_, err := w.Write([]byte(`{"dataSetElements": [
				{"dataElement": {"id": "de2", "name": "ANC 2nd visit"}}
			]}`))
			assert.NoError(t, err)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	})

	elements, err := client.Metadata.ListDataElementsForOrgUnit(context.Background(), "O6uvpzGd5pu")
	require.NoError(t, err)
	require.Len(t, elements, 2)
	assert.Equal(t, "de1", elements[0]["id"])
	assert.Equal(t, "de2", elements[1]["id"])
}

func TestSendDataValueSet(t *testing.T) {
	t.Run("imports JSON payload", func(t *testing.T) {
		client := setupTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/api/dataValueSets", r.URL.Path)
			assert.Equal(t, "true", r.URL.Query().Get("dryRun"))
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

			var body map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "pBOMPrpg1QX", body["dataSet"])

			_, err := w.Write([]byte(`{"status": "SUCCESS", "importCount": {"imported": 1}}`))
			assert.NoError(t, err)
		})

		summary, err := client.DataValues.SendDataValueSet(context.Background(), &dhis2.DataValueSet{
			DataSet: "pBOMPrpg1QX",
			Period:  "202401",
			OrgUnit: "O6uvpzGd5pu",
			DataValues: []dhis2.DataValue{
				{DataElement: "fbfJHSPpUQD", Value: "12"},
			},
		}, dhis2.Params{"dryRun": "true"})
		require.NoError(t, err)
		assert.Equal(t, "SUCCESS", summary.Status)
		assert.Equal(t, 1, summary.ImportCount.Imported)
	})

	t.Run("rejects empty set", func(t *testing.T) {
		client := setupTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			t.Error("no request expected")
		})

		_, err := client.DataValues.SendDataValueSet(context.Background(), &dhis2.DataValueSet{}, nil)
		require.Error(t, err)

		var validationErr *apierror.ValidationError
		require.ErrorAs(t, err, &validationErr)
	})
}

func TestSendDataValueSetRaw(t *testing.T) {
	t.Run("sends XML with content type", func(t *testing.T) {
		client := setupTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "application/xml", r.Header.Get("Content-Type"))
			_, err := w.Write([]byte(`<importSummary status="SUCCESS"/>`))
			assert.NoError(t, err)
		})

		body, err := client.DataValues.SendDataValueSetRaw(context.Background(),
			dhis2.ContentTypeXML, []byte(`<dataValueSet/>`), nil)
		require.NoError(t, err)
		assert.Contains(t, string(body), "SUCCESS")
	})

	t.Run("rejects unknown content type", func(t *testing.T) {
		client := setupTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			t.Error("no request expected")
		})

		_, err := client.DataValues.SendDataValueSetRaw(context.Background(),
			"text/yaml", []byte(`x`), nil)
		require.Error(t, err)
	})
}

func TestDataValueLifecycle(t *testing.T) {
	key := &dhis2.DataValueKey{
		DataElement: "fbfJHSPpUQD",
		Period:      "202401",
		OrgUnit:     "O6uvpzGd5pu",
	}

	t.Run("send", func(t *testing.T) {
		client := setupTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/api/dataValues", r.URL.Path)
			assert.Equal(t, "fbfJHSPpUQD", r.URL.Query().Get("de"))
			assert.Equal(t, "202401", r.URL.Query().Get("pe"))
			assert.Equal(t, "O6uvpzGd5pu", r.URL.Query().Get("ou"))
			assert.Equal(t, "42", r.URL.Query().Get("value"))
			w.WriteHeader(http.StatusCreated)
		})

		require.NoError(t, client.DataValues.SendDataValue(context.Background(), key, "42"))
	})

	t.Run("get", func(t *testing.T) {
		client := setupTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodGet, r.Method)
			_, err := w.Write([]byte(`["42"]`))
			assert.NoError(t, err)
		})

		values, err := client.DataValues.GetDataValue(context.Background(), key)
		require.NoError(t, err)
		assert.Equal(t, []string{"42"}, values)
	})

	t.Run("delete", func(t *testing.T) {
		client := setupTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodDelete, r.Method)
			w.WriteHeader(http.StatusNoContent)
		})

		require.NoError(t, client.DataValues.DeleteDataValue(context.Background(), key))
	})

	t.Run("missing key fields", func(t *testing.T) {
		client := setupTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			t.Error("no request expected")
		})

		err := client.DataValues.SendDataValue(context.Background(),
			&dhis2.DataValueKey{DataElement: "fbfJHSPpUQD"}, "1")
		require.Error(t, err)

		var validationErr *apierror.ValidationError
		require.ErrorAs(t, err, &validationErr)
	})
}
