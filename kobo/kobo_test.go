package kobo_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	msftoolbox "github.com/MSF-Collaborate/msf-toolbox"
	"github.com/MSF-Collaborate/msf-toolbox/apierror"
	"github.com/MSF-Collaborate/msf-toolbox/kobo"
)

func setupTestServer(t *testing.T, handler http.HandlerFunc) *kobo.Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := kobo.New(
		kobo.WithBaseURL(server.URL),
		kobo.WithToken("test-token"),
	)
	require.NoError(t, err)
	return client
}

func TestNew(t *testing.T) {
	t.Run("error without base URL", func(t *testing.T) {
		_, err := kobo.New(kobo.WithToken("tok"))
		require.Error(t, err)
		assert.ErrorIs(t, err, kobo.ErrNoBaseURL)
	})

	t.Run("error without token", func(t *testing.T) {
		_, err := kobo.New(kobo.WithBaseURL("https://kf.kobotoolbox.org/api/v2"))
		require.Error(t, err)
		assert.ErrorIs(t, err, kobo.ErrNoToken)
	})
}

func TestCheckAuth(t *testing.T) {
	t.Run("accepted token", func(t *testing.T) {
		client := setupTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/assets/", r.URL.Path)
			assert.Equal(t, "Token test-token", r.Header.Get("Authorization"))
			assert.Equal(t, "json", r.URL.Query().Get("format"))
			_, err := w.Write([]byte(`{"count": 0, "results": []}`))
			assert.NoError(t, err)
		})

		require.NoError(t, client.CheckAuth(context.Background()))
	})

	t.Run("rejected token", func(t *testing.T) {
		client := setupTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			_, err := w.Write([]byte(`{"detail": "Invalid token."}`))
			assert.NoError(t, err)
		})

		err := client.CheckAuth(context.Background())
		require.Error(t, err)

		var authErr *apierror.AuthenticationError
		require.ErrorAs(t, err, &authErr)
	})
}

func TestListAssets(t *testing.T) {
	client := setupTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, err := w.Write([]byte(`{"count": 2, "results": [
			{"uid": "aBc123", "name": "Nutrition Survey", "asset_type": "survey"},
			{"uid": "dEf456", "name": "Water Access", "asset_type": "survey"}
		]}`))
		assert.NoError(t, err)
	})

	assets, err := client.ListAssets(context.Background())
	require.NoError(t, err)
	require.Len(t, assets, 2)
	assert.Equal(t, "aBc123", assets[0].UID)
	assert.Equal(t, "Water Access", assets[1].Name)
}

func TestGetAssetUID(t *testing.T) {
	client := setupTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, err := w.Write([]byte(`{"results": [
			{"uid": "aBc123", "name": "Nutrition Survey"}
		]}`))
		assert.NoError(t, err)
	})

	t.Run("found", func(t *testing.T) {
		uid, err := client.GetAssetUID(context.Background(), "Nutrition Survey")
		require.NoError(t, err)
		assert.Equal(t, "aBc123", uid)
	})

	t.Run("not found", func(t *testing.T) {
		_, err := client.GetAssetUID(context.Background(), "Missing Survey")
		require.Error(t, err)

		var notFound *apierror.NotFoundError
		require.ErrorAs(t, err, &notFound)
		assert.Equal(t, "asset", notFound.ResourceType)
	})
}

func TestGetAsset(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		client := setupTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/assets/aBc123", r.URL.Path)
			_, err := w.Write([]byte(`{"uid": "aBc123", "name": "Nutrition Survey", "content": {"survey": [], "choices": []}}`))
			assert.NoError(t, err)
		})

		asset, err := client.GetAsset(context.Background(), "aBc123")
		require.NoError(t, err)
		assert.Equal(t, "Nutrition Survey", asset.Name)
		assert.Equal(t, "aBc123", asset.Raw["uid"])
	})

	t.Run("empty UID", func(t *testing.T) {
		client := setupTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			t.Error("no request expected")
		})

		_, err := client.GetAsset(context.Background(), "")
		require.Error(t, err)
	})

	t.Run("not found", func(t *testing.T) {
		client := setupTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})

		_, err := client.GetAsset(context.Background(), "missing")
		require.Error(t, err)

		var notFound *apierror.NotFoundError
		require.ErrorAs(t, err, &notFound)
	})
}

func TestSubmissions(t *testing.T) {
	t.Run("follows next links across pages", func(t *testing.T) {
		var serverURL string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case "/assets/aBc123/data/":
				if r.URL.Query().Get("page") == "2" {
					_, err := w.Write([]byte(`{"count": 3, "next": null, "results": [{"_id": 3}]}`))
					assert.NoError(t, err)
					return
				}
				_, err := fmt.Fprintf(w, `{"count": 3, "next": "%s/assets/aBc123/data/?page=2", "results": [{"_id": 1}, {"_id": 2}]}`, serverURL)
				assert.NoError(t, err)
			default:
				t.Errorf("unexpected path %s", r.URL.Path)
			}
		}))
		t.Cleanup(server.Close)
		serverURL = server.URL

		client, err := kobo.New(kobo.WithBaseURL(server.URL), kobo.WithToken("test-token"))
		require.NoError(t, err)

		subs, err := msftoolbox.Collect(client.Submissions(context.Background(), "aBc123"))
		require.NoError(t, err)
		require.Len(t, subs, 3)
		assert.EqualValues(t, 1, subs[0]["_id"])
		assert.EqualValues(t, 3, subs[2]["_id"])
	})

	t.Run("first submission only", func(t *testing.T) {
		client := setupTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			_, err := w.Write([]byte(`{"count": 2, "next": null, "results": [{"_id": 1}, {"_id": 2}]}`))
			assert.NoError(t, err)
		})

		first, err := msftoolbox.First(client.Submissions(context.Background(), "aBc123"))
		require.NoError(t, err)
		assert.EqualValues(t, 1, first["_id"])
	})

	t.Run("error stops iteration", func(t *testing.T) {
		client := setupTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		})

		_, err := client.AllSubmissions(context.Background(), "aBc123")
		require.Error(t, err)

		var serverErr *apierror.ServerError
		require.ErrorAs(t, err, &serverErr)
	})
}

func TestAssetMetadata(t *testing.T) {
	client := setupTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, err := w.Write([]byte(`{"uid": "aBc123", "content": {"survey": [
			{"type": "text", "name": "respondent_name", "$xpath": "respondent_name", "label": ["Name"], "required": true},
			{"type": "integer", "name": "age", "$xpath": "demographics/age", "label": ["Age", "Âge"], "hint": ["years"]},
			{"type": "text", "name": "item", "$xpath": "RPT_household/members/item", "label": ["Item"]},
			{"type": "text", "name": "short_repeat", "$xpath": "RPT_x/short_repeat"}
		], "choices": []}}`))
		assert.NoError(t, err)
	})

	entries, err := client.AssetMetadata(context.Background(), "aBc123")
	require.NoError(t, err)
	require.Len(t, entries, 4)

	// Top-level question: no group
	assert.Equal(t, "", entries[0].Group)
	assert.Equal(t, "respondent_name", entries[0].Name)
	assert.Equal(t, true, entries[0].Required)
	assert.Equal(t, "respondent_name", entries[0].QuestionCode)

	// Grouped question: group is the first path segment
	assert.Equal(t, "demographics", entries[1].Group)
	assert.Equal(t, []string{"Age", "Âge"}, entries[1].Label)
	assert.Equal(t, []string{"years"}, entries[1].Hint)

	// Repeat group: group shifts one level down
	assert.Equal(t, "members", entries[2].Group)

	// Repeat with only two segments: no group
	assert.Equal(t, "", entries[3].Group)
}

func TestAssetChoiceItems(t *testing.T) {
	client := setupTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, err := w.Write([]byte(`{"uid": "aBc123", "content": {"survey": [], "choices": [
			{"list_name": "yes_no", "name": "yes", "label": ["Yes", "Oui"]},
			{"list_name": "yes_no", "name": "no", "label": ["No", "Non"]}
		]}}`))
		assert.NoError(t, err)
	})

	items, err := client.AssetChoiceItems(context.Background(), "aBc123")
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "yes_no", items[0].ListName)
	assert.Equal(t, []string{"No", "Non"}, items[1].Label)
}
