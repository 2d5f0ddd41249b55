package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"inspection-rig/internal/domain/entity"
)

func TestCreateObservation_IncomingScope(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/observations", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"id": 42}`))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL + "/api"})
	obs, err := c.CreateObservation(context.Background(), 7, entity.ScopeIncoming, 0)
	require.NoError(t, err)
	require.Equal(t, 42, obs.ID)
	require.Equal(t, entity.ScopeIncoming, obs.Scope)

	require.Equal(t, float64(7), got["test_case_id"])
	require.Equal(t, float64(1), got["observation_type_id"])
	require.Equal(t, "incoming", got["scope"])
	// Для входного контроля номер реза не передаётся вовсе.
	require.NotContains(t, got, "cut_number")
}

func TestCreateObservation_CutScope(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"id": 43}`))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL})
	obs, err := c.CreateObservation(context.Background(), 7, entity.ScopeCut, 3)
	require.NoError(t, err)
	require.Equal(t, 43, obs.ID)
	require.Equal(t, 3, obs.CutNumber)

	require.Equal(t, "cut", got["scope"])
	require.Equal(t, float64(3), got["cut_number"])
}

func TestCreateObservation_DuplicateIsDistinct(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"error": "UniqueViolation", "detail": "duplicate key value violates unique constraint \"observations_cut_key\""}`))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL})
	_, err := c.CreateObservation(context.Background(), 7, entity.ScopeCut, 1)
	require.ErrorIs(t, err, ErrDuplicateObservation)
}

func TestCreateObservation_OtherClientErrorIsStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"error": "test case not found"}`))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL})
	_, err := c.CreateObservation(context.Background(), 7, entity.ScopeIncoming, 0)

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	require.Equal(t, http.StatusUnprocessableEntity, statusErr.Code)
	require.NotErrorIs(t, err, ErrDuplicateObservation)
}

func TestCreateObservation_MalformedResponses(t *testing.T) {
	for _, body := range []string{`{}`, `[]`, `not json`, `{"identifier": 9}`} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(body))
		}))
		c := NewClient(Config{BaseURL: srv.URL})
		_, err := c.CreateObservation(context.Background(), 7, entity.ScopeIncoming, 0)
		require.Error(t, err, "body %q", body)
		srv.Close()
	}
}

func TestIsDuplicateBody(t *testing.T) {
	cases := []struct {
		body string
		want bool
	}{
		{`{"error": "UniqueViolation"}`, true},
		{`{"detail": "duplicate key value"}`, true},
		{`plain text: unique constraint failed`, true},
		{`{"error": "validation failed"}`, false},
		{`{}`, false},
		{``, false},
	}
	for _, c := range cases {
		require.Equal(t, c.want, isDuplicateBody([]byte(c.body)), c.body)
	}
}

func TestUploadAttachment(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tooth_0005_deg_20.000000.png")
	require.NoError(t, os.WriteFile(path, []byte("png-bytes"), 0o644))

	var gotTag, gotName, gotContent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/observations/42/attachments", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))

		gotTag = r.FormValue("tag")
		f, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer f.Close()
		gotName = header.Filename
		content, err := io.ReadAll(f)
		require.NoError(t, err)
		gotContent = string(content)

		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL})
	require.NoError(t, c.UploadAttachment(context.Background(), 42, path, 5))

	require.Equal(t, "5", gotTag)
	require.Equal(t, "tooth_0005_deg_20.000000.png", gotName)
	require.Equal(t, "png-bytes", gotContent)
}

func TestUploadAttachment_ServerError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.png")
	require.NoError(t, os.WriteFile(path, []byte("png"), 0o644))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL})
	var statusErr *StatusError
	require.ErrorAs(t, c.UploadAttachment(context.Background(), 42, path, 1), &statusErr)
	require.Equal(t, http.StatusBadGateway, statusErr.Code)
}

func TestUploadAttachment_MissingFile(t *testing.T) {
	c := NewClient(Config{BaseURL: "http://unused.invalid"})
	err := c.UploadAttachment(context.Background(), 42, filepath.Join(t.TempDir(), "nope.png"), 1)
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestGetSampleContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/samples/identifier/BLD-0042/context", r.URL.Path)
		_, _ = w.Write([]byte(`{
			"sample": {"name": "Sample A", "design": {"attribute_values": {"Number of Teeth": 72}}},
			"test_case": {"id": 7},
			"cut_number": 2
		}`))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL})
	sc, err := c.GetSampleContext(context.Background(), "BLD-0042")
	require.NoError(t, err)
	require.Equal(t, 7, sc.TestCaseID)
	require.Equal(t, 72, sc.Teeth)
	require.Equal(t, 2, sc.CutNumber)
	require.Equal(t, "Sample A", sc.SampleName)
}

func TestGetSampleContext_Invalid(t *testing.T) {
	cases := []string{
		`{"sample": {"design": {"attribute_values": {}}}, "test_case": {"id": 7}}`,
		`{"sample": {"design": {"attribute_values": {"Number of Teeth": 0}}}, "test_case": {"id": 7}}`,
		`{"sample": {"design": {"attribute_values": {"Number of Teeth": "many"}}}, "test_case": {"id": 7}}`,
		`{"sample": {"design": {"attribute_values": {"Number of Teeth": 72}}}}`,
	}
	for _, body := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(body))
		}))
		c := NewClient(Config{BaseURL: srv.URL})
		_, err := c.GetSampleContext(context.Background(), "BLD-0042")
		require.Error(t, err, body)
		srv.Close()
	}
}
