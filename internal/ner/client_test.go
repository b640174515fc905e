package ner

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify_DecodesEntities(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_, _ = w.Write([]byte(`[{"entity_group":"ORG","score":0.99,"word":"Acme Corp","start":0,"end":9}]`))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, Model: "org/model", APIKey: "tok"}, nil)
	entities, err := c.Classify(context.Background(), "Acme Corp Store")
	require.NoError(t, err)

	assert.Equal(t, "/models/org/model", gotPath)
	assert.Equal(t, "Bearer tok", gotAuth)
	assert.Equal(t, "Acme Corp Store", gotBody["inputs"])
	opts, ok := gotBody["options"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, opts["wait_for_model"])

	require.Len(t, entities, 1)
	assert.Equal(t, Entity{EntityGroup: "ORG", Score: 0.99, Word: "Acme Corp", Start: 0, End: 9}, entities[0])
}

func TestClassify_NestedResponseShape(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[[{"entity_group":"ORG","score":0.9,"word":"Rewe","start":0,"end":4}]]`))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL}, nil)
	entities, err := c.Classify(context.Background(), "Rewe Markt")
	require.NoError(t, err)
	require.Len(t, entities, 1)
	assert.Equal(t, "Rewe", entities[0].Word)
}

func TestClassify_NoAuthHeaderWithoutKey(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL}, nil)
	_, err := c.Classify(context.Background(), "anything")
	require.NoError(t, err)
	assert.Empty(t, gotAuth)
}

func TestClassify_Non2xxIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":"model loading"}`))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL}, nil)
	_, err := c.Classify(context.Background(), "anything")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestClassify_MalformedBodyIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"unexpected":"shape"}`))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL}, nil)
	_, err := c.Classify(context.Background(), "anything")
	require.Error(t, err)
}
