package push

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoopSink_DisabledAndSendIsNoop(t *testing.T) {
	s := NewNoop()
	assert.False(t, s.Enabled())
	assert.NoError(t, s.Send(context.Background(), []byte(`{}`), map[string]string{"x": "y"}))
}

func TestHTTPSink_EnabledReflectsConfiguredURL(t *testing.T) {
	s := NewHTTPSink("")
	assert.False(t, s.Enabled())

	s2 := NewHTTPSink("https://gateway.example/push")
	assert.True(t, s2.Enabled())
}

func TestHTTPSink_Send_SuccessPostsEnvelope(t *testing.T) {
	var gotBody deliveryEnvelope
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	s := NewHTTPSink(srv.URL)
	err := s.Send(context.Background(), []byte(`{"endpoint":"e"}`), map[string]string{"hello": "world"})
	require.NoError(t, err)
	assert.Equal(t, `{"endpoint":"e"}`, string(gotBody.Subscription))
}

func TestHTTPSink_Send_GoneStatusReturnsErrGone(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusGone)
	}))
	defer srv.Close()

	s := NewHTTPSink(srv.URL)
	err := s.Send(context.Background(), []byte(`{}`), nil)
	assert.Equal(t, ErrGone, err)
}

func TestHTTPSink_Send_NotFoundReturnsErrGone(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	s := NewHTTPSink(srv.URL)
	err := s.Send(context.Background(), []byte(`{}`), nil)
	assert.Equal(t, ErrGone, err)
}

func TestHTTPSink_Send_ServerErrorIsSwallowed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	s := NewHTTPSink(srv.URL)
	err := s.Send(context.Background(), []byte(`{}`), nil)
	assert.NoError(t, err)
}
