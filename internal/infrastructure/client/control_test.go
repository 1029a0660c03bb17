package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/icubam/icubam/internal/interfaces/dto"
	sharedConfig "github.com/icubam/icubam/internal/shared/config"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *ControlClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewControlClient(sharedConfig.MessagingConfig{BaseURL: srv.URL + "/", Timeout: 5})
}

func TestControlClient_OnOff(t *testing.T) {
	var got dto.OnOffRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/onoff", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"data":{"user_id":3,"on":true,"scheduled":2,"cancelled":0}}`))
	})

	on := true
	resp, err := c.OnOff(context.Background(), dto.OnOffRequest{UserID: 3, ICUIDs: []int64{1, 2}, On: &on})
	require.NoError(t, err)
	assert.Equal(t, int64(3), got.UserID)
	assert.Equal(t, []int64{1, 2}, got.ICUIDs)
	assert.True(t, resp.On)
	assert.Equal(t, 2, resp.Scheduled)
}

func TestControlClient_Schedule(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/schedule", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"data":[{"icu_id":1,"icu_name":"CHU Strasbourg","user_id":3,"user_name":"Camille","attempts":1,"when":"2020-04-01T09:30:00Z"}]}`))
	})

	msgs, err := c.Schedule(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "CHU Strasbourg", msgs[0].ICUName)
	assert.True(t, msgs[0].When.Equal(time.Date(2020, 4, 1, 9, 30, 0, 0, time.UTC)))
}

func TestControlClient_ErrorEnvelope(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"success":false,"error":{"type":"validation_error","message":"user manages no icu"}}`))
	})

	_, err := c.Schedule(context.Background(), 3)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "user manages no icu")
	assert.Contains(t, err.Error(), "400")
}

func TestControlClient_Unreachable(t *testing.T) {
	c := NewControlClient(sharedConfig.MessagingConfig{BaseURL: "http://127.0.0.1:1", Timeout: 1})
	_, err := c.Schedule(context.Background(), 3)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unreachable")
}
