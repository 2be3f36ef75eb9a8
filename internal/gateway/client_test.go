package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dm-chat/internal/models"
)

func TestListUsersSendsBearerToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/messages/users", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode([]models.User{{ID: "u2", FullName: "Bob"}})
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", time.Second, WithToken("tok"))
	users, err := c.ListUsers(context.Background())

	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "Bob", users[0].FullName)
}

func TestSendMessagePostsPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/messages/send/u2", r.URL.Path)
		var req models.SendRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "hello", req.Text)
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(models.Message{ID: "m1", SenderID: "u1", ReceiverID: "u2", Text: req.Text})
	}))
	defer srv.Close()

	msg, err := NewClient(srv.URL, time.Second).SendMessage(context.Background(), "u2", models.SendRequest{Text: "hello"})

	require.NoError(t, err)
	assert.Equal(t, "m1", msg.ID)
}

func TestAPIErrorCarriesServerMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message":"Receiver not found"}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, time.Second).GetMessages(context.Background(), "ghost")

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
	assert.Equal(t, "Receiver not found", apiErr.Message)
}

func TestAPIErrorWithoutBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, time.Second).ListUsers(context.Background())

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Empty(t, apiErr.Message)
	assert.Contains(t, apiErr.Error(), "502")
}

func TestNetworkFailureIsWrapped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	_, err := NewClient(srv.URL, time.Second).ListUsers(context.Background())

	require.Error(t, err)
	var apiErr *APIError
	assert.False(t, errors.As(err, &apiErr))
}

func TestLoginStoresToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/login", r.URL.Path)
		_ = json.NewEncoder(w).Encode(Session{User: models.User{ID: "u1"}, Token: "fresh"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	session, err := c.Login(context.Background(), "a@b.c", "secret123")

	require.NoError(t, err)
	assert.Equal(t, "u1", session.User.ID)
	assert.Equal(t, "fresh", c.Token())
}

func TestMe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/check", r.URL.Path)
		_ = json.NewEncoder(w).Encode(models.User{ID: "u1", FullName: "Alice"})
	}))
	defer srv.Close()

	user, err := NewClient(srv.URL, time.Second, WithToken("tok")).Me(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "u1", user.ID)
}
