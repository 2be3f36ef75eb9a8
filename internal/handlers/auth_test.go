package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"dm-chat/internal/auth"
	"dm-chat/internal/middleware"
	"dm-chat/internal/mocks"
	"dm-chat/internal/models"
	"dm-chat/internal/repositories"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func setupAuthRouter(handler *AuthHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler.Register(r)
	return r
}

func postJSON(router *gin.Engine, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestSignupSuccess(t *testing.T) {
	userRepo := new(mocks.UserRepositoryMock)
	issuer := auth.NewJWTIssuer(testSecret, time.Hour)
	router := setupAuthRouter(NewAuthHandler(userRepo, issuer, 3600, nil))

	userRepo.On("CreateUser", mock.Anything, "Alice", "alice@example.com", mock.AnythingOfType("string")).
		Return(models.User{ID: "u1", FullName: "Alice", Email: "alice@example.com"}, nil).Once()

	rec := postJSON(router, "/auth/signup", `{"fullName":" Alice ","email":"Alice@Example.com","password":"secret123"}`)

	require.Equal(t, http.StatusCreated, rec.Code)
	var resp sessionResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "u1", resp.User.ID)

	userID, err := issuer.Verify(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, "u1", userID)

	var found bool
	for _, cookie := range rec.Result().Cookies() {
		if cookie.Name == middleware.CookieName {
			found = true
			assert.Equal(t, resp.Token, cookie.Value)
			assert.True(t, cookie.HttpOnly)
		}
	}
	assert.True(t, found, "jwt cookie set")
	userRepo.AssertExpectations(t)
}

func TestSignupValidation(t *testing.T) {
	cases := map[string]string{
		"missing fields": `{"email":"a@b.c","password":"secret123"}`,
		"short password": `{"fullName":"A","email":"a@b.c","password":"123"}`,
		"bad email":      `{"fullName":"A","email":"not-an-email","password":"secret123"}`,
		"bad json":       `{`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			userRepo := new(mocks.UserRepositoryMock)
			router := setupAuthRouter(NewAuthHandler(userRepo, auth.NewJWTIssuer(testSecret, time.Hour), 3600, nil))

			rec := postJSON(router, "/auth/signup", body)

			require.Equal(t, http.StatusBadRequest, rec.Code)
			userRepo.AssertNotCalled(t, "CreateUser", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestSignupEmailTaken(t *testing.T) {
	userRepo := new(mocks.UserRepositoryMock)
	router := setupAuthRouter(NewAuthHandler(userRepo, auth.NewJWTIssuer(testSecret, time.Hour), 3600, nil))

	userRepo.On("CreateUser", mock.Anything, "A", "a@b.c", mock.Anything).Return(nil, repositories.ErrEmailTaken).Once()

	rec := postJSON(router, "/auth/signup", `{"fullName":"A","email":"a@b.c","password":"secret123"}`)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"message":"Email already exists"}`, rec.Body.String())
}

func TestLogin(t *testing.T) {
	hash, err := auth.HashPassword("secret123")
	require.NoError(t, err)
	stored := models.User{ID: "u1", Email: "a@b.c", PasswordHash: hash}

	t.Run("valid credentials", func(t *testing.T) {
		userRepo := new(mocks.UserRepositoryMock)
		router := setupAuthRouter(NewAuthHandler(userRepo, auth.NewJWTIssuer(testSecret, time.Hour), 3600, nil))
		userRepo.On("GetUserByEmail", mock.Anything, "a@b.c").Return(stored, nil).Once()

		rec := postJSON(router, "/auth/login", `{"email":"a@b.c","password":"secret123"}`)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.NotContains(t, rec.Body.String(), hash)
	})

	t.Run("wrong password", func(t *testing.T) {
		userRepo := new(mocks.UserRepositoryMock)
		router := setupAuthRouter(NewAuthHandler(userRepo, auth.NewJWTIssuer(testSecret, time.Hour), 3600, nil))
		userRepo.On("GetUserByEmail", mock.Anything, "a@b.c").Return(stored, nil).Once()

		rec := postJSON(router, "/auth/login", `{"email":"a@b.c","password":"nope"}`)

		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.JSONEq(t, `{"message":"Invalid credentials"}`, rec.Body.String())
	})

	t.Run("unknown email", func(t *testing.T) {
		userRepo := new(mocks.UserRepositoryMock)
		router := setupAuthRouter(NewAuthHandler(userRepo, auth.NewJWTIssuer(testSecret, time.Hour), 3600, nil))
		userRepo.On("GetUserByEmail", mock.Anything, "x@b.c").Return(nil, repositories.ErrUserNotFound).Once()

		rec := postJSON(router, "/auth/login", `{"email":"x@b.c","password":"secret123"}`)

		require.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestCheckRequiresToken(t *testing.T) {
	userRepo := new(mocks.UserRepositoryMock)
	issuer := auth.NewJWTIssuer(testSecret, time.Hour)
	router := setupAuthRouter(NewAuthHandler(userRepo, issuer, 3600, nil))

	req := httptest.NewRequest(http.MethodGet, "/auth/check", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	token, err := issuer.Issue("u1")
	require.NoError(t, err)
	userRepo.On("GetUser", mock.Anything, "u1").Return(models.User{ID: "u1", FullName: "Alice"}, nil).Once()

	req = httptest.NewRequest(http.MethodGet, "/auth/check", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var user models.User
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&user))
	assert.Equal(t, "Alice", user.FullName)
	userRepo.AssertExpectations(t)
}
