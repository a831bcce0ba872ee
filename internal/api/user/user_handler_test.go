package user

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/bekberov/go-user-service/internal/types"
)

// MockUserService is a mock implementation of the UserService interface
type MockUserService struct {
	mock.Mock
}

func (m *MockUserService) Register(ctx context.Context, req types.CreateUserRequest) (*types.User, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.User), args.Error(1)
}

func (m *MockUserService) GetUser(ctx context.Context, userID uuid.UUID) (*types.User, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.User), args.Error(1)
}

func (m *MockUserService) FindByEmail(ctx context.Context, email string) (*types.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.User), args.Error(1)
}

func (m *MockUserService) ListUsers(ctx context.Context) ([]types.User, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]types.User), args.Error(1)
}

func (m *MockUserService) SearchByBirthDateRange(ctx context.Context, from, to types.Date) ([]types.User, error) {
	args := m.Called(ctx, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]types.User), args.Error(1)
}

func (m *MockUserService) UpdateUser(ctx context.Context, userID uuid.UUID, params types.UpdateUserParams) (*types.User, error) {
	args := m.Called(ctx, userID, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.User), args.Error(1)
}

func (m *MockUserService) DeleteUser(ctx context.Context, userID uuid.UUID) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func newTestRouter(svc UserService) chi.Router {
	h := NewHandler(svc, slog.Default())
	r := chi.NewRouter()
	r.Route("/users", func(r chi.Router) {
		r.Get("/", h.ListUsers)
		r.Post("/", h.CreateUser)
		r.Get("/search", h.SearchUsers)
		r.Get("/{id}", h.GetUser)
		r.Put("/{id}", h.UpdateUser)
		r.Delete("/{id}", h.DeleteUser)
	})
	return r
}

func decodeErrorBody(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]interface{}
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	msg, _ := body["error"].(string)
	return msg
}

func TestCreateUserHandler(t *testing.T) {
	t.Run("Created", func(t *testing.T) {
		mockSvc := new(MockUserService)
		created := storedTestUser()
		mockSvc.On("Register", mock.Anything, mock.AnythingOfType("types.CreateUserRequest")).
			Return(created, nil).Once()

		payload := `{"email":"jane.doe@example.com","password":"supersecret1","first_name":"Jane","last_name":"Doe","birth_date":"1990-03-15"}`
		req := httptest.NewRequest(http.MethodPost, "/users", strings.NewReader(payload))
		rec := httptest.NewRecorder()
		newTestRouter(mockSvc).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusCreated, rec.Code)
		var got types.User
		assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Equal(t, created.Email, got.Email)
		mockSvc.AssertExpectations(t)
	})

	t.Run("ValidationFailure", func(t *testing.T) {
		mockSvc := new(MockUserService)
		verr := &types.ValidationError{}
		verr.Add("firstName", "The firstname field must be between 2 and 50 characters long.")
		verr.Add("password", "The password field must be between 8 and 30 characters long.")
		mockSvc.On("Register", mock.Anything, mock.AnythingOfType("types.CreateUserRequest")).
			Return(nil, verr).Once()

		payload := `{"email":"jane.doe@example.com","password":"short","first_name":"J","last_name":"Doe","birth_date":"1990-03-15"}`
		req := httptest.NewRequest(http.MethodPost, "/users", strings.NewReader(payload))
		rec := httptest.NewRecorder()
		newTestRouter(mockSvc).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		msg := decodeErrorBody(t, rec)
		assert.Equal(t,
			"The firstname field must be between 2 and 50 characters long.\n"+
				"The password field must be between 8 and 30 characters long.", msg)
	})

	t.Run("UnknownRoleRejectedAtDecode", func(t *testing.T) {
		mockSvc := new(MockUserService)

		payload := `{"email":"jane.doe@example.com","password":"supersecret1","first_name":"Jane","last_name":"Doe","birth_date":"1990-03-15","role":"SUPERUSER"}`
		req := httptest.NewRequest(http.MethodPost, "/users", strings.NewReader(payload))
		rec := httptest.NewRecorder()
		newTestRouter(mockSvc).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		mockSvc.AssertNotCalled(t, "Register", mock.Anything, mock.Anything)
	})
}

func TestGetUserHandler(t *testing.T) {
	t.Run("NotFoundMessage", func(t *testing.T) {
		mockSvc := new(MockUserService)
		userID := uuid.New()
		mockSvc.On("GetUser", mock.Anything, userID).Return(nil, types.ErrNotFound).Once()

		req := httptest.NewRequest(http.MethodGet, "/users/"+userID.String(), nil)
		rec := httptest.NewRecorder()
		newTestRouter(mockSvc).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, fmt.Sprintf("User with ID %s not found", userID), decodeErrorBody(t, rec))
	})

	t.Run("InvalidID", func(t *testing.T) {
		mockSvc := new(MockUserService)

		req := httptest.NewRequest(http.MethodGet, "/users/not-a-uuid", nil)
		rec := httptest.NewRecorder()
		newTestRouter(mockSvc).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		mockSvc.AssertNotCalled(t, "GetUser", mock.Anything, mock.Anything)
	})

	t.Run("Found", func(t *testing.T) {
		mockSvc := new(MockUserService)
		stored := storedTestUser()
		mockSvc.On("GetUser", mock.Anything, stored.ID).Return(stored, nil).Once()

		req := httptest.NewRequest(http.MethodGet, "/users/"+stored.ID.String(), nil)
		rec := httptest.NewRecorder()
		newTestRouter(mockSvc).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		// The password hash never leaves the server
		assert.NotContains(t, rec.Body.String(), stored.PasswordHash)
	})
}

func TestSearchUsersHandler(t *testing.T) {
	t.Run("FromMustBeLessThanTo", func(t *testing.T) {
		mockSvc := new(MockUserService)

		req := httptest.NewRequest(http.MethodGet, "/users/search?from=1995-01-01&to=1990-01-01", nil)
		rec := httptest.NewRecorder()
		newTestRouter(mockSvc).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "'From' should be less than 'To'", decodeErrorBody(t, rec))
		mockSvc.AssertNotCalled(t, "SearchByBirthDateRange", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("EqualBoundsRejected", func(t *testing.T) {
		mockSvc := new(MockUserService)

		req := httptest.NewRequest(http.MethodGet, "/users/search?from=1990-01-01&to=1990-01-01", nil)
		rec := httptest.NewRecorder()
		newTestRouter(mockSvc).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "'From' should be less than 'To'", decodeErrorBody(t, rec))
	})

	t.Run("MalformedDate", func(t *testing.T) {
		mockSvc := new(MockUserService)

		req := httptest.NewRequest(http.MethodGet, "/users/search?from=January&to=1990-01-01", nil)
		rec := httptest.NewRecorder()
		newTestRouter(mockSvc).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("ValidRange", func(t *testing.T) {
		mockSvc := new(MockUserService)
		from := types.NewDate(1980, time.January, 1)
		to := types.NewDate(1995, time.December, 31)
		mockSvc.On("SearchByBirthDateRange", mock.Anything, from, to).
			Return([]types.User{*storedTestUser()}, nil).Once()

		req := httptest.NewRequest(http.MethodGet, "/users/search?from=1980-01-01&to=1995-12-31", nil)
		rec := httptest.NewRecorder()
		newTestRouter(mockSvc).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		mockSvc.AssertExpectations(t)
	})
}

func TestUpdateUserHandler(t *testing.T) {
	t.Run("NonExistentUser", func(t *testing.T) {
		mockSvc := new(MockUserService)
		userID := uuid.New()
		mockSvc.On("UpdateUser", mock.Anything, userID, mock.AnythingOfType("types.UpdateUserParams")).
			Return(nil, types.ErrNotFound).Once()

		req := httptest.NewRequest(http.MethodPut, "/users/"+userID.String(), strings.NewReader(`{"first_name":"Janet"}`))
		rec := httptest.NewRecorder()
		newTestRouter(mockSvc).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "Cannot update non-existent user!", decodeErrorBody(t, rec))
	})

	t.Run("PartialBodyMapsToPointerParams", func(t *testing.T) {
		mockSvc := new(MockUserService)
		stored := storedTestUser()
		mockSvc.On("UpdateUser", mock.Anything, stored.ID, mock.MatchedBy(func(p types.UpdateUserParams) bool {
			return p.FirstName != nil && *p.FirstName == "Janet" &&
				p.LastName == nil && p.Email == nil && p.Password == nil && p.BirthDate == nil
		})).Return(stored, nil).Once()

		req := httptest.NewRequest(http.MethodPut, "/users/"+stored.ID.String(), strings.NewReader(`{"first_name":"Janet"}`))
		rec := httptest.NewRecorder()
		newTestRouter(mockSvc).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		mockSvc.AssertExpectations(t)
	})
}

func TestDeleteUserHandler(t *testing.T) {
	mockSvc := new(MockUserService)
	userID := uuid.New()
	mockSvc.On("DeleteUser", mock.Anything, userID).Return(nil).Once()

	req := httptest.NewRequest(http.MethodDelete, "/users/"+userID.String(), nil)
	rec := httptest.NewRecorder()
	newTestRouter(mockSvc).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	mockSvc.AssertExpectations(t)
}
