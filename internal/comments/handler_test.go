package comments

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/civic-events/backend/internal/events"
	"github.com/civic-events/backend/internal/middleware"
	"github.com/civic-events/backend/internal/models"
	"github.com/civic-events/backend/internal/session"
	"github.com/civic-events/backend/internal/web"
	"github.com/civic-events/backend/pkg/validation"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) Create(ctx context.Context, eventID, authorID uuid.UUID, text string) (*models.Comment, error) {
	args := m.Called(ctx, eventID, authorID, text)
	cm, _ := args.Get(0).(*models.Comment)
	return cm, args.Error(1)
}

type eventMap map[uuid.UUID]*models.Event

func (e eventMap) GetByID(_ context.Context, id uuid.UUID) (*models.Event, error) {
	if ev, ok := e[id]; ok {
		return ev, nil
	}
	return nil, events.ErrNotFound
}

type detailSpy struct {
	status int
	draft  string
	errs   validation.Errors
}

func (d *detailSpy) RenderDetail(c *gin.Context, status int, ev *models.Event, draft string, errs validation.Errors) {
	d.status, d.draft, d.errs = status, draft, errs
	web.Render(c, status, "event_detail.html", gin.H{"Event": ev, "Upvoted": false, "CommentText": draft, "CommentErrors": errs})
}

func setup(t *testing.T, store *mockStore, evs eventMap, spy *detailSpy) (*gin.Engine, *session.Manager) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	validation.Register()
	sessions := session.NewManager("test-secret", 1, "", false)
	h := NewHandler(store, evs, spy, zap.NewNop())

	r := gin.New()
	web.Install(r)
	r.Use(middleware.Session(sessions))
	r.POST("/events/create-comment/:id/", middleware.RequireLogin(), h.Create)
	return r, sessions
}

func post(r http.Handler, path, text string, cookie *http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(url.Values{"comment": {text}}.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if cookie != nil {
		req.AddCookie(cookie)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func login(t *testing.T, s *session.Manager) (uuid.UUID, *http.Cookie) {
	t.Helper()
	u := &models.User{ID: uuid.New(), Username: "carol"}
	token, err := s.Generate(u)
	require.NoError(t, err)
	return u.ID, &http.Cookie{Name: s.CookieName(), Value: token}
}

func TestCreateComment(t *testing.T) {
	ev := &models.Event{ID: uuid.New(), Name: "Potluck", Status: models.StatusProposal}
	store := &mockStore{}
	r, sessions := setup(t, store, eventMap{ev.ID: ev}, &detailSpy{})
	userID, cookie := login(t, sessions)
	store.On("Create", mock.Anything, ev.ID, userID, "I'll bring pie").
		Return(&models.Comment{ID: uuid.New(), EventID: ev.ID, Text: "I'll bring pie"}, nil)

	w := post(r, "/events/create-comment/"+ev.ID.String()+"/", "  I'll bring pie ", cookie)

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/events/detail/"+ev.ID.String()+"/", w.Header().Get("Location"))
	store.AssertExpectations(t)
}

func TestCreateCommentEmpty(t *testing.T) {
	ev := &models.Event{ID: uuid.New(), Name: "Potluck", Status: models.StatusProposal}
	store := &mockStore{}
	spy := &detailSpy{}
	r, sessions := setup(t, store, eventMap{ev.ID: ev}, spy)
	_, cookie := login(t, sessions)

	w := post(r, "/events/create-comment/"+ev.ID.String()+"/", "   ", cookie)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "This field is required.", spy.errs["comment"])
	assert.Contains(t, w.Body.String(), "This field is required.")
	store.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCreateCommentUnknownEvent(t *testing.T) {
	store := &mockStore{}
	r, sessions := setup(t, store, eventMap{}, &detailSpy{})
	_, cookie := login(t, sessions)

	w := post(r, "/events/create-comment/"+uuid.NewString()+"/", "hello", cookie)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = post(r, "/events/create-comment/nope/", "hello", cookie)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateCommentAnonymous(t *testing.T) {
	ev := &models.Event{ID: uuid.New(), Name: "Potluck"}
	store := &mockStore{}
	r, _ := setup(t, store, eventMap{ev.ID: ev}, &detailSpy{})

	w := post(r, "/events/create-comment/"+ev.ID.String()+"/", "hello", nil)

	assert.Equal(t, http.StatusFound, w.Code)
	assert.True(t, strings.HasPrefix(w.Header().Get("Location"), "/accounts/login/?next="))
	store.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCreateCommentDeletedUser(t *testing.T) {
	ev := &models.Event{ID: uuid.New(), Name: "Potluck", Status: models.StatusProposal}
	store := &mockStore{}
	r, sessions := setup(t, store, eventMap{ev.ID: ev}, &detailSpy{})
	userID, cookie := login(t, sessions)
	fkErr := &pgconn.PgError{Code: "23503", ConstraintName: "comments_author_id_fkey"}
	store.On("Create", mock.Anything, ev.ID, userID, "hello").Return(nil, fmt.Errorf("insert comment: %w", fkErr))

	w := post(r, "/events/create-comment/"+ev.ID.String()+"/", "hello", cookie)

	assert.Equal(t, http.StatusFound, w.Code)
	assert.True(t, strings.HasPrefix(w.Header().Get("Location"), "/accounts/login/?next="))
	store.AssertExpectations(t)
}
