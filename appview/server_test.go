package appview

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yuuzone/yuuzone/util/cliutil"
)

func newTestServer(t *testing.T) (*Server, *echo.Echo) {
	t.Helper()

	db, err := cliutil.SetupDatabase("sqlite://:memory:", 1)
	if err != nil {
		t.Fatal(err)
	}

	s, err := NewServer(db, Config{
		JWTSecret:          []byte("testsecretplaceholder"),
		PopularThreadCount: 10,
	}, nil)
	if err != nil {
		t.Fatal(err)
	}

	t.Cleanup(func() {
		s.events.Shutdown()
		sqlDB, err := db.DB()
		if err == nil {
			sqlDB.Close()
		}
	})

	return s, s.buildEcho()
}

func doJSON(t *testing.T, e *echo.Echo, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func createAccount(t *testing.T, e *echo.Echo, handle string) *AuthInfo {
	t.Helper()
	rec := doJSON(t, e, http.MethodPost, "/api/account", "", map[string]string{
		"handle":   handle,
		"email":    handle + "@example.com",
		"password": "a long password",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var auth AuthInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &auth))
	return &auth
}

func createThread(t *testing.T, e *echo.Echo, token, name string) uint {
	t.Helper()
	rec := doJSON(t, e, http.MethodPost, "/api/threads", token, map[string]string{
		"name":  name,
		"title": name,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var st struct {
		ID uint `json:"ID"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	return st.ID
}

func createPost(t *testing.T, e *echo.Echo, token string, thread uint, title string) uint {
	t.Helper()
	rec := doJSON(t, e, http.MethodPost, "/api/posts", token, map[string]any{
		"subthread_id": thread,
		"title":        title,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var info PostInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
	return info.ID
}

func TestAccountAndSessionFlow(t *testing.T) {
	_, e := newTestServer(t)

	auth := createAccount(t, e, "alice")
	assert.NotEmpty(t, auth.AccessJwt)
	assert.NotEmpty(t, auth.RefreshJwt)

	// wrong password
	rec := doJSON(t, e, http.MethodPost, "/api/session", "", map[string]string{
		"handle":   "alice",
		"password": "not it",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// correct password
	rec = doJSON(t, e, http.MethodPost, "/api/session", "", map[string]string{
		"handle":   "alice",
		"password": "a long password",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var session AuthInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &session))

	rec = doJSON(t, e, http.MethodGet, "/api/session", session.AccessJwt, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "alice")
}

func TestAuthRequiredAndRejected(t *testing.T) {
	_, e := newTestServer(t)

	rec := doJSON(t, e, http.MethodGet, "/api/feed/home", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(t, e, http.MethodGet, "/api/feed/all", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestFeedEndpointBoostPlacement(t *testing.T) {
	_, e := newTestServer(t)

	auth := createAccount(t, e, "bob")
	thread := createThread(t, e, auth.AccessJwt, "golang")

	var postIDs []uint
	for i := 0; i < 5; i++ {
		postIDs = append(postIDs, createPost(t, e, auth.AccessJwt, thread, fmt.Sprintf("post %d", i)))
	}

	// upvote an early post so it leads the organic ranking
	rec := doJSON(t, e, http.MethodPost, fmt.Sprintf("/api/posts/%d/vote", postIDs[0]), auth.AccessJwt, map[string]string{"dir": "up"})
	require.Equal(t, http.StatusNoContent, rec.Code)

	// boost the last post; it should jump to the head of the feed
	rec = doJSON(t, e, http.MethodPost, fmt.Sprintf("/api/posts/%d/boost", postIDs[4]), auth.AccessJwt, map[string]int{"days": 1})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = doJSON(t, e, http.MethodGet, "/api/threads/golang/posts?sortby=top&duration=alltime&limit=10", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var views []PostView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &views))
	require.Len(t, views, 5)

	assert.Equal(t, postIDs[4], views[0].PostInfo.ID)
	assert.True(t, views[0].IsBoosted)
	assert.Equal(t, postIDs[0], views[1].PostInfo.ID, "top-karma post leads the organic portion")
	for _, v := range views[1:] {
		assert.False(t, v.IsBoosted)
	}
}

func TestFeedEndpointRejectsBadQuery(t *testing.T) {
	_, e := newTestServer(t)

	rec := doJSON(t, e, http.MethodGet, "/api/feed/all?sortby=spicy", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, e, http.MethodGet, "/api/feed/all?duration=fortnight", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, e, http.MethodGet, "/api/feed/all?limit=-2", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBoostRequiresAuthor(t *testing.T) {
	_, e := newTestServer(t)

	author := createAccount(t, e, "carol")
	other := createAccount(t, e, "mallory")
	thread := createThread(t, e, author.AccessJwt, "pics")
	post := createPost(t, e, author.AccessJwt, thread, "a sunset")

	rec := doJSON(t, e, http.MethodPost, fmt.Sprintf("/api/posts/%d/boost", post), other.AccessJwt, map[string]int{"days": 1})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestDeletePostAuthorOnly(t *testing.T) {
	_, e := newTestServer(t)

	author := createAccount(t, e, "dave")
	other := createAccount(t, e, "eve")
	thread := createThread(t, e, author.AccessJwt, "news")
	post := createPost(t, e, author.AccessJwt, thread, "headline")

	rec := doJSON(t, e, http.MethodDelete, fmt.Sprintf("/api/posts/%d", post), other.AccessJwt, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = doJSON(t, e, http.MethodDelete, fmt.Sprintf("/api/posts/%d", post), author.AccessJwt, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, e, http.MethodGet, fmt.Sprintf("/api/posts/%d", post), "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHomeFeedUsesSubscriptions(t *testing.T) {
	_, e := newTestServer(t)

	poster := createAccount(t, e, "frank")
	subscribed := createThread(t, e, poster.AccessJwt, "cooking")
	unsubscribed := createThread(t, e, poster.AccessJwt, "gardening")
	inFeed := createPost(t, e, poster.AccessJwt, subscribed, "soup")
	createPost(t, e, poster.AccessJwt, unsubscribed, "roses")

	reader := createAccount(t, e, "grace")
	rec := doJSON(t, e, http.MethodPost, "/api/threads/cooking/subscribe", reader.AccessJwt, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, e, http.MethodGet, "/api/feed/home", reader.AccessJwt, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var views []PostView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &views))
	require.Len(t, views, 1)
	assert.Equal(t, inFeed, views[0].PostInfo.ID)
}

func TestUserFeedAndComments(t *testing.T) {
	_, e := newTestServer(t)

	auth := createAccount(t, e, "heidi")
	thread := createThread(t, e, auth.AccessJwt, "books")
	post := createPost(t, e, auth.AccessJwt, thread, "a review")

	rec := doJSON(t, e, http.MethodPost, fmt.Sprintf("/api/posts/%d/comments", post), auth.AccessJwt, map[string]string{"content": "nice"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, e, http.MethodGet, "/api/users/heidi/posts?sortby=hot", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var views []PostView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &views))
	require.Len(t, views, 1)
	assert.Equal(t, int64(1), views[0].PostInfo.CommentCount)

	rec = doJSON(t, e, http.MethodGet, "/api/users/nobody/posts", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
