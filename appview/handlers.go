package appview

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/yuuzone/yuuzone/events"
	"github.com/yuuzone/yuuzone/feed"
	"github.com/yuuzone/yuuzone/models"
	"github.com/yuuzone/yuuzone/store"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100

	maxBoostDays = 30
)

// PostInfo is the wire shape of a post inside a feed entry. The ranking
// core deals in models.Post; the mapping to JSON happens only here.
type PostInfo struct {
	ID           uint      `json:"id"`
	Title        string    `json:"title"`
	Content      string    `json:"content,omitempty"`
	Media        string    `json:"media,omitempty"`
	AuthorID     uint      `json:"author_id"`
	SubthreadID  uint      `json:"subthread_id"`
	Karma        int64     `json:"karma"`
	CommentCount int64     `json:"comment_count"`
	CreatedAt    time.Time `json:"created_at"`
}

type PostView struct {
	PostInfo       PostInfo `json:"post_info"`
	IsBoosted      bool     `json:"is_boosted"`
	IsIndexBoosted bool     `json:"is_index_boosted,omitempty"`
}

func postInfoOf(p *models.Post) PostInfo {
	return PostInfo{
		ID:           p.ID,
		Title:        p.Title,
		Content:      p.Content,
		Media:        p.Media,
		AuthorID:     p.AuthorID,
		SubthreadID:  p.SubthreadID,
		Karma:        p.Karma,
		CommentCount: p.CommentCount,
		CreatedAt:    p.CreatedAt,
	}
}

func rankedToViews(ranked []feed.RankedPost) []PostView {
	out := make([]PostView, 0, len(ranked))
	for i := range ranked {
		out = append(out, PostView{
			PostInfo:       postInfoOf(&ranked[i].Post),
			IsBoosted:      ranked[i].IsBoosted,
			IsIndexBoosted: ranked[i].IsIndexBoosted,
		})
	}
	return out
}

// parseFeedQuery validates the shared feed query parameters. Bad sort
// or duration values are client errors caught before the core runs.
func parseFeedQuery(c echo.Context) (feed.SortKey, feed.Duration, feed.Page, error) {
	page := feed.Page{Limit: defaultPageLimit}

	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return "", "", page, echo.NewHTTPError(http.StatusBadRequest, "invalid limit")
		}
		if n > maxPageLimit {
			n = maxPageLimit
		}
		page.Limit = n
	}
	if raw := c.QueryParam("offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return "", "", page, echo.NewHTTPError(http.StatusBadRequest, "invalid offset")
		}
		page.Offset = n
	}

	sort := feed.SortTop
	if raw := c.QueryParam("sortby"); raw != "" {
		var err error
		if sort, err = feed.ParseSortKey(raw); err != nil {
			return "", "", page, echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
	}

	dur := feed.DurationAlltime
	if raw := c.QueryParam("duration"); raw != "" {
		var err error
		if dur, err = feed.ParseDuration(raw); err != nil {
			return "", "", page, echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
	}

	return sort, dur, page, nil
}

func (s *Server) serveFeed(c echo.Context, scope feed.Scope) error {
	sort, dur, page, err := parseFeedQuery(c)
	if err != nil {
		return err
	}

	ranked, err := s.assembler.GetFeed(c.Request().Context(), s.viewer(c), scope, sort, dur, page)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to get posts")
	}
	return c.JSON(http.StatusOK, rankedToViews(ranked))
}

func (s *Server) handleHomeFeed(c echo.Context) error {
	threadIDs, err := s.users.SubscribedThreadIDs(c.Request().Context(), s.viewer(c))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to get posts")
	}
	return s.serveFeed(c, feed.GlobalScope(threadIDs))
}

func (s *Server) handleAllFeed(c echo.Context) error {
	threadIDs, err := s.popular.ThreadIDs(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to get posts")
	}
	return s.serveFeed(c, feed.GlobalScope(threadIDs))
}

func (s *Server) handleThreadFeed(c echo.Context) error {
	st, err := s.users.GetSubthreadByName(c.Request().Context(), c.Param("thread"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "subthread not found")
		}
		return err
	}
	return s.serveFeed(c, feed.ThreadScope(st.ID))
}

func (s *Server) handleUserFeed(c echo.Context) error {
	ctx := c.Request().Context()
	author, err := s.users.GetUserByHandle(ctx, c.Param("handle"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "user not found")
		}
		return err
	}

	// A blocked viewer sees an empty profile feed, not an error.
	if viewer := s.viewer(c); viewer != 0 {
		blocked, err := s.vis.HasBlocked(ctx, author.ID, viewer)
		if err == nil && blocked {
			return c.JSON(http.StatusOK, []PostView{})
		}
	}

	return s.serveFeed(c, feed.AuthorScope(author.ID))
}

type createAccountInput struct {
	Handle   string `json:"handle"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) handleCreateAccount(c echo.Context) error {
	var in createAccountInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if in.Handle == "" || in.Email == "" || len(in.Password) < 8 {
		return echo.NewHTTPError(http.StatusBadRequest, "handle, email and a password of at least 8 characters are required")
	}

	hash, err := encodePassword(in.Password)
	if err != nil {
		return err
	}

	user := &models.User{Handle: in.Handle, Email: in.Email, Password: hash}
	if err := s.users.CreateUser(c.Request().Context(), user); err != nil {
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	}

	auth, err := s.createAuthTokenForUser(user.ID, user.Handle)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, auth)
}

type createSessionInput struct {
	Handle   string `json:"handle"`
	Password string `json:"password"`
}

func (s *Server) handleCreateSession(c echo.Context) error {
	var in createSessionInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	user, err := s.users.GetUserByHandle(c.Request().Context(), in.Handle)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return echo.NewHTTPError(http.StatusUnauthorized, ErrInvalidHandleOrPassword.Error())
		}
		return err
	}
	if err := verifyPassword(user.Password, in.Password); err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, ErrInvalidHandleOrPassword.Error())
	}

	auth, err := s.createAuthTokenForUser(user.ID, user.Handle)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, auth)
}

func (s *Server) handleGetSession(c echo.Context) error {
	user, err := s.users.GetUser(c.Request().Context(), s.viewer(c))
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "unknown user")
	}
	return c.JSON(http.StatusOK, map[string]any{
		"user_id": user.ID,
		"handle":  user.Handle,
		"karma":   user.Karma,
	})
}

type createSubthreadInput struct {
	Name        string `json:"name"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

func (s *Server) handleCreateSubthread(c echo.Context) error {
	var in createSubthreadInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if in.Name == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "subthread name is required")
	}

	ctx := c.Request().Context()
	st := &models.Subthread{
		Name:        in.Name,
		Title:       in.Title,
		Description: in.Description,
		CreatorID:   s.viewer(c),
	}
	if err := s.users.CreateSubthread(ctx, st); err != nil {
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	}
	if err := s.users.Subscribe(ctx, s.viewer(c), st.ID); err != nil {
		s.log.Error("creator auto-subscribe failed", "thread", st.ID, "err", err)
	}
	return c.JSON(http.StatusCreated, st)
}

func (s *Server) handleSubscribe(c echo.Context) error {
	ctx := c.Request().Context()
	st, err := s.users.GetSubthreadByName(ctx, c.Param("thread"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "subthread not found")
	}
	if err := s.users.Subscribe(ctx, s.viewer(c), st.ID); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleUnsubscribe(c echo.Context) error {
	ctx := c.Request().Context()
	st, err := s.users.GetSubthreadByName(ctx, c.Param("thread"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "subthread not found")
	}
	if err := s.users.Unsubscribe(ctx, s.viewer(c), st.ID); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

type createPostInput struct {
	SubthreadID uint   `json:"subthread_id"`
	Title       string `json:"title"`
	Content     string `json:"content"`
	Media       string `json:"media"`
}

func (s *Server) handleCreatePost(c echo.Context) error {
	var in createPostInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if in.Title == "" || in.SubthreadID == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "title and subthread_id are required")
	}

	ctx := c.Request().Context()
	viewer := s.viewer(c)

	banned, err := s.vis.IsBanned(ctx, in.SubthreadID, viewer)
	if err != nil {
		return err
	}
	if banned {
		return echo.NewHTTPError(http.StatusForbidden, "you are banned from this subthread")
	}

	post := &models.Post{
		AuthorID:    viewer,
		SubthreadID: in.SubthreadID,
		Title:       in.Title,
		Content:     in.Content,
		Media:       in.Media,
	}
	if err := s.posts.CreatePost(ctx, post); err != nil {
		return err
	}

	s.events.Publish(&events.FeedEvent{
		Kind:        events.EvtPostCreated,
		PostID:      post.ID,
		SubthreadID: post.SubthreadID,
		AuthorID:    post.AuthorID,
	})
	return c.JSON(http.StatusCreated, postInfoOf(post))
}

func (s *Server) handleGetPost(c echo.Context) error {
	id, err := parseIDParam(c)
	if err != nil {
		return err
	}
	post, err := s.posts.GetPost(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "post not found")
		}
		return err
	}
	return c.JSON(http.StatusOK, postInfoOf(post))
}

func (s *Server) handleDeletePost(c echo.Context) error {
	id, err := parseIDParam(c)
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	post, err := s.posts.GetPost(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "post not found")
		}
		return err
	}

	if err := s.posts.DeletePost(ctx, id, s.viewer(c)); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return echo.NewHTTPError(http.StatusForbidden, "only the author can delete a post")
		}
		return err
	}

	s.events.Publish(&events.FeedEvent{
		Kind:        events.EvtPostDeleted,
		PostID:      post.ID,
		SubthreadID: post.SubthreadID,
	})
	return c.NoContent(http.StatusNoContent)
}

type voteInput struct {
	Dir string `json:"dir"`
}

func (s *Server) handleVote(c echo.Context) error {
	id, err := parseIDParam(c)
	if err != nil {
		return err
	}

	var in voteInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	var dir models.VoteDir
	switch in.Dir {
	case "up":
		dir = models.VoteDirUp
	case "down":
		dir = models.VoteDirDown
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "dir must be \"up\" or \"down\"")
	}

	ctx := c.Request().Context()
	post, err := s.posts.GetPost(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "post not found")
		}
		return err
	}

	if err := s.posts.ApplyVote(ctx, id, s.viewer(c), dir); err != nil {
		return err
	}

	s.events.Publish(&events.FeedEvent{
		Kind:        events.EvtVoteCast,
		PostID:      post.ID,
		SubthreadID: post.SubthreadID,
		Karma:       post.Karma + dir.Score(),
	})
	return c.NoContent(http.StatusNoContent)
}

type boostInput struct {
	Days int `json:"days"`
}

func (s *Server) handleBoost(c echo.Context) error {
	id, err := parseIDParam(c)
	if err != nil {
		return err
	}

	var in boostInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if in.Days <= 0 {
		in.Days = 1
	}
	if in.Days > maxBoostDays {
		return echo.NewHTTPError(http.StatusBadRequest, "boost duration too long")
	}

	ctx := c.Request().Context()
	boost, err := s.boosts.CreateBoost(ctx, id, s.viewer(c), time.Duration(in.Days)*24*time.Hour)
	if err != nil {
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	}

	post, err := s.posts.GetPost(ctx, id)
	if err == nil {
		s.events.Publish(&events.FeedEvent{
			Kind:        events.EvtBoostStarted,
			PostID:      post.ID,
			SubthreadID: post.SubthreadID,
			AuthorID:    post.AuthorID,
		})
	}
	return c.JSON(http.StatusCreated, map[string]any{
		"boost_id":  boost.ID,
		"post_id":   boost.PostID,
		"boost_end": boost.BoostEnd,
	})
}

type commentInput struct {
	Content  string `json:"content"`
	ParentID uint   `json:"parent_id"`
}

func (s *Server) handleAddComment(c echo.Context) error {
	id, err := parseIDParam(c)
	if err != nil {
		return err
	}

	var in commentInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if in.Content == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "comment content is required")
	}

	ctx := c.Request().Context()
	if _, err := s.posts.GetPost(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "post not found")
		}
		return err
	}

	comment := &models.Comment{
		PostID:   id,
		AuthorID: s.viewer(c),
		ParentID: in.ParentID,
		Content:  in.Content,
	}
	if err := s.posts.AddComment(ctx, comment); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, comment)
}

func parseIDParam(c echo.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return uint(id), nil
}
