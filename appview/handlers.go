package appview

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/bluesky-social/feedview/feeds"
	"github.com/bluesky-social/feedview/keyset"
	"github.com/bluesky-social/feedview/thread"
	"github.com/bluesky-social/feedview/util"
	"github.com/bluesky-social/feedview/views"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ViewerHeader carries the requesting account's DID, as set by the
// authenticating proxy in front of this service. Absent means anonymous.
const ViewerHeader = "X-Viewer-DID"

const collectionFeedGenerator = "app.bsky.feed.generator"

type GenericError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type GenericStatus struct {
	Daemon  string `json:"daemon"`
	Status  string `json:"status"`
	Message string `json:"msg,omitempty"`
}

type ThreadOutput struct {
	Thread *views.ThreadNode `json:"thread"`
}

func viewer(c echo.Context) (string, error) {
	did := strings.TrimSpace(c.Request().Header.Get(ViewerHeader))
	if did != "" && !strings.HasPrefix(did, "did:") {
		return "", fmt.Errorf("%w: %s is not a DID", ErrInvalidRequest, ViewerHeader)
	}
	return did, nil
}

func intParam(c echo.Context, name string, def int) (int, error) {
	s := strings.TrimSpace(c.QueryParam(name))
	if s == "" {
		return def, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid value for '%s': %s", ErrInvalidRequest, name, err)
	}
	return v, nil
}

func parseCursorLimit(c echo.Context) (string, int, error) {
	limit, err := intParam(c, "limit", DefaultLimit)
	if err != nil {
		return "", 0, err
	}
	if limit < 1 || limit > MaxLimit {
		return "", 0, fmt.Errorf("%w: 'limit' must be between 1 and %d", ErrInvalidRequest, MaxLimit)
	}
	return c.QueryParam("cursor"), limit, nil
}

// algorithmFromFeed accepts either a feed generator record URI, whose record
// key names the algorithm, or a bare algorithm id.
func algorithmFromFeed(feed string) (string, error) {
	if !strings.HasPrefix(feed, "at://") {
		return feed, nil
	}
	puri, err := util.ParseAtUri(feed)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	if puri.Collection != collectionFeedGenerator {
		return "", fmt.Errorf("%w: %q is not a feed generator", ErrInvalidRequest, feed)
	}
	return puri.Rkey, nil
}

func spanError(span trace.Span, err error) error {
	span.SetStatus(codes.Error, err.Error())
	return err
}

func (srv *Server) GetFeed(c echo.Context) error {
	ctx, span := tracer.Start(c.Request().Context(), "GetFeed")
	defer span.End()

	requester, err := viewer(c)
	if err != nil {
		return spanError(span, err)
	}

	feed := strings.TrimSpace(c.QueryParam("feed"))
	if feed == "" {
		return spanError(span, fmt.Errorf("%w: 'feed' is required", ErrInvalidRequest))
	}
	algo, err := algorithmFromFeed(feed)
	if err != nil {
		return spanError(span, err)
	}

	cursor, limit, err := parseCursorLimit(c)
	if err != nil {
		return spanError(span, err)
	}
	span.SetAttributes(attribute.String("algo", algo), attribute.Int("limit", limit))

	out, err := srv.fg.ListFeed(ctx, requester, algo, cursor, limit)
	if err != nil {
		return spanError(span, err)
	}

	span.SetAttributes(attribute.Int("feed.length", len(out.Feed)))
	return c.JSON(http.StatusOK, out)
}

func (srv *Server) GetTimeline(c echo.Context) error {
	ctx, span := tracer.Start(c.Request().Context(), "GetTimeline")
	defer span.End()

	requester, err := viewer(c)
	if err != nil {
		return spanError(span, err)
	}

	cursor, limit, err := parseCursorLimit(c)
	if err != nil {
		return spanError(span, err)
	}
	span.SetAttributes(attribute.Int("limit", limit))

	out, err := srv.fg.GetTimeline(ctx, requester, cursor, limit)
	if err != nil {
		return spanError(span, err)
	}

	span.SetAttributes(attribute.Int("feed.length", len(out.Feed)))
	return c.JSON(http.StatusOK, out)
}

func (srv *Server) GetAuthorFeed(c echo.Context) error {
	ctx, span := tracer.Start(c.Request().Context(), "GetAuthorFeed")
	defer span.End()

	requester, err := viewer(c)
	if err != nil {
		return spanError(span, err)
	}

	actor := strings.TrimSpace(c.QueryParam("actor"))
	if !strings.HasPrefix(actor, "did:") {
		return spanError(span, fmt.Errorf("%w: 'actor' must be a DID", ErrInvalidRequest))
	}

	cursor, limit, err := parseCursorLimit(c)
	if err != nil {
		return spanError(span, err)
	}

	out, err := srv.fg.GetAuthorFeed(ctx, requester, actor, c.QueryParam("filter"), cursor, limit)
	if err != nil {
		return spanError(span, err)
	}

	span.SetAttributes(attribute.Int("feed.length", len(out.Feed)))
	return c.JSON(http.StatusOK, out)
}

func (srv *Server) GetPostThread(c echo.Context) error {
	ctx, span := tracer.Start(c.Request().Context(), "GetPostThread")
	defer span.End()

	requester, err := viewer(c)
	if err != nil {
		return spanError(span, err)
	}

	uri := strings.TrimSpace(c.QueryParam("uri"))
	if _, err := util.ParseAtUri(uri); err != nil {
		return spanError(span, fmt.Errorf("%w: %w", ErrInvalidRequest, err))
	}

	depth, err := intParam(c, "depth", thread.DefaultDepth)
	if err != nil {
		return spanError(span, err)
	}
	parentHeight, err := intParam(c, "parentHeight", thread.DefaultParentHeight)
	if err != nil {
		return spanError(span, err)
	}

	tn, err := srv.fg.GetPostThread(ctx, requester, uri, depth, parentHeight)
	if err != nil {
		return spanError(span, err)
	}

	return c.JSON(http.StatusOK, ThreadOutput{Thread: tn})
}

func (srv *Server) errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	name := "InternalServerError"
	msg := "internal server error"

	// sentinels first: middleware may have wrapped err in an HTTPError
	var he *echo.HTTPError
	switch {
	case errors.Is(err, feeds.ErrUnsupportedAlgorithm):
		code, name, msg = http.StatusBadRequest, "UnknownFeed", rootMessage(err)
	case errors.Is(err, thread.ErrNotFound):
		code, name, msg = http.StatusBadRequest, "NotFound", rootMessage(err)
	case errors.Is(err, keyset.ErrMalformedCursor), errors.Is(err, ErrInvalidRequest):
		code, name, msg = http.StatusBadRequest, "InvalidRequest", rootMessage(err)
	case errors.As(err, &he):
		code = he.Code
		if code < 500 {
			name = "InvalidRequest"
			msg = fmt.Sprintf("%s", he.Message)
		}
	}

	if code >= 500 {
		srv.logger.Error("feedview-http-internal-error", "err", err, "path", c.Path())
	}
	requestErrors.WithLabelValues(name).Inc()

	if err := c.JSON(code, GenericError{Error: name, Message: msg}); err != nil {
		srv.logger.Error("failed to write error response", "err", err)
	}
}

// rootMessage unwraps an echo.HTTPError down to the error it carries.
func rootMessage(err error) string {
	var he *echo.HTTPError
	if errors.As(err, &he) && he.Internal != nil {
		return he.Internal.Error()
	}
	return err.Error()
}

func (srv *Server) HandleHealthCheck(c echo.Context) error {
	if err := srv.fg.db.WithContext(c.Request().Context()).Exec("SELECT 1").Error; err != nil {
		srv.logger.Error("healthcheck can't connect to database", "err", err)
		return c.JSON(http.StatusInternalServerError, GenericStatus{Status: "error", Daemon: "feedview", Message: "can't connect to database"})
	}
	return c.JSON(http.StatusOK, GenericStatus{Status: "ok", Daemon: "feedview"})
}
