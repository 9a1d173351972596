// Package api exposes the operator-facing HTTP endpoints: manual
// labeling, ad-hoc classification, cycle triggers, and statistics.
package api

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/replypilot/internal/classify"
	"github.com/replypilot/internal/logging"
	"github.com/replypilot/pkg/models"
)

var log = logging.Component("api")

// Labeler appends manually labeled posts to the training dataset.
type Labeler interface {
	AddLabel(ctx context.Context, post, label string) error
	Count(ctx context.Context) (int64, error)
}

// CycleRunner triggers crawl-and-reply cycles on demand.
type CycleRunner interface {
	RunEngage(ctx context.Context) error
	RunHarvest(ctx context.Context) error
}

// PostLookup resolves posts by id for the statistics endpoint.
type PostLookup interface {
	PostsByID(ctx context.Context, ids []int64) ([]models.Post, []int64, error)
}

// Server is the operator HTTP server.
type Server struct {
	echo       *echo.Echo
	port       int
	labeler    Labeler
	classifier classify.Classifier
	runner     CycleRunner
	posts      PostLookup
}

func NewServer(port int, labeler Labeler, classifier classify.Classifier, runner CycleRunner, posts PostLookup) *Server {
	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	s := &Server{
		echo:       e,
		port:       port,
		labeler:    labeler,
		classifier: classifier,
		runner:     runner,
		posts:      posts,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.echo.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "healthy"})
	})

	v1 := s.echo.Group("/api/v1")
	v1.POST("/labels", s.addLabel)
	v1.POST("/classify", s.classifyPost)
	v1.POST("/cycles/engage", s.triggerEngage)
	v1.POST("/cycles/harvest", s.triggerHarvest)
	v1.GET("/statistics", s.statistics)
	v1.GET("/posts/statistics", s.postStatistics)
}

type labelRequest struct {
	Post  string `json:"post"`
	Label string `json:"label"`
}

func (s *Server) addLabel(c echo.Context) error {
	var req labelRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if req.Post == "" || req.Label == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "missing 'post' or 'label'"})
	}

	if err := s.labeler.AddLabel(c.Request().Context(), req.Post, req.Label); err != nil {
		log.Error().Err(err).Msg("failed to store label")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to store label"})
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "example added successfully"})
}

type classifyRequest struct {
	Post string `json:"post"`
}

func (s *Server) classifyPost(c echo.Context) error {
	var req classifyRequest
	if err := c.Bind(&req); err != nil || req.Post == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "missing 'post'"})
	}

	prediction, err := s.classifier.Classify(c.Request().Context(), req.Post)
	if err != nil {
		log.Error().Err(err).Msg("classification failed")
		return c.JSON(http.StatusBadGateway, map[string]string{"error": "classifier unavailable"})
	}
	return c.JSON(http.StatusOK, prediction)
}

// triggerEngage kicks off one engagement cycle in the background. The
// scheduler normally owns this; the endpoint exists for manual runs.
func (s *Server) triggerEngage(c echo.Context) error {
	go func() {
		if err := s.runner.RunEngage(context.Background()); err != nil {
			log.Error().Err(err).Msg("manual engage cycle failed")
		}
	}()
	return c.JSON(http.StatusAccepted, map[string]string{"status": "started"})
}

func (s *Server) triggerHarvest(c echo.Context) error {
	go func() {
		if err := s.runner.RunHarvest(context.Background()); err != nil {
			log.Error().Err(err).Msg("manual harvest cycle failed")
		}
	}()
	return c.JSON(http.StatusAccepted, map[string]string{"status": "started"})
}

func (s *Server) statistics(c echo.Context) error {
	count, err := s.labeler.Count(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to read statistics"})
	}
	return c.JSON(http.StatusOK, map[string]any{"labeled_examples": count})
}

// postStatistics fetches public metrics for one post, given either a
// status URL or a bare post id.
func (s *Server) postStatistics(c echo.Context) error {
	ref := c.QueryParam("url")
	if ref == "" {
		ref = c.QueryParam("id")
	}
	id, err := parsePostRef(ref)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "missing or invalid 'url'"})
	}

	posts, _, err := s.posts.PostsByID(c.Request().Context(), []int64{id})
	if err != nil {
		log.Error().Err(err).Int64("post_id", id).Msg("post lookup failed")
		return c.JSON(http.StatusBadGateway, map[string]string{"error": "feed unavailable"})
	}
	if len(posts) == 0 {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "post not found"})
	}

	post := posts[0]
	return c.JSON(http.StatusOK, map[string]any{
		"post_id":        strconv.FormatInt(post.ID, 10),
		"public_metrics": post.PublicMetrics,
	})
}

// parsePostRef accepts ".../status/<id>" URLs and bare numeric ids.
func parsePostRef(ref string) (int64, error) {
	ref = strings.TrimSuffix(ref, "/")
	if i := strings.LastIndex(ref, "/"); i >= 0 {
		ref = ref[i+1:]
	}
	if j := strings.IndexAny(ref, "?#"); j >= 0 {
		ref = ref[:j]
	}
	return strconv.ParseInt(ref, 10, 64)
}

// Start runs the server until an interrupt arrives, then shuts down
// gracefully.
func (s *Server) Start() error {
	go func() {
		if err := s.echo.Start(fmt.Sprintf(":%d", s.port)); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server stopped")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.echo.Shutdown(ctx)
}

// Handler exposes the echo handler for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}
