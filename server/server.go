package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"jirabulk/api"
	"jirabulk/config"
	"jirabulk/models"
	"jirabulk/utils"
)

// JiraProxy はプロキシが呼び出すJIRA操作です (*api.JiraClient が実装します)
type JiraProxy interface {
	CreateIssue(ctx context.Context, req api.CreateIssueRequest) (string, error)
	UpdateIssue(ctx context.Context, key string, patch models.IssuePatch) error
}

// Server はブラウザ向けのJIRAプロキシです
type Server struct {
	cfg    *config.Config
	jira   JiraProxy
	engine *gin.Engine
	log    *slog.Logger
}

// New はルーティング済みのサーバーを作成します
func New(cfg *config.Config, jira JiraProxy) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		cfg:    cfg,
		jira:   jira,
		engine: gin.New(),
		log:    utils.WithComponent("server"),
	}

	s.engine.Use(gin.Recovery(), s.requestLogger(), cors(cfg.AllowedOrigin))

	apiGroup := s.engine.Group("/api")
	apiGroup.GET("/health", s.health)
	apiGroup.POST("/jira/issue", s.createIssue)
	apiGroup.POST("/jira/issue/update", s.updateIssue)

	return s
}

// Handler は http.Handler としてのエンジンを返します
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run は ctx がキャンセルされるまで待ち受けます
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.ServerAddr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("JIRAプロキシを起動しました", "addr", s.cfg.ServerAddr, "origin", s.cfg.AllowedOrigin)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		s.log.Info("JIRAプロキシを停止します")
		return srv.Shutdown(shutdownCtx)
	}
}

type createIssueBody struct {
	Type        string `json:"type"`
	Summary     string `json:"summary"`
	Description string `json:"description"`
	Assignee    string `json:"assignee"`
	ParentKey   string `json:"parentKey"`
	ProjectKey  string `json:"projectKey"`
	Sprint      string `json:"sprint"`
	StartDate   string `json:"startDate"`
	DueDate     string `json:"dueDate"`
}

// summary/description は「省略」と「空文字」を区別する
type updateIssueBody struct {
	Key         string  `json:"key"`
	Summary     *string `json:"summary"`
	Description *string `json:"description"`
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *Server) createIssue(c *gin.Context) {
	var body createIssueBody
	if err := c.ShouldBindJSON(&body); err != nil && !isEmptyBody(err) {
		errorResponse(c, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if body.Type == "" || body.Summary == "" {
		errorResponse(c, http.StatusBadRequest, "type and summary are required")
		return
	}
	if err := s.cfg.Validate(); err != nil {
		errorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}

	projectKey := body.ProjectKey
	if projectKey == "" {
		projectKey = s.cfg.JiraProjectKey
	}
	if projectKey == "" {
		errorResponse(c, http.StatusBadRequest, "projectKey is required")
		return
	}

	key, err := s.jira.CreateIssue(c.Request.Context(), api.CreateIssueRequest{
		Type:        models.IssueType(body.Type),
		ProjectKey:  projectKey,
		Summary:     body.Summary,
		Description: body.Description,
		Assignee:    body.Assignee,
		ParentKey:   body.ParentKey,
		Sprint:      body.Sprint,
		StartDate:   body.StartDate,
		DueDate:     body.DueDate,
	})
	if err != nil {
		s.log.Warn("イシュー作成に失敗しました", "type", body.Type, "error", err)
		errorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}

	c.JSON(http.StatusOK, gin.H{"key": key})
}

func (s *Server) updateIssue(c *gin.Context) {
	var body updateIssueBody
	if err := c.ShouldBindJSON(&body); err != nil && !isEmptyBody(err) {
		errorResponse(c, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if body.Key == "" {
		errorResponse(c, http.StatusBadRequest, "key is required")
		return
	}
	if body.Summary == nil && body.Description == nil {
		errorResponse(c, http.StatusBadRequest, "summary or description is required")
		return
	}
	if err := s.cfg.Validate(); err != nil {
		errorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}

	patch := models.IssuePatch{Summary: body.Summary, Description: body.Description}
	if err := s.jira.UpdateIssue(c.Request.Context(), body.Key, patch); err != nil {
		s.log.Warn("イシュー更新に失敗しました", "key", body.Key, "error", err)
		errorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func errorResponse(c *gin.Context, status int, message string) {
	if strings.TrimSpace(message) == "" {
		message = "Unknown error"
	}
	c.AbortWithStatusJSON(status, gin.H{"error": message})
}

// 空のボディは {} と同じ扱い
func isEmptyBody(err error) bool {
	return errors.Is(err, io.EOF)
}
