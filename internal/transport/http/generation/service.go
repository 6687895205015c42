package generation

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"chunks-server-go/internal/domain/scene"
	"chunks-server-go/internal/domain/session"
	"chunks-server-go/internal/domain/settings"
	platformerrors "chunks-server-go/internal/platform/errors"
	"chunks-server-go/internal/platform/logging"
	httptransport "chunks-server-go/internal/transport/http"
)

// Pipeline drives per-client generation sessions.
type Pipeline interface {
	Start(ctx context.Context, clientID string, req session.StartRequest) (session.Snapshot, error)
	Snapshot(clientID string) session.Snapshot
	Reset(clientID string) session.Snapshot
	ToggleDialogue(clientID string, expanded bool) session.Snapshot
}

// SceneLister lists the scene catalog.
type SceneLister interface {
	List() []scene.Scene
}

// Service 场景与生成接口的HTTP传输层实现
type Service struct {
	pipeline Pipeline
	scenes   SceneLister
	logger   *logging.Logger
}

func NewService(pipeline Pipeline, scenes SceneLister, logger *logging.Logger) (*Service, error) {
	if pipeline == nil {
		return nil, platformerrors.New(platformerrors.KindConfig, "generation.new", "pipeline is required")
	}
	if scenes == nil {
		return nil, platformerrors.New(platformerrors.KindConfig, "generation.new", "scene catalog is required")
	}
	if logger == nil {
		logger = logging.NewDiscard()
	}
	return &Service{pipeline: pipeline, scenes: scenes, logger: logger}, nil
}

// Register mounts the public scene list on api and the session routes on
// client, a group that requires a client id.
func (s *Service) Register(_ context.Context, api, client *gin.RouterGroup) error {
	api.GET("/scenes", s.handleScenes)

	client.POST("/generations", s.handleStart)
	client.GET("/generations/current", s.handleCurrent)
	client.DELETE("/generations/current", s.handleReset)
	client.PATCH("/generations/current/dialogue", s.handleDialogue)
	return nil
}

// handleScenes 场景列表
// @Summary 场景列表
// @Tags Scenes
// @Produce json
// @Success 200 {object} httptransport.APIResponse
// @Router /scenes [get]
func (s *Service) handleScenes(c *gin.Context) {
	httptransport.RespondSuccess(c, http.StatusOK, s.scenes.List(), "")
}

// handleStart 开始生成
// @Summary 开始生成对话与英语块
// @Tags Generations
// @Accept json
// @Produce json
// @Param Client-Id header string true "client id"
// @Param body body session.StartRequest true "scene or custom prompt"
// @Success 202 {object} httptransport.APIResponse
// @Router /generations [post]
func (s *Service) handleStart(c *gin.Context) {
	var req session.StartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httptransport.RespondError(c, http.StatusBadRequest, "Invalid JSON format", gin.H{"error": err.Error()})
		return
	}
	if req.SceneID == "" && req.CustomPrompt == "" {
		httptransport.RespondError(c, http.StatusBadRequest, "缺少 scene_id 或 custom_prompt", gin.H{})
		return
	}

	clientID := httptransport.ClientID(c)
	snap, err := s.pipeline.Start(c.Request.Context(), clientID, req)
	switch {
	case err == nil:
		httptransport.RespondSuccess(c, http.StatusAccepted, snap, "")
	case errors.Is(err, settings.ErrConfigMissing):
		httptransport.RespondError(c, http.StatusBadRequest, settings.ConfigMissingMessage, snap)
	case errors.Is(err, session.ErrUnknownScene):
		httptransport.RespondError(c, http.StatusBadRequest, "未知场景", gin.H{"scene_id": req.SceneID})
	default:
		s.logger.ErrorTag("Session", "启动生成失败 client=%s: %v", clientID, err)
		httptransport.RespondError(c, http.StatusInternalServerError, session.DialogueFailureMessage, snap)
	}
}

func (s *Service) handleCurrent(c *gin.Context) {
	httptransport.RespondSuccess(c, http.StatusOK, s.pipeline.Snapshot(httptransport.ClientID(c)), "")
}

func (s *Service) handleReset(c *gin.Context) {
	httptransport.RespondSuccess(c, http.StatusOK, s.pipeline.Reset(httptransport.ClientID(c)), "会话已重置")
}

func (s *Service) handleDialogue(c *gin.Context) {
	var req struct {
		Expanded *bool `json:"expanded"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Expanded == nil {
		httptransport.RespondError(c, http.StatusBadRequest, "缺少 expanded", gin.H{})
		return
	}
	httptransport.RespondSuccess(c, http.StatusOK, s.pipeline.ToggleDialogue(httptransport.ClientID(c), *req.Expanded), "")
}
