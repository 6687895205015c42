package settingsapi

import (
	"context"
	"errors"
	"net/http"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"

	"chunks-server-go/internal/domain/settings"
	platformerrors "chunks-server-go/internal/platform/errors"
	"chunks-server-go/internal/platform/logging"
	httptransport "chunks-server-go/internal/transport/http"
)

// ExportFilename is the attachment name of a settings export.
const ExportFilename = "user-data.json"

// Settings is the part of the settings service the handlers use.
type Settings interface {
	View(ctx context.Context, clientID string) (settings.Settings, error)
	Update(ctx context.Context, clientID string, in settings.Settings) (settings.Settings, error)
	Reset(ctx context.Context, clientID string) error
}

// Service 设置接口的HTTP传输层实现
type Service struct {
	settings Settings
	logger   *logging.Logger
}

func NewService(svc Settings, logger *logging.Logger) (*Service, error) {
	if svc == nil {
		return nil, platformerrors.New(platformerrors.KindConfig, "settingsapi.new", "settings service is required")
	}
	if logger == nil {
		logger = logging.NewDiscard()
	}
	return &Service{settings: svc, logger: logger}, nil
}

// Register mounts the routes on a group that already requires a client id.
func (s *Service) Register(_ context.Context, router *gin.RouterGroup) error {
	router.GET("/settings", s.handleGet)
	router.PUT("/settings", s.handlePut)
	router.DELETE("/settings", s.handleDelete)
	router.GET("/settings/export", s.handleExport)
	return nil
}

// handleGet 读取设置
// @Summary 读取设置
// @Tags Settings
// @Produce json
// @Param Client-Id header string true "client id"
// @Success 200 {object} httptransport.APIResponse
// @Router /settings [get]
func (s *Service) handleGet(c *gin.Context) {
	view, err := s.settings.View(c.Request.Context(), httptransport.ClientID(c))
	if err != nil {
		s.respondStoreError(c, "读取设置失败", err)
		return
	}
	httptransport.RespondSuccess(c, http.StatusOK, view, "")
}

// handlePut 保存设置
func (s *Service) handlePut(c *gin.Context) {
	var in settings.Settings
	if err := c.ShouldBindJSON(&in); err != nil {
		httptransport.RespondError(c, http.StatusBadRequest, "Invalid JSON format", gin.H{"error": err.Error()})
		return
	}

	saved, err := s.settings.Update(c.Request.Context(), httptransport.ClientID(c), in)
	if err != nil {
		var verr *settings.ValidationError
		if errors.As(err, &verr) {
			httptransport.RespondError(c, http.StatusBadRequest, verr.Error(), gin.H{"field": verr.Field})
			return
		}
		s.respondStoreError(c, "保存设置失败", err)
		return
	}
	httptransport.RespondSuccess(c, http.StatusOK, saved, "设置已保存")
}

func (s *Service) handleDelete(c *gin.Context) {
	if err := s.settings.Reset(c.Request.Context(), httptransport.ClientID(c)); err != nil {
		s.respondStoreError(c, "删除设置失败", err)
		return
	}
	httptransport.RespondSuccess(c, http.StatusOK, gin.H{}, "设置已删除")
}

// handleExport 导出用户数据，API Key 保持脱敏
func (s *Service) handleExport(c *gin.Context) {
	view, err := s.settings.View(c.Request.Context(), httptransport.ClientID(c))
	if err != nil {
		s.respondStoreError(c, "导出数据失败", err)
		return
	}
	body, err := sonic.ConfigStd.MarshalIndent(map[string]any{"settings": view}, "", "  ")
	if err != nil {
		s.respondStoreError(c, "导出数据失败", err)
		return
	}
	httptransport.RespondAttachment(c, ExportFilename, body)
}

func (s *Service) respondStoreError(c *gin.Context, message string, err error) {
	s.logger.ErrorTag("Settings", "%s client=%s: %v", message, httptransport.ClientID(c), err)
	httptransport.RespondError(c, http.StatusInternalServerError, message, gin.H{})
}
