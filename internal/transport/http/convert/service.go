package convert

import (
	"context"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"chunks-server-go/internal/domain/chunks"
	"chunks-server-go/internal/domain/llm"
	"chunks-server-go/internal/domain/settings"
	platformerrors "chunks-server-go/internal/platform/errors"
	"chunks-server-go/internal/platform/logging"
	httptransport "chunks-server-go/internal/transport/http"
)

const (
	// DefaultMaxUploadBytes caps an uploaded text file.
	DefaultMaxUploadBytes = 1 << 20

	formField = "file"
)

// Converter turns text into a downloadable chunks document.
type Converter interface {
	Convert(ctx context.Context, cfg llm.Config, text string) (*chunks.Conversion, error)
}

// ConfigResolver resolves the client's endpoint configuration.
type ConfigResolver interface {
	LLMConfig(ctx context.Context, clientID string) (llm.Config, error)
}

// Service 文件转换接口的HTTP传输层实现
type Service struct {
	converter Converter
	config    ConfigResolver
	maxBytes  int64
	logger    *logging.Logger
}

func NewService(converter Converter, config ConfigResolver, maxBytes int64, logger *logging.Logger) (*Service, error) {
	if converter == nil {
		return nil, platformerrors.New(platformerrors.KindConfig, "convert.new", "converter is required")
	}
	if config == nil {
		return nil, platformerrors.New(platformerrors.KindConfig, "convert.new", "config resolver is required")
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxUploadBytes
	}
	if logger == nil {
		logger = logging.NewDiscard()
	}
	return &Service{converter: converter, config: config, maxBytes: maxBytes, logger: logger}, nil
}

func (s *Service) Register(_ context.Context, router *gin.RouterGroup) error {
	router.POST("/convert", s.handleConvert)
	return nil
}

// handleConvert 把上传的 .txt 文件转换为英语块 JSON
// @Summary 文本转英语块
// @Tags Convert
// @Accept multipart/form-data
// @Produce json
// @Param Client-Id header string true "client id"
// @Param file formData file true "text file"
// @Success 200 {file} file
// @Router /convert [post]
func (s *Service) handleConvert(c *gin.Context) {
	// multipart overhead is small next to the cap
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.maxBytes+4096)

	header, err := c.FormFile(formField)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httptransport.RespondError(c, http.StatusRequestEntityTooLarge, "文件过大", gin.H{"max_bytes": s.maxBytes})
			return
		}
		httptransport.RespondError(c, http.StatusBadRequest, "缺少上传文件", gin.H{})
		return
	}
	if !strings.EqualFold(filepath.Ext(header.Filename), ".txt") {
		httptransport.RespondError(c, http.StatusBadRequest, "仅支持 .txt 文本文件", gin.H{})
		return
	}
	if header.Size > s.maxBytes {
		httptransport.RespondError(c, http.StatusRequestEntityTooLarge, "文件过大", gin.H{"max_bytes": s.maxBytes})
		return
	}

	f, err := header.Open()
	if err != nil {
		httptransport.RespondError(c, http.StatusBadRequest, "无法读取上传文件", gin.H{})
		return
	}
	defer f.Close()
	text, err := io.ReadAll(io.LimitReader(f, s.maxBytes))
	if err != nil {
		httptransport.RespondError(c, http.StatusBadRequest, "无法读取上传文件", gin.H{})
		return
	}

	clientID := httptransport.ClientID(c)
	cfg, err := s.config.LLMConfig(c.Request.Context(), clientID)
	if err != nil {
		if errors.Is(err, settings.ErrConfigMissing) {
			httptransport.RespondError(c, http.StatusBadRequest, settings.ConfigMissingMessage, gin.H{})
			return
		}
		s.logger.ErrorTag("Convert", "读取设置失败 client=%s: %v", clientID, err)
		httptransport.RespondError(c, http.StatusInternalServerError, "处理文件时发生错误", gin.H{})
		return
	}

	out, err := s.converter.Convert(c.Request.Context(), cfg, string(text))
	if err != nil {
		s.logger.ErrorTag("Convert", "转换失败 client=%s file=%s: %v", clientID, header.Filename, err)
		httptransport.RespondError(c, http.StatusBadGateway, failureMessage(err), gin.H{})
		return
	}

	s.logger.InfoTag("Convert", "转换完成 client=%s file=%s -> %s", clientID, header.Filename, out.Filename)
	httptransport.RespondAttachment(c, out.Filename, out.Data)
}

func failureMessage(err error) string {
	var te *llm.TransportError
	switch {
	case errors.As(err, &te):
		return "API 调用失败: " + te.Status
	case errors.Is(err, chunks.ErrEmptyResponse):
		return "API 返回数据格式错误"
	case errors.Is(err, chunks.ErrNoJSONObject):
		return chunks.ErrNoJSONObject.Error()
	default:
		return "处理文件时发生错误"
	}
}
