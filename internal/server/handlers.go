package server

import (
	"embed"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"mediaqa/internal/agent"
	"mediaqa/internal/core"
	"mediaqa/internal/upload"
	"mediaqa/internal/video"
)

//go:embed templates/index.html
var templatesFS embed.FS

var pageTemplate = template.Must(template.ParseFS(templatesFS, "templates/index.html"))

// videoField and queryField are the multipart field names of an analysis request.
const (
	videoField = "video"
	queryField = "query"
)

// Handler holds the HTTP handlers
type Handler struct {
	summarizer video.Summarizer
	uploadDir  string
	maxUpload  int64
}

// NewHandler creates a new handler for the given summarizer
func NewHandler(summarizer video.Summarizer, uploadDir string, maxUpload int64) *Handler {
	return &Handler{
		summarizer: summarizer,
		uploadDir:  uploadDir,
		maxUpload:  maxUpload,
	}
}

type pageData struct {
	Variant   video.Variant
	Accept    string
	Query     string
	Info      string
	Warning   string
	Error     string
	Result    *video.Result
	ToolCalls string
}

func (h *Handler) page() pageData {
	accept := make([]string, len(upload.AllowedExtensions))
	for i, ext := range upload.AllowedExtensions {
		accept[i] = "." + ext
	}
	return pageData{
		Variant: h.summarizer.Variant(),
		Accept:  strings.Join(accept, ","),
	}
}

func (h *Handler) render(c echo.Context, status int, data pageData) error {
	var b strings.Builder
	if err := pageTemplate.Execute(&b, data); err != nil {
		return err
	}
	return c.HTML(status, b.String())
}

// Index handles GET /
func (h *Handler) Index(c echo.Context) error {
	data := h.page()
	data.Info = data.Variant.NoFileInfo
	return h.render(c, http.StatusOK, data)
}

// Analyze handles POST /analyze from the upload form
func (h *Handler) Analyze(c echo.Context) error {
	data := h.page()
	data.Query = c.FormValue(queryField)

	file, err := h.saveUpload(c)
	if err != nil {
		data.Error = data.Variant.ErrorPrefix + core.UserMessage(err)
		return h.render(c, core.AsError(err).HTTPStatusCode(), data)
	}
	if file == nil {
		data.Info = data.Variant.NoFileInfo
		return h.render(c, http.StatusOK, data)
	}
	if strings.TrimSpace(data.Query) == "" {
		removeUpload(file)
		data.Warning = data.Variant.EmptyQueryWarning
		return h.render(c, http.StatusOK, data)
	}

	res, err := video.Analyze(c.Request().Context(), h.summarizer, video.Request{File: file, Query: data.Query})
	if err != nil {
		data.Error = data.Variant.ErrorPrefix + core.UserMessage(err)
		return h.render(c, core.AsError(err).HTTPStatusCode(), data)
	}
	data.Result = res
	data.ToolCalls = agent.FormatToolCalls(res.ToolCalls)
	return h.render(c, http.StatusOK, data)
}

type analyzeResponse struct {
	Content    string                 `json:"content"`
	ToolCalls  []agent.ToolCallRecord `json:"tool_calls,omitempty"`
	Usage      core.Usage             `json:"usage"`
	DurationMS int64                  `json:"duration_ms"`
}

// AnalyzeAPI handles POST /v1/analyze
func (h *Handler) AnalyzeAPI(c echo.Context) error {
	file, err := h.saveUpload(c)
	if err != nil {
		return handleError(c, err)
	}

	res, err := video.Analyze(c.Request().Context(), h.summarizer, video.Request{
		File:  file,
		Query: c.FormValue(queryField),
	})
	if err != nil {
		return handleError(c, err)
	}

	return c.JSON(http.StatusOK, analyzeResponse{
		Content:    res.Content,
		ToolCalls:  res.ToolCalls,
		Usage:      res.Usage,
		DurationMS: res.Duration.Milliseconds(),
	})
}

// Health handles GET /health
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// saveUpload stores the multipart video field in a temporary file.
// It returns nil without error when the request carries no file.
func (h *Handler) saveUpload(c echo.Context) (*upload.File, error) {
	header, err := c.FormFile(videoField)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			return nil, nil
		}
		return nil, core.NewUserInputError("invalid upload: "+err.Error(), err)
	}
	if header.Filename == "" {
		return nil, nil
	}

	src, err := header.Open()
	if err != nil {
		return nil, core.NewUserInputError("invalid upload: "+err.Error(), err)
	}
	defer src.Close()

	return upload.Save(h.uploadDir, header.Filename, src, h.maxUpload)
}

func removeUpload(f *upload.File) {
	if err := f.Remove(); err != nil {
		slog.Warn("failed to remove uploaded video", "path", f.Path, "error", err)
	}
}

// handleError converts errors to JSON responses
func handleError(c echo.Context, err error) error {
	e := core.AsError(err)
	if e.Kind == core.KindInternal {
		slog.Error("unexpected error", "request_id", core.GetRequestID(c.Request().Context()), "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]interface{}{
			"error": map[string]interface{}{
				"type":    core.KindInternal,
				"message": "an unexpected error occurred",
			},
		})
	}
	return c.JSON(e.HTTPStatusCode(), e.ToJSON())
}
