package chat

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"html/template"
	"net/http"

	"github.com/futig/medical-chatbot/internal/api/middleware"
	"github.com/futig/medical-chatbot/internal/entity"
	"github.com/futig/medical-chatbot/internal/pkg/logger"
	"github.com/futig/medical-chatbot/internal/pkg/response"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"
)

// msgField is the form field carrying the question.
const msgField = "msg"

//go:embed templates/chat.html
var templatesFS embed.FS

var chatPage = template.Must(template.ParseFS(templatesFS, "templates/chat.html"))

type pageData struct {
	Title string
}

type Handler struct {
	usecase ChatUsecase
	page    []byte
}

func NewHandler(usecase ChatUsecase) *Handler {
	var buf bytes.Buffer
	if err := chatPage.Execute(&buf, pageData{Title: "Medical Chatbot"}); err != nil {
		panic(err)
	}

	return &Handler{
		usecase: usecase,
		page:    buf.Bytes(),
	}
}

// Index handles GET /
func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	response.HTML(w, http.StatusOK, h.page)
}

// Ask handles POST /get
func (h *Handler) Ask(w http.ResponseWriter, r *http.Request) {
	ctx := logger.WithAction(r.Context(), "Ask")

	if err := r.ParseForm(); err != nil {
		h.respondError(ctx, w, http.StatusBadRequest, "invalid form data", err)
		return
	}

	if _, ok := r.PostForm[msgField]; !ok {
		h.handleUsecaseError(ctx, w, entity.ErrMissingField)
		return
	}

	query, err := h.usecase.Ask(ctx, middleware.SessionID(ctx), r.PostForm.Get(msgField))
	if err != nil {
		h.handleUsecaseError(ctx, w, err)
		return
	}

	response.Text(w, http.StatusOK, query.Answer)
}

// Reset handles POST /reset
func (h *Handler) Reset(w http.ResponseWriter, r *http.Request) {
	ctx := logger.WithAction(r.Context(), "Reset")

	h.usecase.Reset(ctx, middleware.SessionID(ctx))

	response.NoContent(w)
}

func (h *Handler) respondError(ctx context.Context, w http.ResponseWriter, status int, message string, err error) {
	if status >= http.StatusInternalServerError {
		ctxzap.Error(ctx, message, zap.Error(err))
	} else {
		ctxzap.Warn(ctx, message, zap.Error(err))
	}
	response.Error(w, status, message)
}

func (h *Handler) handleUsecaseError(ctx context.Context, w http.ResponseWriter, err error) {
	if errors.Is(err, entity.ErrMissingField) {
		h.respondError(ctx, w, http.StatusBadRequest, "the msg field is required", err)
	} else if errors.Is(err, entity.ErrEmptyQuestion) {
		h.respondError(ctx, w, http.StatusBadRequest, "the question is empty", err)
	} else if errors.Is(err, entity.ErrQuestionTooLong) {
		h.respondError(ctx, w, http.StatusBadRequest, "the question is too long", err)
	} else if errors.Is(err, entity.ErrProviderTimeout) {
		h.respondError(ctx, w, http.StatusGatewayTimeout, "the assistant took too long to answer, please try again", err)
	} else if errors.Is(err, entity.ErrIndexNotFound) || errors.Is(err, entity.ErrProviderUnavailable) {
		h.respondError(ctx, w, http.StatusBadGateway, "the assistant is unavailable, please try again later", err)
	} else {
		h.respondError(ctx, w, http.StatusInternalServerError, "internal server error", err)
	}
}
