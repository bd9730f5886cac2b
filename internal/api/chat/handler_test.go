package chat

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/futig/medical-chatbot/internal/api/middleware"
	"github.com/futig/medical-chatbot/internal/config"
	"github.com/futig/medical-chatbot/internal/entity"
	"github.com/go-chi/chi/v5"
)

type fakeChatUsecase struct {
	mu      sync.Mutex
	err     error
	asked   []string
	reset   []string
	history map[string][]string
}

func newFakeChatUsecase() *fakeChatUsecase {
	return &fakeChatUsecase{history: map[string][]string{}}
}

func (f *fakeChatUsecase) Ask(_ context.Context, sessionID, question string) (*entity.Query, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.asked = append(f.asked, question)
	if f.err != nil {
		return nil, f.err
	}
	if strings.TrimSpace(question) == "" {
		return nil, entity.ErrEmptyQuestion
	}
	f.history[sessionID] = append(f.history[sessionID], question)
	return &entity.Query{
		RawQuestion: question,
		Answer:      fmt.Sprintf("answer #%d to %s", len(f.history[sessionID]), question),
	}, nil
}

func (f *fakeChatUsecase) Reset(_ context.Context, sessionID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reset = append(f.reset, sessionID)
	delete(f.history, sessionID)
}

func newTestRouter(uc ChatUsecase) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Session(config.SessionConfig{CookieName: "chat_session"}))
	RegisterRoutes(r, NewHandler(uc))
	return r
}

func postForm(t *testing.T, h http.Handler, path string, form url.Values, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == "chat_session" {
			return c
		}
	}
	t.Fatal("chat_session cookie not set")
	return nil
}

func TestIndexServesChatPage(t *testing.T) {
	h := newTestRouter(newFakeChatUsecase())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type = %q, want text/html", ct)
	}
	body := rec.Body.String()
	for _, want := range []string{"Medical Chatbot", "/get", "/reset", `id="send" disabled`, "await ready"} {
		if !strings.Contains(body, want) {
			t.Errorf("page does not contain %q", want)
		}
	}
}

func TestAskReturnsPlainTextAnswer(t *testing.T) {
	uc := newFakeChatUsecase()
	h := newTestRouter(uc)

	rec := postForm(t, h, "/get", url.Values{"msg": {"What is acne?"}})

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body %q", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("Content-Type = %q, want text/plain", ct)
	}
	if got, want := rec.Body.String(), "answer #1 to What is acne?"; got != want {
		t.Errorf("body = %q, want %q", got, want)
	}
}

func TestAskRejectsMissingAndEmptyQuestion(t *testing.T) {
	tests := []struct {
		name string
		form url.Values
	}{
		{name: "missing field", form: url.Values{"other": {"x"}}},
		{name: "empty", form: url.Values{"msg": {""}}},
		{name: "whitespace", form: url.Values{"msg": {"   "}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestRouter(newFakeChatUsecase())
			rec := postForm(t, h, "/get", tt.form)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
			if rec.Body.Len() == 0 {
				t.Error("expected an error message in the body")
			}
		})
	}
}

func TestAskMapsProviderErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{
			name: "timeout",
			err:  &entity.ProviderError{Provider: "llm", Op: "generate", Timeout: true, Err: context.DeadlineExceeded},
			want: http.StatusGatewayTimeout,
		},
		{
			name: "unavailable",
			err:  &entity.ProviderError{Provider: "embedding", Op: "embed", StatusCode: 503, Err: fmt.Errorf("down")},
			want: http.StatusBadGateway,
		},
		{
			name: "index not found",
			err:  fmt.Errorf("search: %w", entity.ErrIndexNotFound),
			want: http.StatusBadGateway,
		},
		{
			name: "too long",
			err:  fmt.Errorf("%w: msg", entity.ErrQuestionTooLong),
			want: http.StatusBadRequest,
		},
		{
			name: "unexpected",
			err:  fmt.Errorf("boom"),
			want: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			uc := newFakeChatUsecase()
			uc.err = tt.err
			h := newTestRouter(uc)

			rec := postForm(t, h, "/get", url.Values{"msg": {"question"}})
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
			if strings.Contains(rec.Body.String(), "answer #") {
				t.Errorf("error response leaked an answer: %q", rec.Body.String())
			}
		})
	}
}

func TestSessionCookieSeparatesConversations(t *testing.T) {
	uc := newFakeChatUsecase()
	h := newTestRouter(uc)

	first := postForm(t, h, "/get", url.Values{"msg": {"one"}})
	cookieA := sessionCookie(t, first)
	if !cookieA.HttpOnly {
		t.Error("session cookie must be HttpOnly")
	}

	second := postForm(t, h, "/get", url.Values{"msg": {"two"}}, cookieA)
	if got := second.Body.String(); got != "answer #2 to two" {
		t.Errorf("same session body = %q, want second turn", got)
	}
	if len(second.Result().Cookies()) != 0 {
		t.Error("cookie must not be reissued for a known session")
	}

	other := postForm(t, h, "/get", url.Values{"msg": {"three"}})
	if got := other.Body.String(); got != "answer #1 to three" {
		t.Errorf("new session body = %q, want first turn", got)
	}
	if sessionCookie(t, other).Value == cookieA.Value {
		t.Error("new browser got the same session id")
	}
}

func TestResetClearsOnlyCallerSession(t *testing.T) {
	uc := newFakeChatUsecase()
	h := newTestRouter(uc)

	cookieA := sessionCookie(t, postForm(t, h, "/get", url.Values{"msg": {"a"}}))
	cookieB := sessionCookie(t, postForm(t, h, "/get", url.Values{"msg": {"b"}}))

	rec := postForm(t, h, "/reset", url.Values{}, cookieA)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("reset status = %d, want 204", rec.Code)
	}

	if got := postForm(t, h, "/get", url.Values{"msg": {"a2"}}, cookieA).Body.String(); got != "answer #1 to a2" {
		t.Errorf("after reset body = %q, want a fresh conversation", got)
	}
	if got := postForm(t, h, "/get", url.Values{"msg": {"b2"}}, cookieB).Body.String(); got != "answer #2 to b2" {
		t.Errorf("other session body = %q, want its history kept", got)
	}
}

func TestIndexDoesNotTouchHistory(t *testing.T) {
	uc := newFakeChatUsecase()
	h := newTestRouter(uc)

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	uc.mu.Lock()
	defer uc.mu.Unlock()
	if len(uc.asked) != 0 || len(uc.reset) != 0 {
		t.Errorf("GET / called the usecase: asked=%v reset=%v", uc.asked, uc.reset)
	}
}
