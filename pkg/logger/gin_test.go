package logger

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func testRouter(buf *bytes.Buffer) *gin.Engine {
	gin.SetMode(gin.TestMode)
	l := slog.New(slog.NewJSONHandler(buf, nil))
	r := gin.New()
	r.Use(Middleware(l))
	r.GET("/v1/calls/:call_id/outcome", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.POST("/webhook", func(c *gin.Context) { _ = c.PostForm("CallSid"); c.Status(http.StatusOK) })
	return r
}

func TestMiddleware_SetsRequestID(t *testing.T) {
	var buf bytes.Buffer
	r := testRouter(&buf)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/calls/CA9/outcome", nil)
	r.ServeHTTP(w, req)

	if w.Header().Get(headerRequestID) == "" {
		t.Fatalf("request id header not set")
	}
	if !strings.Contains(buf.String(), `"request_id"`) {
		t.Fatalf("log line missing request_id: %s", buf.String())
	}
}

func TestMiddleware_AnnotatesCallScopedRoutes(t *testing.T) {
	var buf bytes.Buffer
	r := testRouter(&buf)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/calls/CA9/outcome", nil)
	r.ServeHTTP(w, req)

	if !strings.Contains(buf.String(), `"call_id":"CA9"`) {
		t.Fatalf("log line missing call_id: %s", buf.String())
	}
}

func TestMiddleware_AnnotatesWebhookCallSid(t *testing.T) {
	var buf bytes.Buffer
	r := testRouter(&buf)

	w := httptest.NewRecorder()
	form := strings.NewReader("CallSid=CA7")
	req := httptest.NewRequest(http.MethodPost, "/webhook", form)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	r.ServeHTTP(w, req)

	if !strings.Contains(buf.String(), `"call_id":"CA7"`) {
		t.Fatalf("log line missing call_id: %s", buf.String())
	}
}
