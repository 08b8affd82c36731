package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func TestRequestID_GeneratedWhenAbsent(t *testing.T) {
	r := gin.New()
	r.Use(RequestIDMiddleware())
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/x", nil))

	id := w.Header().Get(RequestIDHeader)
	if id == "" {
		t.Fatal("no X-Request-ID on response")
	}
	if _, err := uuid.Parse(id); err != nil {
		t.Errorf("generated id %q is not a UUID: %v", id, err)
	}
}

func TestRequestID_InboundValueReused(t *testing.T) {
	var seen string
	r := gin.New()
	r.Use(RequestIDMiddleware())
	r.GET("/x", func(c *gin.Context) {
		v, _ := c.Get(RequestIDKey)
		seen, _ = v.(string)
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest("GET", "/x", nil)
	req.Header.Set(RequestIDHeader, "upstream-id-42")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Header().Get(RequestIDHeader) != "upstream-id-42" {
		t.Errorf("response id = %q, want upstream value", w.Header().Get(RequestIDHeader))
	}
	if seen != "upstream-id-42" {
		t.Errorf("context id = %q, want upstream value", seen)
	}
}
