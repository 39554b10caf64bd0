package httpgin

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestNoneMatch(t *testing.T) {
	tag := `W/"abc"`

	cases := []struct {
		header string
		want   bool
	}{
		{"", false},
		{"*", true},
		{`W/"abc"`, true},
		{`"abc"`, true},
		{`"zzz", W/"abc"`, true},
		{`"zzz" , "yyy"`, false},
		{`W/"ab"`, false},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, noneMatch(tc.header, tag), "If-None-Match: %q", tc.header)
	}
}

func TestWriteConditionalJSON(t *testing.T) {
	gin.SetMode(gin.TestMode)

	serve := func(inm string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
		if inm != "" {
			c.Request.Header.Set("If-None-Match", inm)
		}
		writeConditionalJSON(c, map[string]string{"id": "b1"})
		c.Writer.WriteHeaderNow()
		return w
	}

	w := serve("")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"id":"b1"}`, w.Body.String())
	assert.Equal(t, privateRevalidate, w.Header().Get("Cache-Control"))
	tag := w.Header().Get("ETag")
	assert.Regexp(t, `^W/"[A-Za-z0-9_-]{24}"$`, tag)

	w = serve(`"other", ` + tag)
	assert.Equal(t, http.StatusNotModified, w.Code)
	assert.Empty(t, w.Body.String())
}
