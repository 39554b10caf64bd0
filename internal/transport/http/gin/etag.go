package httpgin

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// Booking and invoice reads are per-user, so they may be stored only by the
// client and must be revalidated every time.
const privateRevalidate = "private, no-cache"

// writeConditionalJSON answers with 304 when If-None-Match already names the
// body's entity tag, and with the JSON body otherwise. Tags are weak because
// the body is re-encoded on every request.
func writeConditionalJSON(c *gin.Context, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		_ = c.Error(err)
		c.Status(http.StatusInternalServerError)
		return
	}

	tag := weakTag(b)
	c.Header("ETag", tag)
	c.Header("Cache-Control", privateRevalidate)
	c.Header("Vary", "Authorization")

	if noneMatch(c.GetHeader("If-None-Match"), tag) {
		c.Status(http.StatusNotModified)
		return
	}

	c.Data(http.StatusOK, "application/json; charset=utf-8", b)
}

func weakTag(body []byte) string {
	sum := sha256.Sum256(body)
	return `W/"` + base64.RawURLEncoding.EncodeToString(sum[:18]) + `"`
}

// noneMatch reports whether the If-None-Match header matches tag using weak
// comparison, which ignores the W/ prefix on either side.
func noneMatch(header, tag string) bool {
	header = strings.TrimSpace(header)
	if header == "" {
		return false
	}
	if header == "*" {
		return true
	}

	want := strings.TrimPrefix(tag, "W/")
	for _, candidate := range strings.Split(header, ",") {
		if strings.TrimPrefix(strings.TrimSpace(candidate), "W/") == want {
			return true
		}
	}
	return false
}
