// Package testutil builds gin contexts for handler tests.
package testutil

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/icubam/icubam/internal/shared/constants"
)

const formContentType = "application/x-www-form-urlencoded"

func init() {
	gin.SetMode(gin.TestMode)
}

func contextFor(req *http.Request) (*gin.Context, *httptest.ResponseRecorder) {
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = req
	return c, rec
}

func request(method, target, contentType string, body io.Reader) *http.Request {
	req := httptest.NewRequest(method, target, body)
	if contentType != "" {
		req.Header.Set(constants.HeaderContentType, contentType)
	}
	return req
}

// NewTestContext returns a context for method and path. A non-nil body is
// sent as JSON.
func NewTestContext(method, path string, body any) (*gin.Context, *httptest.ResponseRecorder) {
	if body == nil {
		return contextFor(request(method, path, "", nil))
	}
	payload, err := json.Marshal(body)
	if err != nil {
		panic(err)
	}
	return contextFor(request(method, path, constants.ContentTypeJSON, bytes.NewReader(payload)))
}

// NewRawContext sends body untouched with the given content type.
func NewRawContext(method, path, contentType, body string) (*gin.Context, *httptest.ResponseRecorder) {
	return contextFor(request(method, path, contentType, strings.NewReader(body)))
}

// NewFormContext posts form URL-encoded, as the update page does.
func NewFormContext(method, path string, form url.Values) (*gin.Context, *httptest.ResponseRecorder) {
	return NewRawContext(method, path, formContentType, form.Encode())
}

func SetCookie(c *gin.Context, name, value string) {
	c.Request.AddCookie(&http.Cookie{Name: name, Value: value})
}

func SetURLParam(c *gin.Context, key, value string) {
	c.Params = append(c.Params, gin.Param{Key: key, Value: value})
}

// SetQueryParams replaces the query string of the request.
func SetQueryParams(c *gin.Context, params map[string]string) {
	q := make(url.Values, len(params))
	for k, v := range params {
		q.Set(k, v)
	}
	c.Request.URL.RawQuery = q.Encode()
}

// ParseResponse decodes the recorded JSON body into target.
func ParseResponse(rec *httptest.ResponseRecorder, target any) error {
	return json.Unmarshal(rec.Body.Bytes(), target)
}

// APIResponse is the decoded form of the JSON envelope, with data left raw
// so tests can decode it into the type they expect.
type APIResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
		Details string `json:"details,omitempty"`
	} `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}
