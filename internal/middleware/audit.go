package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"strings"
	"time"

	"github.com/GoPolymarket/housevault/internal/model"
	"github.com/GoPolymarket/housevault/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const ContextAuditLog = "audit_log"

type bodyLogWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w bodyLogWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func AuditMiddleware(auditSvc *service.AuditService) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		reqID := uuid.New().String()
		c.Header("X-Request-ID", reqID)

		// Read the body and put it back for the handler to bind.
		var reqBodyBytes []byte
		if c.Request.Body != nil {
			reqBodyBytes, _ = io.ReadAll(c.Request.Body)
			c.Request.Body = io.NopCloser(bytes.NewBuffer(reqBodyBytes))
		}

		auditEntry := &model.AuditLog{
			ID:        reqID,
			Method:    c.Request.Method,
			Path:      c.Request.URL.Path,
			IP:        c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
			CreatedAt: start,
			Context:   make(map[string]interface{}),
		}
		c.Set(ContextAuditLog, auditEntry)

		blw := &bodyLogWriter{body: bytes.NewBufferString(""), ResponseWriter: c.Writer}
		c.Writer = blw

		c.Next()

		auditEntry.GameKey = c.GetString(ContextGameKey)
		if auditEntry.GameKey == "" {
			auditEntry.GameKey = c.Param("key")
		}
		auditEntry.Actor = c.GetString(ContextActorKey)
		if auditEntry.Actor == "" {
			auditEntry.Actor = "anonymous"
		}

		auditEntry.RequestBody = redactAuditBody(c.Request.URL.Path, reqBodyBytes)
		auditEntry.StatusCode = c.Writer.Status()
		auditEntry.ResponseBody = redactAuditBody(c.Request.URL.Path, []byte(blw.body.String()))
		auditEntry.LatencyMs = time.Since(start).Milliseconds()

		auditSvc.Log(auditEntry)
	}
}

// AddAuditContext attaches business context, such as a bet id, to the audit entry.
func AddAuditContext(c *gin.Context, key string, value interface{}) {
	if val, exists := c.Get(ContextAuditLog); exists {
		if entry, ok := val.(*model.AuditLog); ok {
			entry.Context[key] = value
		}
	}
}

func redactAuditBody(path string, body []byte) string {
	if len(body) == 0 {
		return ""
	}
	if !isSensitivePath(path) {
		return string(body)
	}
	redacted, ok := redactJSON(body)
	if !ok {
		return "[redacted]"
	}
	return string(redacted)
}

func isSensitivePath(path string) bool {
	switch {
	case strings.HasPrefix(path, "/v1/admin"):
		return true
	case strings.HasSuffix(path, "/claim"):
		return true
	default:
		return false
	}
}

func redactJSON(body []byte) ([]byte, bool) {
	var data interface{}
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, false
	}
	redactValue(&data)
	out, err := json.Marshal(data)
	if err != nil {
		return nil, false
	}
	return out, true
}

func redactValue(v *interface{}) {
	switch raw := (*v).(type) {
	case map[string]interface{}:
		for key, val := range raw {
			if isSensitiveKey(key) {
				raw[key] = "***"
				continue
			}
			vv := val
			redactValue(&vv)
			raw[key] = vv
		}
	case []interface{}:
		for i, val := range raw {
			vv := val
			redactValue(&vv)
			raw[i] = vv
		}
	}
}

func isSensitiveKey(key string) bool {
	switch strings.ToLower(strings.TrimSpace(key)) {
	case "token",
		"signature",
		"sig",
		"private_key",
		"admin_key",
		"investor_key":
		return true
	default:
		return false
	}
}
