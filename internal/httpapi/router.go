// Package httpapi is the single HTTP/JSON surface of §6: it translates
// REST calls into registry, correlation-engine, and confirmation-ledger
// operations and shapes every response and error as JSON.
package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/INQUIRELAB/mcp-bridge-api/internal/confirm"
	"github.com/INQUIRELAB/mcp-bridge-api/internal/metrics"
	"github.com/INQUIRELAB/mcp-bridge-api/internal/registry"
	"github.com/INQUIRELAB/mcp-bridge-api/internal/rpc"
)

// Router wires the three supervising subsystems to gin routes.
type Router struct {
	registry  *registry.Registry
	engine    *rpc.Engine
	ledger    *confirm.Ledger
	startedAt time.Time
}

// New builds a Router over an already-constructed registry, correlation
// engine, and confirmation ledger.
func New(reg *registry.Registry, engine *rpc.Engine, ledger *confirm.Ledger) *Router {
	return &Router{registry: reg, engine: engine, ledger: ledger, startedAt: time.Now()}
}

// Handler returns an http.Handler exposing every route from §6.
func (rt *Router) Handler() http.Handler {
	g := gin.New()
	g.Use(gin.Recovery())
	// Match on the still-encoded request path so a resource URI's escaped
	// "/" (e.g. file%3A%2F%2F%2F...) survives as one :uri segment instead
	// of being pre-decoded into extra path segments by net/http. Leave the
	// param value itself encoded too, so handleReadResource's single
	// url.PathUnescape call is the only decode that happens.
	g.UseRawPath = true
	g.UnescapePathValues = false

	g.GET("/servers", rt.handleListServers)
	g.POST("/servers", rt.handleStartServer)
	g.DELETE("/servers/:id", rt.handleStopServer)
	g.GET("/servers/:id/tools", rt.handleListTools)
	g.POST("/servers/:id/tools/:name", rt.handleCallTool)
	g.GET("/servers/:id/resources", rt.handleListResources)
	g.GET("/servers/:id/resources/:uri", rt.handleReadResource)
	g.GET("/servers/:id/prompts", rt.handleListPrompts)
	g.POST("/servers/:id/prompts/:name", rt.handleGetPrompt)
	g.POST("/confirmations/:handle", rt.handleResolveConfirmation)
	g.GET("/health", rt.handleHealth)
	g.GET("/metrics", gin.WrapH(metrics.Handler()))

	return g
}

type errorResp struct {
	Error string `json:"error"`
}

func writeJSON(c *gin.Context, code int, v any) {
	c.Header("Content-Type", "application/json")
	c.Status(code)
	_ = json.NewEncoder(c.Writer).Encode(v)
}

func writeError(c *gin.Context, code int, message string) {
	writeJSON(c, code, errorResp{Error: message})
}

func writeRaw(c *gin.Context, code int, raw json.RawMessage) {
	c.Data(code, "application/json", raw)
}

// isSafeIdentifier restricts server identifiers to the same charset the
// teacher applies to process names, since both end up embedded in log
// lines and (for identifiers, not here) filesystem paths.
func isSafeIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '.' || r == '_' || r == '-':
		default:
			return false
		}
	}
	return !strings.Contains(s, "..")
}
