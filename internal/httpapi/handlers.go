package httpapi

import (
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/INQUIRELAB/mcp-bridge-api/internal/confirm"
	"github.com/INQUIRELAB/mcp-bridge-api/internal/metrics"
	"github.com/INQUIRELAB/mcp-bridge-api/internal/registry"
	"github.com/INQUIRELAB/mcp-bridge-api/internal/resolver"
)

func riskDescription(risk resolver.RiskClass) string {
	switch risk {
	case resolver.RiskLow:
		return "Low risk: standard execution"
	case resolver.RiskMedium:
		return "Medium risk: confirmation required before tool calls"
	case resolver.RiskHigh:
		return "High risk: container-isolated execution"
	default:
		return ""
	}
}

type dockerRequest struct {
	Image   string   `json:"image"`
	Volumes []string `json:"volumes"`
	Network string   `json:"network"`
}

type startRequest struct {
	ID        string         `json:"id"`
	Command   string         `json:"command"`
	Args      []string       `json:"args"`
	Env       []string       `json:"env"`
	RiskLevel *int           `json:"riskLevel"`
	Docker    *dockerRequest `json:"docker"`
}

func (rt *Router) handleStartServer(c *gin.Context) {
	var req startRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if req.ID == "" || req.Command == "" {
		writeError(c, http.StatusBadRequest, "id and command are required")
		return
	}
	if !isSafeIdentifier(req.ID) {
		writeError(c, http.StatusBadRequest, "invalid id: allowed [A-Za-z0-9._-]")
		return
	}

	risk := resolver.RiskUnspecified
	if req.RiskLevel != nil {
		switch *req.RiskLevel {
		case 1:
			risk = resolver.RiskLow
		case 2:
			risk = resolver.RiskMedium
		case 3:
			risk = resolver.RiskHigh
		default:
			writeError(c, http.StatusBadRequest, "invalid risk level: must be 1, 2, or 3")
			return
		}
	}

	var docker *resolver.DockerSpec
	if req.Docker != nil {
		docker = &resolver.DockerSpec{Image: req.Docker.Image, Volumes: req.Docker.Volumes, Network: req.Docker.Network}
	}
	if risk == resolver.RiskHigh && (docker == nil || docker.Image == "") {
		writeError(c, http.StatusBadRequest, "missing docker image for High risk level")
		return
	}

	rec, err := rt.registry.Start(req.ID, registry.LaunchSpec{
		Command: req.Command,
		Args:    req.Args,
		Env:     req.Env,
		Risk:    risk,
		Docker:  docker,
	})
	if err != nil {
		if errors.Is(err, registry.ErrAlreadyExists) {
			writeError(c, http.StatusConflict, "server already registered: "+req.ID)
			return
		}
		writeError(c, http.StatusInternalServerError, err.Error())
		return
	}

	resp := gin.H{"id": rec.ID(), "status": "connected", "pid": rec.PID()}
	if rec.Risk() != resolver.RiskUnspecified {
		resp["risk_level"] = int(rec.Risk())
		resp["risk_description"] = riskDescription(rec.Risk())
		resp["running_in_docker"] = rec.ViaDocker()
	}
	writeJSON(c, http.StatusCreated, resp)
}

func (rt *Router) handleListServers(c *gin.Context) {
	list := rt.registry.List()
	servers := make([]gin.H, 0, len(list))
	for _, info := range list {
		entry := gin.H{"id": info.ID, "connected": true, "pid": info.PID}
		if info.RiskSet {
			entry["risk_level"] = int(info.Risk)
			entry["risk_description"] = riskDescription(info.Risk)
			entry["running_in_docker"] = info.ViaDocker
		}
		servers = append(servers, entry)
	}
	writeJSON(c, http.StatusOK, gin.H{"servers": servers})
}

func (rt *Router) handleStopServer(c *gin.Context) {
	id := c.Param("id")
	if err := rt.registry.Stop(id); err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			writeError(c, http.StatusNotFound, "server not found: "+id)
			return
		}
		writeError(c, http.StatusInternalServerError, "failed to stop server: "+err.Error())
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"status": "disconnected"})
}

func (rt *Router) handleListTools(c *gin.Context) {
	rt.dispatch(c, "tools/list", nil)
}

func (rt *Router) handleCallTool(c *gin.Context) {
	args := bindArguments(c)
	rt.dispatch(c, "tools/call", map[string]interface{}{"name": c.Param("name"), "arguments": args})
}

func (rt *Router) handleListResources(c *gin.Context) {
	rt.dispatch(c, "resources/list", nil)
}

func (rt *Router) handleReadResource(c *gin.Context) {
	uri, err := url.PathUnescape(c.Param("uri"))
	if err != nil {
		writeError(c, http.StatusBadRequest, "invalid resource uri: "+err.Error())
		return
	}
	rt.dispatch(c, "resources/read", map[string]interface{}{"uri": uri})
}

func (rt *Router) handleListPrompts(c *gin.Context) {
	rt.dispatch(c, "prompts/list", nil)
}

func (rt *Router) handleGetPrompt(c *gin.Context) {
	args := bindArguments(c)
	rt.dispatch(c, "prompts/get", map[string]interface{}{"name": c.Param("name"), "arguments": args})
}

func bindArguments(c *gin.Context) map[string]interface{} {
	args := map[string]interface{}{}
	_ = c.ShouldBindJSON(&args)
	return args
}

// dispatch looks the server up in the registry and routes a JSON-RPC call
// through the correlation engine, passing the result straight through.
// A Medium-risk tools/call transparently comes back as a deferral
// response instead of a passthrough result; dispatch does not need to
// know the difference, since the engine already resolved it.
func (rt *Router) dispatch(c *gin.Context, method string, params interface{}) {
	id := c.Param("id")
	rec, ok := rt.registry.Get(id)
	if !ok {
		writeError(c, http.StatusNotFound, "server not found: "+id)
		return
	}

	start := time.Now()
	result, err := rt.engine.Call(rec, method, params, "")
	metrics.ObserveRequestDuration(id, method, time.Since(start).Seconds())
	if err != nil {
		metrics.IncRequest(id, method, "error")
		writeError(c, http.StatusInternalServerError, err.Error())
		return
	}
	metrics.IncRequest(id, method, "ok")
	writeRaw(c, http.StatusOK, result)
}

type confirmRequest struct {
	Confirm bool `json:"confirm"`
}

func (rt *Router) handleResolveConfirmation(c *gin.Context) {
	handle := c.Param("handle")
	var req confirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	result, err := rt.ledger.Resolve(handle, req.Confirm)
	if err != nil {
		switch {
		case errors.Is(err, confirm.ErrNotFound):
			writeError(c, http.StatusNotFound, "confirmation not found or expired")
		case errors.Is(err, confirm.ErrExpired):
			writeError(c, http.StatusGone, "confirmation has expired")
		default:
			writeError(c, http.StatusInternalServerError, err.Error())
		}
		return
	}
	writeRaw(c, http.StatusOK, result)
}

func (rt *Router) handleHealth(c *gin.Context) {
	list := rt.registry.List()
	servers := make([]string, 0, len(list))
	for _, info := range list {
		servers = append(servers, info.ID)
	}
	writeJSON(c, http.StatusOK, gin.H{
		"status":      "ok",
		"uptime":      time.Since(rt.startedAt).Seconds(),
		"serverCount": len(list),
		"servers":     servers,
	})
}
