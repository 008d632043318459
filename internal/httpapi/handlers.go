package httpapi

import (
	"errors"
	"net/http"
	"time"

	"phone-agent/internal/auth"
	"phone-agent/internal/events"
	"phone-agent/internal/store"
	"phone-agent/internal/telephony"
	"phone-agent/internal/workflow"

	"github.com/gin-gonic/gin"
)

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.

type Handlers struct {
	Auth      *auth.Manager
	Workflows *workflow.Service
	Dialer    telephony.Dialer
	Bus       *events.Bus
	Store     store.Store
}

// --- Auth ---

type loginRequest struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

// Login issues a JWT token pair.
//
// NOTE: This is a skeleton-only endpoint. Real systems must validate credentials.
func (h Handlers) Login(c *gin.Context) {
	if h.Auth == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "auth not configured"})
		return
	}
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.UserID == "" || req.Role == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "user_id, role required"})
		return
	}
	pair, err := h.Auth.IssuePair(time.Now(), req.UserID, req.Role)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "token issuance failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": pair.AccessToken, "refresh_token": pair.RefreshToken})
}

// --- Calls ---

type startCallRequest struct {
	PhoneNumber  string `json:"phone_number"`
	Goal         string `json:"goal"`
	CompanyName  string `json:"company_name"`
	TargetPerson string `json:"target_person,omitempty"`
}

// StartCall places a single ad-hoc call outside any workflow.
func (h Handlers) StartCall(c *gin.Context) {
	var req startCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.PhoneNumber == "" || req.Goal == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "phone_number, goal required"})
		return
	}

	callID, err := telephony.Initiate(c.Request.Context(), h.Dialer, h.Bus, telephony.OutboundCallRequest{
		To:           req.PhoneNumber,
		Goal:         req.Goal,
		CompanyName:  req.CompanyName,
		TargetPerson: req.TargetPerson,
	})
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": "call placement failed"})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"call_id": callID})
}

// GetCallOutcome returns the persisted result of a finished call.
func (h Handlers) GetCallOutcome(c *gin.Context) {
	callID := c.Param("call_id")
	if callID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "call_id required"})
		return
	}
	o, err := h.Store.GetOutcome(c.Request.Context(), callID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "outcome not found"})
			return
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "outcome lookup failed"})
		return
	}
	c.JSON(http.StatusOK, o)
}

// GetCallTranscript returns the logged transcript lines for a call.
func (h Handlers) GetCallTranscript(c *gin.Context) {
	callID := c.Param("call_id")
	if callID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "call_id required"})
		return
	}
	lines, err := h.Store.ListTranscript(c.Request.Context(), callID)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "transcript lookup failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"call_id": callID, "lines": lines})
}

// --- Workflows ---

// StartWorkflow begins the verify-then-gather workflow for one business.
func (h Handlers) StartWorkflow(c *gin.Context) {
	var req workflow.StartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	wf, err := h.Workflows.Start(c.Request.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, workflow.ErrInvalidRequest):
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "business_id, phone_number, goal required"})
		case errors.Is(err, workflow.ErrAlreadyRunning):
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "workflow already running for business"})
		default:
			// Placement failures still leave a failed workflow behind;
			// return it so the caller sees the recorded error.
			c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": err.Error(), "workflow": wf})
		}
		return
	}
	c.JSON(http.StatusAccepted, wf)
}

type batchRequest struct {
	Targets []workflow.StartRequest `json:"targets"`
}

// StartBatch runs workflows for several businesses sequentially.
// The call blocks until every target has been started or rejected.
func (h Handlers) StartBatch(c *gin.Context) {
	var req batchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if len(req.Targets) == 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "targets required"})
		return
	}
	results := h.Workflows.RunBatch(c.Request.Context(), req.Targets)
	c.JSON(http.StatusOK, gin.H{"results": results})
}

func (h Handlers) GetWorkflow(c *gin.Context) {
	businessID := c.Param("business_id")
	wf, err := h.Workflows.Get(businessID)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "workflow not found"})
		return
	}
	c.JSON(http.StatusOK, wf)
}

func (h Handlers) ListWorkflows(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"workflows": h.Workflows.List()})
}

func (h Handlers) CancelWorkflow(c *gin.Context) {
	businessID := c.Param("business_id")
	if err := h.Workflows.Cancel(businessID); err != nil {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "workflow not found"})
		return
	}
	c.Status(http.StatusNoContent)
}
