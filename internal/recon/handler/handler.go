// Package handler exposes the operator API for the reconciliation
// pipelines: triggering status reports and inspecting run statuses.
package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"

	"seatool_alerts/internal/orchestrator"
	"seatool_alerts/internal/recon"
	"seatool_alerts/internal/store"
	"seatool_alerts/platform/httpkit"
	"seatool_alerts/platform/validator"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
	msgUnknownPipeline  = "unknown pipeline"
)

// ReportEnqueuer schedules a status report for asynchronous delivery.
type ReportEnqueuer interface {
	EnqueueReport(ctx context.Context, pipeline string, payload orchestrator.ReportPayload) error
}

type Handler struct {
	profiles         map[string]*recon.Profile
	docs             store.Store
	enqueuer         ReportEnqueuer
	defaultRecipient string
	val              *validator.Validator
}

func New(
	profiles map[string]*recon.Profile,
	docs store.Store,
	enqueuer ReportEnqueuer,
	defaultRecipient string,
	val *validator.Validator,
) *Handler {
	return &Handler{
		profiles:         profiles,
		docs:             docs,
		enqueuer:         enqueuer,
		defaultRecipient: defaultRecipient,
		val:              val,
	}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/reports", h.CreateReport)
	rg.GET("/statuses", h.ListStatuses)
}

type CreateReportRequest struct {
	Pipeline  string `json:"pipeline" validate:"required"`
	Recipient string `json:"recipient" validate:"omitempty,email"`
	Days      *int   `json:"days" validate:"omitempty,min=1,max=365"`
}

// CreateReport enqueues a status report for one pipeline. The recipient
// falls back to the configured report address; the day window is mandatory
// for the tier-escalation pipeline because its report is always bounded.
func (h *Handler) CreateReport(c *gin.Context) {
	var req CreateReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, err.Error())
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	profile, ok := h.profiles[req.Pipeline]
	if !ok {
		httpkit.Error(c, http.StatusBadRequest, msgUnknownPipeline, req.Pipeline)
		return
	}

	recipient := req.Recipient
	if recipient == "" {
		recipient = h.defaultRecipient
	}
	if recipient == "" {
		httpkit.Error(c, http.StatusBadRequest, "recipient is required", nil)
		return
	}
	if profile.EscalationModel == recon.EscalateByTier && req.Days == nil {
		httpkit.Error(c, http.StatusBadRequest, "days is required for this pipeline", nil)
		return
	}

	err := h.enqueuer.EnqueueReport(c.Request.Context(), profile.Name, orchestrator.ReportPayload{
		Recipient: recipient,
		Days:      req.Days,
	})
	if httpkit.HandleError(c, err) {
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"status": "queued", "pipeline": profile.Name})
}

type StatusResponse struct {
	ID             string  `json:"id"`
	Pipeline       string  `json:"pipeline"`
	CorrelationID  string  `json:"correlationId"`
	ProgramType    string  `json:"programType,omitempty"`
	ClockStartDate *string `json:"clockStartDate,omitempty"`
	SignedDate     *string `json:"signedDate,omitempty"`
	Submitted      bool    `json:"submitted"`
	SeatoolExist   bool    `json:"seatoolExist"`
	Match          bool    `json:"match"`
	AlertsIgnored  bool    `json:"alertsIgnored"`
	Iterations     int     `json:"iterations"`
	LastError      string  `json:"lastError,omitempty"`
}

// ListStatuses returns the run status rows for one pipeline, most-recently
// signed first.
func (h *Handler) ListStatuses(c *gin.Context) {
	name := c.Query("pipeline")
	profile, ok := h.profiles[name]
	if !ok {
		httpkit.Error(c, http.StatusBadRequest, msgUnknownPipeline, name)
		return
	}

	items, err := h.docs.Scan(c.Request.Context(), profile.StatusTable, store.Filter{"pipeline": profile.Name})
	if httpkit.HandleError(c, err) {
		return
	}

	statuses := make([]recon.RunStatus, 0, len(items))
	for _, item := range items {
		var status recon.RunStatus
		if err := json.Unmarshal(item, &status); err != nil {
			continue
		}
		statuses = append(statuses, status)
	}
	sort.Slice(statuses, func(i, j int) bool {
		si, sj := statuses[i].SignedDate, statuses[j].SignedDate
		switch {
		case si == nil:
			return false
		case sj == nil:
			return true
		default:
			return si.Time.After(sj.Time)
		}
	})

	result := make([]StatusResponse, len(statuses))
	for i, status := range statuses {
		result[i] = toStatusResponse(status)
	}
	httpkit.OK(c, result)
}

func toStatusResponse(status recon.RunStatus) StatusResponse {
	return StatusResponse{
		ID:             status.ID,
		Pipeline:       status.Pipeline,
		CorrelationID:  status.CorrelationID,
		ProgramType:    status.ProgramType,
		ClockStartDate: dateString(status.ClockStartDate),
		SignedDate:     dateString(status.SignedDate),
		Submitted:      status.Submitted,
		SeatoolExist:   status.SeatoolExist,
		Match:          status.Match,
		AlertsIgnored:  status.AlertsIgnored,
		Iterations:     status.Iterations,
		LastError:      status.LastError,
	}
}

func dateString(when *recon.When) *string {
	if when == nil || when.IsZero() {
		return nil
	}
	s := when.LocaleDate()
	return &s
}
