package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"attendease/internal/attendance"
	"attendease/internal/auth"
	"attendease/internal/excuse"
	"attendease/internal/tally"
)

// Sessions configures token issuance.
type Sessions struct {
	Issuer     string
	SigningKey string
	TTL        time.Duration
	Revoker    auth.Revoker
}

type Handler struct {
	svc      *attendance.Service
	tally    tally.Counter
	sessions Sessions
	logger   *slog.Logger
}

func New(svc *attendance.Service, counter tally.Counter, sessions Sessions, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{svc: svc, tally: counter, sessions: sessions, logger: logger}
}

// Register mounts the /v1 API. loginLimit guards the login route and may be nil.
func (h *Handler) Register(r gin.IRouter, loginLimit gin.HandlerFunc) {
	v1 := r.Group("/v1")
	if loginLimit != nil {
		v1.POST("/login", loginLimit, h.Login)
	} else {
		v1.POST("/login", h.Login)
	}

	authed := v1.Group("", auth.StudentAuth(h.sessions.SigningKey, h.sessions.Issuer, h.sessions.Revoker))
	authed.POST("/logout", h.Logout)
	authed.GET("/me", h.Me)
	authed.GET("/attendance", h.ListAttendance)
	authed.POST("/attendance/present", h.MarkPresent)
	authed.POST("/attendance/absent", h.MarkAbsent)
	authed.GET("/attendance/tally", h.Tally)
	authed.POST("/absence/validate", h.ValidateAbsence)
}

// ---------- Session ----------

type loginRequest struct {
	RollNumber string `json:"roll_number" binding:"required"`
	Name       string `json:"name" binding:"required"`
}

// Login matches roll number and name against the directory and issues a session token.
// Unknown credentials and lookup failures produce the same response.
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "roll_number and name are required"})
		return
	}

	st, err := h.svc.Login(c.Request.Context(), req.RollNumber, req.Name)
	if err != nil {
		if !errors.Is(err, attendance.ErrInvalidCredentials) {
			h.logger.ErrorContext(c.Request.Context(), "login lookup failed", "error", err)
		}
		c.JSON(http.StatusUnauthorized, gin.H{"error": attendance.ErrInvalidCredentials.Error()})
		return
	}

	sess, err := auth.Issue(st.ID, st.RollNumber, st.Name, h.sessions.Issuer, h.sessions.SigningKey, h.sessions.TTL)
	if err != nil {
		h.logger.ErrorContext(c.Request.Context(), "issue session failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":      sess.Token,
		"expires_at": sess.ExpiresAt.Unix(),
		"student":    st,
	})
}

// Logout revokes the caller's session.
func (h *Handler) Logout(c *gin.Context) {
	claims, _ := auth.ClaimsFrom(c)
	until := time.Now().Add(h.sessions.TTL)
	if claims.ExpiresAt != nil {
		until = claims.ExpiresAt.Time
	}
	if err := h.sessions.Revoker.Revoke(c.Request.Context(), claims.ID, until); err != nil {
		h.logger.ErrorContext(c.Request.Context(), "revoke session failed", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "logout failed"})
		return
	}
	c.Status(http.StatusNoContent)
}

// Me returns the student carried by the session.
func (h *Handler) Me(c *gin.Context) {
	claims, _ := auth.ClaimsFrom(c)
	c.JSON(http.StatusOK, gin.H{
		"id":          claims.Subject,
		"roll_number": claims.RollNumber,
		"name":        claims.Name,
	})
}

// ---------- Attendance ----------

type recordResponse struct {
	ID         string          `json:"id"`
	Date       string          `json:"date"`
	RecordedAt time.Time       `json:"recorded_at"`
	Status     string          `json:"status"`
	Reason     string          `json:"reason,omitempty"`
	Validation *excuse.Verdict `json:"validation,omitempty"`
}

func (h *Handler) toResponse(rec attendance.Record) recordResponse {
	return recordResponse{
		ID:         rec.ID,
		Date:       rec.DisplayDate(h.svc.Location()),
		RecordedAt: rec.Date,
		Status:     string(rec.Status),
		Reason:     rec.Reason,
		Validation: rec.Validation,
	}
}

// ListAttendance returns the caller's records, newest first, and today's state.
func (h *Handler) ListAttendance(c *gin.Context) {
	claims, _ := auth.ClaimsFrom(c)
	dash, err := h.svc.Today(c.Request.Context(), claims.Subject)
	if err != nil {
		h.logger.ErrorContext(c.Request.Context(), "list records failed", "student_id", claims.Subject, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not fetch attendance records"})
		return
	}

	records := make([]recordResponse, 0, len(dash.Records))
	for _, rec := range dash.Records {
		records = append(records, h.toResponse(rec))
	}
	c.JSON(http.StatusOK, gin.H{
		"date":    dash.Today.Format(attendance.DisplayDateLayout),
		"state":   dash.State,
		"records": records,
	})
}

// MarkPresent records the caller as present today.
func (h *Handler) MarkPresent(c *gin.Context) {
	claims, _ := auth.ClaimsFrom(c)
	rec, err := h.svc.MarkPresent(c.Request.Context(), claims.Subject)
	if err != nil {
		h.markFailed(c, claims.Subject, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"record":  h.toResponse(rec),
		"message": "You have been marked as Present for today.",
	})
}

type absenceRequest struct {
	Reason string `json:"reason"`
}

// MarkAbsent validates the reason and records the caller as absent today.
func (h *Handler) MarkAbsent(c *gin.Context) {
	claims, _ := auth.ClaimsFrom(c)
	var req absenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": attendance.ErrReasonRequired.Error()})
		return
	}

	rec, err := h.svc.MarkAbsent(c.Request.Context(), claims.Subject, req.Reason)
	if err != nil {
		h.markFailed(c, claims.Subject, err)
		return
	}
	label := "Suspicious"
	if rec.Validation != nil {
		label = rec.Validation.Label()
	}
	c.JSON(http.StatusCreated, gin.H{
		"record":  h.toResponse(rec),
		"message": fmt.Sprintf("You have been marked as Absent. Reason validation: %s.", label),
	})
}

func (h *Handler) markFailed(c *gin.Context, studentID string, err error) {
	switch {
	case errors.Is(err, attendance.ErrReasonRequired):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, attendance.ErrAlreadyMarked):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		h.logger.ErrorContext(c.Request.Context(), "save record failed", "student_id", studentID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not save attendance record"})
	}
}

// ValidateAbsence returns a verdict for a reason without recording anything.
func (h *Handler) ValidateAbsence(c *gin.Context) {
	var req absenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": attendance.ErrReasonRequired.Error()})
		return
	}
	verdict, err := h.svc.ValidateReason(c.Request.Context(), req.Reason)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, verdict)
}

// Tally returns the day's counters. ?date=YYYY-MM-DD, today by default.
func (h *Handler) Tally(c *gin.Context) {
	day := c.Query("date")
	if day == "" {
		day = time.Now().In(h.svc.Location()).Format(time.DateOnly)
	} else if _, err := time.Parse(time.DateOnly, day); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid date format, use YYYY-MM-DD"})
		return
	}

	counts, err := h.tally.Get(c.Request.Context(), day)
	if err != nil {
		h.logger.ErrorContext(c.Request.Context(), "read tally failed", "day", day, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not read tally"})
		return
	}
	c.JSON(http.StatusOK, counts)
}
