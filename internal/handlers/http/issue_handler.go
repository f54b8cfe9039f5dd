package http

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"campuspulse/internal/core/domain"
	"campuspulse/internal/core/ports"
	"campuspulse/internal/core/services"
	"campuspulse/pkg/errors"
	"campuspulse/pkg/utils"
	"campuspulse/pkg/validation"

	"github.com/gin-gonic/gin"
)

type IssueHandler struct {
	repo     ports.IssueRepository
	notifier *services.ChangeNotifier
}

func NewIssueHandler(repo ports.IssueRepository, notifier *services.ChangeNotifier) *IssueHandler {
	return &IssueHandler{
		repo:     repo,
		notifier: notifier,
	}
}

func (h *IssueHandler) SetupRoutes(api *gin.RouterGroup) {
	api.POST("/issues", h.CreateIssue)
	api.GET("/issues", h.ListIssues)
	api.GET("/issues/:id", h.GetIssue)
	api.PATCH("/issues/:id", h.UpdateIssue)
	api.DELETE("/issues/:id", h.DeleteIssue)
	api.POST("/issues/:id/assign", h.AssignIssue)
	api.POST("/issues/:id/resolve", h.ResolveIssue)
}

type locationRequest struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type CreateIssueRequest struct {
	OrganizationID string           `json:"organization_id" binding:"required,max=100"`
	CampusID       string           `json:"campus_id" binding:"max=100"`
	BuildingID     string           `json:"building_id" binding:"max=100"`
	Title          string           `json:"title" binding:"required,max=200"`
	Description    string           `json:"description" binding:"max=4000"`
	Location       *locationRequest `json:"location"`
	Category       string           `json:"category" binding:"required"`
	Severity       int              `json:"severity" binding:"required"`
	Priority       string           `json:"priority" binding:"required"`
}

func (h *IssueHandler) CreateIssue(c *gin.Context) {
	var req CreateIssueRequest
	if err := c.BindJSON(&req); err != nil {
		c.Error(errors.NewInvalidInputError("invalid request format"))
		return
	}

	req.Title = strings.TrimSpace(req.Title)

	if err := validation.ValidateIdentifier("organization_id", req.OrganizationID); err != nil {
		c.Error(errors.NewInvalidInputError(err.Error()))
		return
	}
	if err := validation.ValidateTitle(req.Title); err != nil {
		c.Error(errors.NewInvalidInputError(err.Error()))
		return
	}
	if err := validation.ValidateSeverity(req.Severity); err != nil {
		c.Error(errors.NewInvalidInputError(err.Error()))
		return
	}
	if req.Location != nil {
		if err := validation.ValidateCoordinates(req.Location.Lat, req.Location.Lng); err != nil {
			c.Error(errors.NewInvalidInputError(err.Error()))
			return
		}
	}

	now := time.Now()
	issue := &domain.IssueRecord{
		ID:             domain.IssueID(utils.GenerateIssueID()),
		OrganizationID: domain.OrganizationID(req.OrganizationID),
		CampusID:       domain.CampusID(req.CampusID),
		BuildingID:     domain.BuildingID(req.BuildingID),
		Title:          req.Title,
		Description:    req.Description,
		Category:       domain.IssueCategory(req.Category),
		Severity:       req.Severity,
		Priority:       domain.IssuePriority(req.Priority),
		Status:         domain.StatusOpen,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if req.Location != nil {
		issue.Location = &domain.GeoPoint{Lat: req.Location.Lat, Lng: req.Location.Lng}
	}

	if err := issue.Validate(); err != nil {
		c.Error(errors.NewInvalidInputError(err.Error()))
		return
	}

	if err := h.repo.Create(c.Request.Context(), issue); err != nil {
		c.Error(errors.WrapError(err, errors.ErrCodeInternal, "failed to create issue", http.StatusInternalServerError))
		return
	}

	h.notifier.IssueCreated(issue)

	c.JSON(http.StatusCreated, gin.H{"issue": issue})
}

func (h *IssueHandler) GetIssue(c *gin.Context) {
	id := domain.IssueID(c.Param("id"))

	issue, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		if err == domain.ErrIssueNotFound {
			c.Error(errors.NewNotFoundError("issue"))
			return
		}
		c.Error(errors.WrapError(err, errors.ErrCodeInternal, "failed to load issue", http.StatusInternalServerError))
		return
	}

	c.JSON(http.StatusOK, gin.H{"issue": issue})
}

func (h *IssueHandler) ListIssues(c *gin.Context) {
	filter, err := filterFromQuery(c)
	if err != nil {
		c.Error(errors.NewInvalidInputError(err.Error()))
		return
	}
	if filter.OrganizationID == "" {
		c.Error(errors.NewInvalidInputError("organization_id is required"))
		return
	}

	issues, err := h.repo.Query(c.Request.Context(), filter)
	if err != nil {
		c.Error(errors.WrapError(err, errors.ErrCodeInternal, "failed to query issues", http.StatusInternalServerError))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"issues": issues,
		"count":  len(issues),
	})
}

type UpdateIssueRequest struct {
	Title       *string          `json:"title"`
	Description *string          `json:"description"`
	Location    *locationRequest `json:"location"`
	Category    *string          `json:"category"`
	Severity    *int             `json:"severity"`
	Priority    *string          `json:"priority"`
	Status      *string          `json:"status"`
}

func (h *IssueHandler) UpdateIssue(c *gin.Context) {
	id := domain.IssueID(c.Param("id"))

	var req UpdateIssueRequest
	if err := c.BindJSON(&req); err != nil {
		c.Error(errors.NewInvalidInputError("invalid request format"))
		return
	}

	issue, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		if err == domain.ErrIssueNotFound {
			c.Error(errors.NewNotFoundError("issue"))
			return
		}
		c.Error(errors.WrapError(err, errors.ErrCodeInternal, "failed to load issue", http.StatusInternalServerError))
		return
	}

	changes := applyUpdate(issue, &req)
	if len(changes) == 0 {
		c.JSON(http.StatusOK, gin.H{"issue": issue})
		return
	}

	issue.UpdatedAt = time.Now()
	if err := issue.Validate(); err != nil {
		c.Error(errors.NewInvalidInputError(err.Error()))
		return
	}

	if err := h.repo.Update(c.Request.Context(), issue); err != nil {
		c.Error(errors.WrapError(err, errors.ErrCodeInternal, "failed to update issue", http.StatusInternalServerError))
		return
	}

	h.notifier.IssueUpdated(issue, changes)

	c.JSON(http.StatusOK, gin.H{"issue": issue, "changes": changes})
}

// applyUpdate mutates the issue in place and returns the field-level diff.
func applyUpdate(issue *domain.IssueRecord, req *UpdateIssueRequest) []domain.FieldChange {
	var changes []domain.FieldChange

	record := func(field, oldV, newV string) {
		changes = append(changes, domain.FieldChange{Field: field, OldValue: oldV, NewValue: newV})
	}

	if req.Title != nil && *req.Title != issue.Title {
		record("title", issue.Title, *req.Title)
		issue.Title = *req.Title
	}
	if req.Description != nil && *req.Description != issue.Description {
		record("description", issue.Description, *req.Description)
		issue.Description = *req.Description
	}
	if req.Location != nil {
		old := ""
		if issue.Location != nil {
			old = fmt.Sprintf("%f,%f", issue.Location.Lat, issue.Location.Lng)
		}
		updated := fmt.Sprintf("%f,%f", req.Location.Lat, req.Location.Lng)
		if old != updated {
			record("location", old, updated)
			issue.Location = &domain.GeoPoint{Lat: req.Location.Lat, Lng: req.Location.Lng}
		}
	}
	if req.Category != nil && domain.IssueCategory(*req.Category) != issue.Category {
		record("category", string(issue.Category), *req.Category)
		issue.Category = domain.IssueCategory(*req.Category)
	}
	if req.Severity != nil && *req.Severity != issue.Severity {
		record("severity", fmt.Sprintf("%d", issue.Severity), fmt.Sprintf("%d", *req.Severity))
		issue.Severity = *req.Severity
	}
	if req.Priority != nil && domain.IssuePriority(*req.Priority) != issue.Priority {
		record("priority", string(issue.Priority), *req.Priority)
		issue.Priority = domain.IssuePriority(*req.Priority)
	}
	if req.Status != nil && domain.IssueStatus(*req.Status) != issue.Status {
		record("status", string(issue.Status), *req.Status)
		issue.Status = domain.IssueStatus(*req.Status)
	}

	return changes
}

func (h *IssueHandler) DeleteIssue(c *gin.Context) {
	id := domain.IssueID(c.Param("id"))

	issue, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		if err == domain.ErrIssueNotFound {
			c.Error(errors.NewNotFoundError("issue"))
			return
		}
		c.Error(errors.WrapError(err, errors.ErrCodeInternal, "failed to load issue", http.StatusInternalServerError))
		return
	}

	if err := h.repo.Delete(c.Request.Context(), id); err != nil {
		c.Error(errors.WrapError(err, errors.ErrCodeInternal, "failed to delete issue", http.StatusInternalServerError))
		return
	}

	h.notifier.IssueDeleted(issue)

	c.JSON(http.StatusOK, gin.H{"deleted": id})
}

type AssignIssueRequest struct {
	AssigneeID string `json:"assignee_id" binding:"required,max=100"`
}

func (h *IssueHandler) AssignIssue(c *gin.Context) {
	id := domain.IssueID(c.Param("id"))

	var req AssignIssueRequest
	if err := c.BindJSON(&req); err != nil {
		c.Error(errors.NewInvalidInputError("invalid request format"))
		return
	}

	issue, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		if err == domain.ErrIssueNotFound {
			c.Error(errors.NewNotFoundError("issue"))
			return
		}
		c.Error(errors.WrapError(err, errors.ErrCodeInternal, "failed to load issue", http.StatusInternalServerError))
		return
	}

	issue.AssigneeID = domain.UserID(req.AssigneeID)
	if issue.Status == domain.StatusOpen {
		issue.Status = domain.StatusInProgress
	}
	issue.UpdatedAt = time.Now()

	if err := h.repo.Update(c.Request.Context(), issue); err != nil {
		c.Error(errors.WrapError(err, errors.ErrCodeInternal, "failed to update issue", http.StatusInternalServerError))
		return
	}

	h.notifier.IssueAssigned(issue)

	c.JSON(http.StatusOK, gin.H{"issue": issue})
}

func (h *IssueHandler) ResolveIssue(c *gin.Context) {
	id := domain.IssueID(c.Param("id"))

	issue, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		if err == domain.ErrIssueNotFound {
			c.Error(errors.NewNotFoundError("issue"))
			return
		}
		c.Error(errors.WrapError(err, errors.ErrCodeInternal, "failed to load issue", http.StatusInternalServerError))
		return
	}

	if issue.Status == domain.StatusResolved || issue.Status == domain.StatusClosed {
		c.JSON(http.StatusOK, gin.H{"issue": issue})
		return
	}

	now := time.Now()
	issue.Status = domain.StatusResolved
	issue.ResolvedAt = &now
	issue.UpdatedAt = now

	if err := h.repo.Update(c.Request.Context(), issue); err != nil {
		c.Error(errors.WrapError(err, errors.ErrCodeInternal, "failed to update issue", http.StatusInternalServerError))
		return
	}

	var resolvedBy domain.UserID
	if v, ok := c.Get("user_id"); ok {
		if uid, ok := v.(domain.UserID); ok {
			resolvedBy = uid
		}
	}
	h.notifier.IssueResolved(issue, resolvedBy)

	c.JSON(http.StatusOK, gin.H{"issue": issue})
}
