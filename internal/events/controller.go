package events

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"evently/internal/shared/utils/response"
)

type Controller struct {
	svc *Service
}

func NewController(svc *Service) *Controller {
	return &Controller{svc: svc}
}

type createEventRequest struct {
	Name             string          `json:"name" binding:"required"`
	Description      string          `json:"description"`
	Venue            string          `json:"venue" binding:"required"`
	EventDate        time.Time       `json:"event_date" binding:"required"`
	TotalCapacity    int             `json:"total_capacity" binding:"required,min=1"`
	Price            decimal.Decimal `json:"price" binding:"required"`
	HasSeatSelection bool            `json:"has_seat_selection"`
}

type updateEventRequest struct {
	Name        *string          `json:"name,omitempty"`
	Description *string          `json:"description,omitempty"`
	Venue       *string          `json:"venue,omitempty"`
	EventDate   *time.Time       `json:"event_date,omitempty"`
	Price       *decimal.Decimal `json:"price,omitempty"`
}

func organizerIDFromContext(c *gin.Context) (uuid.UUID, bool) {
	raw, exists := c.Get("user_id")
	if !exists {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw.(string))
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

func (ctl *Controller) CreateEvent(c *gin.Context) {
	organizerID, ok := organizerIDFromContext(c)
	if !ok {
		response.RespondJSON(c, "error", http.StatusUnauthorized, "user not authenticated", nil, nil)
		return
	}
	var req createEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondJSON(c, "error", http.StatusBadRequest, "invalid request body", nil, err.Error())
		return
	}
	e, err := ctl.svc.Create(c.Request.Context(), organizerID, CreateInput{
		Name: req.Name, Description: req.Description, Venue: req.Venue,
		EventDate: req.EventDate, TotalCapacity: req.TotalCapacity,
		Price: req.Price, HasSeatSelection: req.HasSeatSelection,
	})
	if err != nil {
		response.RespondJSON(c, "error", http.StatusBadRequest, err.Error(), nil, nil)
		return
	}
	response.RespondJSON(c, "success", http.StatusCreated, "event created", e, nil)
}

func (ctl *Controller) GetEvent(c *gin.Context) {
	id, err := uuid.Parse(c.Param("eventId"))
	if err != nil {
		response.RespondJSON(c, "error", http.StatusBadRequest, "invalid event id", nil, nil)
		return
	}
	e, err := ctl.svc.Get(c.Request.Context(), id)
	if err != nil {
		response.RespondJSON(c, "error", http.StatusNotFound, err.Error(), nil, nil)
		return
	}
	response.RespondJSON(c, "success", http.StatusOK, "event retrieved", e, nil)
}

func (ctl *Controller) GetAllEvents(c *gin.Context) {
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	events, total, err := ctl.svc.List(c.Request.Context(), offset, limit)
	if err != nil {
		response.RespondJSON(c, "error", http.StatusInternalServerError, err.Error(), nil, nil)
		return
	}
	response.RespondJSON(c, "success", http.StatusOK, "events retrieved",
		gin.H{"events": events, "total": total, "offset": offset, "limit": limit}, nil)
}

func (ctl *Controller) GetUpcomingEvents(c *gin.Context) {
	events, err := ctl.svc.ListUpcoming(c.Request.Context())
	if err != nil {
		response.RespondJSON(c, "error", http.StatusInternalServerError, err.Error(), nil, nil)
		return
	}
	response.RespondJSON(c, "success", http.StatusOK, "upcoming events retrieved", events, nil)
}

func (ctl *Controller) UpdateEvent(c *gin.Context) {
	id, err := uuid.Parse(c.Param("eventId"))
	if err != nil {
		response.RespondJSON(c, "error", http.StatusBadRequest, "invalid event id", nil, nil)
		return
	}
	var req updateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondJSON(c, "error", http.StatusBadRequest, "invalid request body", nil, err.Error())
		return
	}
	e, err := ctl.svc.Update(c.Request.Context(), id, UpdateInput{
		Name: req.Name, Description: req.Description, Venue: req.Venue,
		EventDate: req.EventDate, Price: req.Price,
	})
	if err != nil {
		response.RespondJSON(c, "error", http.StatusBadRequest, err.Error(), nil, nil)
		return
	}
	response.RespondJSON(c, "success", http.StatusOK, "event updated", e, nil)
}

func (ctl *Controller) DeactivateEvent(c *gin.Context) {
	id, err := uuid.Parse(c.Param("eventId"))
	if err != nil {
		response.RespondJSON(c, "error", http.StatusBadRequest, "invalid event id", nil, nil)
		return
	}
	e, err := ctl.svc.Deactivate(c.Request.Context(), id)
	if err != nil {
		response.RespondJSON(c, "error", http.StatusBadRequest, err.Error(), nil, nil)
		return
	}
	response.RespondJSON(c, "success", http.StatusOK, "event deactivated", e, nil)
}
