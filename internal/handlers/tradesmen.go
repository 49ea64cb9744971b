package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jobeco/fairprice/internal/middleware"
	"github.com/jobeco/fairprice/internal/models"
	"github.com/jobeco/fairprice/internal/services"
	"github.com/jobeco/fairprice/pkg/response"
)

// TradesmanHandler manages the tradesmen a user has worked with.
type TradesmanHandler struct {
	tradesmen *services.TradesmanService
	jobs      *services.JobService
}

func NewTradesmanHandler(tradesmen *services.TradesmanService, jobs *services.JobService) *TradesmanHandler {
	return &TradesmanHandler{tradesmen: tradesmen, jobs: jobs}
}

type tradesmanRequest struct {
	Trade       string `json:"trade" form:"trade"`
	FirstName   string `json:"first_name" form:"first_name"`
	FamilyName  string `json:"family_name" form:"family_name"`
	CompanyName string `json:"company_name" form:"company_name"`
	Address     string `json:"address" form:"address"`
	Postcode    string `json:"postcode" form:"postcode"`
	Phone       string `json:"phone" form:"phone"`
	Email       string `json:"email" form:"email"`
}

func (r tradesmanRequest) input() services.TradesmanInput {
	return services.TradesmanInput{
		Trade:       r.Trade,
		FirstName:   r.FirstName,
		FamilyName:  r.FamilyName,
		CompanyName: r.CompanyName,
		Address:     r.Address,
		Postcode:    r.Postcode,
		Phone:       r.Phone,
		Email:       r.Email,
	}
}

// POST /add_tradesman
func (h *TradesmanHandler) Create(c *gin.Context) {
	var req tradesmanRequest
	if !bindFormOrJSON(c, &req) {
		return
	}

	tradesman, err := h.tradesmen.Create(requestContext(c), middleware.CurrentUserID(c), req.input())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, tradesman)
}

// GET /tradesmen
func (h *TradesmanHandler) List(c *gin.Context) {
	tradesmen, err := h.tradesmen.ListForUser(requestContext(c), middleware.CurrentUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, tradesmen)
}

// GET /tradesmen/:id
func (h *TradesmanHandler) Get(c *gin.Context) {
	ctx := requestContext(c)
	tradesmanID := c.Param("id")

	tradesman, err := h.tradesmen.Get(ctx, tradesmanID)
	if err != nil {
		response.Error(c, err)
		return
	}
	canEdit, err := h.tradesmen.CanEdit(ctx, middleware.CurrentUserID(c), tradesmanID)
	if err != nil {
		response.Error(c, err)
		return
	}
	addedBy, err := h.tradesmen.AddedBy(ctx, tradesmanID)
	if err != nil {
		response.Error(c, err)
		return
	}
	jobs, err := h.jobs.ListForTradesman(ctx, tradesmanID, models.TypeJob)
	if err != nil {
		response.Error(c, err)
		return
	}
	quotes, err := h.jobs.ListForTradesman(ctx, tradesmanID, models.TypeQuote)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"tradesman": tradesman,
		"can_edit":  canEdit,
		"added_by":  addedBy,
		"jobs":      jobs,
		"quotes":    quotes,
	})
}

// POST /edit_tradesman/:id
func (h *TradesmanHandler) Update(c *gin.Context) {
	var req tradesmanRequest
	if !bindFormOrJSON(c, &req) {
		return
	}

	tradesman, err := h.tradesmen.Update(requestContext(c), middleware.CurrentUserID(c), c.Param("id"), req.input())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, tradesman)
}

// DELETE /tradesmen/:id
func (h *TradesmanHandler) Delete(c *gin.Context) {
	if err := h.tradesmen.Delete(requestContext(c), middleware.CurrentUserID(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}

// GET /trades
func (h *TradesmanHandler) Trades(c *gin.Context) {
	used, err := h.tradesmen.Trades(requestContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"trade_types": models.TradeTypes, "trades": used})
}
