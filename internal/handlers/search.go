package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/jobeco/fairprice/internal/models"
	"github.com/jobeco/fairprice/internal/services"
	apperrors "github.com/jobeco/fairprice/pkg/errors"
	"github.com/jobeco/fairprice/pkg/response"
)

const defaultSearchLimit = 50

// SearchHandler answers the directory search across tradesmen, jobs, quotes and groups.
type SearchHandler struct {
	tradesmen *services.TradesmanService
	jobs      *services.JobService
	groups    *services.GroupService
}

func NewSearchHandler(tradesmen *services.TradesmanService, jobs *services.JobService, groups *services.GroupService) *SearchHandler {
	return &SearchHandler{tradesmen: tradesmen, jobs: jobs, groups: groups}
}

// GET /search?kind=tradesmen|jobs|quotes|groups
func (h *SearchHandler) Search(c *gin.Context) {
	ctx := requestContext(c)
	term := strings.TrimSpace(c.Query("q"))
	trade := strings.TrimSpace(c.Query("trade"))
	limit := parseIntQuery(c, "limit", defaultSearchLimit)

	kind := strings.ToLower(strings.TrimSpace(c.DefaultQuery("kind", "tradesmen")))

	var (
		results any
		err     error
	)
	switch kind {
	case "tradesmen":
		results, err = h.tradesmen.Search(ctx, services.SearchFilter{
			Term:           term,
			Trade:          trade,
			PostcodePrefix: c.Query("postcode"),
			Limit:          limit,
		})
	case "jobs":
		results, err = h.jobs.SearchJobs(ctx, services.JobFilter{
			Term:      term,
			Trade:     trade,
			MinRating: parseIntQuery(c, "min_rating", 0),
			AddedBy:   c.Query("added_by"),
			Group:     c.Query("group"),
			Limit:     limit,
		})
	case "quotes":
		status := models.QuoteStatus(strings.ToLower(strings.TrimSpace(c.Query("status"))))
		switch status {
		case "", models.QuotePending, models.QuoteAccepted, models.QuoteDeclined:
		default:
			response.Error(c, apperrors.NewValidation("status", "Status must be pending, accepted or declined"))
			return
		}
		results, err = h.jobs.SearchQuotes(ctx, services.QuoteFilter{
			Term:     term,
			Trade:    trade,
			Postcode: c.Query("postcode"),
			Status:   status,
			Limit:    limit,
		})
	case "groups":
		results, err = h.groups.Search(ctx, term, limit)
	default:
		response.Error(c, apperrors.NewValidation("kind", "Search kind must be tradesmen, jobs, quotes or groups"))
		return
	}
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"kind": kind, "query": term, "results": results})
}
