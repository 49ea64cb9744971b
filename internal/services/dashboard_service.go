package services

import (
	"context"
	"errors"

	"github.com/jobeco/fairprice/internal/models"
)

const dashboardSectionSize = 10

// Dashboard is the signed-in landing view.
type Dashboard struct {
	User            *models.User       `json:"user"`
	Stats           UserStats          `json:"stats"`
	JobStatus       StatusCounts       `json:"job_status"`
	TopTradesmen    []TradesmanSummary `json:"top_tradesmen"`
	RecentJobs      []models.Job       `json:"recent_jobs"`
	Groups          []GroupSummary     `json:"groups"`
	PendingRequests []JoinRequest      `json:"pending_requests"`
}

// DashboardService composes the landing view from the other services.
type DashboardService struct {
	users      *UserService
	groups     *GroupService
	tradesmen  *TradesmanService
	jobs       *JobService
	maxPerPart int
}

// NewDashboardService constructs a DashboardService instance.
func NewDashboardService(users *UserService, groups *GroupService, tradesmen *TradesmanService, jobs *JobService) (*DashboardService, error) {
	if users == nil || groups == nil || tradesmen == nil || jobs == nil {
		return nil, errors.New("dashboard service: all services are required")
	}
	return &DashboardService{
		users:      users,
		groups:     groups,
		tradesmen:  tradesmen,
		jobs:       jobs,
		maxPerPart: dashboardSectionSize,
	}, nil
}

// Load builds the dashboard for a user.
func (s *DashboardService) Load(ctx context.Context, userID string) (*Dashboard, error) {
	ctx = ensureContext(ctx)

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	dash := &Dashboard{User: user}
	if dash.Stats, err = s.users.Stats(ctx, userID); err != nil {
		return nil, err
	}
	if dash.JobStatus, err = s.jobs.StatusCounts(ctx, userID); err != nil {
		return nil, err
	}
	if dash.TopTradesmen, err = s.tradesmen.TopRatedForUser(ctx, userID, s.maxPerPart); err != nil {
		return nil, err
	}
	if dash.RecentJobs, err = s.jobs.RecentCompletedForUser(ctx, userID, s.maxPerPart); err != nil {
		return nil, err
	}
	if dash.Groups, err = s.groups.ListForUser(ctx, userID); err != nil {
		return nil, err
	}
	if dash.PendingRequests, err = s.groups.PendingRequestsForModerator(ctx, userID); err != nil {
		return nil, err
	}
	return dash, nil
}
