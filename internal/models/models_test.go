package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBaseModelBeforeCreateGeneratesID(t *testing.T) {
	var base BaseModel
	require.NoError(t, base.BeforeCreate(nil))
	require.NotEmpty(t, base.ID)

	kept := BaseModel{ID: "fixed"}
	require.NoError(t, kept.BeforeCreate(nil))
	require.Equal(t, "fixed", kept.ID)
}

func TestEmbeddedModelsUseBaseBeforeCreate(t *testing.T) {
	cases := []struct {
		name  string
		model func() *BaseModel
	}{
		{"user", func() *BaseModel { return &(&User{}).BaseModel }},
		{"group", func() *BaseModel { return &(&Group{}).BaseModel }},
		{"tradesman", func() *BaseModel { return &(&Tradesman{}).BaseModel }},
		{"job", func() *BaseModel { return &(&Job{}).BaseModel }},
		{"invitation", func() *BaseModel { return &(&GroupInvitation{}).BaseModel }},
		{"audit_log", func() *BaseModel { return &(&AuditLog{}).BaseModel }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			model := tc.model()
			require.NoError(t, model.BeforeCreate(nil))
			require.NotEmpty(t, model.ID)
		})
	}
}

func TestMembershipStatusPredicates(t *testing.T) {
	cases := []struct {
		status   MembershipStatus
		moderate bool
		view     bool
	}{
		{StatusCreator, true, true},
		{StatusAdmin, true, true},
		{StatusMember, false, true},
		{StatusPending, false, false},
		{MembershipStatus("banned"), false, false},
	}

	for _, tc := range cases {
		require.Equal(t, tc.moderate, tc.status.CanModerate(), string(tc.status))
		require.Equal(t, tc.view, tc.status.CanView(), string(tc.status))
	}

	require.True(t, StatusPending.Valid())
	require.False(t, MembershipStatus("owner").Valid())
	require.ElementsMatch(t, []MembershipStatus{StatusMember, StatusAdmin, StatusCreator}, ViewerStatuses())
}

func TestTradesmanDisplayName(t *testing.T) {
	require.Equal(t, "Bob Builder", Tradesman{FirstName: "Bob", FamilyName: "Builder", CompanyName: "BB Ltd"}.DisplayName())
	require.Equal(t, "BB Ltd", Tradesman{CompanyName: "BB Ltd"}.DisplayName())
	require.Equal(t, "Bob", Tradesman{FirstName: " Bob "}.DisplayName())
}

func TestJobTotalCostOrQuote(t *testing.T) {
	cost, quote := 120.0, 150.0
	job := Job{Type: TypeJob, TotalCost: &cost, TotalQuote: &quote}
	require.Equal(t, &cost, job.TotalCostOrQuote())

	job.Type = TypeQuote
	require.True(t, job.IsQuote())
	require.Equal(t, &quote, job.TotalCostOrQuote())
}

func TestInvitationExpiredAt(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	inv := GroupInvitation{ExpiresAt: now}
	require.True(t, inv.ExpiredAt(now))
	require.False(t, inv.ExpiredAt(now.Add(-time.Second)))
}

func TestUserFullName(t *testing.T) {
	require.Equal(t, "Alice Smith", User{FirstName: "Alice", LastName: "Smith"}.FullName())
	require.Equal(t, "Alice", User{FirstName: "Alice"}.FullName())
}

func TestCacheEntryExpired(t *testing.T) {
	now := time.Now()
	require.False(t, CacheEntry{}.Expired(now))
	require.True(t, CacheEntry{ExpiresAt: now.Add(-time.Minute)}.Expired(now))
}
