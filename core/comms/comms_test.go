package comms

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"github.com/umoja/academy/core"
	"github.com/umoja/academy/core/auth"
)

// repoStub filters a fixed board with Audience.Visible, the same predicate the SQL applies.
type repoStub struct {
	classes map[int][]int
	board   []Announcement
	gotDay  time.Time
}

func (r *repoStub) ClassIDsOfUser(_ context.Context, _ auth.Role, userID int, _ ...core.DBExecutor) ([]int, error) {
	return r.classes[userID], nil
}

func (r *repoStub) Announcements(_ context.Context, aud Audience, day time.Time, _ ...core.DBExecutor) ([]Announcement, error) {
	r.gotDay = day
	var out []Announcement
	for _, a := range r.board {
		if aud.Visible(a.TargetAudience, a.TargetClassID) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *repoStub) UpcomingEvents(_ context.Context, aud Audience, _ time.Time, _ ...core.DBExecutor) ([]Event, error) {
	var out []Event
	for _, a := range r.board {
		if aud.Visible(a.TargetAudience, a.TargetClassID) {
			out = append(out, Event{ID: a.ID, Name: a.Title, TargetAudience: a.TargetAudience, TargetClassID: a.TargetClassID})
		}
	}
	return out, nil
}

func titles(list []Announcement) []string {
	out := make([]string, 0, len(list))
	for _, a := range list {
		out = append(out, a.Title)
	}
	return out
}

func TestService_Announcements(t *testing.T) {
	repo := &repoStub{
		classes: map[int][]int{10: {1, 2}, 20: {1}, 30: {1}, 31: nil},
		board: []Announcement{
			{ID: 1, Title: "all", TargetAudience: AudienceAll},
			{ID: 2, Title: "students", TargetAudience: AudienceStudents},
			{ID: 3, Title: "teachers", TargetAudience: AudienceTeachers},
			{ID: 4, Title: "parents", TargetAudience: AudienceParents},
			{ID: 5, Title: "staff", TargetAudience: AudienceStaff},
			{ID: 6, Title: "class 1", TargetAudience: AudienceSpecificClass, TargetClassID: null.IntFrom(1)},
			{ID: 7, Title: "class 3", TargetAudience: AudienceSpecificClass, TargetClassID: null.IntFrom(3)},
			{ID: 8, Title: "deleted class", TargetAudience: AudienceSpecificClass},
		},
	}
	svc := NewService(repo)
	svc.nowFunc = func() time.Time { return time.Date(2025, 3, 4, 15, 0, 0, 0, time.UTC) }
	ctx := context.Background()

	tests := []struct {
		name string
		p    auth.Principal
		want []string
	}{
		{name: "admin", p: auth.Principal{UserID: 1, Role: auth.RoleAdmin},
			want: []string{"all", "students", "teachers", "parents", "staff", "class 1", "class 3", "deleted class"}},
		{name: "teacher", p: auth.Principal{UserID: 10, Role: auth.RoleTeacher}, want: []string{"all", "teachers", "class 1"}},
		{name: "student", p: auth.Principal{UserID: 20, Role: auth.RoleStudent}, want: []string{"all", "students", "class 1"}},
		{name: "parent", p: auth.Principal{UserID: 30, Role: auth.RoleParent}, want: []string{"all", "parents", "class 1"}},
		{name: "parent of unassigned child", p: auth.Principal{UserID: 31, Role: auth.RoleParent}, want: []string{"all", "parents"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.Announcements(ctx, tt.p)
			require.NoError(t, err)
			assert.Equal(t, tt.want, titles(got))
			assert.Equal(t, time.Date(2025, 3, 4, 0, 0, 0, 0, time.UTC), repo.gotDay)
		})
	}

	_, err := svc.Announcements(ctx, auth.Principal{UserID: 1})
	assert.Equal(t, auth.ErrUnknownRole, err)

	events, err := svc.UpcomingEvents(ctx, auth.Principal{UserID: 20, Role: auth.RoleStudent})
	require.NoError(t, err)
	assert.Len(t, events, 3)
}
