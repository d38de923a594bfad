package records

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"github.com/umoja/academy/core"
	"github.com/umoja/academy/core/auth"
)

type cardKey struct {
	studentID  int
	year, term string
}

// repoStub: students 100 and 101 are in class 1, student 102 has no class.
type repoStub struct {
	totals   map[int]Totals
	presence Presence
	noTerm   bool
	cards    map[cardKey]ReportCard
	records  []BehavioralRecord
}

func newRepoStub() *repoStub {
	return &repoStub{
		totals: map[int]Totals{
			100: {Total: 300, Obtained: 246},
			101: {Total: 300, Obtained: 261},
			102: {Total: 100, Obtained: 50},
		},
		presence: Presence{Attended: 57, Total: 60},
		cards:    make(map[cardKey]ReportCard),
	}
}

func (r *repoStub) StudentClassID(_ context.Context, studentID int, _ ...core.DBExecutor) (null.Int, error) {
	switch studentID {
	case 100, 101:
		return null.IntFrom(1), nil
	case 102:
		return null.Int{}, nil
	}
	return null.Int{}, ErrStudentNotFound
}

func (r *repoStub) BehavioralRecords(_ context.Context, studentID int, _ ...core.DBExecutor) ([]BehavioralRecord, error) {
	var out []BehavioralRecord
	for _, rec := range r.records {
		if rec.StudentID == studentID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (r *repoStub) CreateBehavioralRecord(_ context.Context, rec BehavioralRecord, _ ...core.DBExecutor) (BehavioralRecord, error) {
	rec.ID = len(r.records) + 1
	r.records = append(r.records, rec)
	return rec, nil
}

func (r *repoStub) Activities(_ context.Context, studentID int, _ ...core.DBExecutor) ([]Activity, error) {
	return []Activity{{ID: 1, StudentID: studentID, Name: "Football", Type: "Sports"}}, nil
}

func (r *repoStub) ResultTotals(_ context.Context, studentID int, _, _ string, _ ...core.DBExecutor) (Totals, error) {
	return r.totals[studentID], nil
}

func (r *repoStub) TermDates(context.Context, string, string, ...core.DBExecutor) (time.Time, time.Time, error) {
	if r.noTerm {
		return time.Time{}, time.Time{}, core.NotFound("term")
	}
	return time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC), time.Date(2025, 4, 4, 0, 0, 0, 0, time.UTC), nil
}

func (r *repoStub) Presence(context.Context, int, time.Time, time.Time, ...core.DBExecutor) (Presence, error) {
	return r.presence, nil
}

func (r *repoStub) UpsertReportCard(_ context.Context, rc ReportCard, _ ...core.DBExecutor) error {
	r.cards[cardKey{rc.StudentID, rc.AcademicYear, rc.Term}] = rc
	return nil
}

func (r *repoStub) RankClass(_ context.Context, classID int, year, term string, _ ...core.DBExecutor) error {
	for k, rc := range r.cards {
		if rc.ClassID != classID || k.year != year || k.term != term {
			continue
		}
		rank := 1
		for _, other := range r.cards {
			if other.ClassID == classID && other.AcademicYear == year && other.Term == term && other.Percentage > rc.Percentage {
				rank++
			}
		}
		rc.RankInClass = null.IntFrom(rank)
		r.cards[k] = rc
	}
	return nil
}

func (r *repoStub) GetReportCard(_ context.Context, studentID int, year, term string, _ ...core.DBExecutor) (ReportCard, error) {
	if rc, ok := r.cards[cardKey{studentID, year, term}]; ok {
		return rc, nil
	}
	return ReportCard{}, core.NotFound("report card")
}

// scopeStub: teacher user 10 teaches students 100..102, parent user 30 has student 100.
type scopeStub struct{}

func (scopeStub) StudentOfUser(context.Context, int, int) (bool, error) { return false, nil }
func (scopeStub) ChildOfUser(_ context.Context, s, u int) (bool, error) {
	return s == 100 && u == 30, nil
}
func (scopeStub) StudentTaughtByUser(_ context.Context, s, u int) (bool, error) {
	return s >= 100 && s <= 102 && u == 10, nil
}
func (scopeStub) ClassOfStudentUser(context.Context, int, int) (bool, error) { return false, nil }
func (scopeStub) ClassOfChildOfUser(context.Context, int, int) (bool, error) { return false, nil }
func (scopeStub) ClassTaughtByUser(context.Context, int, int) (bool, error)  { return false, nil }

var (
	teacher = auth.Principal{UserID: 10, Role: auth.RoleTeacher}
	parent  = auth.Principal{UserID: 30, Role: auth.RoleParent}
)

func setup(t *testing.T) (*Service, *repoStub, sqlmock.Sqlmock) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = mockDB.Close() })

	repo := newRepoStub()
	svc := NewService(sqlx.NewDb(mockDB, "sqlmock"), repo, auth.NewScope(scopeStub{}))
	svc.nowFunc = func() time.Time { return time.Date(2025, 3, 4, 10, 0, 0, 0, time.UTC) }
	return svc, repo, mock
}

func TestService_GenerateReportCard(t *testing.T) {
	ctx := context.Background()

	t.Run("computes and ranks", func(t *testing.T) {
		svc, repo, mock := setup(t)
		mock.ExpectBegin()
		mock.ExpectCommit()
		mock.ExpectBegin()
		mock.ExpectCommit()

		rc, err := svc.GenerateReportCard(ctx, teacher, NewReportCard{StudentID: 100, AcademicYear: "2025-2026", Term: "Term 1"})
		require.NoError(t, err)
		assert.Equal(t, 82.0, rc.Percentage)
		assert.Equal(t, "A", rc.Grade)
		assert.Equal(t, null.Float64From(95), rc.AttendancePercentage)
		assert.Equal(t, null.IntFrom(1), rc.RankInClass)

		_, err = svc.GenerateReportCard(ctx, teacher, NewReportCard{StudentID: 101, AcademicYear: "2025-2026", Term: "Term 1"})
		require.NoError(t, err)
		assert.Equal(t, null.IntFrom(2), repo.cards[cardKey{100, "2025-2026", "Term 1"}].RankInClass)
		assert.Equal(t, null.IntFrom(1), repo.cards[cardKey{101, "2025-2026", "Term 1"}].RankInClass)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("regenerating replaces the card", func(t *testing.T) {
		svc, repo, mock := setup(t)
		mock.ExpectBegin()
		mock.ExpectCommit()
		mock.ExpectBegin()
		mock.ExpectCommit()

		nrc := NewReportCard{StudentID: 100, AcademicYear: "2025-2026", Term: "Term 1"}
		_, err := svc.GenerateReportCard(ctx, teacher, nrc)
		require.NoError(t, err)
		repo.totals[100] = Totals{Total: 300, Obtained: 150}
		repo.noTerm = true
		rc, err := svc.GenerateReportCard(ctx, teacher, nrc)
		require.NoError(t, err)
		assert.Len(t, repo.cards, 1)
		assert.Equal(t, "D", rc.Grade)
		assert.False(t, rc.AttendancePercentage.Valid)
	})

	t.Run("student without class", func(t *testing.T) {
		svc, _, mock := setup(t)
		mock.ExpectBegin()
		mock.ExpectRollback()

		_, err := svc.GenerateReportCard(ctx, teacher, NewReportCard{StudentID: 102, AcademicYear: "2025-2026", Term: "Term 1"})
		var vErr *core.ValidationError
		require.True(t, errors.As(err, &vErr))
		assert.Equal(t, ErrNoClass, vErr.Err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("parents cannot generate", func(t *testing.T) {
		svc, _, _ := setup(t)
		_, err := svc.GenerateReportCard(ctx, parent, NewReportCard{StudentID: 100})
		assert.Equal(t, core.ErrForbidden, err)
	})
}

func TestService_Behavior(t *testing.T) {
	svc, _, _ := setup(t)
	ctx := context.Background()

	rec, err := svc.RecordBehavior(ctx, teacher, BehavioralRecord{StudentID: 100, IncidentType: "Positive", Description: "Helped a classmate"})
	require.NoError(t, err)
	assert.Equal(t, 10, rec.RecordedBy)
	assert.Equal(t, "Minor", rec.Severity)
	assert.Equal(t, time.Date(2025, 3, 4, 0, 0, 0, 0, time.UTC), rec.IncidentDate)

	list, err := svc.BehavioralRecords(ctx, parent, 100)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	_, err = svc.BehavioralRecords(ctx, parent, 101)
	assert.Equal(t, core.ErrForbidden, err)

	_, err = svc.RecordBehavior(ctx, parent, BehavioralRecord{StudentID: 100})
	assert.Equal(t, core.ErrForbidden, err)

	acts, err := svc.Activities(ctx, parent, 100)
	require.NoError(t, err)
	assert.Len(t, acts, 1)
}
