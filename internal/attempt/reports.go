package attempt

import (
	"context"

	"github.com/mind-engage/mindengage-exams/internal/exam"
)

const (
	dashboardHistory = 20
	dashboardRecent  = 7
)

type DashboardMetrics struct {
	TotalAttempts  int     `json:"total_attempts"`
	AveragePercent float64 `json:"average_percent"`
	BestPercent    float64 `json:"best_percent"`
}

type RecentPoint struct {
	ExamTitle  string  `json:"exam_title"`
	Percentage float64 `json:"percentage"`
	Date       string  `json:"date"`
}

type Dashboard struct {
	Metrics DashboardMetrics `json:"metrics"`
	History []exam.Result    `json:"history"`
	// Recent holds the latest results, oldest first.
	Recent []RecentPoint `json:"recent"`
}

// Dashboard summarizes a student's submitted attempts. Metrics cover every
// submission; History holds only the latest page.
func (s *Service) Dashboard(ctx context.Context, studentID string) (Dashboard, error) {
	sm, err := s.store.Summarize(ctx, ResultFilter{StudentID: studentID})
	if err != nil {
		return Dashboard{}, err
	}
	history, err := s.store.Results(ctx, ResultFilter{StudentID: studentID, Limit: dashboardHistory})
	if err != nil {
		return Dashboard{}, err
	}
	d := Dashboard{
		Metrics: DashboardMetrics{
			TotalAttempts:  sm.Attempts,
			AveragePercent: sm.AveragePercent,
			BestPercent:    sm.BestPercent,
		},
		History: history,
		Recent:  []RecentPoint{},
	}

	n := min(dashboardRecent, len(history))
	for i := n - 1; i >= 0; i-- {
		r := history[i]
		d.Recent = append(d.Recent, RecentPoint{
			ExamTitle:  r.ExamTitle,
			Percentage: r.Percentage,
			Date:       r.SubmittedAt.Format("2006-01-02"),
		})
	}
	return d, nil
}

// ExamResults lists every submitted attempt of an exam, newest first.
func (s *Service) ExamResults(ctx context.Context, examID string) ([]exam.Result, error) {
	if _, err := s.exams.GetExam(ctx, examID); err != nil {
		return nil, err
	}
	return s.store.Results(ctx, ResultFilter{ExamID: examID})
}

// Overview aggregates every submitted attempt across all exams.
func (s *Service) Overview(ctx context.Context) (Summary, error) {
	return s.store.Summarize(ctx, ResultFilter{})
}

// StudentSummaries aggregates submitted attempts per student id. Students
// without submissions are absent.
func (s *Service) StudentSummaries(ctx context.Context) (map[string]Summary, error) {
	return s.store.SummariesByStudent(ctx)
}
