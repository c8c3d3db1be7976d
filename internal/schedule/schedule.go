// Package schedule turns one transaction request into the ordered list of
// concrete transaction drafts it implies. It is pure: the caller persists the
// drafts, all or none.
package schedule

import (
	"fmt"
	"time"

	"github.com/finledger/backend/internal/models"
	"github.com/finledger/backend/internal/money"
)

// Request is the scheduler input, already parsed into domain types.
type Request struct {
	AccountID         string
	Description       string
	TotalAmount       int64 // minor units, > 0
	OperationType     models.OperationType
	InitialStatus     models.Status
	DueDate           time.Time
	TotalInstallments int
	Recurrence        models.RecurrencePattern // required when TotalInstallments > 1
}

// Draft is one generated transaction record, ready to persist.
type Draft struct {
	Description   string
	AccountID     string
	Amount        int64
	OperationType models.OperationType
	Status        models.Status
	DueDate       time.Time
	Installment   *models.InstallmentInfo
	Recurrence    models.RecurrencePattern
}

// BuildPlan produces one draft per installment. Per-installment amounts use
// round-half-up division with the rounding remainder attributed to the first
// installment, so the drafts always sum exactly to the requested total.
func BuildPlan(req Request) ([]Draft, error) {
	if req.TotalInstallments < 1 {
		return nil, models.NewDomainError(models.KindInvalidInstallmentCount,
			"total installments must be at least 1, got %d", req.TotalInstallments)
	}
	if req.TotalAmount <= 0 {
		return nil, models.NewDomainError(models.KindInvalidAmount,
			"total amount must be positive, got %s", money.Format(req.TotalAmount))
	}
	if req.TotalInstallments > 1 && req.Recurrence == "" {
		return nil, models.NewDomainError(models.KindMissingRecurrencePattern,
			"recurrence pattern is required for %d installments", req.TotalInstallments)
	}

	amounts, err := money.Split(req.TotalAmount, req.TotalInstallments)
	if err != nil {
		return nil, models.NewDomainError(models.KindInvalidAmount, "%v", err)
	}

	drafts := make([]Draft, req.TotalInstallments)
	for i := range drafts {
		d := Draft{
			Description:   req.Description,
			AccountID:     req.AccountID,
			Amount:        amounts[i],
			OperationType: req.OperationType,
			Status:        req.InitialStatus,
			DueDate:       Advance(req.DueDate, req.Recurrence, i),
			Recurrence:    req.Recurrence,
		}
		if req.TotalInstallments > 1 {
			d.Description = fmt.Sprintf("%s (%d/%d)", req.Description, i+1, req.TotalInstallments)
			d.Installment = &models.InstallmentInfo{
				TotalInstallments:  req.TotalInstallments,
				CurrentInstallment: i + 1,
				InstallmentValue:   amounts[i],
			}
		}
		drafts[i] = d
	}
	return drafts, nil
}

// Advance moves a date forward by the given number of recurrence periods.
// Month and year steps are calendar-correct: the day of month is anchored to
// the start date and clamped to the last day of the target month, so
// Jan 31 + 1 month is Feb 28 (or 29), never Mar 3.
func Advance(start time.Time, pattern models.RecurrencePattern, periods int) time.Time {
	if periods == 0 {
		return start
	}
	switch pattern {
	case models.RecurrenceDaily:
		return start.AddDate(0, 0, periods)
	case models.RecurrenceWeekly:
		return start.AddDate(0, 0, 7*periods)
	case models.RecurrenceMonthly:
		return addMonthsClamped(start, periods)
	case models.RecurrenceYearly:
		return addMonthsClamped(start, 12*periods)
	}
	return start
}

func addMonthsClamped(t time.Time, months int) time.Time {
	y, m, day := t.Date()
	hh, mm, ss := t.Clock()

	// Normalize the target month first, then clamp the anchored day.
	firstOfTarget := time.Date(y, m+time.Month(months), 1, hh, mm, ss, t.Nanosecond(), t.Location())
	last := daysIn(firstOfTarget.Year(), firstOfTarget.Month())
	if day > last {
		day = last
	}
	return time.Date(firstOfTarget.Year(), firstOfTarget.Month(), day, hh, mm, ss, t.Nanosecond(), t.Location())
}

func daysIn(year int, month time.Month) int {
	// Day 0 of the next month is the last day of this one.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
