package engine

import (
	"time"

	"github.com/sells-group/audit-flash/internal/model"
)

const day = 24 * time.Hour

// Compliance places current on the rental prohibition calendar as of asOf.
// Days are counted between UTC calendar days.
func (e *Engine) Compliance(current, target model.EnergyClass, asOf time.Time) model.Compliance {
	c := model.Compliance{
		Status:          model.ComplianceOK,
		TargetCompliant: e.Compliant(target),
	}
	date, ok := e.table.ProhibitionDate(current)
	if !ok {
		return c
	}
	d := date
	c.ProhibitionDate = &d

	if IsProhibited(asOf, date) {
		c.Status = model.ComplianceProhibited
		c.IsProhibited = true
		return c
	}
	c.Status = model.ComplianceAtRisk
	c.DaysUntilProhibition = DaysBetween(asOf, date)
	return c
}

// Compliant reports whether class has no prohibition date at all.
func (e *Engine) Compliant(class model.EnergyClass) bool {
	_, ok := e.table.ProhibitionDate(class)
	return !ok
}

// IsProhibited reports whether asOf falls on or after the prohibition date.
func IsProhibited(asOf, prohibition time.Time) bool {
	return !utcDay(asOf).Before(utcDay(prohibition))
}

// DaysBetween is the floor of whole days from from's UTC day to to's UTC day.
func DaysBetween(from, to time.Time) int {
	return int(utcDay(to).Sub(utcDay(from)) / day)
}

func utcDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
