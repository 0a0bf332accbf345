package domain

import "time"

// DefaultInvoiceDueHour is the UTC hour invoice dates are pinned to.
const DefaultInvoiceDueHour = 12

// AtDueHour returns the calendar date of t at hour:00 UTC. At the default
// hour the date reads the same in every timezone within twelve hours of UTC.
func AtDueHour(t time.Time, hour int) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, hour, 0, 0, 0, time.UTC)
}

// InvoiceDates derives the issue and due dates of an auto-created invoice.
// The base date is the project's issue date, else its end date, else now.
func InvoiceDates(issueDate, endDate *time.Time, now time.Time, paymentTermDays, hour int) (issue, due time.Time) {
	base := now
	switch {
	case issueDate != nil:
		base = *issueDate
	case endDate != nil:
		base = *endDate
	}
	issue = AtDueHour(base, hour)
	due = issue.AddDate(0, 0, paymentTermDays)
	return issue, due
}
