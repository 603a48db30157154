package paystack

import (
	"sync"
	"time"

	pkgerrors "github.com/farmgatehq/farmgate-backend/pkg/errors"
)

// requestBudget caps outbound gateway calls per calendar month. A limit of
// zero disables enforcement; the counter still tracks usage either way.
type requestBudget struct {
	mu    sync.Mutex
	limit int
	used  int
	month time.Month
	year  int
	now   func() time.Time
}

func newRequestBudget(limit int) *requestBudget {
	return &requestBudget{limit: limit, now: time.Now}
}

// Take records one outbound call, resetting the counter when the calendar
// month rolls over.
func (b *requestBudget) Take() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.rollover()
	if b.limit > 0 && b.used >= b.limit {
		return pkgerrors.New(pkgerrors.CodeDependency, "monthly gateway request budget exhausted")
	}
	b.used++
	return nil
}

// Used reports calls made during the current calendar month.
func (b *requestBudget) Used() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.rollover()
	return b.used
}

func (b *requestBudget) rollover() {
	now := b.now().UTC()
	if now.Month() != b.month || now.Year() != b.year {
		b.month = now.Month()
		b.year = now.Year()
		b.used = 0
	}
}
