package view

import (
	"context"

	"trcinventory/internal/dashboard"
)

type DashboardSource interface {
	Dashboard(ctx context.Context) (dashboard.Summary, error)
}

// DashboardView shows the counts. A summary with some slices missing is still shown.
type DashboardView struct {
	lifetime

	src     DashboardSource
	summary *dashboard.Summary
}

func NewDashboardView(parent context.Context, src DashboardSource) *DashboardView {
	v := &DashboardView{src: src}
	v.init(parent)
	return v
}

func (v *DashboardView) Mount() error {
	if err := v.begin(); err != nil {
		return err
	}
	s, err := v.src.Dashboard(v.ctx)
	return v.commit(err, func() {
		v.summary = &s
	})
}

func (v *DashboardView) Summary() (dashboard.Summary, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.summary == nil {
		return dashboard.Summary{}, false
	}
	return *v.summary, true
}
