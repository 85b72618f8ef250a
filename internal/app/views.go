package app

import (
	"strings"
	"time"

	"order-workflow/internal/model"
	"order-workflow/internal/workflow"
)

// recentActivity is how many log entries the dashboard shows.
const recentActivity = 5

// VisibleOrders はロールの担当ステージと絞り込み条件を適用した注文一覧を返す
func (c *Controller) VisibleOrders() []model.Order {
	state, err := c.active()
	if err != nil {
		return nil
	}
	return visibleOrders(state.Orders(), state.Identity().Role, state.Filter())
}

func visibleOrders(orders []model.Order, role model.Role, f Filter) []model.Order {
	meta, ok := workflow.RoleInfo(role)
	if !ok {
		return nil
	}
	search := strings.ToLower(strings.TrimSpace(f.Search))
	out := make([]model.Order, 0, len(orders))
	for _, o := range orders {
		if !meta.Unrestricted() && o.Stage != meta.VisibleStage {
			continue
		}
		if meta.Unrestricted() && f.Stage != nil && o.Stage != *f.Stage {
			continue
		}
		if f.Priority != "" && o.Priority != f.Priority {
			continue
		}
		if search != "" && !containsAny(search, o.Code, o.Client, o.Description) {
			continue
		}
		out = append(out, o)
	}
	return out
}

func containsAny(needle string, fields ...string) bool {
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), needle) {
			return true
		}
	}
	return false
}

// VisibleHistory filters the archived orders by priority and search text.
func (c *Controller) VisibleHistory() []model.HistoryRecord {
	state, err := c.active()
	if err != nil {
		return nil
	}
	f := state.Filter()
	search := strings.ToLower(strings.TrimSpace(f.Search))
	var out []model.HistoryRecord
	for _, r := range state.History() {
		if f.Priority != "" && r.Priority != f.Priority {
			continue
		}
		if search != "" && !containsAny(search, r.Code, r.Client, r.Description) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// StageCount はダッシュボードのステージ別件数
type StageCount struct {
	Stage workflow.StageMeta
	Count int
}

// Dashboard は管理者向けの集計
type Dashboard struct {
	Stages         []StageCount
	Active         int
	Urgent         int
	CompletedToday int
	Recent         []model.ActivityLogEntry
}

// Dashboard aggregates the cached collections as of the engine clock.
func (c *Controller) Dashboard() Dashboard {
	state, err := c.active()
	if err != nil {
		return Dashboard{}
	}
	return buildDashboard(state.Orders(), state.History(), state.Log(), c.engine.Now())
}

func buildDashboard(orders []model.Order, history []model.HistoryRecord, entries []model.ActivityLogEntry, now time.Time) Dashboard {
	d := Dashboard{Active: len(orders)}
	counts := make(map[int]int)
	for _, o := range orders {
		counts[o.Stage]++
		if o.Priority == model.PriorityUrgent {
			d.Urgent++
		}
	}
	for _, meta := range workflow.Stages() {
		d.Stages = append(d.Stages, StageCount{Stage: meta, Count: counts[meta.Stage]})
	}
	for _, r := range history {
		if sameDay(r.DeliveredAt, now) {
			d.CompletedToday++
		}
	}
	if len(entries) > recentActivity {
		entries = entries[:recentActivity]
	}
	d.Recent = entries
	return d
}

func sameDay(a, b time.Time) bool {
	b = b.In(a.Location())
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}

// Column はパイプライン画面の1列
type Column struct {
	Stage  workflow.StageMeta
	Orders []model.Order
}

// Pipeline groups the visible orders by stage.
func (c *Controller) Pipeline() []Column {
	state, err := c.active()
	if err != nil {
		return nil
	}
	orders := visibleOrders(state.Orders(), state.Identity().Role, Filter{Priority: state.Filter().Priority, Search: state.Filter().Search})
	columns := make([]Column, 0, workflow.StageCount)
	for _, meta := range workflow.Stages() {
		col := Column{Stage: meta}
		for _, o := range orders {
			if o.Stage == meta.Stage {
				col.Orders = append(col.Orders, o)
			}
		}
		columns = append(columns, col)
	}
	return columns
}
