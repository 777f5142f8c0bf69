package service

import (
	"context"

	"github.com/keygate/keygate/storage/model"
)

// ListLogsRequest selects a page of audit events
type ListLogsRequest struct {
	KeySearch   string `json:"key" validate:"omitempty,max=8,digits"`
	SuccessOnly bool   `json:"success_only"`
	Action      string `json:"action"`
	Page        int    `json:"page" validate:"omitempty,min=1"`
	PerPage     int    `json:"per_page" validate:"omitempty,min=1"`
}

// LogPage is one page of audit events
type LogPage struct {
	Logs    []model.AuditEvent `json:"logs"`
	Total   int64              `json:"total"`
	Page    int                `json:"page"`
	PerPage int                `json:"per_page"`
	Pages   int                `json:"pages"`
}

var knownActions = map[model.Action]bool{
	model.ActionLoginSuccess:   true,
	model.ActionLoginFailed:    true,
	model.ActionKeyNotFound:    true,
	model.ActionKeyCreated:     true,
	model.ActionHWIDReset:      true,
	model.ActionKeyPaused:      true,
	model.ActionKeyResumed:     true,
	model.ActionKeyDeactivated: true,
	model.ActionKeyReactivated: true,
}

// ListLogs returns one page of audit events, newest first
func (s *Service) ListLogs(ctx context.Context, req ListLogsRequest) (*LogPage, error) {
	if err := s.check(req); err != nil {
		return nil, err
	}
	q := model.AuditQuery{KeySearch: req.KeySearch}
	if req.SuccessOnly {
		success := true
		q.Success = &success
	}
	if req.Action != "" {
		action := model.Action(req.Action)
		if !knownActions[action] {
			return nil, invalid("action", "unknown action '%s'", req.Action)
		}
		q.Actions = []model.Action{action}
	}
	pg := page(req.Page, req.PerPage, DefaultLogsPerPage)
	events, total, err := s.tx.Session(ctx).AuditLog().List(q, pg)
	if err != nil {
		return nil, err
	}
	if events == nil {
		events = []model.AuditEvent{}
	}
	return &LogPage{
		Logs:    events,
		Total:   total,
		Page:    pg.Page,
		PerPage: pg.PerPage,
		Pages:   pg.Pages(total),
	}, nil
}
