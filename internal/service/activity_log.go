package service

import (
	"context"
	"fmt"

	"order-workflow/internal/model"
	"order-workflow/internal/repository"
)

// DefaultLogLimit caps log listings when the caller gives no limit.
const DefaultLogLimit = 200

// ActivityLogService は操作ログの記録・参照サービス
type ActivityLogService interface {
	Record(ctx context.Context, entry model.ActivityLogEntry) error
	List(ctx context.Context, filter repository.LogFilter) ([]model.ActivityLogEntry, error)
}

type activityLogServiceImpl struct {
	store repository.Store
}

// NewActivityLogService は新しい操作ログサービスを作成
func NewActivityLogService(store repository.Store) ActivityLogService {
	return &activityLogServiceImpl{store: store}
}

// Record は操作ログを追記
func (s *activityLogServiceImpl) Record(ctx context.Context, entry model.ActivityLogEntry) error {
	if err := s.store.Activity().Append(ctx, &entry); err != nil {
		return fmt.Errorf("failed to record activity: %w", err)
	}
	return nil
}

// List は新しい順に操作ログを返す
func (s *activityLogServiceImpl) List(ctx context.Context, filter repository.LogFilter) ([]model.ActivityLogEntry, error) {
	if filter.Limit <= 0 {
		filter.Limit = DefaultLogLimit
	}
	entries, err := s.store.Activity().List(ctx, filter)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []model.ActivityLogEntry{}
	}
	return entries, nil
}
