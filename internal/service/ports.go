package service

import (
	"context"
	"io"
	"time"

	"order-workflow/internal/model"
)

// TokenRevoker はログアウト済みトークンを管理するインターフェース
type TokenRevoker interface {
	Revoke(ctx context.Context, tokenID string, ttl time.Duration) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// DocumentStore は添付書類の保存先インターフェース
type DocumentStore interface {
	Save(ctx context.Context, key, contentType string, r io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// EventPublisher は注文イベントの通知先インターフェース
type EventPublisher interface {
	Publish(ctx context.Context, event model.OrderEvent) error
}

// Order event types.
const (
	EventOrderCreated     = "pedido.creado"
	EventOrderEdited      = "pedido.editado"
	EventOrderAdvanced    = "pedido.avanzado"
	EventOrderArchived    = "pedido.archivado"
	EventOrderAssigned    = "pedido.asignado"
	EventOrderChecklist   = "pedido.checklist"
	EventOrderDeleted     = "pedido.eliminado"
	EventDocumentUploaded = "pedido.documento"
)
