package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"order-workflow/internal/apperror"
	"order-workflow/internal/model"
	"order-workflow/internal/repository"
	"order-workflow/internal/workflow"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MaxDocumentSize is the upload limit for order documents.
const MaxDocumentSize = 10 << 20

const pdfContentType = "application/pdf"

// DocumentService は注文PDFの保存・取得サービス
type DocumentService interface {
	Upload(ctx context.Context, orderID, filename string, r io.Reader, actor workflow.Actor) (*model.Order, error)
	Open(ctx context.Context, orderID string) (io.ReadCloser, string, error)
}

type documentServiceImpl struct {
	store     repository.Store
	documents DocumentStore
	engine    *workflow.Engine
	publisher EventPublisher
	logger    *zap.Logger
}

// NewDocumentService は新しい書類サービスを作成
func NewDocumentService(store repository.Store, documents DocumentStore, engine *workflow.Engine, publisher EventPublisher, logger *zap.Logger) DocumentService {
	return &documentServiceImpl{
		store:     store,
		documents: documents,
		engine:    engine,
		publisher: publisher,
		logger:    logger,
	}
}

// Upload はPDFを保存して注文に紐付ける。既存のPDFは置き換える
func (s *documentServiceImpl) Upload(ctx context.Context, orderID, filename string, r io.Reader, actor workflow.Actor) (*model.Order, error) {
	if !strings.EqualFold(path.Ext(filename), ".pdf") {
		return nil, apperror.Validation("Solo se permiten archivos PDF")
	}

	var buf bytes.Buffer
	n, err := io.Copy(&buf, io.LimitReader(r, MaxDocumentSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	if n > MaxDocumentSize {
		return nil, apperror.Validation("El archivo supera el tamaño máximo de 10 MB")
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")) {
		return nil, apperror.Validation("El archivo no es un PDF válido")
	}

	if _, err := s.store.Orders().Get(ctx, orderID); err != nil {
		return nil, err
	}

	key := fmt.Sprintf("pedidos/%s/%s.pdf", orderID, uuid.NewString())
	if err := s.documents.Save(ctx, key, pdfContentType, &buf); err != nil {
		return nil, err
	}

	var updated *model.Order
	var previous string
	err = s.store.Transaction(ctx, func(tx repository.Store) error {
		order, err := tx.Orders().GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		previous = order.DocumentPath

		next := order.Clone()
		next.DocumentPath = key
		next.UpdatedAt = s.engine.Now()
		if err := tx.Orders().Update(ctx, next); err != nil {
			return err
		}
		entry := s.engine.OrderLog(actor, model.ActionDocumentUploaded, fmt.Sprintf("%s - %s", order.Code, path.Base(filename)))
		if err := tx.Activity().Append(ctx, &entry); err != nil {
			return err
		}
		updated = next
		return nil
	})
	if err != nil {
		s.discard(ctx, key)
		return nil, err
	}
	if previous != "" {
		s.discard(ctx, previous)
	}

	if s.publisher != nil {
		event := model.OrderEvent{
			Type:    EventDocumentUploaded,
			OrderID: updated.ID,
			Code:    updated.Code,
			Stage:   updated.Stage,
			Actor:   actor.Name,
			ActorID: actor.ID,
			At:      s.engine.Now(),
		}
		if err := s.publisher.Publish(ctx, event); err != nil {
			s.logger.Warn("failed to publish document event", zap.String("code", updated.Code), zap.Error(err))
		}
	}
	return updated, nil
}

// Open は注文（または履歴）に紐付いたPDFを返す
func (s *documentServiceImpl) Open(ctx context.Context, orderID string) (io.ReadCloser, string, error) {
	code, key, err := s.locate(ctx, orderID)
	if err != nil {
		return nil, "", err
	}
	if key == "" {
		return nil, "", apperror.Newf(apperror.KindNotFound, "%s no tiene PDF adjunto", code)
	}
	rc, err := s.documents.Open(ctx, key)
	if err != nil {
		return nil, "", err
	}
	return rc, code + ".pdf", nil
}

func (s *documentServiceImpl) locate(ctx context.Context, orderID string) (string, string, error) {
	order, err := s.store.Orders().Get(ctx, orderID)
	if err == nil {
		return order.Code, order.DocumentPath, nil
	}
	if !apperror.IsKind(err, apperror.KindNotFound) {
		return "", "", err
	}
	record, herr := s.store.History().GetByOrder(ctx, orderID)
	if herr != nil {
		return "", "", err
	}
	return record.Code, record.DocumentPath, nil
}

func (s *documentServiceImpl) discard(ctx context.Context, key string) {
	if err := s.documents.Delete(ctx, key); err != nil {
		s.logger.Warn("failed to delete document", zap.String("key", key), zap.Error(err))
	}
}
