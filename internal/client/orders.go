package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"

	"order-workflow/internal/model"
	"order-workflow/internal/service"

	"github.com/shopspring/decimal"
)

// ListFilter narrows order listings.
type ListFilter struct {
	Completed bool
	Stage     *int
	Priority  model.Priority
	Search    string
}

func (f ListFilter) values() url.Values {
	q := url.Values{}
	if f.Completed {
		q.Set("completado", "true")
	}
	if f.Stage != nil {
		q.Set("estado", strconv.Itoa(*f.Stage))
	}
	if f.Priority != "" {
		q.Set("prioridad", string(f.Priority))
	}
	if f.Search != "" {
		q.Set("q", f.Search)
	}
	return q
}

func (c *Client) ListOrders(ctx context.Context, filter ListFilter) ([]model.Order, error) {
	var orders []model.Order
	r := request{method: http.MethodGet, path: "/api/pedidos", query: filter.values()}
	if err := c.doJSON(ctx, r, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

func (c *Client) GetOrder(ctx context.Context, id string) (*model.Order, error) {
	var order model.Order
	if err := c.call(ctx, http.MethodGet, "/api/pedidos/"+escape(id), nil, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (c *Client) CreateOrder(ctx context.Context, draft model.OrderDraft) (*model.Order, error) {
	var order model.Order
	if err := c.call(ctx, http.MethodPost, "/api/pedidos", draft, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (c *Client) UpdateOrder(ctx context.Context, id string, patch model.OrderPatch) (*model.Order, error) {
	var order model.Order
	if err := c.call(ctx, http.MethodPut, "/api/pedidos/"+escape(id), patch, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// AdvanceOrder moves the order one stage forward. At the final stage the result carries the history record.
func (c *Client) AdvanceOrder(ctx context.Context, id string) (*service.AdvanceResult, error) {
	var result service.AdvanceResult
	if err := c.call(ctx, http.MethodPut, "/api/pedidos/"+escape(id)+"/avanzar", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) AssignCarrier(ctx context.Context, id, carrierID string) (*model.Order, error) {
	var order model.Order
	if err := c.call(ctx, http.MethodPut, "/api/pedidos/"+escape(id)+"/asignar", model.AssignCarrierRequest{CarrierID: carrierID}, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (c *Client) UpdateChecklist(ctx context.Context, id string, checklist model.Checklist) (*model.Order, error) {
	var order model.Order
	if err := c.call(ctx, http.MethodPut, "/api/pedidos/"+escape(id)+"/checklist", checklist, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (c *Client) FinalizeOrder(ctx context.Context, id string) (*model.HistoryRecord, error) {
	var record model.HistoryRecord
	if err := c.call(ctx, http.MethodPut, "/api/pedidos/"+escape(id)+"/finalizar", nil, &record); err != nil {
		return nil, err
	}
	return &record, nil
}

func (c *Client) DeleteOrder(ctx context.Context, id string) error {
	return c.call(ctx, http.MethodDelete, "/api/pedidos/"+escape(id), nil, nil)
}

// ExportOrder downloads the order sheet as csv (default) or xlsx.
func (c *Client) ExportOrder(ctx context.Context, id, format string) (string, []byte, error) {
	q := url.Values{}
	if format != "" {
		q.Set("format", format)
	}
	return c.download(ctx, request{method: http.MethodGet, path: "/api/pedidos/" + escape(id) + "/csv", query: q})
}

func (c *Client) ListHistory(ctx context.Context, filter ListFilter) ([]model.HistoryRecord, error) {
	var records []model.HistoryRecord
	filter.Completed = false
	r := request{method: http.MethodGet, path: "/api/historial", query: filter.values()}
	if err := c.doJSON(ctx, r, &records); err != nil {
		return nil, err
	}
	return records, nil
}

func itemsPath(orderID string) string {
	return "/api/pedidos/" + escape(orderID) + "/productos"
}

func (c *Client) ListItems(ctx context.Context, orderID string) ([]model.Product, error) {
	var items []model.Product
	if err := c.call(ctx, http.MethodGet, itemsPath(orderID), nil, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func (c *Client) AddItem(ctx context.Context, orderID string, draft model.ProductDraft) (*model.Product, error) {
	var item model.Product
	if err := c.call(ctx, http.MethodPost, itemsPath(orderID), draft, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

func (c *Client) UpdateItemPreparedQty(ctx context.Context, orderID, itemID string, qty decimal.NullDecimal) (*model.Product, error) {
	var item model.Product
	if err := c.call(ctx, http.MethodPut, itemsPath(orderID)+"/"+escape(itemID), model.PreparedQtyRequest{PreparedQty: qty}, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

func (c *Client) DeleteItem(ctx context.Context, orderID, itemID string) error {
	return c.call(ctx, http.MethodDelete, itemsPath(orderID)+"/"+escape(itemID), nil, nil)
}

func documentPath(orderID string) string {
	return "/api/archivos/pedidos/" + escape(orderID) + "/pdf"
}

// UploadDocument sends a PDF as the "file" multipart field.
func (c *Client) UploadDocument(ctx context.Context, orderID, filename string, r io.Reader) (*model.Order, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("failed to build upload: %w", err)
	}
	if _, err := io.Copy(part, io.LimitReader(r, service.MaxDocumentSize+1)); err != nil {
		return nil, fmt.Errorf("failed to read document: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("failed to build upload: %w", err)
	}

	var order model.Order
	req := request{method: http.MethodPost, path: documentPath(orderID), body: &buf, contentType: mw.FormDataContentType()}
	if err := c.doJSON(ctx, req, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// DocumentURL is the download address of the order PDF. It requires the bearer token.
func (c *Client) DocumentURL(orderID string) string {
	return c.baseURL + documentPath(orderID)
}

func (c *Client) DownloadDocument(ctx context.Context, orderID string) (string, []byte, error) {
	return c.download(ctx, request{method: http.MethodGet, path: documentPath(orderID)})
}
