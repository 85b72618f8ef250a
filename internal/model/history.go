package model

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"
)

// HistoryRecord は完了した注文の不変スナップショット
type HistoryRecord struct {
	ID            string         `json:"id" gorm:"type:varchar(36);primaryKey"`
	OrderID       string         `json:"pedido_id" gorm:"type:varchar(36);uniqueIndex;not null"`
	Code          string         `json:"codigo" gorm:"type:varchar(20);not null;index"`
	Client        string         `json:"cliente" gorm:"type:varchar(255);not null"`
	Address       string         `json:"direccion" gorm:"type:varchar(500)"`
	Phone         string         `json:"telefono,omitempty" gorm:"type:varchar(32)"`
	Description   string         `json:"descripcion,omitempty" gorm:"type:text"`
	Priority      Priority       `json:"prioridad" gorm:"type:varchar(20)"`
	Notes         string         `json:"notas,omitempty" gorm:"type:text"`
	AssignedTo    string         `json:"asignado_a,omitempty" gorm:"type:varchar(36)"`
	AssignedName  string         `json:"asignado_nombre,omitempty" gorm:"type:varchar(255)"`
	GoodsOK       *bool          `json:"check_mercancia,omitempty"`
	ConditionOK   *bool          `json:"check_estado,omitempty"`
	DocsOK        *bool          `json:"check_documentacion,omitempty"`
	DocumentPath  string         `json:"pdf_ruta,omitempty" gorm:"type:varchar(500)"`
	CreatedBy     string         `json:"creado_por" gorm:"type:varchar(255)"`
	Products      datatypes.JSON `json:"productos"`
	CreatedAt     time.Time      `json:"fecha_creacion"`
	DeliveredAt   time.Time      `json:"fecha_entrega" gorm:"not null;index"`
	DeliveredBy   string         `json:"entregado_por" gorm:"type:varchar(255)"`
	DeliveredByID string         `json:"entregado_por_id" gorm:"type:varchar(36)"`
}

func (HistoryRecord) TableName() string {
	return "order_history"
}

// NewHistoryRecord snapshots order as completed at deliveredAt by the given user.
func NewHistoryRecord(id string, order *Order, deliveredAt time.Time, deliveredBy, deliveredByID string) (*HistoryRecord, error) {
	products := order.Products
	if products == nil {
		products = []Product{}
	}
	raw, err := json.Marshal(products)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal products snapshot: %w", err)
	}

	return &HistoryRecord{
		ID:            id,
		OrderID:       order.ID,
		Code:          order.Code,
		Client:        order.Client,
		Address:       order.Address,
		Phone:         order.Phone,
		Description:   order.Description,
		Priority:      order.Priority,
		Notes:         order.Notes,
		AssignedTo:    order.AssignedTo,
		AssignedName:  order.AssignedName,
		GoodsOK:       cloneBool(order.GoodsOK),
		ConditionOK:   cloneBool(order.ConditionOK),
		DocsOK:        cloneBool(order.DocsOK),
		DocumentPath:  order.DocumentPath,
		CreatedBy:     order.CreatedBy,
		Products:      datatypes.JSON(raw),
		CreatedAt:     order.CreatedAt,
		DeliveredAt:   deliveredAt,
		DeliveredBy:   deliveredBy,
		DeliveredByID: deliveredByID,
	}, nil
}

// Items decodes the line item snapshot.
func (h *HistoryRecord) Items() ([]Product, error) {
	if len(h.Products) == 0 {
		return nil, nil
	}
	var items []Product
	if err := json.Unmarshal(h.Products, &items); err != nil {
		return nil, fmt.Errorf("failed to decode products snapshot: %w", err)
	}
	return items, nil
}

// AsOrder renders the record in the order shape, at the final stage.
func (h *HistoryRecord) AsOrder() (*Order, error) {
	items, err := h.Items()
	if err != nil {
		return nil, err
	}
	return &Order{
		ID:           h.OrderID,
		Code:         h.Code,
		Client:       h.Client,
		Address:      h.Address,
		Phone:        h.Phone,
		Description:  h.Description,
		Priority:     h.Priority,
		Notes:        h.Notes,
		Stage:        StageFinal,
		AssignedTo:   h.AssignedTo,
		AssignedName: h.AssignedName,
		GoodsOK:      cloneBool(h.GoodsOK),
		ConditionOK:  cloneBool(h.ConditionOK),
		DocsOK:       cloneBool(h.DocsOK),
		DocumentPath: h.DocumentPath,
		CreatedBy:    h.CreatedBy,
		CreatedAt:    h.CreatedAt,
		UpdatedAt:    h.DeliveredAt,
		Products:     items,
	}, nil
}
