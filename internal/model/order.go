package model

import (
	"fmt"
	"time"
)

// OrderCode formats the human-readable code of the n-th order of year.
func OrderCode(year, n int) string {
	return fmt.Sprintf("PED-%d-%04d", year, n)
}

// Order represents an order moving through the fulfillment stages
type Order struct {
	ID           string    `json:"id" gorm:"type:varchar(36);primaryKey"`
	Code         string    `json:"codigo" gorm:"type:varchar(20);uniqueIndex;not null"`
	Client       string    `json:"cliente" gorm:"type:varchar(255);not null"`
	Address      string    `json:"direccion" gorm:"type:varchar(500);not null"`
	Phone        string    `json:"telefono,omitempty" gorm:"type:varchar(32)"`
	Description  string    `json:"descripcion,omitempty" gorm:"type:text"`
	Priority     Priority  `json:"prioridad" gorm:"type:varchar(20);not null;index"`
	Notes        string    `json:"notas,omitempty" gorm:"type:text"`
	Stage        int       `json:"estado_actual" gorm:"not null;index"`
	AssignedTo   string    `json:"asignado_a,omitempty" gorm:"type:varchar(36);index"`
	AssignedName string    `json:"asignado_nombre,omitempty" gorm:"type:varchar(255)"`
	GoodsOK      *bool     `json:"check_mercancia,omitempty"`
	ConditionOK  *bool     `json:"check_estado,omitempty"`
	DocsOK       *bool     `json:"check_documentacion,omitempty"`
	DocumentPath string    `json:"pdf_ruta,omitempty" gorm:"type:varchar(500)"`
	CreatedBy    string    `json:"creado_por" gorm:"type:varchar(255)"`
	CreatedAt    time.Time `json:"fecha_creacion"`
	UpdatedAt    time.Time `json:"fecha_actualizacion"`
	Products     []Product `json:"productos" gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
}

func (Order) TableName() string {
	return "orders"
}

// Clone returns a deep copy so callers never share line items or checklist pointers.
func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	cp := *o
	cp.GoodsOK = cloneBool(o.GoodsOK)
	cp.ConditionOK = cloneBool(o.ConditionOK)
	cp.DocsOK = cloneBool(o.DocsOK)
	if o.Products != nil {
		cp.Products = make([]Product, len(o.Products))
		copy(cp.Products, o.Products)
	}
	return &cp
}

func cloneBool(b *bool) *bool {
	if b == nil {
		return nil
	}
	v := *b
	return &v
}

// Checklist は積込時の確認項目
type Checklist struct {
	GoodsOK     bool `json:"check_mercancia"`
	ConditionOK bool `json:"check_estado"`
	DocsOK      bool `json:"check_documentacion"`
}

// OrderDraft は注文作成リクエスト
type OrderDraft struct {
	Client      string         `json:"cliente" validate:"required"`
	Address     string         `json:"direccion" validate:"required"`
	Phone       string         `json:"telefono"`
	Description string         `json:"descripcion"`
	Priority    Priority       `json:"prioridad" validate:"omitempty,oneof=urgente alta media baja"`
	Notes       string         `json:"notas"`
	Products    []ProductDraft `json:"productos"`
}

// OrderPatch は注文更新リクエスト（指定されたフィールドのみ更新）
type OrderPatch struct {
	Client      *string   `json:"cliente,omitempty"`
	Address     *string   `json:"direccion,omitempty"`
	Phone       *string   `json:"telefono,omitempty"`
	Description *string   `json:"descripcion,omitempty"`
	Priority    *Priority `json:"prioridad,omitempty"`
	Notes       *string   `json:"notas,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p OrderPatch) Empty() bool {
	return p.Client == nil && p.Address == nil && p.Phone == nil &&
		p.Description == nil && p.Priority == nil && p.Notes == nil
}

// AssignCarrierRequest は運送担当者の割当リクエスト
type AssignCarrierRequest struct {
	CarrierID string `json:"transportista_id" binding:"required"`
}

// OrderFilter は注文一覧の絞り込み条件
type OrderFilter struct {
	Completed bool
	Stage     *int
	Priority  Priority
	Search    string
}
