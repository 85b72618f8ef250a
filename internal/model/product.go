package model

import "github.com/shopspring/decimal"

func init() {
	// 数量はJSON上で数値として扱う（フロントエンドとの互換性）
	decimal.MarshalJSONWithoutQuotes = true
}

// Product は注文明細を表すモデル
type Product struct {
	ID           string              `json:"id" gorm:"type:varchar(36);primaryKey"`
	OrderID      string              `json:"pedido_id" gorm:"type:varchar(36);not null;index"`
	Name         string              `json:"nombre_producto" gorm:"type:varchar(255);not null"`
	RequestedQty decimal.Decimal     `json:"cantidad_solicitada" gorm:"type:numeric(12,3);not null"`
	Unit         Unit                `json:"unidad" gorm:"type:varchar(20);not null"`
	PreparedQty  decimal.NullDecimal `json:"cantidad_preparada" gorm:"type:numeric(12,3)"`
	Position     int                 `json:"posicion" gorm:"not null;default:0"`
}

func (Product) TableName() string {
	return "order_products"
}

// ProductDraft は明細の作成リクエスト
type ProductDraft struct {
	Name         string          `json:"nombre_producto" validate:"required"`
	RequestedQty decimal.Decimal `json:"cantidad_solicitada"`
	Unit         Unit            `json:"unidad" validate:"omitempty,oneof=unidades kg cajas palets litros"`
}

// PreparedQtyRequest は準備数量の更新リクエスト
type PreparedQtyRequest struct {
	PreparedQty decimal.NullDecimal `json:"cantidad_preparada"`
}
