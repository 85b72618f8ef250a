package model

import "time"

// OrderEvent は注文の状態変化を外部へ通知するメッセージ
type OrderEvent struct {
	Type    string    `json:"tipo"`
	OrderID string    `json:"pedido_id"`
	Code    string    `json:"codigo"`
	Stage   int       `json:"estado_actual"`
	Actor   string    `json:"usuario"`
	ActorID string    `json:"usuario_id"`
	At      time.Time `json:"timestamp"`
}
