package model

// Role はユーザーのロール
type Role string

const (
	RoleWarehouse Role = "almacen"
	RoleLogistics Role = "logistica"
	RoleCarrier   Role = "transportista"
	RoleOffice    Role = "oficina"
	RoleAdmin     Role = "admin"
)

// Roles lists every role in display order.
var Roles = []Role{RoleWarehouse, RoleLogistics, RoleCarrier, RoleOffice, RoleAdmin}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	for _, known := range Roles {
		if r == known {
			return true
		}
	}
	return false
}

// Priority は注文の優先度
type Priority string

const (
	PriorityUrgent Priority = "urgente"
	PriorityHigh   Priority = "alta"
	PriorityMedium Priority = "media"
	PriorityLow    Priority = "baja"
)

var Priorities = []Priority{PriorityUrgent, PriorityHigh, PriorityMedium, PriorityLow}

func (p Priority) Valid() bool {
	for _, known := range Priorities {
		if p == known {
			return true
		}
	}
	return false
}

// Unit は明細数量の単位
type Unit string

const (
	UnitUnits   Unit = "unidades"
	UnitKg      Unit = "kg"
	UnitBoxes   Unit = "cajas"
	UnitPallets Unit = "palets"
	UnitLiters  Unit = "litros"
)

var Units = []Unit{UnitUnits, UnitKg, UnitBoxes, UnitPallets, UnitLiters}

func (u Unit) Valid() bool {
	for _, known := range Units {
		if u == known {
			return true
		}
	}
	return false
}

// Stage values of an active order. Archived orders live in HistoryRecord.
const (
	StagePreparation = 0
	StageRouting     = 1
	StageTransport   = 2
	StageOffice      = 3
	StageFinal       = StageOffice
)
