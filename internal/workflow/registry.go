package workflow

import "order-workflow/internal/model"

// AllStages is the visible stage of the unrestricted role.
const AllStages = -1

// StageCount is the number of active stages. There is no stage 4.
const StageCount = 4

// RoleMeta はロールの表示情報
type RoleMeta struct {
	Role         model.Role `json:"rol"`
	Label        string     `json:"label"`
	Color        string     `json:"color"`
	VisibleStage int        `json:"estado_visible"`
}

// Unrestricted reports whether the role bypasses stage ownership.
func (m RoleMeta) Unrestricted() bool {
	return m.VisibleStage == AllStages
}

// StageMeta はステージの表示情報と担当ロール
type StageMeta struct {
	Stage       int        `json:"estado"`
	Label       string     `json:"label"`
	Color       string     `json:"color"`
	Background  string     `json:"bg"`
	Border      string     `json:"border"`
	Owner       model.Role `json:"rol"`
	ActionLabel string     `json:"accion"`
	NextLabel   string     `json:"siguiente"`
}

// PriorityMeta は優先度の表示情報
type PriorityMeta struct {
	Priority model.Priority `json:"prioridad"`
	Label    string         `json:"label"`
	Color    string         `json:"color"`
}

// HistoryLabel is the label shown for the archived state.
const HistoryLabel = "Historial"

var roleTable = map[model.Role]RoleMeta{
	model.RoleWarehouse: {Role: model.RoleWarehouse, Label: "Almacén", Color: "#F59E0B", VisibleStage: model.StagePreparation},
	model.RoleLogistics: {Role: model.RoleLogistics, Label: "Logística", Color: "#3B82F6", VisibleStage: model.StageRouting},
	model.RoleCarrier:   {Role: model.RoleCarrier, Label: "Transportista", Color: "#10B981", VisibleStage: model.StageTransport},
	model.RoleOffice:    {Role: model.RoleOffice, Label: "Oficina", Color: "#8B5CF6", VisibleStage: model.StageOffice},
	model.RoleAdmin:     {Role: model.RoleAdmin, Label: "Administrador", Color: "#EC4899", VisibleStage: AllStages},
}

var stageTable = [StageCount]StageMeta{
	newStage(model.StagePreparation, "En Preparación", "#F59E0B", model.RoleWarehouse, "Marcar Preparado", "Asignar Ruta"),
	newStage(model.StageRouting, "Asignar Ruta", "#3B82F6", model.RoleLogistics, "Confirmar Ruta", "En Transporte"),
	newStage(model.StageTransport, "En Transporte", "#10B981", model.RoleCarrier, "Marcar Entregado", "Revisión Oficina"),
	newStage(model.StageOffice, "Revisión Oficina", "#8B5CF6", model.RoleOffice, "Cerrar Pedido", HistoryLabel),
}

var priorityTable = map[model.Priority]PriorityMeta{
	model.PriorityUrgent: {Priority: model.PriorityUrgent, Label: "Urgente", Color: "#EF4444"},
	model.PriorityHigh:   {Priority: model.PriorityHigh, Label: "Alta", Color: "#F59E0B"},
	model.PriorityMedium: {Priority: model.PriorityMedium, Label: "Media", Color: "#3B82F6"},
	model.PriorityLow:    {Priority: model.PriorityLow, Label: "Baja", Color: "#6B7280"},
}

func newStage(stage int, label, color string, owner model.Role, action, next string) StageMeta {
	return StageMeta{
		Stage:       stage,
		Label:       label,
		Color:       color,
		Background:  color + "12",
		Border:      color + "30",
		Owner:       owner,
		ActionLabel: action,
		NextLabel:   next,
	}
}

// RoleInfo はロールの表示情報を返す
func RoleInfo(role model.Role) (RoleMeta, bool) {
	meta, ok := roleTable[role]
	return meta, ok
}

// StageInfo はステージの表示情報を返す
func StageInfo(stage int) (StageMeta, bool) {
	if !ValidStage(stage) {
		return StageMeta{}, false
	}
	return stageTable[stage], true
}

// Stages returns the stage table in order.
func Stages() []StageMeta {
	out := make([]StageMeta, StageCount)
	copy(out, stageTable[:])
	return out
}

// PriorityInfo は優先度の表示情報を返す
func PriorityInfo(p model.Priority) (PriorityMeta, bool) {
	meta, ok := priorityTable[p]
	return meta, ok
}

// ValidStage reports whether stage is an active stage.
func ValidStage(stage int) bool {
	return stage >= 0 && stage < StageCount
}

// IsUnrestricted reports whether role is exempt from stage ownership.
func IsUnrestricted(role model.Role) bool {
	meta, ok := roleTable[role]
	return ok && meta.Unrestricted()
}

// StageLabel returns the stage label, or HistoryLabel past the last stage.
func StageLabel(stage int) string {
	if meta, ok := StageInfo(stage); ok {
		return meta.Label
	}
	if stage >= StageCount {
		return HistoryLabel
	}
	return ""
}
