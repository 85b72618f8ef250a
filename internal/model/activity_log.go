package model

import "time"

// LogCategory は操作ログの種別
type LogCategory string

const (
	LogCategoryState LogCategory = "estado"
	LogCategoryUser  LogCategory = "usuario"
)

// Log actions.
const (
	ActionCreated          = "created"
	ActionEdited           = "edited"
	ActionAdvanced         = "advanced"
	ActionArchived         = "archived"
	ActionDeleted          = "deleted"
	ActionCarrierAssigned  = "carrier_assigned"
	ActionChecklistUpdated = "checklist_updated"
	ActionItemsChanged     = "items_changed"
	ActionDocumentUploaded = "document_uploaded"
	ActionUserCreated      = "user_created"
	ActionUserUpdated      = "user_updated"
	ActionUserActivated    = "user_activated"
	ActionUserDeactivated  = "user_deactivated"
	ActionLogin            = "login"
	ActionLogout           = "logout"
)

// ActivityLogEntry は追記専用の操作ログ
type ActivityLogEntry struct {
	ID        string      `json:"id" gorm:"type:varchar(36);primaryKey"`
	Timestamp time.Time   `json:"timestamp" gorm:"not null;index"`
	User      string      `json:"usuario" gorm:"column:user_name;type:varchar(255);not null"`
	UserID    string      `json:"usuario_id,omitempty" gorm:"type:varchar(36);index"`
	Action    string      `json:"accion" gorm:"type:varchar(50);not null"`
	Detail    string      `json:"detalle" gorm:"type:text"`
	Category  LogCategory `json:"tipo" gorm:"type:varchar(20);not null;index"`
}

func (ActivityLogEntry) TableName() string {
	return "activity_log"
}
