package model

import "gorm.io/datatypes"

// swagger:model Participant
type Participant struct {
	UUIDBase
	Name     string         `gorm:"size:255;not null" json:"name"`
	Email    string         `gorm:"size:255;uniqueIndex;not null" json:"email"`
	Phone    string         `gorm:"size:20" json:"phone,omitempty"`
	Metadata datatypes.JSON `json:"metadata,omitempty"`

	// 统计字段（反规范化，由 Sweeper 刷新）
	TotalContests int     `gorm:"default:0" json:"totalContests"`
	AverageScore  float64 `gorm:"default:0" json:"averageScore"`
}

func (Participant) TableName() string {
	return "participants"
}
