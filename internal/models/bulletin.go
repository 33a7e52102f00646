package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// BulletinStatus 公报入库状态
type BulletinStatus string

const (
	StatusIngested BulletinStatus = "ingested" // 解析并索引成功
	StatusFailed   BulletinStatus = "failed"   // 解析或索引失败
)

// Bulletin 公报目录记录
// 每个语料文件对应一条记录，记录解析出的元数据和入库结果
type Bulletin struct {
	ID            string         `gorm:"primaryKey;type:varchar(512)" json:"id"` // 语料文件标识符（路径或对象键）
	Title         string         `gorm:"type:text" json:"title"`                 // 公报标题，缺失时为哨兵值
	DateText      string         `gorm:"type:varchar(255)" json:"date_text"`     // 原始日期文本
	Year          *int           `gorm:"index" json:"year,omitempty"`            // 从日期文本提取的年份，可能为空
	Persons       datatypes.JSON `gorm:"type:json" json:"persons,omitempty"`     // 文中提到的人名列表
	FragmentCount int            `gorm:"default:0" json:"fragment_count"`        // 切分出的片段数
	Status        BulletinStatus `gorm:"type:varchar(20);index" json:"status"`   // 入库状态
	Error         string         `gorm:"type:text" json:"error,omitempty"`       // 失败原因
	IngestedAt    time.Time      `json:"ingested_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// TableName 指定表名
func (Bulletin) TableName() string {
	return "bulletins"
}

// BeforeCreate 创建前的钩子
func (b *Bulletin) BeforeCreate(tx *gorm.DB) error {
	if b.IngestedAt.IsZero() {
		b.IngestedAt = time.Now()
	}
	b.UpdatedAt = time.Now()
	return nil
}

// BeforeUpdate 更新前的钩子
func (b *Bulletin) BeforeUpdate(tx *gorm.DB) error {
	b.UpdatedAt = time.Now()
	return nil
}
