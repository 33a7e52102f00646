package repository

import (
	"encoding/json"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/obtic-sorbonne/chatsfp/internal/models"
	"github.com/obtic-sorbonne/chatsfp/internal/tei"
)

// BulletinRepository 公报目录仓库接口
// 目录记录每次入库的结果，索引整体重建时目录也整体重建
type BulletinRepository interface {
	// Upsert 新增或更新公报记录
	Upsert(bulletin *models.Bulletin) error

	// Get 按标识符取公报记录
	Get(id string) (*models.Bulletin, error)

	// List 返回全部公报记录，按标识符排序
	List() ([]models.Bulletin, error)

	// YearIndex 返回标识符到年份的映射，仅含提取到年份的公报
	YearIndex() (map[string]int, error)

	// Reset 清空目录
	Reset() error
}

// GormBulletinRepository 基于GORM的公报目录仓库
type GormBulletinRepository struct {
	db *gorm.DB
}

// NewBulletinRepository 创建公报目录仓库
func NewBulletinRepository(db *gorm.DB) BulletinRepository {
	return &GormBulletinRepository{db: db}
}

// Upsert 新增或更新公报记录
func (r *GormBulletinRepository) Upsert(bulletin *models.Bulletin) error {
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(bulletin).Error
}

// Get 按标识符取公报记录
func (r *GormBulletinRepository) Get(id string) (*models.Bulletin, error) {
	var bulletin models.Bulletin
	if err := r.db.First(&bulletin, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.ErrBulletinNotFound
		}
		return nil, err
	}
	return &bulletin, nil
}

// List 返回全部公报记录
func (r *GormBulletinRepository) List() ([]models.Bulletin, error) {
	var bulletins []models.Bulletin
	if err := r.db.Order("id").Find(&bulletins).Error; err != nil {
		return nil, err
	}
	return bulletins, nil
}

// YearIndex 返回标识符到年份的映射
func (r *GormBulletinRepository) YearIndex() (map[string]int, error) {
	var bulletins []models.Bulletin
	if err := r.db.Where("year IS NOT NULL").Find(&bulletins).Error; err != nil {
		return nil, err
	}

	years := make(map[string]int, len(bulletins))
	for _, b := range bulletins {
		if b.Year != nil {
			years[b.ID] = *b.Year
		}
	}
	return years, nil
}

// Reset 清空目录
func (r *GormBulletinRepository) Reset() error {
	return r.db.Session(&gorm.Session{AllowGlobalUpdate: true}).
		Delete(&models.Bulletin{}).Error
}

// BulletinFromDocument 将解析后的公报转换为目录记录
func BulletinFromDocument(doc *tei.SourceDocument, fragmentCount int) *models.Bulletin {
	persons, _ := json.Marshal(doc.Persons)
	return &models.Bulletin{
		ID:            doc.Identifier,
		Title:         doc.Title,
		DateText:      doc.DateText,
		Year:          doc.Year,
		Persons:       persons,
		FragmentCount: fragmentCount,
		Status:        models.StatusIngested,
	}
}

// FailedBulletin 为解析失败的文件生成目录记录
func FailedBulletin(identifier string, cause error) *models.Bulletin {
	return &models.Bulletin{
		ID:     identifier,
		Status: models.StatusFailed,
		Error:  cause.Error(),
	}
}
