package repo

import (
	"context"

	"github.com/KNICEX/algo-trading/internal/entity"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AlgoRepo interface {
	// Save 按实例名插入或覆盖
	Save(ctx context.Context, record entity.AlgoRecord) error
	FindByName(ctx context.Context, name string) (entity.AlgoRecord, error)
	FindByStatus(ctx context.Context, status ...string) ([]entity.AlgoRecord, error)
	List(ctx context.Context) ([]entity.AlgoRecord, error)
}

type algoRepo struct {
	db *gorm.DB
}

func NewAlgoRepo(db *gorm.DB) AlgoRepo {
	return &algoRepo{
		db: db,
	}
}

func (repo *algoRepo) Save(ctx context.Context, record entity.AlgoRecord) error {
	return repo.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"price", "volume", "traded", "traded_price", "status", "parameters", "variables", "updated_at",
		}),
	}).Create(&record).Error
}

func (repo *algoRepo) FindByName(ctx context.Context, name string) (entity.AlgoRecord, error) {
	var record entity.AlgoRecord
	err := repo.db.WithContext(ctx).Where("name = ?", name).First(&record).Error
	if err != nil {
		return entity.AlgoRecord{}, err
	}
	return record, nil
}

func (repo *algoRepo) FindByStatus(ctx context.Context, status ...string) ([]entity.AlgoRecord, error) {
	var records []entity.AlgoRecord
	err := repo.db.WithContext(ctx).Where("status IN ?", status).Order("id").Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (repo *algoRepo) List(ctx context.Context) ([]entity.AlgoRecord, error) {
	var records []entity.AlgoRecord
	err := repo.db.WithContext(ctx).Order("id").Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}
