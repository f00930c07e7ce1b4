package repo

import (
	"context"
	"slices"

	"github.com/KNICEX/algo-trading/internal/entity"
	"gorm.io/gorm"
)

type AlgoLogRepo interface {
	Create(ctx context.Context, log entity.AlgoLog) (int64, error)
	// FindByAlgo 最近的 limit 条日志，按时间正序
	FindByAlgo(ctx context.Context, algoName string, limit int) ([]entity.AlgoLog, error)
}

type algoLogRepo struct {
	db *gorm.DB
}

func NewAlgoLogRepo(db *gorm.DB) AlgoLogRepo {
	return &algoLogRepo{
		db: db,
	}
}

func (r *algoLogRepo) Create(ctx context.Context, log entity.AlgoLog) (int64, error) {
	err := r.db.WithContext(ctx).Create(&log).Error
	if err != nil {
		return 0, err
	}
	return log.Id, nil
}

func (r *algoLogRepo) FindByAlgo(ctx context.Context, algoName string, limit int) ([]entity.AlgoLog, error) {
	var logs []entity.AlgoLog
	err := r.db.WithContext(ctx).Where("algo_name = ?", algoName).
		Order("id DESC").Limit(limit).Find(&logs).Error
	if err != nil {
		return nil, err
	}
	slices.Reverse(logs)
	return logs, nil
}
