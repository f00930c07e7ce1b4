package repo

import (
	"github.com/KNICEX/algo-trading/internal/entity"
	"gorm.io/gorm"
)

func InitTables(db *gorm.DB) error {
	return db.AutoMigrate(&entity.AlgoRecord{}, &entity.AlgoLog{})
}
