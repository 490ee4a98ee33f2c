// persistence/gorm_postgresql.go
package persistence

import (
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/wfunc/chessrelay/models"
)

// GormPostgreSQL is the GORM implementation of Database.
type GormPostgreSQL struct {
	db *gorm.DB
}

// GameRecordModel is the GORM mapping for archived results.
type GameRecordModel struct {
	ID        uint   `gorm:"primaryKey"`
	JoinKey   string `gorm:"index;not null"`
	Winner    string `gorm:"not null"`
	Reason    string `gorm:"not null"`
	Moves     int    `gorm:"default:0"`
	Duration  int    `gorm:"default:0"`
	CreatedAt time.Time
}

func (GameRecordModel) TableName() string {
	return "game_records"
}

func NewGormPostgreSQL(host string, port int, user, password, dbname string) (*GormPostgreSQL, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)

	gormLogger := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold: time.Second,
			LogLevel:      gormlogger.Silent,
			Colorful:      false,
		},
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormLogger,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&GameRecordModel{}); err != nil {
		return nil, err
	}

	return &GormPostgreSQL{db: db}, nil
}

func (p *GormPostgreSQL) SaveGameRecord(record *models.GameRecord) error {
	row := GameRecordModel{
		JoinKey:  record.JoinKey,
		Winner:   record.Winner,
		Reason:   record.Reason,
		Moves:    record.Moves,
		Duration: record.Duration,
	}
	return p.db.Create(&row).Error
}

func (p *GormPostgreSQL) RecentGameRecords(limit int) ([]models.GameRecord, error) {
	var rows []GameRecordModel
	if err := p.db.Order("created_at DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}

	records := make([]models.GameRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, models.GameRecord{
			JoinKey:   row.JoinKey,
			Winner:    row.Winner,
			Reason:    row.Reason,
			Moves:     row.Moves,
			Duration:  row.Duration,
			CreatedAt: row.CreatedAt,
		})
	}
	return records, nil
}

func (p *GormPostgreSQL) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
