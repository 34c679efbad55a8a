package store

import (
	"context"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/greenwinther/guess-the-song2/internal/snapshot"
)

type roomSnapshot struct {
	Code      string         `gorm:"primaryKey;size:12"`
	ExpiresAt int64          `gorm:"not null;index"`
	Payload   datatypes.JSON `gorm:"type:jsonb;not null"`
	UpdatedAt time.Time      `gorm:"not null"`
}

func (roomSnapshot) TableName() string { return "room_snapshots" }

// Postgres stores snapshots as jsonb rows through gorm.
type Postgres struct {
	db *gorm.DB
}

func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres store needs DATABASE_URL")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: logger.Discard})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.WithContext(ctx).AutoMigrate(&roomSnapshot{}); err != nil {
		return nil, fmt.Errorf("migrate room_snapshots: %w", err)
	}
	return &Postgres{db: db}, nil
}

func (p *Postgres) Load(ctx context.Context) ([]snapshot.Record, error) {
	var rows []roomSnapshot
	if err := p.db.WithContext(ctx).Order("code").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load room_snapshots: %w", err)
	}
	records := make([]snapshot.Record, 0, len(rows))
	for _, row := range rows {
		records = append(records, snapshot.Record{
			Code:      row.Code,
			ExpiresAt: row.ExpiresAt,
			Payload:   []byte(row.Payload),
		})
	}
	return records, nil
}

// Save upserts every record and deletes rows for rooms that are gone.
func (p *Postgres) Save(ctx context.Context, records []snapshot.Record) error {
	now := time.Now()
	rows := make([]roomSnapshot, 0, len(records))
	codes := make([]string, 0, len(records))
	for _, rec := range records {
		rows = append(rows, roomSnapshot{
			Code:      rec.Code,
			ExpiresAt: rec.ExpiresAt,
			Payload:   datatypes.JSON(rec.Payload),
			UpdatedAt: now,
		})
		codes = append(codes, rec.Code)
	}

	err := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		del := tx.Where("1 = 1")
		if len(codes) > 0 {
			del = tx.Where("code NOT IN ?", codes)
		}
		if err := del.Delete(&roomSnapshot{}).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "code"}},
			UpdateAll: true,
		}).CreateInBatches(rows, 100).Error
	})
	if err != nil {
		return fmt.Errorf("save room_snapshots: %w", err)
	}
	return nil
}

func (p *Postgres) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
