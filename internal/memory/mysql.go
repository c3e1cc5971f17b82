package memory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/justinsane/ClassicRides/internal/config"
)

// scrapbookRow maps one scrapbook key to its serialized collection.
// The payload is replaced wholesale on every upsert, matching the
// persistence contract of the other backends.
type scrapbookRow struct {
	Key       string `gorm:"primaryKey;size:128"`
	Data      string `gorm:"type:longtext"`
	UpdatedAt time.Time
}

func (scrapbookRow) TableName() string { return "scrapbooks" }

// MySQLStore persists the scrapbook in a single MySQL row.
type MySQLStore struct {
	collection
	db  *gorm.DB
	key string
}

func NewMySQLStore(cfg config.MySQLConfig, key string) (*MySQLStore, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		cfg.Username,
		cfg.Password,
		cfg.Host,
		cfg.Port,
		cfg.Database,
	)

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mysql: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := db.AutoMigrate(&scrapbookRow{}); err != nil {
		return nil, fmt.Errorf("failed to migrate scrapbook table: %w", err)
	}

	s := &MySQLStore{db: db, key: key}
	if err := s.load(context.Background()); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *MySQLStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *MySQLStore) load(ctx context.Context) error {
	var row scrapbookRow
	err := s.db.WithContext(ctx).First(&row, "`key` = ?", s.key).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return fmt.Errorf("failed to load scrapbook from mysql: %w", err)
	}
	if err := s.restore([]byte(row.Data)); err != nil {
		return fmt.Errorf("failed to parse scrapbook from mysql: %w", err)
	}
	return nil
}

func (s *MySQLStore) Upsert(ctx context.Context, m Memory) error {
	if err := s.upsert(m); err != nil {
		return err
	}
	data, err := s.snapshot()
	if err != nil {
		return fmt.Errorf("failed to marshal scrapbook: %w", err)
	}
	row := scrapbookRow{Key: s.key, Data: string(data), UpdatedAt: time.Now()}
	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"data", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("failed to store scrapbook in mysql: %w", err)
	}
	return nil
}

func (s *MySQLStore) Get(ctx context.Context, id string) (Memory, error) {
	return s.get(id)
}

func (s *MySQLStore) List(ctx context.Context) ([]Memory, error) {
	return s.list(), nil
}
