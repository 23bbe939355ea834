package documents

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/mediagateway/pkg/db/models"
)

// SQLStore keeps documents in the documents table created by the goose
// migrations. Set is a single upsert.
type SQLStore struct {
	conn *gorm.DB
	now  func() time.Time
}

func NewSQLStore(conn *gorm.DB) *SQLStore {
	return &SQLStore{conn: conn, now: time.Now}
}

func (s *SQLStore) Get(ctx context.Context, key string) (string, error) {
	var doc models.Document
	err := s.conn.WithContext(ctx).Where("key = ?", key).Take(&doc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("select document %s: %w", key, err)
	}
	return doc.Body, nil
}

func (s *SQLStore) Set(ctx context.Context, key, body string) error {
	doc := models.Document{Key: key, Body: body, UpdatedAt: s.now().UTC()}
	err := s.conn.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"body", "updated_at"}),
	}).Create(&doc).Error
	if err != nil {
		return fmt.Errorf("upsert document %s: %w", key, err)
	}
	return nil
}

func (s *SQLStore) Ping(ctx context.Context) error {
	sqlDB, err := s.conn.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
