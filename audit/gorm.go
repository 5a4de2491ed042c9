// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// eventModel is the worker_event row.
type eventModel struct {
	ID        uint64    `gorm:"primaryKey"`
	Date      time.Time `gorm:"index;not null"`
	RequestID string    `gorm:"column:request_id;index;not null"`
	Flow      string    `gorm:"index;not null;check:chk_worker_event_flow,flow IN ('request','response')"`
	Space     string    `gorm:"index;not null"`
	Data      string    `gorm:"type:jsonb"`
}

func (eventModel) TableName() string {
	return "worker_event"
}

func eventModelFromEvent(e Event) eventModel {
	return eventModel{
		Date:      e.Date.UTC(),
		RequestID: e.RequestID,
		Flow:      string(e.Flow),
		Space:     e.Space,
		Data:      string(rawOrNull(e.Data)),
	}
}

func (m eventModel) toEvent() Event {
	e := Event{
		Date:      m.Date,
		RequestID: m.RequestID,
		Flow:      Flow(m.Flow),
		Space:     m.Space,
	}
	if m.Data != "" && m.Data != "null" {
		e.Data = json.RawMessage(m.Data)
	}
	return e
}

// GormStore persists events through gorm.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// OpenPostgres connects to dsn and verifies the connection.
func OpenPostgres(dsn string) (*GormStore, error) {
	if dsn == "" {
		return nil, errors.New("postgres dsn is required")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open gorm postgres: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("resolve postgres sql db handle: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &GormStore{db: db}, nil
}

func (s *GormStore) Migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(&eventModel{})
}

func (s *GormStore) Create(ctx context.Context, e Event) error {
	if !e.Flow.Valid() {
		return ErrInvalidFlow
	}
	row := eventModelFromEvent(e)
	return s.db.WithContext(ctx).Create(&row).Error
}

func (s *GormStore) Find(ctx context.Context, q Query) ([]Event, error) {
	tx := s.db.WithContext(ctx).Model(&eventModel{})
	if q.RequestID != "" {
		tx = tx.Where("request_id = ?", q.RequestID)
	}
	if q.Flow != "" {
		tx = tx.Where("flow = ?", string(q.Flow))
	}
	if q.Space != "" {
		tx = tx.Where("space = ?", q.Space)
	}
	if !q.Since.IsZero() {
		tx = tx.Where("date >= ?", q.Since.UTC())
	}
	if q.Limit > 0 {
		tx = tx.Limit(q.Limit)
	}

	var rows []eventModel
	if err := tx.Order("date ASC").Order("id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}

	items := make([]Event, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEvent())
	}
	return items, nil
}

func (s *GormStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
