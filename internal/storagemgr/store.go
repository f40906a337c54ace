// Package storagemgr implements the Storage Manager: it persists every
// delivered record to a relational store with bounded reconnect retry.
package storagemgr

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ekiciact/SensorNet-Manager/internal/record"
)

// SensorReading is the persisted schema: autoincrement primary key,
// sensor_id, value, ts — unchanged from the original sensor_data table.
type SensorReading struct {
	ID       uint   `gorm:"primaryKey;autoIncrement"`
	SensorID uint16 `gorm:"column:sensor_id;index"`
	Value    float64 `gorm:"column:sensor_value"`
	TS       int64  `gorm:"column:timestamp"`
}

// TableName gives the model the unpluralized default name "sensor_data";
// GormStore's methods override it with GormStore.tableName via Table().
func (SensorReading) TableName() string { return "sensor_data" }

// Store is the relational sink contract the Storage Manager depends on.
// It is implemented by *GormStore; tests substitute a fake.
type Store interface {
	Connect() error
	EnsureSchema() error
	Truncate() error
	Insert(r record.Reading) error
	Disconnect() error
}

// GormStore is a Store backed by gorm.io/gorm, dialect selected from the
// configured DSN: a "postgres://" URL opens Postgres (via jackc/pgx/v5);
// anything else opens an embedded, pure-Go SQLite file, matching the
// original's "CREATE TABLE IF NOT EXISTS ... INTEGER PRIMARY KEY
// AUTOINCREMENT" schema.
type GormStore struct {
	dsn       string
	tableName string
	db        *gorm.DB
}

// NewGormStore creates a GormStore for dsn. Connect must be called before
// any other method.
func NewGormStore(dsn, tableName string) *GormStore {
	return &GormStore{dsn: dsn, tableName: tableName}
}

// Connect opens the underlying database connection.
func (s *GormStore) Connect() error {
	var dialector gorm.Dialector
	if strings.HasPrefix(s.dsn, "postgres://") || strings.HasPrefix(s.dsn, "postgresql://") {
		dialector = postgres.Open(s.dsn)
	} else {
		dialector = sqlite.Open(s.dsn)
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return fmt.Errorf("storagemgr: connect: %w", err)
	}

	s.db = db
	return nil
}

// EnsureSchema creates the readings table if it does not already exist.
func (s *GormStore) EnsureSchema() error {
	if s.db == nil {
		return errNotConnected
	}
	if err := s.db.Table(s.tableName).AutoMigrate(&SensorReading{}); err != nil {
		return fmt.Errorf("storagemgr: ensure schema: %w", err)
	}
	return nil
}

// Truncate deletes every row from the readings table.
func (s *GormStore) Truncate() error {
	if s.db == nil {
		return errNotConnected
	}
	if err := s.db.Table(s.tableName).Where("1 = 1").Delete(&SensorReading{}).Error; err != nil {
		return fmt.Errorf("storagemgr: truncate: %w", err)
	}
	return nil
}

// Insert persists one reading.
func (s *GormStore) Insert(r record.Reading) error {
	if s.db == nil {
		return errNotConnected
	}
	row := SensorReading{SensorID: r.SensorID, Value: r.Value, TS: r.TS.Unix()}
	if err := s.db.Table(s.tableName).Create(&row).Error; err != nil {
		return fmt.Errorf("storagemgr: insert: %w", err)
	}
	return nil
}

// QueryFilter narrows Query's result set. All fields are optional; the
// zero value matches every reading for the requested sensor.
type QueryFilter struct {
	// After, if non-zero, excludes readings at or before this time.
	After time.Time
	// MinValue, if HasMinValue is set, excludes readings below it.
	MinValue    float64
	HasMinValue bool
	// Limit caps the number of rows returned; 0 means unbounded.
	Limit int
}

// Query returns readings for sensorID matching filter, newest first. This
// is a read-only convenience for the admin surface; it is never on the
// Storage Manager's write path.
func (s *GormStore) Query(sensorID uint16, filter QueryFilter) ([]SensorReading, error) {
	if s.db == nil {
		return nil, errNotConnected
	}

	q := s.db.Table(s.tableName).Where("sensor_id = ?", sensorID).Order("timestamp DESC")
	if !filter.After.IsZero() {
		q = q.Where("timestamp > ?", filter.After.Unix())
	}
	if filter.HasMinValue {
		q = q.Where("sensor_value >= ?", filter.MinValue)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}

	var rows []SensorReading
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("storagemgr: query: %w", err)
	}
	return rows, nil
}

// Disconnect closes the underlying connection.
func (s *GormStore) Disconnect() error {
	if s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("storagemgr: disconnect: %w", err)
	}
	if err := sqlDB.Close(); err != nil {
		return fmt.Errorf("storagemgr: disconnect: %w", err)
	}
	return nil
}

var errNotConnected = errors.New("storagemgr: not connected")

// backoffSleep is a package variable so tests can stub out real sleeping.
var backoffSleep = time.Sleep
