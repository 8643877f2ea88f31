package database

import (
	"time"

	"inkwell/internal/observability"

	"gorm.io/gorm"
)

const startKey = "inkwell:query_start"

// MetricsPlugin records the latency of every GORM operation in the
// database query latency histogram, labelled by operation and table.
type MetricsPlugin struct{}

func (p *MetricsPlugin) Name() string { return "inkwell:metrics" }

func (p *MetricsPlugin) Initialize(db *gorm.DB) error {
	cb := db.Callback()
	steps := []struct {
		op     string
		before func(string, func(*gorm.DB)) error
		after  func(string, func(*gorm.DB)) error
	}{
		{"create", cb.Create().Before("gorm:create").Register, cb.Create().After("gorm:create").Register},
		{"query", cb.Query().Before("gorm:query").Register, cb.Query().After("gorm:query").Register},
		{"update", cb.Update().Before("gorm:update").Register, cb.Update().After("gorm:update").Register},
		{"delete", cb.Delete().Before("gorm:delete").Register, cb.Delete().After("gorm:delete").Register},
		{"row", cb.Row().Before("gorm:row").Register, cb.Row().After("gorm:row").Register},
		{"raw", cb.Raw().Before("gorm:raw").Register, cb.Raw().After("gorm:raw").Register},
	}

	for _, s := range steps {
		op := s.op
		if err := s.before("inkwell:before_"+op, startTimer); err != nil {
			return err
		}
		if err := s.after("inkwell:after_"+op, func(tx *gorm.DB) { observe(tx, op) }); err != nil {
			return err
		}
	}
	return nil
}

func startTimer(tx *gorm.DB) {
	tx.InstanceSet(startKey, time.Now())
}

func observe(tx *gorm.DB, op string) {
	v, ok := tx.InstanceGet(startKey)
	if !ok {
		return
	}
	start, ok := v.(time.Time)
	if !ok {
		return
	}
	table := tx.Statement.Table
	if table == "" {
		table = "unknown"
	}
	observability.ObserveQuery(op, table, start)
}
