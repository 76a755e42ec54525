package internal

import (
	"time"

	"github.com/lychee-technology/rowstore"
)

// deleteMode selects which rows the find family sees.
type deleteMode int

const (
	modeNormal deleteMode = iota
	modeOnlyDeleted
	modeWithDeleted
)

func (m deleteMode) String() string {
	switch m {
	case modeOnlyDeleted:
		return "only_deleted"
	case modeWithDeleted:
		return "with_deleted"
	default:
		return "normal"
	}
}

type softDeletePolicy struct {
	cfg    rowstore.SoftDeleteConfig
	column string
}

func newSoftDeletePolicy(cfg rowstore.SoftDeleteConfig, table string) softDeletePolicy {
	col := cfg.Field
	if table != "" && col != "" {
		col = table + "." + col
	}
	return softDeletePolicy{cfg: cfg, column: col}
}

func (p softDeletePolicy) enabled() bool {
	return p.cfg.Enabled && p.cfg.Field != ""
}

// filter returns the condition the find family adds in mode.
func (p softDeletePolicy) filter(mode deleteMode) (rowstore.Condition, bool) {
	if !p.enabled() {
		return rowstore.Condition{}, false
	}
	switch mode {
	case modeOnlyDeleted:
		return p.deletedCondition(), true
	case modeWithDeleted:
		return rowstore.Condition{}, false
	default:
		if p.cfg.NotDeletedValue != nil {
			return rowstore.Eq(p.column, p.cfg.NotDeletedValue), true
		}
		return rowstore.IsNull(p.column), true
	}
}

// deletedCondition matches rows marked as deleted.
func (p softDeletePolicy) deletedCondition() rowstore.Condition {
	if p.cfg.DeletedValue != nil {
		return rowstore.Eq(p.column, p.cfg.DeletedValue)
	}
	return rowstore.NotNull(p.column)
}

// mark returns the assignments that soft delete a row.
func (p softDeletePolicy) mark(now time.Time, cfg rowstore.ModelConfig) rowstore.Record {
	set := rowstore.Record{}
	if p.cfg.DeletedValue != nil {
		set[p.cfg.Field] = p.cfg.DeletedValue
	} else {
		set[p.cfg.Field] = formatTime(now, dateFormatOrDefault(cfg.DateFormat))
	}
	if cfg.UseTimestamps && cfg.UpdatedField != "" {
		set[cfg.UpdatedField] = formatTime(now, dateFormatOrDefault(cfg.DateFormat))
	}
	return set
}

// restore returns the assignment that clears the deleted marker, or nil when
// soft deletes are off.
func (p softDeletePolicy) restore() rowstore.Record {
	if !p.enabled() {
		return nil
	}
	return rowstore.Record{p.cfg.Field: p.cfg.NotDeletedValue}
}

func dateFormatOrDefault(f rowstore.DateFormat) rowstore.DateFormat {
	if f == "" {
		return rowstore.DateFormatDatetime
	}
	return f
}
