package gormstorage

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/tiltpilot/navsim/internal/model"
	"github.com/tiltpilot/navsim/internal/model/convert"
	"github.com/tiltpilot/navsim/pkg/core"
)

// RunRecord is a stored run read back into core types.
type RunRecord struct {
	Run       core.Run
	Summary   *core.RunSummary
	Status    []core.StatusLine
	Waypoints []core.WaypointEvent
}

// ListRuns returns every stored run, newest first, without status lines.
func ListRuns(db *gorm.DB) ([]RunRecord, error) {
	var rows []model.Run
	if err := db.Order("start_time desc").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}

	out := make([]RunRecord, 0, len(rows))
	for _, r := range rows {
		run, summary := convert.RunToCore(r)
		out = append(out, RunRecord{Run: run, Summary: summary})
	}
	return out, nil
}

// LoadRun reads one run with its status lines and waypoint events ordered by tick.
// An empty runUUID selects the most recent run.
func LoadRun(db *gorm.DB, runUUID string) (*RunRecord, error) {
	var row model.Run
	q := db.Order("start_time desc")
	if runUUID != "" {
		q = q.Where("run_uuid = ?", runUUID)
	}
	if err := q.First(&row).Error; err != nil {
		return nil, fmt.Errorf("failed to find run %q: %w", runUUID, err)
	}

	var statuses []model.StatusRecord
	if err := db.Where("run_id = ?", row.ID).Order("tick asc").Find(&statuses).Error; err != nil {
		return nil, fmt.Errorf("failed to load status records: %w", err)
	}

	var waypoints []model.WaypointRecord
	if err := db.Where("run_id = ?", row.ID).Order("tick asc, id asc").Find(&waypoints).Error; err != nil {
		return nil, fmt.Errorf("failed to load waypoint records: %w", err)
	}

	run, summary := convert.RunToCore(row)
	rec := &RunRecord{
		Run:       run,
		Summary:   summary,
		Status:    make([]core.StatusLine, len(statuses)),
		Waypoints: make([]core.WaypointEvent, len(waypoints)),
	}
	for i, s := range statuses {
		rec.Status[i] = convert.StatusRecordToCore(s, row.RunUUID)
	}
	for i, w := range waypoints {
		rec.Waypoints[i] = convert.WaypointRecordToCore(w, row.RunUUID)
	}
	return rec, nil
}
