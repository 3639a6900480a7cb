package model

import (
	"time"

	geom "github.com/peterstace/simplefeatures/geom"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

////////////////////////
// DATABASE STRUCTURES //
////////////////////////

// DatabaseModels is a list of all the structs exported here which represent tables in the database schema
var DatabaseModels = []interface{}{
	&NavsimInfo{},
	&Run{},
	&StatusRecord{},
	&WaypointRecord{},
	&HazardRecord{},
	&WriterPerformance{},
}

////////////////////////
// SYSTEM MODELS
////////////////////////

// NavsimInfo identifies the schema owner. One row is created on first setup.
type NavsimInfo struct {
	gorm.Model
	SchemaVersion uint   `json:"schemaVersion"`
	Description   string `json:"description" gorm:"size:255"`
}

func (*NavsimInfo) TableName() string {
	return "navsim_infos"
}

// WriterPerformance is written after each batch flush of the database writer.
type WriterPerformance struct {
	ID                  uint              `json:"id" gorm:"primarykey;autoIncrement;"`
	Time                time.Time         `json:"time" gorm:"type:timestamptz;index:idx_writerperf_time"`
	RunID               uint              `json:"runId" gorm:"index:idx_writerperf_run_id"`
	WriteQueueLengths   WriteQueueLengths `json:"writeQueueLengths" gorm:"embedded;embeddedPrefix:writequeue_"`
	LastWriteDurationMs float32           `json:"lastWriteDurationMs"`
}

func (*WriterPerformance) TableName() string {
	return "writer_performances"
}

// WriteQueueLengths is the model for the write queue lengths
type WriteQueueLengths struct {
	Statuses  uint32 `json:"statuses"`
	Waypoints uint32 `json:"waypoints"`
	Hazards   uint32 `json:"hazards"`
}

////////////////////////
// RUN DATA
////////////////////////

// Run is one simulation session from the first sample to DONE or abort.
type Run struct {
	ID               uint           `json:"id" gorm:"primarykey;autoIncrement;"`
	CreatedAt        time.Time      `json:"createdAt"`
	UpdatedAt        time.Time      `json:"updatedAt"`
	RunUUID          string         `json:"runUuid" gorm:"size:36;uniqueIndex:idx_run_uuid"`
	Name             string         `json:"name" gorm:"size:128"`
	SensorType       string         `json:"sensorType" gorm:"size:32"`
	StartTime        time.Time      `json:"startTime" gorm:"type:timestamptz;"`
	EndTime          *time.Time     `json:"endTime" gorm:"type:timestamptz;default:NULL"`
	TotalWaypoints   int            `json:"totalWaypoints"`
	StartPosition    geom.Point     `json:"startPosition"`
	StartHeading     float64        `json:"startHeading"`
	StartVelocity    float64        `json:"startVelocity"`
	Config           datatypes.JSON `json:"config"`
	Outcome          string         `json:"outcome" gorm:"size:16"`
	Ticks            uint           `json:"ticks"`
	HitsCount        int            `json:"hitsCount"`
	WaypointsSpawned int            `json:"waypointsSpawned"`
	FinalPosition    geom.Point     `json:"finalPosition"`
	FinalHeading     float64        `json:"finalHeading"`
	FinalVelocity    float64        `json:"finalVelocity"`
	RemainingSeconds int            `json:"remainingSeconds"`
}

func (*Run) TableName() string {
	return "runs"
}

// StatusRecord is one status line emitted by the control loop.
type StatusRecord struct {
	ID                uint       `json:"id" gorm:"primarykey;autoIncrement;"`
	Time              time.Time  `json:"time" gorm:"type:timestamptz;"`
	RunID             uint       `json:"runId" gorm:"index:idx_status_run_id"`
	Tick              uint       `json:"tick" gorm:"index:idx_status_tick"`
	Position          geom.Point `json:"position"`
	Altitude          float64    `json:"altitude"`
	HeadingDeg        float64    `json:"headingDeg"`
	Velocity          float64    `json:"velocity"`
	NearestWaypointID int        `json:"nearestWaypointId"`
	NearestPosition   geom.Point `json:"nearestPosition"`
	RemainingSeconds  int        `json:"remainingSeconds"`
	Hazard            bool       `json:"hazard" gorm:"default:false"`
}

func (*StatusRecord) TableName() string {
	return "status_records"
}

// WaypointRecord is a spawn or hit of a waypoint.
type WaypointRecord struct {
	ID         uint       `json:"id" gorm:"primarykey;autoIncrement;"`
	Time       time.Time  `json:"time" gorm:"type:timestamptz;"`
	RunID      uint       `json:"runId" gorm:"index:idx_waypoint_run_id"`
	Tick       uint       `json:"tick"`
	Kind       string     `json:"kind" gorm:"size:8"`
	WaypointID int        `json:"waypointId"`
	Position   geom.Point `json:"position"`
	HitRadius  float64    `json:"hitRadius"`
	NearRadius float64    `json:"nearRadius"`
	HitsCount  int        `json:"hitsCount"`
}

func (*WaypointRecord) TableName() string {
	return "waypoint_records"
}

// HazardRecord marks the hazard condition switching on or off.
type HazardRecord struct {
	ID       uint       `json:"id" gorm:"primarykey;autoIncrement;"`
	Time     time.Time  `json:"time" gorm:"type:timestamptz;"`
	RunID    uint       `json:"runId" gorm:"index:idx_hazard_run_id"`
	Tick     uint       `json:"tick"`
	Active   bool       `json:"active"`
	Reason   string     `json:"reason" gorm:"size:16"`
	Position geom.Point `json:"position"`
	Velocity float64    `json:"velocity"`
}

func (*HazardRecord) TableName() string {
	return "hazard_records"
}
