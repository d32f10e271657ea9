package db

import (
	"errors"
	"time"

	"gorm.io/datatypes"
)

var (
	// ErrScanExists is returned when creating a scan whose ID is already taken.
	ErrScanExists = errors.New("scan already exists")
	// ErrScanNotFound is returned when a scan ID does not match any scan.
	ErrScanNotFound = errors.New("scan not found")
	// ErrReservedType rejects findings stored under a module prefix instead of
	// a finding type.
	ErrReservedType = errors.New("reserved finding type")

	ErrPostgresDSNNotSet   = errors.New("POSTGRES_DSN environment variable not set")
	ErrUnknownDatabaseType = errors.New("unknown database type")
)

// ScanStatus represents the status of a scan
type ScanStatus string

const (
	ScanStatusPending   ScanStatus = "pending"
	ScanStatusRunning   ScanStatus = "running"
	ScanStatusCompleted ScanStatus = "completed"
	ScanStatusFailed    ScanStatus = "failed"
	// ScanStatusStopped is reserved for user initiated cancellation.
	ScanStatusStopped ScanStatus = "stopped"
)

// IsTerminal reports whether the status marks the end of a scan.
func (s ScanStatus) IsTerminal() bool {
	return s == ScanStatusCompleted || s == ScanStatusFailed || s == ScanStatusStopped
}

// Finding types recognized by downstream consumers.
const (
	FindingTypeSubdomain   = "subdomain"
	FindingTypePort        = "port"
	FindingTypeHTTP        = "http"
	FindingTypeEnrichment  = "enrichment"
	FindingTypeCloudBucket = "cloud_bucket"
	FindingTypeGithub      = "github"
	FindingTypeScreenshot  = "screenshot"
	FindingTypeTechnology  = "technology"
)

// Scan tracks one reconnaissance run against a target.
type Scan struct {
	ID        string     `json:"id" gorm:"primaryKey"`
	Target    string     `json:"target" gorm:"index;not null"`
	Status    ScanStatus `json:"status" gorm:"size:50;not null;default:'pending'"`
	StartTime time.Time  `json:"start_time"`
	EndTime   *time.Time `json:"end_time,omitempty"`
}

func (Scan) TableName() string {
	return "scans"
}

// Finding is a single result row produced by a module. Data holds the payload
// in canonical JSON so identical findings compare byte for byte.
type Finding struct {
	ID        uint           `json:"id" gorm:"primaryKey"`
	ScanID    *string        `json:"scan_id,omitempty" gorm:"index"`
	Target    string         `json:"target" gorm:"index;not null"`
	Module    string         `json:"module" gorm:"index;not null"`
	Source    string         `json:"source"`
	Type      string         `json:"type" gorm:"index;not null"`
	Data      datatypes.JSON `json:"data"`
	Timestamp time.Time      `json:"timestamp"`
}

func (Finding) TableName() string {
	return "findings"
}
