package db

import (
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// CreateScan registers a new scan row. The ID must be unused.
func (d *DatabaseConnection) CreateScan(id, target string, status ScanStatus) (*Scan, error) {
	scan := &Scan{
		ID:        id,
		Target:    target,
		Status:    status,
		StartTime: time.Now(),
	}
	if err := d.db.Create(scan).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrScanExists
		}
		return nil, err
	}
	return scan, nil
}

// UpdateScanStatus moves a scan to the given status. Terminal statuses also
// record the end time in the same update.
func (d *DatabaseConnection) UpdateScanStatus(id string, status ScanStatus) error {
	values := map[string]any{"status": status}
	if status.IsTerminal() {
		values["end_time"] = time.Now()
	}
	result := d.db.Model(&Scan{}).Where("id = ?", id).Updates(values)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrScanNotFound
	}
	log.Debug().Str("scan", id).Str("status", string(status)).Msg("Updated scan status")
	return nil
}

// GetScan fetches a single scan by ID.
func (d *DatabaseConnection) GetScan(id string) (*Scan, error) {
	var scan Scan
	if err := d.db.First(&scan, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrScanNotFound
		}
		return nil, err
	}
	return &scan, nil
}

// ListScans returns the most recently started scans, newest first. A limit
// of zero or less falls back to 50.
func (d *DatabaseConnection) ListScans(limit int) (scans []*Scan, err error) {
	if limit <= 0 {
		limit = 50
	}
	err = d.db.Order("start_time desc").Limit(limit).Find(&scans).Error
	return scans, err
}
