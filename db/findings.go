package db

import (
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// FindingFilter is used when listing findings. A scan ID takes precedence
// over the target. Module matches a full path ("portscan/scanner") exactly
// and a bare category ("portscan") as a prefix.
type FindingFilter struct {
	Target string
	Module string
	Type   string
	ScanID string
}

// StoreFinding persists one finding row. The payload is stored in canonical
// JSON. Module category names are not finding types; storing under the
// reserved "portscan" type returns ErrReservedType.
func (d *DatabaseConnection) StoreFinding(scanID, target, module, source, ftype string, payload Payload) (*Finding, error) {
	if ftype == "portscan" {
		return nil, ErrReservedType
	}
	data, err := canonicalJSON(payload)
	if err != nil {
		return nil, err
	}
	finding := &Finding{
		Target:    target,
		Module:    module,
		Source:    source,
		Type:      ftype,
		Data:      data,
		Timestamp: time.Now(),
	}
	if scanID != "" {
		finding.ScanID = &scanID
	}
	if err := d.db.Create(finding).Error; err != nil {
		return nil, err
	}
	log.Debug().Str("module", module).Str("type", ftype).Int("entries", PayloadLen(payload)).Msg("Stored finding")
	return finding, nil
}

// GetFindings lists findings matching the filter in insertion order.
func (d *DatabaseConnection) GetFindings(filter FindingFilter) (findings []*Finding, err error) {
	query := d.db.Model(&Finding{})
	if filter.ScanID != "" {
		query = query.Where("scan_id = ?", filter.ScanID)
	} else if filter.Target != "" {
		query = query.Where("target = ?", filter.Target)
	}
	if filter.Module != "" {
		if strings.Contains(filter.Module, "/") {
			query = query.Where("module = ?", filter.Module)
		} else {
			query = query.Where("module LIKE ?", filter.Module+"/%")
		}
	}
	if filter.Type != "" {
		query = query.Where("type = ?", filter.Type)
	}
	err = query.Order("id asc").Find(&findings).Error
	return findings, err
}

// GetUniqueSubdomains returns the sorted set of hostnames discovered for a
// target across all subdomain sources and scans. Only names strictly below
// the target are returned, never the target itself or lookalike domains.
func (d *DatabaseConnection) GetUniqueSubdomains(target string) ([]string, error) {
	findings, err := d.GetFindings(FindingFilter{Target: target, Module: "subdomain"})
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{})
	for _, finding := range findings {
		for _, entry := range PayloadItems(finding.Data) {
			name := PayloadString(entry, "subdomain")
			if name == "" || !strings.HasSuffix(name, "."+target) {
				continue
			}
			seen[name] = struct{}{}
		}
	}
	subdomains := make([]string, 0, len(seen))
	for name := range seen {
		subdomains = append(subdomains, name)
	}
	sort.Strings(subdomains)
	return subdomains, nil
}

// GetUniqueFindings aggregates payload entries of one type across all
// sources, deduplicated by the given key fields. With no key fields the
// whole entry is the key. First seen wins; insertion order is preserved.
func (d *DatabaseConnection) GetUniqueFindings(target, ftype string, keyFields []string) ([]map[string]any, error) {
	findings, err := d.GetFindings(FindingFilter{Target: target})
	if err != nil {
		return nil, err
	}
	var unique []map[string]any
	seen := make(map[string]struct{})
	for _, finding := range findings {
		if finding.Type != ftype {
			continue
		}
		for _, entry := range PayloadItems(finding.Data) {
			key, err := entryKey(entry, keyFields)
			if err != nil {
				continue
			}
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			unique = append(unique, entry)
		}
	}
	return unique, nil
}

func entryKey(entry map[string]any, keyFields []string) (string, error) {
	if len(keyFields) > 0 {
		values := make([]any, len(keyFields))
		for i, field := range keyFields {
			values[i] = entry[field]
		}
		key, err := json.Marshal(values)
		return string(key), err
	}
	// maps marshal with sorted keys, giving a canonical form
	key, err := json.Marshal(entry)
	return string(key), err
}

// CompactFindings removes rows whose (type, data) pair duplicates an earlier
// row for the target, optionally restricted to one type. Payloads are stored
// canonically, so byte equality is semantic equality. Returns the number of
// rows deleted; running it again is a no-op.
func (d *DatabaseConnection) CompactFindings(target, ftype string) (int64, error) {
	query := d.db.Model(&Finding{}).Where("target = ?", target)
	if ftype != "" {
		query = query.Where("type = ?", ftype)
	}
	var findings []*Finding
	if err := query.Select("id", "type", "data").Order("id asc").Find(&findings).Error; err != nil {
		return 0, err
	}

	seen := make(map[string]struct{})
	var toDelete []uint
	for _, finding := range findings {
		key := finding.Type + "\x00" + string(finding.Data)
		if _, dup := seen[key]; dup {
			toDelete = append(toDelete, finding.ID)
			continue
		}
		seen[key] = struct{}{}
	}
	if len(toDelete) == 0 {
		return 0, nil
	}
	result := d.db.Delete(&Finding{}, toDelete)
	if result.Error != nil {
		return 0, result.Error
	}
	log.Debug().Str("target", target).Int64("deleted", result.RowsAffected).Msg("Compacted findings")
	return result.RowsAffected, nil
}

// ClearHistory deletes all findings and scans.
func (d *DatabaseConnection) ClearHistory() error {
	if err := d.db.Exec("DELETE FROM findings").Error; err != nil {
		return err
	}
	if err := d.db.Exec("DELETE FROM scans").Error; err != nil {
		return err
	}
	log.Info().Msg("Cleared scan history")
	return nil
}
