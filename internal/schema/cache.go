/*
 * Copyright 2025 Google LLC
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *    https://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */
package schema

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

const secondsPerDay = 24 * 60 * 60

// SnapshotSource produces fresh schema snapshots. Extractor implements it;
// tests substitute fakes.
type SnapshotSource interface {
	ExtractAll(ctx context.Context) ([]Snapshot, error)
}

// cacheRecord is the on-disk cache format: a timestamp wrapper around the
// snapshot list.
type cacheRecord struct {
	Timestamp  float64    `json:"timestamp"`
	SchemaInfo []Snapshot `json:"schema_info"`
}

// Cache loads schema snapshots from a file-backed cache, refreshing from the
// live database when the cached record is older than the freshness window.
type Cache struct {
	path          string
	thresholdDays int
	source        SnapshotSource
	logger        *zap.Logger
	now           func() time.Time
}

// NewCache creates a Cache persisting to path. A thresholdDays of 0 makes
// every load re-extract.
func NewCache(path string, thresholdDays int, source SnapshotSource, logger *zap.Logger) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{
		path:          path,
		thresholdDays: thresholdDays,
		source:        source,
		logger:        logger,
		now:           time.Now,
	}
}

// Load returns the cached snapshots when the cache file is fresh, otherwise
// re-extracts from the database, persists the result and returns it.
//
// Two persisted formats are accepted: the current {timestamp, schema_info}
// record and a legacy bare snapshot array. The legacy form carries no
// timestamp and is treated as always fresh. A missing or unreadable cache is
// treated as stale, never as an error.
func (c *Cache) Load(ctx context.Context) ([]Snapshot, error) {
	data, err := os.ReadFile(c.path)
	if err != nil {
		if !os.IsNotExist(err) {
			c.logger.Warn("schema cache unreadable, refreshing", zap.String("path", c.path), zap.Error(err))
		}
		return c.Refresh(ctx)
	}

	var record cacheRecord
	if err := json.Unmarshal(data, &record); err == nil && record.SchemaInfo != nil {
		age := float64(c.now().Unix()) - record.Timestamp
		if age <= float64(c.thresholdDays)*secondsPerDay {
			return record.SchemaInfo, nil
		}
		c.logger.Info("schema cache stale, refreshing",
			zap.Float64("age_seconds", age), zap.Int("threshold_days", c.thresholdDays))
		return c.refreshFrom(ctx, record.Timestamp)
	}

	// Legacy format: a bare list of snapshots with no timestamp wrapper.
	var legacy []Snapshot
	if err := json.Unmarshal(data, &legacy); err == nil {
		return legacy, nil
	}

	c.logger.Warn("schema cache corrupt, refreshing", zap.String("path", c.path))
	return c.Refresh(ctx)
}

// Refresh re-extracts the schema unconditionally and persists it.
func (c *Cache) Refresh(ctx context.Context) ([]Snapshot, error) {
	return c.refreshFrom(ctx, 0)
}

func (c *Cache) refreshFrom(ctx context.Context, previousTimestamp float64) ([]Snapshot, error) {
	snapshots, err := c.source.ExtractAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("schema cache refresh failed: %w", err)
	}

	// Timestamps never move backwards for the same profile/output pair, even
	// if the clock does.
	timestamp := float64(c.now().Unix())
	if timestamp < previousTimestamp {
		timestamp = previousTimestamp
	}

	record := cacheRecord{Timestamp: timestamp, SchemaInfo: snapshots}
	if err := writeFileAtomic(c.path, record); err != nil {
		return nil, fmt.Errorf("persist schema cache: %w", err)
	}
	return snapshots, nil
}

// writeFileAtomic writes v as JSON via a temp file and rename, so concurrent
// readers never observe a partially written cache.
func writeFileAtomic(path string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode cache record: %w", err)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp cache file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp cache file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace cache file: %w", err)
	}
	return nil
}
