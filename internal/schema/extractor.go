package schema

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/GoogleCloudPlatform/db-query-copilot/internal/config"
	"github.com/GoogleCloudPlatform/db-query-copilot/internal/database"
)

// maxCategoricalValues is the distinct-value ceiling under which a sampled
// column is considered categorical.
const maxCategoricalValues = 10

// Extractor builds schema snapshots from a live database connection.
type Extractor struct {
	conn   database.Connector
	cfg    config.SchemaConfig
	logger *zap.Logger
	now    func() time.Time
}

// NewExtractor creates an Extractor for the given connector.
func NewExtractor(conn database.Connector, cfg config.SchemaConfig, logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{
		conn:   conn,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

// ExtractAll extracts the full schema for the configured profile. When
// categorical detection is enabled, each table is sampled and columns with at
// most 10 distinct observed values are flagged with their value set. Sampling
// is best-effort: a failed sample leaves the table's columns non-categorical.
func (e *Extractor) ExtractAll(ctx context.Context) ([]Snapshot, error) {
	dbCfg := e.conn.GetConfig()
	tables, err := e.conn.FetchSchema(ctx, dbCfg.SchemaName)
	if err != nil {
		return nil, fmt.Errorf("schema extraction failed: %w", err)
	}

	schemaInfo := make([]TableInfo, 0, len(tables))
	for _, table := range tables {
		info := TableInfo{
			TableName:  table.TableName,
			SchemaName: table.SchemaName,
			Columns:    make([]ColumnInfo, 0, len(table.Columns)),
		}
		for _, col := range table.Columns {
			info.Columns = append(info.Columns, ColumnInfo{
				ColumnName: col.Name,
				DataType:   col.DataType,
			})
		}

		if e.cfg.CategoricalDetection {
			e.detectCategorical(ctx, &info)
		}
		schemaInfo = append(schemaInfo, info)
	}

	snapshot := Snapshot{
		ProfileName: e.cfg.ProfileName,
		OutputName:  e.cfg.OutputName,
		DBType:      dbCfg.Dialect,
		Timestamp:   float64(e.now().Unix()),
		SchemaInfo:  schemaInfo,
	}
	return []Snapshot{snapshot}, nil
}

// detectCategorical samples the table and marks columns whose distinct
// observed values stay at or below the categorical ceiling. The sample is
// bounded, so the flag reflects observed values only.
func (e *Extractor) detectCategorical(ctx context.Context, table *TableInfo) {
	rows, err := e.conn.SampleTable(ctx, table.TableName, e.cfg.SampleLimit)
	if err != nil {
		e.logger.Warn("table sampling failed, skipping categorical detection",
			zap.String("table", table.TableName), zap.Error(err))
		return
	}
	if len(rows) == 0 {
		return
	}

	for i := range table.Columns {
		distinct := make(map[string]struct{})
		for _, row := range rows {
			value, ok := row[table.Columns[i].ColumnName]
			if !ok || value == nil {
				continue
			}
			distinct[fmt.Sprintf("%v", value)] = struct{}{}
			if len(distinct) > maxCategoricalValues {
				break
			}
		}
		if len(distinct) == 0 || len(distinct) > maxCategoricalValues {
			continue
		}

		values := make([]string, 0, len(distinct))
		for v := range distinct {
			values = append(values, v)
		}
		sort.Strings(values)
		table.Columns[i].Categorical = true
		table.Columns[i].Values = values
	}
}
