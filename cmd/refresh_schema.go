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
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/GoogleCloudPlatform/db-query-copilot/internal/config"
	"github.com/GoogleCloudPlatform/db-query-copilot/internal/schema"
	"github.com/GoogleCloudPlatform/db-query-copilot/internal/schemarag"
)

var refreshSchemaCmd = &cobra.Command{
	Use:     "refresh-schema",
	Short:   "Re-extract the database schema and rebuild the schema graph",
	Long:    `Forces a full schema extraction from the live database, replaces the on-disk schema cache, and rebuilds the schema graph index used for retrieval.`,
	Example: `./db_query_copilot refresh-schema --dialect postgres --username user --password pass --database shop`,
	RunE:    runRefreshSchema,
}

func runRefreshSchema(cmd *cobra.Command, args []string) error {
	db, err := setupDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	cfg := config.GetConfig()
	extractor := schema.NewExtractor(db, cfg.Schema, logger)
	cache := schema.NewCache(cfg.Schema.CacheFile, cfg.Schema.RefreshThresholdDays, extractor, logger)

	snapshots, err := cache.Refresh(cmd.Context())
	if err != nil {
		return fmt.Errorf("schema refresh failed: %w", err)
	}

	triples := schemarag.BuildTriples(snapshots)
	builder := schemarag.NewIndexBuilder(cfg.Schema.GraphFile, cfg.Schema.GraphMetaFile, logger)
	idx, err := builder.Initialize(triples, true)
	if err != nil {
		return fmt.Errorf("schema graph rebuild failed: %w", err)
	}

	tableCount := 0
	for _, snap := range snapshots {
		tableCount += len(snap.SchemaInfo)
	}
	logger.Info("schema refreshed",
		zap.Int("tables", tableCount),
		zap.Int("graph_nodes", len(idx.Nodes())),
		zap.Int("graph_edges", idx.NumEdges()))
	fmt.Printf("Schema cache written to: %s (%d tables, %d graph nodes)\n",
		cfg.Schema.CacheFile, tableCount, len(idx.Nodes()))
	return nil
}
