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
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/GoogleCloudPlatform/db-query-copilot/internal/config"
	"github.com/GoogleCloudPlatform/db-query-copilot/internal/database"
	_ "github.com/GoogleCloudPlatform/db-query-copilot/internal/database/mysql"
	_ "github.com/GoogleCloudPlatform/db-query-copilot/internal/database/postgres"
	_ "github.com/GoogleCloudPlatform/db-query-copilot/internal/database/sqlserver"
	"github.com/GoogleCloudPlatform/db-query-copilot/internal/generator"
	"github.com/GoogleCloudPlatform/db-query-copilot/internal/llm"
	"github.com/GoogleCloudPlatform/db-query-copilot/internal/schema"
	"github.com/GoogleCloudPlatform/db-query-copilot/internal/schemarag"
)

var (
	logger  *zap.Logger
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "db_query_copilot",
	Short: "A tool that turns natural-language questions into validated SQL",
	Long: `db_query_copilot asks a generative model to write SQL for a natural-language
question, validates every candidate statement against the live database, and
asks the model to repair anything that fails. Schema context is cached on disk
and narrowed to the relevant tables via a schema graph.`,
	PersistentPreRunE: initFlagsAndConfig,
}

// initFlagsAndConfig builds the application config from flags, environment
// and defaults, and constructs the shared logger.
func initFlagsAndConfig(cmd *cobra.Command, args []string) error {
	v := viper.GetViper()
	v.SetEnvPrefix("DBQC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := config.Load(v)
	if cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = os.Getenv("GEMINI_API_KEY")
	}
	config.SetConfig(cfg)

	var err error
	if verbose {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	return nil
}

func validateDialect(dialect string) error {
	supportedDialects := []string{"postgres", "cloudsqlpostgres", "mysql", "cloudsqlmysql", "sqlserver"}
	for _, supported := range supportedDialects {
		if dialect == supported {
			return nil
		}
	}
	return fmt.Errorf("unsupported dialect: %s (only %s are supported)", dialect, strings.Join(supportedDialects, ", "))
}

func setupDatabase() (*database.DB, error) {
	cfg := config.GetConfig()
	if cfg == nil {
		return nil, fmt.Errorf("config is not initialized")
	}
	if err := validateDialect(cfg.Database.Dialect); err != nil {
		return nil, err
	}
	db, err := database.New(cfg.Database, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// setupPipeline wires the schema cache, the graph-backed retriever and the
// generation service for a connected database.
func setupPipeline(cmd *cobra.Command, db *database.DB) (*generator.Service, *schema.Cache, llm.Client, error) {
	cfg := config.GetConfig()

	client, err := llm.NewGeminiClient(cmd.Context(), cfg.LLM)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to create model client: %w", err)
	}

	extractor := schema.NewExtractor(db, cfg.Schema, logger)
	cache := schema.NewCache(cfg.Schema.CacheFile, cfg.Schema.RefreshThresholdDays, extractor, logger)

	var filter generator.SchemaFilter
	if !cfg.Pipeline.DisableRAG {
		builder := schemarag.NewIndexBuilder(cfg.Schema.GraphFile, cfg.Schema.GraphMetaFile, logger)
		filter = schemarag.NewRetriever(cache, builder, client, logger)
	}

	service := generator.NewService(cache, filter, client, db, cfg.Pipeline, logger)
	return service, cache, client, nil
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	defer func() {
		if logger != nil {
			logger.Sync()
		}
	}()
	return rootCmd.Execute()
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.BoolVarP(&verbose, "verbose", "v", false, "Enable verbose (development) logging")

	// Database connection flags
	flags.String("dialect", "postgres", fmt.Sprintf("Database dialect (%s)", strings.Join([]string{"postgres", "mysql", "sqlserver", "cloudsqlpostgres", "cloudsqlmysql"}, ", ")))
	flags.String("host", "localhost", "Database host")
	flags.Int("port", 5432, "Database port")
	flags.String("username", "", "Database username")
	flags.String("password", "", "Database password")
	flags.String("database", "", "Database name")
	flags.String("schema-name", "public", "Database schema to introspect")
	flags.String("cloudsql-instance-connection-name", "", "Cloud SQL instance connection name (for Cloud SQL dialects)")
	flags.Bool("cloudsql-use-private-ip", false, "Use private IP for Cloud SQL connection")

	// Model flags
	flags.String("gemini-api-key", "", "Gemini API key (can also be set via GEMINI_API_KEY environment variable)")
	flags.String("model", "", "Gemini model name")

	// Pipeline flags
	flags.Int("max-fix-attempts", 3, "Maximum repair attempts per failing SQL block")
	flags.Int("timeout-sec", 120, "Overall time budget for one generation request, in seconds")
	flags.Bool("disable-schema-rag", false, "Use the full schema instead of the graph-narrowed subset")

	v := viper.GetViper()
	v.BindPFlag("database.dialect", flags.Lookup("dialect"))
	v.BindPFlag("database.host", flags.Lookup("host"))
	v.BindPFlag("database.port", flags.Lookup("port"))
	v.BindPFlag("database.user", flags.Lookup("username"))
	v.BindPFlag("database.password", flags.Lookup("password"))
	v.BindPFlag("database.dbname", flags.Lookup("database"))
	v.BindPFlag("database.schema_name", flags.Lookup("schema-name"))
	v.BindPFlag("database.cloudsql_instance_connection_name", flags.Lookup("cloudsql-instance-connection-name"))
	v.BindPFlag("database.cloudsql_use_private_ip", flags.Lookup("cloudsql-use-private-ip"))
	v.BindPFlag("llm.api_key", flags.Lookup("gemini-api-key"))
	v.BindPFlag("llm.model", flags.Lookup("model"))
	v.BindPFlag("pipeline.max_fix_attempts", flags.Lookup("max-fix-attempts"))
	v.BindPFlag("pipeline.timeout_sec", flags.Lookup("timeout-sec"))
	v.BindPFlag("pipeline.disable_rag", flags.Lookup("disable-schema-rag"))

	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(refreshSchemaCmd)
	rootCmd.AddCommand(dispatchCmd)
}
