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
package config

import (
	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	Database DatabaseConfig
	LLM      LLMConfig
	Schema   SchemaConfig
	Pipeline PipelineConfig
}

// DatabaseConfig holds database connection configuration.
type DatabaseConfig struct {
	Dialect                        string
	Host                           string
	Port                           int
	User                           string
	Password                       string
	DBName                         string
	SchemaName                     string
	SSLMode                        string
	CloudSQLInstanceConnectionName string
	UsePrivateIP                   bool
}

// LLMConfig holds configuration for the generative model client.
type LLMConfig struct {
	APIKey string
	Model  string
}

// SchemaConfig controls schema extraction, caching and the graph index.
type SchemaConfig struct {
	CacheFile            string
	GraphFile            string
	GraphMetaFile        string
	RefreshThresholdDays int
	CategoricalDetection bool
	SampleLimit          int
	ProfileName          string
	OutputName           string
}

// PipelineConfig controls the SQL generation pipeline.
type PipelineConfig struct {
	MaxFixAttempts int
	TimeoutSec     int
	DisableRAG     bool
}

var globalConfig *Config

// Load builds a Config from viper, applying defaults for anything unset.
// Flags are bound to viper keys in cmd/root.go; environment variables use
// the DBQC_ prefix (e.g. DBQC_DATABASE_HOST).
func Load(v *viper.Viper) *Config {
	v.SetDefault("database.dialect", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.schema_name", "public")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("llm.model", "gemini-1.5-flash-latest")
	v.SetDefault("schema.cache_file", "schema_cache.json")
	v.SetDefault("schema.graph_file", "schema_graph.json")
	v.SetDefault("schema.graph_meta_file", "schema_graph_meta.json")
	v.SetDefault("schema.refresh_threshold_days", 7)
	v.SetDefault("schema.categorical_detection", true)
	v.SetDefault("schema.sample_limit", 100)
	v.SetDefault("schema.profile_name", "default")
	v.SetDefault("schema.output_name", "dev")
	v.SetDefault("pipeline.max_fix_attempts", 3)
	v.SetDefault("pipeline.timeout_sec", 120)

	return &Config{
		Database: DatabaseConfig{
			Dialect:                        v.GetString("database.dialect"),
			Host:                           v.GetString("database.host"),
			Port:                           v.GetInt("database.port"),
			User:                           v.GetString("database.user"),
			Password:                       v.GetString("database.password"),
			DBName:                         v.GetString("database.dbname"),
			SchemaName:                     v.GetString("database.schema_name"),
			SSLMode:                        v.GetString("database.sslmode"),
			CloudSQLInstanceConnectionName: v.GetString("database.cloudsql_instance_connection_name"),
			UsePrivateIP:                   v.GetBool("database.cloudsql_use_private_ip"),
		},
		LLM: LLMConfig{
			APIKey: v.GetString("llm.api_key"),
			Model:  v.GetString("llm.model"),
		},
		Schema: SchemaConfig{
			CacheFile:            v.GetString("schema.cache_file"),
			GraphFile:            v.GetString("schema.graph_file"),
			GraphMetaFile:        v.GetString("schema.graph_meta_file"),
			RefreshThresholdDays: v.GetInt("schema.refresh_threshold_days"),
			CategoricalDetection: v.GetBool("schema.categorical_detection"),
			SampleLimit:          v.GetInt("schema.sample_limit"),
			ProfileName:          v.GetString("schema.profile_name"),
			OutputName:           v.GetString("schema.output_name"),
		},
		Pipeline: PipelineConfig{
			MaxFixAttempts: v.GetInt("pipeline.max_fix_attempts"),
			TimeoutSec:     v.GetInt("pipeline.timeout_sec"),
			DisableRAG:     v.GetBool("pipeline.disable_rag"),
		},
	}
}

// SetConfig sets the global configuration.
func SetConfig(cfg *Config) {
	globalConfig = cfg
}

// GetConfig returns the global configuration, or nil if not initialized.
func GetConfig() *Config {
	return globalConfig
}
