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
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/GoogleCloudPlatform/db-query-copilot/internal/config"
	"github.com/GoogleCloudPlatform/db-query-copilot/internal/llm"
	"github.com/GoogleCloudPlatform/db-query-copilot/internal/mcp"
)

var contextPayload string

var dispatchCmd = &cobra.Command{
	Use:   "dispatch [instruction]",
	Short: "Route an instruction to a registered tool",
	Long: `Routes the instruction to a tool by command syntax ("/sql_generate how many orders"),
by a structured context payload (--context '{"tool": "schema_info", "input": {}}'),
or by letting the model choose a tool from the registered descriptors.`,
	Example: `./db_query_copilot dispatch "/sql_generate how many orders were placed last month"`,
	Args:    cobra.MinimumNArgs(1),
	RunE:    runDispatch,
}

func runDispatch(cmd *cobra.Command, args []string) error {
	db, err := setupDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	service, cache, client, err := setupPipeline(cmd, db)
	if err != nil {
		return err
	}
	defer client.Close()

	cfg := config.GetConfig()
	registry := mcp.NewRegistry()
	timeout := time.Duration(cfg.Pipeline.TimeoutSec) * time.Second
	if err := registry.Register(mcp.NewSQLGenerateTool(service, timeout, logger)); err != nil {
		return err
	}
	if err := registry.Register(mcp.NewSchemaInfoTool(cache)); err != nil {
		return err
	}

	var payload map[string]any
	if contextPayload != "" {
		if err := json.Unmarshal([]byte(contextPayload), &payload); err != nil {
			return fmt.Errorf("invalid context payload: %w", err)
		}
	}

	instruction := strings.Join(args, " ")
	history := []llm.Message{{Role: "user", Content: instruction}}

	dispatcher := mcp.NewDispatcher(registry, client)
	result, err := dispatcher.Dispatch(cmd.Context(), instruction, payload, history)
	if err != nil {
		return fmt.Errorf("dispatch failed: %w", err)
	}
	if result == nil {
		fmt.Println("No tool matched the instruction.")
		return nil
	}

	output, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	fmt.Println(string(output))
	return nil
}

func init() {
	dispatchCmd.Flags().StringVar(&contextPayload, "context", "", `Structured dispatch payload, e.g. '{"tool": "schema_info", "input": {}}'`)
}
