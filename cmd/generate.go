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
	"go.uber.org/zap"

	"github.com/GoogleCloudPlatform/db-query-copilot/internal/config"
	"github.com/GoogleCloudPlatform/db-query-copilot/internal/generator"
)

var generateCmd = &cobra.Command{
	Use:     "generate [question]",
	Short:   "Generate validated SQL for a natural-language question",
	Long:    `Asks the model to write SQL for the question, validates every statement against the database in a rolled-back transaction, repairs failures, and prints the annotated result as JSON.`,
	Example: `./db_query_copilot generate "how many orders were placed last month" --dialect postgres --username user --password pass --database shop`,
	Args:    cobra.MinimumNArgs(1),
	RunE:    runGenerate,
}

func runGenerate(cmd *cobra.Command, args []string) error {
	db, err := setupDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	service, _, client, err := setupPipeline(cmd, db)
	if err != nil {
		return err
	}
	defer client.Close()

	cfg := config.GetConfig()
	question := strings.Join(args, " ")
	logger.Info("starting sql generation", zap.String("question", question))

	req := &generator.Request{
		Messages: []generator.RequestMessage{{Role: "user", Content: question}},
	}
	result, err := service.GenerateWithTimeout(cmd.Context(), req, time.Duration(cfg.Pipeline.TimeoutSec)*time.Second)
	if err != nil {
		return fmt.Errorf("sql generation failed: %w", err)
	}

	output, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	fmt.Println(string(output))
	return nil
}
