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
package generator

import "fmt"

// ErrInvalidRequest indicates the inbound request failed shape validation.
// Never retried.
type ErrInvalidRequest struct {
	Details []string
}

func (e *ErrInvalidRequest) Error() string {
	return fmt.Sprintf("invalid request: %v", e.Details)
}

// ErrModelInvocation indicates the model call itself failed. Fatal for the
// current request; any retry policy belongs to the caller.
type ErrModelInvocation struct {
	Err error
}

func (e *ErrModelInvocation) Error() string {
	return fmt.Sprintf("model invocation failed: %v", e.Err)
}

func (e *ErrModelInvocation) Unwrap() error {
	return e.Err
}

// ErrQueryExecution indicates a SQL statement failed against the database.
// Recoverable per block through the repair loop.
type ErrQueryExecution struct {
	SQL string
	Err error
}

func (e *ErrQueryExecution) Error() string {
	return fmt.Sprintf("query execution failed: %v", e.Err)
}

func (e *ErrQueryExecution) Unwrap() error {
	return e.Err
}

// ErrTimeout indicates the overall pipeline deadline was exceeded.
type ErrTimeout struct {
	Operation string
}

func (e *ErrTimeout) Error() string {
	return fmt.Sprintf("operation timed out: %s", e.Operation)
}

// ErrCancelled indicates the caller cancelled the pipeline.
type ErrCancelled struct {
	Operation string
}

func (e *ErrCancelled) Error() string {
	return fmt.Sprintf("operation cancelled: %s", e.Operation)
}
