/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package models

import "context"

type callerContextKey struct{}

// WithCaller attaches the authenticated principal to a context. The HTTP
// middleware and the CLI set it; the authorizer reads it.
func WithCaller(ctx context.Context, principal string) context.Context {
	return context.WithValue(ctx, callerContextKey{}, principal)
}

// CallerFromContext returns the authenticated principal, or "" if absent.
func CallerFromContext(ctx context.Context) string {
	principal, _ := ctx.Value(callerContextKey{}).(string)
	return principal
}
