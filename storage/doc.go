// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package storage defines the graph store contract used by the loader.
//
// A GraphStore persists labeled nodes keyed by a stable id and typed edges
// between them. Every write is an idempotent upsert, so a write that failed
// transiently can be resubmitted as a whole. Backends report lock contention
// by wrapping ErrConflict; IsTransient tells the retrying writer which
// failures are worth another attempt.
//
// Implementations live in subpackages:
//   - storage/badger: embedded store on BadgerDB
//   - storage/neo4j: Neo4j server accessed through Cypher
package storage
