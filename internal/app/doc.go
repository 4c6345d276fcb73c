// Package app composes the Domu services into a running application.
//
//	internal/app/
//	├── application.go   # Stores, Dependencies, Application wiring and lifecycle
//	├── domain/          # Domain models (pure data structures)
//	├── storage/         # Store interfaces, memory/ and postgres/ implementations
//	├── services/        # Business rules, one package per domain
//	├── httpapi/         # HTTP handlers and routing
//	├── system/          # Lifecycle manager
//	├── metrics/         # Prometheus collectors
//	└── runtime/         # Process wiring: config, database, HTTP server
//
// Adding a domain:
//
//  1. Create domain models in internal/app/domain/<name>/
//  2. Add the storage interface to internal/app/storage/interfaces.go
//  3. Implement it in internal/app/storage/postgres/ and memory/
//  4. Create the service in internal/app/services/<name>/
//  5. Wire it in internal/app/application.go
//  6. Add handlers in internal/app/httpapi/
package app
