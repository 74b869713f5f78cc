// Package core provides the data-table engine behind the jewelry admin.
//
// The package holds all domain logic independent of any UI or transport
// layer. It is used by the web handlers, the joyeriactl CLI, and tests
// without modification.
//
// # Architecture
//
// The package is organized around several key concepts:
//
//   - Table Configs: Registered via the registry, each table declares its
//     columns, permitted actions, and form fields.
//   - Engine: Pure search, sort, pagination, rendering, and export over
//     in-memory record sets.
//   - Service: The main entry point (view, export, create, update, delete)
//     combining the engine with a [Source] of records.
//   - Audit: Exports and mutations are recorded with a severity level.
//
// # Table Registry
//
// Tables are registered at init time using [Register]:
//
//	core.Register(TableConfig{
//	    Key:   "orders",
//	    Title: "Pedidos",
//	    Columns: []ColumnDescriptor{
//	        {Key: "orderCode", Label: "Código", Priority: PriorityEssential},
//	        {Key: "status", Label: "Estado", Type: TypeBadge},
//	    },
//	})
//
// # View Pipeline
//
// Every table view is derived in a fixed order:
//
//  1. Records are filtered by the search query (all terms must match)
//  2. The filtered copy is stably sorted by the active sort state
//  3. The requested page is clamped into range and sliced
//
// The source slice is never mutated and the same inputs always produce the
// same output.
//
// # Export
//
// [Engine.Export] writes CSV, Excel (xlsx or BOM-prefixed CSV), or a
// printable report. Cell values are flattened with [Engine.FlattenValue],
// which uses the same object labels as on-screen rendering.
//
// # Error Handling
//
// Technical errors are mapped to Spanish user messages using [MapError].
// Each category has a code for support reference:
//
//   - API001-API007: Upstream API errors (session, permissions, availability)
//   - EXP001-EXP003: Export errors
//   - TBL001-TBL004: Table and record errors
//   - REQ001-REQ002: Cancelled or timed out requests
package core
