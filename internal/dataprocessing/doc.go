// Package dataprocessing implements the operation unification pipeline: it
// turns raw multi-leg structured-product rows into one enriched, exportable
// row per logical trade.
//
// # Architecture
//
// The pipeline is a fixed sequence of small components:
//
//  1. Table readers: CSV (semicolon/comma-decimal) and XLSX into
//     header-mapped tables of trimmed string cells
//  2. Validator: required-column checks producing SchemaError
//  3. Aggregator: groups legs by trade key with named reduction strategies
//  4. Joiner: left-joins advisor and market-dashboard reference data
//  5. Calculator: derives classification and the variant's metrics
//  6. ResultBuilder: projects rows into the exportable column layout
//
// # Usage
//
//	processor := dataprocessing.NewProcessor(logger)
//	table, stats, err := processor.Process(ctx, dataprocessing.Inputs{
//	    Advisors:   advisors,
//	    Operations: operations,
//	})
//
// # Null handling
//
// Empty cells are null, not zero. Unparsable numeric or date text coerces
// to null silently, arithmetic over null propagates null, and null join
// keys never match. Only missing required columns abort a run.
//
// # Testing
//
// Each reduction strategy, the coercion rules and every pipeline stage have
// table-driven tests; use those when adding functionality.
package dataprocessing
