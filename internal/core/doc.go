// Package core implements the tenant order import.
//
// An upload runs through five stages over one [ImportContext]:
//
//  1. [HashStage] digests the raw bytes and rejects content the tenant has
//     already imported (unless that session was rolled back)
//  2. [ParseStage] selects a [RowParser] by file extension (.csv, .xlsx)
//  3. [ValidateStage] runs the header, type and business validator layers
//  4. [TransformStage] groups rows into orders and resolves customers,
//     categories and products against the tenant's master data
//  5. [PersistStage] adds everything plus the [ImportSession] and commits
//
// [Pipeline] stops at the first stage that aborts or records an error. A
// successful run dispatches one Imported [ImportEvent] to every [Observer];
// observer failures are logged and never change the import result.
//
// Storage is reached only through [Store] and [UnitOfWork]. Implementations
// live in internal/store/memory and internal/store/postgres.
//
// # Usage
//
//	svc := core.NewService(store, cfg)
//	res, err := svc.Import(ctx, core.ImportRequest{
//	    File:     file,
//	    FileName: "orders.csv",
//	    TenantID: tenant,
//	})
//
// res.Errors holds row-level problems; err is reserved for infrastructure
// faults and [ErrTooManyUploads].
package core
