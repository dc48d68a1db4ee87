// Package core provides the business logic for bulk farmer onboarding.
//
// This package holds all domain logic independent of any UI or transport
// layer. It is used by the web handlers, the farmerctl CLI, and tests
// without modification.
//
// # Pipeline
//
// An upload passes through four stages:
//
//  1. Ingestion ([ReadWorkbook]) decodes an .xlsx or .csv file into the raw
//     rows of the "Farmers" and "Farms" sheets.
//  2. Mapping ([MapWorkbook]) turns rows into [StagedFarmer] and [StagedFarm]
//     records using the positional layouts in schema.go. Farms join to
//     farmers on the spreadsheet row number.
//  3. Validation ([Validator]) annotates each record with ordered
//     [FieldError] values.
//  4. Staging ([ImportSession]) holds the records for review, edit and
//     delete, and gates [ImportSession.Commit] on at least one valid farmer.
//
// # Sessions
//
// [Service] keeps live sessions in memory, bounds concurrent parses with a
// [ParseLimiter], and expires idle sessions from a janitor goroutine
// ([Service.StartJanitor]).
//
// # Commit
//
// Commit resolves district and organization names against the
// [ReferenceData] directory and hands each eligible farmer to a [Committer]
// separately. Results are partial-success: see [CommitResult].
//
// # Error Handling
//
// Technical errors are mapped to user-friendly messages using [MapError].
// Each error category has a unique code for support reference:
//
//   - DB001-DB006: Database errors (duplicate phone, constraints, connections)
//   - VAL001-VAL003: Directory resolution errors
//   - FILE001-FILE006: File errors (size, type, missing sheet)
//   - SES001-SES010: Session errors (not ready, busy, expired)
package core
