// Package ledger records upload attempt history in SQLite.
//
// The durable upload queue only knows what is still pending; the ledger keeps
// what already happened, so `cocod uploads` can show recent transfers and
// failure patterns after the fact. It is bookkeeping, not coordination: the
// pipeline never blocks on ledger writes and a ledger failure never fails an
// upload.
package ledger
