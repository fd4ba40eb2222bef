// Package logs reads the daemon log file for the CLI.
//
// Tail serves both one-shot reads (the newest lines) and incremental reads
// from a byte offset, which the IPC layer uses to implement follow mode
// without holding the file open across requests.
package logs
