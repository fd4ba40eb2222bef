// Command cocod runs the audio logger daemon and its control CLI.
//
// `cocod run` starts the daemon in the foreground; the remaining subcommands
// talk to a running daemon over its Unix socket.
package main
