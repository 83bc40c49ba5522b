// Package cli provides the interactive keydozer command-line client.
//
// It wires configuration, the local SQLite vault, the selected remote
// backend and the vault service, then runs a REPL exposing every vault
// operation. Passwords are read from the terminal without echo.
//
// Typical flow: register, unlock, add entries, reconcile and push to the
// remote store, share entries with another owner, lock.
//
// The REPL is started via App.Run(ctx), which blocks until the user exits
// or the process receives SIGINT/SIGTERM.
package cli
