// Package cli provides the interactive userkit admin console.
//
// It wires configuration, the PostgreSQL host store and the account
// services, then runs a REPL in which each line is parsed as a command:
//
//   - login / logout / whoami
//   - get, create, delete
//   - meta get|set|add|del
//   - list, search, recent, sanitize, setrole
//   - roles, options
//   - version, help, exit
//
// whoami needs a session. Every other command except login, logout, help
// and version needs an administrator session. On an empty store the first create is allowed anonymously and
// produces an administrator.
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
package cli
