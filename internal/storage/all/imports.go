// Package all wires the built-in storage backends into the storage factory.
//
// It exists purely for side effects: importing it (usually as a blank
// import in a cmd wiring layer) runs the init functions of each backend
// package, which register their factories with the storage registry.
//
// Available kinds after import:
//
//   - "postgres" (lmsetl/internal/storage/postgres)
//   - "sqlite"   (lmsetl/internal/storage/sqlite)
package all

import (
	_ "lmsetl/internal/storage/postgres"
	_ "lmsetl/internal/storage/sqlite"
)
