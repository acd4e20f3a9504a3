// Package database handles database connections for the billing store.
//
// It provides a wrapper around GORM that configures MySQL connections for
// production use and sqlite connections for tests and single-node setups.
// The billing entries, sync queue, sync history and conflict tables all live
// behind the connection returned here.
//
// # Usage
//
//	db, err := database.Connect(cfg.Database)
//	if err != nil {
//	    log.Fatal("Database connection failed", err)
//	}
package database
