package main

import (
	"github.com/rs/zerolog/log"
	"github.com/timewinder-dev/looptrace/cas"
)

// openStore returns the trace store named by path, or an in-memory store when
// path is empty. The returned close func is always safe to call.
func openStore(path string, cacheSize int) (cas.CAS, func() error, error) {
	if path == "" {
		return cas.NewMemoryCAS(), func() error { return nil }, nil
	}
	db, err := cas.OpenSQLite(path)
	if err != nil {
		return nil, nil, err
	}
	log.Debug().Str("path", path).Int("cache", cacheSize).Msg("opened trace store")
	return cas.NewLRUCache(db, cacheSize), db.Close, nil
}

func storePath(flag string) string {
	if flag != "" {
		return flag
	}
	return cfg.Store.Path
}
