package datacache

import "github.com/goforj/datacache/cachecore"

// Driver names a storage backend.
type Driver = cachecore.Driver

// Store is the record-level backend contract shared with cachecore.
type Store = cachecore.Store

// Record is one stored value plus the time it was fetched.
type Record = cachecore.Record

const (
	DriverNull      = cachecore.DriverNull
	DriverFile      = cachecore.DriverFile
	DriverMemory    = cachecore.DriverMemory
	DriverMemcached = cachecore.DriverMemcached
	DriverDynamo    = cachecore.DriverDynamo
	DriverSQL       = cachecore.DriverSQL
	DriverRedis     = cachecore.DriverRedis
	DriverNATS      = cachecore.DriverNATS
	DriverMinio     = cachecore.DriverMinio
)
