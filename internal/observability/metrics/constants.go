package metrics

// Operation names shared by recorders and their callers.
const (
	OpSimulate      = "simulate"
	OpSweep         = "sweep"
	OpLattice       = "lattice"
	OpCacheGet      = "cache_get"
	OpDbInsert      = "db_insert"
	OpDbQuery       = "db_query"
	OpDbDelete      = "db_delete"
	OpMQTTPublish   = "mqtt_publish"
	OpMQTTConnect   = "mqtt_connect"
	StatusSuccess   = "success"
	StatusError     = "error"
	StatusHit       = "hit"
	StatusMiss      = "miss"
	StatusCancelled = "cancelled"
)

// Histogram bucket layout parameters.
const (
	BucketStart100us = 0.0001
	BucketStart1ms   = 0.001
	BucketFactor2    = 2.0
	BucketCount12    = 12
	BucketCount15    = 15
)
