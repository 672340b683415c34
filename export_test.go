package datacache

// Test doubles shared with the external test package.

func NewStubRedisClient() RedisClient { return newStubRedisClient() }

func NewStubMemcachedClient() MemcachedClient { return newStubMemcached() }

func NewStubDynamoClient() DynamoAPI { return newDynStub() }

func NewStubNATSKeyValue(bucket string) NATSKeyValue { return newStubNATSKeyValue(bucket) }

func NewMemObjectClient() ObjectClient { return newMemObjectClient() }
