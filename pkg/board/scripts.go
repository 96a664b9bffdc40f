package board

import "github.com/redis/go-redis/v9"

// Server-side primitives. Each script runs atomically on the Redis server, so the
// membership check and the write can never interleave with another client.
//
// KEYS[1] is the column record, KEYS[2] the column's card list.
// A return value of -1 means the column record does not exist.

// addCardScript appends ARGV[1] unless an identical element is already present.
// Returns 1 when added, 0 when already present.
var addCardScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
	return -1
end
local items = redis.call('LRANGE', KEYS[2], 0, -1)
for _, v in ipairs(items) do
	if v == ARGV[1] then
		return 0
	end
end
redis.call('RPUSH', KEYS[2], ARGV[1])
return 1
`)

// removeCardScript removes every element identical to ARGV[1].
// Returns the number of removed elements.
var removeCardScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
	return -1
end
return redis.call('LREM', KEYS[2], 0, ARGV[1])
`)

// replaceCardsScript overwrites the list with ARGV in order.
// Returns the new list length.
var replaceCardsScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
	return -1
end
redis.call('DEL', KEYS[2])
for i = 1, #ARGV do
	redis.call('RPUSH', KEYS[2], ARGV[i])
end
return #ARGV
`)
