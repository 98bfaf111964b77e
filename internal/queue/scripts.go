package queue

import "github.com/redis/go-redis/v9"

// Every script receives the item key prefix as an argument because item
// hashes are addressed by the customId popped inside the script.

// KEYS: item, ready. ARGV: key, max_attempts, now_ms.
var enqueueScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
  return 0
end
redis.call('HSET', KEYS[1], 'attempts', 0, 'max_attempts', ARGV[2], 'enqueued_at', ARGV[3])
redis.call('LPUSH', KEYS[2], ARGV[1])
return 1
`)

// KEYS: ready, delayed, active. ARGV: now_ms, lease_ms, token, item_prefix.
var dequeueScript = redis.NewScript(`
local now = tonumber(ARGV[1])
local due = redis.call('ZRANGEBYSCORE', KEYS[2], '-inf', now)
for _, k in ipairs(due) do
  redis.call('LPUSH', KEYS[1], k)
end
if #due > 0 then
  redis.call('ZREMRANGEBYSCORE', KEYS[2], '-inf', now)
end
while true do
  local key = redis.call('RPOP', KEYS[1])
  if not key then
    return false
  end
  local item = ARGV[4] .. key
  if redis.call('EXISTS', item) == 1 then
    local attempts = redis.call('HINCRBY', item, 'attempts', 1)
    local max = tonumber(redis.call('HGET', item, 'max_attempts'))
    redis.call('HSET', item, 'token', ARGV[3])
    redis.call('ZADD', KEYS[3], now + tonumber(ARGV[2]), key)
    return {key, attempts, max}
  end
end
`)

// KEYS: item, active. ARGV: key, token.
var ackScript = redis.NewScript(`
if redis.call('HGET', KEYS[1], 'token') ~= ARGV[2] then
  return 0
end
redis.call('DEL', KEYS[1])
redis.call('ZREM', KEYS[2], ARGV[1])
return 1
`)

// KEYS: item, active, delayed, exhausted. ARGV: key, token, due_ms, now_ms.
// Returns -1 when the lease is lost, 0 when the item was parked as
// exhausted because its attempts are used up, 1 when redelivery was
// scheduled.
var retryScript = redis.NewScript(`
if redis.call('HGET', KEYS[1], 'token') ~= ARGV[2] then
  return -1
end
local attempts = tonumber(redis.call('HGET', KEYS[1], 'attempts'))
local max = tonumber(redis.call('HGET', KEYS[1], 'max_attempts'))
redis.call('ZREM', KEYS[2], ARGV[1])
redis.call('HDEL', KEYS[1], 'token')
if attempts >= max then
  redis.call('ZADD', KEYS[4], ARGV[4], ARGV[1])
  return 0
end
redis.call('ZADD', KEYS[3], ARGV[3], ARGV[1])
return 1
`)

// KEYS: active, ready, exhausted. ARGV: now_ms, item_prefix.
// Returns {requeued_count, exhausted_key...}. The exhausted keys are every
// key parked in the exhausted set, including ones left by earlier passes.
var reapScript = redis.NewScript(`
local expired = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1])
local requeued = 0
for _, k in ipairs(expired) do
  redis.call('ZREM', KEYS[1], k)
  local item = ARGV[2] .. k
  if redis.call('EXISTS', item) == 1 then
    redis.call('HDEL', item, 'token')
    local attempts = tonumber(redis.call('HGET', item, 'attempts'))
    local max = tonumber(redis.call('HGET', item, 'max_attempts'))
    if attempts >= max then
      redis.call('ZADD', KEYS[3], ARGV[1], k)
    else
      redis.call('RPUSH', KEYS[2], k)
      requeued = requeued + 1
    end
  end
end
local out = {requeued}
for _, k in ipairs(redis.call('ZRANGE', KEYS[3], 0, -1)) do
  table.insert(out, k)
end
return out
`)

// KEYS: item, exhausted. ARGV: key.
var retireScript = redis.NewScript(`
if redis.call('ZREM', KEYS[2], ARGV[1]) == 0 then
  return 0
end
redis.call('DEL', KEYS[1])
return 1
`)
