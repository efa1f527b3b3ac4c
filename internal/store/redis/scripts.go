package redis

import "github.com/redis/go-redis/v9"

// reclaimLua moves expired leases back to the head of the pending list.
// KEYS[1]=pending KEYS[2]=leases, ARGV[1]=now ms, ARGV[2]=job key prefix.
const reclaimLua = `
local expired = redis.call('ZRANGEBYSCORE', KEYS[2], '-inf', ARGV[1])
for i = #expired, 1, -1 do
  local id = expired[i]
  redis.call('ZREM', KEYS[2], id)
  redis.call('HSET', ARGV[2] .. id, 'state', 'pending')
  redis.call('HDEL', ARGV[2] .. id, 'lease_expires_at')
  redis.call('LPUSH', KEYS[1], id)
end
`

// KEYS[1]=pending KEYS[2]=leases KEYS[3]=delayed
// ARGV[1]=now ms ARGV[2]=job key prefix ARGV[3]=lease ms
var claimScript = redis.NewScript(`
local due = redis.call('ZRANGEBYSCORE', KEYS[3], '-inf', ARGV[1])
for _, id in ipairs(due) do
  redis.call('ZREM', KEYS[3], id)
  redis.call('RPUSH', KEYS[1], id)
end
` + reclaimLua + `
local now = tonumber(ARGV[1])
while true do
  local id = redis.call('LPOP', KEYS[1])
  if not id then
    return false
  end
  local key = ARGV[2] .. id
  local st = redis.call('HGET', key, 'state')
  if st == 'pending' or st == 'failed-retryable' then
    local lease = string.format('%d', now + tonumber(ARGV[3]))
    redis.call('HINCRBY', key, 'attempt', 1)
    redis.call('HSET', key, 'state', 'in-flight', 'lease_expires_at', lease)
    redis.call('ZADD', KEYS[2], lease, id)
    return redis.call('HGETALL', key)
  end
end
`)

// KEYS[1]=pending KEYS[2]=leases KEYS[3]=signal
// ARGV[1]=now ms ARGV[2]=job key prefix
var recoverScript = redis.NewScript(reclaimLua + `
if #expired > 0 then
  redis.call('RPUSH', KEYS[3], '1')
end
return #expired
`)
