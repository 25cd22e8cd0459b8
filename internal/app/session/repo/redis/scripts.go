package redis

import "github.com/redis/go-redis/v9"

// KEYS[1] session hash, KEYS[2] subject index.
// ARGV: id, subject, rt_hash, generation, created_at, expires_at, expire_at_ms, ttl_ms.
// The index lives at least as long as its newest session.
var createScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
	return 0
end
redis.call('HSET', KEYS[1],
	'subject', ARGV[2],
	'rt_hash', ARGV[3],
	'generation', ARGV[4],
	'created_at', ARGV[5],
	'expires_at', ARGV[6],
	'revoked', '0')
redis.call('PEXPIREAT', KEYS[1], ARGV[7])
redis.call('SADD', KEYS[2], ARGV[1])
local pttl = redis.call('PTTL', KEYS[2])
if pttl < 0 or pttl < tonumber(ARGV[8]) then
	redis.call('PEXPIRE', KEYS[2], ARGV[8])
end
return 1
`)

// KEYS[1] session hash. ARGV: expected generation, new generation, new rt_hash.
// Returns -1 if missing, 0 on conflict, 1 on success.
var rotateScript = redis.NewScript(`
local v = redis.call('HMGET', KEYS[1], 'generation', 'revoked')
if not v[1] then
	return -1
end
if v[2] == '1' or v[1] ~= ARGV[1] then
	return 0
end
redis.call('HSET', KEYS[1], 'generation', ARGV[2], 'rt_hash', ARGV[3])
return 1
`)

// KEYS[1] session hash. ARGV: revoked_at, retention_ms.
// A revoked session is kept for at most retention_ms, or until expiry if sooner.
var revokeScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
	return 0
end
if redis.call('HGET', KEYS[1], 'revoked') == '1' then
	return 0
end
redis.call('HSET', KEYS[1], 'revoked', '1', 'revoked_at', ARGV[1])
local keep = tonumber(ARGV[2])
if keep > 0 then
	local pttl = redis.call('PTTL', KEYS[1])
	if pttl < 0 or pttl > keep then
		redis.call('PEXPIRE', KEYS[1], keep)
	end
end
return 1
`)
