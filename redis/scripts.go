package redis

import goredis "github.com/redis/go-redis/v9"

// Every check-then-act sequence the engine's interfaces require (dedup
// check-and-set, admission-check-and-pop, lease-check-and-extend, stall
// scan-and-reclaim) is expressed as a single Lua script, so that it is
// atomic from the point of view of every process sharing the KV store,
// not just the one holding the connection. Single-command writes (Pause,
// Resume, ConfigureQueue) are issued directly, and Register writes a
// template through a MULTI/EXEC pipeline.
//
// Job-specific keys (the per-job hash, a dedup entry) are built inside
// the scripts themselves by string concatenation from the queue name
// and job id passed as ARGV, rather than declared in KEYS; the store
// targets a single Redis instance or a replicated primary, never a
// sharded cluster, so this does not break key-slot routing.

var pushScript = goredis.NewScript(`
local id_key = KEYS[1]
local wait_key = KEYS[2]
local delayed_key = KEYS[3]
local queue = ARGV[1]
local kind = ARGV[2]
local payload_b64 = ARGV[3]
local priority_class = ARGV[4]
local attempts_max = ARGV[5]
local backoff_strategy = ARGV[6]
local backoff_base_ms = ARGV[7]
local backoff_max_ms = ARGV[8]
local timeout_ms = ARGV[9]
local delay_ms = tonumber(ARGV[10])
local now_ms = tonumber(ARGV[11])
local retain_completion = ARGV[12]
local retain_failure = ARGV[13]
local dedup_key = ARGV[14]
local repeat_id = ARGV[15]

if dedup_key ~= '' then
	local dk = 'jq:' .. queue .. ':dedup:' .. dedup_key
	local existing = redis.call('GET', dk)
	if existing then
		return {0, existing}
	end
end

local id = redis.call('INCR', id_key)
local job_key = 'jq:' .. queue .. ':job:' .. id
local available_at = now_ms + delay_ms
local state = 'waiting'
if delay_ms > 0 then
	state = 'delayed'
end

redis.call('HSET', job_key,
	'queue', queue, 'kind', kind, 'payload_b64', payload_b64,
	'priority_class', priority_class, 'attempts_made', '0', 'attempts_max', attempts_max,
	'backoff_strategy', backoff_strategy, 'backoff_base_ms', backoff_base_ms, 'backoff_max_ms', backoff_max_ms,
	'timeout_ms', timeout_ms, 'state', state,
	'available_at_ms', tostring(available_at), 'lease_until_ms', '',
	'created_at_ms', tostring(now_ms), 'first_attempted_at_ms', '', 'finished_at_ms', '',
	'result_b64', '', 'last_error', '', 'stall_count', '0',
	'dedup_key', dedup_key, 'repeat_id', repeat_id,
	'ret_completion', retain_completion, 'ret_failure', retain_failure)

if delay_ms > 0 then
	redis.call('ZADD', delayed_key, available_at, id)
else
	local score = tonumber(priority_class) * 1e13 + now_ms
	redis.call('ZADD', wait_key, score, id)
end

if dedup_key ~= '' then
	local dk = 'jq:' .. queue .. ':dedup:' .. dedup_key
	redis.call('SET', dk, id)
end

return {1, id}
`)

var promoteScript = goredis.NewScript(`
local delayed_key = KEYS[1]
local wait_key = KEYS[2]
local queue = ARGV[1]
local now_ms = ARGV[2]
local limit = ARGV[3]

local ids = redis.call('ZRANGEBYSCORE', delayed_key, '-inf', now_ms, 'LIMIT', 0, limit)
local promoted = {}
for _, id in ipairs(ids) do
	local job_key = 'jq:' .. queue .. ':job:' .. id
	local pc = redis.call('HGET', job_key, 'priority_class')
	local created = redis.call('HGET', job_key, 'created_at_ms')
	if pc and created then
		redis.call('ZREM', delayed_key, id)
		local score = tonumber(pc) * 1e13 + tonumber(created)
		redis.call('ZADD', wait_key, score, id)
		redis.call('HSET', job_key, 'state', 'waiting')
		table.insert(promoted, id)
	end
end
return promoted
`)

// popScript returns {0} when there is nothing to pop (queue empty or
// paused), {2, retry_after_ms} when a rate limit is exhausted, or
// {1, id, fields...} (the job's full HGETALL) on success.
var popScript = goredis.NewScript(`
local wait_key = KEYS[1]
local active_key = KEYS[2]
local rl_tokens_key = KEYS[3]
local rl_reset_key = KEYS[4]
local paused_key = KEYS[5]
local rl_config_key = KEYS[6]
local queue = ARGV[1]
local lease_ms = tonumber(ARGV[2])
local now_ms = tonumber(ARGV[3])

if redis.call('EXISTS', paused_key) == 1 then
	return {0}
end

local rl_max = tonumber(redis.call('HGET', rl_config_key, 'max') or '0')
local rl_window_ms = tonumber(redis.call('HGET', rl_config_key, 'window_ms') or '0')

if rl_max > 0 then
	local reset = tonumber(redis.call('GET', rl_reset_key) or '0')
	local tokens
	if now_ms >= reset then
		tokens = rl_max
		reset = now_ms + rl_window_ms
		redis.call('SET', rl_reset_key, reset)
		redis.call('SET', rl_tokens_key, tokens)
	else
		tokens = tonumber(redis.call('GET', rl_tokens_key) or '0')
	end
	if tokens <= 0 then
		return {2, reset - now_ms}
	end
	redis.call('DECR', rl_tokens_key)
end

local ids = redis.call('ZRANGE', wait_key, 0, 0)
if #ids == 0 then
	if rl_max > 0 then
		redis.call('INCR', rl_tokens_key)
	end
	return {0}
end
local id = ids[1]
redis.call('ZREM', wait_key, id)

local job_key = 'jq:' .. queue .. ':job:' .. id
local lease_until = now_ms + lease_ms
redis.call('ZADD', active_key, lease_until, id)
redis.call('HSET', job_key, 'state', 'active', 'lease_until_ms', lease_until)
redis.call('HINCRBY', job_key, 'attempts_made', 1)
local fa = redis.call('HGET', job_key, 'first_attempted_at_ms')
if fa == false or fa == '' then
	redis.call('HSET', job_key, 'first_attempted_at_ms', now_ms)
end

local fields = redis.call('HGETALL', job_key)
local ret = {1, id}
for _, f in ipairs(fields) do
	table.insert(ret, f)
end
return ret
`)

var extendLeaseScript = goredis.NewScript(`
local job_key = KEYS[1]
local active_key = KEYS[2]
local id = ARGV[1]
local lease_ms = tonumber(ARGV[2])
local now_ms = tonumber(ARGV[3])

if redis.call('HGET', job_key, 'state') ~= 'active' then
	return 0
end
local score = redis.call('ZSCORE', active_key, id)
if not score then
	return 0
end
local lease_until = now_ms + lease_ms
redis.call('ZADD', active_key, lease_until, id)
redis.call('HSET', job_key, 'lease_until_ms', lease_until)
return 1
`)

var completeScript = goredis.NewScript(`
local job_key = KEYS[1]
local active_key = KEYS[2]
local completed_key = KEYS[3]
local id = ARGV[1]
local result_b64 = ARGV[2]
local now_ms = ARGV[3]

if redis.call('HGET', job_key, 'state') ~= 'active' then
	return 0
end
redis.call('ZREM', active_key, id)
redis.call('HSET', job_key, 'state', 'completed', 'result_b64', result_b64, 'finished_at_ms', now_ms, 'lease_until_ms', '')
redis.call('ZADD', completed_key, now_ms, id)
return 1
`)

var failScript = goredis.NewScript(`
local job_key = KEYS[1]
local active_key = KEYS[2]
local delayed_key = KEYS[3]
local failed_key = KEYS[4]
local id = ARGV[1]
local now_ms = tonumber(ARGV[2])
local backoff_ms = tonumber(ARGV[3])
local permanent = ARGV[4]
local last_error = ARGV[5]

if redis.call('HGET', job_key, 'state') ~= 'active' then
	return 0
end
redis.call('ZREM', active_key, id)
-- attempts_made was already incremented by popScript when this attempt
-- was promoted to active; this script only records the outcome.
local attempts_made = tonumber(redis.call('HGET', job_key, 'attempts_made'))
local attempts_max = tonumber(redis.call('HGET', job_key, 'attempts_max'))
redis.call('HSET', job_key, 'last_error', last_error)

if permanent == '1' or attempts_made >= attempts_max then
	redis.call('HSET', job_key, 'state', 'failed', 'finished_at_ms', now_ms, 'lease_until_ms', '')
	redis.call('ZADD', failed_key, now_ms, id)
	return 2
end

local available_at = now_ms + backoff_ms
redis.call('HSET', job_key, 'state', 'delayed', 'available_at_ms', available_at, 'lease_until_ms', '')
redis.call('ZADD', delayed_key, available_at, id)
return 1
`)

var reclaimStalledScript = goredis.NewScript(`
local active_key = KEYS[1]
local wait_key = KEYS[2]
local failed_key = KEYS[3]
local queue = ARGV[1]
local now_ms = ARGV[2]
local max_stalls = tonumber(ARGV[3])
local limit = ARGV[4]

local expired = redis.call('ZRANGEBYSCORE', active_key, '-inf', now_ms, 'LIMIT', 0, limit)
local result = {}
for _, id in ipairs(expired) do
	local job_key = 'jq:' .. queue .. ':job:' .. id
	redis.call('ZREM', active_key, id)
	local stall_count = tonumber(redis.call('HGET', job_key, 'stall_count') or '0') + 1
	redis.call('HSET', job_key, 'stall_count', stall_count, 'lease_until_ms', '')
	if stall_count > max_stalls then
		redis.call('HSET', job_key, 'state', 'failed', 'finished_at_ms', now_ms, 'last_error', 'stalled past max reclaims')
		redis.call('ZADD', failed_key, now_ms, id)
	else
		local pc = tonumber(redis.call('HGET', job_key, 'priority_class'))
		local created = tonumber(redis.call('HGET', job_key, 'created_at_ms'))
		redis.call('HSET', job_key, 'state', 'waiting')
		redis.call('ZADD', wait_key, pc * 1e13 + created, id)
	end
	table.insert(result, id)
end
return result
`)

var retryScript = goredis.NewScript(`
local job_key = KEYS[1]
local wait_key = KEYS[2]
local failed_key = KEYS[3]
local id = ARGV[1]

if redis.call('HGET', job_key, 'state') ~= 'failed' then
	return 0
end
redis.call('ZREM', failed_key, id)
local pc = tonumber(redis.call('HGET', job_key, 'priority_class'))
local created = tonumber(redis.call('HGET', job_key, 'created_at_ms'))
redis.call('HSET', job_key, 'state', 'waiting', 'attempts_made', '0', 'finished_at_ms', '', 'last_error', '', 'stall_count', '0')
redis.call('ZADD', wait_key, pc * 1e13 + created, id)
return 1
`)

var removeJobScript = goredis.NewScript(`
local job_key = KEYS[1]
local wait_key = KEYS[2]
local delayed_key = KEYS[3]
local active_key = KEYS[4]
local completed_key = KEYS[5]
local failed_key = KEYS[6]
local queue = ARGV[1]
local id = ARGV[2]
local now_ms = tonumber(ARGV[3])

local state = redis.call('HGET', job_key, 'state')
if not state then
	return 1
end
if state == 'active' then
	local lease = tonumber(redis.call('HGET', job_key, 'lease_until_ms') or '0')
	if lease > now_ms then
		return 0
	end
end
redis.call('ZREM', wait_key, id)
redis.call('ZREM', delayed_key, id)
redis.call('ZREM', active_key, id)
redis.call('ZREM', completed_key, id)
redis.call('ZREM', failed_key, id)
local dedup_key = redis.call('HGET', job_key, 'dedup_key')
if dedup_key and dedup_key ~= '' then
	redis.call('DEL', 'jq:' .. queue .. ':dedup:' .. dedup_key)
end
redis.call('DEL', job_key)
return 1
`)

// cleanScript deletes up to limit jobs scored at or before cutoff from
// target_key (a completed or failed zset), skipping any job whose
// retain_field is set, and returns the count actually removed.
var cleanScript = goredis.NewScript(`
local target_key = KEYS[1]
local queue = ARGV[1]
local cutoff_ms = ARGV[2]
local limit = ARGV[3]
local retain_field = ARGV[4]

local ids = redis.call('ZRANGEBYSCORE', target_key, '-inf', cutoff_ms, 'LIMIT', 0, limit)
local n = 0
for _, id in ipairs(ids) do
	local job_key = 'jq:' .. queue .. ':job:' .. id
	local retain = redis.call('HGET', job_key, retain_field)
	if retain == '1' then
		-- left in place; rescanned on the next Clean call
	else
		local dedup_key = redis.call('HGET', job_key, 'dedup_key')
		if dedup_key and dedup_key ~= '' then
			redis.call('DEL', 'jq:' .. queue .. ':dedup:' .. dedup_key)
		end
		redis.call('DEL', job_key)
		redis.call('ZREM', target_key, id)
		n = n + 1
	end
end
return n
`)

// rateLimitScript implements the same token-bucket admission check as
// popScript's inline logic, exposed standalone for RateLimiter.Acquire.
var rateLimitScript = goredis.NewScript(`
local tokens_key = KEYS[1]
local reset_key = KEYS[2]
local now_ms = tonumber(ARGV[1])
local max = tonumber(ARGV[2])
local window_ms = tonumber(ARGV[3])

local reset = tonumber(redis.call('GET', reset_key) or '0')
local tokens
if now_ms >= reset then
	tokens = max
	reset = now_ms + window_ms
	redis.call('SET', reset_key, reset)
	redis.call('SET', tokens_key, tokens)
else
	tokens = tonumber(redis.call('GET', tokens_key) or '0')
end
if tokens <= 0 then
	return {0, reset - now_ms}
end
redis.call('DECR', tokens_key)
return {1, 0}
`)

var repeatSetLiveScript = goredis.NewScript(`
local repeat_key = KEYS[1]
local job_id = ARGV[1]
local fired_at_ms = ARGV[2]
local live = redis.call('HGET', repeat_key, 'live_job_id')
if live and live ~= '' and live ~= '0' then
	return 0
end
redis.call('HSET', repeat_key, 'live_job_id', job_id, 'last_fire_ms', fired_at_ms)
return 1
`)

var repeatCompleteLiveScript = goredis.NewScript(`
local repeat_key = KEYS[1]
local job_id = ARGV[1]
local live = redis.call('HGET', repeat_key, 'live_job_id')
if live ~= job_id then
	return {0, ''}
end
local last_fire = redis.call('HGET', repeat_key, 'last_fire_ms')
redis.call('HSET', repeat_key, 'live_job_id', '0')
return {1, last_fire}
`)
