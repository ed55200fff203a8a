package redis

import "fmt"

// Key schema (spec §4.1). All keys are namespaced jq:{queue}:...; only
// this package reads or writes them.
func idKey(queue string) string      { return fmt.Sprintf("jq:%s:id", queue) }
func jobKey(queue string, id int64) string {
	return fmt.Sprintf("jq:%s:job:%d", queue, id)
}
func waitKey(queue string) string      { return fmt.Sprintf("jq:%s:wait", queue) }
func delayedKey(queue string) string   { return fmt.Sprintf("jq:%s:delayed", queue) }
func activeKey(queue string) string    { return fmt.Sprintf("jq:%s:active", queue) }
func completedKey(queue string) string { return fmt.Sprintf("jq:%s:completed", queue) }
func failedKey(queue string) string    { return fmt.Sprintf("jq:%s:failed", queue) }
func pausedKey(queue string) string    { return fmt.Sprintf("jq:%s:paused", queue) }
func rlTokensKey(queue string) string  { return fmt.Sprintf("jq:%s:rl:tokens", queue) }
func rlResetKey(queue string) string   { return fmt.Sprintf("jq:%s:rl:reset", queue) }
func rlConfigKey(queue string) string  { return fmt.Sprintf("jq:%s:rl:config", queue) }
func dedupKey(queue, key string) string {
	return fmt.Sprintf("jq:%s:dedup:%s", queue, key)
}
func repeatKey(queue, repeatID string) string {
	return fmt.Sprintf("jq:%s:repeat:%s", queue, repeatID)
}
func repeatIndexKey(queue string) string { return fmt.Sprintf("jq:%s:repeat-index", queue) }

// EventsChannel is the pub/sub channel cross-process subscribers read
// lifecycle events from.
const EventsChannel = "jq:events"
