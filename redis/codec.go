package redis

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"time"

	"github.com/kvqueue/jobqueue/job"
)

// fieldsToMap turns a flat HGETALL-style []interface{} (or []string) of
// alternating field/value pairs into a map, as returned inline by
// popScript alongside its status code.
func fieldsToMap(flat []interface{}) map[string]string {
	m := make(map[string]string, len(flat)/2)
	for i := 0; i+1 < len(flat); i += 2 {
		k, _ := flat[i].(string)
		v, _ := flat[i+1].(string)
		m[k] = v
	}
	return m
}

func parseInt64(s string) int64 {
	if s == "" {
		return 0
	}
	n, _ := strconv.ParseInt(s, 10, 64)
	return n
}

func parseInt(s string) int {
	return int(parseInt64(s))
}

func msToTime(ms int64) time.Time {
	return time.UnixMilli(ms)
}

func timeToMs(t time.Time) int64 {
	return t.UnixMilli()
}

// decodeJob builds a job.Job from a field map as stored in a job hash.
// id and queue are supplied by the caller since the hash itself does
// not repeat the id.
func decodeJob(queue string, id int64, m map[string]string) (*job.Job, error) {
	if len(m) == 0 {
		return nil, fmt.Errorf("redis: empty job record")
	}
	status, err := job.ParseStatus(m["state"])
	if err != nil {
		return nil, fmt.Errorf("redis: decode job %d: %w", id, err)
	}
	payload, err := base64.StdEncoding.DecodeString(m["payload_b64"])
	if err != nil {
		return nil, fmt.Errorf("redis: decode job %d payload: %w", id, err)
	}
	var result []byte
	if m["result_b64"] != "" {
		result, err = base64.StdEncoding.DecodeString(m["result_b64"])
		if err != nil {
			return nil, fmt.Errorf("redis: decode job %d result: %w", id, err)
		}
	}
	jb := &job.Job{
		ID:            id,
		Queue:         queue,
		Kind:          m["kind"],
		Payload:       payload,
		PriorityClass: parseInt(m["priority_class"]),
		AttemptsMade:  parseInt(m["attempts_made"]),
		AttemptsMax:   parseInt(m["attempts_max"]),
		Backoff: job.BackoffSpec{
			Strategy: job.BackoffStrategy(m["backoff_strategy"]),
			BaseMs:   parseInt64(m["backoff_base_ms"]),
			MaxMs:    parseInt64(m["backoff_max_ms"]),
		},
		TimeoutMs:          parseInt64(m["timeout_ms"]),
		Status:             status,
		AvailableAt:        msToTime(parseInt64(m["available_at_ms"])),
		Result:             result,
		LastError:          m["last_error"],
		StallCount:         parseInt(m["stall_count"]),
		DedupKey:           m["dedup_key"],
		RepeatID:           m["repeat_id"],
		RetainOnCompletion: m["ret_completion"] == "1",
		RetainOnFailure:    m["ret_failure"] == "1",
		CreatedAt:          msToTime(parseInt64(m["created_at_ms"])),
	}
	if lu := m["lease_until_ms"]; lu != "" {
		t := msToTime(parseInt64(lu))
		jb.LeaseUntil = &t
	}
	if fa := m["first_attempted_at_ms"]; fa != "" {
		t := msToTime(parseInt64(fa))
		jb.FirstAttemptedAt = &t
	}
	if fi := m["finished_at_ms"]; fi != "" {
		t := msToTime(parseInt64(fi))
		jb.FinishedAt = &t
	}
	return jb, nil
}

func boolFlag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
