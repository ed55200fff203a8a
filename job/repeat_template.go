package job

import "time"

// RepeatTemplate is the persisted template behind a repeatable (cron) job:
// a cron specification plus the dispatch data used to enqueue each
// concrete instance. It is referenced by concrete jobs via Job.RepeatID,
// never the reverse, so there is no cyclic ownership between a template
// and the jobs it spawns.
//
// LiveJobID names the concrete job currently representing this template's
// pending or in-flight instance; the engine enforces that at most one
// concrete instance is live per template at any time. A zero LiveJobID
// means the template currently has no live instance. Orphan recovery
// (Repeater.ListOrphaned) does not report such templates, so a template
// left at zero, for example by a crash between CompleteLive and the next
// SetLive, is not re-expanded.
type RepeatTemplate struct {
	ID    string
	Queue string
	Kind  string

	Payload []byte
	Spec    RepeatSpec
	Opts    EnqueueOptions

	LastFire  time.Time
	LiveJobID int64
}
