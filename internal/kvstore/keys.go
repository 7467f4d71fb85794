package kvstore

// Persisted state keys.
const (
	KeyLastCheckedRevision = "revision.last_checked"
	KeyLatestRevision      = "revision.latest"
	KeyLastUpdateCheck     = "scheduler.last_check"
	KeyVersionSkip         = "skip.active"
	KeyPerformance         = "metrics.samples"
	KeyOfflineQueue        = "offline.queue"
	KeyRollbackSnapshot    = "rollback.snapshot"
	KeyPendingUpdate       = "update.pending"
	KeyInstalledVersion    = "install.version"
	KeyInstalledRevision   = "install.revision"

	// PrefixCache namespaces CacheLayer entries; PrefixVersion namespaces
	// per-revision resolved versions inside it.
	PrefixCache   = "cache:"
	PrefixVersion = "version:"
)
