package jobs

// 任务名称常量.
const (
	JobIngestSweep = "ingest.sweep"
	JobAccessFlush = "access.flush"
)
