package tracing

// Span names for pipeline tracing.
const (
	// SpanRun is the root span of one command invocation.
	SpanRun = "invertix.run"
	// SpanBuild covers job building plus dispatch.
	SpanBuild = "invertix.build"
	// SpanInvertJob covers one stage/volume inversion job.
	SpanInvertJob = "invertix.invert.job"
	// SpanApplyStage covers one stage application in an artifact chain.
	SpanApplyStage = "invertix.apply.stage"
)

// Span attribute keys.
const (
	AttrRunID   = "run.id"
	AttrMode    = "run.mode"
	AttrStage   = "stage"
	AttrVolume  = "volume"
	AttrVariant = "artifact.variant"
	AttrSkipped = "skipped"
	AttrWorkers = "pool.workers"
	AttrJobs    = "pool.jobs"
)
