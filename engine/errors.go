package engine

// constError is a comparable string-backed error, the same pattern
// djdv-go-clockpro uses for its sentinel errors: cheap to construct,
// usable with errors.Is, and immune to accidental identity mismatches
// across package boundaries that a plain errors.New var can suffer from
// under build caching quirks.
type constError string

func (e constError) Error() string { return string(e) }

// Recoverable conditions: these are never panics. When one holds, the
// dependent periodic task is skipped (hawkeye.Engine.Repartition returns
// without changing any budget). No function in this module returns these
// values; they name the two conditions.
const (
	// ErrTelemetryMissing names the condition where a required cache_stats
	// level or DRAM stat is absent from the request sideband.
	ErrTelemetryMissing = constError("engine: required telemetry missing")

	// ErrDRAMNotReady names the condition where DRAM telemetry is present
	// but not yet ready.
	ErrDRAMNotReady = constError("engine: dram telemetry not ready")
)
