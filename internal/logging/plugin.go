package logging

// Sink is the Logger's plugin contract. A registered sink receives every
// formatted line whose level clears its own MinLevel, and is asked to
// flush on the Logger's own cadence (and once, forcefully, at shutdown).
//
// Sinks must not call back into the Logger from Log: the Logger holds its
// single mutex while calling Log, and reentry would deadlock. Flush is
// called with that mutex released.
type Sink interface {
	// Log receives one already-formatted line. It must not block for long;
	// batching sinks should buffer and let Flush do the expensive work.
	Log(level Level, formattedLine string)

	// MinLevel reports the lowest level this sink wants to see.
	// LevelMaskAll disables the sink.
	MinLevel() Level

	// Flush asks the sink to consider emitting whatever it has buffered.
	// stillRunning is false only during the final, forced shutdown flush.
	Flush(stillRunning, force bool)
}
