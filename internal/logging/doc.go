// Package logging is the leveled logging layer shared by the service
// and its CLIs. Messages below the configured level are dropped; the
// rest go to the standard log package with a [DEBUG], [WARN], or
// [ERROR] tag (info lines carry no tag).
//
// The level comes from the LOG_LEVEL environment variable (debug, info,
// warn, error), resolved once on first use. Setting DEBUG=true forces
// debug level regardless of LOG_LEVEL. Expensive debug formatting can
// be guarded with IsDebugEnabled.
package logging
