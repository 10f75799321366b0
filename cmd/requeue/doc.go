// Command requeue provides a CLI utility for managing the swing processing
// queue.
//
// It supports the following operations:
//   - failed: Re-queue all failed swings for another processing attempt
//   - unscored: Re-queue ready swings without a score for analysis
//   - status: Show swing counts by processing status
//
// Usage:
//
//	requeue <command>
//
// Commands:
//
//	failed    Reset every swing in the failed state back to pending. The
//	          running service picks the swings up on its next sweep; no
//	          restart is required. Swings whose local source file was
//	          already removed will fail again.
//
//	unscored  Reset every ready swing that has no score back to pending.
//	          The processor rescores those from the stored object, so this
//	          works long after the local source file is gone. Useful after
//	          an analyzer outage.
//
//	status    Display current swing, score and drill counts from the
//	          database.
//
// Environment:
//
//	DATABASE_DIR - Path to database directory (default: /database)
package main
