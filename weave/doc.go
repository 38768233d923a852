// Package weave turns generator methods into resumable state machines.
//
// A generator is an instance method returning boolean whose body calls a
// yield method (yieldReturn by default) as a statement and may call a break
// method (yieldBreak). Weave rewrites it so that each call of the method runs
// to the next yield, saves the captured locals into fields, records which
// yield it stopped at and returns true. The next call jumps straight back
// behind that yield. A break, or the body's own return, ends the sequence.
//
// The pipeline for one method:
//
//	Discover   count yield calls, collect written locals   -> meta.Container
//	Builder    stream the body through a delay.Buffer, splice suspend points
//	enhance    rewrite array accesses in the woven body
//	stack      verify heights, derive max stack
//
// Everything runs on a copy of the code; the method is only replaced once
// every step succeeded.
//
// Logging goes through a package-level zap logger, a no-op by default:
//
//	weave.SetLogger(zap.Must(zap.NewDevelopment()))
package weave
