// Package jvmyield retrofits generators onto compiled JVM classes.
//
// A generator method calls yieldReturn(value) as a statement wherever it
// produces a value. After compilation the class file is rewritten so that
// each call of the method resumes right behind the last yield instead of
// starting over: locals are saved into fields, the resume point is kept in
// a state field, and a tableswitch at the method head dispatches to it.
//
// # Architecture Overview
//
//	jvmyield/            Transform facade over whole class files
//	├── classfile/       class-file model, instruction list, decode/encode
//	├── stack/           stack-effect oracle, backward scan, height analysis
//	├── delay/           delayed-emission buffer (regions / mini-frames)
//	├── enhance/         array store/load enhancers and the enhancer chain
//	├── meta/            per-method states, captured slots, resume labels
//	├── weave/           state-machine builder and per-method pipeline
//	├── errors/          structured errors for debugging
//	└── cmd/weave/       command-line driver
//
// # Quick Start
//
//	out, report, err := jvmyield.Transform(classBytes, jvmyield.Config{
//	    Methods: weave.MustSelector("com/acme/Numbers.next()Z"),
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, r := range report.Woven {
//	    fmt.Println(r.Method, r.States)
//	}
//
// # Failure Handling
//
// A method that cannot be woven is never left half-rewritten. With
// OnError set to Skip the remaining methods are still woven and the failures
// are collected in Report.Skipped; with Abort the first failure is returned
// and no bytes are produced.
package jvmyield
