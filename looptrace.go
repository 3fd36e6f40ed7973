// Package looptrace turns JavaScript-flavored program text into a sequence of
// snapshots of a simulated event loop: call stack, execution contexts, Web API
// registrations, task queues and console output.
package looptrace

import (
	"github.com/timewinder-dev/looptrace/engine"
	"github.com/timewinder-dev/looptrace/trace"
)

const Version = "0.1.0"

// DefaultProgram is the demo shown when no program is given.
const DefaultProgram = `// JavaScript Event Loop Visualizer
// Click Run to see how this code executes!

console.log("1: Script starts");

setTimeout(function timeoutCallback() {
  console.log("4: setTimeout fires");
}, 0);

Promise.resolve()
  .then(function promiseCallback() {
    console.log("3: Promise resolved");
  });

console.log("2: Script ends");`

var defaultEngine = engine.New(engine.DefaultOptions())

// Analyze narrates source with the default engine options.
func Analyze(source string) []trace.Step {
	return defaultEngine.Analyze(source)
}
