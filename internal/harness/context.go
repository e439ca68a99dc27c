package harness

import "github.com/mentionflow/harness/internal/worker"

// Context is the shared record of handles passed to every processor
// invocation. It is defined in internal/worker, not here, because
// Orchestrator.Run must import internal/worker to construct and run Worker
// instances; if worker.Run took a *harness.Context parameter, worker would
// need to import harness too, forming a cycle. The alias keeps the type
// available under the name spec.md's component design describes it by.
type Context = worker.Context
