/*
Package domain contains the core domain models shared by every layer of the
pipeline: observation data handles (Frame, Group), the per-run RecipeContext
threaded through every primitive invocation, the error taxonomy, and the
normalized task-status classes.

This package is kept pure and free of external dependencies like I/O or
messaging, following Hexagonal Architecture principles, so that adapters,
ports and the runtime can all speak the same types without import cycles.

# Key Entities

  - Frame / Group: the current observation and its aggregate.
  - RecipeContext: mutable per-run state shared by reference across frames.
  - FatalError / TaskError / ErrEngineDown / ErrUserAbort: the pipeline-wide
    error vocabulary (fatal conditions, task failures, engine loss, operator
    stop).
  - Status: the three-way normalization of protocol status codes.
*/
package domain
