// Package taskreg is a process-local registry of in-flight work.
//
// Subsystems register a task with a single call and keep the returned Handle for as long as the
// work is relevant; an observer (an ops endpoint, a crash dump, a debugger) enumerates everything
// that is currently live with ForTask.
//
// # Lifetime
//
// A Task is owned by its Handles and by the tasks that name it as their parent. The registry
// itself only holds non-owning entries: when the last owner goes away the task is destroyed, its
// entry is pruned, and the reference it held on its parent is dropped (which may cascade up the
// chain). A parent whose own scope has already ended therefore stays visible for as long as any
// of its subtasks is alive.
//
// Enumeration resolves each entry with an atomic try-acquire on the task's reference count, so a
// snapshot is never taken of a destroyed task, no matter how creation, completion and enumeration
// interleave.
//
// # States
//
// Every task moves strictly forward through scheduled → running → done:
//
//   - StartTask and StartSubtask create a running task bound to the calling goroutine.
//   - ScheduleSubtask creates a scheduled task; Handle.Start later binds it to the goroutine that
//     picks the work up.
//   - Scope.End (usually deferred) marks the task done.
//
// Between Start and End the owning goroutine may describe its progress with Scope.UpdateState.
// State is written by that goroutine only and read by anyone. The single exception is the done
// transition: Scope.End is not goroutine-checked, because a scope must be closable on every exit
// path, including after it was handed to another goroutine. A foreign End has to happen after
// the owner's last update.
//
// # Violations
//
// Misuse of the ownership rules is a programming error, not a runtime condition: updating state
// from a goroutine that does not own the task, updating after End, starting a task twice (or
// starting an immediate task), using a released Handle to Start or Clone, and creating a subtask
// under a parent that has already been destroyed. Each one is reported as a *Violation, logged at ERROR, and handed to the registry's
// fatal handler. The default handler prints the diagnostic with a stack trace and exits the
// process with status 2.
//
// # Goroutines and threads
//
// Go schedules goroutines onto OS threads and moves them freely, so ownership is tracked per
// goroutine. ThreadID also records the kernel thread the goroutine happened to run on when the
// identity was captured; it is informational only.
//
// A scope that is never ended leaves its task visible as running indefinitely. That is the
// intended signal of a leaked scope.
package taskreg
