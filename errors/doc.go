// Package errors provides the structured error taxonomy used across the
// registry, the discovery client and the critique/refine pipeline.
//
// # Categories
//
//   - Transient: the same call might succeed later (timeouts, unreachable peers)
//   - Permanent: the same call will fail again (unknown tag, bad reply)
//   - Resource: quota or rate exhaustion at a collaborator
//   - Internal: bugs
//
// # Hop failures
//
// Four constructors cover the failures a pipeline hop can hit:
//
//	errors.RegistrationFailure(url, err)    // REGISTRATION_FAILED
//	errors.ResolutionFailure(tag, err)      // CAPABILITY_MISSING
//	errors.RemoteInvocationFailure(tag, err) // REMOTE_INVOCATION or TIMEOUT
//	errors.MalformedResponse(tag, detail)   // MALFORMED_RESPONSE
//
// None of them is retried by the pipeline. Callers record them as a
// terminal error step and return the best answer so far.
//
// # JSON
//
// Errors serialize to JSON so agents can report them in replies:
//
//	data, err := json.Marshal(e)
package errors
