// Package upstream implements a reusable upstream pool manager: a
// collection of named network endpoints (DNS names or literal IP/UNIX
// socket addresses, optionally weighted) whose liveness is tracked from
// caller-reported successes and failures, whose members are rotated
// across several selection policies, and whose address sets are kept
// fresh through lazy periodic DNS resolution.
//
// The package does not open sockets, probe endpoints, or retry on the
// caller's behalf. A typical user obtains an Upstream via List.Get,
// extracts an address with Upstream.AddrCur or Upstream.AddrNext, attempts
// its own I/O against that address, and reports the outcome back with
// Upstream.Ok or Upstream.Fail.
package upstream
