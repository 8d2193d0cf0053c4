/*
Package config loads and validates the service configuration.

Configuration comes entirely from environment variables, read once at startup
into an immutable Settings snapshot. FromEnv applies the documented defaults;
Validate enforces the startup guardrails and aborts the process before any
broker connection is attempted:

  - INTERNAL_TOKEN may keep its placeholder value only in the local and
    development environments
  - durations, counts, and the cluster size bound must be positive
  - the dead-letter stream key must differ from the main stream key

Timeouts keep their source units at the boundary (seconds or milliseconds,
as each variable name states) and convert to time.Duration here, so the rest
of the codebase never sees a bare integer timeout.
*/
package config
