// Package core contains canonical adapter contracts, configuration, and the
// error envelope. Lower-level packages (auth, ratelimit, transport, paginate,
// inbound) depend on this package; core must not depend on any of them.
package core
