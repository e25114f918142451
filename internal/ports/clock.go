// Package ports defines interfaces for external dependencies (Ports and Adapters pattern).
package ports

import "time"

// Clock abstracts time so deadlines and step delays are testable.
type Clock interface {
	Now() time.Time

	// Sleep pauses execution for d.
	Sleep(d time.Duration)
}
