package system

import "context"

// Service is a background component with a start/stop lifecycle, such as
// the chat hub or the job scheduler. Stop must be safe to call on a service
// that never started.
type Service interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}
