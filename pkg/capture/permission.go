package capture

import "context"

// Permission asks the platform for microphone access.
type Permission interface {
	RequestMicrophonePermission(ctx context.Context) (bool, error)
}

// PermissionFunc adapts a function to Permission.
type PermissionFunc func(ctx context.Context) (bool, error)

// RequestMicrophonePermission calls f.
func (f PermissionFunc) RequestMicrophonePermission(ctx context.Context) (bool, error) {
	return f(ctx)
}

var (
	// Granted always allows capture.
	Granted Permission = PermissionFunc(func(context.Context) (bool, error) { return true, nil })

	// Denied always refuses capture.
	Denied Permission = PermissionFunc(func(context.Context) (bool, error) { return false, nil })
)
