package lifecycle

import "errors"

// Sentinel errors for lifecycle operations. Handlers map these to HTTP
// status codes and dashboard feedback codes.
var (
	ErrAlreadyDeleted          = errors.New("upload already deleted")
	ErrInvalidIncrement        = errors.New("invalid expiration increment")
	ErrTooFarInFuture          = errors.New("expiration too far in the future")
	ErrInvalidViewLimit        = errors.New("view limit must be between 1 and 100000")
	ErrEmptyPassword           = errors.New("password cannot be empty")
	ErrCurrentPasswordRequired = errors.New("current password required")
	ErrCurrentPasswordInvalid  = errors.New("current password invalid")
	ErrInvalidCountdownMode    = errors.New("invalid countdown mode")
	ErrInvalidViewMode         = errors.New("invalid view limit mode")
	ErrInvalidPasswordMode     = errors.New("invalid password mode")
	ErrPasswordRequired        = errors.New("password required")
	ErrInvalidPassword         = errors.New("invalid password")
)

// GoneReason says why a view request can no longer be served.
type GoneReason string

const (
	GoneExpired       GoneReason = "expired"
	GoneViewLimit     GoneReason = "view_limit"
	GoneDeletedManual GoneReason = "deleted_manual"
	GoneDeletedAuto   GoneReason = "deleted_auto"
)

// GoneError is returned by view operations for uploads that exist but can
// no longer be served.
type GoneError struct {
	Reason GoneReason
}

func (e *GoneError) Error() string {
	return "upload gone: " + string(e.Reason)
}

// AsGone returns the GoneError inside err, if any.
func AsGone(err error) (*GoneError, bool) {
	var ge *GoneError
	if errors.As(err, &ge) {
		return ge, true
	}
	return nil, false
}

func goneForUpload(reason GoneReason) error {
	return &GoneError{Reason: reason}
}
