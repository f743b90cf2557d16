package thread

import "github.com/pkg/errors"

// Sentinel errors used internally between registry/attach/drain helpers and
// the command dispatcher, which maps them onto the wire's integer codes
// (§7). Named the way the spec names them, not by Go convention, since the
// mapping to -EINVAL/-EEXIST is the point.
var (
	errInvalid = errors.New("EINVAL")
	errExist   = errors.New("EEXIST")
	errNoMem   = errors.New("ENOMEM")
)

// statusFor maps an internal error to its wire status code. nil maps to
// errOK. Unrecognized errors map to -EINVAL, the generic "bad request"
// code, rather than panicking: the worker must never crash on a
// command-level error (§7).
func statusFor(err error) int {
	switch errors.Cause(err) {
	case nil:
		return errOK
	case errInvalid:
		return errEINVAL
	case errExist:
		return errEEXIST
	case errNoMem:
		return errENOMEM
	default:
		return errEINVAL
	}
}
