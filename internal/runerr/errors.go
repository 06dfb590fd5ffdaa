package runerr

import "errors"

// Error kinds shared by every stage of a run. Callers wrap them with
// fmt.Errorf("%w: ...", kind) and inspect them with errors.Is.
var (
	// ErrConfig covers malformed templates, invalid ranges and bad credential formats.
	ErrConfig = errors.New("config error")

	// ErrConnection means the endpoint could not be reached or the handshake failed.
	ErrConnection = errors.New("connection error")

	// ErrFeePolicy means a fee value could not be resolved, even after fallback.
	ErrFeePolicy = errors.New("fee policy error")

	// ErrSigning means a draft could not be signed.
	ErrSigning = errors.New("signing error")

	// ErrSubmission is a network or endpoint failure while sending one batch.
	ErrSubmission = errors.New("submission error")
)

// IsFatal reports whether err must stop the run.
// Submission failures are the only recoverable kind.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	return !errors.Is(err, ErrSubmission)
}
