package prebuild

import "errors"

// Sentinel errors matching spec §7's taxonomy, for the parts of it this
// package is responsible for raising.
var (
	ErrMissingRecipients          = errors.New("missing recipients")
	ErrImplicitSpendLimitExceeded = errors.New("implicit external spend limit exceeded")
	ErrNegativeFee                = errors.New("negative fee")
	ErrKeychainIntegrityFailure   = errors.New("keychain integrity failure")
	ErrNoKeychainsAvailable       = errors.New("no keychains supplied and networking disabled")
)

// PaygoCapBps is the pay-as-you-go cap expressed in basis points: implicit
// external spend may not exceed 1.5% of explicit external spend (spec
// §4.4 step 3).
const PaygoCapBps = 150
