package signals

import "errors"

var (
	// ErrRegistrationFailed reports a Subscribe call that could not
	// attach to the requested kind, typically because the platform
	// cannot deliver it. The process keeps running without the
	// subscription.
	ErrRegistrationFailed = errors.New("signal registration failed")

	// ErrDispatcherFatal reports that signal delivery is broken for
	// the whole process. Existing subscriptions are closed and new
	// ones are refused.
	ErrDispatcherFatal = errors.New("signal dispatcher failed")

	// ErrSubscriptionClosed reports a receive on a closed
	// subscription.
	ErrSubscriptionClosed = errors.New("subscription closed")
)
