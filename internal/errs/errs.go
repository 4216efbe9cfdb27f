// Package errs implements the closed error-kind taxonomy of the supervisor.
// Every error the core surfaces carries a kind, a recoverability flag, and
// structured context, built on top of github.com/samber/oops.
package errs

import (
	"github.com/samber/oops"
)

// Kind is the closed set of error kinds the core can produce.
type Kind string

const (
	KindConnectionRefused Kind = "CONNECTION_REFUSED"
	KindConnectionTimeout Kind = "CONNECTION_TIMEOUT"
	KindConnectionReset   Kind = "CONNECTION_RESET"
	KindConnectionClosed  Kind = "CONNECTION_CLOSED"
	KindNotConnected      Kind = "NOT_CONNECTED"
	KindAuthFailed        Kind = "AUTH_FAILED"
	KindInvalidPassword   Kind = "INVALID_PASSWORD"
	KindCommandTimeout    Kind = "COMMAND_TIMEOUT"
	KindCommandAborted    Kind = "COMMAND_ABORTED"
	KindInvalidCommand    Kind = "INVALID_COMMAND"
	KindParseError        Kind = "PARSE_ERROR"
	KindWatchFailed       Kind = "WATCH_FAILED"
	KindReadFailed        Kind = "READ_FAILED"
	KindFileNotFound      Kind = "FILE_NOT_FOUND"
	KindPermissionDenied  Kind = "PERMISSION_DENIED"
	KindAlreadyWatching   Kind = "ALREADY_WATCHING"
	KindNotWatching       Kind = "NOT_WATCHING"
	KindRuleError         Kind = "RULE_ERROR"
	KindQueueFull         Kind = "QUEUE_FULL"
	KindOptionsValidation Kind = "OPTIONS_VALIDATION"
	KindPluginLifecycle   Kind = "PLUGIN_LIFECYCLE"
	KindPluginEvent       Kind = "PLUGIN_EVENT"
	KindPluginConnector   Kind = "PLUGIN_CONNECTOR"
	KindPluginRCON        Kind = "PLUGIN_RCON"
	KindPluginValidation  Kind = "PLUGIN_VALIDATION"
	KindPluginUnknown     Kind = "PLUGIN_UNKNOWN"
	KindInvalidState      Kind = "INVALID_STATE"
)

// recoverable records, per kind, whether the condition is recoverable at the
// point where it is raised.
var recoverable = map[Kind]bool{
	KindConnectionRefused: true,
	KindConnectionTimeout: true,
	KindConnectionReset:   true,
	KindConnectionClosed:  true,
	KindNotConnected:      false,
	KindAuthFailed:        false,
	KindInvalidPassword:   false,
	KindCommandTimeout:    true,
	KindCommandAborted:    false,
	KindInvalidCommand:    false,
	KindParseError:        false,
	KindWatchFailed:       true,
	KindReadFailed:        true,
	KindFileNotFound:      false,
	KindPermissionDenied:  false,
	KindAlreadyWatching:   false,
	KindNotWatching:       false,
	KindRuleError:         true,
	KindQueueFull:         true,
	KindOptionsValidation: false,
	KindPluginLifecycle:   false,
	KindPluginEvent:       false,
	KindPluginConnector:   false,
	KindPluginRCON:        false,
	KindPluginValidation:  false,
	KindPluginUnknown:     false,
	KindInvalidState:      false,
}

// Recoverable reports whether the given kind is recoverable per the taxonomy.
func Recoverable(k Kind) bool { return recoverable[k] }

// New builds a kinded error carrying structured context, without wrapping a cause.
func New(k Kind, msg string, kv ...any) error {
	return builder(k, kv...).Errorf("%s", msg)
}

// Wrap builds a kinded error wrapping an underlying cause.
func Wrap(k Kind, cause error, msg string, kv ...any) error {
	if cause == nil {
		return New(k, msg, kv...)
	}
	return builder(k, kv...).Wrapf(cause, "%s", msg)
}

func builder(k Kind, kv ...any) oops.OopsErrorBuilder {
	b := oops.Code(string(k)).With("recoverable", Recoverable(k))
	for i := 0; i+1 < len(kv); i += 2 {
		key, _ := kv[i].(string)
		if key == "" {
			continue
		}
		b = b.With(key, kv[i+1])
	}
	return b
}

// KindOf extracts the Kind from an error produced by this package, if any.
func KindOf(err error) (Kind, bool) {
	if oe, ok := oops.AsOops(err); ok {
		return Kind(oe.Code()), true
	}
	return "", false
}

// IsRecoverable reports whether err (if produced by this package) is recoverable.
// Errors not produced by this package are treated as non-recoverable.
func IsRecoverable(err error) bool {
	if oe, ok := oops.AsOops(err); ok {
		if v, present := oe.Context()["recoverable"]; present {
			if b, ok := v.(bool); ok {
				return b
			}
		}
	}
	return false
}
