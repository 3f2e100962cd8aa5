package chain

import "errors"

var (
	// ErrFault is returned for calls executed with FAULT VM state.
	ErrFault = errors.New("FAULT")
	// ErrUnknownAccount is returned when the client can't sign for an account.
	ErrUnknownAccount = errors.New("unknown account")
	// ErrTransferFailed is returned for payable calls when GAS transfer
	// returns false (insufficient funds mostly).
	ErrTransferFailed = errors.New("GAS transfer failed")
	// ErrUnknownContract is returned for calls to contracts that don't exist.
	ErrUnknownContract = errors.New("unknown contract")
)

// FaultError occurs when the VM halts with FAULT state, it contains the
// exception message.
type FaultError struct {
	Exception string
	cause     error
}

// NewFaultError creates a FaultError with an optional cause.
func NewFaultError(exception string, cause error) *FaultError {
	return &FaultError{Exception: exception, cause: cause}
}

func (f *FaultError) Error() string {
	return "execution FAULTed: " + f.Exception
}

// Is makes FaultError match ErrFault.
func (f *FaultError) Is(target error) bool {
	return target == ErrFault
}

func (f *FaultError) Unwrap() error {
	return f.cause
}
