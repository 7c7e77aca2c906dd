package delivery

import (
	"errors"
	"net"
	"syscall"
)

// Outcome classifies one delivery attempt.
type Outcome int

const (
	Success Outcome = iota
	Refused
	TimedOut
	AddressError
	ServerRejected
	OtherError
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case Refused:
		return "refused"
	case TimedOut:
		return "timed_out"
	case AddressError:
		return "address_error"
	case ServerRejected:
		return "server_rejected"
	case OtherError:
		return "other_error"
	}
	return "unknown"
}

// classify maps a transport error onto the outcome taxonomy. Address
// resolution failures are checked before generic timeouts so a slow
// resolver still reports as AddressError.
func classify(err error) Outcome {
	if errors.Is(err, syscall.ECONNREFUSED) {
		return Refused
	}

	var dnsErr *net.DNSError
	var addrErr *net.AddrError
	if errors.As(err, &dnsErr) || errors.As(err, &addrErr) {
		return AddressError
	}

	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return TimedOut
	}

	return OtherError
}
