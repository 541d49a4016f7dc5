package harness

import (
	"fmt"
	"reflect"
)

// DeviceState is what an SWD scan says about the nRF54L
type DeviceState int

const (
	None     DeviceState = iota // nothing answered
	Locked                      // only the CTRL-AP is visible
	Unlocked                    // the M33 and the CTRL-AP are visible
)

func (s DeviceState) String() string {
	switch s {
	case None:
		return "no target"
	case Locked:
		return "locked nRF54L"
	case Unlocked:
		return "unlocked nRF54L"
	default:
		return "Unknown"
	}
}

// Scan results for each state
var (
	lockedScan   = []string{"Nordic nRF54L Access Port (protected)"}
	unlockedScan = []string{"Nordic nRF54L M33", "Nordic nRF54L Access Port"}
)

// Target numbers of the CTRL-AP in each state
const (
	lockedCtrlAP   = 1
	unlockedCtrlAP = 2
	coreTarget     = 1
)

// Classify maps scan results to a device state. Anything other than the
// two known nRF54L layouts is an error wrapping ErrUnexpectedScan.
func Classify(names []string) (DeviceState, error) {
	switch {
	case len(names) == 0:
		return None, nil
	case reflect.DeepEqual(names, lockedScan):
		return Locked, nil
	case reflect.DeepEqual(names, unlockedScan):
		return Unlocked, nil
	}
	return None, fmt.Errorf("%w: %q", ErrUnexpectedScan, names)
}
