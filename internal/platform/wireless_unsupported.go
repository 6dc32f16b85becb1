//go:build !linux && !windows

package platform

import (
	"context"
	"fmt"
	"runtime"
)

func readWirelessStatus(_ context.Context, _ string) (WirelessStatus, error) {
	return WirelessStatus{}, fmt.Errorf("%w on %s", ErrWirelessUnsupported, runtime.GOOS)
}
