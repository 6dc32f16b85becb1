//go:build !linux && !windows

package platform

import "runtime"

type unsupportedSystemActions struct{}

func newSystemActions() SystemActions {
	return unsupportedSystemActions{}
}

func (unsupportedSystemActions) OpenURL(url string) error {
	return openURLForOS(runtime.GOOS, url, startCommandDetached)
}
