//go:build windows

package platform

type windowsSystemActions struct{}

func newSystemActions() SystemActions {
	return windowsSystemActions{}
}

func (windowsSystemActions) OpenURL(url string) error {
	return openURLForOS("windows", url, startCommandDetached)
}
