//go:build linux

package platform

type linuxSystemActions struct{}

func newSystemActions() SystemActions {
	return linuxSystemActions{}
}

func (linuxSystemActions) OpenURL(url string) error {
	return openURLForOS("linux", url, startCommandDetached)
}
