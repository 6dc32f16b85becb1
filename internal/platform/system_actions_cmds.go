package platform

// Command tables are untagged so the fallback logic stays testable on every
// OS. Only the constructors behind build tags pick which table runs.

func linuxURLOpenCommands(url string) []commandSpec {
	return []commandSpec{
		{name: "xdg-open", args: []string{url}},
		{name: "gio", args: []string{"open", url}},
		{name: "kde-open5", args: []string{url}},
		{name: "kde-open", args: []string{url}},
		{name: "gnome-open", args: []string{url}},
		{name: "sensible-browser", args: []string{url}},
	}
}

func windowsURLOpenCommands(url string) []commandSpec {
	return []commandSpec{
		{name: "rundll32", args: []string{"url.dll,FileProtocolHandler", url}},
		{name: "cmd", args: []string{"/c", "start", "", url}},
	}
}
