package browser

import (
	"fmt"
	"net/url"
	"os/exec"
	"runtime"
)

// Open hands target to the platform's URL handler. Only web and mailto links
// are accepted; share links embed user text and must not reach a shell as
// anything else.
func Open(target string) error {
	name, args, err := command(runtime.GOOS, target)
	if err != nil {
		return err
	}
	return exec.Command(name, args...).Start()
}

func command(goos, target string) (string, []string, error) {
	u, err := url.Parse(target)
	if err != nil {
		return "", nil, fmt.Errorf("browser.Open: %w", err)
	}
	switch u.Scheme {
	case "http", "https", "mailto":
	default:
		return "", nil, fmt.Errorf("browser.Open: unsupported scheme %q", u.Scheme)
	}

	switch goos {
	case "darwin":
		return "open", []string{target}, nil
	case "linux", "freebsd", "openbsd", "netbsd":
		return "xdg-open", []string{target}, nil
	case "windows":
		return "rundll32", []string{"url.dll,FileProtocolHandler", target}, nil
	default:
		return "", nil, fmt.Errorf("browser.Open: unsupported OS: %s", goos)
	}
}
