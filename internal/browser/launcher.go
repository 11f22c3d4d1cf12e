// Package browser opens the wallet popup as an app-style browser window and
// adapts the wallet's websocket session into the popup.Window the lifecycle
// manager tracks.
package browser

import (
	"fmt"
	"log"
	"os/exec"
	"runtime"

	"github.com/blendizzard/walletbridge/internal/popup"
	"github.com/blendizzard/walletbridge/internal/protocol"
	"github.com/blendizzard/walletbridge/internal/ws"
)

// Launcher implements popup.Opener by execing a browser. The window it
// returns speaks to the wallet page through the bridge's websocket endpoint,
// which the page connects back to after loading.
type Launcher struct {
	endpoint *ws.Endpoint
	// Binary overrides browser discovery when set (config knob).
	Binary string
}

func NewLauncher(endpoint *ws.Endpoint) *Launcher {
	return &Launcher{endpoint: endpoint}
}

func (l *Launcher) Open(url string, f popup.Features) (popup.Window, error) {
	// New popup episode: a session left over from the previous window must
	// not satisfy this one's readiness or post path.
	l.endpoint.Reset()

	cmd, err := l.command(url, f)
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}
	// The browser usually hands the window to an existing process and this
	// child exits immediately, so the process handle is not a lifecycle
	// signal. Reap it and watch the session instead.
	go func() { _ = cmd.Wait() }()

	return &window{endpoint: l.endpoint, url: url}, nil
}

// command builds the launch invocation. Chromium-family browsers get a real
// popup-styled app window with geometry; anything else opens a plain tab and
// the wallet page sizes itself.
func (l *Launcher) command(url string, f popup.Features) (*exec.Cmd, error) {
	appArgs := []string{
		"--app=" + url,
		fmt.Sprintf("--window-size=%d,%d", f.Width, f.Height),
		fmt.Sprintf("--window-position=%d,%d", f.Left, f.Top),
	}

	if l.Binary != "" {
		return exec.Command(l.Binary, appArgs...), nil
	}

	for _, name := range []string{"google-chrome", "chromium", "chromium-browser", "msedge", "brave-browser"} {
		if path, err := exec.LookPath(name); err == nil {
			return exec.Command(path, appArgs...), nil
		}
	}

	switch runtime.GOOS {
	case "darwin":
		return exec.Command("open", url), nil
	case "windows":
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", url), nil
	default:
		if path, err := exec.LookPath("xdg-open"); err == nil {
			return exec.Command(path, url), nil
		}
	}
	return nil, fmt.Errorf("no browser found for %s", runtime.GOOS)
}

// window is the browser-backed popup.Window. Posting goes through the wallet
// session; closed-ness is the session having come and gone.
type window struct {
	endpoint *ws.Endpoint
	url      string
}

func (w *window) Post(msg protocol.Message) error {
	return w.endpoint.Post(msg)
}

// Focus is best effort: there is no portable way to raise another process's
// window, so the wallet page self-raises when it receives traffic.
func (w *window) Focus() {
	log.Printf("focus popup: url=%s", w.url)
}

func (w *window) Closed() bool {
	return w.endpoint.Lost()
}

func (w *window) Close() {
	w.endpoint.CloseSession()
}
