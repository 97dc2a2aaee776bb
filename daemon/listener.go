package daemon

import (
	"net"
	"os"
	"time"

	hamrerrors "github.com/hamr-launcher/hamrd/errors"
)

// staleConnectTimeout bounds the "is a live daemon already listening here?"
// probe dial, so a genuinely stale socket file doesn't hang startup.
const staleConnectTimeout = 200 * time.Millisecond

// bindSocket creates the Unix-domain listener at path, mode 0600, per
// spec.md §5. If a socket file already exists there, it first tries to
// connect to it: success means a live daemon owns it (fatal, per the
// startup error table); failure means the file is stale and is unlinked
// before binding.
func bindSocket(path string) (net.Listener, error) {
	if _, err := os.Stat(path); err == nil {
		if probeConn, dialErr := net.DialTimeout("unix", path, staleConnectTimeout); dialErr == nil {
			probeConn.Close()
			return nil, hamrerrors.Newf("daemon already running at %s", path)
		}
		if err := os.Remove(path); err != nil {
			return nil, hamrerrors.Wrapf(err, "removing stale socket %s", path)
		}
	}

	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, hamrerrors.Wrapf(err, "binding socket %s", path)
	}
	if err := os.Chmod(path, 0o600); err != nil {
		ln.Close()
		return nil, hamrerrors.Wrapf(err, "chmod socket %s", path)
	}
	return ln, nil
}
