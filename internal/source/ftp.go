package source

import (
	"fmt"
	"io"
	"os"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/jlaffaye/ftp"

	"github.com/TransportDebuger/filterservice/internal/config"
	"github.com/TransportDebuger/filterservice/internal/fserrors"
	"github.com/TransportDebuger/filterservice/internal/logging"
	"github.com/TransportDebuger/filterservice/internal/monitor"
)

// ftpAdapter is the FTP kind: all operations route through
// github.com/jlaffaye/ftp, the client rclone's backend/ftp uses (§4.C).
type ftpAdapter struct {
	desc config.SourceDescriptor
	log  *logging.Facade
	mask *maskMatcher

	host, user, pass string

	mu        sync.Mutex
	conn      *ftp.ServerConn
	connected bool
	mon       *monitor.Monitor
	cb        monitor.Callback
}

func newFTPAdapter(desc config.SourceDescriptor, log *logging.Facade) *ftpAdapter {
	host := strings.TrimPrefix(desc.Location, "ftp://")
	if i := strings.Index(host, "/"); i >= 0 {
		host = host[:i]
	}
	if !strings.Contains(host, ":") {
		port := desc.Params["port"]
		if port == "" {
			port = "21"
		}
		host = host + ":" + port
	}
	return &ftpAdapter{
		desc: desc,
		log:  log,
		mask: compileMask(desc.FileMask),
		host: host,
		user: desc.Params["username"],
		pass: desc.Params["password"],
	}
}

// remoteRoot returns the remote path component of Location (after
// scheme://host[:port]/).
func (a *ftpAdapter) remoteRoot() string {
	trimmed := strings.TrimPrefix(a.desc.Location, "ftp://")
	if i := strings.Index(trimmed, "/"); i >= 0 {
		return trimmed[i:]
	}
	return "/"
}

// Connect attempts a directory listing with credentials; failure
// propagates (§4.C).
func (a *ftpAdapter) Connect() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	c, err := ftp.Dial(a.host, ftp.DialWithTimeout(15*time.Second))
	if err != nil {
		return fserrors.NewAdapter(fserrors.AdapterUnavailable, "ftp.connect", a.host, err)
	}
	if err := c.Login(a.user, a.pass); err != nil {
		_ = c.Quit()
		return fserrors.Fatal(fserrors.NewAdapter(fserrors.AdapterAuth, "ftp.connect", a.host, err))
	}
	if _, err := c.List(a.remoteRoot()); err != nil {
		_ = c.Quit()
		return fserrors.NewAdapter(fserrors.AdapterIo, "ftp.connect", a.remoteRoot(), err)
	}
	a.conn = c
	a.connected = true
	return nil
}

func (a *ftpAdapter) Disconnect() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.conn != nil {
		_ = a.conn.Quit()
		a.conn = nil
	}
	a.connected = false
	return nil
}

func (a *ftpAdapter) IsConnected() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.connected
}

func (a *ftpAdapter) List(subpath string) ([]string, error) {
	a.mu.Lock()
	conn := a.conn
	a.mu.Unlock()
	if conn == nil {
		return nil, fserrors.NewAdapter(fserrors.AdapterUnavailable, "ftp.list", subpath, fmt.Errorf("not connected"))
	}
	dir := path.Join(a.remoteRoot(), subpath)
	entries, err := conn.List(dir)
	if err != nil {
		return nil, fserrors.NewAdapter(fserrors.AdapterIo, "ftp.list", dir, err)
	}
	var out []string
	for _, e := range entries {
		if e.Type != ftp.EntryTypeFile {
			continue
		}
		if !a.mask.Match(e.Name) {
			continue
		}
		out = append(out, path.Join(dir, e.Name))
	}
	return out, nil
}

func (a *ftpAdapter) Get(remote, local string) error {
	a.mu.Lock()
	conn := a.conn
	a.mu.Unlock()
	if conn == nil {
		return fserrors.NewAdapter(fserrors.AdapterUnavailable, "ftp.get", remote, fmt.Errorf("not connected"))
	}
	resp, err := conn.Retr(remote)
	if err != nil {
		return fserrors.NewAdapter(fserrors.AdapterIo, "ftp.get", remote, err)
	}
	defer resp.Close()
	if err := os.MkdirAll(path.Dir(local), 0o755); err != nil {
		return fserrors.NewAdapter(fserrors.AdapterIo, "ftp.get", local, err)
	}
	lf, err := os.Create(local)
	if err != nil {
		return fserrors.NewAdapter(fserrors.AdapterIo, "ftp.get", local, err)
	}
	defer lf.Close()
	if _, err := io.Copy(lf, resp); err != nil {
		return fserrors.NewAdapter(fserrors.AdapterIo, "ftp.get", local, err)
	}
	return nil
}

func (a *ftpAdapter) Put(local, remote string) error {
	a.mu.Lock()
	conn := a.conn
	a.mu.Unlock()
	if conn == nil {
		return fserrors.NewAdapter(fserrors.AdapterUnavailable, "ftp.put", remote, fmt.Errorf("not connected"))
	}
	lf, err := os.Open(local)
	if err != nil {
		return fserrors.NewAdapter(fserrors.AdapterIo, "ftp.put", local, err)
	}
	defer lf.Close()
	if err := conn.Stor(remote, lf); err != nil {
		return fserrors.NewAdapter(fserrors.AdapterIo, "ftp.put", remote, err)
	}
	return nil
}

func (a *ftpAdapter) SetCallback(cb monitor.Callback) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.cb = cb
}

type ftpLister struct{ a *ftpAdapter }

func (l ftpLister) List() ([]string, error) { return l.a.List("") }

// StartMonitoring starts the polling mode (§4.B): FTP has no native change
// notification, so the monitor lists remoteRoot() every CheckInterval.
func (a *ftpAdapter) StartMonitoring() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cb == nil {
		return fmt.Errorf("ftp: SetCallback must be called before StartMonitoring")
	}
	a.mon = monitor.New(a.desc.Location, a.desc.CheckInterval, ftpLister{a}, a.log, a.cb)
	a.mon.Start()
	return nil
}

func (a *ftpAdapter) StopMonitoring() {
	a.mu.Lock()
	mon := a.mon
	a.mu.Unlock()
	if mon != nil {
		mon.Stop()
	}
}
