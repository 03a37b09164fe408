package source

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"path"
	"strings"
	"sync"
	"time"

	smb2 "github.com/cloudsoda/go-smb2"

	"github.com/TransportDebuger/filterservice/internal/config"
	"github.com/TransportDebuger/filterservice/internal/fserrors"
	"github.com/TransportDebuger/filterservice/internal/logging"
	"github.com/TransportDebuger/filterservice/internal/monitor"
)

// smbAdapter is the SMB kind. Unlike the original C++ service (which shells
// out to mount.cifs and then treats the mount point as LOCAL), this adapter
// uses a native SMB2 client (grounded on rclone's backend/smb connection
// pool) so connecting never requires root/CAP_SYS_ADMIN or an external
// mount binary — see DESIGN.md's Open Question on this substitution.
type smbAdapter struct {
	desc config.SourceDescriptor
	log  *logging.Facade
	mask *maskMatcher

	host, share, domain, user, pass string

	mu        sync.Mutex
	conn      net.Conn
	session   *smb2.Session
	tree      *smb2.Share
	connected bool
	mon       *monitor.Monitor
	cb        monitor.Callback
}

func newSMBAdapter(desc config.SourceDescriptor, log *logging.Facade) *smbAdapter {
	host, share := parseSMBLocation(desc.Location)
	domain := desc.Params["domain"]
	if domain == "" {
		domain = "WORKGROUP"
	}
	return &smbAdapter{
		desc:   desc,
		log:    log,
		mask:   compileMask(desc.FileMask),
		host:   host,
		share:  share,
		domain: domain,
		user:   desc.Params["username"],
		pass:   desc.Params["password"],
	}
}

// parseSMBLocation splits "smb://host[:port]/share" into host and share.
func parseSMBLocation(loc string) (host, share string) {
	trimmed := strings.TrimPrefix(loc, "smb://")
	parts := strings.SplitN(trimmed, "/", 2)
	host = parts[0]
	if len(parts) > 1 {
		share = parts[1]
	}
	return host, share
}

func (a *smbAdapter) addr() string {
	host := a.host
	if !strings.Contains(host, ":") {
		port := a.desc.Params["port"]
		if port == "" {
			port = "445"
		}
		host = net.JoinHostPort(host, port)
	}
	return host
}

// Connect best-effort pings the host, then performs the SMB2 negotiate +
// session setup + tree connect (§4.C).
func (a *smbAdapter) Connect() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	pingConn, pingErr := net.DialTimeout("tcp", a.addr(), dialTimeout)
	if pingErr == nil {
		pingConn.Close()
	} else {
		a.log.Warningf("smb: ping to %s failed (continuing): %v", a.addr(), pingErr)
	}

	conn, err := net.Dial("tcp", a.addr())
	if err != nil {
		return fserrors.NewAdapter(fserrors.AdapterUnavailable, "smb.connect", a.addr(), err)
	}

	d := &smb2.Dialer{
		Initiator: &smb2.NTLMInitiator{
			User:     a.user,
			Password: a.pass,
			Domain:   a.domain,
		},
	}
	session, err := d.DialConn(context.Background(), conn, a.addr())
	if err != nil {
		conn.Close()
		return fserrors.Fatal(fserrors.NewAdapter(fserrors.AdapterAuth, "smb.connect", a.addr(), err))
	}
	tree, err := session.Mount(a.share)
	if err != nil {
		session.Logoff()
		conn.Close()
		return fserrors.NewAdapter(fserrors.AdapterIo, "smb.connect", a.share, err)
	}

	a.conn, a.session, a.tree = conn, session, tree
	a.connected = true
	return nil
}

func (a *smbAdapter) Disconnect() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.tree != nil {
		a.tree.Umount()
		a.tree = nil
	}
	if a.session != nil {
		a.session.Logoff()
		a.session = nil
	}
	if a.conn != nil {
		a.conn.Close()
		a.conn = nil
	}
	a.connected = false
	return nil
}

func (a *smbAdapter) IsConnected() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.connected
}

func (a *smbAdapter) List(subpath string) ([]string, error) {
	a.mu.Lock()
	tree := a.tree
	a.mu.Unlock()
	if tree == nil {
		return nil, fserrors.NewAdapter(fserrors.AdapterUnavailable, "smb.list", subpath, fmt.Errorf("not connected"))
	}
	entries, err := tree.ReadDir(subpath)
	if err != nil {
		return nil, fserrors.NewAdapter(fserrors.AdapterIo, "smb.list", subpath, err)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if !a.mask.Match(e.Name()) {
			continue
		}
		out = append(out, path.Join(subpath, e.Name()))
	}
	return out, nil
}

func (a *smbAdapter) Get(remote, local string) error {
	a.mu.Lock()
	tree := a.tree
	a.mu.Unlock()
	if tree == nil {
		return fserrors.NewAdapter(fserrors.AdapterUnavailable, "smb.get", remote, fmt.Errorf("not connected"))
	}
	rf, err := tree.Open(remote)
	if err != nil {
		return fserrors.NewAdapter(fserrors.AdapterIo, "smb.get", remote, err)
	}
	defer rf.Close()
	if err := os.MkdirAll(path.Dir(local), 0o755); err != nil {
		return fserrors.NewAdapter(fserrors.AdapterIo, "smb.get", local, err)
	}
	lf, err := os.Create(local)
	if err != nil {
		return fserrors.NewAdapter(fserrors.AdapterIo, "smb.get", local, err)
	}
	defer lf.Close()
	if _, err := io.Copy(lf, rf); err != nil {
		return fserrors.NewAdapter(fserrors.AdapterIo, "smb.get", local, err)
	}
	return nil
}

func (a *smbAdapter) Put(local, remote string) error {
	a.mu.Lock()
	tree := a.tree
	a.mu.Unlock()
	if tree == nil {
		return fserrors.NewAdapter(fserrors.AdapterUnavailable, "smb.put", remote, fmt.Errorf("not connected"))
	}
	lf, err := os.Open(local)
	if err != nil {
		return fserrors.NewAdapter(fserrors.AdapterIo, "smb.put", local, err)
	}
	defer lf.Close()
	_ = tree.MkdirAll(path.Dir(remote), 0o755)
	rf, err := tree.OpenFile(remote, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fserrors.NewAdapter(fserrors.AdapterIo, "smb.put", remote, err)
	}
	defer rf.Close()
	if _, err := io.Copy(rf, lf); err != nil {
		return fserrors.NewAdapter(fserrors.AdapterIo, "smb.put", remote, err)
	}
	return nil
}

func (a *smbAdapter) SetCallback(cb monitor.Callback) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.cb = cb
}

// smbLister adapts smbAdapter.List to monitor.Lister for polling mode,
// since SMB shares are not guaranteed to be locally mountable for fsnotify.
type smbLister struct{ a *smbAdapter }

func (l smbLister) List() ([]string, error) { return l.a.List("") }

// StartMonitoring polls the share every CheckInterval, since a remote SMB
// share cannot be watched with inotify-style native events (§4.B treats SMB
// as native-watch only when mounted locally; this adapter connects over the
// wire instead, so it uses polling — documented in DESIGN.md).
func (a *smbAdapter) StartMonitoring() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cb == nil {
		return fmt.Errorf("smb: SetCallback must be called before StartMonitoring")
	}
	a.mon = monitor.New(a.desc.Location, a.desc.CheckInterval, smbLister{a}, a.log, a.cb)
	a.mon.Start()
	return nil
}

func (a *smbAdapter) StopMonitoring() {
	a.mu.Lock()
	mon := a.mon
	a.mu.Unlock()
	if mon != nil {
		mon.Stop()
	}
}

const dialTimeout = 5 * time.Second
