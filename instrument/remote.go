package risonanza

/*

	Remote manages the marcos server on the controller board itself:
	flashing the FPGA, building the server from source, starting and
	stopping it. Everything runs over SSH as root, the way the
	boards ship.

*/

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"
)

var (
	marcosServerURL = "https://github.com/vnegnev/marcos_server/archive/refs/heads/master.zip"
	marcosExtrasURL = "https://github.com/vnegnev/marcos_extras/raw/master/"
)

// fetchClient pulls build artifacts, generous timeout for slow links
var fetchClient = &http.Client{Timeout: 60 * time.Second}

// Runner executes commands on the controller board.
type Runner interface {
	Run(cmd string) (string, error)
	Put(src io.Reader, remotePath string) error
	Close() error
}

type sshRunner struct {
	client *ssh.Client
}

func dialSSH(addr, user, password string) (Runner, error) {
	cfg := &ssh.ClientConfig{
		User: user,
		Auth: []ssh.AuthMethod{ssh.Password(password)},
		// Boards ship with throwaway host keys
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         dialTimeout,
	}

	client, err := ssh.Dial("tcp", addr, cfg)
	if err != nil {
		slog.Error("Could not reach the board over SSH",
			slog.String("addr", addr),
			slog.Any("Error", err))
		return nil, fmt.Errorf("ssh %s: %w", addr, err)
	}

	return &sshRunner{client: client}, nil
}

func (sr *sshRunner) Run(cmd string) (string, error) {
	session, err := sr.client.NewSession()
	if err != nil {
		return "", fmt.Errorf("ssh session: %w", err)
	}
	defer session.Close()

	var out bytes.Buffer
	session.Stdout = &out
	session.Stderr = &out
	err = session.Run(cmd)

	return out.String(), err
}

func (sr *sshRunner) Put(src io.Reader, remotePath string) error {
	session, err := sr.client.NewSession()
	if err != nil {
		return fmt.Errorf("ssh session: %w", err)
	}
	defer session.Close()

	session.Stdin = src
	if err := session.Run(fmt.Sprintf("cat > %s", remotePath)); err != nil {
		return fmt.Errorf("writing %s: %w", remotePath, err)
	}

	return nil
}

func (sr *sshRunner) Close() error { return sr.client.Close() }

// Remote is the management handle for one controller board.
type Remote struct {
	Addr string
	dial func() (Runner, error)
}

func NewRemote(cs ConnectionSettings, user, password string) *Remote {
	addr := net.JoinHostPort(cs.Addr, "22")
	return &Remote{
		Addr: addr,
		dial: func() (Runner, error) { return dialSSH(addr, user, password) },
	}
}

// NewRemoteWithRunner skips SSH, tests use this with a fake.
func NewRemoteWithRunner(r Runner) *Remote {
	return &Remote{dial: func() (Runner, error) { return r, nil }}
}

// FlashFPGA loads the marcos bitstream. A stock Red Pitaya image
// takes it straight through xdevcfg, the OCRA images want the
// firmware manager with a device tree overlay.
func (rm *Remote) FlashFPGA(model string) error {
	if model == "" {
		model = "rp-122"
	}

	r, err := rm.dial()
	if err != nil {
		return err
	}
	defer r.Close()

	running, err := isRunning(r)
	if err != nil {
		return err
	}
	if running {
		slog.Warn("Server is running, stopping it before flashing")
		stop(r)
	}

	stock, err := remoteFileExists(r, "/opt/redpitaya/version.txt")
	if err != nil {
		return err
	}

	if stock {
		bit, err := transferURL(UrlCat(marcosExtrasURL, "marcos_fpga_", model, ".bit"))
		if err != nil {
			return err
		}
		if err := r.Put(bytes.NewReader(bit), "/tmp/marcos_fpga.bit"); err != nil {
			return err
		}
		if _, err := r.Run("cat /tmp/marcos_fpga.bit > /dev/xdevcfg"); err != nil {
			return fmt.Errorf("flashing bitstream: %w", err)
		}
	} else {
		for _, ext := range []string{".bit.bin", ".dtbo"} {
			blob, err := transferURL(UrlCat(marcosExtrasURL, "marcos_fpga_", model, ext))
			if err != nil {
				return err
			}
			if err := r.Put(bytes.NewReader(blob), "/lib/firmware/marcos_fpga"+ext); err != nil {
				return err
			}
		}
		overlay := []string{
			"mkdir -p /sys/kernel/config/device-tree/overlays/marcos",
			"echo marcos_fpga.dtbo > /sys/kernel/config/device-tree/overlays/marcos/path",
		}
		for _, cmd := range overlay {
			if _, err := r.Run(cmd); err != nil {
				return fmt.Errorf("loading overlay: %w", err)
			}
		}
	}

	slog.Info("FPGA flashed", slog.String("model", model))
	return nil
}

// Setup builds the marcos server from source on the board.
func (rm *Remote) Setup() error {
	r, err := rm.dial()
	if err != nil {
		return err
	}
	defer r.Close()

	// Board clocks drift badly without NTP, set the date first
	date := time.Now().UTC().Format("2006-01-02 15:04:05")
	if _, err := r.Run(fmt.Sprintf("date -u -s '%s'", date)); err != nil {
		return fmt.Errorf("setting board date: %w", err)
	}

	zip, err := transferURL(marcosServerURL)
	if err != nil {
		return err
	}
	if err := r.Put(bytes.NewReader(zip), "/tmp/marcos_server.zip"); err != nil {
		return err
	}

	build := []string{
		"cd /tmp && unzip -o marcos_server.zip",
		"cd /tmp/marcos_server-master && mkdir -p build && cd build && cmake ../src && make -j2",
		"cp /tmp/marcos_server-master/build/marcos_server ~",
	}
	for _, cmd := range build {
		out, err := r.Run(cmd)
		if err != nil {
			return fmt.Errorf("%s: %w (%s)", cmd, err, strings.TrimSpace(out))
		}
	}

	slog.Info("Server built and installed", slog.String("addr", rm.Addr))
	return nil
}

func (rm *Remote) Start() error {
	r, err := rm.dial()
	if err != nil {
		return err
	}
	defer r.Close()

	if _, err := r.Run("nohup ~/marcos_server > /tmp/marcos_server.log 2>&1 &"); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}

	slog.Info("Server started", slog.String("addr", rm.Addr))
	return nil
}

func (rm *Remote) Stop() error {
	r, err := rm.dial()
	if err != nil {
		return err
	}
	defer r.Close()

	return stop(r)
}

func (rm *Remote) IsRunning() (bool, error) {
	r, err := rm.dial()
	if err != nil {
		return false, err
	}
	defer r.Close()

	return isRunning(r)
}

func stop(r Runner) error {
	// pkill exits nonzero when nothing matched, that is not a failure
	if _, err := r.Run("pkill marcos_server"); err != nil {
		slog.Warn("Server was not running")
	}
	return nil
}

func isRunning(r Runner) (bool, error) {
	out, err := r.Run("pgrep marcos_server")
	if strings.TrimSpace(out) == "" {
		// pgrep exits nonzero on no match, the empty output decides
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func remoteFileExists(r Runner, path string) (bool, error) {
	out, err := r.Run(fmt.Sprintf("test -f %s && echo yes || echo no", path))
	if err != nil {
		return false, fmt.Errorf("checking %s: %w", path, err)
	}
	return strings.TrimSpace(out) == "yes", nil
}

// transferURL downloads one build artifact into memory.
func transferURL(url string) ([]byte, error) {
	resp, err := fetchClient.Get(url)
	if err != nil {
		slog.Error("Fetch Error", slog.Any("Error", err))
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching %s: %s", url, resp.Status)
	}

	return io.ReadAll(resp.Body)
}
