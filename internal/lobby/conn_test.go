package lobby

import (
	"bytes"
	"encoding/binary"
	"errors"
	"net"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/wormnetgo/server/internal/protocol"
	"github.com/wormnetgo/server/internal/registry"
	"github.com/wormnetgo/server/internal/testutil"
)

// startConn запускает serve() на серверной стороне pipe и возвращает
// клиентскую сторону. Pump не стартует: отправленное копится в mailbox.
func startConn(t *testing.T, reg *registry.Registry, cfg timers, perSecond, strikes int) (net.Conn, *Conn, chan error) {
	t.Helper()

	client, server := testutil.PipeConn(t)
	mb := newMailbox(128)
	c := newConn(server, testPeer, reg, NewHandler(reg), mb, cfg, perSecond, strikes)

	errCh := make(chan error, 1)
	go func() { errCh <- c.serve() }()
	return client, c, errCh
}

func waitServe(t *testing.T, errCh chan error) error {
	t.Helper()

	select {
	case err := <-errCh:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("serve did not exit")
		return nil
	}
}

func TestConnServe_LoginThenCleanHangup(t *testing.T) {
	reg := registry.New()
	client, c, errCh := startConn(t, reg, timers{loginTimeout: time.Second, idleTimeout: time.Second}, 100, 10)

	if _, err := client.Write(testutil.MakeLoginFrame("boggy", 0)); err != nil {
		t.Fatalf("write login: %v", err)
	}

	testutil.WaitForCleanup(t, func() bool {
		return c.State() == StateAuthenticated
	}, 2*time.Second)

	pkts := drainFrames(t, c.mb)
	if len(pkts) != 2 {
		t.Fatalf("queued %d frames, want announce + reply", len(pkts))
	}
	testutil.RequireCode(t, protocol.CodeLogin, pkts[0])
	testutil.RequireCode(t, protocol.CodeLoginReply, pkts[1])

	if !reg.NameInUse("boggy") {
		t.Error("user not registered after login")
	}
	if c.userID < registry.IDStart {
		t.Errorf("userID = %#x, want at least %#x", c.userID, registry.IDStart)
	}

	// Аккуратный уход: peer просто закрыл сокет
	client.Close()
	if err := waitServe(t, errCh); err != nil {
		t.Fatalf("serve = %v, want nil on clean hangup", err)
	}
}

func TestConnServe_FirstFrameMustBeLogin(t *testing.T) {
	client, c, errCh := startConn(t, registry.New(), timers{loginTimeout: time.Second, idleTimeout: time.Second}, 100, 10)

	if _, err := client.Write(testutil.MakeListRoomsFrame()); err != nil {
		t.Fatalf("write: %v", err)
	}

	err := waitServe(t, errCh)
	if err == nil {
		t.Fatal("serve accepted a non-Login first frame")
	}
	if c.State() != StateUnauthenticated {
		t.Errorf("state = %v, want UNAUTHENTICATED", c.State())
	}
}

func TestConnServe_SilentPeerTimesOut(t *testing.T) {
	_, _, errCh := startConn(t, registry.New(), timers{loginTimeout: 50 * time.Millisecond, idleTimeout: time.Second}, 100, 10)

	err := waitServe(t, errCh)
	if !errors.Is(err, os.ErrDeadlineExceeded) {
		t.Fatalf("serve = %v, want deadline error", err)
	}
}

func TestConnServe_RefusedNameStopsConnection(t *testing.T) {
	reg := registry.New()
	h := NewHandler(reg)
	loginUser(t, h, "taken")

	client, c, errCh := startConn(t, reg, timers{loginTimeout: time.Second, idleTimeout: time.Second}, 100, 10)
	if _, err := client.Write(testutil.MakeLoginFrame("TAKEN", 0)); err != nil {
		t.Fatalf("write login: %v", err)
	}

	err := waitServe(t, errCh)
	if !errors.Is(err, errLoginRefused) {
		t.Fatalf("serve = %v, want errLoginRefused", err)
	}

	pkts := drainFrames(t, c.mb)
	if len(pkts) != 1 {
		t.Fatalf("queued %d frames, want the refusal alone", len(pkts))
	}
	testutil.RequireCode(t, protocol.CodeLoginReply, pkts[0])
	testutil.RequireErrorCode(t, 1, pkts[0])
}

func TestConnServe_FrameFloodKillsConnection(t *testing.T) {
	reg := registry.New()
	// Нулевая квота и один strike: первый же frame после login — перебор
	client, _, errCh := startConn(t, reg, timers{loginTimeout: time.Second, idleTimeout: time.Second}, 0, 1)

	if _, err := client.Write(testutil.MakeLoginFrame("flooder", 0)); err != nil {
		t.Fatalf("write login: %v", err)
	}
	if _, err := client.Write(testutil.MakeListRoomsFrame()); err != nil {
		t.Fatalf("write: %v", err)
	}

	err := waitServe(t, errCh)
	if err == nil || !strings.Contains(err.Error(), "abuse") {
		t.Fatalf("serve = %v, want frame rate abuse", err)
	}
}

func TestConnServe_IdleAuthenticatedTimesOut(t *testing.T) {
	client, _, errCh := startConn(t, registry.New(), timers{loginTimeout: time.Second, idleTimeout: 80 * time.Millisecond}, 100, 10)

	if _, err := client.Write(testutil.MakeLoginFrame("idler", 0)); err != nil {
		t.Fatalf("write login: %v", err)
	}

	err := waitServe(t, errCh)
	if !errors.Is(err, os.ErrDeadlineExceeded) {
		t.Fatalf("serve = %v, want deadline error", err)
	}
}

func TestConnServe_MalformedFrameKills(t *testing.T) {
	client, _, errCh := startConn(t, registry.New(), timers{loginTimeout: time.Second, idleTimeout: time.Second}, 100, 10)

	// Заявленная длина Data выше потолка
	frame := make([]byte, 12)
	binary.LittleEndian.PutUint32(frame[0:4], 600)
	binary.LittleEndian.PutUint32(frame[4:8], 1<<5) // flag DataLength
	binary.LittleEndian.PutUint32(frame[8:12], 0x300)
	if _, err := client.Write(frame); err != nil {
		t.Fatalf("write: %v", err)
	}

	err := waitServe(t, errCh)
	if !errors.Is(err, protocol.ErrDataTooLong) {
		t.Fatalf("serve = %v, want ErrDataTooLong", err)
	}
}

func TestConnServe_FragmentedFrameAssembled(t *testing.T) {
	client, c, _ := startConn(t, registry.New(), timers{loginTimeout: time.Second, idleTimeout: time.Second}, 100, 10)

	// Pipe синхронный: второй Write не начнётся, пока serve не прочитал
	// первый кусок, так что фрагментация гарантирована.
	frame := testutil.MakeLoginFrame("chunky", 0)
	half := len(frame) / 2

	if _, err := client.Write(frame[:half]); err != nil {
		t.Fatalf("write first chunk: %v", err)
	}
	if _, err := client.Write(frame[half:]); err != nil {
		t.Fatalf("write second chunk: %v", err)
	}

	testutil.WaitForCleanup(t, func() bool {
		return c.State() == StateAuthenticated
	}, 2*time.Second)
}

func TestTeardown_FlushesQueuedFrames(t *testing.T) {
	reg := registry.New()
	client, server := testutil.PipeConn(t)

	mb := newMailbox(16)
	pumpDone := make(chan struct{})
	go func() {
		defer close(pumpDone)
		mb.pump(server, 50, time.Second)
	}()

	c := newConn(server, testPeer, reg, NewHandler(reg), mb, timers{loginTimeout: time.Second, idleTimeout: time.Second}, 100, 10)

	frameA := []byte{0x01, 0x02}
	frameB := []byte{0x03, 0x04}
	if err := mb.Send(frameA); err != nil {
		t.Fatalf("send: %v", err)
	}
	if err := mb.Send(frameB); err != nil {
		t.Fatalf("send: %v", err)
	}

	got := make(chan []byte, 1)
	go func() {
		var all []byte
		buf := make([]byte, 256)
		for {
			n, err := client.Read(buf)
			all = append(all, buf[:n]...)
			if err != nil {
				break
			}
		}
		got <- all
	}()

	// userID нулевой: каскада по registry не будет, только слив очереди
	c.teardown(false, pumpDone)

	select {
	case all := <-got:
		want := []byte{0x01, 0x02, 0x03, 0x04}
		if !bytes.Equal(all, want) {
			t.Fatalf("flushed % x, want % x", all, want)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("queued frames never reached the peer")
	}

	if c.State() != StateDraining {
		t.Errorf("state = %v, want DRAINING", c.State())
	}
}
