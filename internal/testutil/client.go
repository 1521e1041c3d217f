package testutil

import (
	"fmt"
	"math/rand/v2"
	"net"
	"testing"
	"time"

	"github.com/wormnetgo/server/internal/protocol"
)

// LobbyClient упрощает написание integration тестов для лобби-сервера.
// Управляет подключением, сборкой request frames и чтением ответов.
type LobbyClient struct {
	t       testing.TB
	conn    net.Conn
	readBuf []byte // накопленные, ещё не декодированные байты
	timeout time.Duration

	userID uint32 // присвоен сервером после Login
}

// NewLobbyClient создаёт LobbyClient и подключается к серверу по
// указанному адресу. Использует t.Cleanup() для автоматического
// закрытия соединения.
func NewLobbyClient(t testing.TB, addr string) (*LobbyClient, error) {
	t.Helper()

	// Retry dial с экспоненциальным бэкофф + jitter: macOS TCP стек может
	// не успевать освободить порты при массовых подключениях
	var conn net.Conn
	var err error
	for attempt := range 10 {
		conn, err = net.DialTimeout("tcp", addr, 5*time.Second)
		if err == nil {
			break
		}
		if attempt < 9 {
			base := time.Duration(20<<min(attempt, 6)) * time.Millisecond // 20, 40, 80, ..., 1280ms
			time.Sleep(base + rand.N(base/2))
		}
	}
	if err != nil {
		return nil, fmt.Errorf("dial lobby server: %w", err)
	}

	// SO_LINGER=0: немедленный RST вместо TIME_WAIT, предотвращает исчерпание эфемерных портов в тестах
	if tcpConn, ok := conn.(*net.TCPConn); ok {
		if err := tcpConn.SetLinger(0); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("set linger: %w", err)
		}
	}

	client := &LobbyClient{
		t:       t,
		conn:    conn,
		timeout: 5 * time.Second,
	}

	t.Cleanup(func() {
		_ = client.Close()
	})

	return client, nil
}

// Close закрывает соединение с сервером.
func (c *LobbyClient) Close() error {
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// UserID возвращает ID, присвоенный сервером при Login.
func (c *LobbyClient) UserID() uint32 {
	return c.userID
}

// Send отправляет готовый frame серверу.
func (c *LobbyClient) Send(frame []byte) error {
	c.t.Helper()

	if err := c.conn.SetWriteDeadline(time.Now().Add(c.timeout)); err != nil {
		return fmt.Errorf("set write deadline: %w", err)
	}
	if _, err := c.conn.Write(frame); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// ReadPacket читает один frame от сервера, докачивая байты по мере
// необходимости.
func (c *LobbyClient) ReadPacket() (*protocol.Packet, error) {
	c.t.Helper()

	if err := c.conn.SetReadDeadline(time.Now().Add(c.timeout)); err != nil {
		return nil, fmt.Errorf("set read deadline: %w", err)
	}

	scratch := make([]byte, 2048)
	for {
		pkt, n, err := protocol.Decode(c.readBuf)
		if err != nil {
			return nil, fmt.Errorf("malformed frame: %w\n%s", err, DumpFrame(c.readBuf))
		}
		if pkt != nil {
			c.readBuf = c.readBuf[n:]
			return pkt, nil
		}

		n, err = c.conn.Read(scratch)
		if n > 0 {
			c.readBuf = append(c.readBuf, scratch[:n]...)
		}
		if err != nil {
			return nil, fmt.Errorf("read frame: %w", err)
		}
	}
}

// Expect читает один пакет и проверяет его verb.
func (c *LobbyClient) Expect(code protocol.Code) (*protocol.Packet, error) {
	c.t.Helper()

	pkt, err := c.ReadPacket()
	if err != nil {
		return nil, fmt.Errorf("expect %s: %w", code, err)
	}
	if pkt.Code() != code {
		return nil, fmt.Errorf("expected %s, got %s", code, pkt.Code())
	}
	return pkt, nil
}

// Login регистрирует клиента в лобби и возвращает присвоенный ID.
// При успехе сервер сначала шлёт Login announce всем, включая автора,
// и только затем LoginReply — оба поглощаются здесь. Отказ (единственный
// LoginReply с ненулевым кодом) возвращается как ошибка.
func (c *LobbyClient) Login(name string) (uint32, error) {
	c.t.Helper()

	if err := c.Send(MakeLoginFrame(name, 0)); err != nil {
		return 0, err
	}

	pkt, err := c.ReadPacket()
	if err != nil {
		return 0, fmt.Errorf("read login response: %w", err)
	}

	switch pkt.Code() {
	case protocol.CodeLogin:
		reply, err := c.Expect(protocol.CodeLoginReply)
		if err != nil {
			return 0, err
		}
		if code, _ := reply.ErrorCode(); code != 0 {
			return 0, fmt.Errorf("login refused, error %d", code)
		}
		id, ok := reply.Value1()
		if !ok {
			return 0, fmt.Errorf("login reply without value1")
		}
		c.userID = id
		return id, nil

	case protocol.CodeLoginReply:
		code, _ := pkt.ErrorCode()
		return 0, fmt.Errorf("login refused, error %d", code)

	default:
		return 0, fmt.Errorf("expected Login or LoginReply, got %s", pkt.Code())
	}
}

// MustLogin — Login, падающий тестом при любой ошибке.
func (c *LobbyClient) MustLogin(name string) uint32 {
	c.t.Helper()

	id, err := c.Login(name)
	if err != nil {
		c.t.Fatalf("login %q: %v", name, err)
	}
	return id
}

// ReadList читает ListItem frames до ListEnd и возвращает их.
func (c *LobbyClient) ReadList() ([]*protocol.Packet, error) {
	c.t.Helper()

	var items []*protocol.Packet
	for {
		pkt, err := c.ReadPacket()
		if err != nil {
			return nil, fmt.Errorf("read list: %w", err)
		}
		switch pkt.Code() {
		case protocol.CodeListItem:
			items = append(items, pkt)
		case protocol.CodeListEnd:
			return items, nil
		default:
			return nil, fmt.Errorf("expected ListItem or ListEnd, got %s", pkt.Code())
		}
	}
}
