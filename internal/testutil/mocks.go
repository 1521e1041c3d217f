package testutil

import (
	"net"
	"time"
)

// MockConn — mock для net.Conn, используется в unit тестах. Write
// мгновенно складывает байты в буфер, поэтому flush-пути можно гонять
// синхронно, без читателя на другом конце.
//
// Не потокобезопасен: вызывающий обязан не трогать Written, пока другая
// goroutine пишет.
type MockConn struct {
	readBuf  []byte
	writeBuf []byte
}

// NewMockConn создаёт новый MockConn экземпляр.
func NewMockConn() *MockConn {
	return &MockConn{
		readBuf:  make([]byte, 0),
		writeBuf: make([]byte, 0),
	}
}

// Read читает данные из readBuf.
func (m *MockConn) Read(b []byte) (int, error) {
	n := copy(b, m.readBuf)
	m.readBuf = m.readBuf[n:]
	return n, nil
}

// Write записывает данные в writeBuf.
func (m *MockConn) Write(b []byte) (int, error) {
	m.writeBuf = append(m.writeBuf, b...)
	return len(b), nil
}

// Written возвращает всё записанное с момента создания.
func (m *MockConn) Written() []byte {
	return m.writeBuf
}

// Close закрывает соединение (no-op).
func (m *MockConn) Close() error {
	return nil
}

// LocalAddr возвращает локальный адрес (mock).
func (m *MockConn) LocalAddr() net.Addr {
	return &mockAddr{network: "tcp", address: "127.0.0.1:17000"}
}

// RemoteAddr возвращает удалённый адрес (mock).
func (m *MockConn) RemoteAddr() net.Addr {
	return &mockAddr{network: "tcp", address: "192.168.1.100:12345"}
}

// SetDeadline устанавливает deadline (no-op).
func (m *MockConn) SetDeadline(t time.Time) error {
	return nil
}

// SetReadDeadline устанавливает read deadline (no-op).
func (m *MockConn) SetReadDeadline(t time.Time) error {
	return nil
}

// SetWriteDeadline устанавливает write deadline (no-op).
func (m *MockConn) SetWriteDeadline(t time.Time) error {
	return nil
}

// mockAddr — mock для net.Addr.
type mockAddr struct {
	network string
	address string
}

// Network возвращает имя сети.
func (a *mockAddr) Network() string {
	return a.network
}

// String возвращает строковое представление адреса.
func (a *mockAddr) String() string {
	return a.address
}
