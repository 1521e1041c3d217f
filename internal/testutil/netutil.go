package testutil

import (
	"context"
	"fmt"
	"net"
	"testing"
	"time"
)

// PipeConn создаёт пару net.Conn соединений через net.Pipe для тестирования
// connection runtime без TCP. Автоматически закрывает соединения при
// завершении теста.
func PipeConn(t testing.TB) (client, server net.Conn) {
	t.Helper()

	server, client = net.Pipe()

	t.Cleanup(func() {
		_ = server.Close()
		_ = client.Close()
	})

	return client, server
}

// ListenTCP создаёт TCP listener на случайном порту для тестов.
// Возвращает listener и адрес в формате "host:port".
// Автоматически закрывает listener при завершении теста.
func ListenTCP(t testing.TB) (net.Listener, string) {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to create TCP listener: %v", err)
	}

	t.Cleanup(func() {
		_ = listener.Close()
	})

	return listener, listener.Addr().String()
}

// WaitForTCPReady ждёт пока лобби-сервер станет доступен (polling с timeout).
// Используется вместо time.Sleep для синхронизации в integration тестах.
//
// Пример:
//
//	go server.Serve(ctx, listener)
//	if err := testutil.WaitForTCPReady(addr, 5*time.Second); err != nil {
//	    t.Fatalf("server failed to start: %v", err)
//	}
func WaitForTCPReady(addr string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout waiting for server at %s: %w", addr, ctx.Err())
		case <-ticker.C:
			conn, err := net.DialTimeout("tcp", addr, 50*time.Millisecond)
			if err == nil {
				_ = conn.Close()
				return nil
			}
			// Продолжаем polling если не удалось подключиться
		}
	}
}

// WaitForCleanup ждёт пока cleanup condition будет выполнено (polling с
// timeout). Используется для явной проверки каскада после disconnect:
// регистрация удаляется асинхронно относительно закрытия сокета.
func WaitForCleanup(t testing.TB, check func() bool, timeout time.Duration) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			t.Fatalf("cleanup timeout: condition not met within %v", timeout)
		case <-ticker.C:
			if check() {
				return
			}
		}
	}
}
