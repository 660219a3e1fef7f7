package transport

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithDefaultPort(t *testing.T) {
	assert.Equal(t, "192.168.0.101:2424", WithDefaultPort("192.168.0.101"))
	assert.Equal(t, "board.local:9000", WithDefaultPort("board.local:9000"))
	assert.Equal(t, "[fe80::1]:2424", WithDefaultPort("fe80::1"))
	assert.Equal(t, "board:2424", DialConfig{Address: "board"}.Addr())
}

func TestDialPlainTCP(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		c, err := ln.Accept()
		if err == nil {
			accepted <- c
		}
	}()

	conn, err := Dial(context.Background(), DialConfig{Address: ln.Addr().String()})
	require.NoError(t, err)
	defer conn.Close()

	select {
	case c := <-accepted:
		c.Close()
	case <-time.After(time.Second):
		t.Fatal("no connection accepted")
	}
}

func TestDialRequiresAddress(t *testing.T) {
	_, err := Dial(context.Background(), DialConfig{})
	assert.Error(t, err)
}

func TestDialRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	_, err = Dial(context.Background(), DialConfig{Address: addr, ConnectTimeout: time.Second})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), addr)
}

func TestNewClientTLSConfig(t *testing.T) {
	_, err := NewClientTLSConfig(nil)
	assert.Error(t, err)

	conf, err := NewClientTLSConfig(&TLSConfig{ServerName: "board", InsecureSkipVerify: true})
	require.NoError(t, err)
	assert.Equal(t, "board", conf.ServerName)
	assert.True(t, conf.InsecureSkipVerify)
	assert.Nil(t, conf.RootCAs)

	_, err = NewClientTLSConfig(&TLSConfig{CAFile: "/does/not/exist.pem"})
	assert.Error(t, err)
}
