package slave

import (
	"bufio"
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startFakeSlave runs a minimal listener that replies success=true to every
// request, with a fixed RUNNING payload for status, enough to exercise Client.
func startFakeSlave(t *testing.T) (host string, port int) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func() {
				defer conn.Close()
				reader := bufio.NewReader(conn)
				for {
					line, err := reader.ReadBytes('\n')
					if err != nil {
						return
					}
					var req Request
					if err := json.Unmarshal(line, &req); err != nil {
						return
					}
					resp := Response{Success: true}
					if req.Operation == OpStatus {
						data, _ := json.Marshal(StatusResult{JobUUID: "job-1", State: "RUNNING"})
						resp.Data = data
					}
					out, _ := json.Marshal(resp)
					conn.Write(append(out, '\n'))
				}
			}()
		}
	}()

	addr := ln.Addr().(*net.TCPAddr)
	return "127.0.0.1", addr.Port
}

func TestClientPing(t *testing.T) {
	host, port := startFakeSlave(t)
	c, err := Dial(host, port, false, 2*time.Second)
	require.NoError(t, err)
	defer c.Close()

	assert.NoError(t, c.Ping())
}

func TestClientStatus(t *testing.T) {
	host, port := startFakeSlave(t)
	c, err := Dial(host, port, false, 2*time.Second)
	require.NoError(t, err)
	defer c.Close()

	status, err := c.Status("job-1")
	require.NoError(t, err)
	assert.Equal(t, "RUNNING", status.State)
}

func TestEntryAcquireRelease(t *testing.T) {
	host, port := startFakeSlave(t)
	entry := NewEntry(host, port, false)
	require.NoError(t, entry.Connect(2*time.Second))

	client, err := entry.Acquire(time.Second)
	require.NoError(t, err)
	assert.NoError(t, client.Ping())
	entry.Release()

	require.NoError(t, entry.Disconnect(time.Second))
	assert.Equal(t, StateOffline, entry.State())
}

func TestEntryDisconnectWaitsForRelease(t *testing.T) {
	host, port := startFakeSlave(t)
	entry := NewEntry(host, port, false)
	require.NoError(t, entry.Connect(2*time.Second))

	_, err := entry.Acquire(time.Second)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- entry.Disconnect(2 * time.Second) }()

	time.Sleep(50 * time.Millisecond)
	entry.Release()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Disconnect did not return after Release")
	}
}

func TestListGetOrCreate(t *testing.T) {
	l := NewList()
	e1 := l.GetOrCreate("host1", 1234, false)
	e2 := l.GetOrCreate("host1", 1234, false)
	assert.Same(t, e1, e2)
	assert.Len(t, l.All(), 1)
}
