package slave

import (
	"bufio"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
)

// SlaveCommandTimeout bounds a single RPC round trip.
const SlaveCommandTimeout = 10 * time.Second

// Client is a connector to one slave host, addressed by (host, port), using
// a TCP or TLS dial rather than a Unix socket since slaves run remotely.
type Client struct {
	conn net.Conn
	reader *bufio.Reader
	host string
	port int
	timeout time.Duration
}

// Dial opens a single connection to host:port, optionally over TLS.
func Dial(host string, port int, forceTLS bool, dialTimeout time.Duration) (*Client, error) {
	addr := fmt.Sprintf("%s:%d", host, port)

	dialer := &net.Dialer{Timeout: dialTimeout}
	var conn net.Conn
	var err error
	if forceTLS {
		conn, err = tls.DialWithDialer(dialer, "tcp", addr, &tls.Config{MinVersion: tls.VersionTLS12})
	} else {
		conn, err = dialer.Dial("tcp", addr)
	}
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}

	return &Client{conn: conn, reader: bufio.NewReader(conn), host: host, port: port, timeout: SlaveCommandTimeout}, nil
}

// DialWithBackoff retries Dial using an exponential backoff capped so the
// externally observable reconnect cadence still matches the original's
// fixed ~60s loop, jittered rather than a bare sleep.
func DialWithBackoff(host string, port int, forceTLS bool, maxElapsed time.Duration) (*Client, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 60 * time.Second
	b.MaxElapsedTime = maxElapsed

	var client *Client
	err := backoff.Retry(func() error {
		c, err := Dial(host, port, forceTLS, 5*time.Second)
		if err != nil {
			return err
		}
		client = c
		return nil
	}, b)
	if err != nil {
		return nil, fmt.Errorf("disconnected: %w", err)
	}
	return client, nil
}

// Close releases the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Execute sends operation/args and decodes the slave's Response, bounded
// by the connector's command timeout.
func (c *Client) Execute(operation string, args any) (*Response, error) {
	payload, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("marshal args: %w", err)
	}

	req := Request{Operation: operation, Args: payload, RequestID: uuid.NewString()}
	reqBytes, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	_ = c.conn.SetDeadline(time.Now().Add(c.timeout))

	if _, err := c.conn.Write(append(reqBytes, '\n')); err != nil {
		return nil, fmt.Errorf("slave-command-timeout: %w", err)
	}

	line, err := c.reader.ReadBytes('\n')
	if err != nil {
		return nil, fmt.Errorf("slave-command-timeout: %w", err)
	}

	var resp Response
	if err := json.Unmarshal(line, &resp); err != nil {
		return nil, fmt.Errorf("invalid slave response: %w", err)
	}
	if !resp.Success {
		return &resp, fmt.Errorf("auth: %s", resp.Error)
	}
	return &resp, nil
}

// Ping checks slave liveness.
func (c *Client) Ping() error {
	_, err := c.Execute(OpPing, nil)
	return err
}

// Trigger starts a run on the slave.
func (c *Client) Trigger(args TriggerArgs) error {
	_, err := c.Execute(OpTrigger, args)
	return err
}

// Abort requests the slave cancel an in-progress run.
func (c *Client) Abort(args AbortArgs) error {
	_, err := c.Execute(OpAbort, args)
	return err
}

// Status fetches the slave's current run state for a job.
func (c *Client) Status(jobUUID string) (*StatusResult, error) {
	resp, err := c.Execute(OpStatus, map[string]string{"job_uuid": jobUUID})
	if err != nil {
		return nil, err
	}
	var result StatusResult
	if err := json.Unmarshal(resp.Data, &result); err != nil {
		return nil, fmt.Errorf("invalid status payload: %w", err)
	}
	return &result, nil
}
