package ipc

import (
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"time"
)

// Client provides RPC access to the daemon.
type Client struct {
	conn   net.Conn
	client *rpc.Client
}

// Dial connects to the IPC server at the given socket path.
func Dial(path string) (*Client, error) {
	conn, err := net.DialTimeout("unix", path, 2*time.Second)
	if err != nil {
		return nil, err
	}
	rpcClient := rpc.NewClientWithCodec(jsonrpc.NewClientCodec(conn))
	return &Client{conn: conn, client: rpcClient}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	if c.client != nil {
		_ = c.client.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// Status retrieves the pipeline status.
func (c *Client) Status() (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.client.Call("Radarpipe.Status", StatusRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Stop requests pipeline shutdown.
func (c *Client) Stop() (*StopResponse, error) {
	var resp StopResponse
	if err := c.client.Call("Radarpipe.Stop", StopRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// UpdateConfig applies runtime settings.
func (c *Client) UpdateConfig(settings map[string]string) (*UpdateConfigResponse, error) {
	var resp UpdateConfigResponse
	if err := c.client.Call("Radarpipe.UpdateConfig", UpdateConfigRequest{Settings: settings}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// StateCount returns the number of tracked acquisitions.
func (c *Client) StateCount() (*StateCountResponse, error) {
	var resp StateCountResponse
	if err := c.client.Call("Radarpipe.StateCount", StateCountRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// StateRange lists acquired filenames inside an inclusive observation window.
func (c *Client) StateRange(start, end time.Time, instrument string) (*StateRangeResponse, error) {
	var resp StateRangeResponse
	req := StateRangeRequest{Start: start, End: end, Instrument: instrument}
	if err := c.client.Call("Radarpipe.StateRange", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// StateLatest fetches the most recently observed acquisition.
func (c *Client) StateLatest(instrument string) (*StateLatestResponse, error) {
	var resp StateLatestResponse
	if err := c.client.Call("Radarpipe.StateLatest", StateLatestRequest{Instrument: instrument}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// StateInfo fetches one acquisition record.
func (c *Client) StateInfo(filename string) (*StateInfoResponse, error) {
	var resp StateInfoResponse
	if err := c.client.Call("Radarpipe.StateInfo", StateInfoRequest{Filename: filename}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// TestNotification triggers a notification test via the daemon.
func (c *Client) TestNotification() (*TestNotificationResponse, error) {
	var resp TestNotificationResponse
	if err := c.client.Call("Radarpipe.TestNotification", TestNotificationRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
