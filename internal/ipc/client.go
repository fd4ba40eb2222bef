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

// Status retrieves the daemon status.
func (c *Client) Status() (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.client.Call("Coco.Status", StatusRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Record starts or stops capture.
func (c *Client) Record(active bool) (*RecordResponse, error) {
	var resp RecordResponse
	if err := c.client.Call("Coco.Record", RecordRequest{Active: active}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// QueueList returns durable queue entries oldest first.
func (c *Client) QueueList() (*QueueListResponse, error) {
	var resp QueueListResponse
	if err := c.client.Call("Coco.QueueList", QueueListRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// QueueClear removes all entries from the durable queue.
func (c *Client) QueueClear() (*QueueClearResponse, error) {
	var resp QueueClearResponse
	if err := c.client.Call("Coco.QueueClear", QueueClearRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Uploads retrieves recent upload attempts.
func (c *Client) Uploads(limit int) (*UploadsResponse, error) {
	var resp UploadsResponse
	if err := c.client.Call("Coco.Uploads", UploadsRequest{Limit: limit}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Wake feeds a synthetic wake signal through debounce validation.
func (c *Client) Wake() (*WakeResponse, error) {
	var resp WakeResponse
	if err := c.client.Call("Coco.Wake", WakeRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// LogTail retrieves daemon log lines starting at the given offset.
func (c *Client) LogTail(req LogTailRequest) (*LogTailResponse, error) {
	var resp LogTailResponse
	if err := c.client.Call("Coco.LogTail", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Stop requests the daemon to stop processing.
func (c *Client) Stop() (*StopResponse, error) {
	var resp StopResponse
	if err := c.client.Call("Coco.Stop", StopRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
