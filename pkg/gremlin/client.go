// Package gremlin implements a minimal Gremlin Server client over websockets.
// It submits gremlin-groovy scripts with bound parameters, which is all the
// export driver needs: add a vertex, add an edge, get back the id the server
// assigned.
package gremlin

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// MimeTypeGraphSONV1 requests the untyped GraphSON 1.0 serialization some
// older servers (and CosmosDB) require.
const MimeTypeGraphSONV1 = "application/vnd.gremlin-v1.0+json"

// MimeTypeGraphSONV3 is the default serialization.
const MimeTypeGraphSONV3 = "application/vnd.gremlin-v3.0+json"

// Config holds connection settings for a Gremlin Server endpoint.
type Config struct {
	TraversalSource string
	Endpoint        string
	Port            int
	Path            string
	User            string
	Key             string
	MimeType        string
	GraphSONV1      bool
}

// Client is a Gremlin Server connection. One request is in flight at a time;
// the export driver is the only caller and writes sequentially anyway.
type Client struct {
	conn   *websocket.Conn
	cfg    Config
	mu     sync.Mutex
	closed bool
}

// NewClient dials the configured Gremlin Server.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.TraversalSource == "" {
		cfg.TraversalSource = "g"
	}
	if cfg.MimeType == "" {
		cfg.MimeType = MimeTypeGraphSONV3
	}
	if cfg.GraphSONV1 {
		cfg.MimeType = MimeTypeGraphSONV1
	}

	endpoint := cfg.Endpoint
	if !strings.Contains(endpoint, "://") {
		endpoint = "ws://" + endpoint
	}
	path := cfg.Path
	if path == "" {
		path = "/gremlin"
	}
	url := fmt.Sprintf("%s:%d%s", endpoint, cfg.Port, path)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to dial gremlin server at %s: %w", url, err)
	}

	return &Client{conn: conn, cfg: cfg}, nil
}

// Close shuts the websocket down.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	return c.conn.Close()
}

// AddVertex writes a vertex with the given label and properties and returns
// the id the server assigned.
func (c *Client) AddVertex(ctx context.Context, label string, properties map[string]any) (string, error) {
	var script strings.Builder
	bindings := map[string]any{"vlabel": label}

	script.WriteString(c.cfg.TraversalSource + ".addV(vlabel)")
	writePropertySteps(&script, bindings, properties)
	script.WriteString(".id()")

	data, err := c.Submit(ctx, script.String(), bindings)
	if err != nil {
		return "", fmt.Errorf("failed to add vertex: %w", err)
	}

	return firstScalar(data)
}

// AddEdge connects two previously written vertices by their gremlin ids and
// returns the new edge's id.
func (c *Client) AddEdge(ctx context.Context, originID, destinationID, label string, properties map[string]any) (string, error) {
	var script strings.Builder
	bindings := map[string]any{
		"oid":    originID,
		"did":    destinationID,
		"elabel": label,
	}

	g := c.cfg.TraversalSource
	script.WriteString(fmt.Sprintf("%s.V(oid).addE(elabel).to(__.V(did))", g))
	writePropertySteps(&script, bindings, properties)
	script.WriteString(".id()")

	data, err := c.Submit(ctx, script.String(), bindings)
	if err != nil {
		return "", fmt.Errorf("failed to add edge: %w", err)
	}

	return firstScalar(data)
}

// Submit evaluates a script with bindings and returns the raw result data.
// Handles the SASL challenge when the server requires authentication.
func (c *Client) Submit(ctx context.Context, script string, bindings map[string]any) (json.RawMessage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, fmt.Errorf("gremlin client is closed")
	}

	requestID := uuid.NewString()
	request := map[string]any{
		"requestId": requestID,
		"op":        "eval",
		"processor": "",
		"args": map[string]any{
			"gremlin":  script,
			"bindings": bindings,
			"language": "gremlin-groovy",
		},
	}

	if err := c.write(ctx, request); err != nil {
		return nil, err
	}

	return c.readResult(ctx, requestID)
}

// write frames the request the way Gremlin Server expects: a single length
// byte, the mime type, then the JSON payload.
func (c *Client) write(ctx context.Context, request map[string]any) error {
	payload, err := json.Marshal(request)
	if err != nil {
		return fmt.Errorf("failed to encode gremlin request: %w", err)
	}

	mime := c.cfg.MimeType
	frame := make([]byte, 0, 1+len(mime)+len(payload))
	frame = append(frame, byte(len(mime)))
	frame = append(frame, mime...)
	frame = append(frame, payload...)

	if deadline, ok := ctx.Deadline(); ok {
		_ = c.conn.SetWriteDeadline(deadline)
	} else {
		_ = c.conn.SetWriteDeadline(time.Now().Add(30 * time.Second))
	}

	if err := c.conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
		return fmt.Errorf("failed to write gremlin request: %w", err)
	}

	return nil
}

type gremlinResponse struct {
	RequestID string `json:"requestId"`
	Status    struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"status"`
	Result struct {
		Data json.RawMessage `json:"data"`
	} `json:"result"`
}

func (c *Client) readResult(ctx context.Context, requestID string) (json.RawMessage, error) {
	if deadline, ok := ctx.Deadline(); ok {
		_ = c.conn.SetReadDeadline(deadline)
	} else {
		_ = c.conn.SetReadDeadline(time.Now().Add(30 * time.Second))
	}

	var data json.RawMessage
	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			return nil, fmt.Errorf("failed to read gremlin response: %w", err)
		}

		var resp gremlinResponse
		if err := json.Unmarshal(message, &resp); err != nil {
			return nil, fmt.Errorf("failed to decode gremlin response: %w", err)
		}
		if resp.RequestID != requestID && resp.RequestID != "" {
			continue
		}

		switch resp.Status.Code {
		case 200, 204:
			if resp.Result.Data != nil {
				data = resp.Result.Data
			}
			return data, nil
		case 206:
			data = resp.Result.Data
		case 407:
			if err := c.authenticate(requestID); err != nil {
				return nil, err
			}
		default:
			return nil, fmt.Errorf("gremlin server returned %d: %s", resp.Status.Code, resp.Status.Message)
		}
	}
}

// authenticate answers a SASL PLAIN challenge with the configured user and key.
func (c *Client) authenticate(requestID string) error {
	sasl := base64.StdEncoding.EncodeToString([]byte("\x00" + c.cfg.User + "\x00" + c.cfg.Key))
	request := map[string]any{
		"requestId": requestID,
		"op":        "authentication",
		"processor": "",
		"args": map[string]any{
			"sasl": sasl,
		},
	}

	payload, err := json.Marshal(request)
	if err != nil {
		return fmt.Errorf("failed to encode auth request: %w", err)
	}

	mime := c.cfg.MimeType
	frame := make([]byte, 0, 1+len(mime)+len(payload))
	frame = append(frame, byte(len(mime)))
	frame = append(frame, mime...)
	frame = append(frame, payload...)

	if err := c.conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
		return fmt.Errorf("failed to write auth request: %w", err)
	}

	return nil
}

// writePropertySteps appends a .property(kN, vN) step per property, passing
// keys and values through bindings so nothing is interpolated into the script.
func writePropertySteps(script *strings.Builder, bindings map[string]any, properties map[string]any) {
	i := 0
	for key, value := range properties {
		kb := fmt.Sprintf("pk%d", i)
		vb := fmt.Sprintf("pv%d", i)
		bindings[kb] = key
		bindings[vb] = bindingValue(value)
		fmt.Fprintf(script, ".property(%s, %s)", kb, vb)
		i++
	}
}

// bindingValue flattens values Gremlin property steps can't take directly.
// Objects and arrays are stored as JSON strings.
func bindingValue(value any) any {
	switch value.(type) {
	case nil:
		return ""
	case string, bool, float64, float32, int, int32, int64:
		return value
	default:
		encoded, err := json.Marshal(value)
		if err != nil {
			return fmt.Sprint(value)
		}
		return string(encoded)
	}
}

// firstScalar pulls the first element out of a result list and renders it as
// a string. Handles both plain GraphSON 1.0 lists and the typed v2/v3
// {"@type", "@value"} wrappers.
func firstScalar(data json.RawMessage) (string, error) {
	if data == nil {
		return "", fmt.Errorf("gremlin server returned no data")
	}

	var values []any
	if err := json.Unmarshal(data, &values); err != nil {
		var typed struct {
			Value []any `json:"@value"`
		}
		if err := json.Unmarshal(data, &typed); err != nil {
			return "", fmt.Errorf("failed to decode gremlin result: %w", err)
		}
		values = typed.Value
	}

	if len(values) == 0 {
		return "", fmt.Errorf("gremlin server returned no data")
	}

	return scalarString(values[0]), nil
}

func scalarString(value any) string {
	if wrapped, ok := value.(map[string]any); ok {
		if inner, ok := wrapped["@value"]; ok {
			return scalarString(inner)
		}
	}
	if f, ok := value.(float64); ok && f == float64(int64(f)) {
		return fmt.Sprintf("%d", int64(f))
	}
	return fmt.Sprint(value)
}
