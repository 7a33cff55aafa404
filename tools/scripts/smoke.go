// Command smoke runs an end-to-end check against a running server.
//
// It registers a throwaway user, logs in, opens the realtime feed and
// asserts that task create/update/delete calls are echoed as events.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/coder/websocket"

	"taskmanager/cmd/client"
)

const (
	subprotocol  = "tasks.v1"
	maxReadBytes = 1 << 20
)

type envelope struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Task    json.RawMessage `json:"task,omitempty"`
	Code    string          `json:"code,omitempty"`
	Message string          `json:"message,omitempty"`
	At      time.Time       `json:"at"`
}

func main() {
	var (
		baseURL = flag.String("url", "http://127.0.0.1:8080/api/v1", "API base URL")
		origin  = flag.String("origin", "http://localhost", "Origin header for the WebSocket handshake")
		timeout = flag.Duration("timeout", 7*time.Second, "Per-step timeout")
		verbose = flag.Bool("v", false, "Verbose output")
	)
	flag.Parse()

	wsURL, err := feedURL(*baseURL)
	if err != nil {
		fatalf("invalid -url: %v", err)
	}

	root := context.Background()
	c, err := client.New(*baseURL)
	if err != nil {
		fatalf("client: %v", err)
	}

	email := fmt.Sprintf("smoke-%d@example.com", time.Now().UnixNano())
	const password = "smoke-password-1"

	step(root, *timeout, "register", func(ctx context.Context) error { return c.Register(ctx, email, password) })
	var sess client.Session
	step(root, *timeout, "login", func(ctx context.Context) error {
		sess, err = c.Login(ctx, email, password)
		return err
	})
	if *verbose {
		fmt.Printf("logged in as %s, token expires %s\n", sess.Email, sess.ExpiresAt.Format(time.RFC3339))
	}

	conn := mustConnect(root, wsURL, *origin, sess.Token, *timeout)
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "bye") }()

	if env := mustRead(root, conn, *timeout); env.Type != "hello" {
		fatalf("expected hello, got %q", env.Type)
	}

	var task client.Task
	step(root, *timeout, "create task", func(ctx context.Context) error {
		task, err = c.CreateTask(ctx, client.TaskInput{
			Title:   "smoke",
			DueDate: time.Now().UTC().AddDate(0, 0, 2).Format(time.DateOnly),
		})
		return err
	})
	mustEvent(root, conn, "task.created", task.ID, *timeout)

	closed := "closed"
	step(root, *timeout, "patch task", func(ctx context.Context) error {
		_, err := c.PatchTask(ctx, task.ID, client.TaskPatch{Status: &closed})
		return err
	})
	mustEvent(root, conn, "task.updated", task.ID, *timeout)

	step(root, *timeout, "delete task", func(ctx context.Context) error { return c.DeleteTask(ctx, task.ID) })
	mustEvent(root, conn, "task.deleted", task.ID, *timeout)

	step(root, *timeout, "logout", func(ctx context.Context) error { return c.Logout(ctx) })

	fmt.Println("OK")
}

// feedURL maps http(s)://host/api/v1 to ws(s)://host/api/v1/ws.
func feedURL(base string) (string, error) {
	u, err := url.Parse(strings.TrimRight(base, "/"))
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	if strings.TrimSpace(u.Host) == "" {
		return "", errors.New("missing host")
	}
	u.Path += "/ws"
	return u.String(), nil
}

func step(parent context.Context, timeout time.Duration, name string, fn func(context.Context) error) {
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()
	if err := fn(ctx); err != nil {
		fatalf("%s: %v", name, err)
	}
}

func mustConnect(parent context.Context, wsURL, origin, token string, timeout time.Duration) *websocket.Conn {
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	h := http.Header{}
	if strings.TrimSpace(origin) != "" {
		h.Set("Origin", origin)
	}
	h.Set("Authorization", "Bearer "+token)

	conn, resp, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		Subprotocols: []string{subprotocol},
		HTTPHeader:   h,
	})
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		fatalf("connect: %v", err)
	}
	if got := conn.Subprotocol(); got != subprotocol {
		fatalf("subprotocol=%q want %q", got, subprotocol)
	}
	conn.SetReadLimit(maxReadBytes)
	return conn
}

func mustRead(parent context.Context, conn *websocket.Conn, timeout time.Duration) envelope {
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	_, b, err := conn.Read(ctx)
	if err != nil {
		fatalf("read: %v", err)
	}
	var env envelope
	if err := json.Unmarshal(b, &env); err != nil {
		fatalf("decode frame %q: %v", b, err)
	}
	if env.Type == "error" {
		fatalf("server error frame: %s %s", env.Code, env.Message)
	}
	return env
}

// mustEvent skips heartbeats until the wanted task event arrives.
func mustEvent(parent context.Context, conn *websocket.Conn, typ, id string, timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		env := mustRead(parent, conn, time.Until(deadline))
		if env.Type == "ping" || env.Type == "pong" {
			continue
		}
		if env.Type != typ || env.ID != id {
			fatalf("expected %s for %s, got %s for %s", typ, id, env.Type, env.ID)
		}
		return
	}
	fatalf("timed out waiting for %s", typ)
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "FAIL: "+format+"\n", args...)
	os.Exit(1)
}
