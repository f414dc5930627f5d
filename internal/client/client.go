// Copyright 2024 LatentFS Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package client speaks the daemon's line protocol over its control socket.
package client

import (
	"bufio"
	"context"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"net"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"dtest/internal/util"
)

// Credentials select how a connection authenticates. A non-empty Cookie
// takes precedence over Username/Password.
type Credentials struct {
	Username string
	Password string
	Cookie   string
}

// Client is one authenticated connection. It is not safe for concurrent use.
type Client struct {
	conn   net.Conn
	r      *bufio.Reader
	user   string
	broken error // set after the first I/O failure
	logger *log.Entry
}

var hashes = map[string]func() hash.Hash{
	"sha1":   sha1.New,
	"sha256": sha256.New,
	"sha384": sha512.New384,
	"sha512": sha512.New,
}

// Dial connects to the unix socket at path and logs in. Refused or missing
// sockets are retried briefly since the daemon may still be binding.
func Dial(ctx context.Context, path string, creds Credentials) (*Client, error) {
	conn, err := util.RetryWithResult(ctx, func() (net.Conn, error) {
		var d net.Dialer
		return d.DialContext(ctx, "unix", path)
	}, util.DialRetryOptions(ctx)...)
	if err != nil {
		return nil, &ConnError{Op: "dial " + path, Err: err}
	}
	c, err := New(conn, creds)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return c, nil
}

// New runs the greeting and login exchange over an established connection.
func New(conn net.Conn, creds Credentials) (*Client, error) {
	c := &Client{
		conn:   conn,
		r:      bufio.NewReader(conn),
		logger: log.WithField("component", "client"),
	}
	if err := c.login(creds); err != nil {
		return nil, err
	}
	return c, nil
}

// User is the name the server accepted at login.
func (c *Client) User() string { return c.user }

// Close drops the connection.
func (c *Client) Close() error {
	if c.broken == nil {
		c.broken = net.ErrClosed
	}
	return c.conn.Close()
}

func (c *Client) login(creds Credentials) error {
	greet, err := c.readReply("greeting")
	if err != nil {
		return err
	}
	if !greet.ok() {
		return &RejectedError{Command: "greeting", Code: greet.Code, Reason: greet.Text}
	}
	words, err := Split(greet.Text)
	if err != nil {
		return c.fail("greeting", err)
	}
	algo, challenge, err := parseGreeting(words)
	if err != nil {
		return c.fail("greeting", err)
	}

	if creds.Cookie != "" {
		r, err := c.transact("cookie", creds.Cookie)
		if err != nil {
			return err
		}
		c.user = firstWord(r.Text)
		c.logger = c.logger.WithField("user", c.user)
		return nil
	}

	resp, err := Response(algo, creds.Password, challenge)
	if err != nil {
		return c.fail("greeting", err)
	}
	if _, err := c.transact("user", creds.Username, resp); err != nil {
		return err
	}
	c.user = creds.Username
	c.logger = c.logger.WithField("user", c.user)
	return nil
}

func parseGreeting(words []string) (string, []byte, error) {
	var algo, hexChallenge string
	switch len(words) {
	case 1:
		algo, hexChallenge = "sha1", words[0]
	case 3:
		if words[0] != "2" {
			return "", nil, fmt.Errorf("unrecognized protocol generation %q", words[0])
		}
		algo, hexChallenge = words[1], words[2]
	default:
		return "", nil, fmt.Errorf("malformed greeting %q", strings.Join(words, " "))
	}
	challenge, err := hex.DecodeString(hexChallenge)
	if err != nil {
		return "", nil, fmt.Errorf("bad challenge: %w", err)
	}
	return algo, challenge, nil
}

// Response computes the login hash: hex(H(password || challenge)).
func Response(algo, password string, challenge []byte) (string, error) {
	newHash, ok := hashes[strings.ToLower(algo)]
	if !ok {
		return "", fmt.Errorf("unsupported hash algorithm %q", algo)
	}
	h := newHash()
	h.Write([]byte(password))
	h.Write(challenge)
	return hex.EncodeToString(h.Sum(nil)), nil
}

func (c *Client) fail(op string, err error) error {
	if c.broken == nil {
		c.broken = err
	}
	return &ConnError{Op: op, Err: err}
}

func (c *Client) readLine(op string) (string, error) {
	line, err := c.r.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && line != "" {
			err = io.ErrUnexpectedEOF
		}
		return "", c.fail(op, err)
	}
	return strings.TrimSuffix(line, "\n"), nil
}

func (c *Client) readReply(op string) (reply, error) {
	line, err := c.readLine(op)
	if err != nil {
		return reply{}, err
	}
	r, ok := parseReply(line)
	if !ok {
		return reply{}, c.fail(op, fmt.Errorf("malformed reply %q", line))
	}
	return r, nil
}

func (c *Client) writeLine(op, line string) error {
	if _, err := io.WriteString(c.conn, line+"\n"); err != nil {
		return c.fail(op, err)
	}
	return nil
}

// transact sends one command and returns its 2xx reply. Non-2xx replies
// become a *RejectedError; a 253 body is left unread for the caller.
func (c *Client) transact(cmd string, args ...string) (reply, error) {
	if c.broken != nil {
		return reply{}, &ConnError{Op: cmd, Err: c.broken}
	}
	c.logger.WithField("cmd", cmd).Trace("send")
	if err := c.writeLine(cmd, Command(cmd, args...)); err != nil {
		return reply{}, err
	}
	r, err := c.readReply(cmd)
	if err != nil {
		return reply{}, err
	}
	if !r.ok() {
		c.logger.WithFields(log.Fields{"cmd": cmd, "code": r.Code}).Debug(r.Text)
		return r, &RejectedError{Command: cmd, Code: r.Code, Reason: r.Text}
	}
	return r, nil
}

func (c *Client) readBody(op string) ([]string, error) {
	var lines []string
	for {
		line, err := c.readLine(op)
		if err != nil {
			return nil, err
		}
		if line == "." {
			return lines, nil
		}
		lines = append(lines, unstuff(line))
	}
}

// Simple runs a command whose reply carries at most one value. ok is false
// for an xx9 "no value" reply.
func (c *Client) Simple(cmd string, args ...string) (value string, ok bool, err error) {
	r, err := c.transact(cmd, args...)
	if err != nil {
		return "", false, err
	}
	if r.body() {
		if _, err := c.readBody(cmd); err != nil {
			return "", false, err
		}
		return "", true, nil
	}
	if r.noValue() {
		return "", false, nil
	}
	return r.Text, true, nil
}

// List runs a command that answers with a dot-terminated body.
func (c *Client) List(cmd string, args ...string) ([]string, error) {
	r, err := c.transact(cmd, args...)
	if err != nil {
		return nil, err
	}
	if !r.body() {
		return nil, c.fail(cmd, fmt.Errorf("expected body, got %03d %s", r.Code, r.Text))
	}
	return c.readBody(cmd)
}

// Upload runs a command that expects a dot-terminated body from the client
// after a 3xx go-ahead.
func (c *Client) Upload(cmd string, body []string, args ...string) error {
	if c.broken != nil {
		return &ConnError{Op: cmd, Err: c.broken}
	}
	if err := c.writeLine(cmd, Command(cmd, args...)); err != nil {
		return err
	}
	r, err := c.readReply(cmd)
	if err != nil {
		return err
	}
	if r.Code/100 != 3 {
		if r.ok() {
			return c.fail(cmd, fmt.Errorf("expected go-ahead, got %03d %s", r.Code, r.Text))
		}
		return &RejectedError{Command: cmd, Code: r.Code, Reason: r.Text}
	}
	var b strings.Builder
	for _, line := range body {
		b.WriteString(stuff(line))
		b.WriteByte('\n')
	}
	b.WriteString(".\n")
	if _, err := io.WriteString(c.conn, b.String()); err != nil {
		return c.fail(cmd, err)
	}
	r, err = c.readReply(cmd)
	if err != nil {
		return err
	}
	if !r.ok() {
		return &RejectedError{Command: cmd, Code: r.Code, Reason: r.Text}
	}
	return nil
}

// SetDeadline bounds every following read and write.
func (c *Client) SetDeadline(t time.Time) error { return c.conn.SetDeadline(t) }

func firstWord(text string) string {
	words, err := Split(text)
	if err != nil || len(words) == 0 {
		return text
	}
	return words[0]
}
