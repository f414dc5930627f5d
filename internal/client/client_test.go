package client

import (
	"bufio"
	"context"
	"encoding/hex"
	"errors"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dtest/internal/common"
)

var testChallenge = []byte{0xde, 0xad, 0xbe, 0xef}

// fakeServer answers one connection. handle receives each request split into
// words and returns the raw reply lines; returning nil closes the connection.
type fakeServer struct {
	t      *testing.T
	algo   string
	users  map[string]string // name -> password
	cookie string            // accepted cookie, maps to "fred"
	handle func(req []string, r *bufio.Reader, send func(...string) bool) []string
	got    chan []string
}

func newFakeServer(t *testing.T, handle func([]string, *bufio.Reader, func(...string) bool) []string) *fakeServer {
	return &fakeServer{
		t:      t,
		algo:   "sha1",
		users:  map[string]string{"fred": "fredpass"},
		handle: handle,
		got:    make(chan []string, 64),
	}
}

func (s *fakeServer) serve(conn net.Conn) {
	defer conn.Close()
	r := bufio.NewReader(conn)
	send := func(lines ...string) bool {
		for _, l := range lines {
			if _, err := conn.Write([]byte(l + "\n")); err != nil {
				return false
			}
		}
		return true
	}
	if !send("231 2 " + s.algo + " " + hex.EncodeToString(testChallenge)) {
		return
	}
	authed := false
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return
		}
		words, err := Split(strings.TrimSuffix(line, "\n"))
		if err != nil || len(words) == 0 {
			send("500 syntax error")
			continue
		}
		s.got <- words
		switch {
		case words[0] == "user" && len(words) == 3:
			want, _ := Response(s.algo, s.users[words[1]], testChallenge)
			if _, ok := s.users[words[1]]; ok && words[2] == want {
				authed = true
				send("230 OK")
			} else {
				send("530 authentication failed")
			}
		case words[0] == "cookie" && len(words) == 2:
			if s.cookie != "" && words[1] == s.cookie {
				authed = true
				send("232 fred")
			} else {
				send("530 authentication failure")
			}
		case !authed:
			send("530 not authorized")
		default:
			lines := s.handle(words, r, send)
			if lines == nil {
				return
			}
			if !send(lines...) {
				return
			}
		}
	}
}

func (s *fakeServer) dial(creds Credentials) (*Client, error) {
	a, b := net.Pipe()
	go s.serve(b)
	c, err := New(a, creds)
	if err != nil {
		a.Close()
	}
	return c, err
}

var fred = Credentials{Username: "fred", Password: "fredpass"}

func TestLogin(t *testing.T) {
	t.Parallel()

	for _, algo := range []string{"sha1", "SHA256", "sha384", "sha512"} {
		algo := algo
		t.Run(algo, func(t *testing.T) {
			t.Parallel()
			s := newFakeServer(t, func(req []string, _ *bufio.Reader, _ func(...string) bool) []string {
				return []string{"251 4.3"}
			})
			s.algo = algo
			c, err := s.dial(fred)
			require.NoError(t, err)
			defer c.Close()
			assert.Equal(t, "fred", c.User())

			v, err := c.Version()
			require.NoError(t, err)
			assert.Equal(t, "4.3", v)
		})
	}
}

func TestLogin_BadPassword(t *testing.T) {
	t.Parallel()

	s := newFakeServer(t, nil)
	_, err := s.dial(Credentials{Username: "fred", Password: "wrong"})
	require.Error(t, err)
	assert.Equal(t, KindRejected, KindOf(err))
	assert.ErrorIs(t, err, common.ErrRejected)
	o := OutcomeOf(err)
	assert.Equal(t, 530, o.Code)
}

func TestLogin_Cookie(t *testing.T) {
	t.Parallel()

	s := newFakeServer(t, func(req []string, _ *bufio.Reader, _ func(...string) bool) []string {
		return []string{"251 4.3"}
	})
	s.cookie = "c00k1e"

	c, err := s.dial(Credentials{Cookie: "c00k1e"})
	require.NoError(t, err)
	assert.Equal(t, "fred", c.User())
	c.Close()

	_, err = s.dial(Credentials{Cookie: "stale"})
	assert.True(t, IsRejected(err))
}

func TestResponse(t *testing.T) {
	t.Parallel()

	// sha1("abc" || "") is the FIPS 180 test vector.
	got, err := Response("SHA1", "abc", nil)
	require.NoError(t, err)
	assert.Equal(t, "a9993e364706816aba3e25717850c26c9cd0d89d", got)

	_, err = Response("md5", "x", nil)
	assert.Error(t, err)
}

func TestParseGreeting(t *testing.T) {
	t.Parallel()

	algo, ch, err := parseGreeting([]string{"2", "sha256", "0102"})
	require.NoError(t, err)
	assert.Equal(t, "sha256", algo)
	assert.Equal(t, []byte{1, 2}, ch)

	algo, _, err = parseGreeting([]string{"0a0b"})
	require.NoError(t, err)
	assert.Equal(t, "sha1", algo)

	for _, bad := range [][]string{{"3", "sha1", "00"}, {"2", "sha1"}, {"2", "sha1", "xyz"}} {
		_, _, err := parseGreeting(bad)
		assert.Error(t, err, "%v", bad)
	}
}

func TestCommands(t *testing.T) {
	t.Parallel()

	s := newFakeServer(t, func(req []string, r *bufio.Reader, send func(...string) bool) []string {
		switch req[0] {
		case "get":
			if req[2] == "missing" {
				return []string{"555 not found"}
			}
			return []string{`252 "some value"`}
		case "get-global":
			return []string{"259 no value"}
		case "enabled":
			return []string{"252 yes"}
		case "random-enabled":
			return []string{"252 no"}
		case "files":
			return []string{"253 Listing follows", "/t/a.ogg", "..hidden.ogg", "."}
		case "queue":
			return []string{"253 Queue follows",
				` id 1 submitter fred track "/t/x y.ogg" state unplayed when 100`,
				` id 2 track /t/z.ogg state random`,
				"."}
		case "playing":
			return []string{"259 nothing playing"}
		case "play":
			return []string{"252 q17"}
		case "playlist-set":
			send("351 go ahead")
			var body []string
			for {
				l, _ := r.ReadString('\n')
				l = strings.TrimSuffix(l, "\n")
				if l == "." {
					break
				}
				body = append(body, unstuff(l))
			}
			return []string{"250 OK " + strings.Join(body, ",")}
		case "schedule-get":
			return []string{"253 Event information follows", "action play", `track "/t/a b.ogg"`, "."}
		case "search":
			return []string{"253 results", "."}
		default:
			return []string{"250 OK"}
		}
	})

	c, err := s.dial(fred)
	require.NoError(t, err)
	defer c.Close()
	<-s.got // user

	v, ok, err := c.Get("/t/a.ogg", "foo")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "some value", v)
	<-s.got

	_, _, err = c.Get("/t/a.ogg", "missing")
	assert.Equal(t, KindRejected, KindOf(err))
	<-s.got

	_, ok, err = c.GetGlobal("foo")
	require.NoError(t, err)
	assert.False(t, ok)
	<-s.got

	en, err := c.Enabled()
	require.NoError(t, err)
	assert.True(t, en)
	<-s.got
	ren, err := c.RandomEnabled()
	require.NoError(t, err)
	assert.False(t, ren)
	<-s.got

	files, err := c.Files("/t", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"/t/a.ogg", ".hidden.ogg"}, files)
	assert.Equal(t, []string{"files", "/t"}, <-s.got)

	_, err = c.Files("/t", "second")
	require.NoError(t, err)
	assert.Equal(t, []string{"files", "/t", "second"}, <-s.got)

	q, err := c.Queue()
	require.NoError(t, err)
	require.Len(t, q, 2)
	assert.Equal(t, "/t/x y.ogg", q[0].Track)
	assert.Equal(t, "random", q[1].State)
	<-s.got

	p, err := c.Playing()
	require.NoError(t, err)
	assert.Nil(t, p)
	<-s.got

	id, err := c.Play("/t/a.ogg")
	require.NoError(t, err)
	assert.Equal(t, "q17", id)
	<-s.got

	require.NoError(t, c.PlaylistSet("wibble", []string{"one", ".two"}))
	<-s.got

	props, err := c.ScheduleGet("e1")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"action": "play", "track": "/t/a b.ogg"}, props)
	<-s.got

	_, err = c.Search("first", "Joe Bloggs")
	require.NoError(t, err)
	assert.Equal(t, []string{"search", `first "Joe Bloggs"`}, <-s.got)

	require.NoError(t, c.ScheduleAdd(time.Unix(1000, 0), "normal", "play", "/t/a.ogg"))
	assert.Equal(t, []string{"schedule-add", "1000", "normal", "play", "/t/a.ogg"}, <-s.got)

	require.NoError(t, c.AddUser("bob", "bobpass", ""))
	assert.Equal(t, []string{"adduser", "bob", "bobpass"}, <-s.got)

	require.NoError(t, c.Rescan(true))
	assert.Equal(t, []string{"rescan", "wait"}, <-s.got)
}

func TestConnectionFailure(t *testing.T) {
	t.Parallel()

	s := newFakeServer(t, func(req []string, _ *bufio.Reader, _ func(...string) bool) []string {
		if req[0] == "shutdown" {
			return nil // hang up without a reply
		}
		return []string{"250 OK"}
	})
	c, err := s.dial(fred)
	require.NoError(t, err)
	defer c.Close()

	err = c.Shutdown()
	require.Error(t, err)
	assert.Equal(t, KindConnFailed, KindOf(err))
	assert.ErrorIs(t, err, common.ErrConnection)

	// the connection stays broken
	err = c.Nop()
	assert.Equal(t, KindConnFailed, KindOf(err))
}

func TestMalformedReply(t *testing.T) {
	t.Parallel()

	s := newFakeServer(t, func(req []string, _ *bufio.Reader, _ func(...string) bool) []string {
		return []string{"garbage"}
	})
	c, err := s.dial(fred)
	require.NoError(t, err)
	defer c.Close()

	assert.Equal(t, KindConnFailed, KindOf(c.Nop()))
}

func TestDial_NoSocket(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := Dial(ctx, t.TempDir()+"/socket", fred)
	require.Error(t, err)
	assert.Equal(t, KindConnFailed, KindOf(err))
}

func TestOutcomeOf(t *testing.T) {
	t.Parallel()

	assert.Equal(t, KindOK, OutcomeOf(nil).Kind)
	assert.Equal(t, KindConnFailed, OutcomeOf(errors.New("x")).Kind)
	assert.Equal(t, KindConnFailed, OutcomeOf(context.Canceled).Kind)
	assert.Equal(t, "rejected", KindRejected.String())
}

func TestSubscribe(t *testing.T) {
	t.Parallel()

	s := newFakeServer(t, func(req []string, _ *bufio.Reader, _ func(...string) bool) []string {
		if req[0] != "log" {
			return []string{"250 OK"}
		}
		return []string{
			"254 OK",
			"6553f100 state enable_play",
			"6553f100 playing /t/a.ogg fred",
			"6553f101 completed /t/a.ogg",
		}
	})
	c, err := s.dial(fred)
	require.NoError(t, err)

	var seen []string
	ev, err := c.Subscribe(context.Background(), time.Now().Add(5*time.Second), func(e Event) Verdict {
		seen = append(seen, e.Type)
		if e.Type == "completed" {
			return Stop
		}
		return KeepWaiting
	})
	require.NoError(t, err)
	assert.Equal(t, "/t/a.ogg", ev.Arg(0))
	assert.Equal(t, []string{"state", "playing", "completed"}, seen)
}

func TestSubscribe_Deadline(t *testing.T) {
	t.Parallel()

	s := newFakeServer(t, func(req []string, _ *bufio.Reader, _ func(...string) bool) []string {
		return []string{"254 OK", "6553f100 state pause"}
	})
	c, err := s.dial(fred)
	require.NoError(t, err)

	start := time.Now()
	_, err = c.Subscribe(context.Background(), time.Now().Add(200*time.Millisecond), func(Event) Verdict {
		return KeepWaiting
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 3*time.Second)
}

func TestSubscribe_Cancel(t *testing.T) {
	t.Parallel()

	s := newFakeServer(t, func(req []string, _ *bufio.Reader, _ func(...string) bool) []string {
		return []string{"254 OK"}
	})
	c, err := s.dial(fred)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(100*time.Millisecond, cancel)
	_, err = c.Subscribe(ctx, time.Time{}, func(Event) Verdict { return KeepWaiting })
	assert.ErrorIs(t, err, context.Canceled)
}
