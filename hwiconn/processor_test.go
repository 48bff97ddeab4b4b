package hwiconn

import (
	"bufio"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/go-homeworks/hwi"
)

const expectTimeout = 2 * time.Second

var testCreds = hwi.Credentials{Username: "lutron", Password: "integration"}

// fakeProcessor is a scripted HomeWorks processor listening on a loopback port.
type fakeProcessor struct {
	t     *testing.T
	ln    net.Listener
	conns chan *fakeConn
	wg    sync.WaitGroup
}

// fakeConn is one accepted client connection. Every line written by the client is
// delivered to lines without its terminator.
type fakeConn struct {
	t     *testing.T
	conn  net.Conn
	lines chan string
}

func newFakeProcessor(t *testing.T) *fakeProcessor {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	fp := &fakeProcessor{t: t, ln: ln, conns: make(chan *fakeConn, 16)}

	fp.wg.Add(1)
	go fp.acceptLoop()

	t.Cleanup(fp.close)

	return fp
}

func (fp *fakeProcessor) acceptLoop() {
	defer fp.wg.Done()

	for {
		conn, err := fp.ln.Accept()
		if err != nil {
			return
		}

		fc := &fakeConn{t: fp.t, conn: conn, lines: make(chan string, 128)}
		go fc.readLoop()
		fp.conns <- fc
	}
}

func (fp *fakeProcessor) close() {
	_ = fp.ln.Close()
	fp.wg.Wait()

	for {
		select {
		case fc := <-fp.conns:
			fc.Close()
		default:
			return
		}
	}
}

func (fp *fakeProcessor) Addr() hwi.ServerAddress {
	tcpAddr := fp.ln.Addr().(*net.TCPAddr)
	return hwi.ServerAddress{Host: "127.0.0.1", Port: tcpAddr.Port}
}

// Accept returns the next client connection.
func (fp *fakeProcessor) Accept() *fakeConn {
	fp.t.Helper()

	select {
	case fc := <-fp.conns:
		fp.t.Cleanup(fc.Close)
		return fc
	case <-time.After(expectTimeout):
		require.FailNow(fp.t, "no client connection")
		return nil
	}
}

// ExpectNoAccept asserts that no client connects within d.
func (fp *fakeProcessor) ExpectNoAccept(d time.Duration) {
	fp.t.Helper()

	select {
	case fc := <-fp.conns:
		fc.Close()
		require.FailNow(fp.t, "unexpected client connection")
	case <-time.After(d):
	}
}

func (fc *fakeConn) readLoop() {
	defer close(fc.lines)

	scanner := bufio.NewScanner(fc.conn)
	for scanner.Scan() {
		fc.lines <- strings.TrimRight(scanner.Text(), "\r")
	}
}

// Send writes raw bytes to the client.
func (fc *fakeConn) Send(data string) {
	fc.t.Helper()

	_, err := fc.conn.Write([]byte(data))
	require.NoError(fc.t, err)
}

// Expect asserts that the next line written by the client is want.
func (fc *fakeConn) Expect(want string) {
	fc.t.Helper()

	select {
	case line, ok := <-fc.lines:
		require.True(fc.t, ok, "connection closed while waiting for %q", want)
		require.Equal(fc.t, want, line)
	case <-time.After(expectTimeout):
		require.FailNow(fc.t, "timeout waiting for line", "want %q", want)
	}
}

// ExpectNone asserts that the client writes nothing within d.
func (fc *fakeConn) ExpectNone(d time.Duration) {
	fc.t.Helper()

	select {
	case line, ok := <-fc.lines:
		if ok {
			require.FailNow(fc.t, "unexpected line", "got %q", line)
		}
	case <-time.After(d):
	}
}

// ExpectClosed asserts that the client closes the connection after writing the remaining lines.
func (fc *fakeConn) ExpectClosed() []string {
	fc.t.Helper()

	var rest []string
	timeout := time.After(expectTimeout)
	for {
		select {
		case line, ok := <-fc.lines:
			if !ok {
				return rest
			}
			rest = append(rest, line)
		case <-timeout:
			require.FailNow(fc.t, "client didn't close the connection")
			return rest
		}
	}
}

// Login runs the login handshake and accepts the test credentials.
func (fc *fakeConn) Login() {
	fc.t.Helper()

	fc.Send("LOGIN: ")
	fc.Expect(testCreds.LoginLine())
	fc.Send("login successful\r\n")
}

// Prompt prints the idle prompt.
func (fc *fakeConn) Prompt() {
	fc.t.Helper()
	fc.Send("\r\nLNET> ")
}

// Reset aborts the connection with a TCP reset.
func (fc *fakeConn) Reset() {
	if tcpConn, ok := fc.conn.(*net.TCPConn); ok {
		_ = tcpConn.SetLinger(0)
	}
	_ = fc.conn.Close()
}

func (fc *fakeConn) Close() {
	_ = fc.conn.Close()
}

// recorder collects the responses delivered to a response handler.
type recorder struct {
	mu   sync.Mutex
	msgs []hwi.ResponseMessage
	cont bool
}

func newRecorder() *recorder {
	return &recorder{cont: true}
}

func (r *recorder) handle(msg hwi.ResponseMessage) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.msgs = append(r.msgs, msg)

	return r.cont
}

func (r *recorder) messages() []hwi.ResponseMessage {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]hwi.ResponseMessage(nil), r.msgs...)
}

func (r *recorder) contains(want hwi.ResponseMessage) bool {
	for _, msg := range r.messages() {
		if msg.Kind == want.Kind && msg.State == want.State && msg.Data == want.Data {
			return true
		}
	}

	return false
}

func (r *recorder) fatal() (hwi.ResponseMessage, bool) {
	for _, msg := range r.messages() {
		if msg.IsFatal() {
			return msg, true
		}
	}

	return hwi.ResponseMessage{}, false
}
