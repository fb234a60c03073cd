package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gookit/color"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/suite"
)

type BaseHTTPSuite struct {
	suite.Suite
	Config Config
	client *http.Client
}

// SetupSuite loads the environment configuration; without TANDEM_ADDR there is nothing to talk to.
func (s *BaseHTTPSuite) SetupSuite() {
	var err error
	s.Config, err = LoadConfig()
	s.Require().NoError(err)
	if s.Config.Addr == "" {
		s.T().Skip("TANDEM_ADDR not set, skipping end-to-end suite")
	}
	s.Config.Addr = strings.TrimSuffix(s.Config.Addr, "/")
	s.client = &http.Client{Timeout: 10 * time.Second}
}

// Step prints a colorized header and runs fn as a named sub-test.
func (s *BaseHTTPSuite) Step(name string, fn func()) {
	s.Run(name, func() {
		header := fmt.Sprintf("  ====== %s ======", name)
		if s.Config.Colours {
			header = color.New(color.BgBlack, color.FgGreen).Render(header)
		}
		s.T().Log(header)
		fn()
	})
}

// Do sends body as JSON and decodes the response into out when out is not nil.
func (s *BaseHTTPSuite) Do(method, path string, body, out any) int {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(raw)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, method, s.Config.Addr+path, reader)
	s.Require().NoError(err)
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := s.client.Do(req)
	s.Require().NoError(err, "request to %s failed", path)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	s.Require().NoError(err)

	s.T().Logf("HTTP %s %s [%d] in %v", method, path, resp.StatusCode, time.Since(start))
	if s.Config.DebugJSON {
		s.T().Logf("RESPONSE:\n%s", raw)
	}
	if out != nil && len(raw) > 0 {
		s.Require().NoError(json.Unmarshal(raw, out))
	}
	return resp.StatusCode
}

// Dial opens a websocket on path, switching the scheme of the configured address.
func (s *BaseHTTPSuite) Dial(path string) *websocket.Conn {
	url := "ws" + strings.TrimPrefix(s.Config.Addr, "http") + path
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	s.Require().NoError(err, "failed to dial %s", url)
	return conn
}

// ReadJSON reads the next frame into out, failing after a short deadline.
func (s *BaseHTTPSuite) ReadJSON(conn *websocket.Conn, out any) {
	s.Require().NoError(conn.SetReadDeadline(time.Now().Add(5 * time.Second)))
	s.Require().NoError(conn.ReadJSON(out))
}
