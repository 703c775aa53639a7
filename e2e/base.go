package e2e

import (
	"bytes"
	"chatter-box/gateway"
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

type BaseSuite struct {
	suite.Suite
	Config Config
	client *http.Client
}

// SetupSuite loads the environment configuration before running tests
func (s *BaseSuite) SetupSuite() {
	var err error
	s.Config, err = LoadConfig()
	s.Require().NoError(err)
	if s.Config.ServerAddr == "" {
		s.T().Skip("E2E_SERVER_ADDR not set")
	}
	s.client = &http.Client{Timeout: 10 * time.Second}
}

func (s *BaseSuite) Step(name string) {
	header := fmt.Sprintf("  ====== %s ======", name)
	if s.Config.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	s.T().Log(header)
}

// Do sends a JSON request and decodes the JSON answer into out when not nil.
func (s *BaseSuite) Do(method, path, token string, body, out any) int {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		s.Require().NoError(err)
	}
	req, err := http.NewRequest(method, "http://"+s.Config.ServerAddr+path, bytes.NewReader(payload))
	s.Require().NoError(err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := s.client.Do(req)
	s.Require().NoError(err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	s.Require().NoError(err)

	logBuilder := strings.Builder{}
	fmt.Fprintf(&logBuilder, "HTTP %s %s [%d] in %v", method, path, resp.StatusCode, time.Since(start))
	if s.Config.DebugJSON {
		fmt.Fprintf(&logBuilder, "\nREQUEST: %s\nRESPONSE: %s", payload, raw)
	}
	s.T().Log(logBuilder.String())

	if out != nil && len(raw) > 0 {
		s.Require().NoError(json.Unmarshal(raw, out))
	}
	return resp.StatusCode
}

func (s *BaseSuite) Dial(token string) *websocket.Conn {
	conn, resp, err := websocket.DefaultDialer.Dial("ws://"+s.Config.ServerAddr+"/ws?token="+token, nil)
	s.Require().NoError(err)
	_ = resp.Body.Close()
	return conn
}

// Expect reads frames until one of eventType arrives.
func (s *BaseSuite) Expect(conn *websocket.Conn, eventType string) gateway.Envelope {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		var env gateway.Envelope
		s.Require().NoError(conn.ReadJSON(&env))
		if s.Config.DebugJSON {
			s.T().Logf("WS <- %s %s", env.Type, env.Payload)
		}
		if env.Type == eventType {
			return env
		}
	}
}

func (s *BaseSuite) Send(conn *websocket.Conn, eventType, id string, payload any) {
	raw, err := json.Marshal(payload)
	s.Require().NoError(err)
	s.Require().NoError(conn.WriteJSON(gateway.Envelope{Type: eventType, ID: id, Payload: raw}))
}
