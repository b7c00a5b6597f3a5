package natsutil

import (
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"

	"github.com/arloliu/shocktrack/internal/logging"
	"github.com/arloliu/shocktrack/types"
)

// ErrServerNotReady is returned when an embedded server does not accept connections in time.
var ErrServerNotReady = errors.New("embedded NATS server not ready")

// readyTimeout bounds the embedded server startup.
const readyTimeout = 5 * time.Second

// StartEmbedded starts an in-process NATS server with JetStream enabled.
//
// Used by single-host runs that still want the bus-backed communicator and
// by the test helpers.
//
// Parameters:
//   - storeDir: JetStream storage directory
//   - port: Client port (-1 picks a random free port)
//
// Returns:
//   - *server.Server: Running server; call Shutdown when done
//   - error: Creation error or ErrServerNotReady
func StartEmbedded(storeDir string, port int) (*server.Server, error) {
	opts := &server.Options{
		Host:      "127.0.0.1",
		Port:      port,
		JetStream: true,
		StoreDir:  storeDir,
		NoLog:     true,
	}

	ns, err := server.NewServer(opts)
	if err != nil {
		return nil, fmt.Errorf("create embedded NATS server: %w", err)
	}

	go ns.Start()

	if !ns.ReadyForConnections(readyTimeout) {
		ns.Shutdown()
		return nil, ErrServerNotReady
	}

	return ns, nil
}

// Connect dials url and logs connection state changes.
//
// Parameters:
//   - url: NATS server URL
//   - name: Client connection name
//   - logger: Logger for disconnect and reconnect events (nil for no logging)
//
// Returns:
//   - *nats.Conn: Connected client
//   - error: Connection error
func Connect(url, name string, logger types.Logger) (*nats.Conn, error) {
	if logger == nil {
		logger = logging.NewNop()
	}

	nc, err := nats.Connect(url,
		nats.Name(name),
		nats.Timeout(2*time.Second),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("NATS disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("NATS reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, Wrap("connect to NATS", err)
	}

	return nc, nil
}
