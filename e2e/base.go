package e2e

import (
	"context"
	"crypto/tls"
	"fmt"
	"secure-chat/client"
	"time"

	"github.com/gookit/color"
	"github.com/stretchr/testify/suite"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

const stepTimeout = 5 * time.Second

type BaseRelaySuite struct {
	suite.Suite
	Config Config
}

// SetupSuite loads the environment configuration before running tests
func (s *BaseRelaySuite) SetupSuite() {
	var err error
	s.Config, err = LoadConfig()
	s.Require().NoError(err)
	if s.Config.RelayAddr == "" {
		s.T().Skip("E2E_RELAY_ADDR is not set")
	}
}

func (s *BaseRelaySuite) header(name string) {
	header := fmt.Sprintf("  ====== %s ======", name)
	if s.Config.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	s.T().Log(header)
}

// WithClient opens a TLS session to the relay for the duration of fn.
func (s *BaseRelaySuite) WithClient(name string, fn func(c *client.Client)) {
	s.header(name)
	ctx, cancel := context.WithTimeout(context.Background(), stepTimeout)
	defer cancel()

	c, err := client.Dial(ctx, s.Config.RelayAddr, &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: s.Config.Insecure,
	})
	s.Require().NoError(err, "Failed to connect to relay at "+s.Config.RelayAddr)
	defer c.Close()

	fn(c)
}

// WithHealth provides a gRPC health client, skipping when no address is set.
func (s *BaseRelaySuite) WithHealth(name string, fn func(ctx context.Context, client healthpb.HealthClient)) {
	if s.Config.HealthAddr == "" {
		s.T().Skip("E2E_HEALTH_ADDR is not set")
	}
	s.header(name)
	conn, err := grpc.NewClient(s.Config.HealthAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	s.Require().NoError(err, "Failed to connect to health server at "+s.Config.HealthAddr)
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), stepTimeout)
	defer cancel()
	fn(ctx, healthpb.NewHealthClient(conn))
}
