// Command probe logs into a running relay, lists who is online and posts one
// message, then prints everything it received. It is meant for smoke tests
// after a deployment.
package main

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"secure-chat/client"
	"secure-chat/domain/chat"
	"strings"
	"time"

	"github.com/gookit/color"
	"github.com/kelseyhightower/envconfig"
	"github.com/olekukonko/tablewriter"
)

const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

type Config struct {
	Addr     string        `envconfig:"PROBE_ADDR" default:"localhost:8443"`
	Username string        `envconfig:"PROBE_USERNAME" default:"probe"`
	Password string        `envconfig:"PROBE_PASSWORD"`
	CAFile   string        `envconfig:"PROBE_CA_FILE"`
	Insecure bool          `envconfig:"PROBE_INSECURE" default:"false"`
	Room     string        `envconfig:"PROBE_ROOM" default:"General"`
	Message  string        `envconfig:"PROBE_MESSAGE" default:"probe says hello"`
	Timeout  time.Duration `envconfig:"PROBE_TIMEOUT" default:"5s"`
	Colours  bool          `envconfig:"PROBE_COLOURS" default:"true"`
}

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Probe failed: %v\n", err)
	}
	os.Exit(code)
}

func run() (int, error) {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	tlsConfig, err := clientTLSConfig(config)
	if err != nil {
		return exitConfig, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), config.Timeout)
	defer cancel()
	c, err := client.Dial(ctx, config.Addr, tlsConfig)
	if err != nil {
		return exitRuntime, err
	}
	defer c.Close()

	step(config, "LOGIN "+config.Username)
	token, err := c.Login(config.Username, config.Password, config.Timeout)
	if err != nil {
		return exitRuntime, err
	}
	fmt.Printf("token: %s...\n", token[:min(len(token), 16)])

	step(config, "USERS")
	if err := c.Send(chat.NewUserListRequest(chat.None)); err != nil {
		return exitRuntime, err
	}
	reply, err := c.ReceiveWithin(config.Timeout)
	if err != nil {
		return exitRuntime, err
	}
	printUsers(reply)

	step(config, "POST "+config.Room)
	if err := c.Send(chat.NewText(config.Room, config.Message)); err != nil {
		return exitRuntime, err
	}
	// Our own broadcast comes back, anything else is printed as it arrives
	for {
		msg, err := c.ReceiveWithin(config.Timeout)
		if err != nil {
			return exitRuntime, fmt.Errorf("waiting for the broadcast: %w", err)
		}
		printMessage(config, msg)
		if msg.Kind == chat.Error {
			return exitRuntime, fmt.Errorf("relay answered %s", msg.Content.OrEmpty())
		}
		if msg.Kind == chat.Text && msg.Sender.OrEmpty() == config.Username {
			return exitOK, nil
		}
	}
}

func clientTLSConfig(config Config) (*tls.Config, error) {
	tlsConfig := &tls.Config{MinVersion: tls.VersionTLS12, InsecureSkipVerify: config.Insecure}
	if config.CAFile == "" {
		return tlsConfig, nil
	}
	pem, err := os.ReadFile(config.CAFile)
	if err != nil {
		return nil, fmt.Errorf("reading CA file: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("no certificate found in %s", config.CAFile)
	}
	tlsConfig.RootCAs = pool
	return tlsConfig, nil
}

func step(config Config, name string) {
	header := fmt.Sprintf("  ====== %s ======", name)
	if config.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	fmt.Println(header)
}

func printUsers(reply chat.Message) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"#", "Username"})
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(false)

	content := reply.Content.OrEmpty()
	if content != "" {
		for i, name := range strings.Split(content, "\n") {
			table.Append([]string{fmt.Sprint(i + 1), name})
		}
	}
	table.Render()
}

func printMessage(config Config, msg chat.Message) {
	line := fmt.Sprintf("[%s] %s@%s: %s", msg.Kind,
		msg.Sender.OrEmpty(), msg.Room.OrEmpty(), msg.Content.OrEmpty())
	if !config.Colours {
		fmt.Println(line)
		return
	}
	if msg.Kind == chat.Error {
		color.Red.Println(line)
		return
	}
	color.Cyan.Println(line)
}
