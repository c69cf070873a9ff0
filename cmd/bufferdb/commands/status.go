package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/marmos91/bufferdb/internal/cli/output"
	"github.com/marmos91/bufferdb/pkg/rpc"
	"github.com/spf13/cobra"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

var (
	statusOutput  string
	statusTimeout time.Duration
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show server status",
	Long: `Display the status of a running bufferdb server.

The HTTP readiness endpoint and the gRPC health service are queried at the
configured bind addresses.

Examples:
  bufferdb status
  bufferdb status --output json`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVarP(&statusOutput, "output", "o", "table", "Output format (table|json|yaml)")
	statusCmd.Flags().DurationVar(&statusTimeout, "timeout", 2*time.Second, "Timeout per check")
}

// ServerStatus is what status reports.
type ServerStatus struct {
	HTTPAddr  string `json:"http_addr" yaml:"http_addr"`
	HTTP      string `json:"http" yaml:"http"`
	Databases int    `json:"databases" yaml:"databases"`
	GRPCAddr  string `json:"grpc_addr" yaml:"grpc_addr"`
	GRPC      string `json:"grpc" yaml:"grpc"`
	Healthy   bool   `json:"healthy" yaml:"healthy"`
}

func (s ServerStatus) Headers() []string { return []string{"LISTENER", "ADDRESS", "STATUS"} }

func (s ServerStatus) Rows() [][]string {
	return [][]string{
		{"http", s.HTTPAddr, s.HTTP},
		{"grpc", s.GRPCAddr, s.GRPC},
	}
}

func runStatus(cmd *cobra.Command, args []string) error {
	format, err := output.ParseFormat(statusOutput)
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	status := ServerStatus{
		HTTPAddr: dialAddr(cfg.HTTP.BindAddr),
		GRPCAddr: dialAddr(cfg.GRPC.BindAddr),
	}
	ctx := cmd.Context()

	status.HTTP, status.Databases = checkHTTP(ctx, status.HTTPAddr)
	status.GRPC = checkGRPC(ctx, status.GRPCAddr)
	status.Healthy = status.HTTP == "ready" && status.GRPC == healthpb.HealthCheckResponse_SERVING.String()

	if err := output.NewPrinter(cmd.OutOrStdout(), format).Print(status); err != nil {
		return err
	}
	if !status.Healthy {
		return fmt.Errorf("server is not healthy")
	}
	return nil
}

// dialAddr turns a wildcard bind address into one a client can dial.
func dialAddr(bind string) string {
	host, port, err := net.SplitHostPort(bind)
	if err != nil {
		return bind
	}
	if ip := net.ParseIP(host); host == "" || (ip != nil && ip.IsUnspecified()) {
		host = "localhost"
	}
	return net.JoinHostPort(host, port)
}

func checkHTTP(ctx context.Context, addr string) (string, int) {
	ctx, cancel := context.WithTimeout(ctx, statusTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://"+addr+"/health/ready", nil)
	if err != nil {
		return "error: " + err.Error(), 0
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "unreachable", 0
	}
	defer func() { _ = resp.Body.Close() }()

	var body struct {
		Status string `json:"status"`
		Data   struct {
			Databases int `json:"databases"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "invalid response", 0
	}
	if resp.StatusCode != http.StatusOK {
		return body.Status, 0
	}
	return "ready", body.Data.Databases
}

func checkGRPC(ctx context.Context, addr string) string {
	ctx, cancel := context.WithTimeout(ctx, statusTimeout)
	defer cancel()

	client, err := rpc.Dial(addr)
	if err != nil {
		return "error: " + err.Error()
	}
	defer func() { _ = client.Close() }()

	st, err := client.Health(ctx, rpc.ServiceName)
	if err != nil {
		return "unreachable"
	}
	return st.String()
}
