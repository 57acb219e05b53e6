package opcua

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/gopcua/opcua"
	"github.com/gopcua/opcua/ua"

	"github.com/oofurkan/CncMachineTracker/internal/domain"
	"github.com/oofurkan/CncMachineTracker/internal/ports"
)

// Config captures the runtime details required to open an OPC UA session.
type Config struct {
	Endpoint        string         `yaml:"endpoint"`
	Username        string         `yaml:"username"`
	Password        string         `yaml:"password"`
	SecurityMode    string         `yaml:"security_mode"`
	SecurityPolicy  string         `yaml:"security_policy"`
	ApplicationName string         `yaml:"application_name"`
	RequestTimeout  time.Duration  `yaml:"request_timeout"`
	Machines        []MachineNodes `yaml:"machines"`
}

// MachineNodes maps one machine onto the controller tags that describe it.
type MachineNodes struct {
	MachineID      string `yaml:"machine_id"`
	StatusNode     string `yaml:"status_node"`
	ProductionNode string `yaml:"production_node"`
	CycleTimeNode  string `yaml:"cycle_time_node"`
}

func (c *Config) ApplyDefaults() {
	if c.SecurityMode == "" {
		c.SecurityMode = "None"
	}
	if c.SecurityPolicy == "" {
		c.SecurityPolicy = "None"
	}
	if c.ApplicationName == "" {
		c.ApplicationName = "CNC Machine Tracker"
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 5 * time.Second
	}
}

func (c *Config) Validate() error {
	if c.Endpoint == "" {
		return errors.New("endpoint is required")
	}
	if len(c.Machines) == 0 {
		return errors.New("at least one machine must be configured")
	}
	seen := make(map[string]struct{}, len(c.Machines))
	for i, m := range c.Machines {
		if m.MachineID == "" {
			return fmt.Errorf("machines[%d]: machine_id is required", i)
		}
		if _, dup := seen[m.MachineID]; dup {
			return fmt.Errorf("machines[%d]: duplicate machine_id %q", i, m.MachineID)
		}
		seen[m.MachineID] = struct{}{}
		for _, n := range []struct{ key, id string }{
			{"status_node", m.StatusNode},
			{"production_node", m.ProductionNode},
			{"cycle_time_node", m.CycleTimeNode},
		} {
			if n.id == "" {
				return fmt.Errorf("machines[%d]: %s is required", i, n.key)
			}
			if _, err := ua.ParseNodeID(n.id); err != nil {
				return fmt.Errorf("machines[%d]: %s %q: %w", i, n.key, n.id, err)
			}
		}
	}
	return nil
}

// nodeClient is the slice of *opcua.Client the reader needs.
type nodeClient interface {
	Read(ctx context.Context, req *ua.ReadRequest) (*ua.ReadResponse, error)
	Close(ctx context.Context) error
}

type machineNodes struct {
	status, production, cycleTime *ua.NodeID
}

// Reader fetches machine readings with one OPC UA Read per call. The session
// is opened on first use and dropped after a failed read so the next call
// reconnects.
type Reader struct {
	cfg   Config
	nodes map[string]machineNodes
	dial  func(ctx context.Context) (nodeClient, error)
	now   func() time.Time

	mu     sync.Mutex
	client nodeClient
}

func NewReader(cfg Config) (*Reader, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	nodes := make(map[string]machineNodes, len(cfg.Machines))
	for _, m := range cfg.Machines {
		// already validated
		nodes[m.MachineID] = machineNodes{
			status:     ua.MustParseNodeID(m.StatusNode),
			production: ua.MustParseNodeID(m.ProductionNode),
			cycleTime:  ua.MustParseNodeID(m.CycleTimeNode),
		}
	}

	r := &Reader{cfg: cfg, nodes: nodes, now: time.Now}
	r.dial = r.connect
	return r, nil
}

func (r *Reader) ReadCurrent(ctx context.Context, id string) (domain.MachineState, error) {
	nodes, ok := r.nodes[id]
	if !ok {
		return domain.MachineState{}, fmt.Errorf("opcua: machine %q has no node mapping", id)
	}

	ctx, cancel := context.WithTimeout(ctx, r.cfg.RequestTimeout)
	defer cancel()

	client, err := r.session(ctx)
	if err != nil {
		return domain.MachineState{}, err
	}

	resp, err := client.Read(ctx, &ua.ReadRequest{
		MaxAge: 0,
		NodesToRead: []*ua.ReadValueID{
			{NodeID: nodes.status, AttributeID: ua.AttributeIDValue},
			{NodeID: nodes.production, AttributeID: ua.AttributeIDValue},
			{NodeID: nodes.cycleTime, AttributeID: ua.AttributeIDValue},
		},
		TimestampsToReturn: ua.TimestampsToReturnBoth,
	})
	if err != nil {
		r.reset(client)
		return domain.MachineState{}, fmt.Errorf("opcua read: %w", err)
	}
	return r.decode(id, resp)
}

// Close releases the OPC UA session, if one is open.
func (r *Reader) Close(ctx context.Context) error {
	r.mu.Lock()
	client := r.client
	r.client = nil
	r.mu.Unlock()

	if client == nil {
		return nil
	}
	if err := client.Close(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func (r *Reader) decode(id string, resp *ua.ReadResponse) (domain.MachineState, error) {
	if resp == nil || len(resp.Results) != 3 {
		return domain.MachineState{}, fmt.Errorf("opcua: expected 3 results for machine %s", id)
	}
	for i, res := range resp.Results {
		if res == nil {
			return domain.MachineState{}, fmt.Errorf("opcua: empty result %d for machine %s", i, id)
		}
		if res.Status != ua.StatusOK {
			return domain.MachineState{}, fmt.Errorf("opcua: read %s for machine %s: %s", r.nodeName(i), id, res.Status)
		}
	}

	status, err := variantToStatus(resp.Results[0].Value)
	if err != nil {
		return domain.MachineState{}, err
	}
	count, ok := variantToFloat(resp.Results[1].Value)
	if !ok || count < 0 || math.IsNaN(count) || math.IsInf(count, 0) || count >= math.MaxInt64 {
		return domain.MachineState{}, fmt.Errorf("opcua: machine %s has unusable production count", id)
	}
	cycle, ok := variantToFloat(resp.Results[2].Value)
	if !ok || cycle < 0 || math.IsNaN(cycle) {
		return domain.MachineState{}, fmt.Errorf("opcua: machine %s has unusable cycle time", id)
	}
	if status != domain.StatusRunning {
		cycle = 0
	}

	ts := resp.Results[0].ServerTimestamp
	if ts.IsZero() {
		ts = resp.Results[0].SourceTimestamp
	}
	if ts.IsZero() {
		ts = r.now()
	}

	return domain.MachineState{
		ID:               id,
		Status:           status,
		ProductionCount:  int64(count),
		CycleTimeSeconds: cycle,
		Timestamp:        ts.UTC(),
	}, nil
}

func (r *Reader) nodeName(i int) string {
	switch i {
	case 0:
		return "status"
	case 1:
		return "production"
	default:
		return "cycle time"
	}
}

func (r *Reader) session(ctx context.Context) (nodeClient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.client != nil {
		return r.client, nil
	}
	client, err := r.dial(ctx)
	if err != nil {
		return nil, err
	}
	r.client = client
	return client, nil
}

func (r *Reader) reset(failed nodeClient) {
	r.mu.Lock()
	if r.client != failed {
		r.mu.Unlock()
		return
	}
	r.client = nil
	r.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), r.cfg.RequestTimeout)
	defer cancel()
	_ = failed.Close(ctx)
}

// sessionClient is a nodeClient that still has to connect.
type sessionClient interface {
	nodeClient
	Connect(ctx context.Context) error
}

func (r *Reader) connect(ctx context.Context) (nodeClient, error) {
	client, err := opcua.NewClient(r.cfg.Endpoint, r.buildClientOptions()...)
	if err != nil {
		return nil, fmt.Errorf("opcua new client: %w", err)
	}
	return openSession(ctx, client)
}

// openSession connects c and closes it again when the handshake fails.
func openSession(ctx context.Context, c sessionClient) (nodeClient, error) {
	if err := c.Connect(ctx); err != nil {
		_ = c.Close(ctx)
		return nil, fmt.Errorf("opcua connect: %w", err)
	}
	return c, nil
}

func (r *Reader) buildClientOptions() []opcua.Option {
	opts := []opcua.Option{
		opcua.SecurityModeString(normalizeSecurityMode(r.cfg.SecurityMode)),
		opcua.SecurityPolicy(normalizeSecurityPolicy(r.cfg.SecurityPolicy)),
		opcua.ApplicationName(r.cfg.ApplicationName),
		opcua.RequestTimeout(r.cfg.RequestTimeout),
	}

	if r.cfg.Username != "" {
		opts = append(opts, opcua.AuthUsername(r.cfg.Username, r.cfg.Password))
	} else {
		opts = append(opts, opcua.AuthAnonymous())
	}
	return opts
}

// variantToStatus accepts the numeric codes 0 Running, 1 Stopped, 2 Alarm
// or the status name as a string.
func variantToStatus(v *ua.Variant) (domain.Status, error) {
	if v == nil {
		return "", errors.New("opcua: status value is empty")
	}
	if s, ok := v.Value().(string); ok {
		return domain.ParseStatus(s)
	}
	code, ok := variantToFloat(v)
	if !ok {
		return "", fmt.Errorf("opcua: unsupported status type %T", v.Value())
	}
	idx := int(code)
	if float64(idx) != code || idx < 0 || idx >= len(domain.Statuses) {
		return "", fmt.Errorf("opcua: unknown status code %v", code)
	}
	return domain.Statuses[idx], nil
}

func variantToFloat(v *ua.Variant) (float64, bool) {
	if v == nil {
		return 0, false
	}

	switch val := v.Value().(type) {
	case float32:
		return float64(val), true
	case float64:
		return val, true
	case int8:
		return float64(val), true
	case uint8:
		return float64(val), true
	case int16:
		return float64(val), true
	case uint16:
		return float64(val), true
	case int32:
		return float64(val), true
	case uint32:
		return float64(val), true
	case int64:
		return float64(val), true
	case uint64:
		return float64(val), true
	default:
		return 0, false
	}
}

func normalizeSecurityMode(mode string) string {
	switch strings.ToLower(mode) {
	case "sign":
		return "Sign"
	case "signandencrypt", "signencrypt", "sign_and_encrypt", "sign+encrypt":
		return "SignAndEncrypt"
	default:
		return "None"
	}
}

func normalizeSecurityPolicy(policy string) string {
	if policy == "" {
		return "None"
	}
	return policy
}

var _ ports.DeviceReader = (*Reader)(nil)
