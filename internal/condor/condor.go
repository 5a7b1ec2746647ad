// Package condor obtains a best-effort snapshot of the live HTCondor
// queue. The queue is advisory context only: it is shown next to the
// authoritative event-log state and never overrides it.
package condor

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"strconv"
	"time"
)

// DefaultTimeout bounds a single queue query so a slow or absent schedd
// cannot stall snapshot publication.
const DefaultTimeout = 10 * time.Second

// statusLabels maps HTCondor JobStatus codes to display labels.
var statusLabels = map[int]string{
	1: "Idle",
	2: "Running",
	3: "Removed",
	4: "Completed",
	5: "Held",
	6: "TransferOutput",
	7: "Suspended",
}

// StatusLabel returns the label for an HTCondor JobStatus code. Unknown
// codes render as their literal numeric value.
func StatusLabel(code int) string {
	if label, ok := statusLabels[code]; ok {
		return label
	}
	return strconv.Itoa(code)
}

// QueueJob is one currently-active entry in the live queue. DAGNodeName
// matches the job name recorded in the event database and is the join key.
type QueueJob struct {
	ClusterID   int    `json:"ClusterId"`
	ProcID      int    `json:"ProcId"`
	JobStatus   int    `json:"JobStatus"`
	Cmd         string `json:"Cmd"`
	RemoteHost  string `json:"RemoteHost"`
	DAGNodeName string `json:"DAGNodeName"`
	Owner       string `json:"Owner"`
	QDate       int64  `json:"QDate"`
}

// Options parameterize a queue query. All fields are optional; zero
// values query the local pool with ambient credentials.
type Options struct {
	Constraint   string // ClassAd filter expression
	ScheddName   string // query a specific schedd
	Collector    string // host[:port] of a remote pool collector
	TokenPath    string // IDTOKEN file or directory
	CertPath     string // X.509 / GSI certificate
	KeyPath      string // X.509 / GSI private key
	PasswordFile string
	Timeout      time.Duration
}

// Client queries the live queue via condor_q. The zero-value runner shells
// out; tests replace it.
type Client struct {
	opts Options
	run  func(ctx context.Context) ([]byte, error)
}

// NewClient returns a queue client for the given options.
func NewClient(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	c := &Client{opts: opts}
	c.run = c.runCondorQ
	return c
}

// Query returns the currently-active queue entries. It never fails
// outward: any transport, credential, or parse error reports ok=false
// with an empty list, and the caller merges an empty live set.
func (c *Client) Query(ctx context.Context) ([]QueueJob, bool) {
	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	out, err := c.run(ctx)
	if err != nil {
		return nil, false
	}
	out = bytes.TrimSpace(out)
	if len(out) == 0 {
		// condor_q prints nothing for an empty queue.
		return nil, true
	}

	var jobs []QueueJob
	if err := json.Unmarshal(out, &jobs); err != nil {
		return nil, false
	}
	return jobs, true
}

func (c *Client) runCondorQ(ctx context.Context) ([]byte, error) {
	args := []string{"-json"}
	if c.opts.ScheddName != "" {
		args = append(args, "-name", c.opts.ScheddName)
	}
	if c.opts.Collector != "" {
		args = append(args, "-pool", c.opts.Collector)
	}
	if c.opts.Constraint != "" {
		args = append(args, "-constraint", c.opts.Constraint)
	}

	cmd := exec.CommandContext(ctx, "condor_q", args...)
	cmd.Env = append(os.Environ(), c.credentialEnv()...)

	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	if err := cmd.Run(); err != nil {
		return nil, err
	}
	return stdout.Bytes(), nil
}

// credentialEnv translates credential paths into the environment HTCondor
// tooling reads. Nothing is set for a local pool with default security.
func (c *Client) credentialEnv() []string {
	var env []string
	if c.opts.TokenPath != "" {
		env = append(env, "_CONDOR_SEC_TOKEN_DIRECTORY="+c.opts.TokenPath)
	}
	if c.opts.CertPath != "" {
		env = append(env, "X509_USER_CERT="+c.opts.CertPath)
	}
	if c.opts.KeyPath != "" {
		env = append(env, "X509_USER_KEY="+c.opts.KeyPath)
	}
	if c.opts.PasswordFile != "" {
		env = append(env, "_CONDOR_PASSWORD_FILE="+c.opts.PasswordFile)
	}
	if c.opts.Collector != "" {
		env = append(env, "_CONDOR_COLLECTOR_HOST="+c.opts.Collector)
	}
	return env
}

// IndexByNode builds the name-keyed join map for the per-job view. The
// last entry wins on duplicate node names; duplicates should not occur in
// a correct queue but must not break the merge.
func IndexByNode(jobs []QueueJob) map[string]QueueJob {
	index := make(map[string]QueueJob, len(jobs))
	for _, job := range jobs {
		if job.DAGNodeName == "" {
			continue
		}
		index[job.DAGNodeName] = job
	}
	return index
}
