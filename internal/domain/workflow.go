package domain

// NodeType tags a node with the processor that executes it
type NodeType string

const (
	NodeTypeLending      NodeType = "lending"
	NodeTypeTrigger      NodeType = "trigger"
	NodeTypeTransform    NodeType = "transform"
	NodeTypeNotification NodeType = "notification"
)

// DefaultMaxRetries applies when a retry policy enables retries without a bound
const DefaultMaxRetries = 3

// Workflow is a stored workflow definition: a DAG of typed nodes
type Workflow struct {
	ID      string          `json:"id"`
	Name    string          `json:"name"`
	Version string          `json:"version"`
	Nodes   map[string]Node `json:"nodes"`
}

// Node is one step in a workflow graph
type Node struct {
	ID   string   `json:"id"`
	Type NodeType `json:"type"`

	// Config is a tagged union: exactly the variant matching Type must be set
	Config NodeConfig `json:"config"`

	// DependsOn lists node IDs that must reach SUCCESS before this node starts
	DependsOn []string `json:"depends_on,omitempty"`

	Retry RetryPolicy `json:"retry"`

	// ContinueOnFailure keeps the execution alive when this node fails
	ContinueOnFailure bool `json:"continue_on_failure,omitempty"`

	// OutputMapping rewrites the raw processor output into a caller-defined
	// shape: each key is resolved as a dot-path against the raw output
	OutputMapping map[string]string `json:"output_mapping,omitempty"`
}

// RetryPolicy controls automatic retries on node failure
type RetryPolicy struct {
	AutoRetryOnFailure bool `json:"auto_retry_on_failure"`
	MaxRetries         int  `json:"max_retries,omitempty"`
}

// Budget returns the effective retry limit for this policy
func (p RetryPolicy) Budget() int {
	if !p.AutoRetryOnFailure {
		return 0
	}
	if p.MaxRetries <= 0 {
		return DefaultMaxRetries
	}
	return p.MaxRetries
}

// NodeConfig is a closed union of node configurations. The dispatcher matches
// on Node.Type, never on which field happens to be populated.
type NodeConfig struct {
	Lending      *LendingNodeConfig      `json:"lending,omitempty"`
	Trigger      *TriggerNodeConfig      `json:"trigger,omitempty"`
	Transform    *TransformNodeConfig    `json:"transform,omitempty"`
	Notification *NotificationNodeConfig `json:"notification,omitempty"`
}

// LendingNodeConfig configures an on-chain lending operation node
type LendingNodeConfig struct {
	Provider      string    `json:"provider"`
	Chain         string    `json:"chain"`
	Operation     Operation `json:"operation"`
	Asset         string    `json:"asset"`
	WalletAddress string    `json:"wallet_address"`
	Amount        string    `json:"amount,omitempty"`
	RateMode      RateMode  `json:"rate_mode,omitempty"`

	// UseAsCollateral applies to OperationSetCollateral only
	UseAsCollateral bool `json:"use_as_collateral,omitempty"`

	// SimulateFirst dry-runs the transaction before broadcasting. Defaults
	// to true; set SkipSimulation to opt out.
	SkipSimulation bool `json:"skip_simulation,omitempty"`
	SkipQuote      bool `json:"skip_quote,omitempty"`

	// ManualSign suspends the node in WAITING_FOR_SIGNATURE until the user
	// confirms out of band instead of signing with the stored key
	ManualSign bool `json:"manual_sign,omitempty"`

	// SecretName selects the signing key in the secret source
	SecretName string `json:"secret_name,omitempty"`
}

// TriggerNodeConfig configures a workflow entry node
type TriggerNodeConfig struct {
	Kind string `json:"kind"` // manual, schedule, webhook
}

// TransformNodeConfig configures a data reshaping node
type TransformNodeConfig struct {
	// Mappings resolves each key as a dot-path against the merged outputs
	// of the node's dependencies
	Mappings map[string]string `json:"mappings"`
}

// NotificationNodeConfig configures an outbound notification node
type NotificationNodeConfig struct {
	Channel string `json:"channel"` // webhook, slack, telegram

	// EncryptedURL holds the webhook destination, encrypted at rest
	EncryptedURL string `json:"encrypted_url"`

	// MessageTemplate may reference upstream outputs via ${node.path}
	MessageTemplate string `json:"message_template,omitempty"`
}
