package coordinator

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/loopfi/conductor/internal/application/processor"
	"github.com/loopfi/conductor/internal/domain"
	"github.com/loopfi/conductor/internal/ports"
)

// Config holds coordinator tuning knobs
type Config struct {
	ExecutionTimeout time.Duration
	NodeTimeout      time.Duration
	RetryDelay       time.Duration

	// SignatureWaitTimeout bounds WAITING_FOR_SIGNATURE suspension;
	// zero waits indefinitely
	SignatureWaitTimeout time.Duration
}

// Coordinator walks a workflow's node graph, invokes processors, persists
// status, and applies retry and terminal-state rules. It owns every
// NodeExecution row it creates.
type Coordinator struct {
	workflows ports.WorkflowStore
	store     ports.ExecutionStore
	eventBus  ports.EventBus
	registry  *processor.Registry
	secrets   ports.SecretSource
	metrics   ports.MetricsCollector
	validator *Validator
	logger    *zap.Logger
	cfg       Config

	// Track active executions
	executions sync.Map // map[string]*executionState
	active     atomic.Int64
	wg         sync.WaitGroup
}

type signatureDecision int

const (
	decisionConfirmed signatureDecision = iota
	decisionRejected
)

type signatureOutcome int

const (
	outcomeConfirmed signatureOutcome = iota
	outcomeRejected
	outcomeTimeout
	outcomeCancelled
)

// executionState holds in-flight bookkeeping for one execution
type executionState struct {
	cancel context.CancelFunc

	mu         sync.Mutex
	cancelled  bool
	signatures map[string]chan signatureDecision // nodeID -> pending decision
}

func (s *executionState) isCancelled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancelled
}

// nodeResult travels from node goroutines back to the scheduler
type nodeResult struct {
	nodeID            string
	status            domain.ExecutionStatus
	output            map[string]interface{}
	continueOnFailure bool
}

// New creates an execution coordinator
func New(
	workflows ports.WorkflowStore,
	store ports.ExecutionStore,
	eventBus ports.EventBus,
	registry *processor.Registry,
	secrets ports.SecretSource,
	metrics ports.MetricsCollector,
	logger *zap.Logger,
	cfg Config,
) *Coordinator {
	return &Coordinator{
		workflows: workflows,
		store:     store,
		eventBus:  eventBus,
		registry:  registry,
		secrets:   secrets,
		metrics:   metrics,
		validator: NewValidator(registry),
		logger:    logger,
		cfg:       cfg,
	}
}

// RegisterWorkflow validates and stores a workflow definition
func (c *Coordinator) RegisterWorkflow(ctx context.Context, workflow *domain.Workflow) error {
	if err := c.validator.Validate(workflow); err != nil {
		return fmt.Errorf("workflow validation failed: %w", err)
	}
	if err := c.workflows.SaveWorkflow(ctx, workflow); err != nil {
		return fmt.Errorf("failed to save workflow: %w", err)
	}
	c.logger.Info("workflow registered", zap.String("workflow_id", workflow.ID))
	return nil
}

// StartExecution begins a run of the stored workflow and returns its
// execution id immediately; node execution proceeds asynchronously
func (c *Coordinator) StartExecution(ctx context.Context, workflowID string, trigger map[string]interface{}) (string, error) {
	workflow, err := c.workflows.GetWorkflow(ctx, workflowID)
	if err != nil {
		return "", fmt.Errorf("failed to load workflow: %w", err)
	}
	if err := c.validator.Validate(workflow); err != nil {
		return "", fmt.Errorf("workflow validation failed: %w", err)
	}

	execution := &domain.WorkflowExecution{
		ID:         uuid.New().String(),
		WorkflowID: workflowID,
		Status:     domain.StatusPending,
		Trigger:    trigger,
		StartedAt:  time.Now(),
	}
	if err := c.store.SaveExecution(ctx, execution); err != nil {
		return "", fmt.Errorf("failed to save execution: %w", err)
	}

	execCtx, cancel := context.WithTimeout(context.Background(), c.cfg.ExecutionTimeout)
	state := &executionState{
		cancel:     cancel,
		signatures: make(map[string]chan signatureDecision),
	}
	c.executions.Store(execution.ID, state)
	c.metrics.RecordExecutionStarted()
	c.metrics.SetActiveExecutions(int(c.active.Add(1)))

	c.wg.Add(1)
	go c.run(execCtx, state, execution, workflow)

	c.logger.Info("execution started",
		zap.String("execution_id", execution.ID),
		zap.String("workflow_id", workflowID))

	return execution.ID, nil
}

// GetExecution returns the last durably persisted execution state
func (c *Coordinator) GetExecution(ctx context.Context, executionID string) (*domain.WorkflowExecution, error) {
	return c.store.GetExecution(ctx, executionID)
}

// ListNodeExecutions returns the per-node history of an execution
func (c *Coordinator) ListNodeExecutions(ctx context.Context, executionID string) ([]*domain.NodeExecution, error) {
	return c.store.ListNodeExecutions(ctx, executionID)
}

// Cancel stops scheduling new nodes for an execution. Nodes already in
// flight finish on their own; a broadcast transaction is never aborted.
func (c *Coordinator) Cancel(ctx context.Context, executionID string) error {
	val, ok := c.executions.Load(executionID)
	if !ok {
		return fmt.Errorf("execution not found or already finished: %s", executionID)
	}
	state := val.(*executionState)

	// The store read and terminal write happen under the state lock so they
	// serialize against run()'s RUNNING write.
	state.mu.Lock()
	if state.cancelled {
		state.mu.Unlock()
		return fmt.Errorf("execution already cancelled: %s", executionID)
	}

	execution, err := c.store.GetExecution(ctx, executionID)
	if err != nil {
		state.mu.Unlock()
		return fmt.Errorf("failed to get execution: %w", err)
	}
	if execution.Status.IsTerminal() {
		state.mu.Unlock()
		return fmt.Errorf("execution already in terminal state: %s", execution.Status)
	}

	now := time.Now()
	execution.Status = domain.StatusCancelled
	execution.CompletedAt = &now
	execution.Error = "cancelled by user"
	if err := c.store.SaveExecution(ctx, execution); err != nil {
		state.mu.Unlock()
		return fmt.Errorf("failed to save execution: %w", err)
	}
	state.cancelled = true
	state.mu.Unlock()

	c.emit(domain.EventTypeExecutionCancelled, executionID, "", domain.StatusCancelled, nil)

	state.cancel()

	c.logger.Info("execution cancelled", zap.String("execution_id", executionID))
	return nil
}

// ResolveSignature confirms or rejects a node suspended in
// WAITING_FOR_SIGNATURE
func (c *Coordinator) ResolveSignature(ctx context.Context, executionID, nodeID string, confirmed bool) error {
	val, ok := c.executions.Load(executionID)
	if !ok {
		return fmt.Errorf("execution not found or already finished: %s", executionID)
	}
	state := val.(*executionState)

	state.mu.Lock()
	ch, waiting := state.signatures[nodeID]
	state.mu.Unlock()
	if !waiting {
		return fmt.Errorf("node %s is not waiting for signature", nodeID)
	}

	decision := decisionRejected
	if confirmed {
		decision = decisionConfirmed
	}
	select {
	case ch <- decision:
		return nil
	default:
		return fmt.Errorf("signature for node %s already resolved", nodeID)
	}
}

// Shutdown cancels all active executions and waits for their goroutines
func (c *Coordinator) Shutdown(ctx context.Context) error {
	c.logger.Info("shutting down coordinator")

	c.executions.Range(func(key, value interface{}) bool {
		value.(*executionState).cancel()
		return true
	})

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		c.logger.Info("coordinator shut down complete")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("shutdown timeout")
	}
}

// run is the per-execution scheduler loop. It launches every node whose
// dependencies have all reached SUCCESS, runs independent branches
// concurrently, and mirrors the worst node outcome onto the execution.
func (c *Coordinator) run(ctx context.Context, state *executionState, execution *domain.WorkflowExecution, workflow *domain.Workflow) {
	defer c.wg.Done()
	defer state.cancel()
	defer func() {
		c.executions.Delete(execution.ID)
		c.metrics.SetActiveExecutions(int(c.active.Add(-1)))
	}()

	start := time.Now()

	// The RUNNING write is serialized against Cancel under the state lock.
	// A cancel landing between StartExecution's PENDING write and this point
	// has already persisted CANCELLED; that terminal row must stay.
	state.mu.Lock()
	if current, err := c.store.GetExecution(context.Background(), execution.ID); err == nil &&
		!current.Status.CanTransitionTo(domain.StatusRunning) {
		state.mu.Unlock()
		c.metrics.RecordExecutionCompleted(string(current.Status), time.Since(start))
		return
	}
	execution.Status = domain.StatusRunning
	saveErr := c.store.SaveExecution(context.Background(), execution)
	state.mu.Unlock()
	if saveErr != nil {
		c.logger.Error("failed to persist running status",
			zap.String("execution_id", execution.ID),
			zap.Error(saveErr))
		c.finalize(execution, domain.StatusFailed, "persistence failure: "+saveErr.Error(), start)
		return
	}
	c.emit(domain.EventTypeExecutionStarted, execution.ID, "", domain.StatusRunning, nil)

	outputs := make(map[string]map[string]interface{})
	nodeStatus := make(map[string]domain.ExecutionStatus)
	results := make(chan nodeResult)
	running := 0
	blockingFailure := false
	failedNode := ""

	launchReady := func() {
		if blockingFailure || state.isCancelled() {
			return
		}
		for nodeID := range workflow.Nodes {
			if _, seen := nodeStatus[nodeID]; seen {
				continue
			}
			node := workflow.Nodes[nodeID]
			ready := true
			for _, dep := range node.DependsOn {
				if nodeStatus[dep] != domain.StatusSuccess {
					ready = false
					break
				}
			}
			if !ready {
				continue
			}

			if node.ID == "" {
				node.ID = nodeID
			}
			upstream := make(map[string]map[string]interface{}, len(node.DependsOn))
			for _, dep := range node.DependsOn {
				upstream[dep] = outputs[dep]
			}

			nodeStatus[nodeID] = domain.StatusRunning
			running++
			go c.runNode(ctx, state, execution, node, upstream, results)
		}
	}

	collect := func(res nodeResult) {
		running--
		nodeStatus[res.nodeID] = res.status
		if res.status == domain.StatusSuccess {
			outputs[res.nodeID] = res.output
		} else if res.status == domain.StatusFailed && !res.continueOnFailure {
			blockingFailure = true
			failedNode = res.nodeID
		}
	}

	launchReady()
	interrupted := false
	for running > 0 {
		select {
		case res := <-results:
			collect(res)
			launchReady()
		case <-ctx.Done():
			interrupted = true
			// Drain in-flight nodes; they execute on detached contexts and
			// always report back.
			for running > 0 {
				collect(<-results)
			}
		}
	}

	final := domain.StatusSuccess
	errMsg := ""
	switch {
	case state.isCancelled():
		final = domain.StatusCancelled
		errMsg = "cancelled by user"
	case interrupted:
		final = domain.StatusFailed
		if ctx.Err() == context.DeadlineExceeded {
			errMsg = "execution timeout"
		} else {
			errMsg = "execution aborted during shutdown"
		}
	case blockingFailure:
		final = domain.StatusFailed
		errMsg = fmt.Sprintf("node %s failed", failedNode)
	}

	c.finalize(execution, final, errMsg, start)
}

// finalize moves the execution to its terminal status unless an earlier
// writer (cancellation) already did
func (c *Coordinator) finalize(execution *domain.WorkflowExecution, status domain.ExecutionStatus, errMsg string, start time.Time) {
	ctx := context.Background()

	if current, err := c.store.GetExecution(ctx, execution.ID); err == nil && current.Status.IsTerminal() {
		c.metrics.RecordExecutionCompleted(string(current.Status), time.Since(start))
		return
	}

	now := time.Now()
	execution.Status = status
	execution.Error = errMsg
	execution.CompletedAt = &now
	if err := c.store.SaveExecution(ctx, execution); err != nil {
		c.logger.Error("failed to persist terminal status",
			zap.String("execution_id", execution.ID),
			zap.String("status", string(status)),
			zap.Error(err))
		return
	}

	switch status {
	case domain.StatusSuccess:
		c.emit(domain.EventTypeExecutionSucceeded, execution.ID, "", status, nil)
	case domain.StatusCancelled:
		c.emit(domain.EventTypeExecutionCancelled, execution.ID, "", status, nil)
	default:
		c.emit(domain.EventTypeExecutionFailed, execution.ID, "", status, map[string]interface{}{"error": errMsg})
	}

	c.metrics.RecordExecutionCompleted(string(status), time.Since(start))
	c.logger.Info("execution finished",
		zap.String("execution_id", execution.ID),
		zap.String("status", string(status)),
		zap.Duration("duration", time.Since(start)))
}

// runNode drives one node through the retryable state machine and reports
// the terminal outcome to the scheduler
func (c *Coordinator) runNode(
	ctx context.Context,
	state *executionState,
	execution *domain.WorkflowExecution,
	node domain.Node,
	upstream map[string]map[string]interface{},
	results chan<- nodeResult,
) {
	proc, ok := c.registry.Get(node.Type)
	if !ok {
		// Unreachable after validation; guard anyway.
		results <- nodeResult{nodeID: node.ID, status: domain.StatusFailed, continueOnFailure: node.ContinueOnFailure}
		return
	}

	start := time.Now()
	upstreamSnapshot := make(map[string]interface{}, len(upstream))
	for dep, out := range upstream {
		upstreamSnapshot[dep] = out
	}

	ne := &domain.NodeExecution{
		ID:          uuid.New().String(),
		ExecutionID: execution.ID,
		NodeID:      node.ID,
		Status:      domain.StatusRunning,
		Input: map[string]interface{}{
			"trigger":  execution.Trigger,
			"upstream": upstreamSnapshot,
		},
		StartedAt: &start,
	}
	if err := c.saveNode(ne); err != nil {
		// A failed status write is never treated as success.
		c.logger.Error("failed to persist node execution",
			zap.String("execution_id", execution.ID),
			zap.String("node_id", node.ID),
			zap.Error(err))
		results <- nodeResult{nodeID: node.ID, status: domain.StatusFailed, continueOnFailure: node.ContinueOnFailure}
		return
	}
	c.emit(domain.EventTypeNodeStarted, execution.ID, node.ID, domain.StatusRunning, nil)

	input := ports.ProcessorInput{
		NodeID:          node.ID,
		NodeExecutionID: ne.ID,
		Node:            node,
		Secrets:         c.secrets,
		Context: ports.ExecutionContext{
			ExecutionID: execution.ID,
			Trigger:     execution.Trigger,
			Upstream:    upstream,
		},
	}

	budget := node.Retry.Budget()

	// Node work runs detached from the execution context: an operation that
	// is already in flight (a broadcast transaction in particular) must not
	// be aborted by cancellation. Cancellation only stops scheduling.
	detached := context.WithoutCancel(ctx)

	for {
		nodeCtx, cancelNode := context.WithTimeout(detached, c.cfg.NodeTimeout)
		out := proc.Execute(nodeCtx, input)
		cancelNode()

		if out.Signal == ports.SignalAwaitSignature {
			switch c.awaitSignature(ctx, state, execution.ID, ne) {
			case outcomeConfirmed:
				input.Context.SignatureConfirmed = true
				ne.Status = domain.StatusRunning
				if err := c.saveNode(ne); err != nil {
					c.failNode(ne, node, start, &domain.NodeError{Code: domain.CodeInternalError, Message: "persistence failure: " + err.Error()}, results)
					return
				}
				c.emit(domain.EventTypeNodeStarted, execution.ID, node.ID, domain.StatusRunning, map[string]interface{}{"resumed": true})
				continue
			case outcomeRejected:
				c.failNode(ne, node, start, domain.NewNodeError(domain.CodeSignatureRejected, "signature rejected by user"), results)
				return
			case outcomeTimeout:
				c.failNode(ne, node, start, domain.NewNodeError(domain.CodeSignatureTimeout, "timed out waiting for signature"), results)
				return
			default:
				c.cancelNode(ne, node, start, results)
				return
			}
		}

		if out.Success {
			now := time.Now()
			ne.Status = domain.StatusSuccess
			ne.Output = out.Output
			ne.CompletedAt = &now
			if err := c.saveNode(ne); err != nil {
				c.logger.Error("failed to persist node success",
					zap.String("execution_id", execution.ID),
					zap.String("node_id", node.ID),
					zap.Error(err))
				results <- nodeResult{nodeID: node.ID, status: domain.StatusFailed, continueOnFailure: node.ContinueOnFailure}
				return
			}
			c.emit(domain.EventTypeNodeSucceeded, execution.ID, node.ID, domain.StatusSuccess, map[string]interface{}{"output": out.Output})
			c.metrics.RecordNodeExecuted(string(node.Type), string(domain.StatusSuccess), time.Since(start))
			results <- nodeResult{nodeID: node.ID, status: domain.StatusSuccess, output: out.Output, continueOnFailure: node.ContinueOnFailure}
			return
		}

		nerr := out.Error
		if nerr == nil {
			nerr = domain.NewNodeError(domain.CodeInternalError, "processor reported failure without error detail")
		}

		if node.Retry.AutoRetryOnFailure && ne.RetryCount < budget && nerr.Retryable() {
			ne.RetryCount++
			ne.Status = domain.StatusRetrying
			ne.Error = nerr
			if err := c.saveNode(ne); err != nil {
				c.failNode(ne, node, start, &domain.NodeError{Code: domain.CodeInternalError, Message: "persistence failure: " + err.Error()}, results)
				return
			}
			c.emit(domain.EventTypeNodeRetrying, execution.ID, node.ID, domain.StatusRetrying, map[string]interface{}{
				"retry_count": ne.RetryCount,
				"code":        string(nerr.Code),
			})
			c.metrics.RecordNodeRetry(string(node.Type))

			select {
			case <-time.After(c.cfg.RetryDelay):
			case <-ctx.Done():
				// The retry had not re-started; it is fair game for
				// cancellation.
				if state.isCancelled() {
					c.cancelNode(ne, node, start, results)
				} else {
					c.failNode(ne, node, start, nerr, results)
				}
				return
			}

			ne.Status = domain.StatusRunning
			if err := c.saveNode(ne); err != nil {
				c.failNode(ne, node, start, &domain.NodeError{Code: domain.CodeInternalError, Message: "persistence failure: " + err.Error()}, results)
				return
			}
			continue
		}

		c.failNode(ne, node, start, nerr, results)
		return
	}
}

// awaitSignature suspends a node until the user confirms or rejects, the
// configured wait deadline passes, or the execution is torn down
func (c *Coordinator) awaitSignature(ctx context.Context, state *executionState, executionID string, ne *domain.NodeExecution) signatureOutcome {
	ch := make(chan signatureDecision, 1)

	state.mu.Lock()
	if state.cancelled {
		state.mu.Unlock()
		return outcomeCancelled
	}
	state.signatures[ne.NodeID] = ch
	state.mu.Unlock()

	defer func() {
		state.mu.Lock()
		delete(state.signatures, ne.NodeID)
		state.mu.Unlock()
	}()

	ne.Status = domain.StatusWaitingForSignature
	if err := c.saveNode(ne); err != nil {
		c.logger.Error("failed to persist signature wait",
			zap.String("execution_id", executionID),
			zap.String("node_id", ne.NodeID),
			zap.Error(err))
		return outcomeTimeout
	}
	c.emit(domain.EventTypeNodeWaitingSignature, executionID, ne.NodeID, domain.StatusWaitingForSignature, nil)

	var deadline <-chan time.Time
	if c.cfg.SignatureWaitTimeout > 0 {
		timer := time.NewTimer(c.cfg.SignatureWaitTimeout)
		defer timer.Stop()
		deadline = timer.C
	}

	select {
	case decision := <-ch:
		if decision == decisionConfirmed {
			return outcomeConfirmed
		}
		return outcomeRejected
	case <-deadline:
		return outcomeTimeout
	case <-ctx.Done():
		if state.isCancelled() {
			return outcomeCancelled
		}
		return outcomeTimeout
	}
}

func (c *Coordinator) failNode(ne *domain.NodeExecution, node domain.Node, start time.Time, nerr *domain.NodeError, results chan<- nodeResult) {
	now := time.Now()
	ne.Status = domain.StatusFailed
	ne.Error = nerr
	ne.CompletedAt = &now
	if err := c.saveNode(ne); err != nil {
		c.logger.Error("failed to persist node failure",
			zap.String("execution_id", ne.ExecutionID),
			zap.String("node_id", ne.NodeID),
			zap.Error(err))
	}
	c.emit(domain.EventTypeNodeFailed, ne.ExecutionID, ne.NodeID, domain.StatusFailed, map[string]interface{}{
		"code":    string(nerr.Code),
		"message": nerr.Message,
	})
	c.metrics.RecordNodeExecuted(string(node.Type), string(domain.StatusFailed), time.Since(start))
	results <- nodeResult{nodeID: ne.NodeID, status: domain.StatusFailed, continueOnFailure: node.ContinueOnFailure}
}

func (c *Coordinator) cancelNode(ne *domain.NodeExecution, node domain.Node, start time.Time, results chan<- nodeResult) {
	now := time.Now()
	ne.Status = domain.StatusCancelled
	ne.CompletedAt = &now
	if err := c.saveNode(ne); err != nil {
		c.logger.Error("failed to persist node cancellation",
			zap.String("execution_id", ne.ExecutionID),
			zap.String("node_id", ne.NodeID),
			zap.Error(err))
	}
	c.emit(domain.EventTypeNodeCancelled, ne.ExecutionID, ne.NodeID, domain.StatusCancelled, nil)
	c.metrics.RecordNodeExecuted(string(node.Type), string(domain.StatusCancelled), time.Since(start))
	results <- nodeResult{nodeID: ne.NodeID, status: domain.StatusCancelled, continueOnFailure: node.ContinueOnFailure}
}

// saveNode persists a node execution row on a background context so audit
// writes outlive cancellation
func (c *Coordinator) saveNode(ne *domain.NodeExecution) error {
	return c.store.SaveNodeExecution(context.Background(), ne)
}

// emit publishes exactly one event per state transition
func (c *Coordinator) emit(eventType domain.EventType, executionID, nodeID string, status domain.ExecutionStatus, payload map[string]interface{}) {
	event := domain.ExecutionEvent{
		ID:          uuid.New().String(),
		Type:        eventType,
		ExecutionID: executionID,
		NodeID:      nodeID,
		Status:      status,
		Timestamp:   time.Now(),
		Payload:     payload,
	}
	if err := c.eventBus.Publish(context.Background(), ports.TopicExecutionEvents, event); err != nil {
		c.logger.Error("failed to publish event",
			zap.String("execution_id", executionID),
			zap.String("event_type", string(eventType)),
			zap.Error(err))
	}
}
