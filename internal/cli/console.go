package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/aretw0/tendril/pkg/domain"
	"github.com/aretw0/tendril/pkg/session"
	"gopkg.in/yaml.v3"
)

// ErrQuit ends a console loop.
var ErrQuit = errors.New("quit")

const consoleHelp = `commands:
  start <definition> [key=value...]      start a process instance
  list                                   list process instances
  show <process>                         print a process instance
  signal <process> <type> [payload]      deliver a signal to one instance
  broadcast <type> [payload]             deliver a signal to every instance
  trigger <process> <node>               activate a node by unique id
  complete <process> <node-instance>     complete a waiting node instance
  work <process> <work-item> [key=value...]  complete a work item
  timers                                 list pending timers
  fire <timer>                           fire a pending timer now
  abort <process>                        abort a process instance
  help | quit`

// Console drives a session from line-oriented input.
type Console struct {
	Session *session.Manager
	In      io.Reader
	Out     io.Writer
	JSON    bool
}

// Run reads commands until EOF, quit or ctx is done. Command errors are
// printed and do not stop the loop.
func (c *Console) Run(ctx context.Context) error {
	scanner := bufio.NewScanner(c.In)
	for {
		if !c.JSON {
			fmt.Fprint(c.Out, "> ")
		}
		if !scanner.Scan() {
			return scanner.Err()
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		err := c.Exec(ctx, scanner.Text())
		if errors.Is(err, ErrQuit) {
			return nil
		}
		if err != nil {
			c.printError(err)
		}
	}
}

// Exec runs one command line.
func (c *Console) Exec(ctx context.Context, line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	cmd, args := fields[0], fields[1:]

	switch cmd {
	case "quit", "exit":
		return ErrQuit
	case "help":
		fmt.Fprintln(c.Out, consoleHelp)
		return nil
	case "list":
		for _, id := range c.Session.Instances() {
			snap, err := c.Session.Snapshot(ctx, id)
			if err != nil {
				return err
			}
			fmt.Fprintf(c.Out, "%d\t%s\t%s\n", snap.ID, snap.DefinitionID, snap.State)
		}
		return nil
	case "timers":
		for _, t := range c.Session.PendingTimers() {
			fmt.Fprintf(c.Out, "%d\tprocess=%d\tnode=%d\tdelay=%s\n", t.ID, t.ProcessInstanceID, t.NodeInstanceID, t.Delay)
		}
		return nil
	case "start":
		if len(args) < 1 {
			return usage(cmd)
		}
		vars, err := parseAssignments(args[1:])
		if err != nil {
			return err
		}
		pi, err := c.Session.StartProcess(ctx, args[0], vars)
		if err != nil {
			return err
		}
		return c.show(ctx, pi.ID())
	case "show":
		id, err := argID(cmd, args, 0, 1)
		if err != nil {
			return err
		}
		return c.show(ctx, id)
	case "signal":
		id, err := argID(cmd, args, 0, 2)
		if err != nil {
			return err
		}
		if err := c.Session.Signal(ctx, id, args[1], payload(args[2:])); err != nil {
			return err
		}
		return c.show(ctx, id)
	case "broadcast":
		if len(args) < 1 {
			return usage(cmd)
		}
		return c.Session.SignalAll(ctx, args[0], payload(args[1:]))
	case "trigger":
		id, err := argID(cmd, args, 0, 2)
		if err != nil {
			return err
		}
		if _, err := c.Session.TriggerNode(ctx, id, args[1]); err != nil {
			return err
		}
		return c.show(ctx, id)
	case "complete":
		id, err := argID(cmd, args, 0, 2)
		if err != nil {
			return err
		}
		nodeInstanceID, err := argID(cmd, args, 1, 2)
		if err != nil {
			return err
		}
		if err := c.Session.CompleteNodeInstance(ctx, id, nodeInstanceID); err != nil {
			return err
		}
		return c.show(ctx, id)
	case "work":
		id, err := argID(cmd, args, 0, 2)
		if err != nil {
			return err
		}
		workItemID, err := argID(cmd, args, 1, 2)
		if err != nil {
			return err
		}
		results, err := parseAssignments(args[2:])
		if err != nil {
			return err
		}
		if err := c.Session.CompleteWorkItem(ctx, id, workItemID, results); err != nil {
			return err
		}
		return c.show(ctx, id)
	case "fire":
		timerID, err := argID(cmd, args, 0, 1)
		if err != nil {
			return err
		}
		if !c.Session.FireTimer(ctx, timerID) {
			return fmt.Errorf("timer %d is not pending", timerID)
		}
		return nil
	case "abort":
		id, err := argID(cmd, args, 0, 1)
		if err != nil {
			return err
		}
		if err := c.Session.Abort(ctx, id); err != nil {
			return err
		}
		return c.show(ctx, id)
	}
	return fmt.Errorf("unknown command %q (try help)", cmd)
}

func (c *Console) show(ctx context.Context, id int64) error {
	snap, err := c.Session.Snapshot(ctx, id)
	if err != nil {
		return err
	}
	if c.JSON {
		return json.NewEncoder(c.Out).Encode(snap)
	}
	printSnapshot(c.Out, snap)
	return nil
}

func (c *Console) printError(err error) {
	if c.JSON {
		_ = json.NewEncoder(c.Out).Encode(map[string]string{"error": err.Error()})
		return
	}
	fmt.Fprintf(c.Out, "error: %v\n", err)
}

func printSnapshot(w io.Writer, snap *domain.ProcessSnapshot) {
	fmt.Fprintf(w, "process %d (%s) %s\n", snap.ID, snap.DefinitionID, snap.State)
	for _, n := range snap.NodeInstances {
		fmt.Fprintf(w, "  node %d %s [%s] in %d\n", n.ID, n.UniqueID, n.Kind, n.ContainerID)
	}
	for _, wi := range snap.WorkItems {
		if wi.State == domain.WorkItemPending {
			fmt.Fprintf(w, "  work item %d %s\n", wi.ID, wi.Name)
		}
	}
	if len(snap.CompletedNodeIDs) > 0 {
		fmt.Fprintf(w, "  completed: %s\n", strings.Join(snap.CompletedNodeIDs, ", "))
	}
	if len(snap.Variables) > 0 {
		out, err := yaml.Marshal(snap.Variables)
		if err == nil {
			fmt.Fprintf(w, "  variables:\n")
			for _, line := range strings.Split(strings.TrimRight(string(out), "\n"), "\n") {
				fmt.Fprintf(w, "    %s\n", line)
			}
		}
	}
}

func usage(cmd string) error {
	return fmt.Errorf("usage error for %q (try help)", cmd)
}

func argID(cmd string, args []string, i, min int) (int64, error) {
	if len(args) < min || len(args) <= i {
		return 0, usage(cmd)
	}
	id, err := strconv.ParseInt(args[i], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid id %q", cmd, args[i])
	}
	return id, nil
}

// parseAssignments reads key=value pairs. Values are YAML scalars, so
// "approved=true" yields a bool and "count=3" an int.
func parseAssignments(args []string) (map[string]any, error) {
	if len(args) == 0 {
		return nil, nil
	}
	out := make(map[string]any, len(args))
	for _, arg := range args {
		key, raw, ok := strings.Cut(arg, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("expected key=value, got %q", arg)
		}
		out[key] = scalar(raw)
	}
	return out, nil
}

func payload(args []string) any {
	if len(args) == 0 {
		return nil
	}
	return scalar(strings.Join(args, " "))
}

func scalar(raw string) any {
	var v any
	if err := yaml.Unmarshal([]byte(raw), &v); err != nil || v == nil {
		return raw
	}
	return v
}
