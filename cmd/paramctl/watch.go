package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/bpmctl/paramtree/pkg/tree"
)

var (
	watchCount    int
	watchDuration time.Duration
	watchInitial  bool
)

func init() {
	cmd := newWatchCmd()
	cmd.Flags().IntVarP(&watchCount, "count", "n", 0, "Exit after this many notifications (0 for no limit)")
	cmd.Flags().DurationVar(&watchDuration, "duration", 0, "Exit after this long (0 for no limit)")
	cmd.Flags().BoolVar(&watchInitial, "initial", false, "Print the current values first")
	rootCmd.AddCommand(cmd)
}

func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch <path>...",
		Short: "Print changes of nodes as they happen",
		Long: `The watch command subscribes to each path and prints every notification
until interrupted, until --count notifications arrived or until
--duration elapsed. Subscribing to a directory reports its structure
changes.

Example:
  paramctl watch /position/x /position/y
  paramctl watch /acquisition --count 1
  paramctl watch /position/sum --duration 10s --json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd.Context(), cmd.OutOrStdout(), args)
		},
	}
}

var errWatchClosed = errors.New("watch closed")

type watchEvent struct {
	Time  time.Time `json:"time"`
	Path  string    `json:"path"`
	Event string    `json:"event"`
	Index int       `json:"index,omitempty"`
	Value any       `json:"value,omitempty"`
	Child string    `json:"child,omitempty"`
}

// watcher subscribes nodes of a session and renders notifications.
type watcher struct {
	s       *session
	id      tree.ClientID
	events  chan *tree.Notification
	done    chan struct{}
	domains map[string]*tree.EnumDomain
}

func newWatcher(s *session) (*watcher, error) {
	wt := &watcher{
		s:       s,
		events:  make(chan *tree.Notification, 64),
		done:    make(chan struct{}),
		domains: make(map[string]*tree.EnumDomain),
	}
	id, err := s.disp.Connect(func(n *tree.Notification) error {
		select {
		case wt.events <- n:
			return nil
		case <-wt.done:
			return errWatchClosed
		}
	})
	if err != nil {
		return nil, err
	}
	wt.id = id
	return wt, nil
}

func (wt *watcher) add(path string) (tree.Node, error) {
	n, err := wt.s.node(path)
	if err != nil {
		return tree.Node{}, fmt.Errorf("%s: %w", path, err)
	}
	info, err := n.Info()
	if err != nil {
		return tree.Node{}, fmt.Errorf("%s: %w", path, err)
	}
	wt.domains[wt.s.relPath(n)] = info.Domain
	if err := n.Subscribe(wt.id); err != nil {
		return tree.Node{}, fmt.Errorf("%s: %w", path, err)
	}
	return n, nil
}

func (wt *watcher) close() {
	close(wt.done)
	wt.s.disp.Disconnect(wt.id)
}

func (wt *watcher) describe(n *tree.Notification) watchEvent {
	path := wt.s.relPath(n.Node)
	e := watchEvent{Time: n.Time, Path: path, Event: n.Kind.String()}
	if n.Kind == tree.ValueChanged {
		domain := wt.domains[path]
		e.Index = n.Index
		if jsonOut {
			e.Value = jsonValue(n.Payload, domain)
		} else {
			e.Value = formatValue(n.Payload, domain)
		}
	} else if n.Payload.IsValid() {
		e.Child = n.Payload.String()
	}
	return e
}

func printWatchEvent(w io.Writer, e watchEvent) error {
	if jsonOut {
		return printJSON(w, e)
	}
	ts := e.Time.Local().Format("15:04:05.000")
	switch {
	case e.Event == "current":
		_, err := fmt.Fprintf(w, "%s %s = %v\n", ts, e.Path, e.Value)
		return err
	case e.Event == tree.ValueChanged.String() && e.Index > 0:
		_, err := fmt.Fprintf(w, "%s %s[%d] = %v\n", ts, e.Path, e.Index, e.Value)
		return err
	case e.Event == tree.ValueChanged.String():
		_, err := fmt.Fprintf(w, "%s %s = %v\n", ts, e.Path, e.Value)
		return err
	default:
		_, err := fmt.Fprintf(w, "%s %s %s %s\n", ts, e.Path, e.Event, e.Child)
		return err
	}
}

func runWatch(ctx context.Context, w io.Writer, args []string) error {
	return withSession(ctx, func(s *session) error {
		wt, err := newWatcher(s)
		if err != nil {
			return err
		}
		defer wt.close()

		for _, path := range args {
			n, err := wt.add(path)
			if err != nil {
				return err
			}
			if !watchInitial {
				continue
			}
			if info, err := n.Info(); err == nil && info.Flags.Readable() && info.Kind.IsValid() {
				if v, err := n.Get(); err == nil {
					e := watchEvent{Time: time.Now(), Path: s.relPath(n), Event: "current"}
					if jsonOut {
						e.Value = jsonValue(v, info.Domain)
					} else {
						e.Value = formatValue(v, info.Domain)
					}
					if err := printWatchEvent(w, e); err != nil {
						return err
					}
				}
			}
		}

		if watchDuration > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, watchDuration)
			defer cancel()
		}

		seen := 0
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-s.client.Done():
				return fmt.Errorf("connection lost: %w", s.client.Err())
			case n := <-wt.events:
				if err := printWatchEvent(w, wt.describe(n)); err != nil {
					return err
				}
				seen++
				if watchCount > 0 && seen >= watchCount {
					return nil
				}
			}
		}
	})
}
