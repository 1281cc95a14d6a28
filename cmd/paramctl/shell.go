package main

import (
	"context"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/bpmctl/paramtree/pkg/tree"
)

func init() {
	rootCmd.AddCommand(newShellCmd())
}

func newShellCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Interactive session",
		Long: `The shell command keeps one connection open and reads commands from the
terminal. Paths are relative to the current node unless they start with
a slash. Type "help" for the list of commands.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), func(s *session) error {
				return runShell(cmd.Context(), s)
			})
		},
	}
}

// shell evaluates command lines against one session.
type shell struct {
	s   *session
	cwd tree.Path

	mu  sync.Mutex
	out io.Writer

	wt      *watcher
	watched map[string]tree.Node
}

func newShell(s *session, out io.Writer) *shell {
	return &shell{s: s, out: out, watched: make(map[string]tree.Node)}
}

func runShell(ctx context.Context, s *session) error {
	sh := newShell(s, nil)
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          sh.prompt(),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		AutoComplete:    sh.completer(),
	})
	if err != nil {
		return fmt.Errorf("failed to create readline: %w", err)
	}
	defer rl.Close()
	sh.out = rl.Stdout()
	defer sh.close()

	fmt.Fprintf(sh.out, "Connected to %s. Type \"help\" for commands.\n", s.client.ServerName())

	go func() {
		select {
		case <-ctx.Done():
		case <-s.client.Done():
			sh.printf("connection lost: %v\n", s.client.Err())
		}
		rl.Close()
	}()

	for {
		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			return nil
		}
		if quit := sh.exec(line); quit {
			return nil
		}
		rl.SetPrompt(sh.prompt())
	}
}

func (sh *shell) prompt() string {
	return "paramctl:" + sh.cwd.String() + "> "
}

func (sh *shell) printf(format string, args ...any) {
	sh.mu.Lock()
	defer sh.mu.Unlock()
	fmt.Fprintf(sh.out, format, args...)
}

// resolve turns a shell argument into a path below the exported root.
func (sh *shell) resolve(arg string) (tree.Path, error) {
	var p tree.Path
	if !strings.HasPrefix(arg, "/") {
		p = append(p, sh.cwd...)
	}
	for _, part := range strings.Split(arg, "/") {
		switch part {
		case "", ".":
		case "..":
			if len(p) > 0 {
				p = p[:len(p)-1]
			}
		default:
			p = append(p, part)
		}
	}
	return tree.ParsePath(p.String())
}

func (sh *shell) node(arg string) (tree.Node, string, error) {
	p, err := sh.resolve(arg)
	if err != nil {
		return tree.Node{}, "", err
	}
	n, err := sh.s.mount.NavigatePath(p)
	if err != nil {
		return tree.Node{}, "", err
	}
	return n, p.String(), nil
}

// exec runs one command line and reports whether the shell should exit.
func (sh *shell) exec(line string) bool {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return false
	}
	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	var err error
	switch cmd {
	case "help", "?":
		sh.printHelp()
	case "quit", "exit", "q":
		return true
	case "pwd":
		sh.printf("%s\n", sh.cwd)
	case "cd":
		err = sh.cmdCd(args)
	case "ls", "l":
		err = sh.cmdLs(args)
	case "get", "g":
		err = sh.cmdGet(args)
	case "set", "s":
		err = sh.cmdSet(args)
	case "info", "i":
		err = sh.cmdInfo(args)
	case "exec", "x":
		err = sh.cmdExec(args)
	case "resize":
		err = sh.cmdResize(args)
	case "dump", "d":
		err = sh.cmdDump(args)
	case "watch", "w":
		err = sh.cmdWatch(args)
	case "unwatch":
		err = sh.cmdUnwatch(args)
	default:
		err = fmt.Errorf("unknown command %q, type \"help\"", cmd)
	}
	if err != nil {
		sh.printf("Error: %v\n", err)
	}
	return false
}

func (sh *shell) printHelp() {
	sh.printf(`Commands:
  ls [path]              List children (l)
  cd <path>              Change the current node
  pwd                    Print the current node
  get <path>             Read a value (g)
  set <path> <value>...  Write a value (s)
  info <path>            Show node metadata (i)
  exec <path>            Run a command node (x)
  resize <path> <size>   Change an array length
  dump [path]            Print a subtree with values (d)
  watch [path]           Subscribe to a node, or list subscriptions (w)
  unwatch <path>         Cancel a subscription
  help                   Show this help (?)
  quit                   Leave the shell (q)
`)
}

func (sh *shell) cmdCd(args []string) error {
	if len(args) == 0 {
		sh.cwd = nil
		return nil
	}
	p, err := sh.resolve(args[0])
	if err != nil {
		return err
	}
	n, err := sh.s.mount.NavigatePath(p)
	if err != nil {
		return err
	}
	info, err := n.Info()
	if err != nil {
		return err
	}
	if info.NodeKind != tree.KindDir && info.NodeKind != tree.KindMount {
		return fmt.Errorf("%s is not a directory", p)
	}
	sh.cwd = p
	return nil
}

func (sh *shell) cmdLs(args []string) error {
	arg := "."
	long := false
	for _, a := range args {
		if a == "-l" {
			long = true
		} else {
			arg = a
		}
	}
	n, _, err := sh.node(arg)
	if err != nil {
		return err
	}
	entries, err := listChildren(n)
	if err != nil {
		return err
	}
	sh.mu.Lock()
	defer sh.mu.Unlock()
	return printEntries(sh.out, entries, long)
}

func (sh *shell) cmdGet(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: get <path>")
	}
	for _, arg := range args {
		n, path, err := sh.node(arg)
		if err != nil {
			return err
		}
		info, err := n.Info()
		if err != nil {
			return err
		}
		v, err := n.Get()
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		sh.printf("%s = %s\n", path, formatValue(v, info.Domain))
	}
	return nil
}

func (sh *shell) cmdSet(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: set <path> <value>...")
	}
	n, path, err := sh.node(args[0])
	if err != nil {
		return err
	}
	info, err := n.Info()
	if err != nil {
		return err
	}
	v, err := parseInput(info, args[1:])
	if err != nil {
		return err
	}
	if err := n.Set(v); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

func (sh *shell) cmdInfo(args []string) error {
	arg := "."
	if len(args) > 0 {
		arg = args[0]
	}
	n, path, err := sh.node(arg)
	if err != nil {
		return err
	}
	info, err := n.Info()
	if err != nil {
		return err
	}
	sh.mu.Lock()
	defer sh.mu.Unlock()
	printInfo(sh.out, describeInfo(path, info))
	return nil
}

func (sh *shell) cmdExec(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: exec <path>")
	}
	n, path, err := sh.node(args[0])
	if err != nil {
		return err
	}
	if err := n.Execute(); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

func (sh *shell) cmdResize(args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: resize <path> <size>")
	}
	var size int
	if _, err := fmt.Sscan(args[1], &size); err != nil || size < 0 {
		return fmt.Errorf("invalid size %q", args[1])
	}
	n, path, err := sh.node(args[0])
	if err != nil {
		return err
	}
	if err := n.Resize(size); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

func (sh *shell) cmdDump(args []string) error {
	arg := "."
	if len(args) > 0 {
		arg = args[0]
	}
	n, _, err := sh.node(arg)
	if err != nil {
		return err
	}
	sh.mu.Lock()
	defer sh.mu.Unlock()
	return dumpNode(sh.out, n, n.Equal(sh.s.mount), -1, tree.DumpValues)
}

func (sh *shell) cmdWatch(args []string) error {
	if len(args) == 0 {
		if len(sh.watched) == 0 {
			sh.printf("No subscriptions\n")
		}
		for _, path := range slices.Sorted(maps.Keys(sh.watched)) {
			sh.printf("%s\n", path)
		}
		return nil
	}
	if sh.wt == nil {
		wt, err := newWatcher(sh.s)
		if err != nil {
			return err
		}
		sh.wt = wt
		go sh.printEvents(wt)
	}
	for _, arg := range args {
		p, err := sh.resolve(arg)
		if err != nil {
			return err
		}
		if _, ok := sh.watched[p.String()]; ok {
			continue
		}
		n, err := sh.wt.add(p.String())
		if err != nil {
			return err
		}
		sh.watched[p.String()] = n
	}
	return nil
}

func (sh *shell) cmdUnwatch(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: unwatch <path>")
	}
	for _, arg := range args {
		p, err := sh.resolve(arg)
		if err != nil {
			return err
		}
		n, ok := sh.watched[p.String()]
		if !ok {
			return fmt.Errorf("%s is not watched", p)
		}
		if err := n.Unsubscribe(sh.wt.id); err != nil {
			return err
		}
		delete(sh.watched, p.String())
	}
	return nil
}

func (sh *shell) printEvents(wt *watcher) {
	for {
		select {
		case <-wt.done:
			return
		case n := <-wt.events:
			sh.mu.Lock()
			printWatchEvent(sh.out, wt.describe(n))
			sh.mu.Unlock()
		}
	}
}

func (sh *shell) close() {
	if sh.wt != nil {
		sh.wt.close()
	}
}

// childNames completes names below the directory part of the word being
// typed.
func (sh *shell) childNames(line string) []string {
	fields := strings.Fields(line)
	dir := "."
	prefix := ""
	if len(fields) > 1 && !strings.HasSuffix(line, " ") {
		word := fields[len(fields)-1]
		if i := strings.LastIndex(word, "/"); i >= 0 {
			dir = word[:i+1]
			prefix = word[:i+1]
		}
	}
	n, _, err := sh.node(dir)
	if err != nil {
		return nil
	}
	children, err := n.Children()
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(children))
	for _, c := range children {
		if name, err := c.Name(); err == nil {
			names = append(names, prefix+name)
		}
	}
	return names
}

func (sh *shell) completer() *readline.PrefixCompleter {
	paths := readline.PcItemDynamic(sh.childNames)
	var items []readline.PrefixCompleterInterface
	for _, cmd := range []string{"ls", "cd", "get", "set", "info", "exec", "resize", "dump", "watch", "unwatch"} {
		items = append(items, readline.PcItem(cmd, paths))
	}
	items = append(items, readline.PcItem("pwd"), readline.PcItem("help"), readline.PcItem("quit"))
	return readline.NewPrefixCompleter(items...)
}
