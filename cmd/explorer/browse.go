package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/justyntemme/explorer/internal/debug"
	"github.com/justyntemme/explorer/internal/explorer"
	"github.com/justyntemme/explorer/internal/fs"
	"github.com/justyntemme/explorer/internal/metrics"
	"github.com/justyntemme/explorer/internal/registry"
	"github.com/spf13/cobra"
)

const browseHelp = `Commands:
  ls                 show the listing
  open <n>           enter entry n (toggles it while a selection exists)
  cd <path>          go to path; cd! <path> also enters protected areas
  sel <n>            toggle selection of entry n
  clear              clear the selection
  find <text>        filter the listing
  rfind <text>       search subtrees of the listing
  endfind            end the search
  back               undo selection/search or go up; exits at the top
  pwd                print the current directory
  quit               exit`

func NewBrowseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "browse [directory]",
		Short: "Interactively browse storage",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runBrowse,
	}
}

func runBrowse(cmd *cobra.Command, args []string) error {
	cfg := cfgManager.Get()

	start := cfg.StartDirectory
	if len(args) == 1 {
		abs, err := filepath.Abs(args[0])
		if err != nil {
			return err
		}
		start = abs
	}

	region, err := explorer.NewProtectedRegion(cfg.ProtectedPatterns)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer cancel()

	apps, stopRegistry, err := openRegistry(ctx, cfg.RegistryPath, cfg.RegistryPollInterval.Duration)
	if err != nil {
		return err
	}
	defer stopRegistry()

	var watcher *fs.DirectoryWatcher
	if cfg.Watch {
		watcher, err = fs.NewDirectoryWatcher(cfg.WatchDebounce.Duration)
		if err != nil {
			debug.Warn(debug.APP, "directory watching disabled: %v", err)
			watcher = nil
		} else {
			defer watcher.Close()
		}
	}

	if cfg.MetricsAddr != "" {
		srv := serveMetrics(cfg.MetricsAddr)
		defer srv.Shutdown(context.Background())
	}

	eng, err := explorer.New(explorer.Options{
		StartDirectory: start,
		StorageRoots:   cfg.StorageRoots,
		Apps:           apps,
		Protected:      region,
		Watcher:        watcher,
	})
	if err != nil {
		return err
	}
	defer eng.Dispose()

	return newSession(eng, cmd.InOrStdin(), cmd.OutOrStdout()).run(ctx)
}

// openRegistry opens the app store and polls it for external writes. The
// returned stop func ends polling before it closes the store.
func openRegistry(ctx context.Context, path string, interval time.Duration) (*registry.Registry, func(), error) {
	apps := registry.New()
	store, err := registry.OpenStore(path, apps)
	if err != nil {
		return nil, nil, fmt.Errorf("open app registry: %w", err)
	}

	pollCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		store.Poll(pollCtx, interval)
	}()

	var once sync.Once
	stop := func() {
		once.Do(func() {
			cancel()
			<-done
			if err := store.Close(); err != nil {
				debug.Warn(debug.STORE, "close app registry: %v", err)
			}
		})
	}
	return apps, stop, nil
}

func serveMetrics(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			debug.Warn(debug.APP, "metrics server: %v", err)
		}
	}()
	debug.Log(debug.APP, "serving metrics on %s", addr)
	return srv
}

// session is a line-oriented front end over an Engine.
type session struct {
	eng     *explorer.Engine
	in      io.Reader
	out     io.Writer
	updates <-chan explorer.Listing

	quiet   time.Duration
	maxWait time.Duration
}

func newSession(eng *explorer.Engine, in io.Reader, out io.Writer) *session {
	return &session{
		eng:     eng,
		in:      in,
		out:     out,
		quiet:   150 * time.Millisecond,
		maxWait: 3 * time.Second,
	}
}

func (s *session) run(ctx context.Context) error {
	updates, unsubscribe := s.eng.Listing().Subscribe()
	defer unsubscribe()
	s.updates = updates

	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		sc := bufio.NewScanner(s.in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- sc.Err()
	}()

	s.settle()
	s.printListing()

	for {
		fmt.Fprint(s.out, color.CyanString("%s> ", s.eng.CurrentDirectory().Get()))
		select {
		case <-ctx.Done():
			fmt.Fprintln(s.out)
			return nil
		case err := <-scanErr:
			return err
		case line := <-lines:
			if !s.exec(line) {
				return nil
			}
		}
	}
}

// exec runs one command line and reports whether the session continues.
func (s *session) exec(line string) bool {
	verb, arg := parseCommand(line)
	switch verb {
	case "", "ls":
		s.printListing()
	case "pwd":
		fmt.Fprintln(s.out, s.eng.CurrentDirectory().Get())
	case "cd", "cd!":
		if arg == "" {
			arg = s.eng.StartDirectory()
		}
		s.eng.MoveTo(arg, verb == "cd!")
		s.refresh()
	case "open":
		e, ok := s.entryAt(arg)
		if !ok {
			return true
		}
		// With a selection, tapping an entry extends it instead of
		// navigating.
		if len(s.eng.Selection().Get()) > 0 {
			s.eng.ToggleSelection(e)
		} else {
			s.eng.MoveTo(e.File.Path, false)
		}
		s.refresh()
	case "sel":
		e, ok := s.entryAt(arg)
		if !ok {
			return true
		}
		if !s.eng.ToggleSelection(e) && !e.Selectable {
			fmt.Fprintln(s.out, color.YellowString("%s cannot be selected", e.Name()))
		}
		s.refresh()
	case "clear":
		s.eng.ClearSelection()
		s.refresh()
	case "find", "rfind":
		s.eng.Search(arg, verb == "rfind")
		s.refresh()
	case "endfind":
		s.eng.ClearSearch()
		s.refresh()
	case "back":
		if !s.eng.BackNavigate() {
			return false
		}
		s.refresh()
	case "help", "?":
		fmt.Fprintln(s.out, browseHelp)
	case "quit", "exit", "q":
		return false
	default:
		fmt.Fprintf(s.out, "%s unknown command %q, try help\n", color.RedString("error:"), verb)
	}
	return true
}

func (s *session) refresh() {
	s.settle()
	s.printListing()
}

// settle waits until the listing has been quiet for s.quiet.
func (s *session) settle() {
	deadline := time.After(s.maxWait)
	for {
		select {
		case <-s.updates:
		case <-time.After(s.quiet):
			return
		case <-deadline:
			return
		}
	}
}

func (s *session) entryAt(arg string) (explorer.Entry, bool) {
	listing := s.eng.Listing().Get()
	n, err := strconv.Atoi(arg)
	if err != nil || n < 0 || n >= len(listing) {
		fmt.Fprintf(s.out, "%s no entry %q\n", color.RedString("error:"), arg)
		return explorer.Entry{}, false
	}
	return listing[n], true
}

func (s *session) printListing() {
	st := s.eng.Snapshot()
	if st.SearchActive {
		fmt.Fprintf(s.out, "%s %q, %d results\n", color.MagentaString("search"), st.SearchQuery, len(st.Listing))
	}
	if len(st.Listing) == 0 {
		fmt.Fprintln(s.out, color.New(color.Faint).Sprint("  (empty)"))
	}
	for i, e := range st.Listing {
		fmt.Fprintln(s.out, formatEntry(i, e))
	}
	if n := len(st.Selection); n > 0 {
		fmt.Fprintf(s.out, "%s\n", color.GreenString("%d selected", n))
	}
}

func parseCommand(line string) (verb, arg string) {
	line = strings.TrimSpace(line)
	verb, arg, _ = strings.Cut(line, " ")
	return strings.ToLower(verb), strings.TrimSpace(arg)
}

func formatEntry(i int, e explorer.Entry) string {
	mark := "[ ]"
	switch {
	case e.Selected:
		mark = color.GreenString("[x]")
	case !e.Selectable:
		mark = "   "
	}

	name := e.Name()
	switch {
	case e.File.IsDir:
		name = color.New(color.FgBlue, color.Bold).Sprint(name + "/")
	case e.App != nil:
		name = color.GreenString(name)
	}

	var details []string
	if !e.File.IsDir {
		details = append(details, humanize.Bytes(uint64(e.File.Size)))
	}
	if !e.File.ModTime.IsZero() && !e.IsParentLink() {
		details = append(details, humanize.Time(e.File.ModTime))
	}
	if e.App != nil {
		details = append(details, color.GreenString("app: %s (%s)", e.App.Name, e.App.PackageID))
	}

	line := fmt.Sprintf("%3d %s %s", i, mark, name)
	if len(details) > 0 {
		line += "  " + color.New(color.Faint).Sprint(strings.Join(details, ", "))
	}
	return line
}
