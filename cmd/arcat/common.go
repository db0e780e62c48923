package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"slices"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/oukeidos/arcat/internal/apperrors"
	"github.com/oukeidos/arcat/internal/auth"
	"github.com/oukeidos/arcat/internal/catalog"
	"github.com/oukeidos/arcat/internal/config"
	"github.com/oukeidos/arcat/internal/grid"
	"github.com/oukeidos/arcat/internal/logger"
	"github.com/oukeidos/arcat/internal/metrics"
	"github.com/oukeidos/arcat/internal/pathcheck"
	"github.com/oukeidos/arcat/internal/prompt"
	"github.com/oukeidos/arcat/internal/schema"
	"github.com/oukeidos/arcat/internal/store"
)

var (
	isTerminal     = term.IsTerminal
	getPassword    = auth.Password
	promptPassword = auth.PromptPassword
	openStore      = store.Open
	confirmer      = prompt.DefaultConfirmer()
)

const cellWidth = 32

// app is an opened store plus the pieces every row command needs.
type app struct {
	cfg     *config.Config
	schema  *schema.Catalog
	store   store.Backend
	metrics *metrics.Recorder
	paths   grid.PathChecker
	confirm func(message string, proceed func(bool))
	yes     bool
}

func openApp(ctx context.Context, cmd *cobra.Command, g *globalOptions) (*app, error) {
	cat := schema.New()
	password := ""
	if g.cfg.Database.Driver == config.DriverPostgres {
		var err error
		password, err = resolvePassword(cmd, g.allowEnv)
		if err != nil {
			return nil, err
		}
	}
	b, err := openStore(ctx, g.cfg, cat, password)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: g.cfg, schema: cat, store: b, metrics: metrics.New(), yes: g.yes}
	a.confirm = confirmer.ConfirmAbandon(g.yes, func(err error) {
		logger.Warn("confirmation unavailable", "error", err)
	})
	if g.cfg.Archive.Root != "" {
		a.paths = pathcheck.New(g.cfg.Archive.Root, g.cfg.Archive.RequireFiles)
	}
	return a, nil
}

func (a *app) Close() error { return a.store.Close() }

// resolvePassword tries the keychain, then ARCAT_DB_PASSWORD when allowed,
// then a terminal prompt. An empty result leaves the DSN password alone.
func resolvePassword(cmd *cobra.Command, allowEnv bool) (string, error) {
	if pw, src := getPassword(allowEnv); pw != "" {
		logger.Debug("database password found", "source", string(src))
		return pw, nil
	}
	if !isTerminal(int(os.Stdin.Fd())) {
		return "", nil
	}
	pw, err := promptPassword(cmd.ErrOrStderr(), "Database password (Enter to use the DSN): ")
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return pw, nil
}

// session drives the row controllers for one table the way the GUI does,
// with the idle turn replaced by an explicit Flush.
type session struct {
	table    catalog.Table
	main     *grid.MainList
	parents  *grid.ParentList
	queue    *grid.Queue
	messages []string
	failures []*catalog.Rejection
}

func (a *app) newSession(ctx context.Context, tableName string, parentIndex int) (*session, error) {
	t, err := a.schema.Table(tableName)
	if err != nil {
		return nil, err
	}
	s := &session{table: t, queue: &grid.Queue{}}
	env := grid.Env{
		Store:          a.store,
		Keys:           a.store,
		References:     a.store,
		Paths:          a.paths,
		Defer:          s.queue,
		Logger:         logger.Logger(),
		Observer:       a.metrics,
		Context:        ctx,
		Timeout:        a.cfg.Database.CommitTimeout,
		ConfirmAbandon: a.confirm,
		Events: grid.Events{
			RowCommitFailed: func(rej *catalog.Rejection) { s.failures = append(s.failures, rej) },
			Message:         func(text string) { s.messages = append(s.messages, text) },
		},
	}
	s.main, err = grid.NewMainList(env, t)
	if err != nil {
		return nil, err
	}

	if t.Parent == "" {
		callCtx, cancel := context.WithTimeout(ctx, a.cfg.Database.CommitTimeout)
		defer cancel()
		rows, err := a.store.FetchParents(callCtx, t.Name)
		if err != nil {
			return nil, err
		}
		s.main.Load(nil, rows)
		return s, nil
	}

	pt, err := a.schema.Table(t.Parent)
	if err != nil {
		return nil, err
	}
	s.parents, err = grid.NewParentList(pt, s.main)
	if err != nil {
		return nil, err
	}
	if err := s.parents.Load(ctx); err != nil {
		return nil, err
	}
	if parentIndex < 0 || parentIndex >= s.parents.Len() {
		return nil, apperrors.Validation(fmt.Sprintf("%s has no row %d (it has %d)", pt.Name, parentIndex, s.parents.Len()))
	}
	if err := s.parents.SelectParent(ctx, parentIndex); err != nil {
		return nil, err
	}
	return s, nil
}

// target splits "<table> [parent-index] rest..." depending on whether the
// table has a parent.
func target(cat *schema.Catalog, args []string) (catalog.Table, int, []string, error) {
	if len(args) == 0 {
		return catalog.Table{}, 0, nil, apperrors.Validation("a table name is required")
	}
	t, err := cat.Table(args[0])
	if err != nil {
		return catalog.Table{}, 0, nil, apperrors.Validation(err.Error())
	}
	if t.Parent == "" {
		return t, -1, args[1:], nil
	}
	if len(args) < 2 {
		return catalog.Table{}, 0, nil, apperrors.Validation(fmt.Sprintf("%s rows belong to %s: give the %s row index first", t.Name, t.Parent, t.Parent))
	}
	idx, err := strconv.Atoi(args[1])
	if err != nil {
		return catalog.Table{}, 0, nil, apperrors.Validation(fmt.Sprintf("parent index %q is not a number", args[1]))
	}
	return t, idx, args[2:], nil
}

// rowIndex accepts a row number or "new" for the insertion row.
func (s *session) rowIndex(arg string) (int, error) {
	if strings.EqualFold(arg, "new") {
		return s.main.InsertionIndex(), nil
	}
	i, err := strconv.Atoi(arg)
	if err != nil || i < 0 || i >= s.main.Len() {
		return 0, apperrors.Validation(fmt.Sprintf("row %q does not exist (use 0-%d or new)", arg, s.main.Len()-1))
	}
	return i, nil
}

func printRows(w io.Writer, m *grid.MainList, only ...int) {
	t := m.Table()
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	var header []string
	header = append(header, "#", "state")
	for _, c := range t.Columns {
		if c.Visible {
			header = append(header, c.Name)
		}
	}
	fmt.Fprintln(tw, strings.Join(header, "\t"))
	for i := 0; i < m.Len(); i++ {
		if len(only) > 0 && !slices.Contains(only, i) {
			continue
		}
		view, _ := m.Row(i)
		label := strconv.Itoa(i)
		if view.Insertion {
			label = "*"
		}
		cells := []string{label, view.State.String()}
		for j, c := range t.Columns {
			if c.Visible {
				cells = append(cells, m.Cell(i, j, cellWidth))
			}
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	_ = tw.Flush()
}

func signalContext() (context.Context, func()) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			logger.Warn("cancellation requested")
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, func() {
		signal.Stop(sigCh)
		cancel()
	}
}
